package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job is one decision cycle. Its error is logged; it never stops the schedule.
type Job func(ctx context.Context) error

// Scheduler runs a job on a fixed interval, never overlapping with itself,
// until the context is canceled or MaxRuns cycles have completed.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	maxRuns   int // 0 = unbounded
	logger    *zap.Logger

	mu   sync.Mutex
	runs int
}

// New creates a new Scheduler.
func New(interval time.Duration, maxRuns int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		maxRuns:   maxRuns,
		logger:    logger,
	}
}

// Runs returns the number of completed cycles.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Run schedules job, the first run starting immediately, and blocks until ctx
// is done or the run limit is reached. It returns nil in both cases.
func (s *Scheduler) Run(ctx context.Context, name string, job Job) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}

	done := make(chan struct{})
	var once sync.Once

	sched := s.scheduler.Every(s.interval).SingletonMode()
	if s.maxRuns > 0 {
		sched = sched.LimitRunsTo(s.maxRuns)
	}
	_, err := sched.Do(func() {
		if ctx.Err() != nil {
			return
		}

		s.logger.Debug("scheduler: running job", zap.String("job", name))
		if err := job(ctx); err != nil {
			s.logger.Warn("scheduler: job failed", zap.String("job", name), zap.Error(err))
		}

		s.mu.Lock()
		s.runs++
		finished := s.maxRuns > 0 && s.runs >= s.maxRuns
		s.mu.Unlock()

		if finished {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	defer s.scheduler.Stop()

	s.logger.Info("scheduler: started",
		zap.String("job", name),
		zap.Duration("interval", s.interval),
		zap.Int("max_runs", s.maxRuns))

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler: stopping", zap.String("job", name), zap.Int("runs", s.Runs()))
	case <-done:
		s.logger.Info("scheduler: run limit reached", zap.String("job", name), zap.Int("runs", s.Runs()))
	}
	return nil
}
