package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrUnknownSource    = errors.New("unknown report source")
)

// SinkError describes a failed push. Pushes are never retried.
type SinkError struct {
	Sink       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *SinkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sink %s: status %d: %v", e.Sink, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Fanout pushes every report to all of its sinks concurrently. A slow or
// failing sink does not keep the others from receiving the report.
type Fanout struct {
	sinks   []advisor.Sink
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewFanout(m *metrics.Metrics, logger *zap.Logger, sinks ...advisor.Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, metrics: m, logger: logger}
}

func (f *Fanout) Name() string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Push(ctx context.Context, r advisor.Report) error {
	errs := make([]error, len(f.sinks))

	var wg sync.WaitGroup
	for i, s := range f.sinks {
		wg.Add(1)
		go func(i int, s advisor.Sink) {
			defer wg.Done()
			if err := s.Push(ctx, r); err != nil {
				f.metrics.SinkError(s.Name())
				f.logger.Warn("push failed",
					zap.String("sink", s.Name()),
					zap.String("report", r.ID),
					zap.Error(err))
				errs[i] = err
			}
		}(i, s)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Log writes each report to the structured log. It is the sink of last resort
// when nothing remote is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Push(_ context.Context, r advisor.Report) error {
	fields := []zap.Field{
		zap.String("id", r.ID),
		zap.String("source", string(r.Source)),
		zap.String("location", r.Location),
		zap.String("command", string(r.Decision.Command)),
		zap.String("reason", r.Decision.Reason),
	}
	if r.Forecast != nil {
		fields = append(fields,
			zap.Bool("will_rain", r.Forecast.WillRain),
			zap.Float64("intensity_mm", r.Forecast.IntensityMM))
	}
	if r.Soil != nil {
		fields = append(fields,
			zap.Float64("ph", r.Soil.PH),
			zap.Float64("moisture_pct", r.Soil.MoisturePct))
	}
	l.logger.Info("irrigation report", fields...)
	return nil
}

// slug turns a report location into a single MQTT topic level.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
