package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	"github.com/farmtech/irrigation-advisor/internal/config"
	"github.com/farmtech/irrigation-advisor/internal/logging"
	"github.com/farmtech/irrigation-advisor/internal/scheduler"
	"github.com/farmtech/irrigation-advisor/internal/sink"
	"github.com/farmtech/irrigation-advisor/internal/soil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.Weather.HTTPTimeout}
	fanout, closeSinks := sink.Build(ctx, cfg.Sinks, httpClient, nil, logger.Named("sink"))
	defer closeSinks()

	gen := soil.NewGenerator(cfg.Simulator.FieldID, cfg.Simulator.Seed)
	tally := advisor.NewTally()
	cycle := advisor.NewSoilCycle(gen, advisor.Deps{
		Sink:        fanout,
		Tally:       tally,
		Logger:      logger.Named("cycle"),
		PushTimeout: cfg.Sinks.PushTimeout,
	})

	logger.Info("soil simulator started",
		zap.String("field", gen.FieldID()),
		zap.Duration("interval", cfg.Simulator.Interval),
		zap.Int("cycles", cfg.Simulator.Cycles))

	sched := scheduler.New(cfg.Simulator.Interval, cfg.Simulator.Cycles, logger.Named("scheduler"))
	if err := sched.Run(ctx, "soil", func(ctx context.Context) error {
		_, err := cycle.Run(ctx)
		return err
	}); err != nil {
		logger.Error("scheduler failed", zap.Error(err))
	}

	logger.Info("session summary",
		zap.String("summary", tally.String()),
		zap.Int("readings_sent", tally.Count(advisor.OutcomeOK)))
}
