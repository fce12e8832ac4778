package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	httpapi "github.com/farmtech/irrigation-advisor/internal/api/http"
	"github.com/farmtech/irrigation-advisor/internal/config"
	"github.com/farmtech/irrigation-advisor/internal/logging"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
	"github.com/farmtech/irrigation-advisor/internal/scheduler"
	"github.com/farmtech/irrigation-advisor/internal/sink"
	"github.com/farmtech/irrigation-advisor/internal/store"
	"github.com/farmtech/irrigation-advisor/internal/weather"
	"github.com/farmtech/irrigation-advisor/internal/weather/providers"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup, including the
// logger flush, happens before exit.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Printf("failed to build logger: %v", err)
		return 1
	}
	defer logger.Sync()

	if err := cfg.RequireWeather(); err != nil {
		logger.Error("weather provider not usable", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound calls; every call is bounded.
	httpClient := &http.Client{Timeout: cfg.Weather.HTTPTimeout}

	provider := newProvider(cfg, httpClient)
	service := weather.NewService(provider, cfg.Weather.Lookahead, logger.Named("weather"))

	m := metrics.New()
	memStore := store.NewMemoryStore(cfg.Store.MaxHistory, cfg.Store.MaxAge)
	tally := advisor.NewTally()

	fanout, closeSinks := sink.Build(ctx, cfg.Sinks, httpClient, m, logger.Named("sink"))
	defer closeSinks()

	loc := cfg.Location.Location()
	cycle := advisor.NewWeatherCycle(service, loc, advisor.Deps{
		Sink:        fanout,
		Store:       memStore,
		Tally:       tally,
		Metrics:     m,
		Logger:      logger.Named("cycle"),
		PushTimeout: cfg.Sinks.PushTimeout,
	})

	app := fiber.New(fiber.Config{
		AppName:               "irrigation-advisor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "irrigation-advisor",
			"provider": service.Provider(),
			"location": loc.Key(),
			"demo":     cfg.DemoMode,
		})
	})
	httpapi.RegisterRoutes(app, memStore, m)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	logger.Info("irrigation advisor started",
		zap.String("provider", service.Provider()),
		zap.String("location", loc.Key()),
		zap.Bool("demo", cfg.DemoMode),
		zap.String("port", cfg.Port))

	sched := scheduler.New(cfg.CycleInterval(), cfg.CycleLimit(), logger.Named("scheduler"))
	if err := sched.Run(ctx, "weather", func(ctx context.Context) error {
		_, err := cycle.Run(ctx)
		return err
	}); err != nil {
		logger.Error("scheduler failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("session summary",
		zap.String("summary", tally.String()),
		zap.Int("successful_cycles", tally.Count(advisor.OutcomeOK)))
	return 0
}

func newProvider(cfg *config.AppConfig, client *http.Client) weather.Provider {
	httpCfg := providers.HTTPClientConfig{Client: client}
	if cfg.Weather.RPS > 0 {
		httpCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.Weather.RPS), cfg.Weather.Burst)
	}

	switch cfg.Weather.Provider {
	case config.ProviderOpenMeteo:
		// Open-Meteo needs coordinates; without them cities are geocoded through Google.
		var geo providers.Geocoder
		if cfg.Weather.GeocoderAPIKey != "" {
			geo = providers.NewGoogleGeocoder(cfg.Weather.GeocoderAPIKey)
		}
		return providers.NewOpenMeteoProvider(httpCfg, geo)
	default:
		return providers.NewOpenWeatherProvider(httpCfg, cfg.Weather.OpenWeatherAPIKey)
	}
}
