package weather

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Service fetches current conditions and the short-horizon forecast from a
// single provider and reduces them to a Snapshot.
type Service struct {
	provider  Provider
	lookahead time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(provider Provider, lookahead time.Duration, logger *zap.Logger) *Service {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:  provider,
		lookahead: lookahead,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Provider returns the name of the underlying provider.
func (s *Service) Provider() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Fetch returns the current observation and the rain forecast for loc.
// Every failure is reported as a *FetchError; partial results are discarded.
func (s *Service) Fetch(ctx context.Context, loc Location) (Snapshot, error) {
	if s.provider == nil {
		return Snapshot{}, &FetchError{Provider: "none", Op: "current", Err: ErrNotConfigured}
	}
	name := s.provider.Name()

	s.logger.Debug("fetching forecast", zap.String("provider", name), zap.String("location", loc.Key()))
	entries, err := s.provider.Forecast(ctx, loc, s.lookahead)
	if err != nil {
		return Snapshot{}, asFetchError(name, "forecast", err)
	}

	forecast, err := SummarizeForecast(entries, s.now(), s.lookahead)
	if err != nil {
		return Snapshot{}, &FetchError{Provider: name, Op: "forecast", Err: err}
	}
	forecast.Provider = name

	s.logger.Debug("fetching current conditions", zap.String("provider", name), zap.String("location", loc.Key()))
	obs, err := s.provider.Current(ctx, loc)
	if err != nil {
		return Snapshot{}, asFetchError(name, "current", err)
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.now()
	}
	obs.Location = loc
	obs.Provider = name

	return Snapshot{Observation: obs, Forecast: forecast}, nil
}

func asFetchError(provider, op string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Provider: provider, Op: op, Err: err}
}
