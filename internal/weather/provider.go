package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, Open-Meteo).
// Implementations fail closed: any transport, status or payload problem is
// returned as an error and never as zeroed fields.
type Provider interface {
	Name() string
	Current(ctx context.Context, loc Location) (Observation, error)
	Forecast(ctx context.Context, loc Location, lookahead time.Duration) ([]ForecastEntry, error)
}

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrEmptyForecast    = errors.New("no forecast entries inside lookahead window")
	ErrNotConfigured    = errors.New("provider not configured")
)

// FetchError describes a failed call to a weather provider.
type FetchError struct {
	Provider   string
	Op         string // "current" or "forecast"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
