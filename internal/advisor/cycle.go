package advisor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmtech/irrigation-advisor/internal/irrigation"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
	"github.com/farmtech/irrigation-advisor/internal/soil"
	"github.com/farmtech/irrigation-advisor/internal/weather"
)

const defaultPushTimeout = 10 * time.Second

// Fetcher is satisfied by *weather.Service.
type Fetcher interface {
	Provider() string
	Fetch(ctx context.Context, loc weather.Location) (weather.Snapshot, error)
}

// ReadingSource is satisfied by *soil.Generator.
type ReadingSource interface {
	Next() soil.Reading
}

// Deps are the collaborators shared by both cycles. Every field is optional.
type Deps struct {
	Sink        Sink
	Store       ReportStore
	Tally       *Tally
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	PushTimeout time.Duration
}

type cycle struct {
	Deps
	now func() time.Time
}

func newCycle(d Deps) cycle {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.PushTimeout <= 0 {
		d.PushTimeout = defaultPushTimeout
	}
	return cycle{Deps: d, now: func() time.Time { return time.Now().UTC() }}
}

func (c *cycle) begin(src Source, location string) Report {
	return Report{
		ID:        uuid.NewString(),
		Source:    src,
		Location:  location,
		StartedAt: c.now(),
	}
}

// push hands an evaluated report to the sink. It is a single attempt bounded
// by PushTimeout; a failure marks the report and is returned.
func (c *cycle) push(ctx context.Context, r *Report) error {
	if c.Sink == nil {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, c.PushTimeout)
	defer cancel()

	if err := c.Sink.Push(pctx, *r); err != nil {
		r.Outcome = OutcomeSinkError
		r.Error = err.Error()
		return err
	}
	return nil
}

// suspend pushes a report that carries no usable decision so command
// channels replace their last go-ahead with UNKNOWN. The report keeps its
// outcome; a push failure is joined to the cycle error.
func (c *cycle) suspend(ctx context.Context, r Report, err error) error {
	if c.Sink == nil {
		return err
	}
	pctx, cancel := context.WithTimeout(ctx, c.PushTimeout)
	defer cancel()

	if perr := c.Sink.Push(pctx, r); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

func (c *cycle) finish(r Report, err error) (Report, error) {
	if c.Store != nil {
		c.Store.SaveReport(r)
	}
	c.Tally.Record(r)
	c.Metrics.ObserveCycle(string(r.Source), string(r.Outcome), c.now().Sub(r.StartedAt))
	c.Metrics.ObserveDecision(string(r.Source), string(r.Decision.Command))

	fields := []zap.Field{
		zap.String("source", string(r.Source)),
		zap.String("location", r.Location),
		zap.String("outcome", string(r.Outcome)),
		zap.String("command", string(r.Decision.Command)),
		zap.String("reason", r.Decision.Reason),
	}
	if err != nil {
		c.Logger.Warn("cycle finished with error", append(fields, zap.Error(err))...)
	} else {
		c.Logger.Info("cycle finished", fields...)
	}
	return r, err
}

// WeatherCycle runs fetch, evaluate and push for one location.
type WeatherCycle struct {
	cycle
	fetcher  Fetcher
	location weather.Location
}

func NewWeatherCycle(fetcher Fetcher, loc weather.Location, deps Deps) *WeatherCycle {
	return &WeatherCycle{cycle: newCycle(deps), fetcher: fetcher, location: loc}
}

// Run executes one cycle. On a fetch error the evaluator is not invoked; the
// report is stored and pushed with command UNKNOWN.
func (w *WeatherCycle) Run(ctx context.Context) (Report, error) {
	r := w.begin(SourceWeather, w.location.Key())

	snap, err := w.fetcher.Fetch(ctx, w.location)
	if err != nil {
		provider := w.fetcher.Provider()
		var fe *weather.FetchError
		if errors.As(err, &fe) && fe.Provider != "" {
			provider = fe.Provider
		}
		w.Metrics.FetchError(provider)

		r.Decision = irrigation.Unknown(irrigation.RuleWeather)
		r.Outcome = OutcomeFetchError
		r.Error = err.Error()
		return w.finish(r, w.suspend(ctx, r, err))
	}
	r.Observation = &snap.Observation
	r.Forecast = &snap.Forecast

	decision, err := irrigation.EvaluateRain(snap.Forecast.Input())
	r.Decision = decision
	if err != nil {
		r.Outcome = OutcomeInsufficientData
		r.Error = err.Error()
		return w.finish(r, w.suspend(ctx, r, err))
	}

	r.Outcome = OutcomeOK
	err = w.push(ctx, &r)
	return w.finish(r, err)
}

// SoilCycle runs simulate, evaluate and push for one field.
type SoilCycle struct {
	cycle
	source ReadingSource
}

func NewSoilCycle(source ReadingSource, deps Deps) *SoilCycle {
	return &SoilCycle{cycle: newCycle(deps), source: source}
}

func (s *SoilCycle) Run(ctx context.Context) (Report, error) {
	reading := s.source.Next()
	r := s.begin(SourceSoil, reading.FieldID)
	r.Soil = &reading

	decision, err := irrigation.EvaluateSoil(reading.Input())
	r.Decision = decision
	if err != nil {
		r.Outcome = OutcomeInsufficientData
		r.Error = err.Error()
		return s.finish(r, s.suspend(ctx, r, err))
	}

	r.Outcome = OutcomeOK
	err = s.push(ctx, &r)
	return s.finish(r, err)
}
