package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
)

// RESTConfig describes a PostgREST endpoint such as Supabase's /rest/v1.
type RESTConfig struct {
	BaseURL      string
	APIKey       string
	WeatherTable string
	SoilTable    string
	Client       *http.Client
}

// REST inserts one row per report into the table matching the report source.
type REST struct {
	cfg     RESTConfig
	circuit *gobreaker.CircuitBreaker
}

func NewREST(cfg RESTConfig) *REST {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.WeatherTable == "" {
		cfg.WeatherTable = "weather_reports"
	}
	if cfg.SoilTable == "" {
		cfg.SoilTable = "sensor_data"
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &REST{
		cfg: cfg,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "rest-sink",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (s *REST) Name() string { return "rest" }

type weatherRow struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Location      string    `json:"location"`
	WillRain      bool      `json:"will_rain"`
	IntensityMM   float64   `json:"intensity_mm"`
	Condition     string    `json:"condition"`
	TemperatureC  float64   `json:"temperature_c"`
	HumidityPct   float64   `json:"humidity_pct"`
	PressureHpa   float64   `json:"pressure_hpa"`
	WindSpeedMS   float64   `json:"wind_speed_ms"`
	CloudCoverPct float64   `json:"cloud_cover_pct"`
	Command       string    `json:"command"`
}

type soilRow struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	FieldID     string    `json:"field_id"`
	Nitrogen    bool      `json:"nitrogen"`
	Phosphorus  bool      `json:"phosphorus"`
	Potassium   bool      `json:"potassium"`
	PH          float64   `json:"ph"`
	MoisturePct float64   `json:"moisture_pct"`
	Pump        bool      `json:"pump"`
	Command     string    `json:"command"`
}

func (s *REST) row(r advisor.Report) (string, any, error) {
	switch r.Source {
	case advisor.SourceWeather:
		if r.Forecast == nil || r.Observation == nil {
			return "", nil, fmt.Errorf("weather report %s has no snapshot", r.ID)
		}
		return s.cfg.WeatherTable, weatherRow{
			ID:            r.ID,
			CreatedAt:     r.StartedAt,
			Location:      r.Location,
			WillRain:      r.Forecast.WillRain,
			IntensityMM:   r.Forecast.IntensityMM,
			Condition:     r.Forecast.Description,
			TemperatureC:  r.Observation.TemperatureC,
			HumidityPct:   r.Observation.HumidityPct,
			PressureHpa:   r.Observation.PressureHpa,
			WindSpeedMS:   r.Observation.WindSpeedMS,
			CloudCoverPct: r.Observation.CloudCover,
			Command:       string(r.Decision.Command),
		}, nil
	case advisor.SourceSoil:
		if r.Soil == nil {
			return "", nil, fmt.Errorf("soil report %s has no reading", r.ID)
		}
		return s.cfg.SoilTable, soilRow{
			ID:          r.ID,
			CreatedAt:   r.StartedAt,
			FieldID:     r.Soil.FieldID,
			Nitrogen:    r.Soil.Nitrogen,
			Phosphorus:  r.Soil.Phosphorus,
			Potassium:   r.Soil.Potassium,
			PH:          r.Soil.PH,
			MoisturePct: r.Soil.MoisturePct,
			Pump:        r.Decision.Command.Irrigates(),
			Command:     string(r.Decision.Command),
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownSource, r.Source)
	}
}

// Push skips reports without a decision; the tables only record evaluated
// cycles.
func (s *REST) Push(ctx context.Context, r advisor.Report) error {
	if r.Outcome != advisor.OutcomeOK {
		return nil
	}
	fail := func(status int, err error) error {
		return &SinkError{Sink: s.Name(), StatusCode: status, Err: err}
	}

	table, row, err := s.row(r)
	if err != nil {
		return fail(0, err)
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fail(0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/"+table, bytes.NewReader(body))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	var status int
	_, err = s.circuit.Execute(func() (interface{}, error) {
		resp, err := s.cfg.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			io.Copy(io.Discard, resp.Body)
			return nil, nil
		}
		status = resp.StatusCode
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fail(0, fmt.Errorf("%w: %v", ErrCircuitOpen, err))
		}
		return fail(status, err)
	}
	return nil
}
