package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/farmtech/irrigation-advisor/internal/weather"
)

const defaultGeocodeTimeout = 10 * time.Second

// Geocoder resolves a city to coordinates. Locate must return once ctx is done.
type Geocoder interface {
	Locate(ctx context.Context, loc weather.Location) (lat, lon float64, err error)
}

// OpenMeteoProvider implements weather.Provider for Open-Meteo. It needs
// coordinates; locations configured by city only are resolved once through
// the geocoder and cached.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	geocoder Geocoder

	mu     sync.Mutex
	coords map[string][2]float64
}

func NewOpenMeteoProvider(httpCfg HTTPClientConfig, geocoder Geocoder) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		httpCfg:  httpCfg,
		circuit:  newBreaker("openmeteo"),
		geocoder: geocoder,
		coords:   make(map[string][2]float64),
	}
}

// WithBaseURL points the provider at a different forecast endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoCurrentPayload struct {
	Current *struct {
		Time        int64    `json:"time"`
		Temperature *float64 `json:"temperature_2m" validate:"required"`
		Humidity    *float64 `json:"relative_humidity_2m" validate:"required"`
		Pressure    *float64 `json:"surface_pressure" validate:"required"`
		WindSpeed   *float64 `json:"wind_speed_10m" validate:"required"`
		CloudCover  *float64 `json:"cloud_cover" validate:"required"`
		WeatherCode *int     `json:"weather_code" validate:"required"`
	} `json:"current" validate:"required"`
}

type openMeteoHourlyPayload struct {
	Hourly *struct {
		Time          []int64    `json:"time" validate:"required"`
		Precipitation []*float64 `json:"precipitation" validate:"required"`
		WeatherCode   []int      `json:"weather_code" validate:"required"`
	} `json:"hourly" validate:"required"`
}

func (p *OpenMeteoProvider) Current(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	lat, lon, err := p.resolve(ctx, loc, "current")
	if err != nil {
		return weather.Observation{}, err
	}

	values := url.Values{}
	values.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m,cloud_cover,weather_code")

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, p.name, "current", p.request(lat, lon, values))
	if err != nil {
		return weather.Observation{}, err
	}

	var payload openMeteoCurrentPayload
	if err := decodePayload(resp, p.name, "current", &payload); err != nil {
		return weather.Observation{}, err
	}

	c := payload.Current
	ts := time.Now().UTC()
	if c.Time > 0 {
		ts = time.Unix(c.Time, 0).UTC()
	}
	cond := mapOpenMeteoCondition(*c.WeatherCode)

	return weather.Observation{
		Location:     loc,
		Timestamp:    ts,
		TemperatureC: round1(*c.Temperature),
		HumidityPct:  *c.Humidity,
		PressureHpa:  *c.Pressure,
		WindSpeedMS:  round1(*c.WindSpeed),
		CloudCover:   *c.CloudCover,
		Condition:    cond,
		Description:  string(cond),
		Provider:     p.name,
	}, nil
}

func (p *OpenMeteoProvider) Forecast(ctx context.Context, loc weather.Location, lookahead time.Duration) ([]weather.ForecastEntry, error) {
	lat, lon, err := p.resolve(ctx, loc, "forecast")
	if err != nil {
		return nil, err
	}

	hours := int(math.Ceil(lookahead.Hours()))
	if hours < 1 {
		hours = 1
	}
	values := url.Values{}
	values.Set("hourly", "precipitation,weather_code")
	values.Set("forecast_hours", strconv.Itoa(hours))

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, p.name, "forecast", p.request(lat, lon, values))
	if err != nil {
		return nil, err
	}

	var payload openMeteoHourlyPayload
	if err := decodePayload(resp, p.name, "forecast", &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	if len(h.Precipitation) != len(h.Time) || len(h.WeatherCode) != len(h.Time) {
		return nil, &weather.FetchError{
			Provider: p.name,
			Op:       "forecast",
			Err:      fmt.Errorf("%w: hourly arrays differ in length", weather.ErrMalformedPayload),
		}
	}

	entries := make([]weather.ForecastEntry, 0, len(h.Time))
	for i, ts := range h.Time {
		if h.Precipitation[i] == nil {
			return nil, &weather.FetchError{
				Provider: p.name,
				Op:       "forecast",
				Err:      fmt.Errorf("%w: precipitation missing for hour %d", weather.ErrMalformedPayload, i),
			}
		}
		cond := mapOpenMeteoCondition(h.WeatherCode[i])
		entries = append(entries, weather.ForecastEntry{
			Time:        time.Unix(ts, 0).UTC(),
			PrecipMM:    *h.Precipitation[i],
			Condition:   cond,
			Description: string(cond),
		})
	}
	return entries, nil
}

func (p *OpenMeteoProvider) request(lat, lon float64, extra url.Values) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("timeformat", "unixtime")
		values.Set("wind_speed_unit", "ms")
		for k, vs := range extra {
			for _, v := range vs {
				values.Add(k, v)
			}
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
}

func (p *OpenMeteoProvider) resolve(ctx context.Context, loc weather.Location, op string) (float64, float64, error) {
	if loc.HasCoordinates() {
		return *loc.Lat, *loc.Lon, nil
	}

	p.mu.Lock()
	c, ok := p.coords[loc.Key()]
	p.mu.Unlock()
	if ok {
		return c[0], c[1], nil
	}
	if p.geocoder == nil {
		return 0, 0, &weather.FetchError{
			Provider: p.name,
			Op:       op,
			Err:      fmt.Errorf("%w: openmeteo requires latitude and longitude", weather.ErrNotConfigured),
		}
	}

	gctx, cancel := context.WithTimeout(ctx, p.geocodeTimeout())
	defer cancel()

	lat, lon, err := p.geocoder.Locate(gctx, loc)
	if err != nil {
		return 0, 0, &weather.FetchError{Provider: p.name, Op: op, Err: fmt.Errorf("geocoding %s: %w", loc.Query(), err)}
	}

	p.mu.Lock()
	p.coords[loc.Key()] = [2]float64{lat, lon}
	p.mu.Unlock()
	return lat, lon, nil
}

// geocodeTimeout follows the HTTP client timeout so geocoding is bounded like
// every other outbound call.
func (p *OpenMeteoProvider) geocodeTimeout() time.Duration {
	if c := p.httpCfg.Client; c != nil && c.Timeout > 0 {
		return c.Timeout
	}
	return defaultGeocodeTimeout
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on WMO weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
