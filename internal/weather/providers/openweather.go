package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/farmtech/irrigation-advisor/internal/weather"
)

const (
	openWeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	openWeatherSlot    = 3 * time.Hour
)

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap
// (current weather and 5 day / 3 hour forecast).
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(httpCfg HTTPClientConfig, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: openWeatherBaseURL,
		httpCfg: httpCfg,
		circuit: newBreaker("openweather"),
	}
}

// WithBaseURL points the provider at a different API root.
func (p *OpenWeatherProvider) WithBaseURL(base string) *OpenWeatherProvider {
	p.baseURL = strings.TrimRight(base, "/")
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmWeatherItem struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owmCurrentPayload struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp     *float64 `json:"temp" validate:"required"`
		Humidity *float64 `json:"humidity" validate:"required"`
		Pressure *float64 `json:"pressure" validate:"required"`
	} `json:"main" validate:"required"`
	Wind *struct {
		Speed *float64 `json:"speed" validate:"required"`
	} `json:"wind" validate:"required"`
	Clouds *struct {
		All *float64 `json:"all" validate:"required"`
	} `json:"clouds" validate:"required"`
	Weather []owmWeatherItem `json:"weather" validate:"required,min=1"`
}

type owmPrecip struct {
	ThreeH float64 `json:"3h"`
}

type owmForecastPayload struct {
	List []struct {
		Dt      int64            `json:"dt" validate:"required"`
		Rain    *owmPrecip       `json:"rain"`
		Snow    *owmPrecip       `json:"snow"`
		Weather []owmWeatherItem `json:"weather" validate:"required,min=1"`
	} `json:"list" validate:"required,dive"`
}

func (p *OpenWeatherProvider) Current(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, &weather.FetchError{Provider: p.name, Op: "current", Err: weather.ErrNotConfigured}
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, p.name, "current", p.request("/weather", loc, nil))
	if err != nil {
		return weather.Observation{}, err
	}

	var payload owmCurrentPayload
	if err := decodePayload(resp, p.name, "current", &payload); err != nil {
		return weather.Observation{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	return weather.Observation{
		Location:     loc,
		Timestamp:    ts,
		TemperatureC: round1(*payload.Main.Temp),
		HumidityPct:  *payload.Main.Humidity,
		PressureHpa:  *payload.Main.Pressure,
		WindSpeedMS:  round1(*payload.Wind.Speed),
		CloudCover:   *payload.Clouds.All,
		Condition:    mapOpenWeatherCondition(payload.Weather),
		Description:  payload.Weather[0].Description,
		Provider:     p.name,
	}, nil
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, loc weather.Location, lookahead time.Duration) ([]weather.ForecastEntry, error) {
	if p.apiKey == "" {
		return nil, &weather.FetchError{Provider: p.name, Op: "forecast", Err: weather.ErrNotConfigured}
	}

	// One slot of slack so the window is covered whatever the current time.
	cnt := int(math.Ceil(float64(lookahead)/float64(openWeatherSlot))) + 1
	extra := url.Values{}
	extra.Set("cnt", strconv.Itoa(cnt))

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, p.name, "forecast", p.request("/forecast", loc, extra))
	if err != nil {
		return nil, err
	}

	var payload owmForecastPayload
	if err := decodePayload(resp, p.name, "forecast", &payload); err != nil {
		return nil, err
	}

	entries := make([]weather.ForecastEntry, 0, len(payload.List))
	for _, item := range payload.List {
		var precip float64
		if item.Rain != nil {
			precip += item.Rain.ThreeH
		}
		if item.Snow != nil {
			precip += item.Snow.ThreeH
		}
		entries = append(entries, weather.ForecastEntry{
			Time:        time.Unix(item.Dt, 0).UTC(),
			PrecipMM:    precip,
			Condition:   mapOpenWeatherCondition(item.Weather),
			Description: item.Weather[0].Description,
		})
	}
	return entries, nil
}

func (p *OpenWeatherProvider) request(path string, loc weather.Location, extra url.Values) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		if loc.HasCoordinates() {
			values.Set("lat", fmt.Sprintf("%f", *loc.Lat))
			values.Set("lon", fmt.Sprintf("%f", *loc.Lon))
		} else {
			values.Set("q", loc.Query())
		}
		for k, vs := range extra {
			for _, v := range vs {
				values.Add(k, v)
			}
		}

		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
}

func mapOpenWeatherCondition(items []owmWeatherItem) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
