package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/farmtech/irrigation-advisor/internal/irrigation"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location represents the place whose weather drives the irrigation decision.
// City is required; coordinates are optional and preferred by providers that
// support them.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Query returns the "city,country" form accepted by most weather APIs.
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return fmt.Sprintf("%s,%s", l.City, l.Country)
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Slug returns a lowercase, space-free form of the city for topic names.
func (l Location) Slug() string {
	return strings.ToLower(strings.Join(strings.Fields(l.City), "-"))
}

// Observation holds current conditions at a location.
type Observation struct {
	Location     Location  `json:"location"`
	Timestamp    time.Time `json:"timestamp"` // always UTC
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPercent"`
	PressureHpa  float64   `json:"pressureHpa"`
	WindSpeedMS  float64   `json:"windSpeedMs"`
	CloudCover   float64   `json:"cloudCoverPercent"`
	Condition    Condition `json:"condition"`
	Description  string    `json:"description"`
	Provider     string    `json:"provider"`
}

// ForecastEntry is one provider forecast slot.
type ForecastEntry struct {
	Time        time.Time
	PrecipMM    float64 // rain + snow over the slot
	Condition   Condition
	Description string
}

// RainForecast summarizes forecast precipitation over the lookahead window.
type RainForecast struct {
	WillRain    bool          `json:"willRain"`
	IntensityMM float64       `json:"intensityMm"`
	Condition   Condition     `json:"condition"`
	Description string        `json:"description"`
	Window      time.Duration `json:"window"`
	Entries     int           `json:"entries"`
	IssuedAt    time.Time     `json:"issuedAt"`
	Provider    string        `json:"provider"`
}

// Input converts the forecast into the evaluator's input record.
func (f RainForecast) Input() irrigation.RainInput {
	return irrigation.Rain(f.WillRain, f.IntensityMM)
}

// Snapshot is the result of one successful fetch.
type Snapshot struct {
	Observation Observation  `json:"observation"`
	Forecast    RainForecast `json:"forecast"`
}
