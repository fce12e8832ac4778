package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/farmtech/irrigation-advisor/internal/weather"
)

const (
	ProviderOpenWeather = "openweather"
	ProviderOpenMeteo   = "openmeteo"
)

type AppConfig struct {
	// DemoMode runs a short bounded session instead of continuous polling.
	DemoMode bool

	Location  LocationConfig
	Weather   WeatherConfig
	Schedule  ScheduleConfig
	Sinks     SinkConfig
	Simulator SimulatorConfig
	Store     StoreConfig

	Port string `validate:"required,numeric"`
	Log  LogConfig
}

type LocationConfig struct {
	City    string `validate:"required"`
	Country string
	Lat     *float64 `validate:"required_with=Lon,omitempty,gte=-90,lte=90"`
	Lon     *float64 `validate:"required_with=Lat,omitempty,gte=-180,lte=180"`
}

// Location converts the section into the provider-facing type.
func (l LocationConfig) Location() weather.Location {
	return weather.Location{City: l.City, Country: l.Country, Lat: l.Lat, Lon: l.Lon}
}

type WeatherConfig struct {
	Provider          string `validate:"oneof=openweather openmeteo"`
	OpenWeatherAPIKey string `validate:"required_if=Provider openweather"`
	GeocoderAPIKey    string

	Lookahead   time.Duration `validate:"gt=0"`
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Outbound request budget; RPS 0 disables the limiter.
	RPS   float64 `validate:"gte=0"`
	Burst int     `validate:"gte=1"`
}

type ScheduleConfig struct {
	DemoCycles   int           `validate:"gte=1"`
	DemoInterval time.Duration `validate:"gt=0"`
	PollInterval time.Duration `validate:"gt=0"`
	MaxCycles    int           `validate:"gte=0"` // 0 = until stopped
}

type SinkConfig struct {
	RESTURL      string `validate:"omitempty,url"`
	RESTAPIKey   string `validate:"required_with=RESTURL"`
	WeatherTable string
	SoilTable    string

	MQTTBrokerURL string `validate:"omitempty,url"`
	MQTTClientID  string `validate:"required_with=MQTTBrokerURL"`
	MQTTUsername  string
	MQTTPassword  string
	MQTTTopic     string

	InfluxURL    string `validate:"omitempty,url"`
	InfluxToken  string `validate:"required_with=InfluxURL"`
	InfluxOrg    string `validate:"required_with=InfluxURL"`
	InfluxBucket string `validate:"required_with=InfluxURL"`

	PushTimeout time.Duration `validate:"gt=0"`
}

type SimulatorConfig struct {
	FieldID  string        `validate:"required"`
	Interval time.Duration `validate:"gt=0"`
	Cycles   int           `validate:"gte=0"` // 0 = until stopped
	Seed     int64
}

type StoreConfig struct {
	MaxHistory int           `validate:"gte=0"` // reports per key, 0 = unlimited
	MaxAge     time.Duration `validate:"gte=0"` // 0 = unlimited
}

type LogConfig struct {
	Level       string `validate:"omitempty,oneof=debug info warn error"`
	Development bool
}

var validate = validator.New()

// Load reads configuration from the environment, after merging an optional
// .env file. The weather section is checked separately by RequireWeather so
// binaries that do not poll a provider do not need its credentials.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var env envReader
	cfg := &AppConfig{
		DemoMode: env.bool("DEMO_MODE", true),
		Location: LocationConfig{
			City:    getenvDefault("LOCATION_CITY", "São Paulo"),
			Country: getenvDefault("LOCATION_COUNTRY", "BR"),
			Lat:     env.optionalFloat("LOCATION_LAT"),
			Lon:     env.optionalFloat("LOCATION_LON"),
		},
		Weather: WeatherConfig{
			Provider:          strings.ToLower(getenvDefault("WEATHER_PROVIDER", ProviderOpenWeather)),
			OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
			GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
			Lookahead:         env.duration("LOOKAHEAD", "6h"),
			HTTPTimeout:       env.duration("HTTP_TIMEOUT", "10s"),
			RPS:               env.float("PROVIDER_RPS", 1),
			Burst:             env.int("PROVIDER_BURST", 2),
		},
		Schedule: ScheduleConfig{
			DemoCycles:   env.int("DEMO_CYCLES", 3),
			DemoInterval: env.duration("DEMO_INTERVAL", "10s"),
			PollInterval: env.duration("POLL_INTERVAL", "5m"),
			MaxCycles:    env.int("MAX_CYCLES", 0),
		},
		Sinks: SinkConfig{
			RESTURL:       os.Getenv("SINK_REST_URL"),
			RESTAPIKey:    os.Getenv("SINK_REST_KEY"),
			WeatherTable:  getenvDefault("SINK_WEATHER_TABLE", "weather_reports"),
			SoilTable:     getenvDefault("SINK_SOIL_TABLE", "sensor_data"),
			MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
			MQTTClientID:  getenvDefault("MQTT_CLIENT_ID", "irrigation-advisor"),
			MQTTUsername:  os.Getenv("MQTT_USER"),
			MQTTPassword:  os.Getenv("MQTT_PASSWORD"),
			MQTTTopic:     getenvDefault("MQTT_TOPIC", "farm/{source}/{location}/command"),
			InfluxURL:     os.Getenv("INFLUX_URL"),
			InfluxToken:   os.Getenv("INFLUX_TOKEN"),
			InfluxOrg:     os.Getenv("INFLUX_ORG"),
			InfluxBucket:  os.Getenv("INFLUX_BUCKET"),
			PushTimeout:   env.duration("SINK_PUSH_TIMEOUT", "10s"),
		},
		Simulator: SimulatorConfig{
			FieldID:  getenvDefault("SIM_FIELD_ID", "field-1"),
			Interval: env.duration("SIM_INTERVAL", "10s"),
			Cycles:   env.int("SIM_CYCLES", 0),
			Seed:     int64(env.int("SIM_SEED", 0)),
		},
		Store: StoreConfig{
			MaxHistory: env.int("STORE_MAX_HISTORY", 96),
			MaxAge:     env.duration("STORE_MAX_AGE", "24h"),
		},
		Port: getenvDefault("PORT", "8080"),
		Log: LogConfig{
			Level:       strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
			Development: env.bool("LOG_DEVELOPMENT", false),
		},
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	if err := validate.StructExcept(cfg, "Weather"); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ErrNoCoordinates is returned for Open-Meteo when the location has neither
// coordinates nor a geocoder key to resolve them.
var ErrNoCoordinates = errors.New("openmeteo needs LOCATION_LAT/LOCATION_LON or GEOCODER_API_KEY")

// RequireWeather checks the weather provider section. A missing OpenWeatherMap
// key when that provider is selected is reported here, as is an Open-Meteo
// location that cannot be resolved to coordinates.
func (c *AppConfig) RequireWeather() error {
	if err := validate.Struct(c.Weather); err != nil {
		return fmt.Errorf("invalid weather config: %w", err)
	}
	if c.Weather.Provider == ProviderOpenMeteo && !c.Location.Location().HasCoordinates() && c.Weather.GeocoderAPIKey == "" {
		return fmt.Errorf("invalid weather config: %w", ErrNoCoordinates)
	}
	return nil
}

// CycleInterval is the weather polling cadence for the selected mode.
func (c *AppConfig) CycleInterval() time.Duration {
	if c.DemoMode {
		return c.Schedule.DemoInterval
	}
	return c.Schedule.PollInterval
}

// CycleLimit is the number of weather cycles to run, 0 meaning no limit.
func (c *AppConfig) CycleLimit() int {
	if c.DemoMode {
		return c.Schedule.DemoCycles
	}
	return c.Schedule.MaxCycles
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envReader parses typed variables and collects every parse error.
type envReader struct {
	errs []error
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (r *envReader) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *envReader) optionalFloat(key string) *float64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return nil
	}
	return &f
}

func (r *envReader) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *envReader) duration(key, def string) time.Duration {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		r.fail(key, err)
	}
	return d
}
