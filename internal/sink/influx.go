package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
)

const measurement = "irrigation_report"

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

const influxPingTimeout = 5 * time.Second

// NewInfluxClient pings the server and returns the client, to be closed by
// the caller, and its blocking write API.
func NewInfluxClient(ctx context.Context, cfg InfluxConfig) (influxdb2.Client, PointWriter, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, nil, fmt.Errorf("influx config incomplete")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	pctx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()
	ok, err := client.Ping(pctx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = ErrUnexpectedStatus
		}
		return nil, nil, fmt.Errorf("ping influx at %s: %w", cfg.URL, err)
	}
	return client, client.WriteAPIBlocking(cfg.Org, cfg.Bucket), nil
}

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Influx writes one point per report.
type Influx struct {
	writer PointWriter
}

func NewInflux(writer PointWriter) *Influx {
	return &Influx{writer: writer}
}

func (s *Influx) Name() string { return "influx" }

func (s *Influx) Push(ctx context.Context, r advisor.Report) error {
	if r.Outcome != advisor.OutcomeOK {
		return nil
	}
	if err := s.writer.WritePoint(ctx, reportPoint(r)); err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}

func reportPoint(r advisor.Report) *write.Point {
	tags := map[string]string{
		"source":   string(r.Source),
		"location": r.Location,
		"command":  string(r.Decision.Command),
	}
	fields := map[string]interface{}{
		"irrigate": r.Decision.Command.Irrigates(),
	}
	if o := r.Observation; o != nil {
		fields["temperature_c"] = o.TemperatureC
		fields["humidity_pct"] = o.HumidityPct
		fields["pressure_hpa"] = o.PressureHpa
		fields["wind_speed_ms"] = o.WindSpeedMS
		fields["cloud_cover_pct"] = o.CloudCover
	}
	if f := r.Forecast; f != nil {
		fields["will_rain"] = f.WillRain
		fields["intensity_mm"] = f.IntensityMM
	}
	if sr := r.Soil; sr != nil {
		fields["nitrogen"] = sr.Nitrogen
		fields["phosphorus"] = sr.Phosphorus
		fields["potassium"] = sr.Potassium
		fields["ph"] = sr.PH
		fields["moisture_pct"] = sr.MoisturePct
	}
	return influxdb2.NewPoint(measurement, tags, fields, r.StartedAt)
}
