package sink

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	"github.com/farmtech/irrigation-advisor/internal/config"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
)

// Build assembles the configured sinks behind a Fanout. A broker or database
// that cannot be reached at startup is logged and left out; the log sink is
// used when nothing remote remains. The returned func releases connections.
func Build(ctx context.Context, cfg config.SinkConfig, client *http.Client, m *metrics.Metrics, logger *zap.Logger) (*Fanout, func()) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		sinks   []advisor.Sink
		closers []func()
	)

	if cfg.RESTURL != "" {
		sinks = append(sinks, NewREST(RESTConfig{
			BaseURL:      cfg.RESTURL,
			APIKey:       cfg.RESTAPIKey,
			WeatherTable: cfg.WeatherTable,
			SoilTable:    cfg.SoilTable,
			Client:       client,
		}))
	}

	if cfg.MQTTBrokerURL != "" {
		c, err := NewMQTTClient(ctx, MQTTConfig{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
		}, logger)
		if err != nil {
			logger.Error("mqtt sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, NewMQTT(c, cfg.MQTTTopic))
			closers = append(closers, func() { c.Disconnect(250) })
		}
	}

	if cfg.InfluxURL != "" {
		c, w, err := NewInfluxClient(ctx, InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
		if err != nil {
			logger.Error("influx sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, NewInflux(w))
			closers = append(closers, c.Close)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, NewLog(logger))
	}

	f := NewFanout(m, logger, sinks...)
	logger.Info("sinks configured", zap.String("sinks", f.Name()))

	return f, func() {
		for _, c := range closers {
			c()
		}
	}
}
