package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
)

const DefaultTopicTemplate = "farm/{source}/{location}/command"

type MQTTConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	ConnectRetries int
	ConnectMaxWait time.Duration
}

// NewMQTTClient connects to the broker, retrying with exponential backoff.
// Only the initial connection is retried; publishes are single attempts.
func NewMQTTClient(ctx context.Context, cfg MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectMaxWait
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if token.Wait() && token.Error() != nil {
			logger.Warn("mqtt connect failed", zap.String("broker", cfg.BrokerURL), zap.Error(token.Error()))
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.BrokerURL, err)
	}

	logger.Info("connected to mqtt broker", zap.String("broker", cfg.BrokerURL))
	return client, nil
}

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes the decided command to the field controller. Messages are
// retained so a controller that reconnects picks up the current command;
// a cycle without a decision overwrites it with UNKNOWN.
type MQTT struct {
	client   Publisher
	template string
	qos      byte
}

func NewMQTT(client Publisher, topicTemplate string) *MQTT {
	if topicTemplate == "" {
		topicTemplate = DefaultTopicTemplate
	}
	return &MQTT{client: client, template: topicTemplate, qos: 1}
}

func (s *MQTT) Name() string { return "mqtt" }

type commandMessage struct {
	ReportID string    `json:"reportId"`
	Source   string    `json:"source"`
	Location string    `json:"location"`
	Command  string    `json:"command"`
	Irrigate bool      `json:"irrigate"`
	Reason   string    `json:"reason"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Topic expands the template for a report.
func (s *MQTT) Topic(r advisor.Report) string {
	return strings.NewReplacer(
		"{source}", string(r.Source),
		"{location}", slug(r.Location),
	).Replace(s.template)
}

func (s *MQTT) Push(ctx context.Context, r advisor.Report) error {
	payload, err := json.Marshal(commandMessage{
		ReportID: r.ID,
		Source:   string(r.Source),
		Location: r.Location,
		Command:  string(r.Decision.Command),
		Irrigate: r.Decision.Command.Irrigates(),
		Reason:   r.Decision.Reason,
		IssuedAt: r.StartedAt,
	})
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}

	token := s.client.Publish(s.Topic(r), s.qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return &SinkError{Sink: s.Name(), Err: fmt.Errorf("publish not acknowledged: %w", ctx.Err())}
	}
	if err := token.Error(); err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}
