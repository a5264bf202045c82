// Package mqttbridge forwards search and launch events from the in-process
// bus to an MQTT broker so that external dashboards can follow sessions.
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/event"
)

// Config holds broker settings. The bridge is disabled when Broker is empty.
type Config struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		ClientID:       "skillpath",
		TopicPrefix:    "skillpath",
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// Publisher is the subset of mqtt.Client the bridge needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Subscriber is the subscribing half of the event bus.
type Subscriber interface {
	Subscribe(topic string, handler event.Handler) func()
}

// message is the JSON body written to the broker.
type message struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Bridge republishes bus events under cfg.TopicPrefix.
type Bridge struct {
	client Publisher
	cfg    Config
	logger *zap.Logger
}

// New creates a bridge over an already connected client.
func New(client Publisher, cfg Config, logger *zap.Logger) *Bridge {
	return &Bridge{client: client, cfg: cfg, logger: logger}
}

// Connect dials the configured broker and returns a bridge plus a function
// that disconnects it.
func Connect(cfg Config, logger *zap.Logger) (*Bridge, func(), error) {
	if !cfg.Enabled() {
		return nil, nil, errors.New("mqttbridge: no broker configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		return nil, nil, fmt.Errorf("connect %s: timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}

	logger.Info("mqtt bridge connected", zap.String("broker", cfg.Broker))
	return New(client, cfg, logger), func() { client.Disconnect(250) }, nil
}

// Subscribe attaches the bridge to bus and returns a function that detaches it.
func (b *Bridge) Subscribe(bus Subscriber) func() {
	unsubs := []func(){
		bus.Subscribe(event.TopicSearchRecorded, b.forward),
		bus.Subscribe(event.TopicContentLaunched, b.forward),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// TopicFor maps a bus topic to its broker topic, e.g. "search.recorded"
// becomes "skillpath/search/recorded".
func (b *Bridge) TopicFor(busTopic string) string {
	t := strings.ReplaceAll(busTopic, ".", "/")
	if b.cfg.TopicPrefix == "" {
		return t
	}
	return strings.TrimSuffix(b.cfg.TopicPrefix, "/") + "/" + t
}

func (b *Bridge) forward(_ context.Context, e event.Event) {
	body, err := json.Marshal(message{
		Topic:     e.Topic,
		Source:    e.Source,
		Timestamp: e.Timestamp,
		Payload:   e.Payload,
	})
	if err != nil {
		b.logger.Warn("encode event", zap.String("topic", e.Topic), zap.Error(err))
		return
	}

	topic := b.TopicFor(e.Topic)
	tok := b.client.Publish(topic, b.cfg.QoS, false, body)
	if b.cfg.PublishTimeout <= 0 {
		tok.Wait()
	} else if !tok.WaitTimeout(b.cfg.PublishTimeout) {
		b.logger.Warn("mqtt publish timed out", zap.String("topic", topic))
		return
	}
	if err := tok.Error(); err != nil {
		b.logger.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
