// Package mqtt mirrors uploaded readings to an MQTT broker.
//
// The mirror is best effort: publish failures are logged and never reach
// the polling pipeline.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jpalmerr/aurorapulse/internal/clock"
)

const (
	publishWaitTimeout = 5 * time.Second
	disconnectQuiesce  = 250 // ms

	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Config describes the broker connection.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
}

// Message is the JSON payload published for every upload.
type Message struct {
	SessionID  string    `json:"session_id"`
	EnergyWh   uint32    `json:"energy_wh"`
	VoltageV   float32   `json:"voltage_v"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// client is the subset of paho.Client used by Publisher.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher publishes [Message]s to one topic.
type Publisher struct {
	client client
	topic  string
	qos    byte
	clk    clock.Clock
	logger *slog.Logger
}

// New builds a Publisher. It does not connect; call [Publisher.Connect].
func New(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt: topic required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker, "topic", cfg.Topic)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}

	return newPublisher(paho.NewClient(opts), cfg.Topic, cfg.QoS, clock.Real(), logger), nil
}

func newPublisher(c client, topic string, qos byte, clk clock.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{client: c, topic: topic, qos: qos, clk: clk, logger: logger}
}

// Connect connects to the broker, retrying with exponential backoff
// until it succeeds or ctx is done.
func (p *Publisher) Connect(ctx context.Context) error {
	backoff := initialBackoff
	for {
		token := p.client.Connect()
		if token.Wait() && token.Error() == nil {
			return nil
		}
		p.logger.Warn("mqtt connect failed, retrying",
			"error", token.Error(),
			"backoff", backoff.String(),
		)
		if err := clock.Sleep(ctx, p.clk, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// Publish sends msg without waiting for the broker. Failures are logged.
func (p *Publisher) Publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("mqtt payload encoding failed", "error", err)
		return
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	go func() {
		if !token.WaitTimeout(publishWaitTimeout) {
			p.logger.Warn("mqtt publish timed out", "topic", p.topic)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("mqtt publish failed", "topic", p.topic, "error", err)
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
