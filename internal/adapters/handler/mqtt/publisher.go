package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"serverguard.keepalive/internal/core/domain"
	"serverguard.keepalive/internal/core/logger"
)

var ErrNotConnected = errors.New("mqtt: not connected")

// Publisher mirrors activity log entries and scheduler state to an MQTT broker.
// Topics: <prefix>/logs/<kind> and <prefix>/status (retained).
type Publisher struct {
	client mqtt.Client
	prefix string
}

// NewPublisher initializes the MQTT publisher
func NewPublisher(brokerURL, prefix string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("serverguard-%d", time.Now().UnixNano()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", brokerURL, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	logger.Info("Connected to MQTT broker", "broker", brokerURL)
	return NewPublisherWithClient(client, prefix), nil
}

func NewPublisherWithClient(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "serverguard"
	}
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Name() string {
	return "mqtt"
}

func (p *Publisher) LogTopic(kind domain.LogKind) string {
	return fmt.Sprintf("%s/logs/%s", p.prefix, kind)
}

func (p *Publisher) StatusTopic() string {
	return p.prefix + "/status"
}

func (p *Publisher) PublishLog(ctx context.Context, entry domain.SystemLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.LogTopic(entry.Kind), false, payload)
}

// PublishState sends the scheduler state as a retained message so late
// subscribers see the current status.
func (p *Publisher) PublishState(ctx context.Context, state domain.SchedulerState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.StatusTopic(), true, payload)
}

func (p *Publisher) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, 0, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check implements ports.HealthChecker.
func (p *Publisher) Check(ctx context.Context) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
