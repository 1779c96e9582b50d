// Package events publishes check results to an MQTT broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"beer-scanner-backend/config"
)

// CheckEvent is the payload published after a check reaches a terminal state.
type CheckEvent struct {
	BarID      int64     `json:"bar_id"`
	CheckID    int64     `json:"check_id"`
	Status     string    `json:"status"`
	HasChanges bool      `json:"has_changes"`
	Added      []string  `json:"added"`
	Removed    []string  `json:"removed"`
	At         time.Time `json:"at"`
}

// Publisher emits check events.
type Publisher interface {
	PublishCheck(ctx context.Context, ev CheckEvent) error
	Close()
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishCheck(context.Context, CheckEvent) error { return nil }
func (Nop) Close()                                         {}

// MQTTPublisher publishes events to <prefix>/bars/<barID>/checks.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewMQTTPublisher connects to the broker described by cfg.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection to MQTT broker lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection error: %w", err)
	}
	return newPublisher(client, cfg.TopicPrefix, cfg.QoS, logger), nil
}

func newPublisher(client mqtt.Client, prefix string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, logger: logger}
}

// Topic returns the topic of a bar's check events.
func (p *MQTTPublisher) Topic(barID int64) string {
	return fmt.Sprintf("%s/bars/%d/checks", p.prefix, barID)
}

func (p *MQTTPublisher) PublishCheck(ctx context.Context, ev CheckEvent) error {
	if !p.client.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(ev.BarID), p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return errors.New("mqtt publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
