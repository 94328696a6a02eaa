package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures a broker connection for alert publishing.
type MQTTOptions struct {
	Name     string
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// MQTTSink publishes events to an MQTT topic with QoS 1.
type MQTTSink struct {
	opts   MQTTOptions
	client mqtt.Client
}

// NewMQTTSink connects to the broker. The connection auto-reconnects;
// publishes while disconnected fail fast.
func NewMQTTSink(opts MQTTOptions) (*MQTTSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetConnectTimeout(opts.Timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("connect mqtt broker %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", opts.Broker, err)
	}
	return &MQTTSink{opts: opts, client: client}, nil
}

func (s *MQTTSink) Name() string { return s.opts.Name }

func (s *MQTTSink) Send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	token := s.client.Publish(s.opts.Topic, 1, false, payload)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", s.opts.Topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
