package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string
	QoS            byte
	ConnectTimeout time.Duration
}

// ConnectMQTT opens a broker connection with auto-reconnect enabled.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// MQTTPublisher publishes readings to a single MQTT topic.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

func NewMQTTPublisher(client mqtt.Client, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

// Publish sends data and waits for the broker acknowledgment.
func (p *MQTTPublisher) Publish(ctx context.Context, data []byte) (string, error) {
	token := p.client.Publish(p.topic, p.qos, false, data)
	if err := waitToken(ctx, token); err != nil {
		return "", fmt.Errorf("publishing to topic %s: %w", p.topic, err)
	}
	if pt, ok := token.(*mqtt.PublishToken); ok && pt.MessageID() != 0 {
		return strconv.Itoa(int(pt.MessageID())), nil
	}
	// QoS 0 messages carry no broker id.
	return uuid.New().String(), nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// MQTTSubscriber delivers messages from an MQTT topic.
type MQTTSubscriber struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger zerolog.Logger
}

func NewMQTTSubscriber(client mqtt.Client, topic string, qos byte, logger zerolog.Logger) *MQTTSubscriber {
	return &MQTTSubscriber{client: client, topic: topic, qos: qos, logger: logger}
}

// Run subscribes and blocks until ctx is cancelled. The broker redelivers
// nothing on handler failure, so failed messages are only logged.
func (s *MQTTSubscriber) Run(ctx context.Context, handle Handler) error {
	callback := func(_ mqtt.Client, m mqtt.Message) {
		msg := Message{
			ID:          strconv.Itoa(int(m.MessageID())),
			Data:        m.Payload(),
			PublishTime: time.Now(),
		}
		if err := handle(ctx, msg); err != nil {
			s.logger.Error().Err(err).
				Str("topic", m.Topic()).
				Str("message_id", msg.ID).
				Bool("poison", errors.Is(err, ErrPoison)).
				Msg("failed to handle MQTT message")
		}
	}

	token := s.client.Subscribe(s.topic, s.qos, callback)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("subscribing to topic %s: %w", s.topic, err)
	}
	s.logger.Info().Str("topic", s.topic).Msg("subscribed")

	<-ctx.Done()

	unsub := s.client.Unsubscribe(s.topic)
	unsub.WaitTimeout(time.Second)
	return nil
}

func (s *MQTTSubscriber) Close() error {
	s.client.Disconnect(250)
	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
