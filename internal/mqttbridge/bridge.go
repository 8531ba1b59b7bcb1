// Package mqttbridge relays crowd-sensor samples from an MQTT broker onto
// the Kafka samples topic, for IoT gateways that publish over MQTT rather
// than calling the HTTP ingest API.
package mqttbridge

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sapang3/vision-crowd/internal/contracts"
	"github.com/Sapang3/vision-crowd/internal/mq"
)

const connectTimeout = 10 * time.Second

// Bridge subscribes one MQTT topic filter and republishes every valid
// sample to Kafka.
type Bridge struct {
	client mqtt.Client
	writer *kafka.Writer
	logger *zap.Logger
	topic  string
}

// New connects to the broker. The writer is owned by the caller.
func New(brokerURL, clientID, topic string, writer *kafka.Writer, logger *zap.Logger) (*Bridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", brokerURL, token.Error())
	}

	return &Bridge{client: client, writer: writer, logger: logger, topic: topic}, nil
}

// Start subscribes the topic filter. Samples with no ID or timestamp are
// enriched, malformed payloads are logged and skipped.
func (b *Bridge) Start(ctx context.Context) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		sample, err := mq.DecodeJSON[contracts.RawSample](msg.Payload())
		if err != nil {
			b.logger.Warn("drop malformed mqtt sample",
				zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		if sample.ID == "" {
			sample.ID = uuid.NewString()
		}
		if sample.Timestamp.IsZero() {
			sample.Timestamp = time.Now().UTC()
		}

		if err := mq.PublishJSON(ctx, b.writer, sample.Key(), sample); err != nil {
			b.logger.Error("relay mqtt sample to kafka", zap.Error(err))
		}
	}

	if token := b.client.Subscribe(b.topic, 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, token.Error())
	}
	b.logger.Info("mqtt bridge subscribed", zap.String("topic", b.topic))
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}
