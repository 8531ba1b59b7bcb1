// Package mq wraps the Kafka plumbing shared by the services: one writer
// per produced topic, one consumer-group reader per service, JSON payloads.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter builds a writer for one topic. Writes are synchronous with a
// short batch window; a lost sample is cheaper than an unbounded buffer in
// front of a safety pipeline.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		Async:        false,
	}
}

// NewReader builds a consumer-group reader for one topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        time.Second,
	})
}

// PublishJSON marshals payload and writes it under the given partition key.
func PublishJSON(ctx context.Context, writer *kafka.Writer, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", writer.Topic, err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	})
}

// DecodeJSON unmarshals a message body into T. Split from the Kafka message
// type so MQTT payloads and tests share the same decoding path.
func DecodeJSON[T any](body []byte) (T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// DecodeMessage unmarshals a Kafka message value into T.
func DecodeMessage[T any](msg kafka.Message) (T, error) {
	return DecodeJSON[T](msg.Value)
}
