// Package notify announces finished batch runs to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"github.com/smartenergy/aidaily/internal/domain"
)

// Event describes one finished "aggregate all" run
type Event struct {
	RunID      string             `json:"run_id"`
	TargetDate string             `json:"target_date"`
	Failed     int                `json:"failed"`
	Results    domain.BatchResult `json:"results"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Publisher delivers batch events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events
type Nop struct{}

// Publish drops ev
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing
func (Nop) Close() error { return nil }

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends events to a Redis stream
type RedisPublisher struct {
	client streamAdder
	closer func() error
	stream string
}

// NewRedisPublisher creates a publisher writing to stream
func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, closer: client.Close, stream: stream}
}

// Publish XADDs the event as a JSON "data" field
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: failed to encode event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"run_id":      ev.RunID,
			"target_date": ev.TargetDate,
			"data":        string(payload),
			"timestamp":   ev.FinishedAt.Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("notify: failed to add to stream %s: %w", p.stream, err)
	}
	return nil
}

// Close closes the underlying client
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by target date
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
		Balancer:               &kafka.Hash{},
	}}
}

// Publish writes one message per event
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.TargetDate),
		Value: payload,
		Time:  ev.FinishedAt,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(ev.RunID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: failed to write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
