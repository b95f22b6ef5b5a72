// Package kafka wraps franz-go for the bus: a synchronous producer, a
// consumer-group loop with manual offset commits, and topic administration.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"surety/internal/platform/config"
)

// Header is a record header.
type Header struct {
	Key   string
	Value []byte
}

// Producer publishes records and waits for all in-sync replicas.
type Producer struct {
	client *kgo.Client
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client}, nil
}

// Client exposes the underlying client for topic administration.
func (p *Producer) Client() *kgo.Client {
	return p.client
}

// Produce sends one record synchronously.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte, headers ...Header) error {
	rec := &kgo.Record{Topic: topic, Key: key, Value: value}
	for _, h := range headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}
