package messaging

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"surety/internal/platform/config"
	"surety/internal/platform/kafka"
	"surety/internal/platform/metrics"
	dErrors "surety/pkg/domain-errors"
)

// KafkaBus implements Bus on Kafka. Queues map to topics; exchanges are
// resolved client-side through the Topology into the bound topics.
type KafkaBus struct {
	cfg      config.KafkaConfig
	producer *kafka.Producer
	admin    *kafka.Admin
	topology *Topology
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	consumers []*kafka.Consumer
}

func NewKafkaBus(cfg config.KafkaConfig, logger *slog.Logger, m *metrics.Metrics) (*KafkaBus, error) {
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIntegration, "connect to kafka")
	}
	return &KafkaBus{
		cfg:      cfg,
		producer: producer,
		admin:    kafka.NewAdmin(producer.Client(), cfg.Partitions, cfg.ReplicationFactor),
		topology: NewTopology(),
		logger:   logger,
		metrics:  m,
	}, nil
}

func (b *KafkaBus) Publish(ctx context.Context, destination string, env Envelope, opts ...PublishOption) error {
	o := applyOptions(opts)
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	headers := []kafka.Header{
		{Key: "message-type", Value: []byte(env.Type)},
		{Key: "message-version", Value: []byte(strconv.Itoa(env.Version))},
	}
	for _, topic := range b.topology.Resolve(destination, o.routingKey) {
		if err := b.admin.EnsureTopics(ctx, topic); err != nil {
			b.metrics.IncrementPublished(topic, "error")
			return dErrors.Wrap(err, dErrors.CodeIntegration, "assert destination "+topic)
		}
		if err := b.producer.Produce(ctx, topic, []byte(o.key), raw, headers...); err != nil {
			b.metrics.IncrementPublished(topic, "error")
			return dErrors.Wrap(err, dErrors.CodeIntegration, "publish to "+topic)
		}
		b.metrics.IncrementPublished(topic, "ok")
	}
	return nil
}

func (b *KafkaBus) Consume(ctx context.Context, destination string, h Handler) error {
	if err := b.admin.EnsureTopics(ctx, destination); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegration, "assert destination "+destination)
	}
	c, err := kafka.NewConsumer(b.cfg, destination, b.logger)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegration, "consume "+destination)
	}
	b.mu.Lock()
	b.consumers = append(b.consumers, c)
	b.mu.Unlock()

	b.logger.InfoContext(ctx, "consuming", "destination", destination)
	return c.Run(ctx, func(ctx context.Context, msg *kafka.Message) error {
		deliver(ctx, b.logger, b.metrics, destination, msg.Value, h)
		return nil
	})
}

func (b *KafkaBus) CreateExchange(_ context.Context, name string) error {
	return b.topology.DeclareExchange(name)
}

func (b *KafkaBus) BindQueue(ctx context.Context, queue, exchange, pattern string) error {
	if err := b.admin.EnsureTopics(ctx, queue); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegration, "assert destination "+queue)
	}
	return b.topology.Bind(queue, exchange, pattern)
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.consumers {
		c.Close()
	}
	b.consumers = nil
	b.producer.Close()
	return nil
}
