// Package outbox relays events committed alongside booking writes to Kafka.
// The topic of each message equals the event type.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Source yields pending events; see Repository.PublishPending.
type Source interface {
	PublishPending(ctx context.Context, limit int, send func(context.Context, []model.Event) error) (int, error)
}

// Writer is satisfied by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	src       Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
	published metric.Int64Counter
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(src Source, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	published, err := otel.Meter("github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/outbox").
		Int64Counter("booking_outbox_published_total", metric.WithDescription("Outbox events written to Kafka"))
	if err != nil {
		logger.Warn("outbox metric unavailable", "err", err)
	}
	return &Publisher{
		src:       src,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		published: published,
	}
}

// NewKafkaWriter returns a writer that keys partitions by aggregate id, so
// events of one hold or appointment stay ordered.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishOnce relays one batch and returns how many events were sent.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	n, err := p.src.PublishPending(ctx, p.batchSize, func(ctx context.Context, events []model.Event) error {
		msgs := make([]kafka.Message, 0, len(events))
		for _, e := range events {
			msgs = append(msgs, Message(ctx, e))
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 && p.published != nil {
		p.published.Add(ctx, int64(n))
	}
	return n, nil
}

// Message builds the Kafka message for e, carrying the trace context that was
// active when the event was recorded.
func Message(ctx context.Context, e model.Event) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, e.Traceparent, e.Tracestate)
	msg := kafka.Message{
		Topic:   e.Type,
		Key:     []byte(e.AggregateID),
		Value:   e.Payload,
		Headers: kafkax.EventMeta{EventID: e.ID, EventType: e.Type}.Headers(),
		Time:    e.OccurredAt,
	}
	msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}
