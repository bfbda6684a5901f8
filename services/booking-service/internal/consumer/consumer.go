// Package consumer applies clinic directory changes published by the clinic
// management service.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox remembers processed event ids.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

// Reader is satisfied by *kafka.Reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler

	retryBase time.Duration
	retryMax  time.Duration
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func NewKafkaReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

func New(logger *slog.Logger, reader Reader, inbox Inbox, handler Handler) *Consumer {
	return &Consumer{
		reader:    reader,
		logger:    logger,
		inbox:     inbox,
		handler:   handler,
		retryBase: time.Second,
		retryMax:  30 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// A later commit on the partition would skip this message, so it is
		// retried in place until it goes through.
		for delay := c.retryBase; !c.process(ctx, msg); delay = min(2*delay, c.retryMax) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process handles one message and reports whether its offset may be
// committed. Handlers must be idempotent: the event is recorded in the inbox
// only after it was applied, so a retry or redelivery runs it again.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if err := c.handler(ctxSpan, msg); errors.Is(err, ErrMalformed) {
		c.logger.Warn("skipping malformed event", "err", err, "event_id", meta.EventID, "topic", msg.Topic, "offset", msg.Offset)
		return true
	} else if err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		return false
	}
	first, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return false
	}
	if !first {
		c.logger.Info("duplicate event reapplied", "event_id", meta.EventID, "event_type", meta.EventType)
	}
	return true
}
