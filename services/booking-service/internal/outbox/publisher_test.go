package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func seed(t *testing.T, s *memstore.Store, n int) {
	t.Helper()
	err := s.InTx(context.Background(), func(ctx context.Context, tx engine.Tx) error {
		for i := 0; i < n; i++ {
			if err := tx.AppendEvent(ctx, model.Event{
				ID:          "evt-" + string(rune('a'+i)),
				Type:        engine.EventHoldCreated,
				AggregateID: "hold-1",
				Payload:     []byte(`{"hold_id":"hold-1"}`),
				OccurredAt:  time.Date(2026, 3, 2, 9, 0, i, 0, time.UTC),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestPublishOnceBatchesAndAdvances(t *testing.T) {
	store := memstore.New()
	seed(t, store, 3)
	w := &fakeWriter{}
	p := NewPublisher(store, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{BatchSize: 2})

	n, err := p.PublishOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	n, err = p.PublishOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second batch: n=%d err=%v", n, err)
	}
	n, _ = p.PublishOnce(context.Background())
	if n != 0 {
		t.Fatalf("expected empty outbox, got %d", n)
	}

	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != engine.EventHoldCreated || string(m.Key) != "hold-1" {
		t.Fatalf("unexpected message %+v", m)
	}
	meta := kafkax.ExtractEventMeta(m)
	if meta.EventID != "evt-a" || meta.EventType != engine.EventHoldCreated {
		t.Fatalf("unexpected meta %+v", meta)
	}
}

func TestPublishOnceKeepsEventsWhenKafkaFails(t *testing.T) {
	store := memstore.New()
	seed(t, store, 1)
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewPublisher(store, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})

	if _, err := p.PublishOnce(context.Background()); err == nil {
		t.Fatal("expected write error")
	}
	w.err = nil
	n, err := p.PublishOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("retry should publish the event: n=%d err=%v", n, err)
	}
}
