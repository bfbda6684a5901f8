package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", got)
	}
}

func TestEventMetaFallsBackToKeyAndTopic(t *testing.T) {
	meta := ExtractEventMeta(kafka.Message{Topic: "business.clinic.updated.v1", Key: []byte("evt-1")})
	if meta.EventID != "evt-1" || meta.EventType != "business.clinic.updated.v1" {
		t.Fatalf("unexpected meta %+v", meta)
	}
	withHeaders := ExtractEventMeta(kafka.Message{Headers: EventMeta{EventID: "a", EventType: "b"}.Headers()})
	if withHeaders.EventID != "a" || withHeaders.EventType != "b" {
		t.Fatalf("unexpected meta %+v", withHeaders)
	}
	partial := ExtractEventMeta(kafka.Message{Topic: "t", Key: []byte("k"), Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("x")}}})
	if partial.EventID != "k" || partial.EventType != "x" {
		t.Fatalf("unexpected meta %+v", partial)
	}
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := InjectTraceHeaders(ctx, nil)
	if (&headerCarrier{headers: headers}).Get("traceparent") == "" {
		t.Fatal("expected traceparent header to be appended")
	}
	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	if got.TraceID() != traceID {
		t.Fatalf("expected trace id %s, got %s", traceID, got.TraceID())
	}
}
