package kafkax

import (
	"cmp"
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// EventMeta identifies an event independently of its payload. Producers write
// it with Headers and consumers read it back with ExtractEventMeta.
type EventMeta struct {
	EventID   string
	EventType string
}

func (m EventMeta) Headers() []kafka.Header {
	return []kafka.Header{
		{Key: HeaderEventID, Value: []byte(m.EventID)},
		{Key: HeaderEventType, Value: []byte(m.EventType)},
	}
}

// ExtractEventMeta is the inverse of Headers. Producers that set no headers
// are identified by message key and topic instead.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	var m EventMeta
	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderEventID:
			m.EventID = string(h.Value)
		case HeaderEventType:
			m.EventType = string(h.Value)
		}
	}
	m.EventID = cmp.Or(m.EventID, string(msg.Key))
	m.EventType = cmp.Or(m.EventType, msg.Topic)
	return m
}

// SplitBrokers parses KAFKA_BROKERS ("host:port, host:port").
func SplitBrokers(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
}
