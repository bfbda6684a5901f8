package model

import (
	"errors"
	"time"
)

// ErrConcurrentWrite is returned by stores when a write lost a race against a
// concurrent transaction and could not be retried to completion.
var ErrConcurrentWrite = errors.New("concurrent write conflict")

// Event is a domain event appended to the outbox inside the writing
// transaction. The Kafka topic equals Type.
type Event struct {
	ID          string
	Type        string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
	Traceparent string
	Tracestate  string
}

// IdempotencyRecord remembers which appointment a client-supplied key produced.
type IdempotencyRecord struct {
	ClinicID      string
	Key           string
	RequestHash   string
	AppointmentID string
	CreatedAt     time.Time
}
