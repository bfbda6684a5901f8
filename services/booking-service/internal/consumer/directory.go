package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

const (
	TopicClinicUpdated  = "business.clinic.updated.v1"
	TopicServiceUpdated = "business.service.updated.v1"
)

// ErrMalformed marks a message that can never be applied. The consumer logs
// it and moves past it.
var ErrMalformed = errors.New("malformed event")

// DirectoryTopics are the topics DirectoryHandler understands.
var DirectoryTopics = []string{TopicClinicUpdated, TopicServiceUpdated}

// Invalidator drops cached directory entries; *directory.Cached implements it.
type Invalidator interface {
	InvalidateClinic(ctx context.Context, id string) error
	InvalidateService(ctx context.Context, id string) error
}

type clinicUpdated struct {
	ClinicID string `json:"clinic_id"`
}

type serviceUpdated struct {
	ServiceID string `json:"service_id"`
	ClinicID  string `json:"clinic_id"`
}

// DirectoryHandler evicts the clinic or service named by the event so the
// next availability query reads fresh hours and durations.
func DirectoryHandler(inv Invalidator) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		switch msg.Topic {
		case TopicClinicUpdated:
			var evt clinicUpdated
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				return fmt.Errorf("%w: decode %s: %w", ErrMalformed, msg.Topic, err)
			}
			if evt.ClinicID == "" {
				return fmt.Errorf("%w: %s without clinic_id", ErrMalformed, msg.Topic)
			}
			return inv.InvalidateClinic(ctx, evt.ClinicID)
		case TopicServiceUpdated:
			var evt serviceUpdated
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				return fmt.Errorf("%w: decode %s: %w", ErrMalformed, msg.Topic, err)
			}
			if evt.ServiceID == "" {
				return fmt.Errorf("%w: %s without service_id", ErrMalformed, msg.Topic)
			}
			return inv.InvalidateService(ctx, evt.ServiceID)
		default:
			return nil
		}
	}
}
