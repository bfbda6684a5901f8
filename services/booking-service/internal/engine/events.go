package engine

import "time"

const (
	EventHoldCreated          = "booking.hold.created.v1"
	EventHoldCancelled        = "booking.hold.cancelled.v1"
	EventAppointmentCommitted = "booking.appointment.committed.v1"
	EventBlockCreated         = "booking.blocked_window.created.v1"
	EventBlockRemoved         = "booking.blocked_window.removed.v1"
)

type holdPayload struct {
	HoldID     string    `json:"hold_id"`
	ClinicID   string    `json:"clinic_id"`
	ServiceID  string    `json:"service_id,omitempty"`
	ProviderID string    `json:"provider_id,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

type appointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	ClinicID      string    `json:"clinic_id"`
	ServiceID     string    `json:"service_id"`
	ProviderID    string    `json:"provider_id,omitempty"`
	ClientID      string    `json:"client_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	HoldID        string    `json:"hold_id,omitempty"`
}

type blockPayload struct {
	BlockID    string    `json:"blocked_window_id"`
	ClinicID   string    `json:"clinic_id"`
	ProviderID string    `json:"provider_id,omitempty"`
	StartTime  time.Time `json:"start_time,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
}
