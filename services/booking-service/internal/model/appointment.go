package model

import "time"

type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// Occupies reports whether an appointment in this status still claims its
// interval. Only cancellation releases it.
func (s AppointmentStatus) Occupies() bool { return s != StatusCancelled }

type Appointment struct {
	ID         string            `json:"id"`
	ClinicID   string            `json:"clinic_id"`
	ServiceID  string            `json:"service_id"`
	ProviderID string            `json:"provider_id,omitempty"`
	ClientID   string            `json:"client_id"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	Status     AppointmentStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (a Appointment) Interval() Interval { return Interval{Start: a.StartTime, End: a.EndTime} }

// Hold is a short-lived reservation token. Once ExpiresAt has passed it is
// treated as absent everywhere, whether or not the row still exists.
type Hold struct {
	ID         string    `json:"hold_id"`
	ClinicID   string    `json:"clinic_id"`
	ServiceID  string    `json:"service_id"`
	ProviderID string    `json:"provider_id"`
	ClientID   string    `json:"client_id,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h Hold) Interval() Interval { return Interval{Start: h.StartTime, End: h.EndTime} }

func (h Hold) Active(now time.Time) bool { return h.ExpiresAt.After(now) }

// OwnedBy is true for holds without an owner or owned by clientID.
func (h Hold) OwnedBy(clientID string) bool { return h.ClientID == "" || h.ClientID == clientID }

// BlockedTimeSlot closes an interval administratively. An empty ProviderID
// closes it for the whole clinic.
type BlockedTimeSlot struct {
	ID         string    `json:"id"`
	ClinicID   string    `json:"clinic_id"`
	ProviderID string    `json:"provider_id,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (b BlockedTimeSlot) Interval() Interval { return Interval{Start: b.StartTime, End: b.EndTime} }
