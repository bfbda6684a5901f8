package engine

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// OccupancyReader lists what occupies a clinic's calendar. Every method
// returns rows within scope (see model.Scope) whose interval overlaps iv.
type OccupancyReader interface {
	// ListAppointments returns appointments whose status occupies the slot.
	ListAppointments(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.Appointment, error)
	// ListActiveHolds returns holds with ExpiresAt after now.
	ListActiveHolds(ctx context.Context, scope model.Scope, iv model.Interval, now time.Time) ([]model.Hold, error)
	ListBlockedWindows(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.BlockedTimeSlot, error)
}

// Tx is one isolated unit of work. Implementations must make concurrent
// transactions that read overlapping occupancy and then write behave as if
// run one after another, failing the loser with model.ErrConcurrentWrite
// when they cannot retry it themselves.
type Tx interface {
	OccupancyReader

	GetHold(ctx context.Context, id string) (model.Hold, bool, error)
	InsertHold(ctx context.Context, h model.Hold) error
	DeleteHold(ctx context.Context, id string) error

	GetAppointment(ctx context.Context, id string) (model.Appointment, bool, error)
	InsertAppointment(ctx context.Context, a model.Appointment) error

	InsertBlockedWindow(ctx context.Context, b model.BlockedTimeSlot) error
	// DeleteBlockedWindow removes the window only if it belongs to clinicID.
	DeleteBlockedWindow(ctx context.Context, clinicID, id string) (bool, error)

	GetIdempotency(ctx context.Context, clinicID, key string) (model.IdempotencyRecord, bool, error)
	SaveIdempotency(ctx context.Context, rec model.IdempotencyRecord) error

	AppendEvent(ctx context.Context, e model.Event) error
}

type Store interface {
	OccupancyReader

	// InTx runs fn in a transaction, committing when it returns nil. fn may
	// be invoked more than once.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListClinicAppointments(ctx context.Context, clinicID string, from time.Time, limit int) ([]model.Appointment, error)
	DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error)
}

// ClinicDirectory and ServiceCatalog are read-only views owned by the clinic
// management service.
type ClinicDirectory interface {
	GetClinic(ctx context.Context, id string) (model.Clinic, bool, error)
}

type ServiceCatalog interface {
	GetService(ctx context.Context, id string) (model.Service, bool, error)
}
