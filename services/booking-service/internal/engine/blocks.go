package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

// Actor is the authenticated staff member behind an administrative call.
type Actor struct {
	UserID   string
	ClinicID string
	Role     string
}

func (a Actor) owns(clinicID string) bool { return a.ClinicID != "" && a.ClinicID == clinicID }

type BlockRequest struct {
	ClinicID   string
	ProviderID string // empty blocks the whole clinic
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
}

// BlockWindow closes an interval for one provider or the whole clinic. Only
// appointments are checked; holds inside the window simply run out.
func (e *Engine) BlockWindow(ctx context.Context, actor Actor, req BlockRequest) (model.BlockedTimeSlot, error) {
	ctx, span := e.startSpan(ctx, "block_window",
		attribute.String("clinic_id", req.ClinicID),
		attribute.String("provider_id", req.ProviderID),
	)
	defer span.End()

	if err := required("clinic_id", req.ClinicID); err != nil {
		return model.BlockedTimeSlot{}, err
	}
	if !actor.owns(req.ClinicID) {
		return model.BlockedTimeSlot{}, fmt.Errorf("%w: clinic %q", ErrUnauthorized, req.ClinicID)
	}
	iv := model.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
	if !iv.Valid() {
		return model.BlockedTimeSlot{}, invalid("end_time must be after start_time")
	}
	if len(req.Reason) > 500 {
		return model.BlockedTimeSlot{}, invalid("reason is too long")
	}
	clinic, _, err := e.resolve(ctx, req.ClinicID, "")
	if err != nil {
		return model.BlockedTimeSlot{}, err
	}

	scope := model.Scope{ClinicID: clinic.ID, ProviderID: req.ProviderID}
	var (
		block    model.BlockedTimeSlot
		conflict ConflictReason
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		block, conflict = model.BlockedTimeSlot{}, ""
		reason, err := findConflict(ctx, tx, scope, iv, e.clock(), "", false, false)
		if err != nil {
			return err
		}
		if reason != "" {
			conflict = reason
			return nil
		}

		b := model.BlockedTimeSlot{
			ID:         uuid.NewString(),
			ClinicID:   clinic.ID,
			ProviderID: req.ProviderID,
			StartTime:  iv.Start,
			EndTime:    iv.End,
			Reason:     req.Reason,
			CreatedAt:  e.clock(),
		}
		if err := tx.InsertBlockedWindow(ctx, b); err != nil {
			return fmt.Errorf("insert blocked window: %w", err)
		}
		evt, err := e.newEvent(ctx, EventBlockCreated, b.ID, blockPayload{
			BlockID: b.ID, ClinicID: b.ClinicID, ProviderID: b.ProviderID,
			StartTime: b.StartTime, EndTime: b.EndTime, Reason: b.Reason, ActorID: actor.UserID,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		block = b
		return nil
	})
	if errors.Is(err, model.ErrConcurrentWrite) {
		conflict, err = ConflictConcurrent, nil
	}
	if err != nil {
		span.RecordError(err)
		return model.BlockedTimeSlot{}, err
	}
	if conflict != "" {
		e.recordConflict(ctx, "block_window", conflict)
		return model.BlockedTimeSlot{}, &ConflictError{Reason: conflict}
	}
	return block, nil
}

// UnblockWindow deletes a blocked window of the actor's clinic. Deleting a
// window that is already gone succeeds.
func (e *Engine) UnblockWindow(ctx context.Context, actor Actor, id string) error {
	ctx, span := e.startSpan(ctx, "unblock_window", attribute.String("blocked_window_id", id))
	defer span.End()

	if actor.ClinicID == "" {
		return fmt.Errorf("%w: no clinic on credentials", ErrUnauthorized)
	}
	if err := validUUID("id", id); err != nil {
		return err
	}
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		deleted, err := tx.DeleteBlockedWindow(ctx, actor.ClinicID, id)
		if err != nil {
			return fmt.Errorf("delete blocked window: %w", err)
		}
		if !deleted {
			return nil
		}
		evt, err := e.newEvent(ctx, EventBlockRemoved, id, blockPayload{BlockID: id, ClinicID: actor.ClinicID, ActorID: actor.UserID})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})
	if errors.Is(err, model.ErrConcurrentWrite) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ListAppointments returns the actor's clinic appointments starting at or
// after from, oldest first.
func (e *Engine) ListAppointments(ctx context.Context, actor Actor, from time.Time, limit int) ([]model.Appointment, error) {
	if actor.ClinicID == "" {
		return nil, fmt.Errorf("%w: no clinic on credentials", ErrUnauthorized)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return e.store.ListClinicAppointments(ctx, actor.ClinicID, from.UTC(), limit)
}
