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

type HoldRequest struct {
	ClinicID   string
	ServiceID  string
	ProviderID string
	ClientID   string
	StartTime  time.Time
	EndTime    time.Time
}

// CreateHold reserves [StartTime, EndTime) for the provider for the hold TTL.
// It fails with a *ConflictError when an appointment, another active hold or
// a blocked window overlaps the interval.
func (e *Engine) CreateHold(ctx context.Context, req HoldRequest) (model.Hold, error) {
	ctx, span := e.startSpan(ctx, "create_hold",
		attribute.String("clinic_id", req.ClinicID),
		attribute.String("provider_id", req.ProviderID),
	)
	defer span.End()

	if err := required("clinic_id", req.ClinicID, "service_id", req.ServiceID, "provider_id", req.ProviderID); err != nil {
		return model.Hold{}, err
	}
	clinic, svc, err := e.resolve(ctx, req.ClinicID, req.ServiceID)
	if err != nil {
		return model.Hold{}, err
	}
	iv := model.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
	if err := e.checkBookable(clinic, svc, iv, e.clock()); err != nil {
		return model.Hold{}, err
	}

	scope := model.Scope{ClinicID: clinic.ID, ProviderID: req.ProviderID}
	var (
		hold     model.Hold
		conflict ConflictReason
	)
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		hold, conflict = model.Hold{}, ""
		now := e.clock()

		reason, err := findConflict(ctx, tx, scope, iv, now, "", true, true)
		if err != nil {
			return err
		}
		if reason != "" {
			conflict = reason
			return nil
		}

		h := model.Hold{
			ID:         uuid.NewString(),
			ClinicID:   clinic.ID,
			ServiceID:  svc.ID,
			ProviderID: req.ProviderID,
			ClientID:   req.ClientID,
			StartTime:  iv.Start,
			EndTime:    iv.End,
			ExpiresAt:  now.Add(e.cfg.HoldTTL),
			CreatedAt:  now,
		}
		if err := tx.InsertHold(ctx, h); err != nil {
			return fmt.Errorf("insert hold: %w", err)
		}
		evt, err := e.newEvent(ctx, EventHoldCreated, h.ID, holdPayload{
			HoldID: h.ID, ClinicID: h.ClinicID, ServiceID: h.ServiceID, ProviderID: h.ProviderID,
			StartTime: h.StartTime, EndTime: h.EndTime, ExpiresAt: h.ExpiresAt,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, evt); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		hold = h
		return nil
	})
	if errors.Is(err, model.ErrConcurrentWrite) {
		conflict, err = ConflictConcurrent, nil
	}
	if err != nil {
		span.RecordError(err)
		return model.Hold{}, err
	}
	if conflict != "" {
		e.recordConflict(ctx, "create_hold", conflict)
		return model.Hold{}, &ConflictError{Reason: conflict}
	}

	e.holdsCreated.Add(ctx, 1)
	span.SetAttributes(attribute.String("hold_id", hold.ID))
	return hold, nil
}

// CancelHold destroys an active hold before its TTL. A clientID must match
// the hold's owner when the hold has one.
func (e *Engine) CancelHold(ctx context.Context, holdID, clientID string) error {
	ctx, span := e.startSpan(ctx, "cancel_hold", attribute.String("hold_id", holdID))
	defer span.End()

	if err := validUUID("hold_id", holdID); err != nil {
		return err
	}
	var found bool
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		found = false
		h, ok, err := tx.GetHold(ctx, holdID)
		if err != nil {
			return fmt.Errorf("get hold: %w", err)
		}
		if !ok || !h.Active(e.clock()) || !h.OwnedBy(clientID) {
			return nil
		}
		if err := tx.DeleteHold(ctx, h.ID); err != nil {
			return fmt.Errorf("delete hold: %w", err)
		}
		evt, err := e.newEvent(ctx, EventHoldCancelled, h.ID, holdPayload{HoldID: h.ID, ClinicID: h.ClinicID, ProviderID: h.ProviderID})
		if err != nil {
			return err
		}
		found = true
		return tx.AppendEvent(ctx, evt)
	})
	if errors.Is(err, model.ErrConcurrentWrite) {
		// Someone else consumed or cancelled it first.
		return notFound("hold", holdID)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !found {
		return notFound("hold", holdID)
	}
	return nil
}

// SweepExpiredHolds physically removes holds that are already invisible to
// every conflict check.
func (e *Engine) SweepExpiredHolds(ctx context.Context) (int64, error) {
	ctx, span := e.startSpan(ctx, "sweep_expired_holds")
	defer span.End()

	n, err := e.store.DeleteExpiredHolds(ctx, e.clock())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("deleted", n))
	return n, nil
}
