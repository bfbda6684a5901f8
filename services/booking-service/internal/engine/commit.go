package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

type CommitRequest struct {
	ClinicID   string
	ServiceID  string
	ProviderID string
	ClientID   string
	StartTime  time.Time
	EndTime    time.Time
	HoldID     string

	// IdempotencyKey makes retries of the same request return the
	// appointment created by the first attempt.
	IdempotencyKey string
}

func (r CommitRequest) fingerprint() string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s|%s|%s|%s",
		r.ClinicID, r.ServiceID, r.ProviderID, r.ClientID,
		r.StartTime.UTC().Format(time.RFC3339), r.EndTime.UTC().Format(time.RFC3339), r.HoldID))
	return hex.EncodeToString(sum[:])
}

type outcomeKind int

const (
	outcomeCommitted outcomeKind = iota + 1
	outcomeConflict
	outcomeExpired
	outcomeHoldMismatch
	outcomeKeyReused
)

// commitOutcome is decided inside the transaction and turned into an error
// only after the transaction has finished.
type commitOutcome struct {
	kind        outcomeKind
	appointment model.Appointment
	reason      ConflictReason
	replayed    bool
}

// CommitAppointment books the interval. With a HoldID the hold is validated
// and consumed in the same transaction that inserts the appointment.
func (e *Engine) CommitAppointment(ctx context.Context, req CommitRequest) (model.Appointment, error) {
	ctx, span := e.startSpan(ctx, "commit_appointment",
		attribute.String("clinic_id", req.ClinicID),
		attribute.String("hold_id", req.HoldID),
	)
	defer span.End()

	if err := required("clinic_id", req.ClinicID, "service_id", req.ServiceID, "client_id", req.ClientID); err != nil {
		return model.Appointment{}, err
	}
	if req.HoldID != "" {
		if err := validUUID("hold_id", req.HoldID); err != nil {
			return model.Appointment{}, err
		}
	}
	clinic, svc, err := e.resolve(ctx, req.ClinicID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}
	iv := model.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
	if req.IdempotencyKey == "" {
		if err := e.checkBookable(clinic, svc, iv, e.clock()); err != nil {
			return model.Appointment{}, err
		}
	}

	var out commitOutcome
	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = e.commitInTx(ctx, tx, req, clinic, svc, iv)
		return err
	})
	if errors.Is(err, model.ErrConcurrentWrite) {
		out, err = commitOutcome{kind: outcomeConflict, reason: ConflictConcurrent}, nil
	}
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}

	switch out.kind {
	case outcomeCommitted:
		if !out.replayed {
			e.committed.Add(ctx, 1)
		}
		span.SetAttributes(attribute.String("appointment_id", out.appointment.ID), attribute.Bool("replayed", out.replayed))
		return out.appointment, nil
	case outcomeConflict:
		e.recordConflict(ctx, "commit_appointment", out.reason)
		return model.Appointment{}, &ConflictError{Reason: out.reason}
	case outcomeExpired:
		e.expiredHolds.Add(ctx, 1)
		return model.Appointment{}, fmt.Errorf("%w: %s", ErrExpiredHold, req.HoldID)
	case outcomeHoldMismatch:
		return model.Appointment{}, invalid("hold %s does not cover the requested booking", req.HoldID)
	case outcomeKeyReused:
		return model.Appointment{}, invalid("idempotency key was used for a different request")
	default:
		return model.Appointment{}, fmt.Errorf("commit appointment: no outcome")
	}
}

// commitInTx replays a known idempotency key before anything else, so a retry
// is answered even after the slot has started or the clinic's hours changed.
func (e *Engine) commitInTx(ctx context.Context, tx Tx, req CommitRequest, clinic model.Clinic, svc model.Service, iv model.Interval) (commitOutcome, error) {
	now := e.clock()
	fingerprint := req.fingerprint()

	if req.IdempotencyKey != "" {
		rec, ok, err := tx.GetIdempotency(ctx, req.ClinicID, req.IdempotencyKey)
		if err != nil {
			return commitOutcome{}, fmt.Errorf("get idempotency key: %w", err)
		}
		if ok {
			if rec.RequestHash != fingerprint {
				return commitOutcome{kind: outcomeKeyReused}, nil
			}
			appt, found, err := tx.GetAppointment(ctx, rec.AppointmentID)
			if err != nil {
				return commitOutcome{}, fmt.Errorf("get appointment: %w", err)
			}
			if !found {
				return commitOutcome{}, fmt.Errorf("idempotency key %q points at missing appointment %s", req.IdempotencyKey, rec.AppointmentID)
			}
			return commitOutcome{kind: outcomeCommitted, appointment: appt, replayed: true}, nil
		}
		if err := e.checkBookable(clinic, svc, iv, now); err != nil {
			return commitOutcome{}, err
		}
	}

	providerID := req.ProviderID
	if req.HoldID != "" {
		h, ok, err := tx.GetHold(ctx, req.HoldID)
		if err != nil {
			return commitOutcome{}, fmt.Errorf("get hold: %w", err)
		}
		if !ok || !h.Active(now) || !h.OwnedBy(req.ClientID) {
			return commitOutcome{kind: outcomeExpired}, nil
		}
		if providerID == "" {
			providerID = h.ProviderID
		}
		if h.ClinicID != req.ClinicID || h.ServiceID != req.ServiceID || h.ProviderID != providerID ||
			!h.StartTime.Equal(iv.Start) || !h.EndTime.Equal(iv.End) {
			return commitOutcome{kind: outcomeHoldMismatch}, nil
		}
	}

	// Holding a slot does not exempt the commit from the appointment check:
	// appointments can arrive through paths that never took a hold.
	scope := model.Scope{ClinicID: req.ClinicID, ProviderID: providerID}
	reason, err := findConflict(ctx, tx, scope, iv, now, req.HoldID, true, true)
	if err != nil {
		return commitOutcome{}, err
	}
	if reason != "" {
		return commitOutcome{kind: outcomeConflict, reason: reason}, nil
	}

	if req.HoldID != "" {
		if err := tx.DeleteHold(ctx, req.HoldID); err != nil {
			return commitOutcome{}, fmt.Errorf("delete hold: %w", err)
		}
	}
	appt := model.Appointment{
		ID:         uuid.NewString(),
		ClinicID:   req.ClinicID,
		ServiceID:  req.ServiceID,
		ProviderID: providerID,
		ClientID:   req.ClientID,
		StartTime:  iv.Start,
		EndTime:    iv.End,
		Status:     e.cfg.InitialStatus,
		CreatedAt:  now,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		return commitOutcome{}, fmt.Errorf("insert appointment: %w", err)
	}
	if req.IdempotencyKey != "" {
		if err := tx.SaveIdempotency(ctx, model.IdempotencyRecord{
			ClinicID:      req.ClinicID,
			Key:           req.IdempotencyKey,
			RequestHash:   fingerprint,
			AppointmentID: appt.ID,
			CreatedAt:     now,
		}); err != nil {
			return commitOutcome{}, fmt.Errorf("save idempotency key: %w", err)
		}
	}
	evt, err := e.newEvent(ctx, EventAppointmentCommitted, appt.ID, appointmentPayload{
		AppointmentID: appt.ID, ClinicID: appt.ClinicID, ServiceID: appt.ServiceID, ProviderID: appt.ProviderID,
		ClientID: appt.ClientID, StartTime: appt.StartTime, EndTime: appt.EndTime, Status: string(appt.Status), HoldID: req.HoldID,
	})
	if err != nil {
		return commitOutcome{}, err
	}
	if err := tx.AppendEvent(ctx, evt); err != nil {
		return commitOutcome{}, fmt.Errorf("append event: %w", err)
	}
	return commitOutcome{kind: outcomeCommitted, appointment: appt}, nil
}
