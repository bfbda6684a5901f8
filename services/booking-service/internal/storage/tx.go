package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type pgTx struct {
	reader
}

func (t *pgTx) GetHold(ctx context.Context, id string) (model.Hold, bool, error) {
	rows, err := t.q.Query(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1::uuid`, id)
	if err != nil {
		return model.Hold{}, false, err
	}
	h, err := pgx.CollectExactlyOneRow(rows, scanHold)
	if db.IsNoRows(err) {
		return model.Hold{}, false, nil
	}
	return h, err == nil, err
}

func (t *pgTx) InsertHold(ctx context.Context, h model.Hold) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO holds (id, clinic_id, service_id, provider_id, client_id, start_time, end_time, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, h.ID, h.ClinicID, h.ServiceID, nullable(h.ProviderID), nullable(h.ClientID), h.StartTime, h.EndTime, h.ExpiresAt, h.CreatedAt)
	return err
}

func (t *pgTx) DeleteHold(ctx context.Context, id string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM holds WHERE id = $1::uuid`, id)
	return err
}

func (t *pgTx) GetAppointment(ctx context.Context, id string) (model.Appointment, bool, error) {
	rows, err := t.q.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1::uuid`, id)
	if err != nil {
		return model.Appointment{}, false, err
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAppointment)
	if db.IsNoRows(err) {
		return model.Appointment{}, false, nil
	}
	return a, err == nil, err
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO appointments (id, clinic_id, service_id, provider_id, client_id, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.ClinicID, a.ServiceID, nullable(a.ProviderID), a.ClientID, a.StartTime, a.EndTime, string(a.Status), a.CreatedAt)
	return err
}

func (t *pgTx) InsertBlockedWindow(ctx context.Context, b model.BlockedTimeSlot) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO blocked_time_slots (id, clinic_id, provider_id, start_time, end_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.ClinicID, nullable(b.ProviderID), b.StartTime, b.EndTime, nullable(b.Reason), b.CreatedAt)
	return err
}

func (t *pgTx) DeleteBlockedWindow(ctx context.Context, clinicID, id string) (bool, error) {
	tag, err := t.q.Exec(ctx, `DELETE FROM blocked_time_slots WHERE id = $1::uuid AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) GetIdempotency(ctx context.Context, clinicID, key string) (model.IdempotencyRecord, bool, error) {
	rec := model.IdempotencyRecord{ClinicID: clinicID, Key: key}
	err := t.q.QueryRow(ctx, `
		SELECT request_hash, appointment_id::text, created_at
		FROM booking_idempotency_keys
		WHERE clinic_id = $1 AND idempotency_key = $2
	`, clinicID, key).Scan(&rec.RequestHash, &rec.AppointmentID, &rec.CreatedAt)
	if db.IsNoRows(err) {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

func (t *pgTx) SaveIdempotency(ctx context.Context, rec model.IdempotencyRecord) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (clinic_id, idempotency_key, request_hash, appointment_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ClinicID, rec.Key, rec.RequestHash, rec.AppointmentID, rec.CreatedAt)
	return err
}

func (t *pgTx) AppendEvent(ctx context.Context, e model.Event) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, traceparent, tracestate, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Type, e.AggregateID, e.Payload, nullable(e.Traceparent), nullable(e.Tracestate), e.OccurredAt)
	return err
}
