// Package storage is the Postgres implementation of engine.Store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	reader
	pool *db.Pool
	opts db.TxOptions
}

var _ engine.Store = (*Store)(nil)

func New(pool *db.Pool, opts db.TxOptions) *Store {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Store{reader: reader{q: pool}, pool: pool, opts: opts}
}

// InTx runs fn in a SERIALIZABLE transaction. Serialization failures are
// retried; a write that still loses, or trips the overlap exclusion
// constraint, surfaces as model.ErrConcurrentWrite.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	err := s.pool.InTx(ctx, s.opts, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{reader: reader{q: tx}})
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrRetriesExhausted) || db.IsExclusionViolation(err) || db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", model.ErrConcurrentWrite, err)
	}
	return err
}

func (s *Store) ListClinicAppointments(ctx context.Context, clinicID string, from time.Time, limit int) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3
	`, clinicID, from, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAppointment)
}

func (s *Store) DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM holds WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const (
	appointmentColumns = `id::text, clinic_id, service_id, COALESCE(provider_id, ''), client_id, start_time, end_time, status, created_at`
	holdColumns        = `id::text, clinic_id, service_id, COALESCE(provider_id, ''), COALESCE(client_id, ''), start_time, end_time, expires_at, created_at`
	blockColumns       = `id::text, clinic_id, COALESCE(provider_id, ''), start_time, end_time, COALESCE(reason, ''), created_at`

	// scopeFilter matches rows of clinic $1 visible to provider $2, where an
	// empty $2 means every provider and a NULL provider_id means every
	// provider of the clinic. $3 and $4 bound the half-open interval.
	scopeFilter = `clinic_id = $1
		AND ($2::text = '' OR provider_id IS NULL OR provider_id = $2)
		AND start_time < $4 AND end_time > $3`
)

type reader struct {
	q querier
}

func (r reader) ListAppointments(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+scopeFilter+` AND status <> 'cancelled'
		ORDER BY start_time ASC
	`, scope.ClinicID, scope.ProviderID, iv.Start, iv.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAppointment)
}

func (r reader) ListActiveHolds(ctx context.Context, scope model.Scope, iv model.Interval, now time.Time) ([]model.Hold, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+holdColumns+`
		FROM holds
		WHERE `+scopeFilter+` AND expires_at > $5
		ORDER BY start_time ASC
	`, scope.ClinicID, scope.ProviderID, iv.Start, iv.End, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHold)
}

func (r reader) ListBlockedWindows(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.BlockedTimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocked_time_slots
		WHERE `+scopeFilter+`
		ORDER BY start_time ASC
	`, scope.ClinicID, scope.ProviderID, iv.Start, iv.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanBlock)
}

func scanAppointment(row pgx.CollectableRow) (model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	err := row.Scan(&a.ID, &a.ClinicID, &a.ServiceID, &a.ProviderID, &a.ClientID, &a.StartTime, &a.EndTime, &status, &a.CreatedAt)
	a.Status = model.AppointmentStatus(status)
	a.StartTime, a.EndTime, a.CreatedAt = a.StartTime.UTC(), a.EndTime.UTC(), a.CreatedAt.UTC()
	return a, err
}

func scanHold(row pgx.CollectableRow) (model.Hold, error) {
	var h model.Hold
	err := row.Scan(&h.ID, &h.ClinicID, &h.ServiceID, &h.ProviderID, &h.ClientID, &h.StartTime, &h.EndTime, &h.ExpiresAt, &h.CreatedAt)
	h.StartTime, h.EndTime, h.ExpiresAt, h.CreatedAt = h.StartTime.UTC(), h.EndTime.UTC(), h.ExpiresAt.UTC(), h.CreatedAt.UTC()
	return h, err
}

func scanBlock(row pgx.CollectableRow) (model.BlockedTimeSlot, error) {
	var b model.BlockedTimeSlot
	err := row.Scan(&b.ID, &b.ClinicID, &b.ProviderID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt)
	b.StartTime, b.EndTime, b.CreatedAt = b.StartTime.UTC(), b.EndTime.UTC(), b.CreatedAt.UTC()
	return b, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
