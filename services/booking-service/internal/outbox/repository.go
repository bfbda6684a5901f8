package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Repository drains the outbox_events table written by storage.Store.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// PublishPending locks up to limit unpublished events, hands them to send and
// marks them published when send succeeds. Concurrent publishers skip rows
// already locked by another instance.
func (r *Repository) PublishPending(ctx context.Context, limit int, send func(context.Context, []model.Event) error) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	events, err := fetchUnpublished(ctx, tx, limit)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, tx.Commit(ctx)
	}
	if err := send(ctx, events); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1::uuid[])
	`, ids); err != nil {
		return 0, err
	}
	return len(events), tx.Commit(ctx)
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]model.Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, event_type, aggregate_id, payload, COALESCE(traceparent, ''), COALESCE(tracestate, ''), occurred_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY occurred_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Event, error) {
		var e model.Event
		err := row.Scan(&e.ID, &e.Type, &e.AggregateID, &e.Payload, &e.Traceparent, &e.Tracestate, &e.OccurredAt)
		return e, err
	})
}
