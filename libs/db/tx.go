package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeExclusionViolation   = "23P01"
)

var ErrRetriesExhausted = errors.New("db: serializable transaction retries exhausted")

type TxOptions struct {
	// MaxRetries bounds re-runs after a serialization failure or deadlock.
	MaxRetries  int
	BaseBackoff time.Duration
}

// InTx runs fn inside a SERIALIZABLE transaction and commits when fn returns
// nil. fn may run more than once, so it must not leak side effects outside tx.
func (p *Pool) InTx(ctx context.Context, opts TxOptions, fn func(pgx.Tx) error) error {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 10 * time.Millisecond
	}
	for attempt := 0; ; attempt++ {
		err := p.runSerializable(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= opts.MaxRetries {
			return fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Backoff(opts.BaseBackoff, attempt)):
		}
	}
}

func (p *Pool) runSerializable(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Backoff grows exponentially from base with full jitter, capped at 32x base.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	ceiling := base << attempt
	return base/2 + rand.N(ceiling)
}

func IsRetryable(err error) bool {
	return hasCode(err, codeSerializationFailure) || hasCode(err, codeDeadlockDetected)
}

func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

func IsExclusionViolation(err error) bool { return hasCode(err, codeExclusionViolation) }

func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
