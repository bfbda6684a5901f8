package db

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		unique    bool
		exclusion bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, retryable: true},
		{name: "deadlock wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), retryable: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, unique: true},
		{name: "exclusion", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "23P01"}), exclusion: true},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.retryable {
			t.Fatalf("%s: IsRetryable=%v, want %v", tc.name, got, tc.retryable)
		}
		if got := IsUniqueViolation(tc.err); got != tc.unique {
			t.Fatalf("%s: IsUniqueViolation=%v, want %v", tc.name, got, tc.unique)
		}
		if got := IsExclusionViolation(tc.err); got != tc.exclusion {
			t.Fatalf("%s: IsExclusionViolation=%v, want %v", tc.name, got, tc.exclusion)
		}
	}
	if !IsNoRows(fmt.Errorf("get hold: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to be detected")
	}
}

func TestBackoffBounds(t *testing.T) {
	base := 10 * time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := Backoff(base, attempt)
			capped := attempt
			if capped > 5 {
				capped = 5
			}
			if d < base/2 || d >= base/2+(base<<capped) {
				t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
			}
		}
	}
}
