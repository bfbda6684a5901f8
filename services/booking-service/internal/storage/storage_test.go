package storage

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		concurrent bool
	}{
		{"nil", nil, false},
		{"exclusion", &pgconn.PgError{Code: "23P01"}, true},
		{"unique", fmt.Errorf("save key: %w", &pgconn.PgError{Code: "23505"}), true},
		{"exhausted", fmt.Errorf("%w: %w", db.ErrRetriesExhausted, &pgconn.PgError{Code: "40001"}), true},
		{"other", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if tc.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if errors.Is(got, model.ErrConcurrentWrite) != tc.concurrent {
				t.Fatalf("classify(%v) = %v, concurrent want %v", tc.err, got, tc.concurrent)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}
}

func TestListMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 1")},
		"migrations/002_second.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":      {Data: []byte("notes")},
		"migrations/nover.sql":      {Data: []byte("SELECT 1")},
	}
	files, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(files) != 2 || files[0].version != 2 || files[1].version != 10 {
		t.Fatalf("unexpected order %+v", files)
	}

	fsys["migrations/002_dup.sql"] = &fstest.MapFile{Data: []byte("SELECT 1")}
	if _, err := listMigrations(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := listMigrations(migrationFiles)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if len(files) == 0 || files[0].version != 1 {
		t.Fatalf("expected embedded 001 migration, got %+v", files)
	}
}
