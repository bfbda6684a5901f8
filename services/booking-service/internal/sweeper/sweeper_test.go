package sweeper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTarget struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (f *fakeTarget) SweepExpiredHolds(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func TestSweepLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	w := NewWorker(&fakeTarget{err: errors.New("db down")}, slog.New(slog.NewTextHandler(&buf, nil)), Config{})

	if n := w.Sweep(context.Background()); n != 0 {
		t.Fatalf("expected 0 on failure, got %d", n)
	}
	if !strings.Contains(buf.String(), "hold sweep failed") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	target := &fakeTarget{n: 2}
	var buf bytes.Buffer
	w := NewWorker(target, slog.New(slog.NewTextHandler(&buf, nil)), Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for target.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}
