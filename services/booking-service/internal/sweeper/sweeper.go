// Package sweeper periodically deletes expired hold rows. Expired holds are
// already ignored by every read, so sweeping only reclaims storage.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Sweeper interface {
	SweepExpiredHolds(ctx context.Context) (int64, error)
}

type Worker struct {
	target   Sweeper
	logger   *slog.Logger
	interval time.Duration
	deleted  metric.Int64Counter
}

type Config struct {
	Interval time.Duration
}

func NewWorker(target Sweeper, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	deleted, err := otel.Meter("github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/sweeper").
		Int64Counter("booking_holds_swept_total", metric.WithDescription("Expired hold rows deleted"))
	if err != nil {
		logger.Warn("sweeper metric unavailable", "err", err)
	}
	return &Worker{target: target, logger: logger, interval: cfg.Interval, deleted: deleted}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged; the next tick tries again.
func (w *Worker) Sweep(ctx context.Context) int64 {
	n, err := w.target.SweepExpiredHolds(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("hold sweep failed", "err", err)
		}
		return 0
	}
	if n > 0 {
		w.logger.Info("expired holds swept", "deleted", n)
		if w.deleted != nil {
			w.deleted.Add(ctx, n)
		}
	}
	return n
}
