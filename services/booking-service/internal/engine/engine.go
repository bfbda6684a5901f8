// Package engine allocates appointment slots: it computes availability,
// places short-lived holds and commits appointments without double booking.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"

type Config struct {
	HoldTTL       time.Duration
	SlotStep      time.Duration
	InitialStatus model.AppointmentStatus
}

func DefaultConfig() Config {
	return Config{
		HoldTTL:       15 * time.Minute,
		SlotStep:      30 * time.Minute,
		InitialStatus: model.StatusPending,
	}
}

type Engine struct {
	store    Store
	clinics  ClinicDirectory
	services ServiceCatalog
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer

	holdsCreated metric.Int64Counter
	committed    metric.Int64Counter
	conflicts    metric.Int64Counter
	expiredHolds metric.Int64Counter
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func New(store Store, clinics ClinicDirectory, services ServiceCatalog, cfg Config, opts ...Option) (*Engine, error) {
	def := DefaultConfig()
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = def.HoldTTL
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = def.SlotStep
	}
	switch cfg.InitialStatus {
	case "":
		cfg.InitialStatus = def.InitialStatus
	case model.StatusPending, model.StatusConfirmed:
	default:
		return nil, fmt.Errorf("initial appointment status must be pending or confirmed, got %q", cfg.InitialStatus)
	}

	e := &Engine{
		store:    store,
		clinics:  clinics,
		services: services,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if e.holdsCreated, err = meter.Int64Counter("booking_holds_created_total", metric.WithDescription("Holds placed")); err != nil {
		return nil, err
	}
	if e.committed, err = meter.Int64Counter("booking_appointments_committed_total", metric.WithDescription("Appointments committed")); err != nil {
		return nil, err
	}
	if e.conflicts, err = meter.Int64Counter("booking_conflicts_total", metric.WithDescription("Writes rejected because the interval was taken")); err != nil {
		return nil, err
	}
	if e.expiredHolds, err = meter.Int64Counter("booking_expired_holds_total", metric.WithDescription("Commits presenting a missing or expired hold")); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "booking."+name, trace.WithAttributes(attrs...))
}

// resolve loads the clinic and one of its services.
func (e *Engine) resolve(ctx context.Context, clinicID, serviceID string) (model.Clinic, model.Service, error) {
	clinic, ok, err := e.clinics.GetClinic(ctx, clinicID)
	if err != nil {
		return model.Clinic{}, model.Service{}, fmt.Errorf("get clinic: %w", err)
	}
	if !ok {
		return model.Clinic{}, model.Service{}, notFound("clinic", clinicID)
	}
	if serviceID == "" {
		return clinic, model.Service{}, nil
	}
	svc, ok, err := e.services.GetService(ctx, serviceID)
	if err != nil {
		return model.Clinic{}, model.Service{}, fmt.Errorf("get service: %w", err)
	}
	if !ok || svc.ClinicID != clinic.ID {
		return model.Clinic{}, model.Service{}, notFound("service", serviceID)
	}
	if svc.DurationMinutes <= 0 {
		return model.Clinic{}, model.Service{}, invalid("service %q has no duration", serviceID)
	}
	return clinic, svc, nil
}

// checkBookable validates a requested interval against the service length,
// the current time and the clinic's opening hours for that local day.
func (e *Engine) checkBookable(clinic model.Clinic, svc model.Service, iv model.Interval, now time.Time) error {
	if !iv.Valid() {
		return invalid("end_time must be after start_time")
	}
	if iv.Duration() != svc.Duration() {
		return invalid("interval is %s but service %q takes %s", iv.Duration(), svc.ID, svc.Duration())
	}
	if iv.Start.Before(now) {
		return invalid("start_time is in the past")
	}
	loc, err := availability.LoadLocation(clinic.Timezone)
	if err != nil {
		return invalid("clinic %q: %v", clinic.ID, err)
	}
	day := availability.DateOf(iv.Start.In(loc))
	hours, ok := clinic.HoursFor(day.Weekday())
	if !ok {
		return fmt.Errorf("%w: no business hours on %s", ErrClosed, day)
	}
	window, err := availability.LocalWindowToInstants(day, clinic.Timezone, hours)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrClosed, day, err)
	}
	if !window.Contains(iv) {
		return fmt.Errorf("%w: interval falls outside opening hours on %s", ErrClosed, day)
	}
	return nil
}

// findConflict reports the first kind of occupancy overlapping iv, ignoring
// the hold identified by ownHoldID. checkHolds and checkBlocks select which
// sources take part.
func findConflict(ctx context.Context, r OccupancyReader, scope model.Scope, iv model.Interval, now time.Time, ownHoldID string, checkHolds, checkBlocks bool) (ConflictReason, error) {
	appts, err := r.ListAppointments(ctx, scope, iv)
	if err != nil {
		return "", fmt.Errorf("list appointments: %w", err)
	}
	if len(appts) > 0 {
		return ConflictBooked, nil
	}
	if checkHolds {
		holds, err := r.ListActiveHolds(ctx, scope, iv, now)
		if err != nil {
			return "", fmt.Errorf("list holds: %w", err)
		}
		for _, h := range holds {
			if h.ID != ownHoldID {
				return ConflictHeld, nil
			}
		}
	}
	if checkBlocks {
		blocks, err := r.ListBlockedWindows(ctx, scope, iv)
		if err != nil {
			return "", fmt.Errorf("list blocked windows: %w", err)
		}
		if len(blocks) > 0 {
			return ConflictBlocked, nil
		}
	}
	return "", nil
}

func (e *Engine) newEvent(ctx context.Context, eventType, aggregateID string, payload any) (model.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.Event{}, err
	}
	tp, ts := otelx.TraceContextStrings(ctx)
	return model.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     body,
		OccurredAt:  e.clock(),
		Traceparent: tp,
		Tracestate:  ts,
	}, nil
}

func (e *Engine) recordConflict(ctx context.Context, op string, reason ConflictReason) {
	e.conflicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("reason", string(reason)),
	))
}

func validUUID(kind, id string) error {
	if id == "" {
		return invalid("%s is required", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return invalid("%s %q is malformed", kind, id)
	}
	return nil
}

func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return invalid("%s is required", fields[i])
		}
	}
	return nil
}
