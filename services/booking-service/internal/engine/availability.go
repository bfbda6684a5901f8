package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel/attribute"
)

type AvailabilityQuery struct {
	ClinicID   string
	ServiceID  string
	ProviderID string
	Date       string // YYYY-MM-DD in the clinic's timezone
}

type Slot struct {
	StartTime  time.Time
	EndTime    time.Time
	ProviderID string
}

// Availability lists bookable slots in order. Reason is set only when Slots
// is empty and is advisory: the calendar can change before a commit.
type Availability struct {
	Slots  []Slot
	Reason availability.Reason
}

func (e *Engine) ComputeAvailability(ctx context.Context, q AvailabilityQuery) (Availability, error) {
	ctx, span := e.startSpan(ctx, "compute_availability",
		attribute.String("clinic_id", q.ClinicID),
		attribute.String("service_id", q.ServiceID),
		attribute.String("date", q.Date),
	)
	defer span.End()

	if err := required("clinic_id", q.ClinicID, "service_id", q.ServiceID, "date", q.Date); err != nil {
		return Availability{}, err
	}
	date, err := availability.ParseDate(q.Date)
	if err != nil {
		return Availability{}, invalid("%v", err)
	}
	clinic, svc, err := e.resolve(ctx, q.ClinicID, q.ServiceID)
	if err != nil {
		return Availability{}, err
	}

	hours, ok := clinic.HoursFor(date.Weekday())
	if !ok {
		return Availability{Reason: availability.ReasonMissingHours}, nil
	}
	window, err := availability.LocalWindowToInstants(date, clinic.Timezone, hours)
	switch {
	case err == nil:
	case errors.Is(err, availability.ErrUnknownTimezone):
		return Availability{}, invalid("clinic %q: %v", clinic.ID, err)
	case errors.Is(err, availability.ErrClosedDay) && !hours.IsOpen:
		return Availability{Reason: availability.ReasonClosed}, nil
	default:
		if !errors.Is(err, availability.ErrClosedDay) {
			e.logger.Warn("clinic business hours misconfigured", "clinic_id", clinic.ID, "date", date.String(), "err", err)
		}
		return Availability{Reason: availability.ReasonMissingHours}, nil
	}

	scope := model.Scope{ClinicID: clinic.ID, ProviderID: q.ProviderID}
	now := e.clock()
	busy, err := e.occupancy(ctx, scope, window, now)
	if err != nil {
		return Availability{}, err
	}

	grid := availability.Grid{Window: window, Duration: svc.Duration(), Step: e.cfg.SlotStep, Now: now}
	res := availability.Generate(grid, busy)
	out := Availability{Slots: make([]Slot, 0, len(res.Slots)), Reason: res.Reason(grid)}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, Slot{StartTime: s.Start.UTC(), EndTime: s.End.UTC(), ProviderID: q.ProviderID})
	}
	span.SetAttributes(attribute.Int("slots", len(out.Slots)), attribute.String("reason", string(out.Reason)))
	return out, nil
}

func (e *Engine) occupancy(ctx context.Context, scope model.Scope, window model.Interval, now time.Time) ([]model.Interval, error) {
	appts, err := e.store.ListAppointments(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	holds, err := e.store.ListActiveHolds(ctx, scope, window, now)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	blocks, err := e.store.ListBlockedWindows(ctx, scope, window)
	if err != nil {
		return nil, fmt.Errorf("list blocked windows: %w", err)
	}

	busy := make([]model.Interval, 0, len(appts)+len(holds)+len(blocks))
	for _, a := range appts {
		busy = append(busy, a.Interval())
	}
	for _, h := range holds {
		busy = append(busy, h.Interval())
	}
	for _, b := range blocks {
		busy = append(busy, b.Interval())
	}
	return busy, nil
}
