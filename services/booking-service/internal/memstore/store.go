// Package memstore is an in-process engine.Store. Transactions run one at a
// time against a private copy of the state that replaces the shared state on
// commit. It suits tests and single-instance development only.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type state struct {
	appointments map[string]model.Appointment
	holds        map[string]model.Hold
	blocks       map[string]model.BlockedTimeSlot
	idempotency  map[string]model.IdempotencyRecord
	events       []model.Event
	published    int
}

func (s *state) clone() *state {
	return &state{
		appointments: maps.Clone(s.appointments),
		holds:        maps.Clone(s.holds),
		blocks:       maps.Clone(s.blocks),
		idempotency:  maps.Clone(s.idempotency),
		events:       slices.Clone(s.events),
		published:    s.published,
	}
}

type Store struct {
	mu sync.Mutex
	st *state

	// pubMu serializes PublishPending callers; mu is released while sending.
	pubMu sync.Mutex
}

var _ engine.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		appointments: map[string]model.Appointment{},
		holds:        map[string]model.Hold{},
		blocks:       map[string]model.BlockedTimeSlot{},
		idempotency:  map[string]model.IdempotencyRecord{},
	}}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) snapshot() *tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &tx{st: s.st}
}

func (s *Store) ListAppointments(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.Appointment, error) {
	return s.snapshot().ListAppointments(ctx, scope, iv)
}

func (s *Store) ListActiveHolds(ctx context.Context, scope model.Scope, iv model.Interval, now time.Time) ([]model.Hold, error) {
	return s.snapshot().ListActiveHolds(ctx, scope, iv, now)
}

func (s *Store) ListBlockedWindows(ctx context.Context, scope model.Scope, iv model.Interval) ([]model.BlockedTimeSlot, error) {
	return s.snapshot().ListBlockedWindows(ctx, scope, iv)
}

func (s *Store) ListClinicAppointments(_ context.Context, clinicID string, from time.Time, limit int) ([]model.Appointment, error) {
	t := s.snapshot()
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if a.ClinicID == clinicID && !a.StartTime.Before(from) {
			out = append(out, a)
		}
	}
	sortByStart(out, func(a model.Appointment) time.Time { return a.StartTime })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) DeleteExpiredHolds(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	var n int64
	for id, h := range work.holds {
		if !h.Active(now) {
			delete(work.holds, id)
			n++
		}
	}
	s.st = work
	return n, nil
}

// Events returns every event appended so far, oldest first.
func (s *Store) Events() []model.Event {
	return slices.Clone(s.snapshot().st.events)
}

// PublishPending hands up to limit unpublished events to send and advances
// the publish cursor when send succeeds. Transactions and reads proceed while
// send is in flight.
func (s *Store) PublishPending(ctx context.Context, limit int, send func(context.Context, []model.Event) error) (int, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	pending := s.st.events[s.st.published:]
	if len(pending) > limit {
		pending = pending[:limit]
	}
	pending = slices.Clone(pending)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}
	if err := send(ctx, pending); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.st.published += len(pending)
	s.mu.Unlock()
	return len(pending), nil
}

// HoldCount counts hold rows, expired ones included.
func (s *Store) HoldCount() int {
	return len(s.snapshot().st.holds)
}

type tx struct {
	st *state
}

func (t *tx) ListAppointments(_ context.Context, scope model.Scope, iv model.Interval) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range t.st.appointments {
		if a.ClinicID == scope.ClinicID && scope.Covers(a.ProviderID) && a.Status.Occupies() && a.Interval().Overlaps(iv) {
			out = append(out, a)
		}
	}
	sortByStart(out, func(a model.Appointment) time.Time { return a.StartTime })
	return out, nil
}

func (t *tx) ListActiveHolds(_ context.Context, scope model.Scope, iv model.Interval, now time.Time) ([]model.Hold, error) {
	var out []model.Hold
	for _, h := range t.st.holds {
		if h.ClinicID == scope.ClinicID && scope.Covers(h.ProviderID) && h.Active(now) && h.Interval().Overlaps(iv) {
			out = append(out, h)
		}
	}
	sortByStart(out, func(h model.Hold) time.Time { return h.StartTime })
	return out, nil
}

func (t *tx) ListBlockedWindows(_ context.Context, scope model.Scope, iv model.Interval) ([]model.BlockedTimeSlot, error) {
	var out []model.BlockedTimeSlot
	for _, b := range t.st.blocks {
		if b.ClinicID == scope.ClinicID && scope.Covers(b.ProviderID) && b.Interval().Overlaps(iv) {
			out = append(out, b)
		}
	}
	sortByStart(out, func(b model.BlockedTimeSlot) time.Time { return b.StartTime })
	return out, nil
}

func (t *tx) GetHold(_ context.Context, id string) (model.Hold, bool, error) {
	h, ok := t.st.holds[id]
	return h, ok, nil
}

func (t *tx) InsertHold(_ context.Context, h model.Hold) error {
	t.st.holds[h.ID] = h
	return nil
}

func (t *tx) DeleteHold(_ context.Context, id string) error {
	delete(t.st.holds, id)
	return nil
}

func (t *tx) GetAppointment(_ context.Context, id string) (model.Appointment, bool, error) {
	a, ok := t.st.appointments[id]
	return a, ok, nil
}

func (t *tx) InsertAppointment(_ context.Context, a model.Appointment) error {
	t.st.appointments[a.ID] = a
	return nil
}

func (t *tx) InsertBlockedWindow(_ context.Context, b model.BlockedTimeSlot) error {
	t.st.blocks[b.ID] = b
	return nil
}

func (t *tx) DeleteBlockedWindow(_ context.Context, clinicID, id string) (bool, error) {
	b, ok := t.st.blocks[id]
	if !ok || b.ClinicID != clinicID {
		return false, nil
	}
	delete(t.st.blocks, id)
	return true, nil
}

func (t *tx) GetIdempotency(_ context.Context, clinicID, key string) (model.IdempotencyRecord, bool, error) {
	rec, ok := t.st.idempotency[clinicID+"\x00"+key]
	return rec, ok, nil
}

func (t *tx) SaveIdempotency(_ context.Context, rec model.IdempotencyRecord) error {
	t.st.idempotency[rec.ClinicID+"\x00"+rec.Key] = rec
	return nil
}

func (t *tx) AppendEvent(_ context.Context, e model.Event) error {
	t.st.events = append(t.st.events, e)
	return nil
}

func sortByStart[T any](items []T, start func(T) time.Time) {
	slices.SortFunc(items, func(a, b T) int { return start(a).Compare(start(b)) })
}
