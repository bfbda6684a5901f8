package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/directory"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/memstore"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

const secret = "test-secret"

// Monday 2 March 2026, before opening.
var now = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	dir, err := directory.NewStatic(
		[]model.Clinic{
			{ID: "clinic-1", Timezone: "UTC", BusinessHours: map[string]model.DayHours{
				"monday": {Open: "09:00", Close: "17:00", IsOpen: true},
			}},
			{ID: "clinic-2", Timezone: "UTC"},
		},
		[]model.Service{{ID: "checkup", ClinicID: "clinic-1", DurationMinutes: 30}},
	)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	eng, err := engine.New(memstore.New(), dir, dir, engine.Config{}, engine.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookingHandler(eng, logger)
	h.now = func() time.Time { return now }

	verifier := auth.Verifier{Secret: secret}
	clinicAuth := func(next http.Handler) http.Handler {
		return httpx.Chain(next, httpx.RequireAuth(verifier), httpx.RequireRole("owner", "admin", "staff"))
	}
	mux := http.NewServeMux()
	h.Register(mux, clinicAuth)
	return mux
}

func token(t *testing.T, clinicID string) string {
	t.Helper()
	tok, err := auth.SignHS256(auth.Claims{Sub: "user-1", ClinicID: clinicID, Role: "owner"}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

type call struct {
	method string
	url    string
	body   any
	header map[string]string
}

func do(t *testing.T, srv http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.url, body)
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rw := httptest.NewRecorder()
	srv.ServeHTTP(rw, req)
	return rw
}

func decode[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rw.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rw.Body.String(), err)
	}
	return v
}

const availabilityURL = "/api/v1/public/availability?clinic_id=clinic-1&service_id=checkup&provider_id=dr-a&date=2026-03-02"

func slotStarts(t *testing.T, srv http.Handler, url string) map[string]bool {
	t.Helper()
	rw := do(t, srv, call{method: http.MethodGet, url: url})
	if rw.Code != http.StatusOK {
		t.Fatalf("availability: %d %s", rw.Code, rw.Body.String())
	}
	res := decode[availabilityResponse](t, rw)
	out := map[string]bool{}
	for _, s := range res.Slots {
		out[s.StartTime] = true
	}
	return out
}

func holdBody(start, end string) map[string]string {
	return map[string]string{
		"clinic_id": "clinic-1", "service_id": "checkup", "provider_id": "dr-a",
		"client_id": "client-1", "start_time": start, "end_time": end,
	}
}

func TestAvailabilityFullDay(t *testing.T) {
	srv := newServer(t)
	starts := slotStarts(t, srv, availabilityURL)
	if len(starts) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(starts))
	}
	if !starts["2026-03-02T09:00:00Z"] || !starts["2026-03-02T16:30:00Z"] {
		t.Fatalf("unexpected slots %v", starts)
	}
}

func TestAvailabilityReasonsAndErrors(t *testing.T) {
	srv := newServer(t)

	rw := do(t, srv, call{method: http.MethodGet, url: "/api/v1/public/availability?clinic_id=clinic-1&service_id=checkup&date=2026-03-03"})
	if rw.Code != http.StatusOK || decode[availabilityResponse](t, rw).Reason != "missing-hours" {
		t.Fatalf("expected missing-hours, got %d %s", rw.Code, rw.Body.String())
	}
	rw = do(t, srv, call{method: http.MethodGet, url: "/api/v1/public/availability?clinic_id=clinic-1&service_id=checkup&date=03/02/2026"})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rw.Code)
	}
	rw = do(t, srv, call{method: http.MethodGet, url: "/api/v1/public/availability?clinic_id=nope&service_id=checkup&date=2026-03-02"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown clinic, got %d", rw.Code)
	}
	rw = do(t, srv, call{method: http.MethodPost, url: availabilityURL})
	if rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

func TestHoldCommitFlow(t *testing.T) {
	srv := newServer(t)

	rw := do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/holds", body: holdBody("2026-03-02T11:00:00Z", "2026-03-02T11:30:00Z")})
	if rw.Code != http.StatusCreated {
		t.Fatalf("create hold: %d %s", rw.Code, rw.Body.String())
	}
	hold := decode[holdResponse](t, rw)
	if hold.ExpiresAt != "2026-03-02T07:15:00Z" {
		t.Fatalf("expected 15 minute TTL, got %s", hold.ExpiresAt)
	}
	if slotStarts(t, srv, availabilityURL)["2026-03-02T11:00:00Z"] {
		t.Fatal("held slot must not be offered")
	}

	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/holds", body: holdBody("2026-03-02T11:00:00Z", "2026-03-02T11:30:00Z")})
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409 for overlapping hold, got %d", rw.Code)
	}
	conflict := decode[errorResponse](t, rw)
	if conflict.Reason != "slot-held" || !conflict.Retryable {
		t.Fatalf("unexpected conflict body %+v", conflict)
	}

	commit := map[string]string{
		"clinic_id": "clinic-1", "service_id": "checkup", "client_id": "client-1",
		"start_time": "2026-03-02T11:00:00Z", "end_time": "2026-03-02T11:30:00Z", "hold_id": hold.HoldID,
	}
	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: commit})
	if rw.Code != http.StatusCreated {
		t.Fatalf("commit: %d %s", rw.Code, rw.Body.String())
	}
	appt := decode[model.Appointment](t, rw)
	if appt.ProviderID != "dr-a" || appt.Status != model.StatusPending {
		t.Fatalf("unexpected appointment %+v", appt)
	}

	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: commit})
	if rw.Code != http.StatusGone {
		t.Fatalf("reusing a consumed hold must fail with 410, got %d", rw.Code)
	}
	if !decode[errorResponse](t, rw).Retryable {
		t.Fatal("expired hold must be retryable")
	}
}

func TestCommitIdempotencyKey(t *testing.T) {
	srv := newServer(t)
	body := map[string]string{
		"clinic_id": "clinic-1", "service_id": "checkup", "provider_id": "dr-a", "client_id": "client-1",
		"start_time": "2026-03-02T14:00:00Z", "end_time": "2026-03-02T14:30:00Z",
	}
	hdr := map[string]string{"Idempotency-Key": "abc-123"}

	first := do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: body, header: hdr})
	second := do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: body, header: hdr})
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected two 201s, got %d and %d", first.Code, second.Code)
	}
	if decode[model.Appointment](t, first).ID != decode[model.Appointment](t, second).ID {
		t.Fatal("replay must return the original appointment")
	}

	body["start_time"], body["end_time"] = "2026-03-02T15:00:00Z", "2026-03-02T15:30:00Z"
	rw := do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: body, header: hdr})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("reusing a key for another request must be rejected, got %d", rw.Code)
	}

	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: map[string]string{
		"clinic_id": "clinic-1", "service_id": "checkup", "provider_id": "dr-b", "client_id": "client-2",
		"start_time": "2026-03-02T18:00:00Z", "end_time": "2026-03-02T18:30:00Z",
	}})
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("booking after closing must be 422, got %d", rw.Code)
	}
}

func TestCancelHold(t *testing.T) {
	srv := newServer(t)
	rw := do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/holds", body: holdBody("2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z")})
	hold := decode[holdResponse](t, rw)

	rw = do(t, srv, call{method: http.MethodDelete, url: "/api/v1/public/holds?hold_id=" + hold.HoldID + "&client_id=someone-else"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("foreign client must not cancel the hold, got %d", rw.Code)
	}
	rw = do(t, srv, call{method: http.MethodDelete, url: "/api/v1/public/holds?hold_id=" + hold.HoldID + "&client_id=client-1"})
	if rw.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d %s", rw.Code, rw.Body.String())
	}
	if !slotStarts(t, srv, availabilityURL)["2026-03-02T10:00:00Z"] {
		t.Fatal("cancelled hold must free the slot")
	}
	rw = do(t, srv, call{method: http.MethodDelete, url: "/api/v1/public/holds?hold_id=" + hold.HoldID})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("second cancel must be 404, got %d", rw.Code)
	}
}

func TestBlockedWindowRoundTrip(t *testing.T) {
	srv := newServer(t)
	block := map[string]string{
		"start_time": "2026-03-02T12:00:00Z", "end_time": "2026-03-02T13:00:00Z", "reason": "lunch",
	}

	rw := do(t, srv, call{method: http.MethodPost, url: "/api/v1/clinic/blocked-windows", body: block})
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rw.Code)
	}

	foreign := map[string]string{"clinic_id": "clinic-1", "start_time": block["start_time"], "end_time": block["end_time"]}
	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/clinic/blocked-windows", body: foreign,
		header: map[string]string{"Authorization": "Bearer " + token(t, "clinic-2")}})
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another clinic, got %d", rw.Code)
	}

	auth := map[string]string{"Authorization": "Bearer " + token(t, "clinic-1")}
	rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/clinic/blocked-windows", body: block, header: auth})
	if rw.Code != http.StatusCreated {
		t.Fatalf("block: %d %s", rw.Code, rw.Body.String())
	}
	created := decode[model.BlockedTimeSlot](t, rw)

	for _, provider := range []string{"dr-a", "dr-b"} {
		starts := slotStarts(t, srv, "/api/v1/public/availability?clinic_id=clinic-1&service_id=checkup&date=2026-03-02&provider_id="+provider)
		if starts["2026-03-02T12:00:00Z"] || starts["2026-03-02T12:30:00Z"] || len(starts) != 14 {
			t.Fatalf("clinic-wide block must hide lunch for %s: %v", provider, starts)
		}
	}

	rw = do(t, srv, call{method: http.MethodDelete, url: "/api/v1/clinic/blocked-windows?id=" + created.ID, header: auth})
	if rw.Code != http.StatusNoContent {
		t.Fatalf("unblock: %d", rw.Code)
	}
	if len(slotStarts(t, srv, availabilityURL)) != 16 {
		t.Fatal("unblocking must restore the slots")
	}
	rw = do(t, srv, call{method: http.MethodDelete, url: "/api/v1/clinic/blocked-windows?id=" + created.ID, header: auth})
	if rw.Code != http.StatusNoContent {
		t.Fatalf("unblocking twice is fine, got %d", rw.Code)
	}
}

func TestListAppointments(t *testing.T) {
	srv := newServer(t)
	auth := map[string]string{"Authorization": "Bearer " + token(t, "clinic-1")}

	rw := do(t, srv, call{method: http.MethodGet, url: "/api/v1/clinic/appointments", header: auth})
	if rw.Code != http.StatusOK || rw.Body.String() != "[]\n" {
		t.Fatalf("expected empty list, got %d %q", rw.Code, rw.Body.String())
	}

	for _, start := range []string{"2026-03-02T10:00:00Z", "2026-03-02T09:00:00Z"} {
		end, _ := time.Parse(time.RFC3339, start)
		rw = do(t, srv, call{method: http.MethodPost, url: "/api/v1/public/appointments", body: map[string]string{
			"clinic_id": "clinic-1", "service_id": "checkup", "provider_id": "dr-a", "client_id": "client-1",
			"start_time": start, "end_time": end.Add(30 * time.Minute).Format(time.RFC3339),
		}})
		if rw.Code != http.StatusCreated {
			t.Fatalf("commit %s: %d %s", start, rw.Code, rw.Body.String())
		}
	}

	rw = do(t, srv, call{method: http.MethodGet, url: "/api/v1/clinic/appointments?limit=1", header: auth})
	list := decode[[]model.Appointment](t, rw)
	if len(list) != 1 || list[0].StartTime.Hour() != 9 {
		t.Fatalf("expected earliest appointment only, got %+v", list)
	}
	rw = do(t, srv, call{method: http.MethodGet, url: "/api/v1/clinic/appointments?limit=abc", header: auth})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rw.Code)
	}
}
