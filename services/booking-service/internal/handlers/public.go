package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Booking is the part of *engine.Engine the HTTP layer drives.
type Booking interface {
	ComputeAvailability(ctx context.Context, q engine.AvailabilityQuery) (engine.Availability, error)
	CreateHold(ctx context.Context, req engine.HoldRequest) (model.Hold, error)
	CancelHold(ctx context.Context, holdID, clientID string) error
	CommitAppointment(ctx context.Context, req engine.CommitRequest) (model.Appointment, error)
	BlockWindow(ctx context.Context, actor engine.Actor, req engine.BlockRequest) (model.BlockedTimeSlot, error)
	UnblockWindow(ctx context.Context, actor engine.Actor, id string) error
	ListAppointments(ctx context.Context, actor engine.Actor, from time.Time, limit int) ([]model.Appointment, error)
}

type BookingHandler struct {
	booking Booking
	logger  *slog.Logger
	now     func() time.Time
}

func NewBookingHandler(booking Booking, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{booking: booking, logger: logger, now: time.Now}
}

// Register mounts the public routes directly and the clinic routes behind
// clinicAuth.
func (h *BookingHandler) Register(mux *http.ServeMux, clinicAuth httpx.Middleware) {
	mux.HandleFunc("/api/v1/public/availability", h.Availability)
	mux.HandleFunc("/api/v1/public/holds", h.Holds)
	mux.HandleFunc("/api/v1/public/appointments", h.Commit)
	mux.Handle("/api/v1/clinic/blocked-windows", clinicAuth(http.HandlerFunc(h.BlockedWindows)))
	mux.Handle("/api/v1/clinic/appointments", clinicAuth(http.HandlerFunc(h.List)))
}

type slotItem struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ProviderID string `json:"provider_id,omitempty"`
}

type availabilityResponse struct {
	Date   string     `json:"date"`
	Slots  []slotItem `json:"slots"`
	Reason string     `json:"reason,omitempty"`
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	query := engine.AvailabilityQuery{
		ClinicID:   strings.TrimSpace(q.Get("clinic_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		Date:       strings.TrimSpace(q.Get("date")),
	}
	res, err := h.booking.ComputeAvailability(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := availabilityResponse{Date: query.Date, Slots: make([]slotItem, 0, len(res.Slots)), Reason: string(res.Reason)}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, slotItem{
			StartTime:  s.StartTime.UTC().Format(time.RFC3339),
			EndTime:    s.EndTime.UTC().Format(time.RFC3339),
			ProviderID: s.ProviderID,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type holdRequest struct {
	ClinicID   string `json:"clinic_id"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	ClientID   string `json:"client_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type holdResponse struct {
	HoldID    string `json:"hold_id"`
	ExpiresAt string `json:"expires_at"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Holds creates (POST) or cancels (DELETE) a hold.
func (h *BookingHandler) Holds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createHold(w, r)
	case http.MethodDelete:
		h.cancelHold(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) createHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}
	hold, err := h.booking.CreateHold(r.Context(), engine.HoldRequest{
		ClinicID:   strings.TrimSpace(req.ClinicID),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		ProviderID: strings.TrimSpace(req.ProviderID),
		ClientID:   strings.TrimSpace(req.ClientID),
		StartTime:  start,
		EndTime:    end,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, holdResponse{
		HoldID:    hold.ID,
		ExpiresAt: hold.ExpiresAt.UTC().Format(time.RFC3339),
		StartTime: hold.StartTime.UTC().Format(time.RFC3339),
		EndTime:   hold.EndTime.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) cancelHold(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := h.booking.CancelHold(r.Context(), strings.TrimSpace(q.Get("hold_id")), strings.TrimSpace(q.Get("client_id")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commitRequest struct {
	ClinicID   string `json:"clinic_id"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	ClientID   string `json:"client_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	HoldID     string `json:"hold_id"`
}

func (h *BookingHandler) Commit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 200 {
		badRequest(w, "Idempotency-Key is too long")
		return
	}
	appt, err := h.booking.CommitAppointment(r.Context(), engine.CommitRequest{
		ClinicID:       strings.TrimSpace(req.ClinicID),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		ProviderID:     strings.TrimSpace(req.ProviderID),
		ClientID:       strings.TrimSpace(req.ClientID),
		StartTime:      start,
		EndTime:        end,
		HoldID:         strings.TrimSpace(req.HoldID),
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func parseInterval(w http.ResponseWriter, rawStart, rawEnd string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(rawStart))
	if err != nil {
		badRequest(w, "invalid start_time")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(rawEnd))
	if err != nil {
		badRequest(w, "invalid end_time")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
