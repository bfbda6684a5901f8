package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type blockRequest struct {
	ClinicID   string `json:"clinic_id"`
	ProviderID string `json:"provider_id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Reason     string `json:"reason"`
}

func actorFrom(r *http.Request) (engine.Actor, bool) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return engine.Actor{}, false
	}
	return engine.Actor{UserID: claims.Sub, ClinicID: claims.ClinicID, Role: claims.Role}, true
}

// BlockedWindows creates (POST) or removes (DELETE) a blocked window of the
// caller's clinic.
func (h *BookingHandler) BlockedWindows(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		start, end, ok := parseInterval(w, req.StartTime, req.EndTime)
		if !ok {
			return
		}
		clinicID := strings.TrimSpace(req.ClinicID)
		if clinicID == "" {
			clinicID = actor.ClinicID
		}
		block, err := h.booking.BlockWindow(r.Context(), actor, engine.BlockRequest{
			ClinicID:   clinicID,
			ProviderID: strings.TrimSpace(req.ProviderID),
			StartTime:  start,
			EndTime:    end,
			Reason:     strings.TrimSpace(req.Reason),
		})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, block)
	case http.MethodDelete:
		if err := h.booking.UnblockWindow(r.Context(), actor, strings.TrimSpace(r.URL.Query().Get("id"))); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// List returns the caller's clinic appointments from ?from= (RFC3339,
// default now) onwards.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	from := h.now()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "invalid from")
			return
		}
		from = t
	}
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	appts, err := h.booking.ListAppointments(r.Context(), actor, from, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	httpx.WriteJSON(w, http.StatusOK, appts)
}
