package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest/response"
	"github.com/go-chi/render"
)

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := validateRequest(req); err != nil {
		writeErr(w, r, err)
		return
	}

	ev, err := h.events.Create(r.Context(), auth.UserID, auth.Role, req.toInput())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.Data(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	var req updateEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := validateRequest(req); err != nil {
		writeErr(w, r, err)
		return
	}

	ev, err := h.events.Update(r.Context(), eventID, auth.UserID, auth.Role, req.toPatch())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventResponse(ev))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.events.Delete(r.Context(), eventID, auth.UserID, auth.Role); err != nil {
		writeErr(w, r, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	ev, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventResponse(ev))
}

// ListEvents accepts type, location, status, limit, date (YYYY-MM-DD) and the
// startDate/endDate pair (YYYY-MM-DD or RFC3339).
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.EventFilter{
		Type:     strings.TrimSpace(q.Get("type")),
		Location: strings.TrimSpace(q.Get("location")),
		Status:   domain.EventStatus(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Limit:    parseLimit(q.Get("limit")),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"date", &f.Date},
		{"startDate", &f.StartDate},
		{"endDate", &f.EndDate},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := parseDay(raw)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid "+p.name, map[string]string{
				p.name: "must be YYYY-MM-DD or RFC3339",
			})
			return
		}
		*p.dst = &t
	}

	items, err := h.events.List(r.Context(), f)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEventResponse(e))
	}
	response.Data(w, http.StatusOK, map[string]any{"items": out})
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
