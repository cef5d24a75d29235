package rest

import (
	"net/http"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/service"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest/response"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	joins    *service.JoinService
	events   *service.EventService
	webhooks *service.WebhookService
}

func NewHandler(joins *service.JoinService, events *service.EventService, webhooks *service.WebhookService) *Handler {
	return &Handler{joins: joins, events: events, webhooks: webhooks}
}

func eventIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid event id", map[string]string{
			"id": "must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

func requireAuth(w http.ResponseWriter, r *http.Request) (AuthContext, bool) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		writeErr(w, r, domain.ErrUnauthenticated)
		return AuthContext{}, false
	}
	return auth, true
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
}
