package rest

import (
	"net/http"

	appCtx "github.com/baechuer/real-time-ressys/booking-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest/response"
)

// Join answers 201 {"enrollment"} for free events and 200 {"paymentUrl","intent"}
// for paid ones. The paid enrollment is created later by the webhook.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	res, err := h.joins.Join(r.Context(), appCtx.TraceID(r.Context()), eventID, auth.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	if res.Enrollment != nil {
		response.Data(w, http.StatusCreated, map[string]any{
			"enrollment": toEnrollmentResponse(*res.Enrollment),
		})
		return
	}
	response.Data(w, http.StatusOK, map[string]any{
		"paymentUrl": res.PaymentURL,
		"intent":     toIntentResponse(*res.Intent),
	})
}

func (h *Handler) JoinStatus(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	st, err := h.joins.MyJoinStatus(r.Context(), eventID, auth.UserID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	out := map[string]any{}
	if st.Enrollment != nil {
		out["enrollment"] = toEnrollmentResponse(*st.Enrollment)
	}
	if st.Intent != nil {
		out["intent"] = toIntentResponse(*st.Intent)
	}
	response.Data(w, http.StatusOK, out)
}

func (h *Handler) MyEnrollments(w http.ResponseWriter, r *http.Request) {
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cur, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid cursor", nil)
		return
	}

	items, next, err := h.joins.ListMyEnrollments(r.Context(), auth.UserID, limit, cur)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"items":       toEnrollmentList(items),
		"next_cursor": encodeCursor(next),
	})
}

func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDParam(w, r)
	if !ok {
		return
	}
	auth, ok := requireAuth(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	cur, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid cursor", nil)
		return
	}

	items, next, err := h.joins.ListParticipants(r.Context(), eventID, auth.UserID, auth.Role, limit, cur)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"items":       toEnrollmentList(items),
		"next_cursor": encodeCursor(next),
	})
}
