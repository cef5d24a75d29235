package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/booking-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest/response"
)

const (
	maxWebhookBody  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

// PaymentWebhook acknowledges with 200 {"received":true} once the delivery is
// durably handled, FAILED payments included. Signature problems are 400 and
// must not be retried; unknown intents and storage errors are non-2xx so the
// provider redelivers.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(w, r, http.StatusRequestEntityTooLarge, "request.too_large", "payload too large", nil)
			return
		}
		fail(w, r, http.StatusBadRequest, "request.invalid", "unreadable body", nil)
		return
	}

	_, err = h.webhooks.Handle(r.Context(), appCtx.TraceID(r.Context()), payload, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			// generic message; verification details stay in the log
			fail(w, r, http.StatusBadRequest, domain.ErrSignatureInvalid.Code, domain.ErrSignatureInvalid.Message, nil)
			return
		}
		writeErr(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]bool{"received": true})
}
