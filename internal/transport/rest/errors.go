package rest

import (
	"errors"
	"net/http"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/booking-service/internal/pkg/context"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/booking-service/internal/transport/rest/response"
)

func statusForKind(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindExternalUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeErr renders domain errors by kind. Anything else is logged and
// reported as a bare 500 so internals do not leak.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ae *domain.AppError
	if errors.As(err, &ae) {
		status := statusForKind(ae.Kind)
		if status >= 500 || ae.Err != nil {
			logger.WithCtx(r.Context()).Warn().Err(err).Str("code", ae.Code).Msg("request failed")
		}
		fail(w, r, status, ae.Code, ae.Message, ae.Meta)
		return
	}

	logger.WithCtx(r.Context()).Error().Err(err).Msg("unhandled error")
	fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	response.Fail(w, status, code, message, meta, appCtx.TraceID(r.Context()))
}
