package rest

import (
	"net/http"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Handler  *Handler
	Verifier security.AccessTokenVerifier
	// Limiter may be nil; an in-process limiter is used then.
	Limiter   domain.RateLimiter
	RateLimit RateLimitOptions
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}
	if d.Verifier == nil {
		panic("rest.NewRouter: nil verifier")
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)

	r.Get("/healthz", d.Handler.Healthz)
	r.Handle("/metrics", metrics.Handler())

	// provider-facing; authenticated by signature, not by token or rate limit
	r.Post("/payment/webhook", d.Handler.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(d.Limiter, d.RateLimit))

		r.Get("/event", d.Handler.ListEvents)
		r.Get("/event/{eventID}", d.Handler.GetEvent)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Verifier))

			r.Post("/event", d.Handler.CreateEvent)
			r.Patch("/event/{eventID}", d.Handler.UpdateEvent)
			r.Delete("/event/{eventID}", d.Handler.DeleteEvent)

			r.Post("/event/{eventID}/join", d.Handler.Join)
			r.Get("/event/{eventID}/join", d.Handler.JoinStatus)
			r.Get("/event/{eventID}/participants", d.Handler.Participants)

			r.Get("/me/enrollments", d.Handler.MyEnrollments)
		})
	})

	return r
}
