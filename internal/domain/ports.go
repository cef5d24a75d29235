package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventFilter struct {
	Type      string
	Location  string
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	// Empty status means OPEN.
	Status EventStatus
	Limit  int
}

// EventCatalog owns the event read model and host writes.
type EventCatalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (Event, error)
	CreateEvent(ctx context.Context, ev Event) error
	UpdateEvent(ctx context.Context, ev Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	ListEvents(ctx context.Context, f EventFilter) ([]Event, error)
}

// Ledger handles enrollments and payment intents. Every write runs in one
// transaction that re-checks capacity under a lock on the event row.
type Ledger interface {
	GetEnrollment(ctx context.Context, eventID, userID uuid.UUID) (Enrollment, error)
	CountOccupied(ctx context.Context, eventID, excludeUser uuid.UUID) (int, error)

	EnrollFree(ctx context.Context, traceID string, eventID, userID uuid.UUID) (Enrollment, error)
	CreateIntent(ctx context.Context, eventID, userID uuid.UUID, currency string, ttl time.Duration) (PaymentIntent, error)
	FailIntent(ctx context.Context, intentID uuid.UUID) (bool, error)
	Reconcile(ctx context.Context, traceID string, in ReconcileInput) (ReconcileResult, error)
	ExpireIntents(ctx context.Context) (int64, error)

	LatestIntent(ctx context.Context, eventID, userID uuid.UUID) (PaymentIntent, error)
	ListMyEnrollments(ctx context.Context, userID uuid.UUID, limit int, cursor *KeysetCursor) ([]Enrollment, *KeysetCursor, error)
	ListParticipants(ctx context.Context, eventID uuid.UUID, limit int, cursor *KeysetCursor) ([]Enrollment, *KeysetCursor, error)
}

// CheckoutProvider opens a hosted checkout session and returns its redirect URL.
type CheckoutProvider interface {
	OpenSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// WebhookVerifier checks the provider signature and decodes the notification.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (PaymentNotification, error)
}

type RateLimiter interface {
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
