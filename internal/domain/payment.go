package domain

import (
	"time"

	"github.com/google/uuid"
)

type IntentStatus string

const (
	IntentPending IntentStatus = "PENDING"
	IntentPaid    IntentStatus = "PAID"
	IntentFailed  IntentStatus = "FAILED"
)

func (s IntentStatus) Terminal() bool { return s == IntentPaid || s == IntentFailed }

// PaymentIntent is a pending or settled attempt to pay for one seat.
// Amount is copied from the event fee at creation and never changes.
type PaymentIntent struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	UserID        uuid.UUID
	EventID       uuid.UUID
	HostID        uuid.UUID

	Amount   int
	Currency string
	Status   IntentStatus

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live reports whether the intent still holds a seat at now.
func (p PaymentIntent) Live(now time.Time) bool {
	return p.Status == IntentPending && now.Before(p.ExpiresAt)
}

// NotificationCheckoutCompleted is the only provider notification kind that is reconciled.
const NotificationCheckoutCompleted = "checkout.session.completed"

// PaymentNotification is a verified provider callback, reduced to what reconciliation needs.
type PaymentNotification struct {
	ProviderEventID string
	Kind            string
	Paid            bool

	// Echoed metadata. Zero values mean the provider did not send them.
	PaymentID     uuid.UUID
	TransactionID uuid.UUID
	UserID        uuid.UUID
	EventID       uuid.UUID
}

type CheckoutRequest struct {
	Intent     PaymentIntent
	Event      Event
	SuccessURL string
	CancelURL  string
}

type ReconcileInput struct {
	ProviderEventID string
	TransactionID   uuid.UUID

	// Optional consistency checks against the stored intent.
	IntentID uuid.UUID
	UserID   uuid.UUID
	EventID  uuid.UUID

	Paid bool
}

type ReconcileResult struct {
	Intent PaymentIntent
	// Applied is false when the intent was already terminal or the delivery was seen before.
	Applied           bool
	Status            IntentStatus
	EnrollmentCreated bool
	Duplicate         bool
	// NeedsRefund marks a paid notification that arrived after the hold was gone.
	NeedsRefund bool
}

// JoinStatus is what a user sees when polling their own join state.
type JoinStatus struct {
	Enrollment *Enrollment
	Intent     *PaymentIntent
}
