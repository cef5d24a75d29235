package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentFree    PaymentStatus = "FREE"
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Enrollment is a confirmed seat. At most one exists per (user, event).
type Enrollment struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	EventID       uuid.UUID
	PaymentStatus PaymentStatus
	JoinedAt      time.Time
}

type KeysetCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}
