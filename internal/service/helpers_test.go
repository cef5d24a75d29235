package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/memory"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCheckout struct{ mock.Mock }

func (m *MockCheckout) OpenSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockVerifier struct{ mock.Mock }

func (m *MockVerifier) VerifyWebhook(payload []byte, signature string) (domain.PaymentNotification, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(domain.PaymentNotification), args.Error(1)
}

func nopAudit() *audit.Logger { return audit.New(zerolog.Nop()) }

type eventOpts struct {
	Max    int
	Fee    int
	Status domain.EventStatus
	HostID uuid.UUID
}

func seedEvent(t *testing.T, store *memory.Store, o eventOpts) domain.Event {
	t.Helper()
	if o.Max == 0 {
		o.Max = 10
	}
	if o.Status == "" {
		o.Status = domain.EventOpen
	}
	if o.HostID == uuid.Nil {
		o.HostID = uuid.New()
	}
	now := time.Now().UTC()
	ev := domain.Event{
		ID:              uuid.New(),
		HostID:          o.HostID,
		Title:           "Rooftop jazz",
		Type:            "music",
		Description:     "An evening of live jazz on the roof",
		Location:        "Dhaka",
		Date:            now.Add(72 * time.Hour),
		MinParticipants: 1,
		MaxParticipants: o.Max,
		JoiningFee:      o.Fee,
		Status:          o.Status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.CreateEvent(context.Background(), ev))
	return ev
}
