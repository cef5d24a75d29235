package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/booking-service/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pendingIntent(t *testing.T, store *memory.Store, fee int) domain.PaymentIntent {
	t.Helper()
	ev := seedEvent(t, store, eventOpts{Max: 2, Fee: fee})
	p, err := store.CreateIntent(context.Background(), ev.ID, uuid.New(), "bdt", testOpts.IntentTTL)
	require.NoError(t, err)
	return p
}

func completed(p domain.PaymentIntent, providerEventID string, paid bool) domain.PaymentNotification {
	return domain.PaymentNotification{
		ProviderEventID: providerEventID,
		Kind:            domain.NotificationCheckoutCompleted,
		Paid:            paid,
		PaymentID:       p.ID,
		TransactionID:   p.TransactionID,
		UserID:          p.UserID,
		EventID:         p.EventID,
	}
}

func TestWebhook_SignatureFailureTouchesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	ver.On("VerifyWebhook", mock.Anything, "bad").
		Return(domain.PaymentNotification{}, domain.ErrSignatureInvalid.Wrap(errors.New("no match")))

	_, err := svc.Handle(ctx, "trace", []byte(`{}`), "bad")
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)

	cur, err := store.LatestIntent(ctx, p.EventID, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentPending, cur.Status)
}

func TestWebhook_IgnoresOtherKinds(t *testing.T) {
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())

	ver.On("VerifyWebhook", mock.Anything, "sig").
		Return(domain.PaymentNotification{ProviderEventID: "evt_x", Kind: "payment_intent.created"}, nil)

	ack, err := svc.Handle(context.Background(), "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Ignored)
	assert.Equal(t, "payment_intent.created", ack.Kind)
}

func TestWebhook_AcknowledgesSessionWithoutReference(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	ver.On("VerifyWebhook", mock.Anything, "sig").Return(domain.PaymentNotification{
		ProviderEventID: "evt_foreign",
		Kind:            domain.NotificationCheckoutCompleted,
		Paid:            true,
	}, nil)

	ack, err := svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Ignored)

	cur, err := store.LatestIntent(ctx, p.EventID, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentPending, cur.Status)
	assert.Empty(t, store.Outbox())
}

func TestWebhook_PaidIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	ver.On("VerifyWebhook", mock.Anything, "sig").Return(completed(p, "evt_1", true), nil)

	ack, err := svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Result.Applied)
	assert.True(t, ack.Result.EnrollmentCreated)

	ack, err = svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Result.Duplicate)
	assert.False(t, ack.Result.EnrollmentCreated)

	items, _, err := store.ListParticipants(ctx, p.EventID, 10, nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWebhook_UnpaidSettlesFailedWithoutEnrollment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	ver.On("VerifyWebhook", mock.Anything, "sig").Return(completed(p, "evt_2", false), nil)

	ack, err := svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFailed, ack.Result.Status)

	_, err = store.GetEnrollment(ctx, p.EventID, p.UserID)
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
}

func TestWebhook_TerminalIntentIsNoop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	ver.On("VerifyWebhook", mock.Anything, "first").Return(completed(p, "evt_3", false), nil)
	ver.On("VerifyWebhook", mock.Anything, "second").Return(completed(p, "evt_4", true), nil)

	_, err := svc.Handle(ctx, "trace", []byte(`{}`), "first")
	require.NoError(t, err)

	// a different delivery for the same, already terminal intent
	ack, err := svc.Handle(ctx, "trace", []byte(`{}`), "second")
	require.NoError(t, err)
	assert.False(t, ack.Result.Applied)
	assert.Equal(t, domain.IntentFailed, ack.Result.Status)

	_, err = store.GetEnrollment(ctx, p.EventID, p.UserID)
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)
}

func TestWebhook_UnknownIntentIsSurfaced(t *testing.T) {
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())

	ver.On("VerifyWebhook", mock.Anything, "sig").Return(domain.PaymentNotification{
		ProviderEventID: "evt_5",
		Kind:            domain.NotificationCheckoutCompleted,
		Paid:            true,
		TransactionID:   uuid.New(),
	}, nil)

	_, err := svc.Handle(context.Background(), "trace", []byte(`{}`), "sig")
	assert.ErrorIs(t, err, domain.ErrIntentNotFound)
}

func TestWebhook_StorageFailureLeavesIntentPending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ver := new(MockVerifier)
	svc := service.NewWebhookService(ver, store, nopAudit())
	p := pendingIntent(t, store, 500)

	store.BeforeCommit = func(op string) error {
		if op == "reconcile" {
			return errors.New("disk full")
		}
		return nil
	}
	ver.On("VerifyWebhook", mock.Anything, "sig").Return(completed(p, "evt_6", true), nil)

	_, err := svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.Error(t, err)

	cur, err := store.LatestIntent(ctx, p.EventID, p.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentPending, cur.Status)
	_, err = store.GetEnrollment(ctx, p.EventID, p.UserID)
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)

	// redelivery after recovery applies exactly once
	store.BeforeCommit = nil
	ack, err := svc.Handle(ctx, "trace", []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.True(t, ack.Result.EnrollmentCreated)
}
