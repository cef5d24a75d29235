package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/booking-service/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testOpts = service.PaymentOptions{
	Currency:   "bdt",
	SuccessURL: "http://localhost:3000/payment/success",
	CancelURL:  "http://localhost:3000/payment/cancel",
	IntentTTL:  35 * time.Minute,
}

func newJoinService(store *memory.Store, co *MockCheckout) *service.JoinService {
	return service.NewJoinService(store, store, co, nopAudit(), testOpts)
}

func TestJoin_FreeEvent_EnrollsSynchronously(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	co := new(MockCheckout)
	svc := newJoinService(store, co)
	ev := seedEvent(t, store, eventOpts{Max: 3})
	user := uuid.New()

	res, err := svc.Join(ctx, "trace", ev.ID, user)
	require.NoError(t, err)
	require.NotNil(t, res.Enrollment)
	assert.Equal(t, domain.PaymentFree, res.Enrollment.PaymentStatus)
	assert.Empty(t, res.PaymentURL)
	assert.Nil(t, res.Intent)

	_, err = store.LatestIntent(ctx, ev.ID, user)
	assert.ErrorIs(t, err, domain.ErrIntentNotFound)
	co.AssertNotCalled(t, "OpenSession", mock.Anything, mock.Anything)

	_, err = svc.Join(ctx, "trace", ev.ID, user)
	assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)
}

func TestJoin_CapacityBoundary(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newJoinService(store, new(MockCheckout))
	ev := seedEvent(t, store, eventOpts{Max: 3})

	for i := 0; i < 2; i++ {
		_, err := svc.Join(ctx, "trace", ev.ID, uuid.New())
		require.NoError(t, err)
	}
	_, err := svc.Join(ctx, "trace", ev.ID, uuid.New())
	require.NoError(t, err, "third seat is still free")

	_, err = svc.Join(ctx, "trace", ev.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrEventFull)
}

func TestJoin_Rejections(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newJoinService(store, new(MockCheckout))

	_, err := svc.Join(ctx, "trace", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	for _, st := range []domain.EventStatus{domain.EventCancelled, domain.EventCompleted, domain.EventFull} {
		ev := seedEvent(t, store, eventOpts{Status: st})
		_, err := svc.Join(ctx, "trace", ev.ID, uuid.New())
		assert.ErrorIs(t, err, domain.ErrEventNotOpen, string(st))
	}
}

func TestJoin_PaidEvent_ReturnsRedirectAndHoldsSeat(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	co := new(MockCheckout)
	svc := newJoinService(store, co)
	ev := seedEvent(t, store, eventOpts{Max: 1, Fee: 500})
	userA, userB := uuid.New(), uuid.New()

	co.On("OpenSession", mock.Anything, mock.MatchedBy(func(r domain.CheckoutRequest) bool {
		return r.Intent.UserID == userA &&
			r.Intent.Amount == 500 &&
			r.Event.ID == ev.ID &&
			r.SuccessURL == testOpts.SuccessURL &&
			r.CancelURL == testOpts.CancelURL
	})).Return("https://checkout.example/c/1", nil).Once()

	res, err := svc.Join(ctx, "trace", ev.ID, userA)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/c/1", res.PaymentURL)
	assert.Nil(t, res.Enrollment)
	require.NotNil(t, res.Intent)
	assert.Equal(t, domain.IntentPending, res.Intent.Status)
	assert.Equal(t, "bdt", res.Intent.Currency)

	_, err = store.GetEnrollment(ctx, ev.ID, userA)
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)

	// second attempt by the same user
	_, err = svc.Join(ctx, "trace", ev.ID, userA)
	assert.ErrorIs(t, err, domain.ErrDuplicatePending)

	// the live hold takes the only seat
	_, err = svc.Join(ctx, "trace", ev.ID, userB)
	assert.ErrorIs(t, err, domain.ErrEventFull)

	co.AssertExpectations(t)
}

func TestJoin_ProviderFailure_ReleasesIntent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	co := new(MockCheckout)
	svc := newJoinService(store, co)
	ev := seedEvent(t, store, eventOpts{Max: 5, Fee: 300})
	user := uuid.New()

	co.On("OpenSession", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()
	_, err := svc.Join(ctx, "trace", ev.ID, user)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	p, err := store.LatestIntent(ctx, ev.ID, user)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFailed, p.Status)

	// the user can retry immediately
	co.On("OpenSession", mock.Anything, mock.Anything).Return("https://checkout.example/c/2", nil).Once()
	res, err := svc.Join(ctx, "trace", ev.ID, user)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/c/2", res.PaymentURL)
	co.AssertExpectations(t)
}

func TestJoin_PaidScenario_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	co := new(MockCheckout)
	ver := new(MockVerifier)
	joins := newJoinService(store, co)
	hooks := service.NewWebhookService(ver, store, nopAudit())
	ev := seedEvent(t, store, eventOpts{Max: 1, Fee: 500})
	userA, userB := uuid.New(), uuid.New()

	co.On("OpenSession", mock.Anything, mock.Anything).Return("https://checkout.example/c/a", nil).Once()
	res, err := joins.Join(ctx, "trace", ev.ID, userA)
	require.NoError(t, err)

	payload := []byte(`{"id":"evt_a"}`)
	ver.On("VerifyWebhook", payload, "sig").Return(domain.PaymentNotification{
		ProviderEventID: "evt_a",
		Kind:            domain.NotificationCheckoutCompleted,
		Paid:            true,
		PaymentID:       res.Intent.ID,
		TransactionID:   res.Intent.TransactionID,
		UserID:          userA,
		EventID:         ev.ID,
	}, nil)

	ack, err := hooks.Handle(ctx, "trace", payload, "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentPaid, ack.Result.Status)
	assert.True(t, ack.Result.EnrollmentCreated)

	st, err := joins.MyJoinStatus(ctx, ev.ID, userA)
	require.NoError(t, err)
	require.NotNil(t, st.Enrollment)
	assert.Equal(t, domain.PaymentPaid, st.Enrollment.PaymentStatus)

	_, err = joins.Join(ctx, "trace", ev.ID, userB)
	assert.ErrorIs(t, err, domain.ErrEventFull)
}

func TestMyJoinStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	co := new(MockCheckout)
	svc := newJoinService(store, co)
	ev := seedEvent(t, store, eventOpts{Fee: 100})
	user := uuid.New()

	_, err := svc.MyJoinStatus(ctx, ev.ID, user)
	assert.ErrorIs(t, err, domain.ErrEnrollmentNotFound)

	co.On("OpenSession", mock.Anything, mock.Anything).Return("https://checkout.example/c/3", nil)
	_, err = svc.Join(ctx, "trace", ev.ID, user)
	require.NoError(t, err)

	st, err := svc.MyJoinStatus(ctx, ev.ID, user)
	require.NoError(t, err)
	assert.Nil(t, st.Enrollment)
	require.NotNil(t, st.Intent)
	assert.Equal(t, domain.IntentPending, st.Intent.Status)
}

func TestListParticipants_Guard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newJoinService(store, new(MockCheckout))
	host := uuid.New()
	ev := seedEvent(t, store, eventOpts{HostID: host})

	_, err := svc.Join(ctx, "trace", ev.ID, uuid.New())
	require.NoError(t, err)

	t.Run("owner", func(t *testing.T) {
		items, _, err := svc.ListParticipants(ctx, ev.ID, host, "HOST", 10, nil)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
	t.Run("other host forbidden", func(t *testing.T) {
		_, _, err := svc.ListParticipants(ctx, ev.ID, uuid.New(), "HOST", 10, nil)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
	t.Run("admin bypass", func(t *testing.T) {
		items, _, err := svc.ListParticipants(ctx, ev.ID, uuid.New(), "admin", 10, nil)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
	t.Run("unknown event", func(t *testing.T) {
		_, _, err := svc.ListParticipants(ctx, uuid.New(), host, "HOST", 10, nil)
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}
