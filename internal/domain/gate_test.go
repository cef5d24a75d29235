package domain_test

import (
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanJoin(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.EventStatus
		max      int
		occupied int
		want     error
	}{
		{"room left", domain.EventOpen, 3, 2, nil},
		{"at capacity", domain.EventOpen, 3, 3, domain.ErrEventFull},
		{"over capacity", domain.EventOpen, 3, 4, domain.ErrEventFull},
		{"unbounded", domain.EventOpen, 0, 1000, nil},
		{"cancelled", domain.EventCancelled, 3, 0, domain.ErrEventNotOpen},
		{"completed", domain.EventCompleted, 3, 0, domain.ErrEventNotOpen},
		{"stored full", domain.EventFull, 3, 1, domain.ErrEventNotOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := domain.Event{Status: tt.status, MaxParticipants: tt.max}
			err := domain.CanJoin(ev, tt.occupied)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func validInput() domain.NewEventInput {
	return domain.NewEventInput{
		Title:           "Board games night",
		Type:            "social",
		Description:     "Bring your favourite game along",
		Location:        "Dhaka",
		Date:            time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC),
		MinParticipants: 2,
		MaxParticipants: 10,
		JoiningFee:      0,
	}
}

func TestNewEvent(t *testing.T) {
	host := uuid.New()
	now := time.Now()

	ev, err := domain.NewEvent(host, validInput(), now)
	require.NoError(t, err)
	assert.Equal(t, domain.EventOpen, ev.Status)
	assert.Equal(t, host, ev.HostID)
	assert.True(t, ev.IsFree())

	in := validInput()
	in.MinParticipants = 11
	_, err = domain.NewEvent(host, in, now)
	assert.ErrorIs(t, err, domain.ErrValidation(""))

	in = validInput()
	in.Title = "ab"
	_, err = domain.NewEvent(host, in, now)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be at least 3 characters", appErr.Meta["title"])
}

func TestApplyPatch(t *testing.T) {
	ev, err := domain.NewEvent(uuid.New(), validInput(), time.Now())
	require.NoError(t, err)

	smaller := 1
	err = ev.ApplyPatch(domain.EventPatch{MaxParticipants: &smaller}, time.Now())
	assert.ErrorIs(t, err, domain.ErrValidation(""))
	assert.Equal(t, 10, ev.MaxParticipants, "failed patch must not mutate")

	completed := domain.EventCompleted
	require.NoError(t, ev.ApplyPatch(domain.EventPatch{Status: &completed}, time.Now()))

	title := "New title"
	assert.ErrorIs(t, ev.ApplyPatch(domain.EventPatch{Title: &title}, time.Now()), domain.ErrEventCompleted)
	assert.ErrorIs(t, ev.CanDelete(), domain.ErrEventCompleted)
}

func TestIsFull(t *testing.T) {
	ev := domain.Event{Status: domain.EventOpen, MaxParticipants: 2, EnrolledCount: 2}
	assert.True(t, ev.IsFull())
	ev.EnrolledCount = 1
	assert.False(t, ev.IsFull())
}

func TestPaymentIntentLive(t *testing.T) {
	now := time.Now()
	p := domain.PaymentIntent{Status: domain.IntentPending, ExpiresAt: now.Add(time.Minute)}
	assert.True(t, p.Live(now))
	assert.False(t, p.Live(now.Add(2*time.Minute)))
	p.Status = domain.IntentFailed
	assert.False(t, p.Live(now))
}
