package audit

import (
	"context"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	appCtx "github.com/baechuer/real-time-ressys/booking-service/internal/pkg/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger writes one structured line per business fact (audit=true).
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// EnrollmentCreated logs a confirmed seat, free or paid.
func (l *Logger) EnrollmentCreated(ctx context.Context, eventID, userID uuid.UUID, status domain.PaymentStatus) {
	l.log.Info().
		Str("action", "enrollment_created").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("payment_status", string(status)).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("User enrolled in event")
}

func (l *Logger) IntentCreated(ctx context.Context, p domain.PaymentIntent) {
	l.log.Info().
		Str("action", "intent_created").
		Str("intent_id", p.ID.String()).
		Str("transaction_id", p.TransactionID.String()).
		Str("event_id", p.EventID.String()).
		Str("user_id", p.UserID.String()).
		Int("amount", p.Amount).
		Str("currency", p.Currency).
		Time("expires_at", p.ExpiresAt).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("Payment intent created")
}

func (l *Logger) IntentReconciled(ctx context.Context, res domain.ReconcileResult, providerEventID string) {
	l.log.Info().
		Str("action", "intent_reconciled").
		Str("intent_id", res.Intent.ID.String()).
		Str("transaction_id", res.Intent.TransactionID.String()).
		Str("status", string(res.Status)).
		Bool("applied", res.Applied).
		Bool("enrollment_created", res.EnrollmentCreated).
		Str("provider_event_id", providerEventID).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("Payment intent reconciled")
}

func (l *Logger) IntentsExpired(ctx context.Context, n int64) {
	l.log.Info().
		Str("action", "intent_expired").
		Int64("count", n).
		Msg("Expired pending payment intents")
}

func (l *Logger) EventCreated(ctx context.Context, ev domain.Event) {
	l.log.Info().
		Str("action", "event_created").
		Str("event_id", ev.ID.String()).
		Str("host_id", ev.HostID.String()).
		Int("joining_fee", ev.JoiningFee).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("Event created")
}

func (l *Logger) EventUpdated(ctx context.Context, ev domain.Event, actorID uuid.UUID) {
	l.log.Info().
		Str("action", "event_updated").
		Str("event_id", ev.ID.String()).
		Str("actor_user_id", actorID.String()).
		Str("status", string(ev.Status)).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("Event updated")
}

func (l *Logger) EventDeleted(ctx context.Context, eventID, actorID uuid.UUID) {
	l.log.Warn().
		Str("action", "event_deleted").
		Str("event_id", eventID.String()).
		Str("actor_user_id", actorID.String()).
		Str("trace_id", appCtx.TraceID(ctx)).
		Msg("Event deleted")
}

func (l *Logger) OutboxMessageSent(ctx context.Context, messageID, routingKey string) {
	l.log.Debug().
		Str("action", "outbox_sent").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Msg("Outbox message sent")
}

// OutboxMessageDead logs when an outbox message is moved to dead status
func (l *Logger) OutboxMessageDead(ctx context.Context, messageID, routingKey string, retries int) {
	l.log.Error().
		Str("action", "outbox_dead").
		Str("message_id", messageID).
		Str("routing_key", routingKey).
		Int("retries", retries).
		Msg("Outbox message moved to dead status")
}
