package service

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/google/uuid"
)

// WebhookAck tells the transport what happened to an authentic delivery.
type WebhookAck struct {
	Kind    string
	Ignored bool
	Result  domain.ReconcileResult
}

type WebhookService struct {
	verifier domain.WebhookVerifier
	ledger   domain.Ledger
	audit    *audit.Logger
}

func NewWebhookService(verifier domain.WebhookVerifier, ledger domain.Ledger, auditLog *audit.Logger) *WebhookService {
	return &WebhookService{verifier: verifier, ledger: ledger, audit: auditLog}
}

// Handle verifies the signature before looking at the payload, then settles
// the intent. Unpaid completions settle as FAILED and are still acknowledged.
// Unknown intents and storage errors are returned so the provider redelivers.
func (s *WebhookService) Handle(ctx context.Context, traceID string, payload []byte, signature string) (WebhookAck, error) {
	n, err := s.verifier.VerifyWebhook(payload, signature)
	if err != nil {
		outcome := "malformed"
		if errors.Is(err, domain.ErrSignatureInvalid) {
			outcome = "signature_invalid"
		}
		metrics.RecordWebhook(outcome)
		logger.WithCtx(ctx).Warn().Err(err).Str("component", "webhook").Msg("webhook rejected")
		return WebhookAck{}, err
	}

	if n.Kind != domain.NotificationCheckoutCompleted {
		metrics.RecordWebhook("ignored")
		return WebhookAck{Kind: n.Kind, Ignored: true}, nil
	}
	if n.TransactionID == uuid.Nil {
		metrics.RecordWebhook("foreign_session")
		logger.WithCtx(ctx).Info().
			Str("component", "webhook").
			Str("provider_event_id", n.ProviderEventID).
			Msg("checkout session without transaction reference ignored")
		return WebhookAck{Kind: n.Kind, Ignored: true}, nil
	}

	res, err := s.ledger.Reconcile(ctx, traceID, domain.ReconcileInput{
		ProviderEventID: n.ProviderEventID,
		TransactionID:   n.TransactionID,
		IntentID:        n.PaymentID,
		UserID:          n.UserID,
		EventID:         n.EventID,
		Paid:            n.Paid,
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntentNotFound) {
			metrics.RecordWebhook("unknown_intent")
		} else {
			metrics.RecordWebhook("error")
		}
		logger.WithCtx(ctx).Error().Err(err).
			Str("component", "webhook").
			Str("provider_event_id", n.ProviderEventID).
			Str("transaction_id", n.TransactionID.String()).
			Msg("reconcile failed")
		return WebhookAck{}, err
	}

	switch {
	case res.Duplicate:
		metrics.RecordWebhook("duplicate")
	case res.NeedsRefund:
		metrics.RecordWebhook("needs_refund")
	case !res.Applied:
		metrics.RecordWebhook("noop")
	case res.Status == domain.IntentPaid:
		metrics.RecordWebhook("paid")
	default:
		metrics.RecordWebhook("failed")
	}

	if !res.Duplicate {
		s.audit.IntentReconciled(ctx, res, n.ProviderEventID)
	}
	if res.EnrollmentCreated {
		s.audit.EnrollmentCreated(ctx, res.Intent.EventID, res.Intent.UserID, domain.PaymentPaid)
	}
	return WebhookAck{Kind: n.Kind, Result: res}, nil
}
