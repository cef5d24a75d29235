package stripe

import (
	"encoding/json"
	"strings"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type Verifier struct {
	secret string
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{secret: cfg.WebhookSecret}
}

// VerifyWebhook checks the Stripe-Signature header over the raw payload and
// decodes the event. Kinds other than checkout completion come back with only
// ProviderEventID and Kind set, as do checkout sessions without a transaction reference.
func (v *Verifier) VerifyWebhook(payload []byte, signature string) (domain.PaymentNotification, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentNotification{}, domain.ErrSignatureInvalid.Wrap(err)
	}

	n := domain.PaymentNotification{
		ProviderEventID: ev.ID,
		Kind:            string(ev.Type),
	}
	if n.Kind != domain.NotificationCheckoutCompleted {
		return n, nil
	}
	if ev.Data == nil {
		return domain.PaymentNotification{}, domain.ErrMalformedWebhook
	}

	var s stripego.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return domain.PaymentNotification{}, domain.ErrMalformedWebhook.Wrap(err)
	}

	n.Paid = s.PaymentStatus == stripego.CheckoutSessionPaymentStatusPaid

	if tx := strings.TrimSpace(s.Metadata[metaTransactionID]); tx != "" {
		if n.TransactionID, err = uuid.Parse(tx); err != nil {
			return domain.PaymentNotification{}, domain.ErrMalformedWebhook.Wrap(err)
		}
	} else {
		// sessions opened elsewhere on the account carry no reference of ours;
		// TransactionID stays zero and the caller acknowledges them unhandled
		n.TransactionID = parseOptional(s.ClientReferenceID)
	}

	// optional echoes; absent or garbled values stay zero and are not compared
	n.PaymentID = parseOptional(s.Metadata[metaPaymentID])
	n.UserID = parseOptional(s.Metadata[metaUserID])
	n.EventID = parseOptional(s.Metadata[metaEventID])
	return n, nil
}

func parseOptional(s string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil
	}
	return id
}
