package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// Metadata keys echoed back by the provider on the completed session.
const (
	metaPaymentID     = "paymentId"
	metaUserID        = "userId"
	metaEventID       = "eventId"
	metaTransactionID = "transactionId"
)

// Config carries provider credentials explicitly; the global stripe.Key is never set.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the API base URL (stripe-mock, tests). Empty means the default.
	APIURL  string
	Timeout time.Duration
}

// Checkout opens hosted checkout sessions.
type Checkout struct {
	sessions session.Client
	timeout  time.Duration
}

func NewCheckout(cfg Config) *Checkout {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	bc := &stripego.BackendConfig{
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		// the join request is user-facing; a failed call is surfaced, not retried
		MaxNetworkRetries: stripego.Int64(0),
	}
	if strings.TrimSpace(cfg.APIURL) != "" {
		bc.URL = stripego.String(strings.TrimRight(cfg.APIURL, "/"))
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, bc)

	return &Checkout{
		sessions: session.Client{B: backend, Key: cfg.SecretKey},
		timeout:  cfg.Timeout,
	}
}

// OpenSession creates a one-item card checkout for the intent and returns its
// redirect URL. The transaction id doubles as the idempotency key, so a retried
// call for the same intent returns the same session.
func (c *Checkout) OpenSession(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := req.Intent
	params := &stripego.CheckoutSessionParams{
		PaymentMethodTypes: stripego.StringSlice([]string{"card"}),
		Mode:               stripego.String(string(stripego.CheckoutSessionModePayment)),
		LineItems: []*stripego.CheckoutSessionLineItemParams{
			{
				PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
					Currency: stripego.String(p.Currency),
					ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripego.String(req.Event.Title),
					},
					// fee is stored in whole units; the provider wants the minor unit
					UnitAmount: stripego.Int64(int64(p.Amount) * 100),
				},
				Quantity: stripego.Int64(1),
			},
		},
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		ClientReferenceID: stripego.String(p.TransactionID.String()),
		ExpiresAt:         stripego.Int64(p.ExpiresAt.Unix()),
		Metadata: map[string]string{
			metaPaymentID:     p.ID.String(),
			metaUserID:        p.UserID.String(),
			metaEventID:       p.EventID.String(),
			metaTransactionID: p.TransactionID.String(),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(p.TransactionID.String())

	start := time.Now()
	s, err := c.sessions.New(params)
	if err != nil {
		metrics.RecordProviderCall("error", time.Since(start))
		logger.WithCtx(ctx).Warn().Err(err).
			Str("component", "checkout").
			Str("transaction_id", p.TransactionID.String()).
			Msg("checkout session creation failed")
		return "", domain.ErrProviderUnavailable.Wrap(err)
	}
	metrics.RecordProviderCall("ok", time.Since(start))

	if s.URL == "" {
		return "", domain.ErrProviderUnavailable.Wrap(fmt.Errorf("checkout session %s has no url", s.ID))
	}
	return s.URL, nil
}
