package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reconcileHandler = "checkout_completed"

// Reconcile applies a verified checkout notification. The PENDING->terminal
// transition and the paid enrollment commit together or not at all.
func (r *Repository) Reconcile(ctx context.Context, traceID string, in domain.ReconcileInput) (domain.ReconcileResult, error) {
	var res domain.ReconcileResult

	processed, err := r.ProcessOnce(ctx, in.ProviderEventID, reconcileHandler, func(tx pgx.Tx) error {
		out, err := reconcileTx(ctx, tx, traceID, in)
		if err != nil {
			return err
		}
		res = out
		return nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	if !processed {
		// duplicate delivery: report current state without touching it
		p, err := r.intentByTransaction(ctx, in.TransactionID)
		if err != nil {
			return domain.ReconcileResult{}, err
		}
		return domain.ReconcileResult{Intent: p, Status: p.Status, Duplicate: true}, nil
	}
	return res, nil
}

func reconcileTx(ctx context.Context, tx pgx.Tx, traceID string, in domain.ReconcileInput) (domain.ReconcileResult, error) {
	var eventID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT event_id FROM payment_intents WHERE transaction_id = $1`, in.TransactionID).Scan(&eventID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReconcileResult{}, domain.ErrIntentNotFound
		}
		return domain.ReconcileResult{}, err
	}

	if _, err := lockEvent(ctx, tx, eventID); err != nil {
		return domain.ReconcileResult{}, err
	}

	next := domain.IntentFailed
	if in.Paid {
		next = domain.IntentPaid
	}

	// A hold past expires_at no longer counts toward capacity, so a late
	// payment cannot claim the seat.
	p, err := scanIntent(tx.QueryRow(ctx, `
		UPDATE payment_intents
		SET status = CASE WHEN $2::text = 'PAID' AND expires_at <= NOW() THEN 'FAILED' ELSE $2::text END,
			updated_at = NOW()
		WHERE transaction_id = $1 AND status = 'PENDING'
		RETURNING `+intentCols,
		in.TransactionID, string(next),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// already terminal: no-op
		cur, err := scanIntent(tx.QueryRow(ctx, `SELECT `+intentCols+` FROM payment_intents WHERE transaction_id = $1`, in.TransactionID))
		if err != nil {
			return domain.ReconcileResult{}, err
		}
		if err := checkConsistent(cur, in); err != nil {
			return domain.ReconcileResult{}, err
		}
		refund := in.Paid && cur.Status == domain.IntentFailed
		if refund {
			warnRefund(ctx, cur)
		}
		return domain.ReconcileResult{Intent: cur, Status: cur.Status, NeedsRefund: refund}, nil
	}
	if err != nil {
		return domain.ReconcileResult{}, fmt.Errorf("update intent: %w", err)
	}
	if err := checkConsistent(p, in); err != nil {
		return domain.ReconcileResult{}, err
	}

	res := domain.ReconcileResult{Intent: p, Applied: true, Status: p.Status}
	if in.Paid && p.Status == domain.IntentFailed {
		res.NeedsRefund = true
		warnRefund(ctx, p)
	}

	if p.Status == domain.IntentPaid {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO enrollments (id, user_id, event_id, payment_status, joined_at)
			VALUES ($1, $2, $3, 'PAID', NOW())
			ON CONFLICT (user_id, event_id) DO NOTHING
			RETURNING id
		`, uuid.New(), p.UserID, p.EventID).Scan(&id)
		switch {
		case err == nil:
			res.EnrollmentCreated = true
		case errors.Is(err, pgx.ErrNoRows):
			// already enrolled by another path
		default:
			return domain.ReconcileResult{}, fmt.Errorf("insert paid enrollment: %w", err)
		}

		if err := insertOutbox(ctx, tx, traceID, "payment.succeeded", map[string]any{
			"intent_id":      p.ID,
			"transaction_id": p.TransactionID,
			"event_id":       p.EventID,
			"user_id":        p.UserID,
			"amount":         p.Amount,
			"currency":       p.Currency,
		}); err != nil {
			return domain.ReconcileResult{}, err
		}
		return res, nil
	}

	if err := insertOutbox(ctx, tx, traceID, "payment.failed", map[string]any{
		"intent_id":      p.ID,
		"transaction_id": p.TransactionID,
		"event_id":       p.EventID,
		"user_id":        p.UserID,
	}); err != nil {
		return domain.ReconcileResult{}, err
	}
	return res, nil
}

func warnRefund(ctx context.Context, p domain.PaymentIntent) {
	logger.WithCtx(ctx).Warn().
		Str("transaction_id", p.TransactionID.String()).
		Str("event_id", p.EventID.String()).
		Str("user_id", p.UserID.String()).
		Msg("paid notification for failed intent; needs refund")
}

// checkConsistent rejects notifications whose echoed metadata disagrees with
// the stored intent. Zero ids were not sent and are not compared.
func checkConsistent(p domain.PaymentIntent, in domain.ReconcileInput) error {
	mismatch := func(field string) error {
		return domain.ErrIntentNotFound.Wrap(fmt.Errorf("%s mismatch for transaction %s", field, in.TransactionID))
	}
	if in.IntentID != uuid.Nil && in.IntentID != p.ID {
		return mismatch("paymentId")
	}
	if in.UserID != uuid.Nil && in.UserID != p.UserID {
		return mismatch("userId")
	}
	if in.EventID != uuid.Nil && in.EventID != p.EventID {
		return mismatch("eventId")
	}
	return nil
}

func (r *Repository) intentByTransaction(ctx context.Context, transactionID uuid.UUID) (domain.PaymentIntent, error) {
	p, err := scanIntent(r.pool.QueryRow(ctx, `SELECT `+intentCols+` FROM payment_intents WHERE transaction_id = $1`, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, domain.ErrIntentNotFound
		}
		return domain.PaymentIntent{}, err
	}
	return p, nil
}
