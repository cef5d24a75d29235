package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pendingIntentIndex = "payment_intents_one_pending"
	enrollmentKey      = "enrollments_user_event_key"
)

// Repository is the pgx-backed enrollment ledger and intent store.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -------------------------
// Lock order (same event_id, every write path):
//   1) events row (FOR UPDATE)
//   2) enrollments / payment_intents rows
// EnrollFree, CreateIntent and Reconcile all follow it, so they cannot deadlock
// against each other.
// -------------------------

type lockedEvent struct {
	HostID uuid.UUID
	Status domain.EventStatus
	Max    int
	Fee    int
}

func lockEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (lockedEvent, error) {
	var ev lockedEvent
	var status string
	err := tx.QueryRow(ctx, `
		SELECT host_id, status, max_participants, joining_fee
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&ev.HostID, &status, &ev.Max, &ev.Fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockedEvent{}, domain.ErrEventNotFound
		}
		return lockedEvent{}, fmt.Errorf("lock event: %w", err)
	}
	ev.Status = domain.EventStatus(status)
	return ev, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// occupied = enrollments + live pending holds of everyone except excludeUser.
func countOccupied(ctx context.Context, q querier, eventID, excludeUser uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM enrollments WHERE event_id = $1)
		  + (SELECT COUNT(*) FROM payment_intents
		     WHERE event_id = $1
		       AND status = 'PENDING'
		       AND expires_at > NOW()
		       AND user_id <> $2)
	`, eventID, excludeUser).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count occupied: %w", err)
	}
	return n, nil
}

func enrolled(ctx context.Context, q querier, eventID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM enrollments WHERE event_id = $1 AND user_id = $2)
	`, eventID, userID).Scan(&ok)
	return ok, err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, traceID, routingKey string, payload map[string]any) error {
	payload["occurred_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["producer"] = "booking-service"
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (message_id, trace_id, routing_key, payload, occurred_at, status) VALUES ($1, $2, $3, $4, NOW(), 'pending')`,
		uuid.New(), strings.TrimSpace(traceID), routingKey, body,
	)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", routingKey, err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func (r *Repository) CountOccupied(ctx context.Context, eventID, excludeUser uuid.UUID) (int, error) {
	return countOccupied(ctx, r.pool, eventID, excludeUser)
}

func (r *Repository) GetEnrollment(ctx context.Context, eventID, userID uuid.UUID) (domain.Enrollment, error) {
	var e domain.Enrollment
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, event_id, payment_status, joined_at
		FROM enrollments
		WHERE event_id = $1 AND user_id = $2
	`, eventID, userID).Scan(&e.ID, &e.UserID, &e.EventID, &status, &e.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Enrollment{}, domain.ErrEnrollmentNotFound
		}
		return domain.Enrollment{}, err
	}
	e.PaymentStatus = domain.PaymentStatus(status)
	return e, nil
}

// EnrollFree admits the user to a free event in one transaction.
func (r *Repository) EnrollFree(ctx context.Context, traceID string, eventID, userID uuid.UUID) (domain.Enrollment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Enrollment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if ev.Fee > 0 {
		return domain.Enrollment{}, domain.ErrPaymentRequired
	}

	already, err := enrolled(ctx, tx, eventID, userID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if already {
		return domain.Enrollment{}, domain.ErrAlreadyEnrolled
	}

	occupied, err := countOccupied(ctx, tx, eventID, userID)
	if err != nil {
		return domain.Enrollment{}, err
	}
	if err := domain.CanJoin(domain.Event{Status: ev.Status, MaxParticipants: ev.Max}, occupied); err != nil {
		return domain.Enrollment{}, err
	}

	e := domain.Enrollment{
		ID:            uuid.New(),
		UserID:        userID,
		EventID:       eventID,
		PaymentStatus: domain.PaymentFree,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO enrollments (id, user_id, event_id, payment_status, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING joined_at
	`, e.ID, userID, eventID, string(e.PaymentStatus)).Scan(&e.JoinedAt)
	if err != nil {
		if isUniqueViolation(err, enrollmentKey) {
			return domain.Enrollment{}, domain.ErrAlreadyEnrolled.Wrap(err)
		}
		return domain.Enrollment{}, fmt.Errorf("insert enrollment: %w", err)
	}

	if err := insertOutbox(ctx, tx, traceID, "enrollment.created", map[string]any{
		"event_id":       eventID,
		"user_id":        userID,
		"payment_status": e.PaymentStatus,
	}); err != nil {
		return domain.Enrollment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Enrollment{}, err
	}
	return e, nil
}

const intentCols = `id, transaction_id, user_id, event_id, host_id, amount, currency, status, expires_at, created_at, updated_at`

func scanIntent(row pgx.Row) (domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	var status string
	err := row.Scan(&p.ID, &p.TransactionID, &p.UserID, &p.EventID, &p.HostID,
		&p.Amount, &p.Currency, &status, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	p.Status = domain.IntentStatus(status)
	return p, nil
}

// CreateIntent records a PENDING intent holding one seat until ttl elapses.
// The amount is the fee read under the event lock.
func (r *Repository) CreateIntent(ctx context.Context, eventID, userID uuid.UUID, currency string, ttl time.Duration) (domain.PaymentIntent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ev, err := lockEvent(ctx, tx, eventID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if ev.Fee == 0 {
		return domain.PaymentIntent{}, domain.ErrEventIsFree
	}

	already, err := enrolled(ctx, tx, eventID, userID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if already {
		return domain.PaymentIntent{}, domain.ErrAlreadyEnrolled
	}

	// stale holds of this user no longer block a retry
	if _, err := tx.Exec(ctx, `
		UPDATE payment_intents
		SET status = 'FAILED', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2 AND status = 'PENDING' AND expires_at <= NOW()
	`, eventID, userID); err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("fail expired intents: %w", err)
	}

	var pending bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM payment_intents WHERE event_id = $1 AND user_id = $2 AND status = 'PENDING')
	`, eventID, userID).Scan(&pending); err != nil {
		return domain.PaymentIntent{}, err
	}
	if pending {
		return domain.PaymentIntent{}, domain.ErrDuplicatePending
	}

	occupied, err := countOccupied(ctx, tx, eventID, userID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	if err := domain.CanJoin(domain.Event{Status: ev.Status, MaxParticipants: ev.Max}, occupied); err != nil {
		return domain.PaymentIntent{}, err
	}

	p, err := scanIntent(tx.QueryRow(ctx, `
		INSERT INTO payment_intents (id, transaction_id, user_id, event_id, host_id, amount, currency, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING', NOW() + make_interval(secs => $8), NOW(), NOW())
		RETURNING `+intentCols,
		uuid.New(), uuid.New(), userID, eventID, ev.HostID, ev.Fee, strings.ToLower(currency), ttl.Seconds(),
	))
	if err != nil {
		if isUniqueViolation(err, pendingIntentIndex) {
			return domain.PaymentIntent{}, domain.ErrDuplicatePending.Wrap(err)
		}
		return domain.PaymentIntent{}, fmt.Errorf("insert intent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PaymentIntent{}, err
	}
	return p, nil
}

// FailIntent moves a PENDING intent to FAILED. It reports whether this call did it.
func (r *Repository) FailIntent(ctx context.Context, intentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_intents
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`, intentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) ExpireIntents(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_intents
		SET status = 'FAILED', updated_at = NOW()
		WHERE status = 'PENDING' AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) LatestIntent(ctx context.Context, eventID, userID uuid.UUID) (domain.PaymentIntent, error) {
	p, err := scanIntent(r.pool.QueryRow(ctx, `
		SELECT `+intentCols+`
		FROM payment_intents
		WHERE event_id = $1 AND user_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, eventID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, domain.ErrIntentNotFound
		}
		return domain.PaymentIntent{}, err
	}
	return p, nil
}
