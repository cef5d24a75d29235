package postgres

import (
	"context"
	"fmt"

	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// /me/enrollments : ORDER BY joined_at DESC, id DESC
// cursor means "start after this item" -> WHERE (joined_at, id) < (cursor.created_at, cursor.id)
func (r *Repository) ListMyEnrollments(ctx context.Context, userID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	limit = clampLimit(limit)
	args := []any{userID}
	where := "WHERE user_id = $1"

	if cursor != nil {
		where += " AND (joined_at, id) < ($2, $3)"
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	q := fmt.Sprintf(`
		SELECT id, user_id, event_id, payment_status, joined_at
		FROM enrollments
		%s
		ORDER BY joined_at DESC, id DESC
		LIMIT %d
	`, where, limit+1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	return collectPage(rows, limit)
}

// participants: ORDER BY joined_at ASC, id ASC
func (r *Repository) ListParticipants(ctx context.Context, eventID uuid.UUID, limit int, cursor *domain.KeysetCursor) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	limit = clampLimit(limit)
	args := []any{eventID}
	where := "WHERE event_id = $1"

	if cursor != nil {
		where += " AND (joined_at, id) > ($2, $3)"
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	q := fmt.Sprintf(`
		SELECT id, user_id, event_id, payment_status, joined_at
		FROM enrollments
		%s
		ORDER BY joined_at ASC, id ASC
		LIMIT %d
	`, where, limit+1)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	return collectPage(rows, limit)
}

func collectPage(rows pgx.Rows, limit int) ([]domain.Enrollment, *domain.KeysetCursor, error) {
	defer rows.Close()

	var out []domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		var status string
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventID, &status, &e.JoinedAt); err != nil {
			return nil, nil, err
		}
		e.PaymentStatus = domain.PaymentStatus(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.KeysetCursor
	if len(out) > limit {
		last := out[limit-1]
		next = &domain.KeysetCursor{CreatedAt: last.JoinedAt, ID: last.ID}
		out = out[:limit]
	}
	return out, next, nil
}
