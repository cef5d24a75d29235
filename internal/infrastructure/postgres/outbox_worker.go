package postgres

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/infrastructure/rabbitmq"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
	"github.com/google/uuid"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 12 // ~ up to hours with exponential backoff
	outboxInFlight    = 15 * time.Second
)

type OutboxPublisher interface {
	Publish(ctx context.Context, m rabbitmq.Message) error
}

// backoff: exponential with jitter, bounded
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// base: 2^attempt seconds, floor 5s, cap at 30 minutes
	sec := math.Pow(2, float64(attempt))
	if sec < 5 {
		sec = 5
	}
	if sec > 1800 {
		sec = 1800
	}

	d := time.Duration(sec) * time.Second

	// jitter +/-10%
	j := time.Duration(rand.Int63n(int64(d/5))) - d/10
	return d + j
}

type outboxMsg struct {
	ID         int64
	MessageID  uuid.UUID
	TraceID    string
	RoutingKey string
	Payload    []byte
	Attempt    int
}

// StartOutboxWorker polls pending outbox rows and publishes them until ctx is done.
func (r *Repository) StartOutboxWorker(ctx context.Context, pub OutboxPublisher, auditLog *audit.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	go func() {
		log := logger.Logger.With().Str("component", "outbox_worker").Logger()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if _, err := r.processOutboxBatch(ctx, pub, auditLog); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox batch failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

// processOutboxBatch returns how many messages were published.
func (r *Repository) processOutboxBatch(ctx context.Context, pub OutboxPublisher, auditLog *audit.Logger) (int, error) {
	// Claim rows inside a tx so multiple workers don't double-publish.
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, message_id, trace_id, routing_key, payload, attempt
		FROM outbox
		WHERE status = 'pending'
		  AND next_retry_at <= NOW()
		ORDER BY next_retry_at ASC, occurred_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, outboxBatchSize)
	if err != nil {
		return 0, err
	}

	var messages []outboxMsg
	for rows.Next() {
		var m outboxMsg
		if err := rows.Scan(&m.ID, &m.MessageID, &m.TraceID, &m.RoutingKey, &m.Payload, &m.Attempt); err != nil {
			rows.Close()
			return 0, err
		}
		messages = append(messages, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(messages) == 0 {
		return 0, tx.Commit(ctx)
	}

	// Push next_retry_at forward to mark rows in-flight, then release the locks
	// so no tx stays open across network publishes.
	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET next_retry_at = $2 WHERE id = ANY($1)`, ids, time.Now().Add(outboxInFlight)); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	sent := 0
	for _, m := range messages {
		err := pub.Publish(ctx, rabbitmq.Message{
			MessageID:  m.MessageID.String(),
			TraceID:    m.TraceID,
			RoutingKey: m.RoutingKey,
			Body:       m.Payload,
		})
		if err != nil {
			metrics.RecordOutboxPublish("error")
			r.failOutbox(ctx, m, err.Error(), auditLog)
			continue
		}

		if _, err := r.pool.Exec(ctx, `UPDATE outbox SET status = 'sent', last_error = NULL WHERE id = $1`, m.ID); err != nil {
			log.Warn().Err(err).Int64("outbox_id", m.ID).Msg("mark sent failed; message may be republished")
		}
		metrics.RecordOutboxPublish("sent")
		if auditLog != nil {
			auditLog.OutboxMessageSent(ctx, m.MessageID.String(), m.RoutingKey)
		}
		sent++
	}
	return sent, nil
}

func (r *Repository) failOutbox(ctx context.Context, m outboxMsg, errMsg string, auditLog *audit.Logger) {
	log := logger.Logger.With().Str("component", "outbox_worker").Logger()

	nextAttempt := m.Attempt + 1
	if nextAttempt >= outboxMaxAttempts {
		_, _ = r.pool.Exec(ctx, `
			UPDATE outbox
			SET status = 'dead',
			    attempt = $2,
			    last_error = $3
			WHERE id = $1
		`, m.ID, nextAttempt, errMsg)

		metrics.RecordOutboxPublish("dead")
		if auditLog != nil {
			auditLog.OutboxMessageDead(ctx, m.MessageID.String(), m.RoutingKey, nextAttempt)
		}
		return
	}

	delay := computeNextRetry(nextAttempt)
	_, _ = r.pool.Exec(ctx, `
		UPDATE outbox
		SET attempt = $2,
		    next_retry_at = NOW() + make_interval(secs => $3),
		    last_error = $4
		WHERE id = $1
	`, m.ID, nextAttempt, delay.Seconds(), errMsg)

	log.Warn().
		Int64("outbox_id", m.ID).
		Str("message_id", m.MessageID.String()).
		Str("routing_key", m.RoutingKey).
		Int("attempt", nextAttempt).
		Dur("retry_in", delay).
		Msg("outbox publish failed; scheduled retry")
}
