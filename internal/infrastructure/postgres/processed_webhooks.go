package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

func tryMarkProcessedTx(ctx context.Context, tx pgx.Tx, providerEventID, handlerName string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_webhooks (provider_event_id, handler_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, providerEventID, handlerName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ProcessOnce runs fn inside a transaction guarded by the processed_webhooks fence.
//   - duplicate delivery: fn is not executed, processed=false, err=nil.
//   - fn fails: the tx rolls back, the marker is not kept, the provider may retry.
//
// An empty providerEventID cannot be deduped; fn still runs once in its own tx.
func (r *Repository) ProcessOnce(
	ctx context.Context,
	providerEventID, handlerName string,
	fn func(tx pgx.Tx) error,
) (processed bool, err error) {
	providerEventID = strings.TrimSpace(providerEventID)
	handlerName = strings.TrimSpace(handlerName)
	if handlerName == "" {
		handlerName = "unknown"
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if providerEventID != "" {
		first, err := tryMarkProcessedTx(ctx, tx, providerEventID, handlerName)
		if err != nil {
			return false, err
		}
		if !first {
			return false, nil
		}
	}

	if err := fn(tx); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
