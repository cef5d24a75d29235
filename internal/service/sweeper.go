package service

import (
	"context"
	"time"

	"github.com/baechuer/real-time-ressys/booking-service/internal/audit"
	"github.com/baechuer/real-time-ressys/booking-service/internal/domain"
	"github.com/baechuer/real-time-ressys/booking-service/internal/metrics"
	"github.com/baechuer/real-time-ressys/booking-service/internal/pkg/logger"
)

// StartIntentSweeper flips expired PENDING intents to FAILED every interval
// until ctx is cancelled.
func StartIntentSweeper(ctx context.Context, ledger domain.Ledger, interval time.Duration, auditLog *audit.Logger) {
	go func() {
		log := logger.Logger.With().Str("component", "intent_sweeper").Logger()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweepOnce(ctx, ledger, auditLog)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				sweepOnce(ctx, ledger, auditLog)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, ledger domain.Ledger, auditLog *audit.Logger) int64 {
	n, err := ledger.ExpireIntents(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Logger.Warn().Err(err).Str("component", "intent_sweeper").Msg("expire intents failed")
		}
		return 0
	}
	if n > 0 {
		metrics.RecordIntentsExpired(n)
		auditLog.IntentsExpired(ctx, n)
	}
	return n
}
