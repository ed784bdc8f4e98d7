package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/accesscontrol"
	"github.com/spec-kit/account-service/internal/observability"
)

// StartRevocationSweeper periodically prunes denylist entries and refresh
// records whose tokens have passed their natural expiry. Expired tokens fail
// validation on their own, so removal never widens access; it only keeps the
// denylist from growing without bound. Runs until ctx is cancelled.
func StartRevocationSweeper(ctx context.Context, store accesscontrol.RevocationStore, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				pruned, err := store.PruneExpired(sweepCtx, time.Now())
				cancel()
				if err != nil {
					logger.Error("revocation sweep failed", zap.Error(err))
					continue
				}
				metrics.RecordSweep()
				if pruned > 0 {
					logger.Info("pruned expired revocation entries", zap.Int64("count", pruned))
				}
			}
		}
	}()
}
