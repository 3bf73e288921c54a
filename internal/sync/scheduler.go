package sync

import (
	"context"
	"time"

	"github.com/dvloznov/ledgerkeep/internal/logger"
)

// RunPeriodic drives the engine on a fixed interval until ctx is
// cancelled, recording every outcome in the history. Failures are logged
// and the loop continues; retry policy beyond the next tick belongs to
// the operator.
func RunPeriodic(ctx context.Context, engine *Engine, history *History, interval time.Duration, daysBack int) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("interval", interval).
		Int("days_back", daysBack).
		Msg("Starting periodic reconciliation")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping periodic reconciliation")
			return
		case <-ticker.C:
			started := time.Now().UTC()
			report, err := engine.Reconcile(ctx, daysBack)
			history.Record(daysBack, started, report, err)
			if err != nil {
				log.Error().Err(err).Msg("Scheduled reconciliation failed")
			}
		}
	}
}
