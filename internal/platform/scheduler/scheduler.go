package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of periodic work; it reports how many items it handled.
type Job func(ctx context.Context) (int, error)

// Every runs job on a ticker until ctx is cancelled. It blocks; callers
// usually start it in its own goroutine.
func Every(ctx context.Context, name string, interval time.Duration, logger *zap.Logger, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := logger.With(zap.String("job", name))
	log.Info("scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			n, err := job(ctx)
			if err != nil {
				log.Error("scheduled job failed", zap.Error(err))
			} else if n > 0 {
				log.Info("scheduled job processed items", zap.Int("count", n))
			}
		}
	}
}
