package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job prunes quota rows for anonymous ip identities that have gone idle.
// Email rows are never touched: they carry the plan a paying user bought.
type Job struct {
	pruner    idleRowPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type idleRowPruner interface {
	DeleteIdleIPRows(ctx context.Context, cutoff time.Time) (int64, error)
}

func New(pruner idleRowPruner, retention, interval time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.pruner == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	rows, err := j.pruner.DeleteIdleIPRows(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune idle ip quota rows: %w", err)
	}
	if rows > 0 {
		j.logger.Info("pruned idle ip quota rows", zap.Int64("deleted", rows))
	}

	return nil
}

// Start runs the job on a ticker until the context is cancelled. Errors are
// logged, not fatal: a missed pass is retried on the next tick.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("retention pass failed", zap.Error(err))
			}
		}
	}
}
