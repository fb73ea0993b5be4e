package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrGlobalCapReached = errors.New("global daily cap reached")

type GlobalStatsRepo struct {
	pool *pgxpool.Pool
}

func NewGlobalStatsRepo(pool *pgxpool.Pool) *GlobalStatsRepo {
	return &GlobalStatsRepo{pool: pool}
}

// TotalForDay reads today's system-wide request total, creating the row with
// zero when the date has not been seen yet. The first caller of the day pays
// the initialization cost.
func (r *GlobalStatsRepo) TotalForDay(ctx context.Context, dayKey string) (int, error) {
	if dayKey == "" {
		return 0, fmt.Errorf("day key is required")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var total int
	err := r.pool.QueryRow(ctx, `
INSERT INTO global_daily_stats (day_key, total_requests, updated_at)
VALUES ($1::date, 0, NOW())
ON CONFLICT (day_key) DO UPDATE SET updated_at = NOW()
RETURNING total_requests
`, dayKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("read global daily total: %w", err)
	}

	return total, nil
}

// IncrementTotal counts one allowed request against the day, guarded by the
// cap. The conditional upsert makes the increment atomic: concurrent callers
// cannot push the total past the cap or lose an update. Returns
// ErrGlobalCapReached when the guard blocks the write.
func (r *GlobalStatsRepo) IncrementTotal(ctx context.Context, dayKey string, cap int) (int, error) {
	if dayKey == "" || cap <= 0 {
		return 0, fmt.Errorf("invalid global increment payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var total int
	err := r.pool.QueryRow(ctx, `
INSERT INTO global_daily_stats (day_key, total_requests, updated_at)
VALUES ($1::date, 1, NOW())
ON CONFLICT (day_key) DO UPDATE SET
	total_requests = global_daily_stats.total_requests + 1,
	updated_at = NOW()
WHERE global_daily_stats.total_requests < $2
RETURNING total_requests
`, dayKey, cap).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrGlobalCapReached
		}
		return 0, fmt.Errorf("increment global daily total: %w", err)
	}

	return total, nil
}
