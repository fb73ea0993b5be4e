package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BillingEventRepo struct {
	pool *pgxpool.Pool
}

func NewBillingEventRepo(pool *pgxpool.Pool) *BillingEventRepo {
	return &BillingEventRepo{pool: pool}
}

// SeenEvent reports whether a provider event was already recorded.
func (r *BillingEventRepo) SeenEvent(ctx context.Context, provider, eventID string) (bool, error) {
	if provider == "" || eventID == "" {
		return false, fmt.Errorf("invalid billing event lookup payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM billing_events WHERE provider = $1 AND event_id = $2
)
`, provider, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check billing event: %w", err)
	}

	return exists, nil
}

// RecordEvent inserts the event, deduplicated by (provider, event_id). The
// boolean result is false when a concurrent or earlier delivery already
// recorded the same event.
func (r *BillingEventRepo) RecordEvent(ctx context.Context, provider, eventID, eventType, email string) (bool, error) {
	if provider == "" || eventID == "" {
		return false, fmt.Errorf("invalid billing event payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO billing_events (provider, event_id, event_type, email, created_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (provider, event_id) DO NOTHING
`, provider, eventID, eventType, email)
	if err != nil {
		return false, fmt.Errorf("record billing event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
