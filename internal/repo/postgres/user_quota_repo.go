package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmish9685/Persona-AI-sub000/internal/domain/model"
)

var ErrDailyLimitReached = errors.New("daily message limit reached")

type UserQuotaRepo struct {
	pool *pgxpool.Pool
}

type UserQuotaRecord struct {
	Plan           string
	MsgCount       int
	LastActiveDate time.Time
}

func NewUserQuotaRepo(pool *pgxpool.Pool) *UserQuotaRepo {
	return &UserQuotaRepo{pool: pool}
}

// GetOrCreate returns the quota row for the identity, lazily inserting a
// fresh free-plan row on first sight. The conflict target is the identity
// column itself, so two concurrent first requests converge on one row.
func (r *UserQuotaRepo) GetOrCreate(ctx context.Context, id model.Identity, dayKey string) (UserQuotaRecord, error) {
	if !id.Valid() || dayKey == "" {
		return UserQuotaRecord{}, fmt.Errorf("invalid quota lookup payload")
	}
	if r.pool == nil {
		return UserQuotaRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var query string
	switch id.Kind {
	case model.IdentityEmail:
		query = `
INSERT INTO user_quotas (email, plan, msg_count, last_active_date, created_at, updated_at)
VALUES ($1, 'free', 0, $2::date, NOW(), NOW())
ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
RETURNING plan, msg_count, last_active_date
`
	case model.IdentityIP:
		query = `
INSERT INTO user_quotas (ip_address, plan, msg_count, last_active_date, created_at, updated_at)
VALUES ($1, 'free', 0, $2::date, NOW(), NOW())
ON CONFLICT (ip_address) DO UPDATE SET updated_at = NOW()
RETURNING plan, msg_count, last_active_date
`
	}

	var rec UserQuotaRecord
	if err := r.pool.QueryRow(ctx, query, id.Value, dayKey).Scan(&rec.Plan, &rec.MsgCount, &rec.LastActiveDate); err != nil {
		return UserQuotaRecord{}, fmt.Errorf("get or create quota row: %w", err)
	}

	return rec, nil
}

// ConsumeMessage atomically counts one message against the identity for the
// given day. A stale last_active_date resets the count before the limit check,
// so the statement both enforces the daily limit and performs the calendar
// rollover. Returns ErrDailyLimitReached when the same-day count is already at
// the limit; nothing is written in that case.
func (r *UserQuotaRepo) ConsumeMessage(ctx context.Context, id model.Identity, dayKey string, limit int) (int, error) {
	if !id.Valid() || dayKey == "" || limit <= 0 {
		return 0, fmt.Errorf("invalid quota consume payload")
	}
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	query := fmt.Sprintf(`
UPDATE user_quotas SET
	msg_count = CASE WHEN last_active_date = $2::date THEN msg_count + 1 ELSE 1 END,
	last_active_date = $2::date,
	updated_at = NOW()
WHERE %s = $1
	AND (last_active_date <> $2::date OR msg_count < $3)
RETURNING msg_count
`, identityColumn(id.Kind))

	var msgCount int
	err := r.pool.QueryRow(ctx, query, id.Value, dayKey, limit).Scan(&msgCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDailyLimitReached
		}
		return 0, fmt.Errorf("consume daily message quota: %w", err)
	}

	return msgCount, nil
}

// RefundMessage undoes one same-day consume. Used when the global cap fires
// after the per-identity count was already taken.
func (r *UserQuotaRepo) RefundMessage(ctx context.Context, id model.Identity, dayKey string) error {
	if !id.Valid() || dayKey == "" {
		return fmt.Errorf("invalid quota refund payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	query := fmt.Sprintf(`
UPDATE user_quotas SET
	msg_count = GREATEST(msg_count - 1, 0),
	updated_at = NOW()
WHERE %s = $1 AND last_active_date = $2::date
`, identityColumn(id.Kind))

	if _, err := r.pool.Exec(ctx, query, id.Value, dayKey); err != nil {
		return fmt.Errorf("refund daily message quota: %w", err)
	}

	return nil
}

// SetPlanByEmail upgrades or downgrades the plan for an email identity,
// creating the row when the email has never been seen.
func (r *UserQuotaRepo) SetPlanByEmail(ctx context.Context, email, plan, dayKey string) error {
	if email == "" || plan == "" || dayKey == "" {
		return fmt.Errorf("invalid plan update payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO user_quotas (email, plan, msg_count, last_active_date, created_at, updated_at)
VALUES ($1, $2, 0, $3::date, NOW(), NOW())
ON CONFLICT (email) DO UPDATE SET
	plan = EXCLUDED.plan,
	updated_at = NOW()
`, email, plan, dayKey); err != nil {
		return fmt.Errorf("set plan by email: %w", err)
	}

	return nil
}

// DeleteIdleIPRows removes ip-keyed rows untouched since the cutoff. This is
// administrative retention, never called on the request path.
func (r *UserQuotaRepo) DeleteIdleIPRows(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM user_quotas
WHERE ip_address IS NOT NULL AND updated_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete idle ip quota rows: %w", err)
	}

	return tag.RowsAffected(), nil
}

func identityColumn(kind model.IdentityKind) string {
	if kind == model.IdentityIP {
		return "ip_address"
	}
	return "email"
}
