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

var ErrAnalysisNotFound = errors.New("analysis not found")

type AnalysisRepo struct {
	pool *pgxpool.Pool
}

type AnalysisRecord struct {
	ID            string
	IdentityKind  string
	IdentityValue string
	Situation     string
	Options       []string
	Analysis      string
	Model         string
	CreatedAt     time.Time
}

type CheckpointRecord struct {
	ID         string
	AnalysisID string
	Note       string
	CreatedAt  time.Time
}

func NewAnalysisRepo(pool *pgxpool.Pool) *AnalysisRepo {
	return &AnalysisRepo{pool: pool}
}

func (r *AnalysisRepo) Insert(ctx context.Context, rec AnalysisRecord) error {
	if rec.ID == "" || rec.IdentityValue == "" {
		return fmt.Errorf("invalid analysis payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO analyses (id, identity_kind, identity_value, situation, options, analysis, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, rec.ID, rec.IdentityKind, rec.IdentityValue, rec.Situation, rec.Options, rec.Analysis, rec.Model, rec.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

func (r *AnalysisRepo) ListByIdentity(ctx context.Context, id model.Identity, limit int) ([]AnalysisRecord, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("invalid analysis lookup payload")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if r.pool == nil {
		return []AnalysisRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, identity_kind, identity_value, situation, options, analysis, model, created_at
FROM analyses
WHERE identity_kind = $1 AND identity_value = $2
ORDER BY created_at DESC
LIMIT $3
`, string(id.Kind), id.Value, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	items := make([]AnalysisRecord, 0)
	for rows.Next() {
		var item AnalysisRecord
		if err := rows.Scan(
			&item.ID,
			&item.IdentityKind,
			&item.IdentityValue,
			&item.Situation,
			&item.Options,
			&item.Analysis,
			&item.Model,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", rows.Err())
	}

	return items, nil
}

// FindByID loads one analysis scoped to the owning identity, so a caller can
// never read or annotate another identity's record.
func (r *AnalysisRepo) FindByID(ctx context.Context, id model.Identity, analysisID string) (AnalysisRecord, error) {
	if !id.Valid() || analysisID == "" {
		return AnalysisRecord{}, fmt.Errorf("invalid analysis lookup payload")
	}
	if r.pool == nil {
		return AnalysisRecord{}, ErrAnalysisNotFound
	}

	var rec AnalysisRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, identity_kind, identity_value, situation, options, analysis, model, created_at
FROM analyses
WHERE id = $1 AND identity_kind = $2 AND identity_value = $3
LIMIT 1
`, analysisID, string(id.Kind), id.Value).Scan(
		&rec.ID,
		&rec.IdentityKind,
		&rec.IdentityValue,
		&rec.Situation,
		&rec.Options,
		&rec.Analysis,
		&rec.Model,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AnalysisRecord{}, ErrAnalysisNotFound
		}
		return AnalysisRecord{}, fmt.Errorf("find analysis: %w", err)
	}

	return rec, nil
}

func (r *AnalysisRepo) InsertCheckpoint(ctx context.Context, rec CheckpointRecord) error {
	if rec.ID == "" || rec.AnalysisID == "" {
		return fmt.Errorf("invalid checkpoint payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO analysis_checkpoints (id, analysis_id, note, created_at)
VALUES ($1, $2, $3, $4)
`, rec.ID, rec.AnalysisID, rec.Note, rec.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}

	return nil
}

func (r *AnalysisRepo) ListCheckpoints(ctx context.Context, analysisID string) ([]CheckpointRecord, error) {
	if analysisID == "" {
		return nil, fmt.Errorf("analysis id is required")
	}
	if r.pool == nil {
		return []CheckpointRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, analysis_id, note, created_at
FROM analysis_checkpoints
WHERE analysis_id = $1
ORDER BY created_at ASC
`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	items := make([]CheckpointRecord, 0)
	for rows.Next() {
		var item CheckpointRecord
		if err := rows.Scan(&item.ID, &item.AnalysisID, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate checkpoint rows: %w", rows.Err())
	}

	return items, nil
}
