package catalog

import (
	"errors"

	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/medlab/internal/platform/apperror"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed catalog repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const typeCols = `id, name, description, cost, preparation_instructions,
	turnaround_days, is_active, version, supersedes_id, created_at, updated_at`

func scanType(row pgx.Row) (*AnalysisType, error) {
	var t AnalysisType
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Cost, &t.PreparationInstructions,
		&t.TurnaroundDays, &t.IsActive, &t.Version, &t.SupersedesID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("analysis type not found")
	}
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *AnalysisType) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO analysis_types (id, name, description, cost, preparation_instructions,
			turnaround_days, is_active, version, supersedes_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, t.Cost, t.PreparationInstructions,
		t.TurnaroundDays, t.IsActive, t.Version, t.SupersedesID).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*AnalysisType, error) {
	return scanType(r.pool.QueryRow(ctx, `SELECT `+typeCols+` FROM analysis_types WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, t *AnalysisType) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analysis_types SET name=$2, description=$3, cost=$4,
			preparation_instructions=$5, turnaround_days=$6, updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Cost, t.PreparationInstructions, t.TurnaroundDays)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("analysis type not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*AnalysisType, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE is_active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_types`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `SELECT `+typeCols+` FROM analysis_types`+where+
		` ORDER BY name, version DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*AnalysisType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE analysis_types SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("analysis type not found")
	}
	return nil
}

func (r *repoPG) ReferenceCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses WHERE analysis_type_id = $1`, id).Scan(&n)
	return n, err
}
