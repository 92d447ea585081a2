package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/medlab/internal/platform/apperror"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed analysis repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const analysisCols = `id, patient_id, analysis_type_id, status, collection_date,
	completion_date, result, result_values, reference_range, notes, cancel_reason,
	performed_by, created_by, created_at, updated_at`

func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	err := row.Scan(&a.ID, &a.PatientID, &a.AnalysisTypeID, &a.Status, &a.CollectionDate,
		&a.CompletionDate, &a.Result, &a.ResultValues, &a.ReferenceRange, &a.Notes,
		&a.CancelReason, &a.PerformedBy, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("analysis not found")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO analyses (id, patient_id, analysis_type_id, status, collection_date,
			notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.AnalysisTypeID, a.Status, a.CollectionDate,
		a.Notes, a.CreatedBy).
		Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return scanAnalysis(r.pool.QueryRow(ctx, `SELECT `+analysisCols+` FROM analyses WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Analysis) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analyses SET collection_date=$2, notes=$3, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.CollectionDate, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("analysis not found")
	}
	return nil
}

func (r *repoPG) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from Status, upd StatusUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE analyses SET status=$3, result=$4, result_values=$5, reference_range=$6,
			completion_date=$7, performed_by=$8, cancel_reason=$9, updated_at=NOW()
		WHERE id = $1 AND status = $2`,
		id, from, upd.To, upd.Result, upd.ResultValues, upd.ReferenceRange,
		upd.CompletionDate, upd.PerformedBy, upd.CancelReason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) Search(ctx context.Context, patientID *uuid.UUID, params map[string]string, limit, offset int) ([]*Analysis, int, error) {
	query := `SELECT ` + analysisCols + ` FROM analyses WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM analyses WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(cond string, val interface{}) {
		c := fmt.Sprintf(cond, idx)
		query += c
		countQuery += c
		args = append(args, val)
		idx++
	}

	if patientID != nil {
		add(` AND patient_id = $%d`, *patientID)
	}
	if s, ok := params["status"]; ok && s != "" {
		add(` AND status = $%d`, s)
	}
	if t, ok := params["type_id"]; ok && t != "" {
		add(` AND analysis_type_id = $%d`, t)
	}
	if d, ok := params["collected_after"]; ok && d != "" {
		add(` AND collection_date >= $%d`, d)
	}
	if d, ok := params["collected_before"]; ok && d != "" {
		add(` AND collection_date <= $%d`, d)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, patientID *uuid.UUID) (map[Status]int, error) {
	query := `SELECT status, COUNT(*) FROM analyses`
	var args []interface{}
	if patientID != nil {
		query += ` WHERE patient_id = $1`
		args = append(args, *patientID)
	}
	query += ` GROUP BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) TypeStats(ctx context.Context) ([]TypeStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, COUNT(a.id), COALESCE(SUM(t.cost), 0)
		FROM analyses a
		JOIN analysis_types t ON t.id = a.analysis_type_id
		GROUP BY t.id, t.name
		ORDER BY COUNT(a.id) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []TypeStat
	for rows.Next() {
		var st TypeStat
		if err := rows.Scan(&st.AnalysisTypeID, &st.TypeName, &st.Count, &st.TotalCost); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
