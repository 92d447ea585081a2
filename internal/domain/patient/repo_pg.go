package patient

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

// NewRepoPG creates the PostgreSQL-backed patient repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, last_name, first_name, middle_name, birth_date, gender,
	phone, email, address, medical_history, user_id, created_by, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.LastName, &p.FirstName, &p.MiddleName, &p.BirthDate, &p.Gender,
		&p.Phone, &p.Email, &p.Address, &p.MedicalHistory, &p.UserID, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("patient not found")
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, last_name, first_name, middle_name, birth_date, gender,
			phone, email, address, medical_history, user_id, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		p.ID, p.LastName, p.FirstName, p.MiddleName, p.BirthDate, p.Gender,
		p.Phone, p.Email, p.Address, p.MedicalHistory, p.UserID, p.CreatedBy).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET last_name=$2, first_name=$3, middle_name=$4, birth_date=$5,
			gender=$6, phone=$7, email=$8, address=$9, medical_history=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.LastName, p.FirstName, p.MiddleName, p.BirthDate,
		p.Gender, p.Phone, p.Email, p.Address, p.MedicalHistory)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient not found")
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	query := `SELECT ` + patientCols + ` FROM patients WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patients WHERE 1=1`
	var args []interface{}
	idx := 1

	if q, ok := params["q"]; ok && q != "" {
		cond := fmt.Sprintf(` AND (last_name ILIKE $%d OR first_name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)`, idx, idx, idx, idx)
		query += cond
		countQuery += cond
		args = append(args, "%"+q+"%")
		idx++
	}
	if g, ok := params["gender"]; ok && g != "" {
		cond := fmt.Sprintf(` AND gender = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, g)
		idx++
	}
	if d, ok := params["born_after"]; ok && d != "" {
		cond := fmt.Sprintf(` AND birth_date >= $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, d)
		idx++
	}
	if d, ok := params["born_before"]; ok && d != "" {
		cond := fmt.Sprintf(` AND birth_date <= $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, d)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context, recent int) (*Stats, error) {
	var st Stats
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&st.Total); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1`, recent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		st.Recent = append(st.Recent, p)
	}
	return &st, rows.Err()
}
