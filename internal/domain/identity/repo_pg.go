package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlab/medlab/internal/platform/apperror"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the PostgreSQL-backed user repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const userCols = `id, email, password_hash, last_name, first_name, middle_name,
	phone, birth_date, gender, address, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.LastName, &u.FirstName, &u.MiddleName,
		&u.Phone, &u.BirthDate, &u.Gender, &u.Address, &u.Role, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user not found")
	}
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, last_name, first_name, middle_name,
			phone, birth_date, gender, address, role, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.LastName, u.FirstName, u.MiddleName,
		u.Phone, u.BirthDate, u.Gender, u.Address, u.Role, u.IsActive).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.Conflict("email %s is already registered", u.Email)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET email=$2, password_hash=$3, last_name=$4, first_name=$5,
			middle_name=$6, phone=$7, birth_date=$8, gender=$9, address=$10, role=$11,
			updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.LastName, u.FirstName,
		u.MiddleName, u.Phone, u.BirthDate, u.Gender, u.Address, u.Role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.Conflict("email %s is already registered", u.Email)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active=$2, updated_at=NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	query := `SELECT ` + userCols + ` FROM users WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM users WHERE 1=1`
	var args []interface{}
	idx := 1

	if role, ok := params["role"]; ok && role != "" {
		cond := fmt.Sprintf(` AND role = $%d`, idx)
		query += cond
		countQuery += cond
		args = append(args, role)
		idx++
	}
	if active, ok := params["active"]; ok && active != "" {
		b, err := strconv.ParseBool(active)
		if err == nil {
			cond := fmt.Sprintf(` AND is_active = $%d`, idx)
			query += cond
			countQuery += cond
			args = append(args, b)
			idx++
		}
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

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByRole: make(map[string]int)}

	rows, err := r.pool.Query(ctx, `SELECT role, is_active, COUNT(*) FROM users GROUP BY role, is_active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		var active bool
		var n int
		if err := rows.Scan(&role, &active, &n); err != nil {
			return nil, err
		}
		st.Total += n
		st.ByRole[role] += n
		if active {
			st.Active += n
		} else {
			st.Inactive += n
		}
	}
	return st, rows.Err()
}
