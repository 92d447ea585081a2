package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medlab/medlab/internal/platform/auth"
)

// User maps to the users table. Accounts are soft-deactivated, never deleted.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastName     string     `db:"last_name" json:"last_name"`
	FirstName    string     `db:"first_name" json:"first_name"`
	MiddleName   *string    `db:"middle_name" json:"middle_name,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	Role         auth.Role  `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Stats is the aggregate returned by the user statistics endpoint.
type Stats struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByRole   map[string]int `json:"by_role"`
}
