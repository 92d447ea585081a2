package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence interface for user accounts.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// List filters by the keys "role" and "active" ("true"/"false").
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error)
	Stats(ctx context.Context) (*Stats, error)
}
