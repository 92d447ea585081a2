package patient

import (
	"context"

	"github.com/google/uuid"
)

// Stats is the aggregate returned by the patient statistics endpoint.
type Stats struct {
	Total  int        `json:"total"`
	Recent []*Patient `json:"recent"`
}

// Repository is the persistence interface for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// Search filters by the keys "q" (name/phone/email substring),
	// "gender", "born_after" and "born_before" (YYYY-MM-DD).
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
	Stats(ctx context.Context, recent int) (*Stats, error)
}
