package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence interface for analysis types.
type Repository interface {
	Create(ctx context.Context, t *AnalysisType) error
	GetByID(ctx context.Context, id uuid.UUID) (*AnalysisType, error)
	Update(ctx context.Context, t *AnalysisType) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*AnalysisType, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ReferenceCount reports how many analyses reference the type.
	ReferenceCount(ctx context.Context, id uuid.UUID) (int, error)
}
