package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate carries the fields written together with a status transition.
type StatusUpdate struct {
	To             Status
	Result         *string
	ResultValues   map[string]interface{}
	ReferenceRange *string
	CompletionDate *time.Time
	PerformedBy    *uuid.UUID
	CancelReason   *string
}

// TypeStat is one row of the per-type usage statistics.
type TypeStat struct {
	AnalysisTypeID uuid.UUID `json:"analysis_type_id"`
	TypeName       string    `json:"type_name"`
	Count          int       `json:"count"`
	TotalCost      float64   `json:"total_cost"`
}

// Repository is the persistence interface for analyses.
type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error)
	// Update writes the non-lifecycle fields (collection date, notes).
	Update(ctx context.Context, a *Analysis) error
	// CompareAndSetStatus applies upd only if the row still holds status
	// from. It reports false when the row was not in that status, leaving
	// it untouched.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from Status, upd StatusUpdate) (bool, error)
	// Search filters by the keys "status", "type_id", "collected_after"
	// and "collected_before"; patientID scopes when non-nil.
	Search(ctx context.Context, patientID *uuid.UUID, params map[string]string, limit, offset int) ([]*Analysis, int, error)
	CountByStatus(ctx context.Context, patientID *uuid.UUID) (map[Status]int, error)
	TypeStats(ctx context.Context) ([]TypeStat, error)
}
