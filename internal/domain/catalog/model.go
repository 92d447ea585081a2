package catalog

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisType maps to the analysis_types table. Types are versioned: once an
// analysis references a type, pricing or preparation changes create a
// successor row instead of mutating the referenced one.
type AnalysisType struct {
	ID                      uuid.UUID  `db:"id" json:"id"`
	Name                    string     `db:"name" json:"name"`
	Description             *string    `db:"description" json:"description,omitempty"`
	Cost                    float64    `db:"cost" json:"cost"`
	PreparationInstructions *string    `db:"preparation_instructions" json:"preparation_instructions,omitempty"`
	TurnaroundDays          int        `db:"turnaround_days" json:"turnaround_days"`
	IsActive                bool       `db:"is_active" json:"is_active"`
	Version                 int        `db:"version" json:"version"`
	SupersedesID            *uuid.UUID `db:"supersedes_id" json:"supersedes_id,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicService is the unauthenticated catalog view.
type PublicService struct {
	ID                      uuid.UUID `json:"id"`
	Name                    string    `json:"name"`
	Description             *string   `json:"description,omitempty"`
	Cost                    float64   `json:"cost"`
	PreparationInstructions *string   `json:"preparation_instructions,omitempty"`
	TurnaroundDays          int       `json:"turnaround_days"`
}

// Public projects the fields exposed on the public services endpoint.
func (t *AnalysisType) Public() PublicService {
	return PublicService{
		ID:                      t.ID,
		Name:                    t.Name,
		Description:             t.Description,
		Cost:                    t.Cost,
		PreparationInstructions: t.PreparationInstructions,
		TurnaroundDays:          t.TurnaroundDays,
	}
}
