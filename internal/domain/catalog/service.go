package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/medlab/medlab/internal/platform/apperror"
)

// Service implements catalog management and the public services listing.
type Service struct {
	types Repository
}

func NewService(types Repository) *Service {
	return &Service{types: types}
}

// CreateInput carries the writable analysis type fields.
type CreateInput struct {
	Name                    string  `json:"name"`
	Description             *string `json:"description"`
	Cost                    float64 `json:"cost"`
	PreparationInstructions *string `json:"preparation_instructions"`
	TurnaroundDays          int     `json:"turnaround_days"`
}

func (in *CreateInput) validate() error {
	if in.Name == "" {
		return apperror.Validation("name is required")
	}
	if in.Cost < 0 {
		return apperror.Validation("cost must not be negative")
	}
	if in.TurnaroundDays < 0 {
		return apperror.Validation("turnaround_days must not be negative")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*AnalysisType, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &AnalysisType{
		Name:                    in.Name,
		Description:             in.Description,
		Cost:                    in.Cost,
		PreparationInstructions: in.PreparationInstructions,
		TurnaroundDays:          in.TurnaroundDays,
		IsActive:                true,
		Version:                 1,
	}
	if err := s.types.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AnalysisType, error) {
	return s.types.GetByID(ctx, id)
}

// Update edits a type. A type already referenced by analyses is never
// mutated: the edit produces a successor row (version+1, supersedes_id set)
// and deactivates the original, so recorded analyses keep the terms they
// were ordered under.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in CreateInput) (*AnalysisType, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.types.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	refs, err := s.types.ReferenceCount(ctx, id)
	if err != nil {
		return nil, err
	}

	if refs == 0 {
		current.Name = in.Name
		current.Description = in.Description
		current.Cost = in.Cost
		current.PreparationInstructions = in.PreparationInstructions
		current.TurnaroundDays = in.TurnaroundDays
		if err := s.types.Update(ctx, current); err != nil {
			return nil, err
		}
		return current, nil
	}

	successor := &AnalysisType{
		Name:                    in.Name,
		Description:             in.Description,
		Cost:                    in.Cost,
		PreparationInstructions: in.PreparationInstructions,
		TurnaroundDays:          in.TurnaroundDays,
		IsActive:                true,
		Version:                 current.Version + 1,
		SupersedesID:            &current.ID,
	}
	if err := s.types.Create(ctx, successor); err != nil {
		return nil, err
	}
	if err := s.types.SetActive(ctx, current.ID, false); err != nil {
		return nil, err
	}
	return successor, nil
}

// Deactivate removes a type from the orderable catalog without deleting it.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	t, err := s.types.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return apperror.Conflict("analysis type is already inactive")
	}
	return s.types.SetActive(ctx, id, false)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*AnalysisType, int, error) {
	return s.types.List(ctx, activeOnly, limit, offset)
}

// PublicServices lists active catalog entries for the unauthenticated
// services endpoint.
func (s *Service) PublicServices(ctx context.Context, limit, offset int) ([]PublicService, int, error) {
	items, total, err := s.types.List(ctx, true, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]PublicService, 0, len(items))
	for _, t := range items {
		out = append(out, t.Public())
	}
	return out, total, nil
}
