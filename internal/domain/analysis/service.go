package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medlab/medlab/internal/domain/catalog"
	"github.com/medlab/medlab/internal/domain/patient"
	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
	"github.com/medlab/medlab/internal/platform/notification"
)

// Service implements the analysis lifecycle.
type Service struct {
	analyses   Repository
	patients   patient.Repository
	types      catalog.Repository
	dispatcher notification.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(analyses Repository, patients patient.Repository, types catalog.Repository,
	dispatcher notification.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		analyses:   analyses,
		patients:   patients,
		types:      types,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateInput carries the fields accepted when registering an analysis.
type CreateInput struct {
	PatientID      uuid.UUID `json:"patient_id"`
	AnalysisTypeID uuid.UUID `json:"analysis_type_id"`
	CollectionDate *string   `json:"collection_date"`
	Notes          *string   `json:"notes"`
}

// Create registers a new analysis for a patient. New analyses always start
// in the registered state.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (*Analysis, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperror.Validation("patient_id is required")
	}
	if in.AnalysisTypeID == uuid.Nil {
		return nil, apperror.Validation("analysis_type_id is required")
	}

	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		return nil, err
	}
	typ, err := s.types.GetByID(ctx, in.AnalysisTypeID)
	if err != nil {
		return nil, err
	}
	if !typ.IsActive {
		return nil, apperror.Validation("analysis type %s is not orderable", typ.Name)
	}

	collection, err := parseDate(in.CollectionDate)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		PatientID:      in.PatientID,
		AnalysisTypeID: in.AnalysisTypeID,
		Status:         StatusRegistered,
		CollectionDate: collection,
		Notes:          in.Notes,
		CreatedBy:      actor.UserID,
	}
	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns an analysis. Patient-role callers may only read analyses of
// their own linked patient record.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Analysis, error) {
	a, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, actor, a.PatientID); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateInput carries the editable non-lifecycle fields. Status changes go
// through SetStatus only.
type UpdateInput struct {
	CollectionDate *string `json:"collection_date"`
	Notes          *string `json:"notes"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Analysis, error) {
	a, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, apperror.Validation("cannot edit a %s analysis", a.Status)
	}

	collection, err := parseDate(in.CollectionDate)
	if err != nil {
		return nil, err
	}
	a.CollectionDate = collection
	a.Notes = in.Notes

	if err := s.analyses.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SetStatusInput is the transition payload. Result and ReferenceRange are
// required for completion; CancelReason for cancellation.
type SetStatusInput struct {
	Status         string                 `json:"status"`
	Result         *string                `json:"result"`
	ResultValues   map[string]interface{} `json:"result_values"`
	ReferenceRange *string                `json:"reference_range"`
	CancelReason   *string                `json:"cancel_reason"`
}

// SetStatus moves an analysis along the lifecycle. The write is a single
// compare-and-set against the observed status; a lost race surfaces as
// conflict with no partial write.
func (s *Service) SetStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, in SetStatusInput) (*Analysis, error) {
	target := Status(in.Status)
	if !target.Valid() {
		return nil, apperror.Validation("unknown status %q", in.Status)
	}

	a, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status

	if !CanTransition(from, target) {
		return nil, apperror.InvalidTransition("cannot transition from %s to %s", from, target)
	}

	upd := StatusUpdate{To: target}
	switch target {
	case StatusCompleted:
		if in.Result == nil || *in.Result == "" {
			return nil, apperror.Validation("result is required to complete an analysis")
		}
		if in.ReferenceRange == nil || *in.ReferenceRange == "" {
			return nil, apperror.Validation("reference_range is required to complete an analysis")
		}
		completedAt := s.now()
		upd.Result = in.Result
		upd.ResultValues = in.ResultValues
		upd.ReferenceRange = in.ReferenceRange
		upd.CompletionDate = &completedAt
		upd.PerformedBy = &actor.UserID
	case StatusCancelled:
		if in.CancelReason == nil || *in.CancelReason == "" {
			return nil, apperror.Validation("cancel_reason is required to cancel an analysis")
		}
		upd.CancelReason = in.CancelReason
	}

	ok, err := s.analyses.CompareAndSetStatus(ctx, id, from, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The row moved under us; distinguish a lost race from deletion.
		if _, err := s.analyses.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("analysis status changed concurrently")
	}

	updated, err := s.analyses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if target == StatusCompleted {
		s.notifyCompletion(ctx, updated)
	}
	return updated, nil
}

// notifyCompletion enqueues the completion notice. Dispatch failure never
// affects the committed transition.
func (s *Service) notifyCompletion(ctx context.Context, a *Analysis) {
	p, err := s.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		s.logger.Error().Err(err).Str("analysis_id", a.ID.String()).Msg("load patient for notice")
		return
	}
	if p.Email == nil || *p.Email == "" {
		s.logger.Info().Str("analysis_id", a.ID.String()).Msg("patient has no email, skipping notice")
		return
	}

	typeName := "laboratory"
	if typ, err := s.types.GetByID(ctx, a.AnalysisTypeID); err == nil {
		typeName = typ.Name
	}

	completedAt := s.now()
	if a.CompletionDate != nil {
		completedAt = *a.CompletionDate
	}

	err = s.dispatcher.Dispatch(ctx, notification.Notice{
		AnalysisID:   a.ID,
		AnalysisName: typeName,
		PatientName:  p.FullName(),
		Recipient:    *p.Email,
		CompletedAt:  completedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("analysis_id", a.ID.String()).Msg("dispatch completion notice")
	}
}

// List returns analyses visible to the actor. Patient-role callers are
// scoped to their own linked patient record.
func (s *Service) List(ctx context.Context, actor auth.Identity, params map[string]string, limit, offset int) ([]*Analysis, int, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	return s.analyses.Search(ctx, scope, params, limit, offset)
}

// ListByPatient returns a patient's analyses, enforcing ownership for
// patient-role callers.
func (s *Service) ListByPatient(ctx context.Context, actor auth.Identity, patientID uuid.UUID, limit, offset int) ([]*Analysis, int, error) {
	if err := s.checkOwnership(ctx, actor, patientID); err != nil {
		return nil, 0, err
	}
	return s.analyses.Search(ctx, &patientID, nil, limit, offset)
}

// DashboardStats holds the per-status counts and the completion rate.
type DashboardStats struct {
	Registered     int     `json:"registered"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	Total          int     `json:"total"`
	CompletionRate float64 `json:"completion_rate"`
}

// Dashboard computes the status breakdown fresh from the store. Patient-role
// callers see only their own analyses.
func (s *Service) Dashboard(ctx context.Context, actor auth.Identity) (*DashboardStats, error) {
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, err
	}
	counts, err := s.analyses.CountByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}

	st := &DashboardStats{
		Registered: counts[StatusRegistered],
		InProgress: counts[StatusInProgress],
		Completed:  counts[StatusCompleted],
		Cancelled:  counts[StatusCancelled],
	}
	st.Total = st.Registered + st.InProgress + st.Completed + st.Cancelled
	if st.Total > 0 {
		st.CompletionRate = float64(st.Completed) / float64(st.Total)
	}
	return st, nil
}

// ByStatus lists analyses in one status, scoped like List.
func (s *Service) ByStatus(ctx context.Context, actor auth.Identity, status string, limit, offset int) ([]*Analysis, int, error) {
	if !Status(status).Valid() {
		return nil, 0, apperror.Validation("unknown status %q", status)
	}
	scope, err := s.scope(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	return s.analyses.Search(ctx, scope, map[string]string{"status": status}, limit, offset)
}

// TypeStats returns per-type usage counts and cost totals.
func (s *Service) TypeStats(ctx context.Context) ([]TypeStat, error) {
	return s.analyses.TypeStats(ctx)
}

// scope resolves the patient filter for the actor: nil for staff, the
// caller's own patient record otherwise.
func (s *Service) scope(ctx context.Context, actor auth.Identity) (*uuid.UUID, error) {
	if auth.Allows(actor.Role, auth.CapViewAnyRecord) {
		return nil, nil
	}
	p, err := s.patients.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, apperror.Forbidden("no patient record linked to this account")
	}
	return &p.ID, nil
}

func (s *Service) checkOwnership(ctx context.Context, actor auth.Identity, patientID uuid.UUID) error {
	if auth.Allows(actor.Role, auth.CapViewAnyRecord) {
		return nil
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p.UserID == nil || *p.UserID != actor.UserID {
		return apperror.Forbidden("patients may only view their own analyses")
	}
	return nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, apperror.Validation("date must be YYYY-MM-DD")
	}
	return &t, nil
}
