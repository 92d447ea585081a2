package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rs/zerolog"

	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
	"github.com/medlab/medlab/internal/platform/notification"
)

var validGenders = map[string]bool{"M": true, "F": true, "O": true}

// PortalAccounts creates linked portal user accounts for patients. The
// identity service implements it; the indirection keeps the packages from
// importing each other.
type PortalAccounts interface {
	CreatePatientAccount(ctx context.Context, email, lastName, firstName string) (userID uuid.UUID, initialPassword string, err error)
}

// Service implements patient record management with ownership checks.
type Service struct {
	patients Repository
	accounts PortalAccounts
	mailer   *notification.Mailer
	logger   zerolog.Logger
}

func NewService(patients Repository, accounts PortalAccounts, mailer *notification.Mailer, logger zerolog.Logger) *Service {
	return &Service{patients: patients, accounts: accounts, mailer: mailer, logger: logger}
}

// Input carries the writable patient fields.
type Input struct {
	LastName       string  `json:"last_name"`
	FirstName      string  `json:"first_name"`
	MiddleName     *string `json:"middle_name"`
	BirthDate      string  `json:"birth_date"`
	Gender         string  `json:"gender"`
	Phone          *string `json:"phone"`
	Email          *string `json:"email"`
	Address        *string `json:"address"`
	MedicalHistory *string `json:"medical_history"`
	// CreateAccount asks for a linked portal user; requires Email.
	CreateAccount bool `json:"create_account"`
}

// Created is the creation response; InitialPassword is set only when a
// portal account was created, and is returned exactly once.
type Created struct {
	*Patient
	InitialPassword string `json:"initial_password,omitempty"`
}

func (in *Input) parse(now time.Time) (time.Time, error) {
	if in.LastName == "" || in.FirstName == "" {
		return time.Time{}, apperror.Validation("last_name and first_name are required")
	}
	if !validGenders[in.Gender] {
		return time.Time{}, apperror.Validation("gender must be M, F or O")
	}
	birth, err := time.Parse("2006-01-02", in.BirthDate)
	if err != nil {
		return time.Time{}, apperror.Validation("birth_date must be YYYY-MM-DD")
	}
	if birth.After(now) {
		return time.Time{}, apperror.Validation("birth_date must not be in the future")
	}
	return birth, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input) (*Created, error) {
	birth, err := in.parse(time.Now())
	if err != nil {
		return nil, err
	}

	p := &Patient{
		LastName:       in.LastName,
		FirstName:      in.FirstName,
		MiddleName:     in.MiddleName,
		BirthDate:      birth,
		Gender:         in.Gender,
		Phone:          in.Phone,
		Email:          in.Email,
		Address:        in.Address,
		MedicalHistory: in.MedicalHistory,
		CreatedBy:      actor.UserID,
	}

	if in.CreateAccount && (in.Email == nil || *in.Email == "") {
		return nil, apperror.Validation("email is required to create a portal account")
	}

	// The patient row goes in first; a failed insert must not leave a
	// credentialed login behind.
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}

	out := &Created{Patient: p}
	if in.CreateAccount {
		userID, password, err := s.accounts.CreatePatientAccount(ctx, *in.Email, in.LastName, in.FirstName)
		if err != nil {
			return nil, err
		}
		p.UserID = &userID
		if err := s.patients.Update(ctx, p); err != nil {
			return nil, err
		}
		out.InitialPassword = password
		s.notifyAccountCreated(ctx, p)
	}
	return out, nil
}

// notifyAccountCreated emails the portal welcome notice. A delivery failure
// never fails the creation.
func (s *Service) notifyAccountCreated(ctx context.Context, p *Patient) {
	if p.Email == nil || *p.Email == "" {
		return
	}
	data := map[string]string{
		"patient_name": p.FullName(),
		"email":        *p.Email,
	}
	if err := s.mailer.SendFromTemplate(ctx, "account-created", data, *p.Email); err != nil {
		s.logger.Error().Err(err).Str("patient_id", p.ID.String()).Msg("send account notice")
	}
}

// Get returns a patient record. Patient-role callers may only read the
// record linked to their own account.
func (s *Service) Get(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Allows(actor.Role, auth.CapViewAnyRecord) {
		if !auth.Allows(actor.Role, auth.CapViewOwnRecords) {
			return nil, apperror.Forbidden("no access to patient records")
		}
		if p.UserID == nil || *p.UserID != actor.UserID {
			return nil, apperror.Forbidden("patients may only view their own record")
		}
	}
	return p, nil
}

// Own returns the patient record linked to the calling account.
func (s *Service) Own(ctx context.Context, actor auth.Identity) (*Patient, error) {
	if !auth.Allows(actor.Role, auth.CapViewOwnRecords) {
		return nil, apperror.Forbidden("no access to patient records")
	}
	return s.patients.GetByUserID(ctx, actor.UserID)
}

func (s *Service) Update(ctx context.Context, actor auth.Identity, id uuid.UUID, in Input) (*Patient, error) {
	birth, err := in.parse(time.Now())
	if err != nil {
		return nil, err
	}

	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.LastName = in.LastName
	p.FirstName = in.FirstName
	p.MiddleName = in.MiddleName
	p.BirthDate = birth
	p.Gender = in.Gender
	p.Phone = in.Phone
	p.Email = in.Email
	p.Address = in.Address
	p.MedicalHistory = in.MedicalHistory

	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, params, limit, offset)
}

// Stats returns the patient totals plus the five most recent records.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.patients.Stats(ctx, 5)
}
