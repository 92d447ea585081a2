package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
)

// Service implements authentication and user administration.
type Service struct {
	users Repository
	jwt   auth.JWTConfig
}

func NewService(users Repository, jwt auth.JWTConfig) *Service {
	return &Service{users: users, jwt: jwt}
}

// LoginInput is the credentials payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the login response.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Login verifies credentials and issues a signed token. Deactivated accounts
// cannot sign in.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.Validation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Same response for unknown email and wrong password.
		return nil, apperror.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized("account is deactivated")
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := auth.IssueToken(s.jwt, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: u}, nil
}

// RegisterInput is the self-service signup payload.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
}

// Register creates a patient-role account. Staff accounts are only created
// through user administration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.Validation("a valid email is required")
	}
	if in.LastName == "" || in.FirstName == "" {
		return nil, apperror.Validation("last_name and first_name are required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		LastName:     in.LastName,
		FirstName:    in.FirstName,
		Role:         auth.RolePatient,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreatePatientAccount creates a portal account with a generated password
// for a staff-created patient record. Satisfies patient.PortalAccounts.
func (s *Service) CreatePatientAccount(ctx context.Context, email, lastName, firstName string) (uuid.UUID, string, error) {
	password, err := auth.GeneratePassword()
	if err != nil {
		return uuid.Nil, "", err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return uuid.Nil, "", err
	}

	u := &User{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		LastName:     lastName,
		FirstName:    firstName,
		Role:         auth.RolePatient,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, "", err
	}
	return u.ID, password, nil
}

// CreateInput is the admin user-creation payload.
type CreateInput struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	LastName   string  `json:"last_name"`
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name"`
	Phone      *string `json:"phone"`
	BirthDate  *string `json:"birth_date"`
	Gender     *string `json:"gender"`
	Address    *string `json:"address"`
	Role       string  `json:"role"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.Validation("a valid email is required")
	}
	if in.LastName == "" || in.FirstName == "" {
		return nil, apperror.Validation("last_name and first_name are required")
	}
	role := auth.Role(in.Role)
	if !role.Valid() {
		return nil, apperror.Validation("role must be administrator, moderator or patient")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}

	birth, err := parseBirthDate(in.BirthDate)
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		LastName:     in.LastName,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		Phone:        in.Phone,
		BirthDate:    birth,
		Gender:       in.Gender,
		Address:      in.Address,
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateInput is the admin user-update payload. Password is optional;
// an empty value keeps the stored hash.
type UpdateInput struct {
	Email      string  `json:"email"`
	Password   string  `json:"password"`
	LastName   string  `json:"last_name"`
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name"`
	Phone      *string `json:"phone"`
	BirthDate  *string `json:"birth_date"`
	Gender     *string `json:"gender"`
	Address    *string `json:"address"`
	Role       string  `json:"role"`
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != "" {
		u.Email = normalizeEmail(in.Email)
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.Role != "" {
		role := auth.Role(in.Role)
		if !role.Valid() {
			return nil, apperror.Validation("role must be administrator, moderator or patient")
		}
		u.Role = role
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		u.PasswordHash = hash
	}
	if in.BirthDate != nil {
		birth, err := parseBirthDate(in.BirthDate)
		if err != nil {
			return nil, err
		}
		u.BirthDate = birth
	}
	u.MiddleName = in.MiddleName
	u.Phone = in.Phone
	u.Gender = in.Gender
	u.Address = in.Address

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Deactivate soft-disables an account. Admins cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, actor auth.Identity, id uuid.UUID) error {
	if actor.UserID == id {
		return apperror.Validation("cannot deactivate your own account")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return apperror.Conflict("account is already deactivated")
	}
	return s.users.SetActive(ctx, id, false)
}

// Profile returns the calling user's own record.
func (s *Service) Profile(ctx context.Context, actor auth.Identity) (*User, error) {
	return s.users.GetByID(ctx, actor.UserID)
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, params, limit, offset)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.users.Stats(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseBirthDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	birth, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, apperror.Validation("birth_date must be YYYY-MM-DD")
	}
	return &birth, nil
}
