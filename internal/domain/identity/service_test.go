package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
)

// -- Mock Repository --

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperror.Conflict("email %s is already registered", u.Email)
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user not found")
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperror.NotFound("user not found")
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user not found")
	}
	u.IsActive = active
	return nil
}

func (m *mockRepo) List(_ context.Context, params map[string]string, limit, offset int) ([]*User, int, error) {
	var items []*User
	for _, u := range m.users {
		if role, ok := params["role"]; ok && string(u.Role) != role {
			continue
		}
		items = append(items, u)
	}
	return items, len(items), nil
}

func (m *mockRepo) Stats(_ context.Context) (*Stats, error) {
	st := &Stats{ByRole: make(map[string]int)}
	for _, u := range m.users {
		st.Total++
		st.ByRole[string(u.Role)]++
		if u.IsActive {
			st.Active++
		} else {
			st.Inactive++
		}
	}
	return st, nil
}

func testService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, auth.JWTConfig{
		SigningKey: []byte("test-signing-key-of-sufficient-length"),
		Issuer:     "medlab-test",
		TTL:        time.Hour,
	}), repo
}

// -- Tests --

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := testService()

	u, err := svc.Register(context.Background(), RegisterInput{
		Email:     "Anna@Example.com",
		Password:  "s3cret-pass",
		LastName:  "Petrova",
		FirstName: "Anna",
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", u.Role)
	}
	if u.Email != "anna@example.com" {
		t.Errorf("expected normalized email, got %s", u.Email)
	}

	session, err := svc.Login(context.Background(), LoginInput{
		Email:    "anna@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a token")
	}
	if session.User.ID != u.ID {
		t.Error("expected the registered user in the session")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := testService()
	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@b.test", Password: "s3cret-pass", LastName: "A", FirstName: "B",
	}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	_, err := svc.Login(context.Background(), LoginInput{Email: "a@b.test", Password: "wrong-pass"})
	if !apperror.IsKind(err, apperror.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Login(context.Background(), LoginInput{Email: "nobody@b.test", Password: "whatever1"})
	if !apperror.IsKind(err, apperror.KindUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	svc, repo := testService()
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "a@b.test", Password: "s3cret-pass", LastName: "A", FirstName: "B",
	})
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := repo.SetActive(context.Background(), u.ID, false); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginInput{Email: "a@b.test", Password: "s3cret-pass"})
	if !apperror.IsKind(err, apperror.KindUnauthorized) {
		t.Errorf("expected unauthorized for deactivated account, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := testService()
	in := RegisterInput{Email: "a@b.test", Password: "s3cret-pass", LastName: "A", FirstName: "B"}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	_, err := svc.Register(context.Background(), in)
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestCreateUser_Admin(t *testing.T) {
	svc, _ := testService()

	u, err := svc.Create(context.Background(), CreateInput{
		Email:     "mod@lab.test",
		Password:  "s3cret-pass",
		LastName:  "Ivanov",
		FirstName: "Pyotr",
		Role:      "moderator",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if u.Role != auth.RoleModerator {
		t.Errorf("expected moderator, got %s", u.Role)
	}
}

func TestCreateUser_InvalidRole(t *testing.T) {
	svc, _ := testService()
	_, err := svc.Create(context.Background(), CreateInput{
		Email: "x@lab.test", Password: "s3cret-pass", LastName: "X", FirstName: "Y", Role: "root",
	})
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreatePatientAccount(t *testing.T) {
	svc, repo := testService()

	userID, password, err := svc.CreatePatientAccount(context.Background(), "anna@example.com", "Petrova", "Anna")
	if err != nil {
		t.Fatalf("CreatePatientAccount() error: %v", err)
	}
	if password == "" {
		t.Fatal("expected a generated password")
	}

	u, err := repo.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if u.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", u.Role)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		t.Error("expected the generated password to verify against the stored hash")
	}
}

func TestDeactivate(t *testing.T) {
	svc, _ := testService()
	admin := auth.Identity{UserID: uuid.New(), Role: auth.RoleAdministrator}

	u, err := svc.Create(context.Background(), CreateInput{
		Email: "mod@lab.test", Password: "s3cret-pass", LastName: "X", FirstName: "Y", Role: "moderator",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Deactivate(context.Background(), admin, u.ID); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}

	err = svc.Deactivate(context.Background(), admin, u.ID)
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("expected conflict on double deactivate, got %v", err)
	}
}

func TestDeactivate_Self(t *testing.T) {
	svc, _ := testService()
	admin := auth.Identity{UserID: uuid.New(), Role: auth.RoleAdministrator}
	err := svc.Deactivate(context.Background(), admin, admin.UserID)
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateUser_PasswordOptional(t *testing.T) {
	svc, repo := testService()

	u, err := svc.Create(context.Background(), CreateInput{
		Email: "mod@lab.test", Password: "s3cret-pass", LastName: "X", FirstName: "Y", Role: "moderator",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if _, err := svc.Update(context.Background(), u.ID, UpdateInput{LastName: "Sidorov"}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	stored, err := repo.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if stored.LastName != "Sidorov" {
		t.Errorf("expected updated last name, got %s", stored.LastName)
	}
	if !auth.CheckPassword(stored.PasswordHash, "s3cret-pass") {
		t.Error("expected the original password to still verify")
	}
}

func TestUserStats(t *testing.T) {
	svc, repo := testService()

	mkUser := func(email, role string) *User {
		u, err := svc.Create(context.Background(), CreateInput{
			Email: email, Password: "s3cret-pass", LastName: "L", FirstName: "F", Role: role,
		})
		if err != nil {
			t.Fatalf("Create(%s) error: %v", email, err)
		}
		return u
	}

	mkUser("a@lab.test", "administrator")
	mkUser("m1@lab.test", "moderator")
	mkUser("m2@lab.test", "moderator")
	p := mkUser("p@lab.test", "patient")
	if err := repo.SetActive(context.Background(), p.ID, false); err != nil {
		t.Fatalf("SetActive() error: %v", err)
	}

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Total != 4 {
		t.Errorf("expected total 4, got %d", st.Total)
	}
	if st.ByRole["moderator"] != 2 {
		t.Errorf("expected 2 moderators, got %d", st.ByRole["moderator"])
	}
	if st.Active != 3 || st.Inactive != 1 {
		t.Errorf("expected 3 active / 1 inactive, got %d/%d", st.Active, st.Inactive)
	}
}
