package patient

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medlab/medlab/internal/platform/apperror"
	"github.com/medlab/medlab/internal/platform/auth"
	"github.com/medlab/medlab/internal/platform/notification"
)

// -- Mock Repository --

type mockRepo struct {
	patients   map[uuid.UUID]*Patient
	createFail error
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if m.createFail != nil {
		return m.createFail
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperror.NotFound("patient not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Patient, error) {
	for _, p := range m.patients {
		if p.UserID != nil && *p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("patient not found")
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return apperror.NotFound("patient not found")
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	var items []*Patient
	for _, p := range m.patients {
		if g, ok := params["gender"]; ok && p.Gender != g {
			continue
		}
		items = append(items, p)
	}
	return items, len(items), nil
}

func (m *mockRepo) Stats(_ context.Context, recent int) (*Stats, error) {
	st := &Stats{Total: len(m.patients)}
	for _, p := range m.patients {
		if len(st.Recent) < recent {
			st.Recent = append(st.Recent, p)
		}
	}
	return st, nil
}

type mockAccounts struct {
	created []string
	fail    error
}

func (m *mockAccounts) CreatePatientAccount(_ context.Context, email, _, _ string) (uuid.UUID, string, error) {
	if m.fail != nil {
		return uuid.Nil, "", m.fail
	}
	m.created = append(m.created, email)
	return uuid.New(), "initial-pass-123", nil
}

func newTestService(repo *mockRepo, accounts *mockAccounts) (*Service, *notification.MockEmailSender) {
	sender := &notification.MockEmailSender{}
	mailer := notification.NewMailer(sender, notification.NewTemplateEngine(), "no-reply@medlab.local")
	return NewService(repo, accounts, mailer, zerolog.Nop()), sender
}

func staffActor() auth.Identity {
	return auth.Identity{UserID: uuid.New(), Email: "mod@lab.test", Role: auth.RoleModerator}
}

func validInput() Input {
	return Input{
		LastName:  "Petrova",
		FirstName: "Anna",
		BirthDate: "2000-01-01",
		Gender:    "F",
	}
}

// -- Tests --

func TestCreatePatient(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, &mockAccounts{})
	actor := staffActor()

	created, err := svc.Create(context.Background(), actor, validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("expected assigned id")
	}
	if created.CreatedBy != actor.UserID {
		t.Error("expected created_by to record the actor")
	}
	if created.InitialPassword != "" {
		t.Error("expected no initial password without create_account")
	}
}

func TestCreatePatient_Validation(t *testing.T) {
	svc, _ := newTestService(newMockRepo(), &mockAccounts{})
	actor := staffActor()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing last name", func(in *Input) { in.LastName = "" }},
		{"missing first name", func(in *Input) { in.FirstName = "" }},
		{"bad gender", func(in *Input) { in.Gender = "X" }},
		{"bad birth date", func(in *Input) { in.BirthDate = "01/01/2000" }},
		{"future birth date", func(in *Input) { in.BirthDate = "2999-01-01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), actor, in)
			if !apperror.IsKind(err, apperror.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreatePatient_WithPortalAccount(t *testing.T) {
	repo := newMockRepo()
	accounts := &mockAccounts{}
	svc, sender := newTestService(repo, accounts)

	in := validInput()
	email := "anna@example.com"
	in.Email = &email
	in.CreateAccount = true

	created, err := svc.Create(context.Background(), staffActor(), in)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.UserID == nil {
		t.Fatal("expected linked user id")
	}
	if created.InitialPassword != "initial-pass-123" {
		t.Error("expected the initial password in the response")
	}
	if len(accounts.created) != 1 || accounts.created[0] != email {
		t.Errorf("expected one account for %s, got %v", email, accounts.created)
	}

	calls := sender.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one welcome email, got %d", len(calls))
	}
	if calls[0].To != email {
		t.Errorf("welcome email sent to %s, want %s", calls[0].To, email)
	}
	if !strings.Contains(calls[0].Body, "Petrova Anna") {
		t.Errorf("expected patient name in body, got %q", calls[0].Body)
	}
}

func TestCreatePatient_InsertFailsBeforeAccount(t *testing.T) {
	repo := newMockRepo()
	repo.createFail = errors.New("insert failed")
	accounts := &mockAccounts{}
	svc, sender := newTestService(repo, accounts)

	in := validInput()
	email := "anna@example.com"
	in.Email = &email
	in.CreateAccount = true

	_, err := svc.Create(context.Background(), staffActor(), in)
	if err == nil {
		t.Fatal("expected error from failing insert")
	}
	if len(accounts.created) != 0 {
		t.Errorf("expected no login created after a failed insert, got %v", accounts.created)
	}
	if len(sender.Calls()) != 0 {
		t.Error("expected no welcome email after a failed insert")
	}
}

func TestCreatePatient_AccountRequiresEmail(t *testing.T) {
	svc, _ := newTestService(newMockRepo(), &mockAccounts{})

	in := validInput()
	in.CreateAccount = true
	_, err := svc.Create(context.Background(), staffActor(), in)
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestGetPatient_Ownership(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, &mockAccounts{})

	ownerUserID := uuid.New()
	created, err := svc.Create(context.Background(), staffActor(), validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	created.Patient.UserID = &ownerUserID
	if err := repo.Update(context.Background(), created.Patient); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	owner := auth.Identity{UserID: ownerUserID, Role: auth.RolePatient}
	if _, err := svc.Get(context.Background(), owner, created.ID); err != nil {
		t.Errorf("owner read failed: %v", err)
	}

	stranger := auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}
	_, err = svc.Get(context.Background(), stranger, created.ID)
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for another patient, got %v", err)
	}

	if _, err := svc.Get(context.Background(), staffActor(), created.ID); err != nil {
		t.Errorf("staff read failed: %v", err)
	}
}

func TestOwnRecord(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, &mockAccounts{})

	ownerUserID := uuid.New()
	created, err := svc.Create(context.Background(), staffActor(), validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	created.Patient.UserID = &ownerUserID
	if err := repo.Update(context.Background(), created.Patient); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	owner := auth.Identity{UserID: ownerUserID, Role: auth.RolePatient}
	p, err := svc.Own(context.Background(), owner)
	if err != nil {
		t.Fatalf("Own() error: %v", err)
	}
	if p.ID != created.ID {
		t.Errorf("Own() returned %s, want %s", p.ID, created.ID)
	}

	// A role outside the capability matrix holds no record access at all.
	outsider := auth.Identity{UserID: ownerUserID, Role: auth.Role("guest")}
	if _, err := svc.Own(context.Background(), outsider); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for unknown role, got %v", err)
	}
	if _, err := svc.Get(context.Background(), outsider, created.ID); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("expected forbidden for unknown role on Get, got %v", err)
	}
}

func TestUpdatePatient(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, &mockAccounts{})
	actor := staffActor()

	created, err := svc.Create(context.Background(), actor, validInput())
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	in := validInput()
	in.LastName = "Smirnova"
	updated, err := svc.Update(context.Background(), actor, created.ID, in)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.LastName != "Smirnova" {
		t.Errorf("expected updated last name, got %s", updated.LastName)
	}
}

func TestUpdatePatient_NotFound(t *testing.T) {
	svc, _ := newTestService(newMockRepo(), &mockAccounts{})
	_, err := svc.Update(context.Background(), staffActor(), uuid.New(), validInput())
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestPatientStats(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo, &mockAccounts{})
	actor := staffActor()

	for i := 0; i < 7; i++ {
		if _, err := svc.Create(context.Background(), actor, validInput()); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Total != 7 {
		t.Errorf("expected total 7, got %d", st.Total)
	}
	if len(st.Recent) != 5 {
		t.Errorf("expected 5 recent patients, got %d", len(st.Recent))
	}
}
