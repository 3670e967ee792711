package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/blobstore"
)

// ---- account mocks ----

type mockUserRepo struct {
	users map[uuid.UUID]*account.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*account.User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *account.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.IsActive = true
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*account.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*account.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *account.User) error {
	stored, ok := m.users[u.ID]
	if !ok {
		return account.ErrNotFound
	}
	stored.Email = u.Email
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	stored, ok := m.users[id]
	if !ok {
		return account.ErrNotFound
	}
	stored.PasswordHash = hash
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) SetGroups(_ context.Context, userID uuid.UUID, names []string) error {
	stored, ok := m.users[userID]
	if !ok {
		return account.ErrNotFound
	}
	stored.Groups = append([]string{}, names...)
	return nil
}

func (m *mockUserRepo) FindAdminInGroup(_ context.Context, _ string) (*account.User, error) {
	return nil, account.ErrNotFound
}

type mockGroupRepo struct{}

func (mockGroupRepo) List(_ context.Context) ([]*account.Group, error) { return nil, nil }
func (mockGroupRepo) GetByName(_ context.Context, name string) (*account.Group, error) {
	return &account.Group{ID: uuid.New(), Name: name}, nil
}

type mockProfileRepo struct {
	profiles map[uuid.UUID]*account.Profile
}

func (m *mockProfileRepo) Create(_ context.Context, p *account.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*account.Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, account.ErrNotFound
	}
	return p, nil
}

func (m *mockProfileRepo) Update(_ context.Context, p *account.Profile) error {
	m.profiles[p.UserID] = p
	return nil
}

// ---- worker mocks ----

type mockWorkerRepo struct {
	workers map[uuid.UUID]*Worker
	users   *mockUserRepo
}

func (m *mockWorkerRepo) attach(w *Worker) (*Worker, error) {
	cp := *w
	u, err := m.users.GetByID(context.Background(), w.UserID)
	if err != nil {
		return nil, err
	}
	cp.User = u
	return &cp, nil
}

func (m *mockWorkerRepo) Create(_ context.Context, w *Worker) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = time.Now()
	cp := *w
	m.workers[w.ID] = &cp
	return nil
}

func (m *mockWorkerRepo) GetByID(_ context.Context, id uuid.UUID) (*Worker, error) {
	w, ok := m.workers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.attach(w)
}

func (m *mockWorkerRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*Worker, error) {
	for _, w := range m.workers {
		if w.UserID == userID {
			return m.attach(w)
		}
	}
	return nil, ErrNotFound
}

func (m *mockWorkerRepo) ListByCreator(_ context.Context, createdBy uuid.UUID, _, _ int) ([]*Worker, int, error) {
	var out []*Worker
	for _, w := range m.workers {
		if w.CreatedBy == createdBy {
			attached, err := m.attach(w)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, attached)
		}
	}
	return out, len(out), nil
}

func (m *mockWorkerRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.workers, id)
	return nil
}

type mockRegRepo struct {
	regs map[uuid.UUID]*TimeRegister
}

func (m *mockRegRepo) Create(_ context.Context, r *TimeRegister) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	cp := *r
	m.regs[r.ID] = &cp
	return nil
}

func (m *mockRegRepo) GetByID(_ context.Context, id uuid.UUID) (*TimeRegister, error) {
	r, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRegRepo) ListByWorker(_ context.Context, workerID uuid.UUID, byAdmin bool, _, _ int) ([]*TimeRegister, int, error) {
	var out []*TimeRegister
	for _, r := range m.regs {
		if r.WorkerID == workerID && r.ByAdmin == byAdmin {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRegRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.regs, id)
	return nil
}

// ---- fixtures ----

func newTestService(t *testing.T) (*Service, *mockUserRepo, *mockWorkerRepo) {
	t.Helper()
	users := newMockUserRepo()
	issuer := auth.NewTokenIssuer("test-secret", 30*time.Minute, time.Hour)
	accounts := account.NewService(users, mockGroupRepo{},
		&mockProfileRepo{profiles: make(map[uuid.UUID]*account.Profile)}, issuer, nil)
	workers := &mockWorkerRepo{workers: make(map[uuid.UUID]*Worker), users: users}
	svc := NewService(workers, &mockRegRepo{regs: make(map[uuid.UUID]*TimeRegister)},
		accounts, users, blobstore.NewInMemoryStore(), nil)
	return svc, users, workers
}

func seedWorker(t *testing.T, svc *Service, username string, adminID uuid.UUID) *Worker {
	t.Helper()
	w, err := svc.Create(context.Background(), CreateInput{
		User: account.CreateUserInput{
			Username:        username,
			Email:           username + "@actua.example",
			FirstName:       "Nombre",
			LastName:        "Apellido",
			Password:        "pass1234",
			ConfirmPassword: "pass1234",
		},
		Groups: []string{"worker", "Fisioterapia"},
	}, adminID)
	if err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return w
}

// ---- tests ----

func TestCreate_RoundTripsNestedUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	adminID := uuid.New()

	w := seedWorker(t, svc, "pedro", adminID)
	if w.User == nil {
		t.Fatal("expected wrapped user")
	}
	if w.User.Username != "pedro" || w.User.Email != "pedro@actua.example" {
		t.Errorf("nested user fields lost: %+v", w.User)
	}
	if w.CreatedBy != adminID {
		t.Errorf("expected created_by to be the caller")
	}
	if len(w.User.Groups) != 2 {
		t.Errorf("expected specialty groups on wrapped user, got %v", w.User.Groups)
	}
}

func TestCreate_PasswordMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateInput{
		User: account.CreateUserInput{
			Username: "pedro", Password: "a", ConfirmPassword: "b",
		},
		Groups: []string{"worker"},
	}, uuid.New())
	if err == nil {
		t.Error("expected password mismatch error")
	}
}

func TestVisibility_OnlyOwnWorkers(t *testing.T) {
	svc, _, _ := newTestService(t)
	admin1, admin2 := uuid.New(), uuid.New()
	w := seedWorker(t, svc, "pedro", admin1)

	if _, err := svc.Get(context.Background(), w.ID, admin2); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another admin, got %v", err)
	}

	list, total, err := svc.List(context.Background(), admin2, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 || len(list) != 0 {
		t.Errorf("another admin must not list this worker, got %d", len(list))
	}
}

func TestDelete_RemovesWrappedUser(t *testing.T) {
	svc, users, _ := newTestService(t)
	adminID := uuid.New()
	w := seedWorker(t, svc, "pedro", adminID)

	if err := svc.Delete(context.Background(), w.ID, adminID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := users.GetByID(context.Background(), w.UserID); !errors.Is(err, account.ErrNotFound) {
		t.Errorf("expected wrapped user to be deleted, got %v", err)
	}
}

func TestGetByUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	w := seedWorker(t, svc, "pedro", uuid.New())

	got, err := svc.GetByUser(context.Background(), w.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != w.ID {
		t.Errorf("expected worker %s, got %s", w.ID, got.ID)
	}
}

func TestTimeRegisters_SplitByUploader(t *testing.T) {
	svc, _, _ := newTestService(t)
	adminID := uuid.New()
	w := seedWorker(t, svc, "pedro", adminID)
	ctx := context.Background()

	if _, err := svc.UploadTimeRegister(ctx, w.ID, "enero-admin.pdf",
		bytes.NewReader([]byte("x")), adminID); err != nil {
		t.Fatalf("admin upload: %v", err)
	}
	if _, err := svc.UploadTimeRegister(ctx, w.ID, "enero-worker.pdf",
		bytes.NewReader([]byte("y")), w.UserID); err != nil {
		t.Fatalf("worker upload: %v", err)
	}

	adminRegs, _, err := svc.ListTimeRegisters(ctx, w.ID, true, adminID, 20, 0)
	if err != nil || len(adminRegs) != 1 || adminRegs[0].FileName != "enero-admin.pdf" {
		t.Errorf("unexpected admin sheets: %v (err %v)", adminRegs, err)
	}
	workerRegs, _, err := svc.ListTimeRegisters(ctx, w.ID, false, adminID, 20, 0)
	if err != nil || len(workerRegs) != 1 || workerRegs[0].FileName != "enero-worker.pdf" {
		t.Errorf("unexpected worker sheets: %v (err %v)", workerRegs, err)
	}

	// Unrelated callers get neither.
	if _, _, err := svc.ListTimeRegisters(ctx, w.ID, true, uuid.New(), 20, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
