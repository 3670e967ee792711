package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	activities map[uuid.UUID]*Activity
	patients   map[uuid.UUID][]uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		activities: make(map[uuid.UUID]*Activity),
		patients:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockRepo) Create(_ context.Context, a *Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	cp := *a
	m.activities[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Activity, error) {
	a, ok := m.activities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.PatientIDs = append([]uuid.UUID{}, m.patients[id]...)
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Activity) error {
	if _, ok := m.activities[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	m.activities[a.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.activities, id)
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, _, _ int) ([]*Activity, int, error) {
	var out []*Activity
	for id := range m.activities {
		a, _ := m.GetByID(context.Background(), id)
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockRepo) SetPatients(_ context.Context, id uuid.UUID, patientIDs []uuid.UUID) error {
	m.patients[id] = append([]uuid.UUID{}, patientIDs...)
	return nil
}

func validInput() Input {
	monitor := "Marta"
	return Input{
		Name:           "Pilates terapéutico",
		StartDate:      "2026-09-15",
		RecurrenceDays: []string{"lunes", "miercoles"},
		StartTime:      "18:00",
		EndTime:        "19:00",
		Price:          35,
		Monitor:        &monitor,
	}
}

var (
	adminGroups  = []string{"Admin", "Fisioterapia"}
	workerGroups = []string{"worker", "Fisioterapia"}
)

func TestCreate_AdminOnly(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput(), uuid.New(), workerGroups); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin, got %v", err)
	}

	adminID := uuid.New()
	a, err := svc.Create(ctx, validInput(), adminID, adminGroups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.CreatedBy != adminID {
		t.Errorf("expected creator %s, got %s", adminID, a.CreatedBy)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()
	adminID := uuid.New()

	in := validInput()
	in.Name = ""
	if _, err := svc.Create(ctx, in, adminID, adminGroups); err == nil {
		t.Error("expected error for missing name")
	}

	in = validInput()
	in.StartTime, in.EndTime = "19:00", "18:00"
	if _, err := svc.Create(ctx, in, adminID, adminGroups); err == nil {
		t.Error("expected error for inverted times")
	}

	in = validInput()
	in.Price = -5
	if _, err := svc.Create(ctx, in, adminID, adminGroups); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestPatients_RoundTrip(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	adminID := uuid.New()

	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	in := validInput()
	in.PatientIDs = []uuid.UUID{p1, p2}

	a, err := svc.Create(ctx, in, adminID, adminGroups)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil || len(got.PatientIDs) != 2 {
		t.Fatalf("expected 2 enrolled patients, got %v (err %v)", got.PatientIDs, err)
	}

	in.PatientIDs = []uuid.UUID{p3}
	if _, err := svc.Update(ctx, a.ID, in, adminGroups); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = svc.Get(ctx, a.ID)
	if len(got.PatientIDs) != 1 || got.PatientIDs[0] != p3 {
		t.Errorf("expected enrollment replaced with %s, got %v", p3, got.PatientIDs)
	}
}

func TestUpdate_KeepsCreator(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()
	adminID := uuid.New()

	a, err := svc.Create(ctx, validInput(), adminID, adminGroups)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(ctx, a.ID, validInput(), workerGroups); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-admin update, got %v", err)
	}

	updated, err := svc.Update(ctx, a.ID, validInput(), []string{"Admin"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CreatedBy != adminID {
		t.Errorf("creator must survive updates, got %s", updated.CreatedBy)
	}
}

func TestDelete_AdminOnly(t *testing.T) {
	svc := NewService(newMockRepo(), nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validInput(), uuid.New(), adminGroups)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, a.ID, workerGroups); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, a.ID, adminGroups); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected activity gone, got %v", err)
	}
}
