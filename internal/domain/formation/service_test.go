package formation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockRepo struct {
	formations map[uuid.UUID]*Formation
}

func newMockRepo() *mockRepo {
	return &mockRepo{formations: make(map[uuid.UUID]*Formation)}
}

func (m *mockRepo) Create(_ context.Context, f *Formation) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now()
	cp := *f
	m.formations[f.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Formation, error) {
	f, ok := m.formations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, f *Formation) error {
	if _, ok := m.formations[f.ID]; !ok {
		return ErrNotFound
	}
	cp := *f
	m.formations[f.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.formations, id)
	return nil
}

func (m *mockRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, _, _ int) ([]*Formation, int, error) {
	var out []*Formation
	for _, f := range m.formations {
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func validInput() Input {
	place := "Colegio de Fisioterapeutas"
	return Input{
		Title: "Curso de punción seca",
		Place: &place,
		Date:  "2026-10-02",
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	caller := uuid.New()

	if _, err := svc.Create(ctx, Input{Date: "2026-10-02"}, caller); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := svc.Create(ctx, Input{Title: "x", Date: "02-10-2026"}, caller); err == nil {
		t.Error("expected error for malformed date")
	}

	bad := "25h"
	in := validInput()
	in.Time = &bad
	if _, err := svc.Create(ctx, in, caller); err == nil {
		t.Error("expected error for malformed time")
	}

	f, err := svc.Create(ctx, validInput(), caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.OwnerID != caller {
		t.Errorf("expected owner %s, got %s", caller, f.OwnerID)
	}
}

func TestOwnerScoping(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	f, err := svc.Create(ctx, validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, f.ID, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another caller, got %v", err)
	}
	if _, err := svc.Update(ctx, f.ID, validInput(), other); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on foreign update, got %v", err)
	}
	if err := svc.Delete(ctx, f.ID, other); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on foreign delete, got %v", err)
	}

	list, total, err := svc.List(ctx, other, 20, 0)
	if err != nil || total != 0 || len(list) != 0 {
		t.Errorf("another user must not list this formation, got %d (err %v)", len(list), err)
	}

	got, err := svc.Get(ctx, f.ID, owner)
	if err != nil || got.Title != "Curso de punción seca" {
		t.Errorf("owner read failed: %+v (err %v)", got, err)
	}
}

func TestUpdate_RoundTrip(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()
	owner := uuid.New()

	f, err := svc.Create(ctx, validInput(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	hhmm := "16:30"
	in := validInput()
	in.Title = "Curso avanzado"
	in.Time = &hhmm
	updated, err := svc.Update(ctx, f.ID, in, owner)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Curso avanzado" || updated.Time == nil || *updated.Time != "16:30" {
		t.Errorf("unexpected update result: %+v", updated)
	}
	if updated.OwnerID != owner {
		t.Error("owner must survive updates")
	}
}
