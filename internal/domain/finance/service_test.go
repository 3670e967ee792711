package finance

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/appointment"
)

// ---- mocks ----

type mockTxRepo struct {
	txs map[uuid.UUID]*Transaction
}

func newMockTxRepo() *mockTxRepo {
	return &mockTxRepo{txs: make(map[uuid.UUID]*Transaction)}
}

func (m *mockTxRepo) Create(_ context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	cp := *t
	m.txs[t.ID] = &cp
	return nil
}

func (m *mockTxRepo) GetByID(_ context.Context, id uuid.UUID) (*Transaction, error) {
	t, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func kindIn(kind string, kinds []string) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (m *mockTxRepo) List(_ context.Context, params ListParams) ([]*Transaction, int, error) {
	var out []*Transaction
	for _, t := range m.txs {
		if t.OwnerID != params.OwnerID || !kindIn(t.Kind, params.Kinds) {
			continue
		}
		if params.From != nil && t.Date.Before(*params.From) {
			continue
		}
		if params.To != nil && !t.Date.Before(*params.To) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, len(out), nil
}

func (m *mockTxRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.txs, id)
	return nil
}

func (m *mockTxRepo) ExistsForAppointment(_ context.Context, appointmentID uuid.UUID) (bool, error) {
	for _, t := range m.txs {
		if t.AppointmentID != nil && *t.AppointmentID == appointmentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTxRepo) RecordedAppointmentIDs(_ context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, t := range m.txs {
		if t.OwnerID == ownerID && t.AppointmentID != nil {
			ids = append(ids, *t.AppointmentID)
		}
	}
	return ids, nil
}

func (m *mockTxRepo) SumsByKind(_ context.Context, ownerID uuid.UUID, from, to *time.Time) (map[string]float64, error) {
	sums := map[string]float64{}
	for _, t := range m.txs {
		if t.OwnerID != ownerID {
			continue
		}
		if from != nil && t.Date.Before(*from) {
			continue
		}
		if to != nil && !t.Date.Before(*to) {
			continue
		}
		sums[t.Kind] += t.Amount
	}
	return sums, nil
}

type mockConfigRepo struct{ cfg Config }

func (m *mockConfigRepo) Get(_ context.Context) (*Config, error) {
	cp := m.cfg
	return &cp, nil
}

func (m *mockConfigRepo) Update(_ context.Context, in *Config) (*Config, error) {
	m.cfg.DefaultSessionPrice = in.DefaultSessionPrice
	m.cfg.DefaultQuotedPrice = in.DefaultQuotedPrice
	m.cfg.UpdatedAt = time.Now()
	cp := m.cfg
	return &cp, nil
}

type mockApptStore struct {
	appts map[uuid.UUID]*appointment.Appointment
}

func (m *mockApptStore) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptStore) Update(_ context.Context, a *appointment.Appointment) error {
	if _, ok := m.appts[a.ID]; !ok {
		return appointment.ErrNotFound
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

// ---- fixtures ----

type fixture struct {
	svc   *Service
	txs   *mockTxRepo
	appts *mockApptStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		txs:   newMockTxRepo(),
		appts: &mockApptStore{appts: make(map[uuid.UUID]*appointment.Appointment)},
	}
	f.svc = NewService(f.txs, &mockConfigRepo{cfg: Config{ID: uuid.New(), DefaultSessionPrice: 25}}, f.appts)
	return f
}

func (f *fixture) seedAppointment(owner uuid.UUID, cotizada bool, price float64) *appointment.Appointment {
	a := &appointment.Appointment{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		UserID:      owner,
		Date:        time.Now(),
		Price:       price,
		Cotizada:    cotizada,
		PatientName: "Laura García",
		GroupName:   "Fisioterapia",
	}
	f.appts.appts[a.ID] = a
	return a
}

// ---- tests ----

func TestRegisterIncome_KindFollowsCotizada(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	plain := f.seedAppointment(owner, false, 50)
	quoted := f.seedAppointment(owner, true, 60)

	t1, err := f.svc.RegisterIncome(ctx, plain.ID, owner)
	if err != nil {
		t.Fatalf("register plain: %v", err)
	}
	if t1.Kind != KindIncome || t1.Amount != 50 {
		t.Errorf("unexpected transaction: %+v", t1)
	}

	t2, err := f.svc.RegisterIncome(ctx, quoted.ID, owner)
	if err != nil {
		t.Fatalf("register quoted: %v", err)
	}
	if t2.Kind != KindQuotedIncome || t2.Amount != 60 {
		t.Errorf("unexpected transaction: %+v", t2)
	}
}

func TestRegisterIncome_OthersAppointmentForbidden(t *testing.T) {
	f := newFixture(t)
	a := f.seedAppointment(uuid.New(), false, 50)

	if _, err := f.svc.RegisterIncome(context.Background(), a.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestRegisterIncome_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	a := f.seedAppointment(owner, false, 50)
	ctx := context.Background()

	if _, err := f.svc.RegisterIncome(ctx, a.ID, owner); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := f.svc.RegisterIncome(ctx, a.ID, owner); !errors.Is(err, ErrAlreadyRecorded) {
		t.Errorf("expected ErrAlreadyRecorded, got %v", err)
	}

	ids, err := f.svc.RecordedAppointments(ctx, owner)
	if err != nil || len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("expected recorded id %s, got %v (err %v)", a.ID, ids, err)
	}
}

func TestMarkCotizada(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	a := f.seedAppointment(owner, false, 50)
	ctx := context.Background()

	if _, err := f.svc.MarkCotizada(ctx, a.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	updated, err := f.svc.MarkCotizada(ctx, a.ID, owner)
	if err != nil || !updated.Cotizada {
		t.Errorf("expected cotizada appointment, got %+v (err %v)", updated, err)
	}
	stored, _ := f.appts.GetByID(ctx, a.ID)
	if !stored.Cotizada {
		t.Error("cotizada flag must be persisted")
	}
}

func TestAddExpense_Validation(t *testing.T) {
	f := newFixture(t)
	caller := uuid.New()
	ctx := context.Background()

	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 0, Description: "camilla"}, caller); err == nil {
		t.Error("expected error for non-positive amount")
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 10}, caller); err == nil {
		t.Error("expected error for missing description")
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 10, Description: "camilla", Date: "01/02/2026"}, caller); err == nil {
		t.Error("expected error for malformed date")
	}

	e, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 120, Description: "camilla", Date: "2026-02-01"}, caller)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Kind != KindExpense || !e.Date.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected expense: %+v", e)
	}
}

func TestListings_SplitByKindAndOwner(t *testing.T) {
	f := newFixture(t)
	owner, other := uuid.New(), uuid.New()
	ctx := context.Background()

	a := f.seedAppointment(owner, false, 50)
	if _, err := f.svc.RegisterIncome(ctx, a.ID, owner); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 30, Description: "material"}, owner); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 99, Description: "ajeno"}, other); err != nil {
		t.Fatalf("expense: %v", err)
	}

	incomes, total, err := f.svc.ListIncomes(ctx, owner, "total", 20, 0)
	if err != nil || total != 1 || incomes[0].Kind != KindIncome {
		t.Errorf("unexpected incomes: %v (total %d, err %v)", incomes, total, err)
	}
	expenses, total, err := f.svc.ListExpenses(ctx, owner, "", 20, 0)
	if err != nil || total != 1 || expenses[0].Amount != 30 {
		t.Errorf("unexpected expenses: %v (total %d, err %v)", expenses, total, err)
	}

	if _, _, err := f.svc.ListExpenses(ctx, owner, "semanal", 20, 0); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	plain := f.seedAppointment(owner, false, 50)
	quoted := f.seedAppointment(owner, true, 60)
	if _, err := f.svc.RegisterIncome(ctx, plain.ID, owner); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.RegisterIncome(ctx, quoted.ID, owner); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 30, Description: "material"}, owner); err != nil {
		t.Fatalf("expense: %v", err)
	}
	// Last year's expense counts toward the total only.
	lastYear := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")
	if _, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 70, Description: "alquiler", Date: lastYear}, owner); err != nil {
		t.Fatalf("expense: %v", err)
	}

	b, err := f.svc.Balance(ctx, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.Incomes.Total != 50 || b.QuotedIncomes.Total != 60 {
		t.Errorf("unexpected income sums: %+v", b)
	}
	if b.Expenses.Total != 100 {
		t.Errorf("expected total expenses 100, got %v", b.Expenses.Total)
	}
	if b.Expenses.Year != 30 {
		t.Errorf("expected current-year expenses 30, got %v", b.Expenses.Year)
	}
	if b.Expenses.Month != 30 {
		t.Errorf("expected current-month expenses 30, got %v", b.Expenses.Month)
	}
}

func TestDeleteTransaction_ScopedToOwner(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	e, err := f.svc.AddExpense(ctx, ExpenseInput{Amount: 30, Description: "material"}, owner)
	if err != nil {
		t.Fatalf("expense: %v", err)
	}

	if err := f.svc.DeleteTransaction(ctx, e.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another caller, got %v", err)
	}
	if err := f.svc.DeleteTransaction(ctx, e.ID, owner); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateConfig(ctx, &Config{DefaultSessionPrice: -1}); err == nil {
		t.Error("expected error for negative price")
	}

	cfg, err := f.svc.UpdateConfig(ctx, &Config{DefaultSessionPrice: 30, DefaultQuotedPrice: 28})
	if err != nil || cfg.DefaultSessionPrice != 30 || cfg.DefaultQuotedPrice != 28 {
		t.Errorf("unexpected config: %+v (err %v)", cfg, err)
	}
}
