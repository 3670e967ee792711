package invoice

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/domain/appointment"
	"github.com/actua/clinic/internal/domain/patient"
	"github.com/actua/clinic/internal/platform/blobstore"
)

// ---- mocks ----

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{invoices: make(map[uuid.UUID]*Invoice)}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) List(_ context.Context, params ListParams) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if inv.CreatedBy != params.CreatedBy {
			continue
		}
		if params.PatientID != nil && inv.PatientID != *params.PatientID {
			continue
		}
		if params.From != nil && inv.Date.Before(*params.From) {
			continue
		}
		if params.To != nil && !inv.Date.Before(*params.To) {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, len(out), nil
}

func (m *mockInvoiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.invoices, id)
	return nil
}

func (m *mockInvoiceRepo) LastNumber(_ context.Context) (int, bool, error) {
	max, found := 0, false
	for _, inv := range m.invoices {
		if inv.Number > max {
			max, found = inv.Number, true
		}
	}
	return max, found, nil
}

func (m *mockInvoiceRepo) ExistsForAppointment(_ context.Context, appointmentID uuid.UUID, kind string) (bool, error) {
	for _, inv := range m.invoices {
		if inv.AppointmentID == appointmentID && inv.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

type mockNumberingRepo struct {
	cfg   NumberingConfig
	locks int
}

func (m *mockNumberingRepo) Get(_ context.Context) (*NumberingConfig, error) {
	cp := m.cfg
	return &cp, nil
}

func (m *mockNumberingRepo) GetForUpdate(_ context.Context) (*NumberingConfig, error) {
	m.locks++
	cp := m.cfg
	return &cp, nil
}

func (m *mockNumberingRepo) Update(_ context.Context, startNumber int) (*NumberingConfig, error) {
	m.cfg.StartNumber = startNumber
	m.cfg.UpdatedAt = time.Now()
	cp := m.cfg
	return &cp, nil
}

type mockApptSource struct {
	appts map[uuid.UUID]*appointment.Appointment
}

func (m *mockApptSource) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	return a, nil
}

type mockPatientSource struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatientSource) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*account.User
	// adminByGroup maps a group name to the admin billing under it.
	adminByGroup map[string]uuid.UUID
}

func (m *mockUserRepo) Create(_ context.Context, u *account.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*account.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*account.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, account.ErrNotFound
}

func (m *mockUserRepo) Update(_ context.Context, u *account.User) error  { return nil }
func (m *mockUserRepo) UpdatePassword(_ context.Context, _ uuid.UUID, _ string) error {
	return nil
}
func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error { return nil }
func (m *mockUserRepo) SetGroups(_ context.Context, _ uuid.UUID, _ []string) error {
	return nil
}

func (m *mockUserRepo) FindAdminInGroup(_ context.Context, group string) (*account.User, error) {
	id, ok := m.adminByGroup[group]
	if !ok {
		return nil, account.ErrNotFound
	}
	return m.users[id], nil
}

type mockProfileRepo struct {
	profiles map[uuid.UUID]*account.Profile
}

func (m *mockProfileRepo) Create(_ context.Context, p *account.Profile) error {
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

// ---- fixtures ----

const startNumber = 100

type fixture struct {
	svc       *Service
	invoices  *mockInvoiceRepo
	numbering *mockNumberingRepo
	appts     *mockApptSource
	users     *mockUserRepo
	profiles  *mockProfileRepo
	patients  *mockPatientSource
	blobs     blobstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		invoices:  newMockInvoiceRepo(),
		numbering: &mockNumberingRepo{cfg: NumberingConfig{ID: uuid.New(), StartNumber: startNumber}},
		appts:     &mockApptSource{appts: make(map[uuid.UUID]*appointment.Appointment)},
		users: &mockUserRepo{users: make(map[uuid.UUID]*account.User),
			adminByGroup: make(map[string]uuid.UUID)},
		profiles: &mockProfileRepo{profiles: make(map[uuid.UUID]*account.Profile)},
		patients: &mockPatientSource{patients: make(map[uuid.UUID]*patient.Patient)},
		blobs:    blobstore.NewInMemoryStore(),
	}
	f.svc = NewService(f.invoices, f.numbering,
		f.appts, f.patients, f.users, f.profiles, f.blobs, nil, 0.15)
	return f
}

// seedBiller creates a user with a billing profile.
func (f *fixture) seedBiller(firstName string) uuid.UUID {
	id := uuid.New()
	f.users.users[id] = &account.User{
		ID: id, Username: strings.ToLower(firstName),
		FirstName: firstName, LastName: "Gómez",
		Email: strings.ToLower(firstName) + "@actua.example",
	}
	dni := "12345678Z"
	f.profiles.profiles[id] = &account.Profile{UserID: id, DNI: &dni}
	return id
}

func (f *fixture) seedAppointment(owner uuid.UUID, cotizada, irpf bool) *appointment.Appointment {
	p := &patient.Patient{
		ID: uuid.New(), Name: "Laura", Surnames: "García Pérez",
		Email: "laura@example.com", GroupName: "Fisioterapia",
	}
	f.patients.patients[p.ID] = p

	a := &appointment.Appointment{
		ID:        uuid.New(),
		PatientID: p.ID,
		UserID:    owner,
		Date:      time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC),
		Start:     "10:00",
		End:       "11:00",
		Price:     50,
		Cotizada:  cotizada,
		IRPF:      irpf,
		GroupName: "Fisioterapia",
	}
	f.appts.appts[a.ID] = a
	return a
}

// ---- tests ----

func TestCreate_NumberingSequence(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	ctx := context.Background()

	first, err := f.svc.CreateFromAppointment(ctx, f.seedAppointment(caller, true, false).ID, caller, []string{"Admin"})
	if err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	if len(first) != 1 || first[0].Number != startNumber {
		t.Errorf("expected first invoice number %d, got %+v", startNumber, first)
	}

	second, err := f.svc.CreateFromAppointment(ctx, f.seedAppointment(caller, true, false).ID, caller, []string{"Admin"})
	if err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if second[0].Number != startNumber+1 {
		t.Errorf("expected next number %d, got %d", startNumber+1, second[0].Number)
	}
}

func TestCreate_LocksNumberingConfig(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	ctx := context.Background()

	// The config row is locked on every issue, so concurrent first
	// invoices serialize even with an empty invoices table.
	if _, err := f.svc.CreateFromAppointment(ctx, f.seedAppointment(caller, true, false).ID, caller, []string{"Admin"}); err != nil {
		t.Fatalf("first invoice: %v", err)
	}
	if f.numbering.locks != 1 {
		t.Errorf("expected config row locked once, got %d", f.numbering.locks)
	}

	if _, err := f.svc.CreateFromAppointment(ctx, f.seedAppointment(caller, true, false).ID, caller, []string{"Admin"}); err != nil {
		t.Fatalf("second invoice: %v", err)
	}
	if f.numbering.locks != 2 {
		t.Errorf("expected config row locked on every issue, got %d", f.numbering.locks)
	}
}

func TestCreate_IRPFProducesTwoConsecutiveInvoices(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, true, true)

	invoices, err := f.svc.CreateFromAppointment(context.Background(), a.ID, caller, []string{"Admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}

	std, irpf := invoices[0], invoices[1]
	if std.Kind != KindStandard || irpf.Kind != KindIRPF {
		t.Errorf("unexpected kinds: %s, %s", std.Kind, irpf.Kind)
	}
	if irpf.Number != std.Number+1 {
		t.Errorf("expected consecutive numbers, got %d and %d", std.Number, irpf.Number)
	}
	if std.Total != 50 {
		t.Errorf("standard total must be the full amount, got %v", std.Total)
	}
	if want := 50 - 50*0.15; irpf.Total != want {
		t.Errorf("expected IRPF total %v, got %v", want, irpf.Total)
	}
}

func TestCreate_RequiresCotizada(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, false, false)

	if _, err := f.svc.CreateFromAppointment(context.Background(), a.ID, caller, []string{"Admin"}); !errors.Is(err, ErrNotCotizada) {
		t.Errorf("expected ErrNotCotizada, got %v", err)
	}
}

func TestCreate_DuplicateRejected(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, true, false)
	ctx := context.Background()

	if _, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, []string{"Admin"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, []string{"Admin"}); !errors.Is(err, ErrAlreadyInvoiced) {
		t.Errorf("expected ErrAlreadyInvoiced, got %v", err)
	}
}

func TestCreate_OthersAppointmentIsNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.seedBiller("Ana")
	caller := f.seedBiller("Berta")
	a := f.seedAppointment(owner, true, false)

	if _, err := f.svc.CreateFromAppointment(context.Background(), a.ID, caller, []string{"Admin"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_FisioBillsUnderGroupAdmin(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Carla")
	a := f.seedAppointment(caller, true, false)
	ctx := context.Background()
	groups := []string{"worker", GroupFisio}

	// No Admin+Fisioterapia user configured yet.
	if _, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, groups); !errors.Is(err, ErrNoIssuerProfile) {
		t.Fatalf("expected ErrNoIssuerProfile, got %v", err)
	}

	admin := f.seedBiller("Ana")
	f.users.adminByGroup[GroupFisio] = admin

	invoices, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, groups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invoices[0].IssuerUserID != admin {
		t.Errorf("expected issuer %s, got %s", admin, invoices[0].IssuerUserID)
	}
	if invoices[0].CreatedBy != caller {
		t.Errorf("expected creator %s, got %s", caller, invoices[0].CreatedBy)
	}
}

func TestPDF_StoredAndStreamed(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, true, false)
	ctx := context.Background()

	invoices, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, []string{"Admin"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rc, meta, err := f.svc.OpenPDF(ctx, invoices[0].ID, caller)
	if err != nil {
		t.Fatalf("open pdf: %v", err)
	}
	defer rc.Close()

	if meta.ContentType != "application/pdf" {
		t.Errorf("unexpected content type %s", meta.ContentType)
	}
	head := make([]byte, 4)
	if _, err := io.ReadFull(rc, head); err != nil || string(head) != "%PDF" {
		t.Errorf("expected a PDF stream, got %q (err %v)", head, err)
	}
}

func TestDelete_RemovesBlobAndRow(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, true, false)
	ctx := context.Background()

	invoices, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, []string{"Admin"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	inv := invoices[0]

	if err := f.svc.Delete(ctx, inv.ID, caller); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, inv.ID, caller); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected row gone, got %v", err)
	}
	if _, _, err := f.blobs.Open(ctx, inv.PDFBlobID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected blob gone, got %v", err)
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture(t)
	caller := f.seedBiller("Ana")
	a := f.seedAppointment(caller, true, false)
	ctx := context.Background()

	if _, _, err := f.svc.ListByPatient(ctx, a.PatientID, caller, PatientFilter{}, 20, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any invoice, got %v", err)
	}

	if _, err := f.svc.CreateFromAppointment(ctx, a.ID, caller, []string{"Admin"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, total, err := f.svc.ListByPatient(ctx, a.PatientID, caller, PatientFilter{}, 20, 0)
	if err != nil || total != 1 || len(list) != 1 {
		t.Errorf("expected one invoice, got %d (err %v)", len(list), err)
	}

	if _, _, err := f.svc.ListByPatient(ctx, a.PatientID, caller, PatientFilter{Month: 9}, 20, 0); err == nil {
		t.Error("expected error for month filter without year")
	}
}

func TestNumberingConfig_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateNumberingConfig(ctx, 0); err == nil {
		t.Error("expected error for non-positive start number")
	}

	cfg, err := f.svc.UpdateNumberingConfig(ctx, 500)
	if err != nil || cfg.StartNumber != 500 {
		t.Errorf("expected start number 500, got %+v (err %v)", cfg, err)
	}
}
