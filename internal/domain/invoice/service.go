package invoice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/domain/appointment"
	"github.com/actua/clinic/internal/domain/patient"
	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/blobstore"
	"github.com/actua/clinic/internal/platform/db"
	"github.com/actua/clinic/internal/platform/metrics"
	"github.com/actua/clinic/internal/platform/pdfgen"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrNotCotizada     = errors.New("appointment is not cotizada")
	ErrAlreadyInvoiced = errors.New("appointment is already invoiced")
	ErrNoIssuerProfile = errors.New("no billing profile available for this invoice")
)

// GroupFisio members bill under the clinic's Fisioterapia admin instead of
// their own profile.
const GroupFisio = "Fisioterapia"

// AppointmentSource is the slice of the scheduling domain invoicing needs.
type AppointmentSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// PatientSource resolves the client block of the PDF.
type PatientSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	invoices  Repository
	numbering NumberingConfigRepository
	appts     AppointmentSource
	patients  PatientSource
	users     account.UserRepository
	profiles  account.ProfileRepository
	blobs     blobstore.Store
	txRunner  db.TxRunner
	irpfRate  float64
}

func NewService(invoices Repository, numbering NumberingConfigRepository,
	appts AppointmentSource, patients PatientSource,
	users account.UserRepository, profiles account.ProfileRepository,
	blobs blobstore.Store, txRunner db.TxRunner, irpfRate float64) *Service {
	if txRunner == nil {
		txRunner = db.PassthroughTxRunner()
	}
	return &Service{invoices: invoices, numbering: numbering, appts: appts,
		patients: patients, users: users, profiles: profiles, blobs: blobs,
		txRunner: txRunner, irpfRate: irpfRate}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// issuer resolves whose billing profile appears on the PDF. Fisioterapia
// callers bill under the clinic's Admin+Fisioterapia user.
func (s *Service) issuer(ctx context.Context, callerID uuid.UUID, callerGroups []string) (*account.User, *account.Profile, error) {
	issuerID := callerID
	if auth.HasGroup(callerGroups, GroupFisio) && !auth.IsAdmin(callerGroups) {
		admin, err := s.users.FindAdminInGroup(ctx, GroupFisio)
		if err != nil {
			return nil, nil, ErrNoIssuerProfile
		}
		issuerID = admin.ID
	}

	user, err := s.users.GetByID(ctx, issuerID)
	if err != nil {
		return nil, nil, ErrNoIssuerProfile
	}
	profile, err := s.profiles.GetByUserID(ctx, issuerID)
	if err != nil {
		return nil, nil, ErrNoIssuerProfile
	}
	return user, profile, nil
}

func issuerParty(u *account.User, p *account.Profile) pdfgen.Party {
	name := u.FirstName + " " + u.LastName
	if p.SecondSurname != nil {
		name += " " + *p.SecondSurname
	}
	return pdfgen.Party{
		Name:       name,
		DNI:        deref(p.DNI),
		Address:    deref(p.Address),
		City:       deref(p.City),
		PostalCode: deref(p.PostalCode),
		Phone:      deref(p.Phone),
		Email:      u.Email,
	}
}

func clientParty(p *patient.Patient) pdfgen.Party {
	return pdfgen.Party{
		Name:       p.Name + " " + p.Surnames,
		DNI:        deref(p.DNI),
		Address:    deref(p.Address),
		City:       deref(p.City),
		PostalCode: deref(p.PostalCode),
		Phone:      deref(p.Phone),
		Email:      p.Email,
	}
}

func (s *Service) renderAndStore(ctx context.Context, inv *Invoice, issuer, client pdfgen.Party, serviceDate time.Time) error {
	var buf bytes.Buffer
	err := pdfgen.RenderInvoice(pdfgen.InvoiceData{
		Number:      inv.Number,
		Date:        inv.Date,
		Issuer:      issuer,
		Client:      client,
		Concept:     inv.Concept,
		ServiceDate: serviceDate,
		Amount:      inv.Amount,
		IRPFRate:    inv.IRPFRate,
	}, &buf)
	if err != nil {
		return err
	}

	meta, err := s.blobs.Save(ctx, blobstore.Metadata{
		FileName:    fmt.Sprintf("factura-%d.pdf", inv.Number),
		ContentType: "application/pdf",
		Category:    blobstore.CategoryInvoicePDF,
		OwnerID:     inv.CreatedBy,
	}, &buf)
	if err != nil {
		return err
	}
	inv.PDFBlobID = meta.ID
	return nil
}

// CreateFromAppointment issues the invoice(s) for a cotizada appointment.
// IRPF appointments get a second invoice with the retention applied; both
// are numbered consecutively within one transaction.
func (s *Service) CreateFromAppointment(ctx context.Context, appointmentID, callerID uuid.UUID, callerGroups []string) ([]*Invoice, error) {
	a, err := s.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.UserID != callerID {
		return nil, ErrNotFound
	}
	if !a.Cotizada {
		return nil, ErrNotCotizada
	}

	if exists, err := s.invoices.ExistsForAppointment(ctx, a.ID, KindStandard); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyInvoiced
	}

	issuerUser, issuerProfile, err := s.issuer(ctx, callerID, callerGroups)
	if err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	emisor, cliente := issuerParty(issuerUser, issuerProfile), clientParty(p)

	kinds := []string{KindStandard}
	if a.IRPF {
		kinds = append(kinds, KindIRPF)
	}

	created := make([]*Invoice, 0, len(kinds))
	err = s.txRunner(ctx, func(ctx context.Context) error {
		// Locking the config row serializes concurrent issuers even when
		// no invoice row exists yet to lock.
		cfg, err := s.numbering.GetForUpdate(ctx)
		if err != nil {
			return err
		}
		next, ok, err := s.invoices.LastNumber(ctx)
		if err != nil {
			return err
		}
		if ok {
			next++
		} else {
			next = cfg.StartNumber
		}

		for _, kind := range kinds {
			inv := &Invoice{
				Number:        next,
				Kind:          kind,
				AppointmentID: a.ID,
				PatientID:     a.PatientID,
				IssuerUserID:  issuerUser.ID,
				CreatedBy:     callerID,
				Date:          time.Now(),
				Concept:       fmt.Sprintf("Sesión de %s", a.GroupName),
				Amount:        a.Price,
			}
			if kind == KindIRPF {
				inv.IRPFRate = s.irpfRate
			}
			inv.Total = inv.Amount - inv.Amount*inv.IRPFRate

			if err := s.renderAndStore(ctx, inv, emisor, cliente, a.Date); err != nil {
				return err
			}
			if err := s.invoices.Create(ctx, inv); err != nil {
				return err
			}
			metrics.RecordInvoiceCreated(kind)
			created = append(created, inv)
			next++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.CreatedBy != callerID {
		return nil, ErrNotFound
	}
	return inv, nil
}

// filterWindow translates the listing filters into date windows.
func filterWindow(filterType, fecha string, now time.Time) (*time.Time, *time.Time, error) {
	if fecha != "" {
		day, err := time.Parse("2006-01-02", fecha)
		if err != nil {
			return nil, nil, fmt.Errorf("fecha must be YYYY-MM-DD")
		}
		to := day.AddDate(0, 0, 1)
		return &day, &to, nil
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch filterType {
	case "", "todos":
		return nil, nil, nil
	case "hoy":
		to := day.AddDate(0, 0, 1)
		return &day, &to, nil
	case "semana":
		offset := (int(day.Weekday()) + 6) % 7
		from := day.AddDate(0, 0, -offset)
		to := from.AddDate(0, 0, 7)
		return &from, &to, nil
	case "mes":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to := from.AddDate(0, 1, 0)
		return &from, &to, nil
	case "año", "ano":
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		to := from.AddDate(1, 0, 0)
		return &from, &to, nil
	default:
		return nil, nil, fmt.Errorf("invalid filter_type: %s", filterType)
	}
}

func (s *Service) List(ctx context.Context, callerID uuid.UUID, filterType, fecha string, limit, offset int) ([]*Invoice, int, error) {
	from, to, err := filterWindow(filterType, fecha, time.Now())
	if err != nil {
		return nil, 0, err
	}
	return s.invoices.List(ctx, ListParams{
		CreatedBy: callerID,
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	})
}

// PatientFilter narrows the per-patient listing. Zero values mean no
// constraint on that part.
type PatientFilter struct {
	Year  int
	Month int
	Day   int
}

func (f PatientFilter) window(now time.Time) (*time.Time, *time.Time, error) {
	if f.Year == 0 && (f.Month != 0 || f.Day != 0) {
		return nil, nil, fmt.Errorf("year is required with month or day filters")
	}
	if f.Year == 0 {
		return nil, nil, nil
	}
	if f.Month == 0 && f.Day != 0 {
		return nil, nil, fmt.Errorf("month is required with a day filter")
	}

	loc := now.Location()
	switch {
	case f.Day != 0:
		from := time.Date(f.Year, time.Month(f.Month), f.Day, 0, 0, 0, 0, loc)
		to := from.AddDate(0, 0, 1)
		return &from, &to, nil
	case f.Month != 0:
		from := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, loc)
		to := from.AddDate(0, 1, 0)
		return &from, &to, nil
	default:
		from := time.Date(f.Year, 1, 1, 0, 0, 0, 0, loc)
		to := from.AddDate(1, 0, 0)
		return &from, &to, nil
	}
}

func (s *Service) ListByPatient(ctx context.Context, patientID, callerID uuid.UUID, filter PatientFilter, limit, offset int) ([]*Invoice, int, error) {
	from, to, err := filter.window(time.Now())
	if err != nil {
		return nil, 0, err
	}
	invoices, total, err := s.invoices.List(ctx, ListParams{
		CreatedBy: callerID,
		PatientID: &patientID,
		From:      from,
		To:        to,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, ErrNotFound
	}
	return invoices, total, nil
}

func (s *Service) OpenPDF(ctx context.Context, id, callerID uuid.UUID) (io.ReadCloser, *blobstore.Metadata, error) {
	inv, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, nil, err
	}
	return s.blobs.Open(ctx, inv.PDFBlobID)
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	inv, err := s.Get(ctx, id, callerID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, inv.PDFBlobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		return err
	}
	return s.invoices.Delete(ctx, inv.ID)
}

// ---- numbering config ----

func (s *Service) GetNumberingConfig(ctx context.Context) (*NumberingConfig, error) {
	return s.numbering.Get(ctx)
}

func (s *Service) UpdateNumberingConfig(ctx context.Context, startNumber int) (*NumberingConfig, error) {
	if startNumber <= 0 {
		return nil, fmt.Errorf("start_number must be positive")
	}
	return s.numbering.Update(ctx, startNumber)
}
