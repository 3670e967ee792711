package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/domain/patient"
	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/metrics"
	"github.com/actua/clinic/internal/platform/whatsapp"
)

var (
	ErrNotFound            = errors.New("appointment not found")
	ErrWorkerNotFound      = errors.New("worker not found")
	ErrForbidden           = errors.New("appointment belongs to another user")
	ErrMissingTwilioConfig = errors.New("whatsapp credentials are not configured in your profile")
)

// PatientDirectory is the slice of the patient domain the scheduler needs:
// group-scoped reads.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID, callerGroups []string) (*patient.Patient, error)
}

type Service struct {
	appts    Repository
	prices   PriceConfigRepository
	workers  WorkerResolver
	patients PatientDirectory
	profiles account.ProfileRepository
	senders  whatsapp.SenderFactory
}

func NewService(appts Repository, prices PriceConfigRepository, workers WorkerResolver,
	patients PatientDirectory, profiles account.ProfileRepository, senders whatsapp.SenderFactory) *Service {
	return &Service{appts: appts, prices: prices, workers: workers,
		patients: patients, profiles: profiles, senders: senders}
}

// scope computes what the caller may see. Worker-group users only see
// appointments assigned to their own worker record.
func (s *Service) scope(ctx context.Context, callerID uuid.UUID, callerGroups []string) Scope {
	if auth.IsWorker(callerGroups) && !auth.IsAdmin(callerGroups) {
		if w, err := s.workers.ByUserID(ctx, callerID); err == nil {
			return Scope{ViewerID: callerID, ViewerWorkerID: &w.ID}
		}
		// Worker-group user without a worker record sees nothing.
		none := uuid.Nil
		return Scope{ViewerID: callerID, ViewerWorkerID: &none}
	}
	return Scope{ViewerID: callerID}
}

func (s *Service) visibleTo(ctx context.Context, a *Appointment, scope Scope) bool {
	if scope.ViewerWorkerID != nil {
		return a.WorkerID != nil && *a.WorkerID == *scope.ViewerWorkerID
	}
	if a.UserID == scope.ViewerID {
		return true
	}
	if a.WorkerID != nil {
		if w, err := s.workers.ByID(ctx, *a.WorkerID); err == nil && w.UserID == scope.ViewerID {
			return true
		}
	}
	return false
}

type Input struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	WorkerID      *uuid.UUID `json:"worker_id"`
	Date          string     `json:"date"`
	Start         string     `json:"start"`
	End           string     `json:"end"`
	Description   *string    `json:"description"`
	Price         float64    `json:"price"`
	Cotizada      bool       `json:"cotizada"`
	IRPF          bool       `json:"irpf"`
	PaymentMethod string     `json:"payment_method"`
	Paid          bool       `json:"paid"`
}

func parseClock(value, field string) (string, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return "", fmt.Errorf("%s must be HH:MM", field)
	}
	return t.Format("15:04"), nil
}

func (s *Service) buildAppointment(ctx context.Context, in Input, callerID uuid.UUID, callerGroups []string) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD")
	}
	start, err := parseClock(in.Start, "start")
	if err != nil {
		return nil, err
	}
	end, err := parseClock(in.End, "end")
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, fmt.Errorf("start must be before end")
	}

	if in.PaymentMethod == "" {
		in.PaymentMethod = PayCash
	}
	if !PaymentMethods[in.PaymentMethod] {
		return nil, fmt.Errorf("invalid payment method: %s", in.PaymentMethod)
	}

	// The patient must sit in one of the caller's specialty groups. A
	// caller with no specialty groups cannot schedule at all.
	p, err := s.patients.Get(ctx, in.PatientID, callerGroups)
	if err != nil {
		return nil, fmt.Errorf("patient does not belong to any of your groups")
	}

	if in.WorkerID != nil {
		if _, err := s.workers.ByID(ctx, *in.WorkerID); err != nil {
			return nil, ErrWorkerNotFound
		}
	}

	price := in.Price
	if price <= 0 {
		cfg, err := s.prices.Get(ctx)
		if err != nil {
			return nil, err
		}
		price = cfg.BasePrice
	}

	return &Appointment{
		PatientID:     p.ID,
		WorkerID:      in.WorkerID,
		UserID:        callerID,
		Date:          date,
		Start:         start,
		End:           end,
		Description:   in.Description,
		Price:         price,
		Cotizada:      in.Cotizada,
		IRPF:          in.IRPF,
		PaymentMethod: in.PaymentMethod,
		Paid:          in.Paid,
		PatientName:   p.Name + " " + p.Surnames,
		PatientPhone:  p.Phone,
		GroupName:     p.GroupName,
	}, nil
}

func (s *Service) Create(ctx context.Context, in Input, callerID uuid.UUID, callerGroups []string) (*Appointment, error) {
	a, err := s.buildAppointment(ctx, in, callerID, callerGroups)
	if err != nil {
		return nil, err
	}
	// A creator with a worker record gets assigned to their own
	// appointment unless the request names another worker. Otherwise a
	// worker-group creator would schedule a row outside their own scope.
	if a.WorkerID == nil {
		if w, err := s.workers.ByUserID(ctx, callerID); err == nil {
			a.WorkerID = &w.ID
		}
	}
	if err := s.appts.Create(ctx, a); err != nil {
		return nil, err
	}
	metrics.RecordAppointmentCreated()
	return a, nil
}

func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID, callerGroups []string) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(ctx, a, s.scope(ctx, callerID, callerGroups)) {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, callerID uuid.UUID, callerGroups []string) (*Appointment, error) {
	existing, err := s.Get(ctx, id, callerID, callerGroups)
	if err != nil {
		return nil, err
	}
	a, err := s.buildAppointment(ctx, in, existing.UserID, callerGroups)
	if err != nil {
		return nil, err
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	if err := s.appts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID, callerGroups []string) error {
	if _, err := s.Get(ctx, id, callerID, callerGroups); err != nil {
		return err
	}
	return s.appts.Delete(ctx, id)
}

// filterWindow translates the filter_type values into date windows.
func filterWindow(filterType string, now time.Time) (*time.Time, *time.Time, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch filterType {
	case "", "todos":
		return nil, nil, nil
	case "hoy":
		to := day.AddDate(0, 0, 1)
		return &day, &to, nil
	case "manana", "mañana":
		from := day.AddDate(0, 0, 1)
		to := day.AddDate(0, 0, 2)
		return &from, &to, nil
	case "semana":
		// Monday-based week.
		offset := (int(day.Weekday()) + 6) % 7
		from := day.AddDate(0, 0, -offset)
		to := from.AddDate(0, 0, 7)
		return &from, &to, nil
	case "mes":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to := from.AddDate(0, 1, 0)
		return &from, &to, nil
	default:
		return nil, nil, fmt.Errorf("invalid filter_type: %s", filterType)
	}
}

func (s *Service) List(ctx context.Context, callerID uuid.UUID, callerGroups []string, filterType string, limit, offset int) ([]*Appointment, int, error) {
	from, to, err := filterWindow(filterType, time.Now())
	if err != nil {
		return nil, 0, err
	}
	return s.appts.List(ctx, ListParams{
		Scope:  s.scope(ctx, callerID, callerGroups),
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Service) ListByPatient(ctx context.Context, patientID, callerID uuid.UUID, callerGroups []string, limit, offset int) ([]*Appointment, int, error) {
	return s.appts.List(ctx, ListParams{
		Scope:     s.scope(ctx, callerID, callerGroups),
		PatientID: &patientID,
		Limit:     limit,
		Offset:    offset,
	})
}

// ---- worker sub-resource ----

// ownedWorker resolves a worker and enforces that the caller created it.
func (s *Service) ownedWorker(ctx context.Context, workerID, callerID uuid.UUID) (*WorkerRef, error) {
	w, err := s.workers.ByID(ctx, workerID)
	if err != nil {
		return nil, ErrWorkerNotFound
	}
	if w.CreatedBy != callerID {
		return nil, ErrForbidden
	}
	return w, nil
}

func (s *Service) ListForWorker(ctx context.Context, workerID, callerID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	w, err := s.ownedWorker(ctx, workerID, callerID)
	if err != nil {
		return nil, 0, err
	}
	return s.appts.List(ctx, ListParams{
		Scope:  Scope{ViewerID: callerID, ViewerWorkerID: &w.ID},
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Service) CreateForWorker(ctx context.Context, workerID uuid.UUID, in Input, callerID uuid.UUID, callerGroups []string) (*Appointment, error) {
	w, err := s.ownedWorker(ctx, workerID, callerID)
	if err != nil {
		return nil, err
	}
	in.WorkerID = &w.ID
	return s.Create(ctx, in, callerID, callerGroups)
}

// ---- price config ----

func (s *Service) GetPriceConfig(ctx context.Context) (*PriceConfig, error) {
	return s.prices.Get(ctx)
}

func (s *Service) UpdatePriceConfig(ctx context.Context, basePrice float64) (*PriceConfig, error) {
	if basePrice <= 0 {
		return nil, fmt.Errorf("base_price must be positive")
	}
	return s.prices.Update(ctx, basePrice)
}

// ---- WhatsApp reminders ----

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func reminderText(a *Appointment) string {
	return fmt.Sprintf("Hola %s, le recordamos su cita de %s el día %d de %s a las %s. Un saludo.",
		a.PatientName, a.GroupName, a.Date.Day(), spanishMonths[a.Date.Month()-1], a.Start)
}

// SendReminders messages the patients of the caller's selected
// appointments. Failures are reported per recipient and never abort the
// batch.
func (s *Service) SendReminders(ctx context.Context, ids []uuid.UUID, callerID uuid.UUID) ([]ReminderResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("appointment_ids is required")
	}

	profile, err := s.profiles.GetByUserID(ctx, callerID)
	if err != nil {
		return nil, ErrMissingTwilioConfig
	}
	creds := whatsapp.Credentials{}
	if profile.TwilioAccountSID != nil {
		creds.AccountSID = *profile.TwilioAccountSID
	}
	if profile.TwilioAuthToken != nil {
		creds.AuthToken = *profile.TwilioAuthToken
	}
	if profile.WhatsappBusinessFrom != nil {
		creds.FromNumber = *profile.WhatsappBusinessFrom
	}
	if !creds.Valid() {
		return nil, ErrMissingTwilioConfig
	}

	appts, err := s.appts.GetOwnedByIDs(ctx, ids, callerID)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, ErrNotFound
	}

	sender, err := s.senders(creds)
	if err != nil {
		return nil, ErrMissingTwilioConfig
	}

	results := make([]ReminderResult, 0, len(appts))
	for _, a := range appts {
		// Patients without a phone number are skipped silently.
		if a.PatientPhone == nil || *a.PatientPhone == "" {
			metrics.RecordReminderSent("skipped")
			continue
		}
		phone := *a.PatientPhone
		if err := sender.Send(ctx, whatsapp.Message{To: phone, Body: reminderText(a)}); err != nil {
			metrics.RecordReminderSent("error")
			results = append(results, ReminderResult{Phone: phone, Error: err.Error()})
			continue
		}
		metrics.RecordReminderSent("sent")
		results = append(results, ReminderResult{Phone: phone, Status: "enviado"})
	}
	return results, nil
}
