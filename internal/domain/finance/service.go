package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/appointment"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrForbidden       = errors.New("appointment belongs to another user")
	ErrAlreadyRecorded = errors.New("appointment income is already recorded")
)

// AppointmentStore is the slice of the scheduling domain finance needs:
// reading a cita and flipping its cotizada flag.
type AppointmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Update(ctx context.Context, a *appointment.Appointment) error
}

type Service struct {
	txs   Repository
	cfg   ConfigRepository
	appts AppointmentStore
}

func NewService(txs Repository, cfg ConfigRepository, appts AppointmentStore) *Service {
	return &Service{txs: txs, cfg: cfg, appts: appts}
}

func (s *Service) ownedAppointment(ctx context.Context, id, callerID uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if a.UserID != callerID {
		return nil, ErrForbidden
	}
	return a, nil
}

// RegisterIncome books the income of an appointment. Cotizada sessions are
// tracked under their own kind so quoted income can be reported apart.
func (s *Service) RegisterIncome(ctx context.Context, appointmentID, callerID uuid.UUID) (*Transaction, error) {
	a, err := s.ownedAppointment(ctx, appointmentID, callerID)
	if err != nil {
		return nil, err
	}

	if exists, err := s.txs.ExistsForAppointment(ctx, a.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyRecorded
	}

	kind := KindIncome
	if a.Cotizada {
		kind = KindQuotedIncome
	}

	t := &Transaction{
		Kind:          kind,
		Amount:        a.Price,
		Description:   fmt.Sprintf("Sesión de %s - %s", a.GroupName, a.PatientName),
		AppointmentID: &a.ID,
		OwnerID:       callerID,
		Date:          a.Date,
	}
	if err := s.txs.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordedAppointments lists the appointment IDs the caller already booked
// income for.
func (s *Service) RecordedAppointments(ctx context.Context, callerID uuid.UUID) ([]uuid.UUID, error) {
	return s.txs.RecordedAppointmentIDs(ctx, callerID)
}

// MarkCotizada flips an appointment to cotizada.
func (s *Service) MarkCotizada(ctx context.Context, appointmentID, callerID uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.ownedAppointment(ctx, appointmentID, callerID)
	if err != nil {
		return nil, err
	}
	if !a.Cotizada {
		a.Cotizada = true
		if err := s.appts.Update(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

type ExpenseInput struct {
	Amount      float64    `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	ReceiptURL  *string    `json:"receipt_url"`
	ActivityID  *uuid.UUID `json:"activity_id"`
}

func (s *Service) AddExpense(ctx context.Context, in ExpenseInput, callerID uuid.UUID) (*Transaction, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if in.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	date := time.Now()
	if in.Date != "" {
		parsed, err := time.Parse("2006-01-02", in.Date)
		if err != nil {
			return nil, fmt.Errorf("date must be YYYY-MM-DD")
		}
		date = parsed
	}

	t := &Transaction{
		Kind:        KindExpense,
		Amount:      in.Amount,
		Description: in.Description,
		ReceiptURL:  in.ReceiptURL,
		ActivityID:  in.ActivityID,
		OwnerID:     callerID,
		Date:        date,
	}
	if err := s.txs.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// periodWindow translates the reporting periods into date windows.
func periodWindow(period string, now time.Time) (*time.Time, *time.Time, error) {
	loc := now.Location()
	switch period {
	case "", "total":
		return nil, nil, nil
	case "mensual":
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		to := from.AddDate(0, 1, 0)
		return &from, &to, nil
	case "trimestral":
		quarterStart := time.Month((int(now.Month())-1)/3*3 + 1)
		from := time.Date(now.Year(), quarterStart, 1, 0, 0, 0, 0, loc)
		to := from.AddDate(0, 3, 0)
		return &from, &to, nil
	case "anual":
		from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		to := from.AddDate(1, 0, 0)
		return &from, &to, nil
	default:
		return nil, nil, fmt.Errorf("invalid period: %s", period)
	}
}

func (s *Service) list(ctx context.Context, callerID uuid.UUID, kinds []string, period string, limit, offset int) ([]*Transaction, int, error) {
	from, to, err := periodWindow(period, time.Now())
	if err != nil {
		return nil, 0, err
	}
	return s.txs.List(ctx, ListParams{
		OwnerID: callerID,
		Kinds:   kinds,
		From:    from,
		To:      to,
		Limit:   limit,
		Offset:  offset,
	})
}

func (s *Service) ListExpenses(ctx context.Context, callerID uuid.UUID, period string, limit, offset int) ([]*Transaction, int, error) {
	return s.list(ctx, callerID, []string{KindExpense}, period, limit, offset)
}

func (s *Service) ListIncomes(ctx context.Context, callerID uuid.UUID, period string, limit, offset int) ([]*Transaction, int, error) {
	return s.list(ctx, callerID, incomeKinds, period, limit, offset)
}

func (s *Service) DeleteTransaction(ctx context.Context, id, callerID uuid.UUID) error {
	t, err := s.txs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.OwnerID != callerID {
		return ErrNotFound
	}
	return s.txs.Delete(ctx, id)
}

// Balance reports the caller's sums per kind over total, current month,
// current quarter and current year.
func (s *Service) Balance(ctx context.Context, callerID uuid.UUID) (*Balance, error) {
	now := time.Now()
	periods := []string{"total", "mensual", "trimestral", "anual"}

	var b Balance
	for _, period := range periods {
		from, to, err := periodWindow(period, now)
		if err != nil {
			return nil, err
		}
		sums, err := s.txs.SumsByKind(ctx, callerID, from, to)
		if err != nil {
			return nil, err
		}

		set := func(ps *PeriodSums, v float64) {
			switch period {
			case "total":
				ps.Total = v
			case "mensual":
				ps.Month = v
			case "trimestral":
				ps.Quarter = v
			case "anual":
				ps.Year = v
			}
		}
		set(&b.Incomes, sums[KindIncome])
		set(&b.QuotedIncomes, sums[KindQuotedIncome])
		set(&b.Expenses, sums[KindExpense])
	}
	return &b, nil
}

// ---- config ----

func (s *Service) GetConfig(ctx context.Context) (*Config, error) {
	return s.cfg.Get(ctx)
}

func (s *Service) UpdateConfig(ctx context.Context, in *Config) (*Config, error) {
	if in.DefaultSessionPrice < 0 || in.DefaultQuotedPrice < 0 {
		return nil, fmt.Errorf("prices must not be negative")
	}
	return s.cfg.Update(ctx, in)
}
