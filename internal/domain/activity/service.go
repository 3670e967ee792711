package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/db"
)

var (
	ErrNotFound  = errors.New("activity not found")
	ErrForbidden = errors.New("only Admin users can modify activities")
)

type Service struct {
	activities Repository
	txRunner   db.TxRunner
}

func NewService(activities Repository, txRunner db.TxRunner) *Service {
	if txRunner == nil {
		txRunner = db.PassthroughTxRunner()
	}
	return &Service{activities: activities, txRunner: txRunner}
}

type Input struct {
	Name           string      `json:"name"`
	Description    *string     `json:"description"`
	StartDate      string      `json:"start_date"`
	RecurrenceDays []string    `json:"recurrence_days"`
	StartTime      string      `json:"start_time"`
	EndTime        string      `json:"end_time"`
	Price          float64     `json:"price"`
	Monitor        *string     `json:"monitor"`
	PatientIDs     []uuid.UUID `json:"patient_ids"`
}

func parseClock(value, field string) (string, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return "", fmt.Errorf("%s must be HH:MM", field)
	}
	return t.Format("15:04"), nil
}

func (in Input) build() (*Activity, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	startDate, err := time.Parse("2006-01-02", in.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	startTime, err := parseClock(in.StartTime, "start_time")
	if err != nil {
		return nil, err
	}
	endTime, err := parseClock(in.EndTime, "end_time")
	if err != nil {
		return nil, err
	}
	if startTime >= endTime {
		return nil, fmt.Errorf("start_time must be before end_time")
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}

	return &Activity{
		Name:           in.Name,
		Description:    in.Description,
		StartDate:      startDate,
		RecurrenceDays: in.RecurrenceDays,
		StartTime:      startTime,
		EndTime:        endTime,
		Price:          in.Price,
		Monitor:        in.Monitor,
		PatientIDs:     in.PatientIDs,
	}, nil
}

// Create stores an activity with its enrolled patients. Admin only.
func (s *Service) Create(ctx context.Context, in Input, callerID uuid.UUID, callerGroups []string) (*Activity, error) {
	if !auth.IsAdmin(callerGroups) {
		return nil, ErrForbidden
	}
	a, err := in.build()
	if err != nil {
		return nil, err
	}
	a.CreatedBy = callerID

	err = s.txRunner(ctx, func(ctx context.Context) error {
		if err := s.activities.Create(ctx, a); err != nil {
			return err
		}
		return s.activities.SetPatients(ctx, a.ID, a.PatientIDs)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Activity, error) {
	return s.activities.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Activity, int, error) {
	return s.activities.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, callerGroups []string) (*Activity, error) {
	if !auth.IsAdmin(callerGroups) {
		return nil, ErrForbidden
	}
	existing, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := in.build()
	if err != nil {
		return nil, err
	}
	a.ID = existing.ID
	a.CreatedBy = existing.CreatedBy
	a.CreatedAt = existing.CreatedAt

	err = s.txRunner(ctx, func(ctx context.Context) error {
		if err := s.activities.Update(ctx, a); err != nil {
			return err
		}
		return s.activities.SetPatients(ctx, a.ID, a.PatientIDs)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, callerGroups []string) error {
	if !auth.IsAdmin(callerGroups) {
		return ErrForbidden
	}
	if _, err := s.activities.GetByID(ctx, id); err != nil {
		return err
	}
	return s.activities.Delete(ctx, id)
}
