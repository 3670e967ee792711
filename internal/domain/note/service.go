package note

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("note not found")

type Service struct {
	notes Repository
}

func NewService(notes Repository) *Service {
	return &Service{notes: notes}
}

type Input struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Color        string `json:"color"`
	IsImportant  bool   `json:"is_important"`
	ReminderDate string `json:"reminder_date"`
}

func (in Input) build(ownerID uuid.UUID) (*Note, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	color := in.Color
	if color == "" {
		color = DefaultColor
	}

	var reminder *time.Time
	if in.ReminderDate != "" {
		parsed, err := time.Parse("2006-01-02", in.ReminderDate)
		if err != nil {
			return nil, fmt.Errorf("reminder_date must be YYYY-MM-DD")
		}
		reminder = &parsed
	}

	return &Note{
		OwnerID:      ownerID,
		Title:        in.Title,
		Content:      in.Content,
		Color:        color,
		IsImportant:  in.IsImportant,
		ReminderDate: reminder,
	}, nil
}

func (s *Service) Create(ctx context.Context, in Input, callerID uuid.UUID) (*Note, error) {
	n, err := in.build(callerID)
	if err != nil {
		return nil, err
	}
	if err := s.notes.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID) (*Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.OwnerID != callerID {
		return nil, ErrNotFound
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, callerID uuid.UUID) (*Note, error) {
	existing, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	n, err := in.build(existing.OwnerID)
	if err != nil {
		return nil, err
	}
	n.ID = existing.ID
	n.CreatedAt = existing.CreatedAt
	if err := s.notes.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	if _, err := s.Get(ctx, id, callerID); err != nil {
		return err
	}
	return s.notes.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	return s.notes.List(ctx, ListParams{OwnerID: callerID, Limit: limit, Offset: offset})
}

// ListByReminderDate returns the caller's notes whose reminder falls on
// the given YYYY-MM-DD day.
func (s *Service) ListByReminderDate(ctx context.Context, callerID uuid.UUID, date string, limit, offset int) ([]*Note, int, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, 0, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return s.notes.List(ctx, ListParams{
		OwnerID:    callerID,
		ReminderOn: &day,
		Limit:      limit,
		Offset:     offset,
	})
}

// ListToday returns the caller's notes with a reminder for today.
func (s *Service) ListToday(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]*Note, int, error) {
	return s.ListByReminderDate(ctx, callerID, time.Now().Format("2006-01-02"), limit, offset)
}
