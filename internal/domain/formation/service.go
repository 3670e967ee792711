package formation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("formation not found")

type Service struct {
	formations Repository
}

func NewService(formations Repository) *Service {
	return &Service{formations: formations}
}

type Input struct {
	Title        string  `json:"title"`
	Professional *string `json:"professional"`
	Place        *string `json:"place"`
	Topic        *string `json:"topic"`
	Date         string  `json:"date"`
	Time         *string `json:"time"`
}

func (in Input) build(ownerID uuid.UUID) (*Formation, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD")
	}
	if in.Time != nil {
		if _, err := time.Parse("15:04", *in.Time); err != nil {
			return nil, fmt.Errorf("time must be HH:MM")
		}
	}

	return &Formation{
		OwnerID:      ownerID,
		Title:        in.Title,
		Professional: in.Professional,
		Place:        in.Place,
		Topic:        in.Topic,
		Date:         date,
		Time:         in.Time,
	}, nil
}

func (s *Service) Create(ctx context.Context, in Input, callerID uuid.UUID) (*Formation, error) {
	f, err := in.build(callerID)
	if err != nil {
		return nil, err
	}
	if err := s.formations.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Get(ctx context.Context, id, callerID uuid.UUID) (*Formation, error) {
	f, err := s.formations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.OwnerID != callerID {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *Service) List(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]*Formation, int, error) {
	return s.formations.ListByOwner(ctx, callerID, limit, offset)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input, callerID uuid.UUID) (*Formation, error) {
	existing, err := s.Get(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	f, err := in.build(existing.OwnerID)
	if err != nil {
		return nil, err
	}
	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	if err := s.formations.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	if _, err := s.Get(ctx, id, callerID); err != nil {
		return err
	}
	return s.formations.Delete(ctx, id)
}
