package note

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListParams struct {
	OwnerID uuid.UUID
	// ReminderOn keeps only notes whose reminder falls on that day.
	ReminderOn *time.Time
	Limit      int
	Offset     int
}

type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List orders important notes first, then by reminder date, then by
	// creation time.
	List(ctx context.Context, params ListParams) ([]*Note, int, error)
}
