package formation

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Formation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Formation, error)
	Update(ctx context.Context, f *Formation) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ListByOwner orders by date descending.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Formation, int, error)
}
