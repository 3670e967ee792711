package activity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Activity, error)
	Update(ctx context.Context, a *Activity) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Activity, int, error)
	SetPatients(ctx context.Context, id uuid.UUID, patientIDs []uuid.UUID) error
}
