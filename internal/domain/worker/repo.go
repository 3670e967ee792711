package worker

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, w *Worker) error
	GetByID(ctx context.Context, id uuid.UUID) (*Worker, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Worker, error)
	ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]*Worker, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TimeRegisterRepository interface {
	Create(ctx context.Context, r *TimeRegister) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeRegister, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID, byAdmin bool, limit, offset int) ([]*TimeRegister, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
