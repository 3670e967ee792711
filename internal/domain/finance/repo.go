package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListParams struct {
	OwnerID uuid.UUID
	Kinds   []string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	// List returns transactions ordered by date descending.
	List(ctx context.Context, params ListParams) ([]*Transaction, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	// RecordedAppointmentIDs lists the appointments the owner has already
	// registered income for.
	RecordedAppointmentIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
	// SumsByKind totals the owner's transactions per kind inside a window.
	SumsByKind(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) (map[string]float64, error)
}

type ConfigRepository interface {
	Get(ctx context.Context) (*Config, error)
	Update(ctx context.Context, cfg *Config) (*Config, error)
}
