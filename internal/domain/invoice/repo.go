package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListParams struct {
	// CreatedBy scopes the listing to the issuing caller.
	CreatedBy uuid.UUID
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// List returns invoices ordered by number descending.
	List(ctx context.Context, params ListParams) ([]*Invoice, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// LastNumber locks and returns the highest assigned number, with
	// ok=false when no invoice exists yet. Must run inside a transaction.
	LastNumber(ctx context.Context) (int, bool, error)
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID, kind string) (bool, error)
}

type NumberingConfigRepository interface {
	Get(ctx context.Context) (*NumberingConfig, error)
	// GetForUpdate locks the config row so concurrent issuers serialize
	// even before the first invoice exists. Must run inside a transaction.
	GetForUpdate(ctx context.Context) (*NumberingConfig, error)
	Update(ctx context.Context, startNumber int) (*NumberingConfig, error)
}
