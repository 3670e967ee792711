package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Scope restricts a listing to what the viewer may see.
type Scope struct {
	// ViewerID is the calling user.
	ViewerID uuid.UUID
	// ViewerWorkerID is set when the caller belongs to the worker group;
	// only appointments assigned to that worker are visible then.
	ViewerWorkerID *uuid.UUID
}

type ListParams struct {
	Scope     Scope
	PatientID *uuid.UUID
	WorkerID  *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]*Appointment, int, error)
	// GetOwnedByIDs returns the subset of ids created by ownerID.
	GetOwnedByIDs(ctx context.Context, ids []uuid.UUID, ownerID uuid.UUID) ([]*Appointment, error)
}

type PriceConfigRepository interface {
	Get(ctx context.Context) (*PriceConfig, error)
	Update(ctx context.Context, basePrice float64) (*PriceConfig, error)
}

// WorkerResolver looks up worker records without dragging in the whole
// worker domain.
type WorkerResolver interface {
	ByID(ctx context.Context, id uuid.UUID) (*WorkerRef, error)
	ByUserID(ctx context.Context, userID uuid.UUID) (*WorkerRef, error)
}
