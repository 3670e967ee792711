package patient

import (
	"context"

	"github.com/google/uuid"
)

// ListParams filters the patient listing. Groups is the caller's set of
// specialty groups; the listing never crosses it.
type ListParams struct {
	Groups []string
	Search string
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]*Patient, int, error)
	SetConsent(ctx context.Context, id uuid.UUID, slot string, blobID *uuid.UUID) error
	EmailExistsInGroup(ctx context.Context, groupID uuid.UUID, email string, excludeID uuid.UUID) (bool, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
