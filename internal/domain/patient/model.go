package patient

import (
	"time"

	"github.com/google/uuid"
)

// Consent slots. Each patient can hold one signed PDF per slot.
const (
	ConsentGeneral    = "general"
	ConsentMinor      = "minor"
	ConsentInjections = "injections"
)

var ConsentSlots = map[string]bool{
	ConsentGeneral:    true,
	ConsentMinor:      true,
	ConsentInjections: true,
}

type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Surnames     string     `db:"surnames" json:"surnames"`
	Email        string     `db:"email" json:"email"`
	Phone        *string    `db:"phone" json:"phone"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date"`
	DNI          *string    `db:"dni" json:"dni"`
	Address      *string    `db:"address" json:"address"`
	City         *string    `db:"city" json:"city"`
	PostalCode   *string    `db:"postal_code" json:"postal_code"`
	Country      *string    `db:"country" json:"country"`
	HasAllergies bool       `db:"has_allergies" json:"has_allergies"`
	Pathologies  []string   `db:"pathologies" json:"pathologies"`
	Notes        *string    `db:"notes" json:"notes"`

	GroupID   uuid.UUID `db:"group_id" json:"group_id"`
	GroupName string    `db:"group_name" json:"group_name"`

	ConsentGeneralID    *uuid.UUID `db:"consent_general_blob_id" json:"consent_general_id"`
	ConsentMinorID      *uuid.UUID `db:"consent_minor_blob_id" json:"consent_minor_id"`
	ConsentInjectionsID *uuid.UUID `db:"consent_injections_blob_id" json:"consent_injections_id"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Patient) consentID(slot string) *uuid.UUID {
	switch slot {
	case ConsentGeneral:
		return p.ConsentGeneralID
	case ConsentMinor:
		return p.ConsentMinorID
	case ConsentInjections:
		return p.ConsentInjectionsID
	}
	return nil
}

// Document is an extra file attached to a patient record.
type Document struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	BlobID    uuid.UUID `db:"blob_id" json:"blob_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
