package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Invoice kinds. A cotizada appointment gets a standard invoice; when it
// also carries IRPF, a second invoice with the retention applied.
const (
	KindStandard = "standard"
	KindIRPF     = "irpf"
)

type Invoice struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Number int       `db:"number" json:"number"`
	Kind   string    `db:"kind" json:"kind"`

	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	// IssuerUserID is the user whose billing profile appears on the PDF.
	IssuerUserID uuid.UUID `db:"issuer_user_id" json:"issuer_user_id"`
	// CreatedBy is the caller that issued the invoice; listings are
	// scoped to it.
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`

	Date     time.Time `db:"date" json:"date"`
	Concept  string    `db:"concept" json:"concept"`
	Amount   float64   `db:"amount" json:"amount"`
	IRPFRate float64   `db:"irpf_rate" json:"irpf_rate"`
	Total    float64   `db:"total" json:"total"`

	PDFBlobID uuid.UUID `db:"pdf_blob_id" json:"pdf_blob_id"`

	PatientName string `db:"-" json:"patient_name"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NumberingConfig is the seeded singleton holding the number the sequence
// starts from when no invoice exists yet.
type NumberingConfig struct {
	ID          uuid.UUID `db:"id" json:"id"`
	StartNumber int       `db:"start_number" json:"start_number"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
