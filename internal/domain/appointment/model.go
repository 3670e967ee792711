package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Payment methods accepted at the clinic.
const (
	PayCash     = "efectivo"
	PayBizum    = "bizum"
	PayCard     = "tarjeta"
	PayTransfer = "transferencia"
)

var PaymentMethods = map[string]bool{
	PayCash:     true,
	PayBizum:    true,
	PayCard:     true,
	PayTransfer: true,
}

// Appointment is a cita. Start and End are clock times in HH:MM on Date.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	WorkerID  *uuid.UUID `db:"worker_id" json:"worker_id"`
	// UserID is the creating user.
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Date        time.Time `db:"date" json:"date"`
	Start       string    `db:"start_time" json:"start"`
	End         string    `db:"end_time" json:"end"`
	Description *string   `db:"description" json:"description"`

	Price         float64 `db:"price" json:"price"`
	Cotizada      bool    `db:"cotizada" json:"cotizada"`
	IRPF          bool    `db:"irpf" json:"irpf"`
	PaymentMethod string  `db:"payment_method" json:"payment_method"`
	Paid          bool    `db:"paid" json:"paid"`

	// Patient display fields, loaded with the row for listings and
	// reminder texts.
	PatientName  string  `db:"-" json:"patient_name"`
	PatientPhone *string `db:"-" json:"-"`
	GroupName    string  `db:"-" json:"group_name"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PriceConfig is the seeded singleton holding the default session price.
type PriceConfig struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BasePrice float64   `db:"base_price" json:"base_price"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WorkerRef is the slice of a worker record the scheduling rules need.
type WorkerRef struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedBy uuid.UUID
}

// ReminderResult is the per-recipient outcome of a reminder batch.
type ReminderResult struct {
	Phone  string `json:"telefono"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}
