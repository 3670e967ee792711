package activity

import (
	"time"

	"github.com/google/uuid"
)

// Activity is a recurring group session (pilates, therapeutic exercise...)
// with its enrolled patients.
type Activity struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`

	StartDate time.Time `db:"start_date" json:"start_date"`
	// RecurrenceDays are weekday names ("lunes", "miercoles", ...).
	RecurrenceDays []string `db:"recurrence_days" json:"recurrence_days"`
	StartTime      string   `db:"start_time" json:"start_time"`
	EndTime        string   `db:"end_time" json:"end_time"`

	Price   float64 `db:"price" json:"price"`
	Monitor *string `db:"monitor" json:"monitor"`

	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`

	PatientIDs []uuid.UUID `db:"-" json:"patient_ids"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
