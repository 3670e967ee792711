package note

import (
	"time"

	"github.com/google/uuid"
)

// DefaultColor is the sticky-note yellow the frontend renders when the
// user picks nothing else.
const DefaultColor = "#FFEE8C"

type Note struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`

	Title   string `db:"title" json:"title"`
	Content string `db:"content" json:"content"`
	Color   string `db:"color" json:"color"`

	IsImportant  bool       `db:"is_important" json:"is_important"`
	ReminderDate *time.Time `db:"reminder_date" json:"reminder_date"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
