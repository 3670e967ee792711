package formation

import (
	"time"

	"github.com/google/uuid"
)

// Formation is a continuing-education course a user attends or plans to.
type Formation struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`

	Title        string  `db:"title" json:"title"`
	Professional *string `db:"professional" json:"professional"`
	Place        *string `db:"place" json:"place"`
	Topic        *string `db:"topic" json:"topic"`

	Date time.Time `db:"date" json:"date"`
	Time *string   `db:"time" json:"time"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
