package worker

import (
	"time"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/domain/account"
)

// Worker wraps a user account created for a clinic employee. The creating
// admin owns the record; other admins never see it.
type Worker struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// User carries the wrapped account, loaded alongside the row. The
	// password hash is never serialized.
	User *account.User `db:"-" json:"user"`
}

// TimeRegister is an uploaded jornada PDF for a worker.
type TimeRegister struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WorkerID   uuid.UUID `db:"worker_id" json:"worker_id"`
	BlobID     uuid.UUID `db:"blob_id" json:"blob_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	UploadedBy uuid.UUID `db:"uploaded_by" json:"uploaded_by"`
	// ByAdmin splits the listing between sheets uploaded by the admin and
	// by the worker themself.
	ByAdmin   bool      `db:"by_admin" json:"by_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
