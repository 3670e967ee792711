package account

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetGroups(ctx context.Context, userID uuid.UUID, groupNames []string) error
	// FindAdminInGroup returns a user belonging to both the Admin group and
	// the given group. Invoice issuing for physio callers resolves the
	// billing identity through it.
	FindAdminInGroup(ctx context.Context, group string) (*User, error)
}

type GroupRepository interface {
	List(ctx context.Context) ([]*Group, error)
	GetByName(ctx context.Context, name string) (*Group, error)
}

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
}
