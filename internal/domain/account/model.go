package account

import (
	"time"

	"github.com/google/uuid"
)

// Group is an authorization group. Admin and worker carry fixed meaning;
// the rest are clinic specialties (Fisioterapia, Psicologia, ...).
type Group struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	// Groups holds the names of the user's groups, loaded alongside the row.
	Groups []string `db:"-" json:"groups"`
}

// Profile is the per-user clinic profile (the billing identity plus the
// stored WhatsApp credentials).
type Profile struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	SecondSurname *string   `db:"second_surname" json:"second_surname"`
	DNI           *string   `db:"dni" json:"dni"`
	Address       *string   `db:"address" json:"address"`
	City          *string   `db:"city" json:"city"`
	PostalCode    *string   `db:"postal_code" json:"postal_code"`
	Phone         *string   `db:"phone" json:"phone"`
	PhotoURL      *string   `db:"photo_url" json:"photo_url"`

	TwilioAccountSID     *string `db:"twilio_account_sid" json:"twilio_account_sid"`
	TwilioAuthToken      *string `db:"twilio_auth_token" json:"-"`
	WhatsappBusinessFrom *string `db:"whatsapp_business_number" json:"whatsapp_business_number"`

	Verified  bool      `db:"verified" json:"verified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
