package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/actua/clinic/internal/platform/auth"
	"github.com/actua/clinic/internal/platform/db"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownGroup       = errors.New("unknown group")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already in use")
)

type Service struct {
	users    UserRepository
	groups   GroupRepository
	profiles ProfileRepository
	issuer   *auth.TokenIssuer
	tx       db.TxRunner
}

func NewService(users UserRepository, groups GroupRepository, profiles ProfileRepository,
	issuer *auth.TokenIssuer, tx db.TxRunner) *Service {
	if tx == nil {
		tx = db.PassthroughTxRunner()
	}
	return &Service{users: users, groups: groups, profiles: profiles, issuer: issuer, tx: tx}
}

func subject(u *User) auth.Subject {
	return auth.Subject{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Groups:    u.Groups,
	}
}

// Login verifies credentials and returns a token pair carrying the user's
// identity and groups.
func (s *Service) Login(ctx context.Context, username, password string) (*auth.TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issuer.IssuePair(subject(u))
}

// Refresh exchanges a valid refresh token for a new access token. The user
// is re-read so revoked accounts and group changes take effect immediately.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.issuer.Parse(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		return "", ErrInvalidCredentials
	}
	return s.issuer.IssueAccess(subject(u))
}

type CreateUserInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Group           string `json:"group"`
}

func (in CreateUserInput) validate() error {
	if in.Username == "" {
		return fmt.Errorf("username is required")
	}
	if in.Password == "" {
		return fmt.Errorf("password is required")
	}
	if in.Password != in.ConfirmPassword {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

// CreateUser registers a user, its empty profile, and the optional group,
// in one transaction.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if in.Group != "" {
		if _, err := s.groups.GetByName(ctx, in.Group); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Groups:       []string{},
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if in.Group != "" {
			if err := s.users.SetGroups(ctx, u.ID, []string{in.Group}); err != nil {
				return err
			}
			u.Groups = []string{in.Group}
		}
		return s.profiles.Create(ctx, &Profile{UserID: u.ID})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password and stores the new one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirm string) error {
	if next == "" {
		return fmt.Errorf("new password is required")
	}
	if next != confirm {
		return fmt.Errorf("passwords do not match")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

func (s *Service) ListGroups(ctx context.Context) ([]*Group, error) {
	return s.groups.List(ctx)
}

// ProfileView joins the profile with the wrapped user's editable fields.
type ProfileView struct {
	Profile
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileView, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{
		Profile:   *p,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}

type UpdateProfileInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`

	SecondSurname *string `json:"second_surname"`
	DNI           *string `json:"dni"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	PostalCode    *string `json:"postal_code"`
	Phone         *string `json:"phone"`
	PhotoURL      *string `json:"photo_url"`

	TwilioAccountSID     *string `json:"twilio_account_sid"`
	TwilioAuthToken      *string `json:"twilio_auth_token"`
	WhatsappBusinessFrom *string `json:"whatsapp_business_number"`
}

// UpdateProfile applies partial updates to the profile and its user fields.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*ProfileView, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Email != nil {
		u.Email = *in.Email
	}

	if in.SecondSurname != nil {
		p.SecondSurname = in.SecondSurname
	}
	if in.DNI != nil {
		p.DNI = in.DNI
	}
	if in.Address != nil {
		p.Address = in.Address
	}
	if in.City != nil {
		p.City = in.City
	}
	if in.PostalCode != nil {
		p.PostalCode = in.PostalCode
	}
	if in.Phone != nil {
		p.Phone = in.Phone
	}
	if in.PhotoURL != nil {
		p.PhotoURL = in.PhotoURL
	}
	if in.TwilioAccountSID != nil {
		p.TwilioAccountSID = in.TwilioAccountSID
	}
	if in.TwilioAuthToken != nil {
		p.TwilioAuthToken = in.TwilioAuthToken
	}
	if in.WhatsappBusinessFrom != nil {
		p.WhatsappBusinessFrom = in.WhatsappBusinessFrom
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		return s.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	return &ProfileView{
		Profile:   *p,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}, nil
}
