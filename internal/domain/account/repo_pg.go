package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actua/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== User repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

const userCols = `id, username, email, first_name, last_name, password_hash, is_active, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoPG) loadGroups(ctx context.Context, u *User) error {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT g.name FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name`, u.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	u.Groups = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		u.Groups = append(u.Groups, name)
	}
	return rows.Err()
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.IsActive = true
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, password_hash, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.IsActive)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return u, r.loadGroups(ctx, u)
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, err
	}
	return u, r.loadGroups(ctx, u)
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET email=$2, first_name=$3, last_name=$4, is_active=$5
		WHERE id = $1`,
		u.ID, u.Email, u.FirstName, u.LastName, u.IsActive)
	return err
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	return err
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (r *userRepoPG) SetGroups(ctx context.Context, userID uuid.UUID, groupNames []string) error {
	c := conn(ctx, r.pool)
	if _, err := c.Exec(ctx, `DELETE FROM user_groups WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, name := range groupNames {
		tag, err := c.Exec(ctx, `
			INSERT INTO user_groups (user_id, group_id)
			SELECT $1, id FROM groups WHERE name = $2`, userID, name)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrUnknownGroup
		}
	}
	return nil
}

func (r *userRepoPG) FindAdminInGroup(ctx context.Context, group string) (*User, error) {
	u, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+userCols+` FROM users u
		WHERE EXISTS (
			SELECT 1 FROM user_groups ug JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id = u.id AND g.name = 'Admin')
		AND EXISTS (
			SELECT 1 FROM user_groups ug JOIN groups g ON g.id = ug.group_id
			WHERE ug.user_id = u.id AND g.name = $1)
		ORDER BY u.created_at
		LIMIT 1`, group))
	if err != nil {
		return nil, err
	}
	return u, r.loadGroups(ctx, u)
}

// =========== Group repository ===========

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository { return &groupRepoPG{pool: pool} }

func (r *groupRepoPG) List(ctx context.Context) ([]*Group, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

func (r *groupRepoPG) GetByName(ctx context.Context, name string) (*Group, error) {
	var g Group
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name FROM groups WHERE name = $1`, name).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownGroup
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// =========== Profile repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository { return &profileRepoPG{pool: pool} }

const profileCols = `id, user_id, second_surname, dni, address, city, postal_code, phone, photo_url,
	twilio_account_sid, twilio_auth_token, whatsapp_business_number, verified, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.SecondSurname, &p.DNI, &p.Address, &p.City,
		&p.PostalCode, &p.Phone, &p.PhotoURL,
		&p.TwilioAccountSID, &p.TwilioAuthToken, &p.WhatsappBusinessFrom,
		&p.Verified, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepoPG) Create(ctx context.Context, p *Profile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_profiles (id, user_id, second_surname, dni, address, city, postal_code,
			phone, photo_url, twilio_account_sid, twilio_auth_token, whatsapp_business_number, verified)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.UserID, p.SecondSurname, p.DNI, p.Address, p.City, p.PostalCode,
		p.Phone, p.PhotoURL, p.TwilioAccountSID, p.TwilioAuthToken, p.WhatsappBusinessFrom, p.Verified)
	return err
}

func (r *profileRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	return scanProfile(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM user_profiles WHERE user_id = $1`, userID))
}

func (r *profileRepoPG) Update(ctx context.Context, p *Profile) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE user_profiles SET second_surname=$2, dni=$3, address=$4, city=$5, postal_code=$6,
			phone=$7, photo_url=$8, twilio_account_sid=$9, twilio_auth_token=$10,
			whatsapp_business_number=$11, verified=$12, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.SecondSurname, p.DNI, p.Address, p.City, p.PostalCode,
		p.Phone, p.PhotoURL, p.TwilioAccountSID, p.TwilioAuthToken,
		p.WhatsappBusinessFrom, p.Verified)
	return err
}
