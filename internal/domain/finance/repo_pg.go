package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const txCols = `id, kind, amount, description, appointment_id, activity_id, receipt_url,
	owner_id, date, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Kind, &t.Amount, &t.Description, &t.AppointmentID,
		&t.ActivityID, &t.ReceiptURL, &t.OwnerID, &t.Date, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoPG) Create(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO transactions (id, kind, amount, description, appointment_id, activity_id,
			receipt_url, owner_id, date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Kind, t.Amount, t.Description, t.AppointmentID, t.ActivityID,
		t.ReceiptURL, t.OwnerID, t.Date)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.conn(ctx).QueryRow(ctx,
		`SELECT `+txCols+` FROM transactions WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Transaction, int, error) {
	args := []interface{}{params.OwnerID}
	where := "owner_id = $1"

	if len(params.Kinds) > 0 {
		args = append(args, params.Kinds)
		where += fmt.Sprintf(" AND kind = ANY($%d)", len(args))
	}
	if params.From != nil {
		args = append(args, *params.From)
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		where += fmt.Sprintf(" AND date < $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
		ORDER BY date DESC, created_at DESC
		LIMIT %d OFFSET %d`, txCols, where, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs := []*Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, t)
	}
	return txs, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

func (r *repoPG) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE appointment_id = $1)`,
		appointmentID).Scan(&exists)
	return exists, err
}

func (r *repoPG) RecordedAppointmentIDs(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT appointment_id FROM transactions
		WHERE owner_id = $1 AND appointment_id IS NOT NULL`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) SumsByKind(ctx context.Context, ownerID uuid.UUID, from, to *time.Time) (map[string]float64, error) {
	args := []interface{}{ownerID}
	where := "owner_id = $1"
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(" AND date < $%d", len(args))
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT kind, COALESCE(SUM(amount), 0) FROM transactions WHERE `+where+` GROUP BY kind`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := map[string]float64{}
	for rows.Next() {
		var kind string
		var sum float64
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, err
		}
		sums[kind] = sum
	}
	return sums, rows.Err()
}

// =========== Config repository ===========

type configRepoPG struct{ pool *pgxpool.Pool }

func NewConfigRepoPG(pool *pgxpool.Pool) ConfigRepository {
	return &configRepoPG{pool: pool}
}

func (r *configRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// The config row is seeded by migration; there is always exactly one.
func (r *configRepoPG) Get(ctx context.Context) (*Config, error) {
	var cfg Config
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, default_session_price, default_quoted_price, updated_at
		FROM finance_config LIMIT 1`).
		Scan(&cfg.ID, &cfg.DefaultSessionPrice, &cfg.DefaultQuotedPrice, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepoPG) Update(ctx context.Context, in *Config) (*Config, error) {
	var cfg Config
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE finance_config SET default_session_price = $1, default_quoted_price = $2,
			updated_at = NOW()
		RETURNING id, default_session_price, default_quoted_price, updated_at`,
		in.DefaultSessionPrice, in.DefaultQuotedPrice).
		Scan(&cfg.ID, &cfg.DefaultSessionPrice, &cfg.DefaultQuotedPrice, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
