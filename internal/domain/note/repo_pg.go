package note

import (
	"context"
	"errors"
	"fmt"

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

const noteCols = `id, owner_id, title, content, color, is_important, reminder_date,
	created_at, updated_at`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Color,
		&n.IsImportant, &n.ReminderDate, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *repoPG) Create(ctx context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO notes (id, owner_id, title, content, color, is_important, reminder_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.OwnerID, n.Title, n.Content, n.Color, n.IsImportant, n.ReminderDate)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	return scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM notes WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, n *Note) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notes SET title=$2, content=$3, color=$4, is_important=$5, reminder_date=$6,
			updated_at=NOW()
		WHERE id = $1`,
		n.ID, n.Title, n.Content, n.Color, n.IsImportant, n.ReminderDate)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Note, int, error) {
	args := []interface{}{params.OwnerID}
	where := "owner_id = $1"
	if params.ReminderOn != nil {
		args = append(args, *params.ReminderOn)
		where += fmt.Sprintf(" AND reminder_date = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`SELECT %s FROM notes WHERE %s
		ORDER BY is_important DESC, reminder_date ASC NULLS LAST, created_at DESC
		LIMIT %d OFFSET %d`, noteCols, where, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notes := []*Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, total, rows.Err()
}
