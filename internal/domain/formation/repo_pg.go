package formation

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

const formationCols = `id, owner_id, title, professional, place, topic, date, time,
	created_at, updated_at`

func scanFormation(row pgx.Row) (*Formation, error) {
	var f Formation
	err := row.Scan(&f.ID, &f.OwnerID, &f.Title, &f.Professional, &f.Place, &f.Topic,
		&f.Date, &f.Time, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) Create(ctx context.Context, f *Formation) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO formations (id, owner_id, title, professional, place, topic, date, time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		f.ID, f.OwnerID, f.Title, f.Professional, f.Place, f.Topic, f.Date, f.Time)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Formation, error) {
	return scanFormation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+formationCols+` FROM formations WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, f *Formation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE formations SET title=$2, professional=$3, place=$4, topic=$5, date=$6, time=$7,
			updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Title, f.Professional, f.Place, f.Topic, f.Date, f.Time)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM formations WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Formation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM formations WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM formations WHERE owner_id = $1 ORDER BY date DESC LIMIT %d OFFSET %d`,
		formationCols, limit, offset), ownerID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	formations := []*Formation{}
	for rows.Next() {
		f, err := scanFormation(rows)
		if err != nil {
			return nil, 0, err
		}
		formations = append(formations, f)
	}
	return formations, total, rows.Err()
}
