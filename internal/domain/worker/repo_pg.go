package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/actua/clinic/internal/domain/account"
	"github.com/actua/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool  *pgxpool.Pool
	users account.UserRepository
}

func NewRepoPG(pool *pgxpool.Pool, users account.UserRepository) Repository {
	return &repoPG{pool: pool, users: users}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) attachUser(ctx context.Context, w *Worker) error {
	u, err := r.users.GetByID(ctx, w.UserID)
	if err != nil {
		return err
	}
	w.User = u
	return nil
}

func scanWorker(row pgx.Row) (*Worker, error) {
	var w Worker
	err := row.Scan(&w.ID, &w.UserID, &w.CreatedBy, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *repoPG) Create(ctx context.Context, w *Worker) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO workers (id, user_id, created_by)
		VALUES ($1,$2,$3)`,
		w.ID, w.UserID, w.CreatedBy)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Worker, error) {
	w, err := scanWorker(r.conn(ctx).QueryRow(ctx,
		`SELECT id, user_id, created_by, created_at FROM workers WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return w, r.attachUser(ctx, w)
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Worker, error) {
	w, err := scanWorker(r.conn(ctx).QueryRow(ctx,
		`SELECT id, user_id, created_by, created_at FROM workers WHERE user_id = $1`, userID))
	if err != nil {
		return nil, err
	}
	return w, r.attachUser(ctx, w)
}

func (r *repoPG) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]*Worker, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM workers WHERE created_by = $1`, createdBy).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, user_id, created_by, created_at FROM workers
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, createdBy, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	workers := []*Worker{}
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, 0, err
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, w := range workers {
		if err := r.attachUser(ctx, w); err != nil {
			return nil, 0, err
		}
	}
	return workers, total, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM workers WHERE id = $1`, id)
	return err
}

// =========== Time register repository ===========

type timeRegisterRepoPG struct{ pool *pgxpool.Pool }

func NewTimeRegisterRepoPG(pool *pgxpool.Pool) TimeRegisterRepository {
	return &timeRegisterRepoPG{pool: pool}
}

func (r *timeRegisterRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const regCols = `id, worker_id, blob_id, file_name, uploaded_by, by_admin, created_at`

func scanRegister(row pgx.Row) (*TimeRegister, error) {
	var reg TimeRegister
	err := row.Scan(&reg.ID, &reg.WorkerID, &reg.BlobID, &reg.FileName,
		&reg.UploadedBy, &reg.ByAdmin, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *timeRegisterRepoPG) Create(ctx context.Context, reg *TimeRegister) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO time_registers (id, worker_id, blob_id, file_name, uploaded_by, by_admin)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		reg.ID, reg.WorkerID, reg.BlobID, reg.FileName, reg.UploadedBy, reg.ByAdmin)
	return err
}

func (r *timeRegisterRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeRegister, error) {
	return scanRegister(r.conn(ctx).QueryRow(ctx,
		`SELECT `+regCols+` FROM time_registers WHERE id = $1`, id))
}

func (r *timeRegisterRepoPG) ListByWorker(ctx context.Context, workerID uuid.UUID, byAdmin bool, limit, offset int) ([]*TimeRegister, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM time_registers WHERE worker_id = $1 AND by_admin = $2`,
		workerID, byAdmin).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+regCols+` FROM time_registers
		WHERE worker_id = $1 AND by_admin = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, workerID, byAdmin, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	regs := []*TimeRegister{}
	for rows.Next() {
		reg, err := scanRegister(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	return regs, total, rows.Err()
}

func (r *timeRegisterRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM time_registers WHERE id = $1`, id)
	return err
}
