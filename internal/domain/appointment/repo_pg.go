package appointment

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

const apptCols = `a.id, a.patient_id, a.worker_id, a.user_id, a.date, a.start_time, a.end_time,
	a.description, a.price, a.cotizada, a.irpf, a.payment_method, a.paid, a.created_at, a.updated_at,
	p.name || ' ' || p.surnames, p.phone, g.name`

const apptJoins = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN groups g ON g.id = p.group_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.WorkerID, &a.UserID, &a.Date, &a.Start, &a.End,
		&a.Description, &a.Price, &a.Cotizada, &a.IRPF, &a.PaymentMethod, &a.Paid,
		&a.CreatedAt, &a.UpdatedAt,
		&a.PatientName, &a.PatientPhone, &a.GroupName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, worker_id, user_id, date, start_time, end_time,
			description, price, cotizada, irpf, payment_method, paid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.PatientID, a.WorkerID, a.UserID, a.Date, a.Start, a.End,
		a.Description, a.Price, a.Cotizada, a.IRPF, a.PaymentMethod, a.Paid)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptJoins+` WHERE a.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET patient_id=$2, worker_id=$3, date=$4, start_time=$5, end_time=$6,
			description=$7, price=$8, cotizada=$9, irpf=$10, payment_method=$11, paid=$12,
			updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.PatientID, a.WorkerID, a.Date, a.Start, a.End,
		a.Description, a.Price, a.Cotizada, a.IRPF, a.PaymentMethod, a.Paid)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	return err
}

func scopeClause(scope Scope, args *[]interface{}) string {
	if scope.ViewerWorkerID != nil {
		*args = append(*args, *scope.ViewerWorkerID)
		return fmt.Sprintf("a.worker_id = $%d", len(*args))
	}
	*args = append(*args, scope.ViewerID)
	n := len(*args)
	return fmt.Sprintf(`(a.user_id = $%d OR a.worker_id IN (SELECT id FROM workers WHERE user_id = $%d))`, n, n)
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Appointment, int, error) {
	args := []interface{}{}
	where := scopeClause(params.Scope, &args)

	if params.PatientID != nil {
		args = append(args, *params.PatientID)
		where += fmt.Sprintf(" AND a.patient_id = $%d", len(args))
	}
	if params.WorkerID != nil {
		args = append(args, *params.WorkerID)
		where += fmt.Sprintf(" AND a.worker_id = $%d", len(args))
	}
	if params.From != nil {
		args = append(args, *params.From)
		where += fmt.Sprintf(" AND a.date >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		where += fmt.Sprintf(" AND a.date < $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*)`+apptJoins+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`SELECT %s%s WHERE %s
		ORDER BY a.date, a.start_time
		LIMIT %d OFFSET %d`, apptCols, apptJoins, where, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	appts := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, a)
	}
	return appts, total, rows.Err()
}

func (r *repoPG) GetOwnedByIDs(ctx context.Context, ids []uuid.UUID, ownerID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+apptJoins+` WHERE a.id = ANY($1) AND a.user_id = $2
		ORDER BY a.date, a.start_time`, ids, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appts := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// =========== Price config repository ===========

type priceConfigRepoPG struct{ pool *pgxpool.Pool }

func NewPriceConfigRepoPG(pool *pgxpool.Pool) PriceConfigRepository {
	return &priceConfigRepoPG{pool: pool}
}

func (r *priceConfigRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// The config row is seeded by migration; there is always exactly one.
func (r *priceConfigRepoPG) Get(ctx context.Context) (*PriceConfig, error) {
	var cfg PriceConfig
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, base_price, updated_at FROM appointment_price_config LIMIT 1`).
		Scan(&cfg.ID, &cfg.BasePrice, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *priceConfigRepoPG) Update(ctx context.Context, basePrice float64) (*PriceConfig, error) {
	var cfg PriceConfig
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment_price_config SET base_price = $1, updated_at = NOW()
		RETURNING id, base_price, updated_at`, basePrice).
		Scan(&cfg.ID, &cfg.BasePrice, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
