package activity

import (
	"context"
	"encoding/json"
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

const activityCols = `id, name, description, start_date, recurrence_days, start_time, end_time,
	price, monitor, created_by, created_at, updated_at`

func scanActivity(row pgx.Row) (*Activity, error) {
	var a Activity
	var days []byte
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.StartDate, &days, &a.StartTime,
		&a.EndTime, &a.Price, &a.Monitor, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &a.RecurrenceDays); err != nil {
			return nil, fmt.Errorf("decode recurrence days: %w", err)
		}
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	days, err := json.Marshal(a.RecurrenceDays)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO activities (id, name, description, start_date, recurrence_days,
			start_time, end_time, price, monitor, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.Name, a.Description, a.StartDate, days,
		a.StartTime, a.EndTime, a.Price, a.Monitor, a.CreatedBy)
	return err
}

func (r *repoPG) loadPatients(ctx context.Context, a *Activity) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT patient_id FROM activity_patients WHERE activity_id = $1`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	a.PatientIDs = []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		a.PatientIDs = append(a.PatientIDs, id)
	}
	return rows.Err()
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Activity, error) {
	a, err := scanActivity(r.conn(ctx).QueryRow(ctx,
		`SELECT `+activityCols+` FROM activities WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadPatients(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Activity) error {
	days, err := json.Marshal(a.RecurrenceDays)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE activities SET name=$2, description=$3, start_date=$4, recurrence_days=$5,
			start_time=$6, end_time=$7, price=$8, monitor=$9, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Name, a.Description, a.StartDate, days,
		a.StartTime, a.EndTime, a.Price, a.Monitor)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Activity, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM activities`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM activities ORDER BY start_date, start_time LIMIT %d OFFSET %d`,
		activityCols, limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	activities := []*Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, a := range activities {
		if err := r.loadPatients(ctx, a); err != nil {
			return nil, 0, err
		}
	}
	return activities, total, nil
}

func (r *repoPG) SetPatients(ctx context.Context, id uuid.UUID, patientIDs []uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM activity_patients WHERE activity_id = $1`, id); err != nil {
		return err
	}
	for _, pid := range patientIDs {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO activity_patients (activity_id, patient_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, pid); err != nil {
			return err
		}
	}
	return nil
}
