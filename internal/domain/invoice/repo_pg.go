package invoice

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

const invoiceCols = `i.id, i.number, i.kind, i.appointment_id, i.patient_id, i.issuer_user_id,
	i.created_by, i.date, i.concept, i.amount, i.irpf_rate, i.total, i.pdf_blob_id, i.created_at,
	p.name || ' ' || p.surnames`

const invoiceJoins = ` FROM invoices i
	JOIN patients p ON p.id = i.patient_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.Kind, &inv.AppointmentID, &inv.PatientID,
		&inv.IssuerUserID, &inv.CreatedBy, &inv.Date, &inv.Concept, &inv.Amount,
		&inv.IRPFRate, &inv.Total, &inv.PDFBlobID, &inv.CreatedAt, &inv.PatientName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, number, kind, appointment_id, patient_id, issuer_user_id,
			created_by, date, concept, amount, irpf_rate, total, pdf_blob_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		inv.ID, inv.Number, inv.Kind, inv.AppointmentID, inv.PatientID, inv.IssuerUserID,
		inv.CreatedBy, inv.Date, inv.Concept, inv.Amount, inv.IRPFRate, inv.Total, inv.PDFBlobID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+invoiceJoins+` WHERE i.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Invoice, int, error) {
	args := []interface{}{params.CreatedBy}
	where := "i.created_by = $1"

	if params.PatientID != nil {
		args = append(args, *params.PatientID)
		where += fmt.Sprintf(" AND i.patient_id = $%d", len(args))
	}
	if params.From != nil {
		args = append(args, *params.From)
		where += fmt.Sprintf(" AND i.date >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		where += fmt.Sprintf(" AND i.date < $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*)`+invoiceJoins+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`SELECT %s%s WHERE %s
		ORDER BY i.number DESC
		LIMIT %d OFFSET %d`, invoiceCols, invoiceJoins, where, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := []*Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

// LastNumber returns the highest assigned number, locking the row for the
// issuing transaction.
func (r *repoPG) LastNumber(ctx context.Context) (int, bool, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT number FROM invoices ORDER BY number DESC LIMIT 1 FOR UPDATE`).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (r *repoPG) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID, kind string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE appointment_id = $1 AND kind = $2)`,
		appointmentID, kind).Scan(&exists)
	return exists, err
}

// =========== Numbering config repository ===========

type numberingRepoPG struct{ pool *pgxpool.Pool }

func NewNumberingRepoPG(pool *pgxpool.Pool) NumberingConfigRepository {
	return &numberingRepoPG{pool: pool}
}

func (r *numberingRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// The config row is seeded by migration; there is always exactly one.
func (r *numberingRepoPG) Get(ctx context.Context) (*NumberingConfig, error) {
	var cfg NumberingConfig
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, start_number, updated_at FROM invoice_numbering_config LIMIT 1`).
		Scan(&cfg.ID, &cfg.StartNumber, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *numberingRepoPG) GetForUpdate(ctx context.Context) (*NumberingConfig, error) {
	var cfg NumberingConfig
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, start_number, updated_at FROM invoice_numbering_config LIMIT 1 FOR UPDATE`).
		Scan(&cfg.ID, &cfg.StartNumber, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *numberingRepoPG) Update(ctx context.Context, startNumber int) (*NumberingConfig, error) {
	var cfg NumberingConfig
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE invoice_numbering_config SET start_number = $1, updated_at = NOW()
		RETURNING id, start_number, updated_at`, startNumber).
		Scan(&cfg.ID, &cfg.StartNumber, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
