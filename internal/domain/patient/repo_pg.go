package patient

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

const patientCols = `p.id, p.name, p.surnames, p.email, p.phone, p.birth_date, p.dni,
	p.address, p.city, p.postal_code, p.country, p.has_allergies, p.pathologies, p.notes,
	p.group_id, g.name,
	p.consent_general_blob_id, p.consent_minor_blob_id, p.consent_injections_blob_id,
	p.created_at, p.updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var pathologies []byte
	err := row.Scan(&p.ID, &p.Name, &p.Surnames, &p.Email, &p.Phone, &p.BirthDate, &p.DNI,
		&p.Address, &p.City, &p.PostalCode, &p.Country, &p.HasAllergies, &pathologies, &p.Notes,
		&p.GroupID, &p.GroupName,
		&p.ConsentGeneralID, &p.ConsentMinorID, &p.ConsentInjectionsID,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Pathologies = []string{}
	if len(pathologies) > 0 {
		if err := json.Unmarshal(pathologies, &p.Pathologies); err != nil {
			return nil, fmt.Errorf("decode pathologies: %w", err)
		}
	}
	return &p, nil
}

func encodePathologies(p *Patient) ([]byte, error) {
	if p.Pathologies == nil {
		p.Pathologies = []string{}
	}
	return json.Marshal(p.Pathologies)
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	pathologies, err := encodePathologies(p)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, name, surnames, email, phone, birth_date, dni,
			address, city, postal_code, country, has_allergies, pathologies, notes, group_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.Name, p.Surnames, p.Email, p.Phone, p.BirthDate, p.DNI,
		p.Address, p.City, p.PostalCode, p.Country, p.HasAllergies, pathologies, p.Notes, p.GroupID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patients p
		JOIN groups g ON g.id = p.group_id
		WHERE p.id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	pathologies, err := encodePathologies(p)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE patients SET name=$2, surnames=$3, email=$4, phone=$5, birth_date=$6, dni=$7,
			address=$8, city=$9, postal_code=$10, country=$11, has_allergies=$12,
			pathologies=$13, notes=$14, group_id=$15, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Surnames, p.Email, p.Phone, p.BirthDate, p.DNI,
		p.Address, p.City, p.PostalCode, p.Country, p.HasAllergies,
		pathologies, p.Notes, p.GroupID)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Patient, int, error) {
	if len(params.Groups) == 0 {
		return []*Patient{}, 0, nil
	}

	where := `g.name = ANY($1)`
	args := []interface{}{params.Groups}
	if params.Search != "" {
		where += ` AND (p.name ILIKE $2 OR p.surnames ILIKE $2)`
		args = append(args, "%"+params.Search+"%")
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM patients p JOIN groups g ON g.id = p.group_id WHERE ` + where
	if err := r.conn(ctx).QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`
		SELECT %s FROM patients p
		JOIN groups g ON g.id = p.group_id
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT %d OFFSET %d`, patientCols, where, params.Limit, params.Offset)

	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

var consentColumns = map[string]string{
	ConsentGeneral:    "consent_general_blob_id",
	ConsentMinor:      "consent_minor_blob_id",
	ConsentInjections: "consent_injections_blob_id",
}

func (r *repoPG) SetConsent(ctx context.Context, id uuid.UUID, slot string, blobID *uuid.UUID) error {
	col, ok := consentColumns[slot]
	if !ok {
		return ErrUnknownConsentSlot
	}
	tag, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf(`UPDATE patients SET %s = $2, updated_at = NOW() WHERE id = $1`, col),
		id, blobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) EmailExistsInGroup(ctx context.Context, groupID uuid.UUID, email string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patients
			WHERE group_id = $1 AND lower(email) = lower($2) AND id <> $3)`,
		groupID, email, excludeID).Scan(&exists)
	return exists, err
}

// =========== Document repository ===========

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_documents (id, patient_id, blob_id, name)
		VALUES ($1,$2,$3,$4)`,
		d.ID, d.PatientID, d.BlobID, d.Name)
	return err
}

func (r *documentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var d Document
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, blob_id, name, created_at
		FROM patient_documents WHERE id = $1`, id).
		Scan(&d.ID, &d.PatientID, &d.BlobID, &d.Name, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *documentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, blob_id, name, created_at
		FROM patient_documents WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.PatientID, &d.BlobID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (r *documentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_documents WHERE id = $1`, id)
	return err
}
