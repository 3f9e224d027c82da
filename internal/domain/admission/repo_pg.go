package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hims/hims/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const admissionCols = `id, admission_number, patient_id, bed_id, admitted_at, category,
	diagnosis, chief_complaint, attending_id, status, expected_discharge_at, notes,
	created_by, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.AdmissionNumber, &a.PatientID, &a.BedID, &a.AdmittedAt,
		&a.Category, &a.Diagnosis, &a.ChiefComplaint, &a.AttendingID, &a.Status,
		&a.ExpectedDischargeAt, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAdmissions(rows pgx.Rows) ([]*Admission, error) {
	defer rows.Close()
	var out []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission (id, admission_number, patient_id, bed_id, admitted_at,
			category, diagnosis, chief_complaint, attending_id, status,
			expected_discharge_at, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.AdmissionNumber, a.PatientID, a.BedID, a.AdmittedAt,
		a.Category, a.Diagnosis, a.ChiefComplaint, a.AttendingID, a.Status,
		a.ExpectedDischargeAt, a.Notes, a.CreatedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" &&
			pgErr.ConstraintName == "admission_one_active_per_patient" {
			return fmt.Errorf("%w: patient %s", ErrPatientAlreadyAdmitted, a.PatientID)
		}
		return fmt.Errorf("failed to insert admission: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetByNumber(ctx context.Context, number string) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE admission_number = $1`, number))
}

func (r *repoPG) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE patient_id = $1 AND status = $2`,
		patientID, StatusActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *repoPG) UpdateBed(ctx context.Context, id uuid.UUID, bedID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admission SET bed_id = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, bedID, StatusActive)
	if err != nil {
		return fmt.Errorf("failed to update admission bed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAdmissionNotActive, id)
	}
	return nil
}

func (r *repoPG) SetDischarged(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admission SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, StatusDischarged, StatusActive)
	if err != nil {
		return fmt.Errorf("failed to close admission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAdmissionNotActive, id)
	}
	return nil
}

func (r *repoPG) ListByBedIDs(ctx context.Context, bedIDs []uuid.UUID, status Status) ([]*Admission, error) {
	if len(bedIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + admissionCols + ` FROM admission WHERE bed_id = ANY($1)`
	args := []interface{}{bedIDs}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY admitted_at DESC, created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list admissions by bed: %w", err)
	}
	return collectAdmissions(rows)
}

// searchWhere renders Filter into a WHERE clause with positional args.
// Kept separate from Search so the rendering is testable without a
// database.
func searchWhere(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != nil {
		add(`patient_id = $%d`, *f.PatientID)
	}
	if f.BedID != nil {
		add(`bed_id = $%d`, *f.BedID)
	}
	if f.AttendingID != nil {
		add(`attending_id = $%d`, *f.AttendingID)
	}
	if f.Status != "" {
		add(`status = $%d`, f.Status)
	}
	if f.Category != "" {
		add(`category = $%d`, f.Category)
	}
	if f.From != nil {
		add(`admitted_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(`admitted_at <= $%d`, *f.To)
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(admission_number ILIKE $%d OR diagnosis ILIKE $%d OR chief_complaint ILIKE $%d)`,
			n, n, n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *repoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Admission, int, error) {
	where, args := searchWhere(f)

	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM admission`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count admissions: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM admission%s ORDER BY admitted_at DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		admissionCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search admissions: %w", err)
	}
	list, err := collectAdmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *repoPG) CreateTransfer(ctx context.Context, t *Transfer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO transfer (id, admission_id, from_bed_id, to_bed_id, transferred_at, reason, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.AdmissionID, t.FromBedID, t.ToBedID, t.TransferredAt, t.Reason, t.PerformedBy)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

func (r *repoPG) ListTransfers(ctx context.Context, admissionID uuid.UUID) ([]*Transfer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, admission_id, from_bed_id, to_bed_id, transferred_at, reason, performed_by, created_at
		FROM transfer WHERE admission_id = $1 ORDER BY transferred_at ASC, created_at ASC`, admissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	var out []*Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.AdmissionID, &t.FromBedID, &t.ToBedID,
			&t.TransferredAt, &t.Reason, &t.PerformedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *repoPG) CreateDischarge(ctx context.Context, d *Discharge) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge (id, admission_id, discharged_at, category, summary, follow_up, performed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.AdmissionID, d.DischargedAt, d.Category, d.Summary, d.FollowUp, d.PerformedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: admission %s", ErrAlreadyDischarged, d.AdmissionID)
		}
		return fmt.Errorf("failed to insert discharge: %w", err)
	}
	return nil
}

func (r *repoPG) GetDischarge(ctx context.Context, admissionID uuid.UUID) (*Discharge, error) {
	var d Discharge
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, admission_id, discharged_at, category, summary, follow_up, performed_by, created_at
		FROM discharge WHERE admission_id = $1`, admissionID).
		Scan(&d.ID, &d.AdmissionID, &d.DischargedAt, &d.Category, &d.Summary,
			&d.FollowUp, &d.PerformedBy, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load discharge: %w", err)
	}
	return &d, nil
}
