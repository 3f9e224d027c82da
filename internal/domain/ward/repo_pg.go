package ward

import (
	"context"

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

const bedCols = `id, number, room_id, floor, status, admission_id, notes, created_at, updated_at`

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed WHERE id = $1`, id))
}

func (r *repoPG) ListByFloor(ctx context.Context, floor int) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+bedCols+` FROM bed WHERE floor = $1 ORDER BY number`, floor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		var b Bed
		if err := rows.Scan(&b.ID, &b.Number, &b.RoomID, &b.Floor, &b.Status, &b.AdmissionID, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		beds = append(beds, &b)
	}
	return beds, rows.Err()
}

func (r *repoPG) ListIDsByFloor(ctx context.Context, floor int) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM bed WHERE floor = $1`, floor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Occupy claims the bed for an admission. The status predicate makes the
// claim safe under concurrency: of two transactions racing for one bed,
// only the first conditional update reports an affected row.
func (r *repoPG) Occupy(ctx context.Context, bedID, admissionID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = $2, admission_id = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)`,
		bedID, BedOccupied, admissionID, BedEmpty, BedReserved,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUnavailable
	}
	return nil
}

func (r *repoPG) Release(ctx context.Context, bedID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = $2, admission_id = NULL, updated_at = NOW()
		WHERE id = $1`,
		bedID, BedEmpty,
	)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, bedID uuid.UUID, status BedStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET status = $2, updated_at = NOW()
		WHERE id = $1`,
		bedID, status,
	)
	return err
}

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.Number, &b.RoomID, &b.Floor, &b.Status, &b.AdmissionID, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
