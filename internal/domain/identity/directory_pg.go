package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hims/hims/internal/platform/db"
)

type directoryPG struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) PatientDirectory {
	return &directoryPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (d *directoryPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return d.pool
}

func (d *directoryPG) Exists(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := d.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE id = $1 AND deleted_at IS NULL)`,
		patientID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
