package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hims/hims/internal/platform/db"
)

type allocatorPG struct {
	pool *pgxpool.Pool
}

func NewAllocator(pool *pgxpool.Pool) Allocator {
	return &allocatorPG{pool: pool}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (a *allocatorPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return a.pool
}

// Next bumps the period's counter in a single statement so two callers
// racing on the same period always see distinct values. Run inside the
// caller's transaction the row lock also serializes number assignment
// with the insert that consumes it.
func (a *allocatorPG) Next(ctx context.Context, period string) (int64, error) {
	var value int64
	err := a.conn(ctx).QueryRow(ctx, `
		INSERT INTO sequence_counter (period, value)
		VALUES ($1, 1)
		ON CONFLICT (period)
		DO UPDATE SET value = sequence_counter.value + 1
		RETURNING value`, period).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", period, err)
	}
	return value, nil
}
