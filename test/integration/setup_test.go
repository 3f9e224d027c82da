package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hims/hims/internal/domain/admission"
	"github.com/hims/hims/internal/domain/identity"
	"github.com/hims/hims/internal/domain/sequence"
	"github.com/hims/hims/internal/domain/ward"
	"github.com/hims/hims/internal/platform/db"
	"github.com/hims/hims/internal/platform/events"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}

	migrationsDir := findMigrationsDir()
	if _, err := db.NewMigrator(pool, migrationsDir).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	globalDB = &testDB{Pool: pool, ConnStr: connStr, MigrationsDir: migrationsDir}
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> repo root
	return filepath.Join(dir, "..", "..", "migrations")
}

// newLifecycle wires the admission service against the shared test database
// with a real transaction runner. Events go to a capture publisher.
func newLifecycle(t *testing.T) (*admission.Service, *capturePublisher) {
	t.Helper()
	pool := globalDB.Pool
	pub := &capturePublisher{}
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.RunInTx(ctx, pool, fn)
	}
	svc := admission.NewService(
		admission.NewRepo(pool),
		ward.NewRepo(pool),
		identity.NewDirectory(pool),
		sequence.NewAllocator(pool),
		pub,
		inTx,
	)
	return svc, pub
}

type capturePublisher struct {
	published []events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, e events.Event) error {
	p.published = append(p.published, e)
	return nil
}

// createTestPatient inserts a patient row directly.
func createTestPatient(t *testing.T, ctx context.Context) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := globalDB.Pool.Exec(ctx,
		`INSERT INTO patient (id, mrn, full_name) VALUES ($1, $2, $3)`,
		id, "MRN-"+id.String()[:8], "Test Patient")
	if err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return id
}

// createTestBed inserts a bed row directly in the given status.
func createTestBed(t *testing.T, ctx context.Context, floor int, status ward.BedStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := globalDB.Pool.Exec(ctx,
		`INSERT INTO bed (id, number, room_id, floor, status) VALUES ($1, $2, $3, $4, $5)`,
		id, "B-"+id.String()[:8], "R-101", floor, status)
	if err != nil {
		t.Fatalf("create test bed: %v", err)
	}
	return id
}

// getBed reads a bed row directly.
func getBed(t *testing.T, ctx context.Context, id uuid.UUID) *ward.Bed {
	t.Helper()
	bed, err := ward.NewRepo(globalDB.Pool).GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get bed %s: %v", id, err)
	}
	return bed
}
