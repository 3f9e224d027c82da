package ward

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when a conditional occupancy write finds the
// bed no longer in an occupiable state. It covers the window between a
// precondition read and the write: the losing side of two concurrent
// claims on one bed observes it here.
var ErrUnavailable = errors.New("bed is not available")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	ListByFloor(ctx context.Context, floor int) ([]*Bed, error)
	ListIDsByFloor(ctx context.Context, floor int) ([]uuid.UUID, error)

	// Occupy sets the bed OCCUPIED with the given admission as occupant.
	// The write is conditional on the bed currently being EMPTY or
	// RESERVED; ErrUnavailable otherwise.
	Occupy(ctx context.Context, bedID, admissionID uuid.UUID) error

	// Release sets the bed EMPTY and clears its occupant.
	Release(ctx context.Context, bedID uuid.UUID) error

	// UpdateStatus applies a directory status change (e.g. flagging a bed
	// for maintenance). Occupancy writes go through Occupy/Release.
	UpdateStatus(ctx context.Context, bedID uuid.UUID, status BedStatus) error
}
