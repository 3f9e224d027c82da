package ward

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrOccupyViaAdmission rejects directory writes that try to set OCCUPIED;
// occupancy is only ever established by the admission lifecycle, which also
// sets the occupant reference.
var ErrOccupyViaAdmission = errors.New("bed occupancy is managed by the admission lifecycle")

// ErrReleaseViaAdmission rejects directory writes against an OCCUPIED bed.
// Releasing it here would clear the status but strand both the occupant
// reference and the active stay pointing at the bed; transfer and
// discharge are the only paths that free an occupied bed.
var ErrReleaseViaAdmission = errors.New("an occupied bed is released by the admission lifecycle")

// ErrUnknownStatus is returned for a status outside the four known values.
var ErrUnknownStatus = errors.New("unknown bed status")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListBedsByFloor(ctx context.Context, floor int) ([]*Bed, error) {
	return s.repo.ListByFloor(ctx, floor)
}

// SetBedStatus applies a facility-side status change (reserving a bed,
// flagging it for maintenance, returning it to service). The change is
// checked against the transition table; occupancy moves are rejected here
// because they belong to the admission lifecycle.
func (s *Service) SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) (*Bed, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
	if status == BedOccupied {
		return nil, ErrOccupyViaAdmission
	}

	bed, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bed.Status == BedOccupied {
		return nil, ErrReleaseViaAdmission
	}
	if err := ValidateTransition(bed.Status, status); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	bed.Status = status
	return bed, nil
}
