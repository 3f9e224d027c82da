package ward

import (
	"time"

	"github.com/google/uuid"
)

// BedStatus is the occupancy state of a physical bed.
type BedStatus string

const (
	BedEmpty       BedStatus = "EMPTY"
	BedOccupied    BedStatus = "OCCUPIED"
	BedReserved    BedStatus = "RESERVED"
	BedMaintenance BedStatus = "MAINTENANCE"
)

// Valid reports whether s is one of the four known statuses.
func (s BedStatus) Valid() bool {
	switch s {
	case BedEmpty, BedOccupied, BedReserved, BedMaintenance:
		return true
	}
	return false
}

// Bed maps to the bed table. Beds are created and retired by facility
// setup; this service only mutates status and occupant.
//
// Invariant: AdmissionID is non-nil exactly when Status is OCCUPIED, and it
// then references an ACTIVE admission.
type Bed struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Number      string     `db:"number" json:"number"`
	RoomID      uuid.UUID  `db:"room_id" json:"room_id"`
	Floor       int        `db:"floor" json:"floor"`
	Status      BedStatus  `db:"status" json:"status"`
	AdmissionID *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
