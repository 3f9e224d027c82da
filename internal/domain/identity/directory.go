// Package identity exposes the patient directory boundary the admission
// engine depends on. Patient record management itself lives in another
// service; this package only answers existence checks.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// PatientDirectory reports whether a patient is known and not soft-deleted.
type PatientDirectory interface {
	Exists(ctx context.Context, patientID uuid.UUID) (bool, error)
}
