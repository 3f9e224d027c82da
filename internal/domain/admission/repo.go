package admission

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists admissions and their transfer/discharge history.
// Implementations must observe a transaction carried in ctx so the service
// can compose several writes into one unit of work.
type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	// GetByIDForUpdate locks the admission row for the remainder of the
	// surrounding transaction, so concurrent transfers and discharges of
	// the same stay serialize instead of acting on stale reads.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error)
	GetByNumber(ctx context.Context, number string) (*Admission, error)
	// GetActiveByPatient returns (nil, nil) when the patient has no
	// active admission.
	GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error)
	// UpdateBed and SetDischarged only touch an ACTIVE admission and
	// return ErrAdmissionNotActive otherwise, so a transfer or discharge
	// that lost a race cannot rewrite a closed stay.
	UpdateBed(ctx context.Context, id uuid.UUID, bedID uuid.UUID) error
	SetDischarged(ctx context.Context, id uuid.UUID) error
	ListByBedIDs(ctx context.Context, bedIDs []uuid.UUID, status Status) ([]*Admission, error)
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Admission, int, error)

	CreateTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context, admissionID uuid.UUID) ([]*Transfer, error)
	CreateDischarge(ctx context.Context, d *Discharge) error
	// GetDischarge returns (nil, nil) when the admission is still open.
	GetDischarge(ctx context.Context, admissionID uuid.UUID) (*Discharge, error)
}
