package admission

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryScheduled  Category = "SCHEDULED"
	CategoryEmergency  Category = "EMERGENCY"
	CategoryTransferIn Category = "TRANSFER_IN"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryScheduled, CategoryEmergency, CategoryTransferIn:
		return true
	}
	return false
}

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusDischarged Status = "DISCHARGED"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDischarged
}

type DischargeCategory string

const (
	DischargeRoutine       DischargeCategory = "ROUTINE"
	DischargeReferral      DischargeCategory = "REFERRAL"
	DischargeAgainstAdvice DischargeCategory = "AGAINST_ADVICE"
	DischargeDeceased      DischargeCategory = "DECEASED"
)

func (c DischargeCategory) Valid() bool {
	switch c {
	case DischargeRoutine, DischargeReferral, DischargeAgainstAdvice, DischargeDeceased:
		return true
	}
	return false
}

// Admission is one hospital stay. Rows are never deleted; a stay ends by
// discharge, which flips Status to DISCHARGED and leaves the record in
// place for the audit trail.
type Admission struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	AdmissionNumber     string     `db:"admission_number" json:"admission_number"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	BedID               uuid.UUID  `db:"bed_id" json:"bed_id"`
	AdmittedAt          time.Time  `db:"admitted_at" json:"admitted_at"`
	Category            Category   `db:"category" json:"category"`
	Diagnosis           *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	ChiefComplaint      *string    `db:"chief_complaint" json:"chief_complaint,omitempty"`
	AttendingID         *uuid.UUID `db:"attending_id" json:"attending_id,omitempty"`
	Status              Status     `db:"status" json:"status"`
	ExpectedDischargeAt *time.Time `db:"expected_discharge_at" json:"expected_discharge_at,omitempty"`
	Notes               *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy           uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`

	// Hydrated on single-admission reads, nil/empty on list reads.
	Transfers []*Transfer `db:"-" json:"transfers,omitempty"`
	Discharge *Discharge  `db:"-" json:"discharge,omitempty"`
}

// Transfer is an insert-only record of one bed move within a stay.
type Transfer struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AdmissionID   uuid.UUID `db:"admission_id" json:"admission_id"`
	FromBedID     uuid.UUID `db:"from_bed_id" json:"from_bed_id"`
	ToBedID       uuid.UUID `db:"to_bed_id" json:"to_bed_id"`
	TransferredAt time.Time `db:"transferred_at" json:"transferred_at"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	PerformedBy   uuid.UUID `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Discharge closes a stay. At most one row exists per admission.
type Discharge struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	AdmissionID  uuid.UUID         `db:"admission_id" json:"admission_id"`
	DischargedAt time.Time         `db:"discharged_at" json:"discharged_at"`
	Category     DischargeCategory `db:"category" json:"category"`
	Summary      *string           `db:"summary" json:"summary,omitempty"`
	FollowUp     *string           `db:"follow_up" json:"follow_up,omitempty"`
	PerformedBy  uuid.UUID         `db:"performed_by" json:"performed_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}

type AdmitRequest struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	BedID               uuid.UUID  `json:"bed_id"`
	AdmittedAt          *time.Time `json:"admitted_at,omitempty"`
	Category            Category   `json:"category"`
	Diagnosis           *string    `json:"diagnosis,omitempty"`
	ChiefComplaint      *string    `json:"chief_complaint,omitempty"`
	AttendingID         *uuid.UUID `json:"attending_id,omitempty"`
	ExpectedDischargeAt *time.Time `json:"expected_discharge_at,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
}

type TransferRequest struct {
	ToBedID       uuid.UUID  `json:"to_bed_id"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`
	Reason        *string    `json:"reason,omitempty"`
}

type DischargeRequest struct {
	DischargedAt *time.Time        `json:"discharged_at,omitempty"`
	Category     DischargeCategory `json:"category"`
	Summary      *string           `json:"summary,omitempty"`
	FollowUp     *string           `json:"follow_up,omitempty"`
}

// Filter narrows admission search. Zero values mean "any".
type Filter struct {
	PatientID   *uuid.UUID
	BedID       *uuid.UUID
	AttendingID *uuid.UUID
	Status      Status
	Category    Category
	From        *time.Time
	To          *time.Time
	Query       string
}
