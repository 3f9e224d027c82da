package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/hims/hims/internal/domain/identity"
	"github.com/hims/hims/internal/domain/sequence"
	"github.com/hims/hims/internal/domain/ward"
	"github.com/hims/hims/internal/platform/events"
	"github.com/hims/hims/internal/platform/middleware"
)

// TxRunner executes fn as one unit of work; writes made through repos that
// honor the context transaction either all commit or all roll back.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service drives the admission lifecycle. Every mutator runs inside one
// transaction; availability conflicts surface as typed errors rather than
// partial state.
type Service struct {
	repo     Repository
	beds     ward.Repository
	patients identity.PatientDirectory
	seq      sequence.Allocator
	pub      events.Publisher
	inTx     TxRunner
	now      func() time.Time
}

func NewService(repo Repository, beds ward.Repository, patients identity.PatientDirectory,
	seq sequence.Allocator, pub events.Publisher, inTx TxRunner) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		repo:     repo,
		beds:     beds,
		patients: patients,
		seq:      seq,
		pub:      pub,
		inTx:     inTx,
		now:      time.Now,
	}
}

func actorFrom(ctx context.Context) (uuid.UUID, error) {
	actor := middleware.ActorFromContext(ctx)
	if actor == uuid.Nil {
		return uuid.Nil, invalidf("missing actor identity")
	}
	return actor, nil
}

// Admit opens a stay: assigns the next admission number for the admission
// year, creates the ACTIVE record and occupies the bed, all in one
// transaction. The partial unique index on active admissions and the
// conditional bed update close the races two concurrent admits can hit.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Admission, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.PatientID == uuid.Nil {
		return nil, invalidf("patient_id is required")
	}
	if req.BedID == uuid.Nil {
		return nil, invalidf("bed_id is required")
	}
	if !req.Category.Valid() {
		return nil, invalidf("unknown admission category %q", req.Category)
	}

	admittedAt := s.now()
	if req.AdmittedAt != nil {
		admittedAt = *req.AdmittedAt
	}

	var adm *Admission
	err = s.inTx(ctx, func(ctx context.Context) error {
		ok, err := s.patients.Exists(ctx, req.PatientID)
		if err != nil {
			return fmt.Errorf("failed to check patient: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrPatientNotFound, req.PatientID)
		}

		existing, err := s.repo.GetActiveByPatient(ctx, req.PatientID)
		if err != nil {
			return fmt.Errorf("failed to check active admission: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: patient %s (admission %s)",
				ErrPatientAlreadyAdmitted, req.PatientID, existing.AdmissionNumber)
		}

		n, err := s.seq.Next(ctx, sequence.AdmissionPeriod(admittedAt))
		if err != nil {
			return err
		}

		now := s.now()
		adm = &Admission{
			ID:                  uuid.New(),
			AdmissionNumber:     sequence.FormatAdmissionNumber(admittedAt.Year(), n),
			PatientID:           req.PatientID,
			BedID:               req.BedID,
			AdmittedAt:          admittedAt,
			Category:            req.Category,
			Diagnosis:           req.Diagnosis,
			ChiefComplaint:      req.ChiefComplaint,
			AttendingID:         req.AttendingID,
			Status:              StatusActive,
			ExpectedDischargeAt: req.ExpectedDischargeAt,
			Notes:               req.Notes,
			CreatedBy:           actor,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.repo.Create(ctx, adm); err != nil {
			return err
		}
		return s.occupy(ctx, req.BedID, adm.ID)
	})
	if err != nil {
		return nil, err
	}
	adm.Transfers = []*Transfer{}

	s.publish(events.Event{
		Type:            events.TypeAdmitted,
		AdmissionID:     adm.ID,
		AdmissionNumber: adm.AdmissionNumber,
		PatientID:       adm.PatientID,
		BedID:           adm.BedID,
	})
	return adm, nil
}

// Transfer moves an active stay to another bed. The source bed is released
// and the destination occupied in the same transaction, so the source is
// never left OCCUPIED when the move fails.
func (s *Service) Transfer(ctx context.Context, admissionID uuid.UUID, req TransferRequest) (*Transfer, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.ToBedID == uuid.Nil {
		return nil, invalidf("to_bed_id is required")
	}

	var (
		tr  *Transfer
		adm *Admission
	)
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		adm, err = s.getForUpdate(ctx, admissionID)
		if err != nil {
			return err
		}
		if req.ToBedID == adm.BedID {
			return invalidf("admission already occupies bed %s", req.ToBedID)
		}

		transferredAt := s.now()
		if req.TransferredAt != nil {
			transferredAt = *req.TransferredAt
		}
		tr = &Transfer{
			ID:            uuid.New(),
			AdmissionID:   adm.ID,
			FromBedID:     adm.BedID,
			ToBedID:       req.ToBedID,
			TransferredAt: transferredAt,
			Reason:        req.Reason,
			PerformedBy:   actor,
			CreatedAt:     s.now(),
		}
		if err := s.repo.CreateTransfer(ctx, tr); err != nil {
			return err
		}
		if err := s.beds.Release(ctx, adm.BedID); err != nil {
			return fmt.Errorf("failed to release bed %s: %w", adm.BedID, err)
		}
		if err := s.occupy(ctx, req.ToBedID, adm.ID); err != nil {
			return err
		}
		return s.repo.UpdateBed(ctx, adm.ID, req.ToBedID)
	})
	if err != nil {
		return nil, err
	}

	from := tr.FromBedID
	s.publish(events.Event{
		Type:            events.TypeTransferred,
		AdmissionID:     adm.ID,
		AdmissionNumber: adm.AdmissionNumber,
		PatientID:       adm.PatientID,
		BedID:           tr.ToBedID,
		FromBedID:       &from,
	})
	return tr, nil
}

// Discharge closes an active stay: records the discharge, frees the bed and
// flips the admission to DISCHARGED. Terminal; a closed stay stays closed.
func (s *Service) Discharge(ctx context.Context, admissionID uuid.UUID, req DischargeRequest) (*Discharge, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Category.Valid() {
		return nil, invalidf("unknown discharge category %q", req.Category)
	}

	var (
		d   *Discharge
		adm *Admission
	)
	err = s.inTx(ctx, func(ctx context.Context) error {
		var err error
		adm, err = s.getForUpdate(ctx, admissionID)
		if err != nil {
			return err
		}

		dischargedAt := s.now()
		if req.DischargedAt != nil {
			dischargedAt = *req.DischargedAt
		}
		d = &Discharge{
			ID:           uuid.New(),
			AdmissionID:  adm.ID,
			DischargedAt: dischargedAt,
			Category:     req.Category,
			Summary:      req.Summary,
			FollowUp:     req.FollowUp,
			PerformedBy:  actor,
			CreatedAt:    s.now(),
		}
		if err := s.repo.CreateDischarge(ctx, d); err != nil {
			return err
		}
		if err := s.beds.Release(ctx, adm.BedID); err != nil {
			return fmt.Errorf("failed to release bed %s: %w", adm.BedID, err)
		}
		return s.repo.SetDischarged(ctx, adm.ID)
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.Event{
		Type:            events.TypeDischarged,
		AdmissionID:     adm.ID,
		AdmissionNumber: adm.AdmissionNumber,
		PatientID:       adm.PatientID,
		BedID:           adm.BedID,
	})
	return d, nil
}

// getForUpdate loads an admission inside a mutator transaction, taking the
// row lock so concurrent mutators of the same stay serialize, and verifies
// it is still open.
func (s *Service) getForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	adm, err := s.repo.GetByIDForUpdate(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAdmissionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admission: %w", err)
	}
	if adm.Status != StatusActive {
		if d, derr := s.repo.GetDischarge(ctx, adm.ID); derr == nil && d != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyDischarged, adm.AdmissionNumber)
		}
		return nil, fmt.Errorf("%w: %s", ErrAdmissionNotActive, adm.AdmissionNumber)
	}
	return adm, nil
}

// occupy claims a bed for an admission, translating ward-level failures
// into lifecycle errors. A zero-row conditional update covers both a
// missing bed and an unavailable one, so the miss is disambiguated with a
// follow-up read inside the same transaction.
func (s *Service) occupy(ctx context.Context, bedID, admissionID uuid.UUID) error {
	err := s.beds.Occupy(ctx, bedID, admissionID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrBedNotFound, bedID)
	case errors.Is(err, ward.ErrUnavailable):
		if _, getErr := s.beds.GetByID(ctx, bedID); errors.Is(getErr, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrBedNotFound, bedID)
		}
		return fmt.Errorf("%w: %s", ErrBedNotAvailable, bedID)
	case err != nil:
		return fmt.Errorf("failed to occupy bed %s: %w", bedID, err)
	}
	return nil
}

// publish notifies subscribers after a commit. Best effort; the committed
// state is already durable, so a publish failure is only logged.
func (s *Service) publish(e events.Event) {
	e.Timestamp = s.now()
	if err := s.pub.Publish(context.Background(), e); err != nil {
		log.Warn().Err(err).Str("event", e.Type).
			Str("admission_id", e.AdmissionID.String()).
			Msg("failed to publish admission event")
	}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	adm, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAdmissionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admission: %w", err)
	}
	return s.hydrate(ctx, adm)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Admission, error) {
	adm, err := s.repo.GetByNumber(ctx, number)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAdmissionNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admission: %w", err)
	}
	return s.hydrate(ctx, adm)
}

func (s *Service) GetActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	adm, err := s.repo.GetActiveByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active admission: %w", err)
	}
	if adm == nil {
		return nil, fmt.Errorf("%w: no active admission for patient %s", ErrAdmissionNotFound, patientID)
	}
	return s.hydrate(ctx, adm)
}

func (s *Service) ListByFloor(ctx context.Context, floor int, status Status) ([]*Admission, error) {
	if status != "" && !status.Valid() {
		return nil, invalidf("unknown admission status %q", status)
	}
	bedIDs, err := s.beds.ListIDsByFloor(ctx, floor)
	if err != nil {
		return nil, fmt.Errorf("failed to list beds on floor %d: %w", floor, err)
	}
	return s.repo.ListByBedIDs(ctx, bedIDs, status)
}

func (s *Service) Search(ctx context.Context, f Filter, limit, offset int) ([]*Admission, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalidf("unknown admission status %q", f.Status)
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, 0, invalidf("unknown admission category %q", f.Category)
	}
	return s.repo.Search(ctx, f, limit, offset)
}

func (s *Service) hydrate(ctx context.Context, adm *Admission) (*Admission, error) {
	transfers, err := s.repo.ListTransfers(ctx, adm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transfers: %w", err)
	}
	if transfers == nil {
		transfers = []*Transfer{}
	}
	adm.Transfers = transfers

	if adm.Status == StatusDischarged {
		d, err := s.repo.GetDischarge(ctx, adm.ID)
		if err != nil {
			return nil, err
		}
		adm.Discharge = d
	}
	return adm, nil
}
