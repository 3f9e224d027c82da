package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hims/hims/internal/domain/admission"
	"github.com/hims/hims/internal/domain/sequence"
	"github.com/hims/hims/internal/domain/ward"
	"github.com/hims/hims/internal/platform/events"
	"github.com/hims/hims/internal/platform/middleware"
)

func actorCtx() context.Context {
	return middleware.WithActor(context.Background(), uuid.New())
}

func at(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.UTC)
	return &t
}

func TestAdmissionLifecycle(t *testing.T) {
	svc, pub := newLifecycle(t)
	ctx := actorCtx()

	patient := createTestPatient(t, ctx)
	bed := createTestBed(t, ctx, 3, ward.BedEmpty)

	// Admissions in this test are pinned to 2030 so the per-year counter
	// starts fresh and the numbers are deterministic.
	adm, err := svc.Admit(ctx, admission.AdmitRequest{
		PatientID:  patient,
		BedID:      bed,
		AdmittedAt: at(2030, 1, 5),
		Category:   admission.CategoryEmergency,
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if adm.AdmissionNumber != "A2030000001" {
		t.Errorf("admission number = %s, want A2030000001", adm.AdmissionNumber)
	}
	if adm.Status != admission.StatusActive {
		t.Errorf("status = %s, want ACTIVE", adm.Status)
	}
	if b := getBed(t, ctx, bed); b.Status != ward.BedOccupied || b.AdmissionID == nil || *b.AdmissionID != adm.ID {
		t.Errorf("bed after admit = %+v, want OCCUPIED by %s", b, adm.ID)
	}
	if len(pub.published) != 1 || pub.published[0].Type != events.TypeAdmitted {
		t.Fatalf("published = %+v, want one admitted event", pub.published)
	}

	t.Run("unknown bed is not found, not a conflict", func(t *testing.T) {
		_, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  createTestPatient(t, ctx),
			BedID:      uuid.New(),
			AdmittedAt: at(2030, 1, 6),
			Category:   admission.CategoryScheduled,
		})
		if !errors.Is(err, admission.ErrBedNotFound) {
			t.Fatalf("err = %v, want ErrBedNotFound", err)
		}
	})

	t.Run("second admit for same patient conflicts", func(t *testing.T) {
		spare := createTestBed(t, ctx, 3, ward.BedEmpty)
		_, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  patient,
			BedID:      spare,
			AdmittedAt: at(2030, 1, 6),
			Category:   admission.CategoryScheduled,
		})
		if !errors.Is(err, admission.ErrPatientAlreadyAdmitted) {
			t.Fatalf("err = %v, want ErrPatientAlreadyAdmitted", err)
		}
		if b := getBed(t, ctx, spare); b.Status != ward.BedEmpty {
			t.Errorf("spare bed = %s after a rejected admit, want EMPTY", b.Status)
		}
	})

	var dest uuid.UUID
	t.Run("transfer moves the stay", func(t *testing.T) {
		dest = createTestBed(t, ctx, 4, ward.BedReserved)
		tr, err := svc.Transfer(ctx, adm.ID, admission.TransferRequest{ToBedID: dest})
		if err != nil {
			t.Fatalf("Transfer: %v", err)
		}
		if tr.FromBedID != bed || tr.ToBedID != dest {
			t.Errorf("transfer = %s -> %s, want %s -> %s", tr.FromBedID, tr.ToBedID, bed, dest)
		}
		if b := getBed(t, ctx, bed); b.Status != ward.BedEmpty || b.AdmissionID != nil {
			t.Errorf("source bed = %+v, want EMPTY and unoccupied", b)
		}
		if b := getBed(t, ctx, dest); b.Status != ward.BedOccupied || *b.AdmissionID != adm.ID {
			t.Errorf("dest bed = %+v, want OCCUPIED by the admission", b)
		}

		got, err := svc.GetByID(ctx, adm.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.BedID != dest {
			t.Errorf("admission bed = %s, want %s", got.BedID, dest)
		}
		if len(got.Transfers) != 1 {
			t.Errorf("transfers = %d, want 1", len(got.Transfers))
		}
	})

	t.Run("transfer into occupied bed fails cleanly", func(t *testing.T) {
		otherPatient := createTestPatient(t, ctx)
		otherBed := createTestBed(t, ctx, 4, ward.BedEmpty)
		if _, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  otherPatient,
			BedID:      otherBed,
			AdmittedAt: at(2030, 1, 7),
			Category:   admission.CategoryScheduled,
		}); err != nil {
			t.Fatalf("Admit other: %v", err)
		}

		_, err := svc.Transfer(ctx, adm.ID, admission.TransferRequest{ToBedID: otherBed})
		if !errors.Is(err, admission.ErrBedNotAvailable) {
			t.Fatalf("err = %v, want ErrBedNotAvailable", err)
		}
		// The failed move must roll back completely.
		if b := getBed(t, ctx, dest); b.Status != ward.BedOccupied || *b.AdmissionID != adm.ID {
			t.Errorf("current bed after failed move = %+v, want still OCCUPIED", b)
		}
		got, err := svc.GetByID(ctx, adm.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.BedID != dest || len(got.Transfers) != 1 {
			t.Errorf("admission after failed move: bed=%s transfers=%d, want bed=%s transfers=1",
				got.BedID, len(got.Transfers), dest)
		}
	})

	t.Run("discharge closes the stay", func(t *testing.T) {
		d, err := svc.Discharge(ctx, adm.ID, admission.DischargeRequest{
			Category: admission.DischargeRoutine,
		})
		if err != nil {
			t.Fatalf("Discharge: %v", err)
		}
		if d.AdmissionID != adm.ID {
			t.Errorf("discharge admission = %s, want %s", d.AdmissionID, adm.ID)
		}
		if b := getBed(t, ctx, dest); b.Status != ward.BedEmpty || b.AdmissionID != nil {
			t.Errorf("bed after discharge = %+v, want EMPTY", b)
		}

		got, err := svc.GetByID(ctx, adm.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status != admission.StatusDischarged || got.Discharge == nil {
			t.Errorf("admission = status %s discharge %v, want DISCHARGED with record", got.Status, got.Discharge)
		}

		if _, err := svc.Discharge(ctx, adm.ID, admission.DischargeRequest{
			Category: admission.DischargeRoutine,
		}); !errors.Is(err, admission.ErrAlreadyDischarged) {
			t.Errorf("second discharge err = %v, want ErrAlreadyDischarged", err)
		}
		if _, err := svc.Transfer(ctx, adm.ID, admission.TransferRequest{
			ToBedID: createTestBed(t, ctx, 4, ward.BedEmpty),
		}); !errors.Is(err, admission.ErrAlreadyDischarged) {
			t.Errorf("transfer after discharge err = %v, want ErrAlreadyDischarged", err)
		}
	})

	t.Run("patient can be admitted again", func(t *testing.T) {
		if _, err := svc.GetActiveByPatient(ctx, patient); !errors.Is(err, admission.ErrAdmissionNotFound) {
			t.Fatalf("active lookup err = %v, want ErrAdmissionNotFound", err)
		}
		again, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  patient,
			BedID:      bed,
			AdmittedAt: at(2030, 2, 1),
			Category:   admission.CategoryScheduled,
		})
		if err != nil {
			t.Fatalf("re-admit: %v", err)
		}
		if again.AdmissionNumber <= adm.AdmissionNumber {
			t.Errorf("re-admission number %s not after %s", again.AdmissionNumber, adm.AdmissionNumber)
		}
	})
}

func TestConcurrentAdmitsSamePatient(t *testing.T) {
	svc, _ := newLifecycle(t)
	ctx := actorCtx()
	patient := createTestPatient(t, ctx)

	const workers = 8
	beds := make([]uuid.UUID, workers)
	for i := range beds {
		beds[i] = createTestBed(t, ctx, 5, ward.BedEmpty)
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Admit(actorCtx(), admission.AdmitRequest{
				PatientID:  patient,
				BedID:      beds[i],
				AdmittedAt: at(2031, 6, 1),
				Category:   admission.CategoryEmergency,
			})
		}(i)
	}
	wg.Wait()

	var won int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, admission.ErrPatientAlreadyAdmitted):
		default:
			t.Errorf("worker %d unexpected error: %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d concurrent admits succeeded for one patient, want exactly 1", won)
	}

	// Exactly one bed ends up occupied.
	var occupied int
	for _, id := range beds {
		if getBed(t, context.Background(), id).Status == ward.BedOccupied {
			occupied++
		}
	}
	if occupied != 1 {
		t.Errorf("%d beds occupied, want exactly 1", occupied)
	}
}

func TestConcurrentAdmitsSameBed(t *testing.T) {
	svc, _ := newLifecycle(t)
	ctx := actorCtx()
	bed := createTestBed(t, ctx, 6, ward.BedEmpty)

	const workers = 8
	patients := make([]uuid.UUID, workers)
	for i := range patients {
		patients[i] = createTestPatient(t, ctx)
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Admit(actorCtx(), admission.AdmitRequest{
				PatientID:  patients[i],
				BedID:      bed,
				AdmittedAt: at(2032, 6, 1),
				Category:   admission.CategoryEmergency,
			})
		}(i)
	}
	wg.Wait()

	var won int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, admission.ErrBedNotAvailable):
		default:
			t.Errorf("worker %d unexpected error: %v", i, err)
		}
	}
	if won != 1 {
		t.Fatalf("%d concurrent admits claimed one bed, want exactly 1", won)
	}
}

func TestConcurrentTransferVsDischarge(t *testing.T) {
	svc, _ := newLifecycle(t)
	ctx := actorCtx()
	patient := createTestPatient(t, ctx)
	source := createTestBed(t, ctx, 7, ward.BedEmpty)
	dest := createTestBed(t, ctx, 7, ward.BedEmpty)

	// Several rounds to give the two mutators a chance to collide. The row
	// lock on the admission serializes them; whichever runs second must see
	// the other's outcome, never a stale ACTIVE read.
	for round := 0; round < 6; round++ {
		adm, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  patient,
			BedID:      source,
			AdmittedAt: at(2034, 6, 1),
			Category:   admission.CategoryEmergency,
		})
		if err != nil {
			t.Fatalf("round %d Admit: %v", round, err)
		}

		var wg sync.WaitGroup
		var trErr, dErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, trErr = svc.Transfer(actorCtx(), adm.ID, admission.TransferRequest{ToBedID: dest})
		}()
		go func() {
			defer wg.Done()
			_, dErr = svc.Discharge(actorCtx(), adm.ID, admission.DischargeRequest{
				Category: admission.DischargeRoutine,
			})
		}()
		wg.Wait()

		// The discharge always closes the stay; the transfer only lands if
		// it ran first.
		if dErr != nil {
			t.Fatalf("round %d Discharge: %v", round, dErr)
		}
		if trErr != nil &&
			!errors.Is(trErr, admission.ErrAlreadyDischarged) &&
			!errors.Is(trErr, admission.ErrAdmissionNotActive) {
			t.Fatalf("round %d Transfer: %v", round, trErr)
		}

		got, err := svc.GetByID(context.Background(), adm.ID)
		if err != nil {
			t.Fatalf("round %d GetByID: %v", round, err)
		}
		if got.Status != admission.StatusDischarged {
			t.Fatalf("round %d status = %s, want DISCHARGED", round, got.Status)
		}

		// A closed stay must not hold any bed.
		var held int
		err = globalDB.Pool.QueryRow(context.Background(),
			`SELECT COUNT(*) FROM bed WHERE admission_id = $1`, adm.ID).Scan(&held)
		if err != nil {
			t.Fatalf("round %d count held beds: %v", round, err)
		}
		if held != 0 {
			t.Fatalf("round %d: discharged admission still holds %d bed(s)", round, held)
		}
		for _, id := range []uuid.UUID{source, dest} {
			if b := getBed(t, context.Background(), id); b.Status != ward.BedEmpty {
				t.Fatalf("round %d bed %s = %s, want EMPTY", round, id, b.Status)
			}
		}
	}
}

func TestConcurrentTransfersSameAdmission(t *testing.T) {
	svc, _ := newLifecycle(t)
	ctx := actorCtx()
	source := createTestBed(t, ctx, 8, ward.BedEmpty)
	destA := createTestBed(t, ctx, 8, ward.BedEmpty)
	destB := createTestBed(t, ctx, 8, ward.BedEmpty)

	adm, err := svc.Admit(ctx, admission.AdmitRequest{
		PatientID:  createTestPatient(t, ctx),
		BedID:      source,
		AdmittedAt: at(2035, 6, 1),
		Category:   admission.CategoryScheduled,
	})
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, dest := range []uuid.UUID{destA, destB} {
		wg.Add(1)
		go func(i int, dest uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.Transfer(actorCtx(), adm.ID, admission.TransferRequest{ToBedID: dest})
		}(i, dest)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, admission.ErrBedNotAvailable) {
			t.Errorf("transfer %d unexpected error: %v", i, err)
		}
	}

	// However the two moves interleave, the stay ends up holding exactly
	// one bed, and it is the one the admission row points at.
	got, err := svc.GetByID(context.Background(), adm.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	var held int
	err = globalDB.Pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM bed WHERE admission_id = $1`, adm.ID).Scan(&held)
	if err != nil {
		t.Fatalf("count held beds: %v", err)
	}
	if held != 1 {
		t.Fatalf("admission holds %d beds, want exactly 1", held)
	}
	if b := getBed(t, context.Background(), got.BedID); b.Status != ward.BedOccupied ||
		b.AdmissionID == nil || *b.AdmissionID != adm.ID {
		t.Fatalf("bed %s = %+v, want OCCUPIED by the admission", got.BedID, b)
	}
}

func TestSequenceAllocatorConcurrency(t *testing.T) {
	alloc := sequence.NewAllocator(globalDB.Pool)
	ctx := context.Background()

	const workers = 16
	values := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := alloc.Next(ctx, "TEST:concurrency")
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			values[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, workers)
	var max int64
	for _, v := range values {
		if seen[v] {
			t.Errorf("value %d issued twice", v)
		}
		seen[v] = true
		if v > max {
			max = v
		}
	}
	if max != workers {
		t.Errorf("max issued value = %d, want %d", max, workers)
	}
}

func TestSearchOrderingAndFilters(t *testing.T) {
	svc, _ := newLifecycle(t)
	ctx := actorCtx()

	diag := "integration ordering probe"
	days := []int{10, 25, 17}
	ids := make([]uuid.UUID, len(days))
	for i, day := range days {
		adm, err := svc.Admit(ctx, admission.AdmitRequest{
			PatientID:  createTestPatient(t, ctx),
			BedID:      createTestBed(t, ctx, 7, ward.BedEmpty),
			AdmittedAt: at(2033, 3, day),
			Category:   admission.CategoryScheduled,
			Diagnosis:  &diag,
		})
		if err != nil {
			t.Fatalf("Admit #%d: %v", i, err)
		}
		ids[i] = adm.ID
	}

	list, total, err := svc.Search(ctx, admission.Filter{Query: diag}, 10, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != len(days) || len(list) != len(days) {
		t.Fatalf("search found %d/%d, want %d", len(list), total, len(days))
	}
	// Newest first: day 25, 17, 10.
	want := []uuid.UUID{ids[1], ids[2], ids[0]}
	for i, adm := range list {
		if adm.ID != want[i] {
			t.Errorf("result[%d] = %s admitted %s, out of order", i, adm.ID, adm.AdmittedAt)
		}
	}

	from := time.Date(2033, 3, 15, 0, 0, 0, 0, time.UTC)
	list, _, err = svc.Search(ctx, admission.Filter{Query: diag, From: &from}, 10, 0)
	if err != nil {
		t.Fatalf("Search with range: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("range filter found %d, want 2", len(list))
	}

	list, _, err = svc.Search(ctx, admission.Filter{Query: diag, Status: admission.StatusDischarged}, 10, 0)
	if err != nil {
		t.Fatalf("Search by status: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("status filter found %d discharged, want 0", len(list))
	}
}
