package admission

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSearchWhere(t *testing.T) {
	t.Run("empty filter", func(t *testing.T) {
		where, args := searchWhere(Filter{})
		if where != "" || len(args) != 0 {
			t.Errorf("empty filter rendered %q with %d args", where, len(args))
		}
	})

	t.Run("placeholders are sequential", func(t *testing.T) {
		patient := uuid.New()
		from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		where, args := searchWhere(Filter{
			PatientID: &patient,
			Status:    StatusActive,
			From:      &from,
			Query:     "pneumonia",
		})

		if len(args) != 4 {
			t.Fatalf("args = %d, want 4", len(args))
		}
		for i := 1; i <= 4; i++ {
			if !strings.Contains(where, fmt.Sprintf("$%d", i)) {
				t.Errorf("where clause missing $%d: %s", i, where)
			}
		}
		if strings.Contains(where, "$5") {
			t.Errorf("where clause has stray placeholder: %s", where)
		}
		if !strings.HasPrefix(where, " WHERE ") {
			t.Errorf("where clause = %q, want leading WHERE", where)
		}
	})

	t.Run("free text hits three columns with one arg", func(t *testing.T) {
		where, args := searchWhere(Filter{Query: "chest pain"})
		if len(args) != 1 {
			t.Fatalf("args = %d, want 1", len(args))
		}
		if args[0] != "%chest pain%" {
			t.Errorf("arg = %v, want wrapped pattern", args[0])
		}
		for _, col := range []string{"admission_number", "diagnosis", "chief_complaint"} {
			if !strings.Contains(where, col+" ILIKE $1") {
				t.Errorf("free text clause missing %s: %s", col, where)
			}
		}
	})
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("%w: patient %s", ErrPatientAlreadyAdmitted, uuid.New())
	if !errors.Is(wrapped, ErrPatientAlreadyAdmitted) {
		t.Error("wrapped sentinel no longer matches errors.Is")
	}
	if errors.Is(wrapped, ErrBedNotAvailable) {
		t.Error("distinct codes compare equal")
	}

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatal("errors.As failed to extract *Error")
	}
	if e.Kind != KindConflict || e.Code != "patient_already_admitted" {
		t.Errorf("extracted = %+v, want conflict/patient_already_admitted", e)
	}
}
