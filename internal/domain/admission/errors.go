package admission

import "fmt"

type Kind string

const (
	KindNotFound Kind = "not_found"
	KindConflict Kind = "conflict"
	KindInvalid  Kind = "invalid"
)

// Error is the lifecycle engine's failure vocabulary. Code is stable across
// releases and safe to branch on; Message is for humans. Use errors.Is
// against the exported sentinels and wrap with %w to attach the offending
// IDs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches by Code so a wrapped sentinel still compares equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrPatientNotFound        = &Error{KindNotFound, "patient_not_found", "patient not found"}
	ErrAdmissionNotFound      = &Error{KindNotFound, "admission_not_found", "admission not found"}
	ErrBedNotFound            = &Error{KindNotFound, "bed_not_found", "bed not found"}
	ErrPatientAlreadyAdmitted = &Error{KindConflict, "patient_already_admitted", "patient already has an active admission"}
	ErrBedNotAvailable        = &Error{KindConflict, "bed_not_available", "bed is not available for admission"}
	ErrAdmissionNotActive     = &Error{KindConflict, "admission_not_active", "admission is not active"}
	ErrAlreadyDischarged      = &Error{KindConflict, "already_discharged", "admission is already discharged"}
	ErrInvalidRequest         = &Error{KindInvalid, "invalid_request", "invalid request"}
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
