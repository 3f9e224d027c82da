// Package events carries admission lifecycle notifications to realtime
// consumers (ward dashboards, audit feeds). Delivery is fire-and-forget:
// publishing happens after the owning transaction commits and a failed or
// absent consumer never affects the committed state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the admission lifecycle service.
const (
	TypeAdmitted    = "admission.admitted"
	TypeTransferred = "admission.transferred"
	TypeDischarged  = "admission.discharged"
)

// Event describes one committed change to admission/bed state.
type Event struct {
	Type            string     `json:"type"`
	AdmissionID     uuid.UUID  `json:"admission_id"`
	AdmissionNumber string     `json:"admission_number,omitempty"`
	PatientID       uuid.UUID  `json:"patient_id"`
	BedID           uuid.UUID  `json:"bed_id"`
	FromBedID       *uuid.UUID `json:"from_bed_id,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Topics returns the subscription topics this event is delivered to.
func (e Event) Topics() []string {
	return []string{
		"admissions",
		"patient:" + e.PatientID.String(),
		"bed:" + e.BedID.String(),
	}
}

// Publisher delivers events to interested consumers. Implementations must
// not block and must not return delivery failures as errors the caller is
// expected to act on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards all events. Used where no realtime consumer is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
