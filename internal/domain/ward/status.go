package ward

import "fmt"

// allowedTransitions is the complete bed status machine, kept as data so it
// can be verified against the full 4x4 state space. Self-transitions are
// not listed and therefore illegal.
var allowedTransitions = map[BedStatus][]BedStatus{
	BedEmpty:       {BedOccupied, BedReserved, BedMaintenance},
	BedOccupied:    {BedEmpty},
	BedReserved:    {BedOccupied, BedEmpty, BedMaintenance},
	BedMaintenance: {BedEmpty},
}

// CanTransition reports whether a bed may move from current to requested.
func CanTransition(current, requested BedStatus) bool {
	for _, next := range allowedTransitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an illegal bed status change. It signals a
// logic error or a stale read of bed state, never a transient condition, so
// callers must not retry it.
type InvalidTransitionError struct {
	From BedStatus
	To   BedStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid bed status transition %s -> %s", e.From, e.To)
}

// ValidateTransition returns an *InvalidTransitionError when the requested
// change is not in the transition table.
func ValidateTransition(current, requested BedStatus) error {
	if !CanTransition(current, requested) {
		return &InvalidTransitionError{From: current, To: requested}
	}
	return nil
}
