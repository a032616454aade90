package reconcile

import (
	"errors"

	"github.com/vitaliisemenov/zmc-reconciler/internal/storegw"
)

// validTransitions enumerates every edge the cycle phases are allowed to
// write. PENDING is deliberately absent: it is a read-only synonym for
// FIRING and nothing ever writes it.
var validTransitions = map[storegw.SyncState]map[storegw.SyncState]bool{
	storegw.SyncFiring:   {storegw.SyncResolved: true, storegw.SyncSilenced: true},
	storegw.SyncResolved: {storegw.SyncFiring: true},
	storegw.SyncSilenced: {storegw.SyncResolved: true},
}

// IsValidTransition reports whether moving a SyncRecord from "from" to "to"
// is one of the edges the cycle design allows. An insert (no prior state)
// is validated separately by the caller — this only covers updates to an
// existing record.
func IsValidTransition(from, to storegw.SyncState) bool {
	if from == to {
		return false
	}
	return validTransitions[from][to]
}

// ErrInvalidTransition is returned by checkTransition when a phase tries to
// move a SyncRecord between states validTransitions does not permit.
var ErrInvalidTransition = errors.New("invalid sync state transition")

// checkTransition guards a SyncRecord write against validTransitions
// before it reaches the gateway. A same-state write (heartbeat's refresh)
// is not a transition and always passes. InsertSync has no prior state
// and is not covered here — see IsValidTransition's doc comment.
func checkTransition(from, to storegw.SyncState) error {
	if from == to {
		return nil
	}
	if !IsValidTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
