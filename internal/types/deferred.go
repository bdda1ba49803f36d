package types

import "time"

// =============================================================================
// DEFERRED ACTION MODEL
// =============================================================================

// DeferredState is the lifecycle phase of the deferred-action machine.
// Transitions are compare-and-swap guarded; see the deferred package.
type DeferredState string

const (
	DeferredIdle      DeferredState = "idle"
	DeferredPreparing DeferredState = "preparing"
	DeferredWaiting   DeferredState = "waiting"
	DeferredExecuting DeferredState = "executing"
	DeferredFailed    DeferredState = "failed"
)

// Valid reports whether s is a known state.
func (s DeferredState) Valid() bool {
	switch s {
	case DeferredIdle, DeferredPreparing, DeferredWaiting, DeferredExecuting, DeferredFailed:
		return true
	}
	return false
}

// DeferredPending is the single armed action waiting for a user click.
// At most one exists at a time; arming a new one preempts the old.
type DeferredPending struct {
	// ID correlates the pending action across logs and the journal.
	ID string

	// Content is the generated payload to place at the click point.
	Content     string
	ContentType ContentType

	// Instruction is the original user phrasing, kept for re-prompts.
	Instruction string

	PreparedAt time.Time
	TimeoutAt  time.Time

	// SubscriptionToken identifies the click subscription so cancellation
	// releases exactly the hook this pending action owns.
	SubscriptionToken string
}

// Remaining returns the time left before the pending action expires.
func (p DeferredPending) Remaining(now time.Time) time.Duration {
	if p.TimeoutAt.IsZero() {
		return 0
	}
	return p.TimeoutAt.Sub(now)
}

// Expired reports whether the wait deadline has passed.
func (p DeferredPending) Expired(now time.Time) bool {
	return !p.TimeoutAt.IsZero() && now.After(p.TimeoutAt)
}
