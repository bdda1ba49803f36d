// Package deferred owns the state machine behind click-to-place actions.
// A deferred action straddles two user turns: turn one generates content
// and arms the machine, then a global mouse click (or a timeout, or a
// preempting command) consumes it. Exactly one pending action exists at a
// time and every consumer races through compare-and-swap transitions, so
// duplicate clicks and click-versus-timeout races resolve to exactly one
// winner.
package deferred

import (
	"sync"

	"go.uber.org/zap"

	"aura/internal/metrics"
	"aura/internal/types"
)

// Machine is the deferred-action state machine. All transitions are
// mutex-guarded CAS operations keyed by the pending action's id; a
// transition whose precondition no longer holds returns false and has no
// effect.
type Machine struct {
	logger  *zap.Logger
	metrics *metrics.Recorder

	mu      sync.Mutex
	state   types.DeferredState
	pending *types.DeferredPending
}

// NewMachine creates an idle machine.
func NewMachine(logger *zap.Logger, rec *metrics.Recorder) *Machine {
	return &Machine{
		logger:  logger,
		metrics: rec,
		state:   types.DeferredIdle,
	}
}

// State returns the current lifecycle phase.
func (m *Machine) State() types.DeferredState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns a copy of the armed action, if any.
func (m *Machine) Pending() (types.DeferredPending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return types.DeferredPending{}, false
	}
	return *m.pending, true
}

// transition records a state edge. Caller holds m.mu.
func (m *Machine) transition(to types.DeferredState, id string) {
	from := m.state
	m.state = to
	m.metrics.RecordDeferredTransition(string(from), string(to))
	m.logger.Info("deferred state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("pending_id", id))
}

// BeginPrepare moves IDLE to PREPARING. It fails when another preparation
// is already underway or an action is executing; callers preempt a WAITING
// machine explicitly via Preempt before preparing.
func (m *Machine) BeginPrepare() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredIdle {
		return false
	}
	m.transition(types.DeferredPreparing, "")
	return true
}

// AbortPrepare returns a PREPARING machine to IDLE after a failed
// generation. No-op in any other state.
func (m *Machine) AbortPrepare() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredPreparing {
		return
	}
	m.transition(types.DeferredIdle, "")
}

// Arm publishes the pending action and moves PREPARING to WAITING. The
// pending slot is set atomically with the transition: a WAITING machine
// always has a pending action.
func (m *Machine) Arm(p types.DeferredPending) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredPreparing {
		return false
	}
	m.pending = &p
	m.transition(types.DeferredWaiting, p.ID)
	return true
}

// ClaimExecution is the CAS guarding placement: WAITING with a matching
// pending id moves to EXECUTING. The click callback and any duplicate or
// stale click race through here; exactly one wins.
func (m *Machine) ClaimExecution(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredWaiting || m.pending == nil || m.pending.ID != id {
		return false
	}
	m.transition(types.DeferredExecuting, id)
	return true
}

// ClaimTimeout is the timeout monitor's CAS: WAITING with a matching id
// moves to FAILED. Loses cleanly to a click that claimed execution first.
func (m *Machine) ClaimTimeout(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredWaiting || m.pending == nil || m.pending.ID != id {
		return false
	}
	m.transition(types.DeferredFailed, id)
	return true
}

// Preempt cancels a WAITING action on behalf of a newer deferred request.
// It returns the canceled pending so the caller can tear down its
// subscription and speak the cancellation.
func (m *Machine) Preempt() (types.DeferredPending, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.DeferredWaiting || m.pending == nil {
		return types.DeferredPending{}, false
	}
	prev := *m.pending
	m.pending = nil
	m.transition(types.DeferredIdle, prev.ID)
	return prev, true
}

// Finish completes the cycle from EXECUTING or FAILED back to IDLE and
// clears the pending slot. Calling it on an IDLE machine is a no-op, which
// makes cleanup paths safe to run unconditionally.
func (m *Machine) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case types.DeferredIdle:
		return
	case types.DeferredExecuting, types.DeferredFailed, types.DeferredPreparing:
		id := ""
		if m.pending != nil {
			id = m.pending.ID
		}
		m.pending = nil
		m.transition(types.DeferredIdle, id)
	case types.DeferredWaiting:
		// A WAITING machine is owned by its monitor; Finish here would
		// orphan the subscription. Callers preempt or claim first.
		m.logger.Warn("Finish called while waiting, ignoring")
	}
}
