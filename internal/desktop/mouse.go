package desktop

import (
	"sync"

	"aura/internal/types"
)

// ManualMouseCapture is a MouseCapture with an in-process trigger. Hosts
// that cannot hook global clicks (terminal REPLs, tests) call Trigger with
// the pointer position when the user signals placement. At most one
// subscription is active; arming a second one replaces the first.
type ManualMouseCapture struct {
	mu    sync.Mutex
	token string
	ch    chan types.Point
}

// NewManualMouseCapture creates an empty capture slot.
func NewManualMouseCapture() *ManualMouseCapture {
	return &ManualMouseCapture{}
}

// SubscribeSingleClick arms the slot for one click.
func (m *ManualMouseCapture) SubscribeSingleClick(token string) (<-chan types.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch != nil {
		close(m.ch)
	}
	m.token = token
	m.ch = make(chan types.Point, 1)
	return m.ch, nil
}

// Cancel releases the subscription identified by token. Stale tokens are
// ignored so a late cancel cannot tear down a newer subscription.
func (m *ManualMouseCapture) Cancel(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != token || m.ch == nil {
		return
	}
	close(m.ch)
	m.ch = nil
	m.token = ""
}

// Trigger delivers a click to the active subscriber, if any. The second
// and later triggers for one subscription are dropped here; the state
// machine guards against duplicates that race past this point.
func (m *ManualMouseCapture) Trigger(p types.Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ch == nil {
		return false
	}
	m.ch <- p
	close(m.ch)
	m.ch = nil
	m.token = ""
	return true
}

// Armed reports whether a subscriber is waiting for a click.
func (m *ManualMouseCapture) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch != nil
}
