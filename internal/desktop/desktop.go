// Package desktop defines the capability interfaces the orchestrator core
// uses to touch the host: accessibility queries, input automation, mouse
// capture, text extraction, and the clock. Implementations are injected;
// the core never reaches for a platform API directly.
package desktop

import (
	"context"
	"errors"
	"time"

	"aura/internal/types"
)

// ErrTransient marks collaborator failures that are worth retrying:
// momentary tree-traversal races, dropped connections, busy peers.
// Implementations wrap it so callers can errors.Is their way to a retry
// decision.
var ErrTransient = errors.New("transient desktop failure")

// MouseButton selects which button an automation click presses.
type MouseButton string

const (
	ButtonLeft  MouseButton = "left"
	ButtonRight MouseButton = "right"
)

// Modifier is a held key in a key chord.
type Modifier string

const (
	ModCmd   Modifier = "cmd"
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
)

// Accessibility exposes the host accessibility tree.
type Accessibility interface {
	// DetectActiveApp identifies the frontmost application.
	DetectActiveApp(ctx context.Context) (types.ApplicationInfo, error)

	// FindElements returns elements whose labels may match. role narrows
	// the search when non-empty; matching itself happens in the caller.
	FindElements(ctx context.Context, role, label string, app types.ApplicationInfo) ([]types.Element, error)

	// FindScrollableRegions returns candidate scroll containers.
	FindScrollableRegions(ctx context.Context, app types.ApplicationInfo) ([]types.Element, error)
}

// Automation drives synthetic input. Type and Paste carry no internal
// timeout; cancellation policy belongs to the caller, and placement of
// generated content deliberately runs without one.
type Automation interface {
	Click(ctx context.Context, p types.Point, button MouseButton, count int) error
	Type(ctx context.Context, text string) error
	Paste(ctx context.Context, text string) error
	Scroll(ctx context.Context, p types.Point, dx, dy int) error
	Key(ctx context.Context, mods []Modifier, key string) error
}

// MouseCapture delivers a single global click to at most one subscriber.
type MouseCapture interface {
	// SubscribeSingleClick registers interest in the next click anywhere
	// on screen. The channel receives exactly one point, then closes.
	SubscribeSingleClick(token string) (<-chan types.Point, error)

	// Cancel releases the subscription identified by token.
	Cancel(token string)
}

// ScreenCapturer grabs the current screen as an encoded image for the
// vision slow path.
type ScreenCapturer interface {
	CaptureScreen(ctx context.Context) ([]byte, error)
}

// TextExtractor pulls readable text out of the active application.
// Browser and PDF extraction share this shape.
type TextExtractor interface {
	ExtractText(ctx context.Context, app types.ApplicationInfo) (string, error)
}

// Clock abstracts time so deferred timeouts and backoff are testable.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
