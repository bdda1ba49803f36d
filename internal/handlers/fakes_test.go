package handlers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/desktop"
	"aura/internal/types"
	"aura/internal/vision"
)

// quietAudio returns a disabled façade so tests never spawn a worker.
func quietAudio() *audio.Feedback {
	return audio.NewFeedback(nil, audio.Config{Enabled: false}, zap.NewNop(), nil)
}

// fakeReason is a scripted reasoning client.
type fakeReason struct {
	mu        sync.Mutex
	reply     string
	err       error
	delay     time.Duration
	gotSystem string
	gotUser   string
	calls     int
}

func (f *fakeReason) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeReason) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	reply, err, delay := f.reply, f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

// fakeAccess is a scripted accessibility tree.
type fakeAccess struct {
	mu          sync.Mutex
	app         types.ApplicationInfo
	appErr      error
	elements    []types.Element
	findErrOnce error // consumed by the first FindElements call
	findErr     error
	scrollables []types.Element
	scrollErr   error
	findCalls   int
}

func (f *fakeAccess) DetectActiveApp(ctx context.Context) (types.ApplicationInfo, error) {
	return f.app, f.appErr
}

func (f *fakeAccess) FindElements(ctx context.Context, role, label string, app types.ApplicationInfo) ([]types.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	if f.findErrOnce != nil {
		err := f.findErrOnce
		f.findErrOnce = nil
		return nil, err
	}
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.elements, nil
}

func (f *fakeAccess) FindScrollableRegions(ctx context.Context, app types.ApplicationInfo) ([]types.Element, error) {
	return f.scrollables, f.scrollErr
}

// clickCall is one recorded click.
type clickCall struct {
	P      types.Point
	Button string
	Count  int
}

// scrollCall is one recorded scroll.
type scrollCall struct {
	P      types.Point
	Dx, Dy int
}

// fakeAuto records synthetic input instead of performing it.
type fakeAuto struct {
	mu      sync.Mutex
	clicks  []clickCall
	typed   []string
	pasted  []string
	scrolls []scrollCall
	keys    []string

	clickErr  error
	typeErr   error
	pasteErr  error
	scrollErr error
}

func (f *fakeAuto) Click(ctx context.Context, p types.Point, button desktop.MouseButton, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, clickCall{P: p, Button: string(button), Count: count})
	return f.clickErr
}

func (f *fakeAuto) Type(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, text)
	return f.typeErr
}

func (f *fakeAuto) Paste(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pasted = append(f.pasted, text)
	return f.pasteErr
}

func (f *fakeAuto) Scroll(ctx context.Context, p types.Point, dx, dy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, scrollCall{P: p, Dx: dx, Dy: dy})
	return f.scrollErr
}

func (f *fakeAuto) Key(ctx context.Context, mods []desktop.Modifier, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeAuto) snapshot() ([]clickCall, []string, []string, []scrollCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]clickCall(nil), f.clicks...),
		append([]string(nil), f.typed...),
		append([]string(nil), f.pasted...),
		append([]scrollCall(nil), f.scrolls...)
}

// fakeVision answers with a canned analysis.
type fakeVision struct {
	mu       sync.Mutex
	analysis vision.Analysis
	err      error
	calls    int
}

func (f *fakeVision) AnalyzeScreen(ctx context.Context, prompt string) (vision.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.analysis, f.err
}

func (f *fakeVision) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeExtractor returns canned text, optionally after a ctx-aware delay.
type fakeExtractor struct {
	text  string
	err   error
	delay time.Duration
}

func (f *fakeExtractor) ExtractText(ctx context.Context, app types.ApplicationInfo) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

// stepClock passes short settle sleeps through instantly and blocks long
// waits on fire, so tests control deferred deadlines deterministically.
type stepClock struct {
	fire chan struct{}
}

func newStepClock() *stepClock {
	return &stepClock{fire: make(chan struct{})}
}

func (c *stepClock) Now() time.Time { return time.Now() }

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= time.Second {
		return nil
	}
	select {
	case <-c.fire:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
