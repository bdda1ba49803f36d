package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aura/internal/deferred"
	"aura/internal/desktop"
	"aura/internal/locking"
	"aura/internal/postprocess"
	"aura/internal/types"
)

type deferredFixture struct {
	handler *DeferredHandler
	machine *deferred.Machine
	mouse   *desktop.ManualMouseCapture
	auto    *fakeAuto
	lock    *locking.ExecutionLock
	clock   *stepClock
}

func newDeferredFixture(t *testing.T, reason *fakeReason) *deferredFixture {
	t.Helper()
	machine := deferred.NewMachine(zap.NewNop(), nil)
	mouse := desktop.NewManualMouseCapture()
	auto := &fakeAuto{}
	lock := locking.NewExecutionLock(zap.NewNop())
	clock := newStepClock()

	cfg := DeferredConfig{
		MinWait:          5 * time.Second, // past stepClock's instant-sleep cutoff
		DefaultWait:      5 * time.Minute,
		MaxWait:          15 * time.Minute,
		ReacquireTimeout: 50 * time.Millisecond,
		PasteThreshold:   200,
	}
	h := NewDeferredHandler(machine, reason, postprocess.New(zap.NewNop()), mouse, auto,
		lock, quietAudio(), clock, cfg, zap.NewNop(), nil)
	t.Cleanup(h.Close)
	return &deferredFixture{handler: h, machine: machine, mouse: mouse, auto: auto, lock: lock, clock: clock}
}

func deferredCommand(text string, params map[string]any) Command {
	return Command{
		Utterance: types.NewUtterance(text),
		Intent: types.Intent{
			Kind:       types.KindDeferredAction,
			Confidence: 0.9,
			Parameters: params,
		},
	}
}

const generatedCode = "def fib(n):\n    if n < 2:\n        return n\n    return fib(n - 1) + fib(n - 2)"

func TestDeferredArmReturnsWaiting(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: "```python\n" + generatedCode + "\n```"})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write a fibonacci function in python", map[string]any{"content_type": "code"}))

	require.True(t, res.Waiting(), "result: %+v", res)
	assert.Equal(t, types.MethodDeferred, res.Method)
	assert.Equal(t, types.DeferredWaiting, fx.machine.State())
	assert.True(t, fx.mouse.Armed(), "a click subscription must be live while waiting")

	pending, ok := fx.machine.Pending()
	require.True(t, ok)
	assert.Equal(t, types.ContentCode, pending.ContentType)
	assert.Equal(t, generatedCode+"\n", pending.Content, "fences stripped, newlines intact")
}

func TestDeferredClickPlacesContent(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: generatedCode})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write a fibonacci function", map[string]any{"content_type": "code"}))
	require.True(t, res.Waiting())

	require.True(t, fx.mouse.Trigger(types.Point{X: 300, Y: 400}))

	require.Eventually(t, func() bool {
		return fx.machine.State() == types.DeferredIdle
	}, 2*time.Second, 5*time.Millisecond, "placement should complete the cycle")

	clicks, typed, pasted, _ := fx.auto.snapshot()
	require.Len(t, clicks, 1, "placement begins with a focus click")
	assert.Equal(t, types.Point{X: 300, Y: 400}, clicks[0].P)
	assert.Empty(t, typed, "multiline content goes through the clipboard")
	require.Len(t, pasted, 1)
	assert.Equal(t, generatedCode+"\n", pasted[0])

	release, ok := fx.lock.TryAcquire("test")
	require.True(t, ok, "the execution lock must be free after placement")
	release()
}

func TestDeferredShortContentIsTyped(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: "hello world"})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write hello world", map[string]any{"content_type": "text"}))
	require.True(t, res.Waiting())

	fx.mouse.Trigger(types.Point{X: 10, Y: 20})

	require.Eventually(t, func() bool {
		return fx.machine.State() == types.DeferredIdle
	}, 2*time.Second, 5*time.Millisecond)

	_, typed, pasted, _ := fx.auto.snapshot()
	assert.Empty(t, pasted)
	require.Len(t, typed, 1)
	assert.Equal(t, "hello world", typed[0], "the trailing newline is never typed")
}

func TestDeferredTimeoutCancelsCleanly(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: generatedCode})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write code", map[string]any{"content_type": "code"}))
	require.True(t, res.Waiting())

	close(fx.clock.fire)

	require.Eventually(t, func() bool {
		return fx.machine.State() == types.DeferredIdle
	}, 2*time.Second, 5*time.Millisecond, "timeout should return the machine to idle")

	assert.False(t, fx.mouse.Armed(), "the click subscription must be torn down")
	_, typed, pasted, _ := fx.auto.snapshot()
	assert.Empty(t, typed)
	assert.Empty(t, pasted)
}

func TestDeferredNewRequestPreemptsWaiting(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: generatedCode})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write code", map[string]any{"content_type": "code"}))
	require.True(t, res.Waiting())
	first, ok := fx.machine.Pending()
	require.True(t, ok)

	res = fx.handler.Handle(context.Background(),
		deferredCommand("write different code", map[string]any{"content_type": "code"}))
	require.True(t, res.Waiting())

	second, ok := fx.machine.Pending()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID, "the new request replaces the old pending action")
	assert.Equal(t, types.DeferredWaiting, fx.machine.State())
	assert.True(t, fx.mouse.Armed())
}

func TestDeferredLockBusyAbortsPlacement(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: generatedCode})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write code", map[string]any{"content_type": "code"}))
	require.True(t, res.Waiting())

	release, ok := fx.lock.TryAcquire("other-command")
	require.True(t, ok)
	defer release()

	fx.mouse.Trigger(types.Point{X: 5, Y: 5})

	require.Eventually(t, func() bool {
		return fx.machine.State() == types.DeferredIdle
	}, 2*time.Second, 5*time.Millisecond, "a busy lock abandons placement, never queues it")

	clicks, typed, pasted, _ := fx.auto.snapshot()
	assert.Empty(t, clicks)
	assert.Empty(t, typed)
	assert.Empty(t, pasted)
}

func TestDeferredEmptyGenerationFails(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: "   "})

	res := fx.handler.Handle(context.Background(),
		deferredCommand("write code", map[string]any{"content_type": "code"}))

	require.False(t, res.OK())
	require.NotNil(t, res.Err)
	assert.Equal(t, types.ErrContentGenerationEmpty, res.Err.Kind)
	assert.Equal(t, types.DeferredIdle, fx.machine.State(), "failed preparation must unwind")
	assert.False(t, fx.mouse.Armed())
}

func TestDeferredTimeoutParameterClamped(t *testing.T) {
	fx := newDeferredFixture(t, &fakeReason{reply: generatedCode})

	assert.Equal(t, 5*time.Second, fx.handler.waitDuration(types.Intent{
		Parameters: map[string]any{"timeout_seconds": float64(1)},
	}), "below the floor clamps up")
	assert.Equal(t, 15*time.Minute, fx.handler.waitDuration(types.Intent{
		Parameters: map[string]any{"timeout_seconds": float64(86400)},
	}), "above the ceiling clamps down")
	assert.Equal(t, 2*time.Minute, fx.handler.waitDuration(types.Intent{
		Parameters: map[string]any{"timeout_seconds": float64(120)},
	}))
	assert.Equal(t, 5*time.Minute, fx.handler.waitDuration(types.Intent{}),
		"no parameter uses the default")
}
