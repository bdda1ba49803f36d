package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aura/internal/desktop"
	"aura/internal/types"
	"aura/internal/vision"
)

func newGUIUnderTest(access *fakeAccess, auto *fakeAuto, vis *fakeVision) *GUIHandler {
	cfg := DefaultGUIConfig()
	cfg.ScreenBounds = types.Rect{W: 2560, H: 1440}
	var v vision.Client
	if vis != nil {
		v = vis
	}
	return NewGUIHandler(access, auto, v, quietAudio(), newStepClock(), cfg, zap.NewNop(), nil)
}

func guiCommand(params map[string]any) Command {
	return Command{
		Utterance: types.NewUtterance("click sign in"),
		Intent: types.Intent{
			Kind:       types.KindGUIInteraction,
			Confidence: 0.95,
			Parameters: params,
		},
	}
}

func TestGUIFastPathClicksBestMatch(t *testing.T) {
	access := &fakeAccess{
		app: types.ApplicationInfo{Name: "Google Chrome", Kind: types.AppBrowser},
		elements: []types.Element{
			{Role: "AXStaticText", Title: "Sign in", Bounds: types.Rect{X: 100, Y: 100, W: 50, H: 20}, Enabled: true},
			{Role: "AXLink", Title: "Sign in", Bounds: types.Rect{X: 1407, Y: 931, W: 100, H: 20}, Enabled: true},
			{Role: "AXLink", Title: "Sign in to continue", Bounds: types.Rect{X: 10, Y: 10, W: 300, H: 40}, Enabled: true},
		},
	}
	auto := &fakeAuto{}
	vis := &fakeVision{}
	h := newGUIUnderTest(access, auto, vis)

	res := h.Handle(context.Background(), guiCommand(map[string]any{"action": "click", "target": "sign in"}))

	require.True(t, res.OK(), "result: %+v", res)
	assert.Equal(t, types.MethodFastPath, res.Method)
	assert.Equal(t, 0, vis.callCount(), "fast path success must not consult vision")

	clicks, _, _, _ := auto.snapshot()
	require.Len(t, clicks, 1)
	want := clickCall{P: types.Point{X: 1457, Y: 941}, Button: "left", Count: 1}
	if diff := cmp.Diff(want, clicks[0]); diff != "" {
		t.Fatalf("click mismatch (-want +got):\n%s", diff)
	}
}

func TestGUIVisionFallbackWhenElementMissing(t *testing.T) {
	access := &fakeAccess{
		app: types.ApplicationInfo{Name: "Settings", Kind: types.AppOther},
	}
	auto := &fakeAuto{}
	vis := &fakeVision{
		analysis: vision.Analysis{
			Description: "clicking the gear icon",
			Plan:        []vision.Step{{Action: "click", X: 820, Y: 64}},
		},
	}
	h := newGUIUnderTest(access, auto, vis)

	res := h.Handle(context.Background(), guiCommand(map[string]any{"action": "click", "target": "gear icon"}))

	require.True(t, res.OK(), "result: %+v", res)
	assert.Equal(t, types.MethodSlowPath, res.Method)
	assert.Equal(t, 1, vis.callCount())

	clicks, _, _, _ := auto.snapshot()
	require.Len(t, clicks, 1)
	assert.Equal(t, types.Point{X: 820, Y: 64}, clicks[0].P)
}

func TestGUIPermissionDeniedIsTerminal(t *testing.T) {
	access := &fakeAccess{
		app:     types.ApplicationInfo{Name: "Finder"},
		findErr: types.NewError(types.ErrPermissionDenied, "accessibility consent missing"),
	}
	auto := &fakeAuto{}
	vis := &fakeVision{
		analysis: vision.Analysis{Plan: []vision.Step{{Action: "click", X: 1, Y: 1}}},
	}
	h := newGUIUnderTest(access, auto, vis)

	res := h.Handle(context.Background(), guiCommand(map[string]any{"target": "trash"}))

	require.False(t, res.OK())
	require.NotNil(t, res.Err)
	assert.Equal(t, types.ErrPermissionDenied, res.Err.Kind)
	assert.Equal(t, types.MethodFastPath, res.Method)
	assert.False(t, res.Err.Recoverable)
	assert.Equal(t, 0, vis.callCount(), "permission failures must never fall back to vision")
}

func TestGUIRetriesTransientFailureOnce(t *testing.T) {
	access := &fakeAccess{
		app: types.ApplicationInfo{Name: "Mail"},
		findErrOnce: fmt.Errorf("tree traversal raced a redraw: %w",
			desktop.ErrTransient),
		elements: []types.Element{
			{Role: "AXButton", Title: "Send", Bounds: types.Rect{X: 40, Y: 40, W: 60, H: 24}, Enabled: true},
		},
	}
	auto := &fakeAuto{}
	h := newGUIUnderTest(access, auto, &fakeVision{})

	res := h.Handle(context.Background(), guiCommand(map[string]any{"target": "send"}))

	require.True(t, res.OK(), "result: %+v", res)
	assert.Equal(t, 2, access.findCalls, "transient failure should be retried")
}

func TestGUIElementNotFoundDoesNotRetry(t *testing.T) {
	access := &fakeAccess{
		app: types.ApplicationInfo{Name: "Mail"},
	}
	auto := &fakeAuto{}
	vis := &fakeVision{err: types.NewError(types.ErrModuleUnavailable, "no vision")}
	h := newGUIUnderTest(access, auto, vis)

	res := h.Handle(context.Background(), guiCommand(map[string]any{"target": "archive"}))

	require.False(t, res.OK())
	assert.Equal(t, 1, access.findCalls, "element_not_found is not transient")
}

func TestGUIScrollFocusesLargestRegion(t *testing.T) {
	access := &fakeAccess{
		app: types.ApplicationInfo{Name: "Safari", Kind: types.AppBrowser},
		scrollables: []types.Element{
			{Role: "AXScrollArea", Bounds: types.Rect{X: 0, Y: 0, W: 200, H: 100}},
			{Role: "AXScrollArea", Bounds: types.Rect{X: 0, Y: 120, W: 1200, H: 800}},
		},
	}
	auto := &fakeAuto{}
	h := newGUIUnderTest(access, auto, &fakeVision{})

	res := h.Handle(context.Background(), guiCommand(map[string]any{
		"action": "scroll", "target": "page", "direction": "up", "amount": float64(5),
	}))

	require.True(t, res.OK(), "result: %+v", res)

	clicks, _, _, scrolls := auto.snapshot()
	require.Len(t, clicks, 1, "scroll should focus the region first")
	assert.Equal(t, types.Point{X: 600, Y: 520}, clicks[0].P)
	require.Len(t, scrolls, 1)
	assert.Equal(t, scrollCall{P: types.Point{X: 600, Y: 520}, Dx: 0, Dy: -5}, scrolls[0])
}

func TestGUIVisionCoordinatesValidated(t *testing.T) {
	access := &fakeAccess{app: types.ApplicationInfo{Name: "Photos"}}
	auto := &fakeAuto{}
	vis := &fakeVision{
		analysis: vision.Analysis{
			Description: "clicking outside the screen",
			Plan:        []vision.Step{{Action: "click", X: 99999, Y: 50}},
		},
	}
	h := newGUIUnderTest(access, auto, vis)

	res := h.Handle(context.Background(), guiCommand(map[string]any{"target": "share"}))

	require.False(t, res.OK())
	require.NotNil(t, res.Err)
	assert.Equal(t, types.ErrInvalidCoordinates, res.Err.Kind)
	clicks, _, _, _ := auto.snapshot()
	assert.Empty(t, clicks, "invalid coordinates must never be clicked")
}

func TestMapRole(t *testing.T) {
	cases := map[string]string{
		"button":     "AXButton",
		"link":       "AXLink",
		"menu_item":  "AXMenuItem",
		"AXWebArea":  "AXWebArea",
		"mystery":    "",
		"":           "",
		"  checkbox": "AXCheckBox",
	}
	for in, want := range cases {
		assert.Equal(t, want, mapRole(in), "mapRole(%q)", in)
	}
}

func TestPickBestTieBreaks(t *testing.T) {
	exact := types.Element{Role: "AXButton", Title: "Save", Bounds: types.Rect{W: 10, H: 10}, Enabled: false}
	fuzzy := types.Element{Role: "AXButton", Title: "Save All", Bounds: types.Rect{W: 500, H: 500}, Enabled: true}
	got, ok := pickBest(matchElements([]types.Element{fuzzy, exact}, "", "save", nil, 85))
	require.True(t, ok)
	assert.Equal(t, "Save", got.Title, "exact title beats enabled and area")

	disabled := types.Element{Role: "AXButton", Title: "Run", Bounds: types.Rect{W: 900, H: 900}, Enabled: false}
	enabled := types.Element{Role: "AXButton", Title: "Run", Bounds: types.Rect{W: 5, H: 5}, Enabled: true}
	got, ok = pickBest(matchElements([]types.Element{disabled, enabled}, "", "run", nil, 85))
	require.True(t, ok)
	assert.True(t, got.Enabled, "enabled beats area when both are exact")
}

func TestSimilarityThreshold(t *testing.T) {
	assert.Equal(t, 100, similarity("submit", "submit"))
	assert.GreaterOrEqual(t, similarity("submit", "submi"), 85, "near-identical labels pass the gate")
	assert.Less(t, similarity("submit", "cancel"), 85)
}
