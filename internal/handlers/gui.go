package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/desktop"
	"aura/internal/metrics"
	"aura/internal/types"
	"aura/internal/vision"
)

// GUIConfig holds GUI handler tunables.
type GUIConfig struct {
	// MaxRetries bounds fast-path retries for transient failures.
	MaxRetries int

	// RetryBaseDelay is the first backoff step; each retry doubles it.
	RetryBaseDelay time.Duration

	// FuzzyMatchThreshold (0-100) gates fuzzy label matches; 0 disables.
	FuzzyMatchThreshold int

	// ExtraClickableRoles extends the built-in clickable role set.
	ExtraClickableRoles []string

	// ScreenBounds validates vision-supplied coordinates. A zero rect
	// accepts any non-negative point.
	ScreenBounds types.Rect
}

// DefaultGUIConfig returns the GUI handler defaults.
func DefaultGUIConfig() GUIConfig {
	return GUIConfig{
		MaxRetries:          2,
		RetryBaseDelay:      50 * time.Millisecond,
		FuzzyMatchThreshold: 85,
	}
}

// GUIHandler executes screen commands in two phases: a fast path over the
// accessibility tree, then a vision fallback when the tree cannot serve.
type GUIHandler struct {
	access  desktop.Accessibility
	auto    desktop.Automation
	vision  vision.Client
	audio   *audio.Feedback
	clock   desktop.Clock
	cfg     GUIConfig
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// NewGUIHandler creates the handler. vision may be nil; the slow path then
// reports module_unavailable.
func NewGUIHandler(access desktop.Accessibility, auto desktop.Automation, vis vision.Client,
	fb *audio.Feedback, clock desktop.Clock, cfg GUIConfig, logger *zap.Logger, rec *metrics.Recorder) *GUIHandler {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultGUIConfig().RetryBaseDelay
	}
	if clock == nil {
		clock = desktop.SystemClock{}
	}
	return &GUIHandler{
		access:  access,
		auto:    auto,
		vision:  vis,
		audio:   fb,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
	}
}

// Supports reports whether kind routes here.
func (h *GUIHandler) Supports(kind types.IntentKind) bool {
	return kind == types.KindGUIInteraction
}

// Handle runs the two-phase strategy.
func (h *GUIHandler) Handle(ctx context.Context, cmd Command) types.HandlerResult {
	start := time.Now()

	action := cmd.Intent.Param("action")
	if action == "" {
		action = "click"
	}
	label := cmd.Intent.Param("label")
	if label == "" {
		label = cmd.Intent.Param("target")
	}
	role := mapRole(cmd.Intent.Param("role"))

	// Phase 1: fast path. A missing label means there is nothing to look
	// up in the tree; vision has to interpret the raw command.
	fallbackCat := "element_detection"
	if label != "" && h.access != nil {
		err := h.fastPathWithRetry(ctx, cmd, action, role, label)
		if err == nil {
			h.audio.Success("")
			h.metrics.RecordStage("fast_path", time.Since(start))
			res := types.Success(types.MethodFastPath, fmt.Sprintf("Done: %s %s", action, label))
			res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
			return finish(res, cmd)
		}

		// Permission problems are terminal: retrying or switching to
		// vision cannot fix missing OS-level consent.
		if types.KindOf(err) == types.ErrPermissionDenied {
			te := types.AsError(err)
			h.audio.EnhancedError("I don't have permission to control the screen.", te.Hint)
			return finish(types.Failure(types.MethodFastPath, te), cmd)
		}

		fallbackCat = fallbackCategory(err)
		h.metrics.RecordFallback("gui_" + fallbackCat)
		h.logger.Info("fast path failed, falling back to vision",
			zap.String("utterance", cmd.Utterance.ID),
			zap.String("category", fallbackCat),
			zap.Error(err))
	}

	// Phase 2: slow path.
	res := h.slowPath(ctx, cmd, fallbackCat)
	res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
	h.metrics.RecordStage("slow_path", time.Since(start))
	return finish(res, cmd)
}

// fastPathWithRetry retries transient failures with exponential backoff.
func (h *GUIHandler) fastPathWithRetry(ctx context.Context, cmd Command, action, role, label string) error {
	delay := h.cfg.RetryBaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = h.fastAttempt(ctx, cmd, action, role, label)
		if err == nil {
			return nil
		}
		if attempt >= h.cfg.MaxRetries || !retryable(err) {
			return err
		}
		h.logger.Debug("retrying fast path",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if serr := h.clock.Sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
}

// fastAttempt performs one accessibility-tree lookup and dispatch.
func (h *GUIHandler) fastAttempt(ctx context.Context, cmd Command, action, role, label string) error {
	app, err := h.access.DetectActiveApp(ctx)
	if err != nil {
		return err
	}

	if action == "scroll" {
		return h.scrollWithFocus(ctx, cmd, app)
	}

	elems, err := h.access.FindElements(ctx, role, label, app)
	if err != nil {
		return err
	}

	matches := matchElements(elems, role, label, h.cfg.ExtraClickableRoles, h.cfg.FuzzyMatchThreshold)
	el, ok := pickBest(matches)
	if !ok {
		return types.NewError(types.ErrElementNotFound,
			"no element matching %q in %s (%d candidates)", label, app.Name, len(elems))
	}

	point := el.Center()
	if err := h.validatePoint(point); err != nil {
		return err
	}

	h.logger.Debug("fast path target resolved",
		zap.String("utterance", cmd.Utterance.ID),
		zap.String("role", el.Role),
		zap.String("title", el.Title),
		zap.Int("x", point.X),
		zap.Int("y", point.Y),
		zap.String("app", app.Name),
		zap.Float64("detection_confidence", app.Confidence))

	return h.dispatch(ctx, cmd, action, point)
}

// dispatch routes the action verb to the automation collaborator.
func (h *GUIHandler) dispatch(ctx context.Context, cmd Command, action string, p types.Point) error {
	switch action {
	case "click":
		return h.auto.Click(ctx, p, desktop.ButtonLeft, 1)
	case "double_click":
		return h.auto.Click(ctx, p, desktop.ButtonLeft, 2)
	case "right_click":
		return h.auto.Click(ctx, p, desktop.ButtonRight, 1)
	case "type":
		if err := h.auto.Click(ctx, p, desktop.ButtonLeft, 1); err != nil {
			return err
		}
		return h.auto.Type(ctx, cmd.Intent.Param("text"))
	case "key":
		return h.auto.Key(ctx, nil, cmd.Intent.Param("text"))
	default:
		return types.NewError(types.ErrInternal, "unknown GUI action %q", action)
	}
}

// scrollWithFocus establishes focus inside the best scrollable region
// before scrolling, then walks a magnitude/axis retry ladder when the
// scroll is rejected.
func (h *GUIHandler) scrollWithFocus(ctx context.Context, cmd Command, app types.ApplicationInfo) error {
	target := h.cfg.ScreenBounds.Center()
	focus := h.cfg.ScreenBounds.Area() > 0
	if regions, err := h.access.FindScrollableRegions(ctx, app); err == nil {
		if best, ok := pickLargest(regions); ok {
			target = best.Center()
			focus = true
		}
	} else {
		h.logger.Debug("no scrollable regions, scrolling at screen center", zap.Error(err))
	}

	if focus {
		if err := h.auto.Click(ctx, target, desktop.ButtonLeft, 1); err != nil {
			return err
		}
		// Let focus settle before the wheel event.
		if err := h.clock.Sleep(ctx, 150*time.Millisecond); err != nil {
			return err
		}
	}

	dx, dy := scrollVector(cmd.Intent.Param("direction"), paramInt(cmd.Intent, "amount", 3))

	err := h.auto.Scroll(ctx, target, dx, dy)
	if err == nil {
		return nil
	}
	// Magnitude ladder: doubled, then halved, then the alternate axis.
	for _, f := range []struct{ dx, dy int }{
		{dx * 2, dy * 2},
		{dx / 2, dy / 2},
		{dy, dx},
	} {
		if f.dx == 0 && f.dy == 0 {
			continue
		}
		if err = h.auto.Scroll(ctx, target, f.dx, f.dy); err == nil {
			return nil
		}
	}
	return err
}

// slowPath captures the screen, asks the vision model for a plan, and
// executes it.
func (h *GUIHandler) slowPath(ctx context.Context, cmd Command, category string) types.HandlerResult {
	if h.vision == nil {
		return types.Failure(types.MethodSlowPath, types.NewError(types.ErrModuleUnavailable,
			"vision module not configured (fast path failed: %s)", category))
	}

	h.audio.Thinking("Let me take a look at the screen.")

	analysis, err := h.vision.AnalyzeScreen(ctx, vision.ActionPrompt(cmd.Utterance.Text))
	if err != nil {
		te := types.AsError(err)
		h.audio.EnhancedError("I couldn't analyze the screen.", te.Message)
		return types.Failure(types.MethodSlowPath, te)
	}
	if !analysis.HasPlan() {
		err := types.NewError(types.ErrElementNotFound,
			"vision produced no actionable step: %s", analysis.Description)
		h.audio.EnhancedError("I couldn't find that on the screen.", "")
		return types.Failure(types.MethodSlowPath, err)
	}

	for i, step := range analysis.Plan {
		if err := h.executeStep(ctx, step); err != nil {
			te := types.AsError(err)
			h.audio.EnhancedError("The visual action failed.", te.Message)
			h.logger.Warn("vision plan step failed",
				zap.String("utterance", cmd.Utterance.ID),
				zap.Int("step", i),
				zap.String("action", step.Action),
				zap.Error(err))
			return types.Failure(types.MethodSlowPath, te)
		}
	}

	h.audio.Success("")
	res := types.Success(types.MethodSlowPath, analysis.Description)
	res.Data = map[string]any{"plan_steps": len(analysis.Plan), "fallback_category": category}
	return res
}

// executeStep validates and dispatches one vision plan step.
func (h *GUIHandler) executeStep(ctx context.Context, step vision.Step) error {
	p := step.Point()
	switch step.Action {
	case "click", "double_click", "right_click":
		if err := h.validatePoint(p); err != nil {
			return err
		}
	}

	switch step.Action {
	case "click":
		return h.auto.Click(ctx, p, desktop.ButtonLeft, 1)
	case "double_click":
		return h.auto.Click(ctx, p, desktop.ButtonLeft, 2)
	case "right_click":
		return h.auto.Click(ctx, p, desktop.ButtonRight, 1)
	case "type":
		return h.auto.Type(ctx, step.Text)
	case "key":
		return h.auto.Key(ctx, nil, step.Text)
	case "scroll":
		dx, dy := scrollVector(step.Direction, max(step.Amount, 1))
		return h.auto.Scroll(ctx, p, dx, dy)
	default:
		return types.NewError(types.ErrInternal, "vision plan contains unknown action %q", step.Action)
	}
}

// validatePoint rejects coordinates outside the configured screen bounds.
func (h *GUIHandler) validatePoint(p types.Point) error {
	if p.X < 0 || p.Y < 0 {
		return types.NewError(types.ErrInvalidCoordinates, "negative coordinates (%d, %d)", p.X, p.Y)
	}
	b := h.cfg.ScreenBounds
	if b.Area() > 0 && !b.Contains(p) {
		return types.NewError(types.ErrInvalidCoordinates,
			"(%d, %d) outside screen bounds %dx%d", p.X, p.Y, b.W, b.H)
	}
	return nil
}

// retryable reports whether a fast-path failure is worth another attempt:
// timeouts and explicitly transient collaborator errors only.
func retryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, desktop.ErrTransient)
}

// fallbackCategory buckets fast-path failures for analytics.
func fallbackCategory(err error) string {
	switch types.KindOf(err) {
	case types.ErrElementNotFound:
		return "element_detection"
	case types.ErrModuleUnavailable, types.ErrPermissionDenied:
		return "accessibility_issue"
	case types.ErrInvalidCoordinates, types.ErrInternal:
		return "configuration"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}

// mapRole translates the classifier's plain role words into accessibility
// roles. Already-prefixed roles pass through; unknown words broaden the
// search instead of narrowing it wrongly.
func mapRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "":
		return ""
	case "button":
		return "AXButton"
	case "link":
		return "AXLink"
	case "menu", "menu_item", "menuitem":
		return "AXMenuItem"
	case "checkbox":
		return "AXCheckBox"
	case "radio", "radio_button":
		return "AXRadioButton"
	case "tab":
		return "AXTab"
	case "combobox", "dropdown":
		return "AXComboBox"
	}
	if strings.HasPrefix(role, "AX") {
		return role
	}
	return ""
}

// scrollVector converts a spoken direction into wheel deltas.
func scrollVector(direction string, amount int) (dx, dy int) {
	if amount <= 0 {
		amount = 3
	}
	switch strings.ToLower(direction) {
	case "up":
		return 0, -amount
	case "left":
		return -amount, 0
	case "right":
		return amount, 0
	default: // down
		return 0, amount
	}
}

// pickLargest returns the region with the biggest bounding box.
func pickLargest(elems []types.Element) (types.Element, bool) {
	best := -1
	for i, el := range elems {
		if best < 0 || el.Bounds.Area() > elems[best].Bounds.Area() {
			best = i
		}
	}
	if best < 0 {
		return types.Element{}, false
	}
	return elems[best], true
}

// paramInt reads a numeric intent parameter, tolerating the float64 that
// JSON decoding produces.
func paramInt(in types.Intent, key string, def int) int {
	if in.Parameters == nil {
		return def
	}
	switch v := in.Parameters[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
