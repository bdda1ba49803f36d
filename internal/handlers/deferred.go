package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/deferred"
	"aura/internal/desktop"
	"aura/internal/locking"
	"aura/internal/metrics"
	"aura/internal/postprocess"
	"aura/internal/reasoning"
	"aura/internal/types"
)

// DeferredConfig holds deferred-action tunables.
type DeferredConfig struct {
	// DefaultWait is the click deadline when the utterance names none.
	DefaultWait time.Duration

	// MinWait and MaxWait clamp a per-utterance timeout_seconds parameter.
	MinWait time.Duration
	MaxWait time.Duration

	// ReacquireTimeout bounds re-taking the execution lock once the user
	// clicks. The lock was released early at arm time, so another command
	// may be mid-flight.
	ReacquireTimeout time.Duration

	// PasteThreshold switches placement from keystroke typing to a
	// clipboard paste for content at or beyond this many bytes. Multiline
	// content always pastes.
	PasteThreshold int
}

// DefaultDeferredConfig returns the deferred defaults.
func DefaultDeferredConfig() DeferredConfig {
	return DeferredConfig{
		DefaultWait:      10 * time.Minute,
		MinWait:          time.Minute,
		MaxWait:          15 * time.Minute,
		ReacquireTimeout: 15 * time.Second,
		PasteThreshold:   120,
	}
}

// DeferredHandler runs click-to-place generation. Turn one generates and
// cleans content, arms the state machine, subscribes to the next global
// click, and returns WAITING_FOR_USER_ACTION so the orchestrator releases
// the execution lock. A monitor goroutine then races the click against the
// deadline and places the content at the click point.
type DeferredHandler struct {
	machine *deferred.Machine
	reason  reasoning.Client
	parser  *reasoning.EnvelopeParser
	post    *postprocess.Processor
	mouse   desktop.MouseCapture
	auto    desktop.Automation
	lock    *locking.ExecutionLock
	audio   *audio.Feedback
	clock   desktop.Clock
	cfg     DeferredConfig
	logger  *zap.Logger
	metrics *metrics.Recorder

	// base outlives any single command: placement must not die with the
	// request context, and Close tears the monitors down on shutdown.
	base     context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

// NewDeferredHandler creates the handler.
func NewDeferredHandler(machine *deferred.Machine, reason reasoning.Client,
	post *postprocess.Processor, mouse desktop.MouseCapture, auto desktop.Automation,
	lock *locking.ExecutionLock, fb *audio.Feedback, clock desktop.Clock,
	cfg DeferredConfig, logger *zap.Logger, rec *metrics.Recorder) *DeferredHandler {
	def := DefaultDeferredConfig()
	if cfg.DefaultWait <= 0 {
		cfg.DefaultWait = def.DefaultWait
	}
	if cfg.MinWait <= 0 {
		cfg.MinWait = def.MinWait
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.ReacquireTimeout <= 0 {
		cfg.ReacquireTimeout = def.ReacquireTimeout
	}
	if cfg.PasteThreshold <= 0 {
		cfg.PasteThreshold = def.PasteThreshold
	}
	if clock == nil {
		clock = desktop.SystemClock{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &DeferredHandler{
		machine:  machine,
		reason:   reason,
		parser:   reasoning.NewEnvelopeParser(),
		post:     post,
		mouse:    mouse,
		auto:     auto,
		lock:     lock,
		audio:    fb,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		metrics:  rec,
		base:     base,
		shutdown: cancel,
	}
}

// Supports reports whether kind routes here.
func (h *DeferredHandler) Supports(kind types.IntentKind) bool {
	return kind == types.KindDeferredAction
}

// Close cancels any waiting action and joins the monitor goroutines.
func (h *DeferredHandler) Close() {
	h.shutdown()
	h.wg.Wait()
}

// Handle generates content and arms the click-to-place wait. On success the
// result is WAITING_FOR_USER_ACTION, which tells the orchestrator to
// release the execution lock before returning to the user.
func (h *DeferredHandler) Handle(ctx context.Context, cmd Command) types.HandlerResult {
	start := time.Now()

	// A newer deferred request always wins over one still waiting for its
	// click. Tear the old one down before preparing.
	if prev, ok := h.machine.Preempt(); ok {
		h.mouse.Cancel(prev.SubscriptionToken)
		h.audio.DeferredCanceled(prev.ContentType)
		h.logger.Info("preempted waiting deferred action",
			zap.String("previous_id", prev.ID),
			zap.String("utterance", cmd.Utterance.ID))
	}

	if !h.machine.BeginPrepare() {
		err := types.NewError(types.ErrInternal,
			"deferred machine busy in state %s", h.machine.State())
		h.audio.EnhancedError("I'm still placing the last content.", "")
		return finish(types.Failure(types.MethodDeferred, err), cmd)
	}

	ct := contentTypeFromIntent(cmd.Intent)

	h.audio.Thinking(fmt.Sprintf("Generating %s.", ct.Noun()))

	// Generation runs without a client-side timeout: long generations are
	// the point of deferring, and the model's own limits bound the call.
	genStart := time.Now()
	raw, err := h.reason.CompleteWithSystem(ctx, generationSystemPrompt(ct), cmd.Utterance.Text)
	h.metrics.RecordStage("generation", time.Since(genStart))
	if err != nil {
		h.machine.AbortPrepare()
		te := types.WrapError(types.ErrReasoningUnavailable, err, "content generation failed")
		h.audio.EnhancedError("I couldn't generate that.", te.Message)
		return finish(types.Failure(types.MethodDeferred, te), cmd)
	}

	content := strings.TrimSpace(h.parser.Parse(raw).Text)
	if content == "" {
		h.machine.AbortPrepare()
		te := types.NewError(types.ErrContentGenerationEmpty, "model produced no content")
		h.audio.EnhancedError("The generation came back empty.", "")
		return finish(types.Failure(types.MethodDeferred, te), cmd)
	}

	content = h.post.Process(content, ct, cmd.Utterance.Text)

	now := h.clock.Now()
	wait := h.waitDuration(cmd.Intent)
	pending := types.DeferredPending{
		ID:                uuid.NewString(),
		Content:           content,
		ContentType:       ct,
		Instruction:       cmd.Utterance.Text,
		PreparedAt:        now,
		TimeoutAt:         now.Add(wait),
		SubscriptionToken: uuid.NewString(),
	}

	clicks, err := h.mouse.SubscribeSingleClick(pending.SubscriptionToken)
	if err != nil {
		h.machine.AbortPrepare()
		te := types.WrapError(types.ErrModuleUnavailable, err, "cannot watch for the placement click")
		h.audio.EnhancedError("I can't watch for your click right now.", te.Message)
		return finish(types.Failure(types.MethodDeferred, te), cmd)
	}

	if !h.machine.Arm(pending) {
		h.mouse.Cancel(pending.SubscriptionToken)
		te := types.NewError(types.ErrInternal, "deferred machine refused to arm")
		return finish(types.Failure(types.MethodDeferred, te), cmd)
	}

	h.wg.Add(1)
	go h.monitor(pending, clicks, wait)

	h.audio.DeferredInstructions(ct)

	noun := ct.Noun()
	res := types.WaitingForUser(fmt.Sprintf("%s generated. Click where you want it placed.",
		strings.ToUpper(noun[:1])+noun[1:]))
	res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
	res.Data = map[string]any{
		"pending_id":    pending.ID,
		"content_type":  string(ct),
		"content_bytes": len(content),
		"timeout_at":    pending.TimeoutAt,
	}
	return finish(res, cmd)
}

// monitor races the click, the deadline, and shutdown. Exactly one of the
// three consumes the pending action; the machine's CAS transitions settle
// any tie.
func (h *DeferredHandler) monitor(p types.DeferredPending, clicks <-chan types.Point, wait time.Duration) {
	defer h.wg.Done()

	timerCtx, stopTimer := context.WithCancel(h.base)
	defer stopTimer()

	expired := make(chan struct{})
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if h.clock.Sleep(timerCtx, wait) == nil {
			close(expired)
		}
	}()

	select {
	case point, ok := <-clicks:
		if !ok {
			// Subscription was canceled out from under us, most likely by
			// a preempting command that already spoke the cancellation.
			return
		}
		if !h.machine.ClaimExecution(p.ID) {
			// Lost the race to timeout or preemption; the click is stale.
			h.logger.Info("discarding stale placement click",
				zap.String("pending_id", p.ID))
			return
		}
		h.place(p, point)

	case <-expired:
		if !h.machine.ClaimTimeout(p.ID) {
			return
		}
		h.mouse.Cancel(p.SubscriptionToken)
		h.audio.DeferredTimeout(h.clock.Now().Sub(p.PreparedAt).Round(time.Second))
		h.logger.Info("deferred action timed out",
			zap.String("pending_id", p.ID),
			zap.Duration("waited", wait))
		h.machine.Finish()

	case <-h.base.Done():
		h.mouse.Cancel(p.SubscriptionToken)
		if _, ok := h.machine.Preempt(); ok {
			h.logger.Info("deferred action canceled by shutdown",
				zap.String("pending_id", p.ID))
		}
		h.machine.Finish()
	}
}

// place puts the prepared content at the click point. It re-acquires the
// execution lock first: the lock was released when the handler returned
// WAITING, and another command may hold it now. Placement itself runs on
// the handler's base context, never the original request's, and carries no
// timeout; a half-typed artifact is worse than a slow one.
func (h *DeferredHandler) place(p types.DeferredPending, at types.Point) {
	defer h.machine.Finish()

	release, err := h.lock.Acquire(h.base, h.cfg.ReacquireTimeout, "deferred:"+p.ID)
	if err != nil {
		h.metrics.RecordLockTimeout()
		h.audio.EnhancedError("Another command is running.",
			"I couldn't place the "+p.ContentType.Noun())
		h.logger.Warn("placement lock reacquire failed",
			zap.String("pending_id", p.ID),
			zap.Error(err))
		return
	}
	defer release()

	start := h.clock.Now()

	// Focus the target first; the click that armed us went to the capture
	// layer, not the application.
	if err := h.auto.Click(h.base, at, desktop.ButtonLeft, 1); err != nil {
		h.finishPlacement(p, false, err)
		return
	}
	_ = h.clock.Sleep(h.base, 150*time.Millisecond)

	// The processor guarantees a trailing newline; typing it would press
	// Enter in the target, so single-line content sheds it.
	body := strings.TrimRight(p.Content, "\n")
	if h.usePaste(body) {
		err = h.auto.Paste(h.base, p.Content)
	} else {
		err = h.auto.Type(h.base, body)
	}
	h.metrics.RecordStage("placement", h.clock.Now().Sub(start))
	h.finishPlacement(p, err == nil, err)
}

func (h *DeferredHandler) finishPlacement(p types.DeferredPending, ok bool, err error) {
	h.audio.DeferredCompletion(ok, p.ContentType)
	if ok {
		h.logger.Info("deferred content placed",
			zap.String("pending_id", p.ID),
			zap.Int("bytes", len(p.Content)))
		return
	}
	h.logger.Error("deferred placement failed",
		zap.String("pending_id", p.ID),
		zap.Error(err))
}

// usePaste prefers the clipboard for anything multiline or long; keystroke
// typing mangles embedded newlines in some targets and is slow besides.
func (h *DeferredHandler) usePaste(content string) bool {
	return strings.Contains(content, "\n") || len(content) >= h.cfg.PasteThreshold
}

// waitDuration resolves the click deadline from the intent, clamped to the
// configured window.
func (h *DeferredHandler) waitDuration(in types.Intent) time.Duration {
	wait := h.cfg.DefaultWait
	if v, ok := in.Parameters["timeout_seconds"]; ok {
		switch n := v.(type) {
		case float64:
			wait = time.Duration(n * float64(time.Second))
		case int:
			wait = time.Duration(n) * time.Second
		case string:
			if d, err := time.ParseDuration(n + "s"); err == nil {
				wait = d
			}
		}
	}
	if wait < h.cfg.MinWait {
		wait = h.cfg.MinWait
	}
	if wait > h.cfg.MaxWait {
		wait = h.cfg.MaxWait
	}
	return wait
}

// contentTypeFromIntent maps the recognized content_type parameter, with
// a keyword guess for fallback-parsed intents that carry none.
func contentTypeFromIntent(in types.Intent) types.ContentType {
	switch strings.ToLower(in.Param("content_type")) {
	case "code":
		return types.ContentCode
	case "text":
		return types.ContentText
	case "":
		lower := strings.ToLower(in.Param("target"))
		for _, kw := range []string{"code", "function", "script", "class", "query", "snippet"} {
			if strings.Contains(lower, kw) {
				return types.ContentCode
			}
		}
		return types.ContentText
	default:
		return types.ContentOther
	}
}

func generationSystemPrompt(ct types.ContentType) string {
	switch ct {
	case types.ContentCode:
		return `You generate code that will be typed directly into the user's editor at their cursor.

Rules:
- Output ONLY the code. No explanation, no greeting, no markdown fences.
- Use real newlines and real indentation; never collapse lines.
- If the request names a language, use it; otherwise infer the most likely one.`
	default:
		return `You generate text that will be typed directly where the user clicks.

Rules:
- Output ONLY the requested text. No explanation, no greeting, no markdown.
- Match the tone the request implies.`
	}
}
