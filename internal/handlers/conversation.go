package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/intent"
	"aura/internal/reasoning"
	"aura/internal/types"
)

// Turn is one entry in the bounded conversation history.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
	TS      time.Time
}

// ConversationConfig holds chat handler tunables.
type ConversationConfig struct {
	// MaxHistory bounds the stored turns; oldest are evicted first.
	MaxHistory int

	// Persona seeds the system prompt.
	Persona string

	// Timeout bounds one model round trip.
	Timeout time.Duration
}

// DefaultConversationConfig returns the chat defaults.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MaxHistory: 10,
		Persona:    "a concise, friendly desktop voice assistant named Aura",
		Timeout:    10 * time.Second,
	}
}

// apologyFallback is spoken whenever the model cannot answer. The user
// never gets silence.
const apologyFallback = "Sorry, I had trouble thinking of a reply just now. Could you try again?"

// ConversationHandler holds a dialogue with the reasoning model. History
// updates are atomic per turn: user turn in, reply awaited, assistant turn
// in, oldest evicted.
type ConversationHandler struct {
	client reasoning.Client
	cfg    ConversationConfig
	logger *zap.Logger
	audio  *audio.Feedback

	mu      sync.Mutex
	parser  *reasoning.EnvelopeParser
	history []Turn
}

// NewConversationHandler creates the chat handler.
func NewConversationHandler(client reasoning.Client, cfg ConversationConfig, logger *zap.Logger, fb *audio.Feedback) *ConversationHandler {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConversationConfig().MaxHistory
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConversationConfig().Timeout
	}
	if cfg.Persona == "" {
		cfg.Persona = DefaultConversationConfig().Persona
	}
	return &ConversationHandler{
		client: client,
		cfg:    cfg,
		logger: logger,
		audio:  fb,
		parser: reasoning.NewEnvelopeParser(),
	}
}

// Supports reports whether kind routes here.
func (h *ConversationHandler) Supports(kind types.IntentKind) bool {
	return kind == types.KindConversationalChat
}

// Handle produces a spoken reply. Failures degrade to the apology
// fallback; the result still records the underlying error.
func (h *ConversationHandler) Handle(ctx context.Context, cmd Command) types.HandlerResult {
	start := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client == nil {
		return finish(h.fallbackResult(types.NewError(types.ErrReasoningUnavailable,
			"no reasoning model configured")), cmd)
	}

	h.append(Turn{Role: "user", Content: cmd.Utterance.Text, TS: time.Now()})

	cctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	raw, err := h.client.CompleteWithSystem(cctx, h.systemPrompt(), h.userPrompt())
	cancel()
	if err != nil {
		kind := types.ErrReasoningUnavailable
		if cctx.Err() == context.DeadlineExceeded {
			kind = types.ErrReasoningTimeout
		}
		h.logger.Warn("conversation reply failed",
			zap.String("utterance", cmd.Utterance.ID),
			zap.Error(err))
		return finish(h.fallbackResult(types.WrapError(kind, err, "conversation reply failed")), cmd)
	}

	// The model wraps replies in whatever envelope its provider favors;
	// the parser accepts all of them.
	env := h.parser.Parse(raw)
	reply := strings.TrimSpace(env.Text)
	if reply == "" {
		return finish(h.fallbackResult(types.NewError(types.ErrContentGenerationEmpty,
			"model returned an empty reply")), cmd)
	}

	h.append(Turn{Role: "assistant", Content: reply, TS: time.Now()})

	h.audio.Conversational(reply)

	res := types.Success(types.MethodConversation, reply)
	res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
	res.Data = map[string]any{"parse_method": string(env.Method)}
	return finish(res, cmd)
}

// fallbackResult speaks and returns the apology. Caller holds h.mu.
func (h *ConversationHandler) fallbackResult(err *types.Error) types.HandlerResult {
	h.audio.Conversational(apologyFallback)
	res := types.Failure(types.MethodConversation, err)
	res.Message = apologyFallback
	return res
}

// append adds a turn and evicts the oldest past MaxHistory. Caller holds
// h.mu.
func (h *ConversationHandler) append(t Turn) {
	h.history = append(h.history, t)
	if excess := len(h.history) - h.cfg.MaxHistory; excess > 0 {
		h.history = append([]Turn(nil), h.history[excess:]...)
	}
}

// History returns a snapshot of the stored turns.
func (h *ConversationHandler) History() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.history...)
}

// Reset clears the dialogue.
func (h *ConversationHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = nil
}

// Exchanges converts the history into the recognizer's prompt shape.
func (h *ConversationHandler) Exchanges() []intent.Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []intent.Exchange
	for _, t := range h.history {
		switch t.Role {
		case "user":
			out = append(out, intent.Exchange{User: t.Content})
		case "assistant":
			if len(out) > 0 && out[len(out)-1].Assistant == "" {
				out[len(out)-1].Assistant = t.Content
			}
		}
	}
	return out
}

func (h *ConversationHandler) systemPrompt() string {
	return fmt.Sprintf(`You are %s, speaking replies aloud to the user.

Rules:
- Answer in at most three sentences; this is a voice interface.
- No markdown, no lists, no code blocks. Plain spoken sentences only.
- Be warm but direct.`, h.cfg.Persona)
}

// userPrompt renders the bounded history as the model input. Caller holds
// h.mu.
func (h *ConversationHandler) userPrompt() string {
	var sb strings.Builder
	for _, t := range h.history {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	sb.WriteString("assistant:")
	return sb.String()
}
