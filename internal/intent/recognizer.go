// Package intent classifies user utterances into one of the four intent
// kinds the orchestrator can route. The model describes; the recognizer
// validates, clamps, and falls back. A classification can degrade to the
// GUI fallback intent but never aborts a command.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"aura/internal/metrics"
	"aura/internal/reasoning"
	"aura/internal/types"
)

// Fallback reasons attached to the degraded GUI intent.
const (
	ReasonReasoningUnavailable = "reasoning_unavailable"
	ReasonIntentLockTimeout    = "intent_lock_timeout"
	ReasonClassificationFailed = "classification_failed"
	ReasonUnparseableResponse  = "unparseable_response"
	ReasonUnknownIntent        = "unknown_intent"
	ReasonLowConfidence        = "low_confidence"
)

// Config holds recognizer tunables.
type Config struct {
	// ConfidenceThreshold is the minimum confidence to accept a
	// classification; below it the intent degrades to GUI interaction.
	ConfidenceThreshold float64

	// HistoryWindow is how many recent exchanges feed the prompt.
	HistoryWindow int

	// Timeout bounds the classification call.
	Timeout time.Duration

	// LockTimeout bounds the wait for the intent lock.
	LockTimeout time.Duration
}

// DefaultConfig returns the recognizer defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		HistoryWindow:       3,
		Timeout:             5 * time.Second,
		LockTimeout:         10 * time.Second,
	}
}

// Exchange is one completed user/assistant turn, included in the prompt so
// follow-ups like "do it again" classify correctly.
type Exchange struct {
	User      string
	Assistant string
}

// Recognizer serializes intent classifications against the reasoning model.
type Recognizer struct {
	client  reasoning.Client
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Recorder

	// sem is the intent lock: classifications are one-at-a-time, ordered
	// after the execution lock whenever a caller holds both.
	sem chan struct{}
}

// NewRecognizer creates a recognizer. client may be nil, in which case
// every utterance degrades to the GUI fallback intent.
func NewRecognizer(client reasoning.Client, cfg Config, logger *zap.Logger, rec *metrics.Recorder) *Recognizer {
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	return &Recognizer{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		sem:     make(chan struct{}, 1),
	}
}

// Recognize classifies the utterance. It always returns a usable Intent;
// every failure mode degrades to the GUI fallback intent with a reason.
func (r *Recognizer) Recognize(ctx context.Context, utt types.Utterance, history []Exchange) types.Intent {
	if r.client == nil {
		return r.fallback(utt, ReasonReasoningUnavailable)
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-time.After(r.cfg.LockTimeout):
		return r.fallback(utt, ReasonIntentLockTimeout)
	case <-ctx.Done():
		return r.fallback(utt, ReasonIntentLockTimeout)
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	raw, err := r.client.CompleteWithSystem(cctx, classifierSystemPrompt, r.buildPrompt(utt.Text, history))
	if err != nil {
		r.logger.Warn("intent classification failed",
			zap.String("utterance", utt.ID),
			zap.Error(err))
		return r.fallback(utt, ReasonClassificationFailed)
	}

	cls, err := parseClassification(raw)
	if err != nil {
		r.logger.Warn("intent response unparseable",
			zap.String("utterance", utt.ID),
			zap.String("response", truncateForLog(raw)),
			zap.Error(err))
		return r.fallback(utt, ReasonUnparseableResponse)
	}

	kind := types.IntentKind(strings.ToLower(strings.TrimSpace(cls.Intent)))
	if !kind.Valid() {
		r.logger.Warn("classifier returned unknown intent label",
			zap.String("utterance", utt.ID),
			zap.String("label", cls.Intent))
		return r.fallback(utt, ReasonUnknownIntent)
	}

	confidence := clamp01(cls.Confidence)
	if confidence < r.cfg.ConfidenceThreshold {
		r.logger.Info("classification below threshold, using GUI fallback",
			zap.String("utterance", utt.ID),
			zap.String("label", string(kind)),
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", r.cfg.ConfidenceThreshold))
		return r.fallback(utt, ReasonLowConfidence)
	}

	r.logger.Debug("intent recognized",
		zap.String("utterance", utt.ID),
		zap.String("kind", string(kind)),
		zap.Float64("confidence", confidence))

	return types.Intent{
		Kind:       kind,
		Confidence: confidence,
		Parameters: cls.Parameters,
	}
}

// Threshold exposes the configured confidence threshold.
func (r *Recognizer) Threshold() float64 {
	return r.cfg.ConfidenceThreshold
}

func (r *Recognizer) fallback(utt types.Utterance, reason string) types.Intent {
	r.metrics.RecordFallback(reason)
	r.logger.Info("intent fallback",
		zap.String("utterance", utt.ID),
		zap.String("reason", reason))
	return types.FallbackIntent(reason)
}

// classification mirrors the JSON shape the prompt asks for.
type classification struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
	Reasoning  string         `json:"reasoning"`
}

// parseClassification accepts a bare JSON object or digs the first balanced
// object out of surrounding prose or markdown.
func parseClassification(raw string) (classification, error) {
	var cls classification

	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), &cls); err == nil && cls.Intent != "" {
		return cls, nil
	}

	obj, ok := reasoning.ExtractJSONObject(trimmed)
	if !ok {
		return cls, fmt.Errorf("no JSON object in classifier response")
	}
	if err := json.Unmarshal([]byte(obj), &cls); err != nil {
		return cls, fmt.Errorf("classifier JSON malformed: %w", err)
	}
	if cls.Intent == "" {
		return cls, fmt.Errorf("classifier JSON missing intent field")
	}
	return cls, nil
}

// buildPrompt constructs the user prompt with conversation history.
func (r *Recognizer) buildPrompt(input string, history []Exchange) string {
	var sb strings.Builder

	if len(history) > 0 && r.cfg.HistoryWindow > 0 {
		sb.WriteString("## Recent Conversation\n\n")
		start := 0
		if len(history) > r.cfg.HistoryWindow {
			start = len(history) - r.cfg.HistoryWindow
		}
		for _, ex := range history[start:] {
			fmt.Fprintf(&sb, "**user**: %s\n\n", ex.User)
			if ex.Assistant != "" {
				fmt.Fprintf(&sb, "**assistant**: %s\n\n", ex.Assistant)
			}
		}
		sb.WriteString("---\n\n")
	}

	sb.WriteString("## Current Request\n\n")
	sb.WriteString(input)

	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateForLog(s string) string {
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}

// classifierSystemPrompt instructs the model to emit a single JSON object.
const classifierSystemPrompt = `You classify voice-assistant commands for a desktop automation agent.

Reply with ONE JSON object and nothing else:
{"intent": "<label>", "confidence": <0.0-1.0>, "parameters": {...}, "reasoning": "<one sentence>"}

Labels:
- "gui_interaction": the user wants to operate the screen (click, press, type into, scroll, open, close). Parameters: "action" (click|double_click|right_click|type|scroll|key), "label" (the visible text of the target), "role" (button|link|menu|checkbox|tab if stated), "text" (for type actions), "direction" (for scroll).
- "question_answering": the user asks about what is currently on screen ("what's on my screen", "summarize this page", "what are the key points"). Parameters: "style" (describe|summarize|key_points).
- "conversational_chat": small talk or general questions not about the screen ("how are you", "what time is it", "tell me a joke"). Parameters: none.
- "deferred_action": the user wants content generated and then placed where they click ("write me a python function...", "draft an email reply..."). Parameters: "description" (what to generate), "content_type" (code|text), "language" (if code), "timeout_seconds" (only if the user named a wait time).

Rules:
- Exactly one label per request.
- confidence reflects how sure you are of the label, not of the answer.
- When torn between gui_interaction and anything else, prefer gui_interaction.
- parameters values are plain strings or numbers.`
