// Package types defines the canonical data model shared by the AURA
// orchestrator core: utterances, intents, handler results, the error
// taxonomy, and the descriptors exchanged with desktop collaborators.
// It has no dependencies on other aura packages so that every layer can
// import it without cycles.
package types

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"
)

// =============================================================================
// UTTERANCE
// =============================================================================

// Utterance is a single transcribed user command. It is immutable once
// created; ID is the correlation identifier carried through every log line
// and every returned envelope.
type Utterance struct {
	ID         string
	Text       string
	ReceivedAt time.Time
}

var utteranceCounter atomic.Uint64

// NewUtterance stamps text with a process-monotonic correlation id.
func NewUtterance(text string) Utterance {
	return Utterance{
		ID:         fmt.Sprintf("u-%d", utteranceCounter.Add(1)),
		Text:       text,
		ReceivedAt: time.Now(),
	}
}

// =============================================================================
// INTENT
// =============================================================================

// IntentKind identifies which handler a command routes to.
type IntentKind string

const (
	KindGUIInteraction     IntentKind = "gui_interaction"
	KindQuestionAnswering  IntentKind = "question_answering"
	KindConversationalChat IntentKind = "conversational_chat"
	KindDeferredAction     IntentKind = "deferred_action"
)

// AllIntentKinds lists the valid classification labels in routing order.
var AllIntentKinds = []IntentKind{
	KindGUIInteraction,
	KindQuestionAnswering,
	KindConversationalChat,
	KindDeferredAction,
}

// Valid reports whether k is one of the four routable kinds.
func (k IntentKind) Valid() bool {
	switch k {
	case KindGUIInteraction, KindQuestionAnswering, KindConversationalChat, KindDeferredAction:
		return true
	}
	return false
}

// Intent is the normalized output of classification.
type Intent struct {
	Kind       IntentKind
	Confidence float64
	Parameters map[string]any
	Fallback   bool   // true when the recognizer could not trust the model
	Reason     string // set when Fallback is true
}

// FallbackIntent returns the safe default used whenever classification
// cannot be trusted: GUI interaction at zero confidence.
func FallbackIntent(reason string) Intent {
	return Intent{
		Kind:       KindGUIInteraction,
		Confidence: 0.0,
		Parameters: map[string]any{},
		Fallback:   true,
		Reason:     reason,
	}
}

// Param returns a parameter rendered as a string, or "" when absent. Model
// JSON delivers numbers and booleans as well as strings, so scalar values
// are coerced rather than dropped.
func (in Intent) Param(key string) string {
	v, ok := in.Parameters[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// =============================================================================
// HANDLER RESULT
// =============================================================================

// ResultStatus is the outcome class of a handled command.
type ResultStatus string

const (
	StatusSuccess        ResultStatus = "success"
	StatusError          ResultStatus = "error"
	StatusWaitingForUser ResultStatus = "waiting_for_user_action"
)

// ExecMethod records which execution strategy produced the result.
type ExecMethod string

const (
	MethodFastPath     ExecMethod = "fast_path"
	MethodSlowPath     ExecMethod = "slow_path"
	MethodDeferred     ExecMethod = "deferred"
	MethodConversation ExecMethod = "conversation"
)

// Timings captures per-stage wall-clock measurements for a command.
type Timings struct {
	StartedAt time.Time
	Total     time.Duration
	Stages    map[string]time.Duration
}

// Stage records a named stage duration, allocating the map lazily.
func (t *Timings) Stage(name string, d time.Duration) {
	if t.Stages == nil {
		t.Stages = make(map[string]time.Duration)
	}
	t.Stages[name] = d
}

// HandlerResult is the envelope every handler returns. Handlers never
// panic or leak errors past their boundary; failures are expressed as
// StatusError with a populated Err.
type HandlerResult struct {
	Status        ResultStatus
	Method        ExecMethod
	Message       string         // primary user-facing text (spoken or displayed)
	Data          map[string]any // structured extras: coordinates, summaries, counts
	Err           *Error
	Timings       Timings
	CorrelationID string
}

// OK reports whether the command completed successfully.
func (r HandlerResult) OK() bool { return r.Status == StatusSuccess }

// Waiting reports whether the command handed control to the deferred
// state machine and released the execution lock early.
func (r HandlerResult) Waiting() bool { return r.Status == StatusWaitingForUser }

// Success builds a successful result envelope.
func Success(method ExecMethod, message string) HandlerResult {
	return HandlerResult{Status: StatusSuccess, Method: method, Message: message}
}

// Failure builds an error result envelope from a typed error.
func Failure(method ExecMethod, err *Error) HandlerResult {
	return HandlerResult{Status: StatusError, Method: method, Message: err.Message, Err: err}
}

// WaitingForUser builds the envelope only the deferred handler may return.
func WaitingForUser(message string) HandlerResult {
	return HandlerResult{Status: StatusWaitingForUser, Method: MethodDeferred, Message: message}
}

// =============================================================================
// GENERATED CONTENT
// =============================================================================

// ContentType tags generated artifacts so post-processing and audio
// feedback can phrase themselves appropriately.
type ContentType string

const (
	ContentCode  ContentType = "code"
	ContentText  ContentType = "text"
	ContentOther ContentType = "other"
)

// Noun returns the spoken noun for a content type ("code", "text", "content").
func (c ContentType) Noun() string {
	switch c {
	case ContentCode:
		return "code"
	case ContentText:
		return "text"
	default:
		return "content"
	}
}
