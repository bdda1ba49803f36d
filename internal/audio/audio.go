// Package audio is the feedback façade: every user-facing cue goes through
// here as a sound, a spoken message, or both. Handlers enqueue cues and move
// on; a single worker drains the queue so at most one utterance plays at a
// time and a slow TTS backend can never stall command execution.
package audio

import "context"

// Priority orders queued cues. Errors and timeouts always speak before
// routine success chatter.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the priority label used in logs and metrics.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Sound identifies an entry in the fixed effect catalog.
type Sound string

const (
	SoundNone     Sound = ""
	SoundThinking Sound = "thinking"
	SoundSuccess  Sound = "success"
	SoundFailure  Sound = "failure"
	SoundAlert    Sound = "alert"
)

// Sink is the low-level audio backend. Implementations live outside the
// core; CommandSynth is the default. Both methods may fail freely — the
// façade absorbs every error.
type Sink interface {
	Play(ctx context.Context, sound Sound) error
	Speak(ctx context.Context, text string) error
}

// NopSink discards all audio. Used in tests and headless deployments.
type NopSink struct{}

func (NopSink) Play(ctx context.Context, sound Sound) error  { return nil }
func (NopSink) Speak(ctx context.Context, text string) error { return nil }
