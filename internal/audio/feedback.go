package audio

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aura/internal/metrics"
	"aura/internal/types"
)

// cue is one queued feedback item.
type cue struct {
	sound    Sound
	text     string
	priority Priority
}

// Config holds façade tunables.
type Config struct {
	// Enabled gates all output. A disabled façade accepts and discards
	// every cue so call sites never branch.
	Enabled bool

	// QueueSize is the per-priority queue depth.
	QueueSize int
}

// DefaultConfig returns the façade defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, QueueSize: 64}
}

// Feedback is the mode-aware audio façade. Enqueueing never blocks; when a
// queue is full the cue is dropped and counted. Per-priority queues mean a
// burst of LOW chatter can never crowd out an error announcement.
type Feedback struct {
	sink    Sink
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Recorder

	// One buffered channel per priority; the worker drains high first.
	queues [3]chan cue
	wake   chan struct{}
}

// NewFeedback creates the façade. Run must be started for cues to play.
func NewFeedback(sink Sink, cfg Config, logger *zap.Logger, rec *metrics.Recorder) *Feedback {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if sink == nil {
		sink = NopSink{}
	}
	f := &Feedback{
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		wake:    make(chan struct{}, 1),
	}
	for i := range f.queues {
		f.queues[i] = make(chan cue, cfg.QueueSize)
	}
	return f
}

// Run drains the queues until ctx is done. At most one cue is active at a
// time; within a drain cycle HIGH always plays before NORMAL before LOW.
func (f *Feedback) Run(ctx context.Context) error {
	for {
		// Priority drain: take the most urgent queued cue.
		if c, ok := f.next(); ok {
			f.deliver(ctx, c)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.wake:
		}
	}
}

// next pops the highest-priority queued cue without blocking.
func (f *Feedback) next() (cue, bool) {
	for p := PriorityHigh; p >= PriorityLow; p-- {
		select {
		case c := <-f.queues[p]:
			return c, true
		default:
		}
	}
	return cue{}, false
}

// deliver plays a cue. TTS failure never suppresses the sound effect, and
// no failure propagates: silence bugs get logged, not raised.
func (f *Feedback) deliver(ctx context.Context, c cue) {
	if c.sound != SoundNone {
		if err := f.sink.Play(ctx, c.sound); err != nil {
			f.logger.Debug("sound playback failed",
				zap.String("sound", string(c.sound)),
				zap.Error(err))
		}
	}
	if c.text != "" {
		if err := f.sink.Speak(ctx, c.text); err != nil {
			f.logger.Warn("speech synthesis failed",
				zap.String("priority", c.priority.String()),
				zap.Error(err))
		}
	}
}

// enqueue queues a cue without blocking. A full queue drops the cue.
func (f *Feedback) enqueue(c cue) {
	if !f.cfg.Enabled {
		return
	}
	select {
	case f.queues[c.priority] <- c:
		select {
		case f.wake <- struct{}{}:
		default:
		}
	default:
		f.metrics.RecordAudioDropped(c.priority.String())
		f.logger.Warn("audio queue full, cue dropped",
			zap.String("priority", c.priority.String()),
			zap.String("text", c.text))
	}
}

// Conversational speaks a chat reply with no sound effect.
func (f *Feedback) Conversational(msg string) {
	f.enqueue(cue{text: msg, priority: PriorityNormal})
}

// Thinking signals that slow visual analysis is starting.
func (f *Feedback) Thinking(msg string) {
	f.enqueue(cue{sound: SoundThinking, text: msg, priority: PriorityNormal})
}

// Success reports a completed command. msg may be empty for a sound-only
// cue. Routine GUI success is deliberately LOW priority.
func (f *Feedback) Success(msg string) {
	f.enqueue(cue{sound: SoundSuccess, text: msg, priority: PriorityLow})
}

// EnhancedError reports a failure with context, always at HIGH priority.
func (f *Feedback) EnhancedError(msg, context string) {
	text := msg
	if context != "" {
		text = fmt.Sprintf("%s. %s", msg, context)
	}
	f.enqueue(cue{sound: SoundFailure, text: text, priority: PriorityHigh})
}

// DeferredInstructions tells the user what to do after content generation.
func (f *Feedback) DeferredInstructions(ct types.ContentType) {
	var text string
	switch ct {
	case types.ContentCode:
		text = "Code generated. Click where you want it placed."
	case types.ContentText:
		text = "Text is ready. Click where you want it placed."
	default:
		text = "Content is ready. Click where you want it placed."
	}
	f.enqueue(cue{sound: SoundSuccess, text: text, priority: PriorityNormal})
}

// DeferredCompletion reports the outcome of a deferred placement.
func (f *Feedback) DeferredCompletion(success bool, ct types.ContentType) {
	if success {
		f.enqueue(cue{
			sound:    SoundSuccess,
			text:     fmt.Sprintf("%s placed.", title(ct.Noun())),
			priority: PriorityNormal,
		})
		return
	}
	f.enqueue(cue{
		sound:    SoundFailure,
		text:     fmt.Sprintf("Placing the %s failed.", ct.Noun()),
		priority: PriorityHigh,
	})
}

// DeferredCanceled reports that an armed action was preempted or canceled.
func (f *Feedback) DeferredCanceled(ct types.ContentType) {
	f.enqueue(cue{
		sound:    SoundAlert,
		text:     fmt.Sprintf("The pending %s placement was canceled.", ct.Noun()),
		priority: PriorityHigh,
	})
}

// DeferredTimeout reports that the wait for a click expired.
func (f *Feedback) DeferredTimeout(elapsed time.Duration) {
	f.enqueue(cue{
		sound:    SoundAlert,
		text:     fmt.Sprintf("No click received after %d seconds. The pending action was canceled.", int(elapsed.Seconds())),
		priority: PriorityHigh,
	})
}

// title upper-cases the first byte of a spoken noun.
func title(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
