// Package orchestrator is the command pipeline: utterance in, spoken and
// structured result out. It owns the order of operations — lock, classify,
// route, execute, release — and the early lock release that lets deferred
// actions wait for their click without blocking new commands.
package orchestrator

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"aura/internal/audio"
	"aura/internal/handlers"
	"aura/internal/intent"
	"aura/internal/journal"
	"aura/internal/locking"
	"aura/internal/metrics"
	"aura/internal/types"
)

// Config holds pipeline tunables.
type Config struct {
	// LockTimeout bounds the wait for the execution lock before the user
	// is told the assistant is busy.
	LockTimeout time.Duration
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{LockTimeout: 30 * time.Second}
}

// HistorySource feeds recent conversation turns into classification so
// follow-ups like "do it again" resolve correctly. Usually the chat
// handler.
type HistorySource interface {
	Exchanges() []intent.Exchange
}

// Orchestrator routes utterances through classification to handlers under
// the execution lock.
type Orchestrator struct {
	recognizer *intent.Recognizer
	registry   *handlers.Registry
	lock       *locking.ExecutionLock
	history    HistorySource
	journal    *journal.Journal
	audio      *audio.Feedback
	cfg        Config
	logger     *zap.Logger
	metrics    *metrics.Recorder
}

// New creates the pipeline. history and journal may be nil.
func New(rec *intent.Recognizer, reg *handlers.Registry, lock *locking.ExecutionLock,
	history HistorySource, jrn *journal.Journal, fb *audio.Feedback,
	cfg Config, logger *zap.Logger, m *metrics.Recorder) *Orchestrator {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultConfig().LockTimeout
	}
	return &Orchestrator{
		recognizer: rec,
		registry:   reg,
		lock:       lock,
		history:    history,
		journal:    jrn,
		audio:      fb,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Execute runs one command end to end. It always returns a result; every
// failure mode, including a handler panic, lands in the envelope.
func (o *Orchestrator) Execute(ctx context.Context, text string) types.HandlerResult {
	utt := types.NewUtterance(text)
	start := time.Now()

	o.metrics.CommandStarted()
	defer o.metrics.CommandFinished()

	o.logger.Info("command received",
		zap.String("utterance", utt.ID),
		zap.String("text", text))

	release, err := o.lock.Acquire(ctx, o.cfg.LockTimeout, utt.ID)
	if err != nil {
		te := types.AsError(err)
		if te.Kind == types.ErrLockTimeout {
			o.metrics.RecordLockTimeout()
			o.audio.EnhancedError("I'm still working on the previous command.", "")
		}
		res := types.Failure("", te)
		res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
		return o.settle(utt, types.Intent{}, res)
	}
	// Idempotent, so the early release on deferred waits below is safe.
	defer release()

	classifyStart := time.Now()
	in := o.recognizer.Recognize(ctx, utt, o.exchanges())
	o.metrics.RecordStage("classification", time.Since(classifyStart))

	handler, terr := o.registry.Select(in)
	if terr != nil {
		res := types.Failure("", terr)
		res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
		return o.settle(utt, in, res)
	}

	res := o.safeHandle(ctx, handler, handlers.Command{Utterance: utt, Intent: in})

	// A deferred handler hands the rest of its work to a monitor goroutine
	// that re-acquires on its own; holding the lock across the user's
	// think time would block every other command.
	if res.Waiting() {
		release()
	}

	if res.Timings.StartedAt.IsZero() {
		res.Timings = types.Timings{StartedAt: start, Total: time.Since(start)}
	}
	return o.settle(utt, in, res)
}

// safeHandle isolates handler panics into an internal-error result.
func (o *Orchestrator) safeHandle(ctx context.Context, h handlers.Handler, cmd handlers.Command) (res types.HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("handler panicked",
				zap.String("utterance", cmd.Utterance.ID),
				zap.String("intent", string(cmd.Intent.Kind)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = types.Failure("", types.NewError(types.ErrInternal, "handler panicked: %v", r))
			res.CorrelationID = cmd.Utterance.ID
		}
	}()
	return h.Handle(ctx, cmd)
}

// settle journals and counts the finished command.
func (o *Orchestrator) settle(utt types.Utterance, in types.Intent, res types.HandlerResult) types.HandlerResult {
	if res.CorrelationID == "" {
		res.CorrelationID = utt.ID
	}

	o.metrics.RecordCommand(string(in.Kind), string(res.Status), string(res.Method))
	o.journal.Record(journal.FromResult(utt, in, res))

	log := o.logger.Info
	if res.Status == types.StatusError {
		log = o.logger.Warn
	}
	log("command settled",
		zap.String("utterance", utt.ID),
		zap.String("intent", string(in.Kind)),
		zap.String("status", string(res.Status)),
		zap.String("method", string(res.Method)),
		zap.Duration("total", res.Timings.Total))
	return res
}

func (o *Orchestrator) exchanges() []intent.Exchange {
	if o.history == nil {
		return nil
	}
	return o.history.Exchanges()
}
