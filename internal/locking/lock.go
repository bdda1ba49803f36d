// Package locking provides the global execution lock that serializes
// command execution against the desktop. Exactly one command may drive the
// mouse, keyboard, or screen at a time; everything upstream of execution
// (classification, queuing) runs outside the lock.
package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"aura/internal/types"
)

// ExecutionLock is a single-permit semaphore with timeout-bounded acquire.
// Holders receive a release function that is idempotent, so the standard
// pattern is release-early on deferred waits plus a deferred release for
// every other path out of the handler.
type ExecutionLock struct {
	sem    *semaphore.Weighted
	logger *zap.Logger

	held  atomic.Bool
	owner atomic.Value // string, last successful acquirer
}

// NewExecutionLock creates the lock. The logger may be zap.NewNop().
func NewExecutionLock(logger *zap.Logger) *ExecutionLock {
	l := &ExecutionLock{
		sem:    semaphore.NewWeighted(1),
		logger: logger,
	}
	l.owner.Store("")
	return l
}

// Acquire blocks until the lock is held, the timeout elapses, or ctx is
// canceled. On success it returns an idempotent release function. On
// timeout it returns a lock_timeout error so callers can tell the user the
// assistant is busy rather than hanging.
func (l *ExecutionLock) Acquire(ctx context.Context, timeout time.Duration, owner string) (func(), error) {
	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := l.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapError(types.ErrInternal, ctx.Err(), "canceled while waiting for execution lock")
		}
		l.logger.Warn("execution lock acquire timed out",
			zap.String("owner", owner),
			zap.String("held_by", l.Owner()),
			zap.Duration("waited", time.Since(start)))
		return nil, types.NewError(types.ErrLockTimeout,
			"another command is still running (waited %s)", timeout)
	}

	l.held.Store(true)
	l.owner.Store(owner)
	if waited := time.Since(start); waited > 100*time.Millisecond {
		l.logger.Debug("execution lock acquired after wait",
			zap.String("owner", owner),
			zap.Duration("waited", waited))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.held.Store(false)
			l.owner.Store("")
			l.sem.Release(1)
		})
	}, nil
}

// TryAcquire takes the lock only if it is free.
func (l *ExecutionLock) TryAcquire(owner string) (func(), bool) {
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	l.held.Store(true)
	l.owner.Store(owner)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.held.Store(false)
			l.owner.Store("")
			l.sem.Release(1)
		})
	}, true
}

// Held reports whether some command currently holds the lock. Diagnostic
// only; the answer can be stale by the time the caller acts on it.
func (l *ExecutionLock) Held() bool {
	return l.held.Load()
}

// Owner returns the identifier of the last successful acquirer, or "".
func (l *ExecutionLock) Owner() string {
	s, _ := l.owner.Load().(string)
	return s
}
