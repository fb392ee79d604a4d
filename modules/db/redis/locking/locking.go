// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dietprofile/modules/clock"

	"github.com/redis/rueidis/rueidislock"
)

var (
	// ErrLockNotAcquired means a try-once executor found the lock held.
	ErrLockNotAcquired = errors.New("locking: lock not acquired")

	ErrInvalidConfiguration = errors.New("locking: invalid lock configuration")
)

type (
	// Locker is the part of rueidislock.Locker the executor uses.
	Locker interface {
		WithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
		TryWithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error)
	}

	TaskFunc func(ctx context.Context) error

	// LockConfiguration names a lock and bounds how long it is held.
	// LockAtMostFor becomes the task deadline. LockAtLeastFor keeps the lock
	// after an early return, counted from task start.
	LockConfiguration struct {
		Name           string
		LockAtMostFor  time.Duration
		LockAtLeastFor time.Duration
	}

	// LockingTaskExecutor runs a task while holding a named Redis lock, so at
	// most one replica runs it for that name at a time.
	LockingTaskExecutor struct {
		locker Locker
		logger *slog.Logger
		clock  clock.Clock

		wait           bool
		acquireTimeout time.Duration
		prefix         string
	}

	Option func(*LockingTaskExecutor)
)

func WithLogger(l *slog.Logger) Option {
	return func(e *LockingTaskExecutor) { e.logger = l }
}

// WithWaitForLock makes Execute block until the lock frees up. The default
// is a single attempt that fails with ErrLockNotAcquired.
func WithWaitForLock(wait bool) Option {
	return func(e *LockingTaskExecutor) { e.wait = wait }
}

// WithAcquireTimeout caps a blocking acquire. Zero leaves the caller's
// deadline alone.
func WithAcquireTimeout(d time.Duration) Option {
	return func(e *LockingTaskExecutor) { e.acquireTimeout = d }
}

// WithNamePrefix namespaces every lock name, "profiles:" + "create:42".
func WithNamePrefix(prefix string) Option {
	return func(e *LockingTaskExecutor) { e.prefix = prefix }
}

func WithClock(c clock.Clock) Option {
	return func(e *LockingTaskExecutor) {
		if c != nil {
			e.clock = c
		}
	}
}

// NewLockingTaskExecutor wraps locker, usually a rueidislock.Locker shared by
// several executors.
func NewLockingTaskExecutor(locker Locker, opts ...Option) *LockingTaskExecutor {
	e := &LockingTaskExecutor{
		locker: locker,
		logger: slog.New(slog.DiscardHandler),
		clock:  clock.RealClockProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Execute acquires cfg.Name and runs task under it. The task context ends
// when LockAtMostFor passes or the lock is lost. The lock is released on
// return, panics included.
func (e *LockingTaskExecutor) Execute(ctx context.Context, cfg LockConfiguration, task TaskFunc) error {
	if task == nil {
		return errors.New("locking: task must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	name := e.prefix + cfg.Name
	log := e.logger.With(slog.String("lock.name", name))

	requested := e.clock.Now()
	lockCtx, release, err := e.acquire(ctx, name)
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			log.DebugContext(ctx, "lock held elsewhere")
		}
		return err
	}
	defer release()
	log.DebugContext(ctx, "lock acquired", slog.Duration("lock.wait", e.clock.Now().Sub(requested)))

	var (
		taskCtx context.Context
		cancel  context.CancelFunc
	)
	if cfg.LockAtMostFor > 0 {
		taskCtx, cancel = context.WithTimeout(lockCtx, cfg.LockAtMostFor)
	} else {
		taskCtx, cancel = context.WithCancel(lockCtx)
	}
	defer cancel()

	started := e.clock.Now()
	err = task(taskCtx)
	log.DebugContext(ctx, "task finished",
		slog.Duration("task.duration", e.clock.Now().Sub(started)),
		slog.Any("task.error", err),
	)

	if cfg.LockAtLeastFor > 0 {
		e.holdUntil(ctx, lockCtx, started.Add(cfg.LockAtLeastFor))
	}
	return err
}

func (e *LockingTaskExecutor) acquire(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	if !e.wait {
		lockCtx, release, err := e.locker.TryWithContext(ctx, name)
		switch {
		case err == nil:
			return lockCtx, release, nil
		case errors.Is(err, rueidislock.ErrNotLocked):
			return nil, nil, ErrLockNotAcquired
		default:
			return nil, nil, fmt.Errorf("locking: try %q: %w", name, err)
		}
	}

	// The lock context derives from waitCtx, so waitCtx lives until release.
	// The acquire timeout only cancels it while we are still waiting.
	waitCtx, stop := context.WithCancel(ctx)
	var timer *time.Timer
	if e.acquireTimeout > 0 {
		timer = time.AfterFunc(e.acquireTimeout, stop)
	}
	lockCtx, release, err := e.locker.WithContext(waitCtx, name)
	expired := timer != nil && !timer.Stop()

	switch {
	case err == nil && !expired:
		return lockCtx, func() {
			release()
			stop()
		}, nil
	case err == nil:
		release()
		stop()
		return nil, nil, fmt.Errorf("locking: acquire %q: %w", name, context.DeadlineExceeded)
	}
	stop()

	switch {
	case expired:
		return nil, nil, fmt.Errorf("locking: acquire %q: %w", name, context.DeadlineExceeded)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, nil, err
	default:
		return nil, nil, fmt.Errorf("locking: acquire %q: %w", name, err)
	}
}

// holdUntil blocks until deadline unless the caller leaves or the lock is
// lost first.
func (e *LockingTaskExecutor) holdUntil(ctx, lockCtx context.Context, deadline time.Time) {
	remaining := deadline.Sub(e.clock.Now())
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-lockCtx.Done():
	}
}

func (c LockConfiguration) validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidConfiguration)
	case c.LockAtMostFor < 0, c.LockAtLeastFor < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidConfiguration)
	case c.LockAtMostFor > 0 && c.LockAtLeastFor > c.LockAtMostFor:
		return fmt.Errorf("%w: lockAtLeastFor %s exceeds lockAtMostFor %s",
			ErrInvalidConfiguration, c.LockAtLeastFor, c.LockAtMostFor)
	}
	return nil
}
