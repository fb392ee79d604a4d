package locking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dietprofile/modules/db/redis/locking"

	"github.com/redis/rueidis/rueidislock"
)

// memoryLocker holds named locks in process.
type memoryLocker struct {
	mu    sync.Mutex
	held  map[string]chan struct{}
	names []string
}

func (m *memoryLocker) WithContext(ctx context.Context, name string) (context.Context, context.CancelFunc, error) {
	for {
		m.mu.Lock()
		ch, busy := m.held[name]
		if !busy {
			release := make(chan struct{})
			m.held[name] = release
			m.names = append(m.names, name)
			m.mu.Unlock()
			lockCtx, cancel := context.WithCancel(ctx)
			return lockCtx, func() {
				cancel()
				m.mu.Lock()
				delete(m.held, name)
				m.mu.Unlock()
				close(release)
			}, nil
		}
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

func (m *memoryLocker) TryWithContext(context.Context, string) (context.Context, context.CancelFunc, error) {
	return nil, nil, rueidislock.ErrNotLocked
}

func TestExclusiveSerializesPerAthlete(t *testing.T) {
	locker := &memoryLocker{held: map[string]chan struct{}{}}
	exec := locking.NewLockingTaskExecutor(locker, locking.WithWaitForLock(true), locking.WithAcquireTimeout(10*time.Second))
	lock := NewAthleteLock(exec, time.Second)

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lock.Exclusive(context.Background(), 42, func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("exclusive: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("concurrent holders: want=1 got=%d", maxSeen)
	}
	if locker.names[0] != "create:42" {
		t.Fatalf("lock name: want=create:42 got=%s", locker.names[0])
	}
}

func TestExclusivePropagatesTaskError(t *testing.T) {
	locker := &memoryLocker{held: map[string]chan struct{}{}}
	lock := NewAthleteLock(locking.NewLockingTaskExecutor(locker, locking.WithWaitForLock(true)), time.Second)

	boom := errors.New("boom")
	err := lock.Exclusive(context.Background(), 7, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error: want=%v got=%v", boom, err)
	}
}

func TestExclusiveBoundsTaskByHoldTimeout(t *testing.T) {
	locker := &memoryLocker{held: map[string]chan struct{}{}}
	lock := NewAthleteLock(locking.NewLockingTaskExecutor(locker, locking.WithWaitForLock(true)), 20*time.Millisecond)

	err := lock.Exclusive(context.Background(), 7, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error: want=%v got=%v", context.DeadlineExceeded, err)
	}
}
