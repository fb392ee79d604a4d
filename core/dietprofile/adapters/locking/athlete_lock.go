// Package locking serializes profile creation per athlete across replicas.
package locking

import (
	"context"
	"fmt"
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/db/redis/locking"
)

var _ domain.AthleteLock = (*AthleteLock)(nil)

type Config struct {
	Enabled        bool          `env:"ENABLED"         envDefault:"true"`
	AcquireTimeout time.Duration `env:"ACQUIRE_TIMEOUT" envDefault:"10s"`
	HoldTimeout    time.Duration `env:"HOLD_TIMEOUT"    envDefault:"20s"`
}

type executor interface {
	Execute(ctx context.Context, cfg locking.LockConfiguration, task locking.TaskFunc) error
}

type AthleteLock struct {
	exec        executor
	holdTimeout time.Duration
}

// NewAthleteLock runs the critical sections on exec, which should wait for
// the lock rather than try once.
func NewAthleteLock(exec *locking.LockingTaskExecutor, holdTimeout time.Duration) *AthleteLock {
	return &AthleteLock{exec: exec, holdTimeout: holdTimeout}
}

func (l *AthleteLock) Exclusive(ctx context.Context, athleteID int64, fn func(ctx context.Context) error) error {
	return l.exec.Execute(ctx, locking.LockConfiguration{
		Name:          fmt.Sprintf("create:%d", athleteID),
		LockAtMostFor: l.holdTimeout,
	}, locking.TaskFunc(fn))
}
