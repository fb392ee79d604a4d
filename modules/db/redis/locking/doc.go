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

// Package locking runs tasks under Redis distributed locks.
//
// Example usage:
//
//	locker, err := redis.NewLocker(cfg.Redis, "dietary-profile:lock:")
//	if err != nil {
//		return err
//	}
//	defer locker.Close()
//
//	exec := locking.NewLockingTaskExecutor(
//		locker,
//		locking.WithLogger(slog.Default()),
//		locking.WithWaitForLock(true),
//		locking.WithAcquireTimeout(5*time.Second),
//	)
//
//	err = exec.Execute(ctx, locking.LockConfiguration{
//		Name:          "create:42",
//		LockAtMostFor: 10 * time.Second,
//	}, func(ctx context.Context) error {
//		// check-then-insert for athlete 42
//		return nil
//	})
package locking
