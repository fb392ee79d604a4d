// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit decides whether a caller may proceed under a
// "N requests per window" policy. Counters live in a CounterStore so every
// replica sees the same usage.
package ratelimit

import (
	"context"
	"time"
)

type (
	LimiterFactory func(limit int64, window time.Duration) RateLimiter

	// RateLimiter enforces time-based limits such as "100 requests per 60
	// seconds". Count-based "last N events" windows are out of its scope.
	RateLimiter interface {
		Allow(ctx context.Context, key Key) (Result, error)
	}

	// CounterStore is the shared storage of window counters.
	CounterStore interface {
		// Incr increments the counter at key and returns the new value. ttl
		// is how long the store keeps the key alive at least.
		Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

		// Get returns the current value of a counter, or 0 if missing.
		Get(ctx context.Context, key string) (int64, error)
	}

	// Key identifies the caller being limited: a remote address, a token
	// subject. Its format is up to the key strategy.
	Key string

	Result struct {
		Allowed       bool
		Remaining     int64         // requests left in the current window
		RetryAfter    time.Duration // zero when allowed
		Limit         int64         // max allowed in window
		Window        time.Duration // configured window size
		WindowResetIn time.Duration // time until current window ends
	}
)
