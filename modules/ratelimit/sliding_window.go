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

package ratelimit

import (
	"context"
	"fmt"
	"math/bits"
	"time"

	"dietprofile/modules/clock"
)

var _ RateLimiter = (*SlidingWindowRateLimiter)(nil)

// SlidingWindowRateLimiter approximates a sliding window with two adjacent
// fixed windows: the previous window's count is weighted by how much of it
// still overlaps the sliding window.
type SlidingWindowRateLimiter struct {
	clock     clock.Clock
	counter   CounterStore
	keyPrefix string

	limit  uint64
	window time.Duration
}

func SlidingWindowFactory(clock clock.Clock, counter CounterStore, keyPrefix string) LimiterFactory {
	return func(l int64, w time.Duration) RateLimiter {
		return &SlidingWindowRateLimiter{
			clock:     clock,
			counter:   counter,
			keyPrefix: keyPrefix,
			limit:     uint64(max(l, 0)),
			window:    w,
		}
	}
}

// Allow implements RateLimiter. The request is counted whether or not it is
// allowed.
func (s *SlidingWindowRateLimiter) Allow(ctx context.Context, key Key) (Result, error) {
	nowNs := s.clock.Now().UnixNano()
	windowNs := s.window.Nanoseconds()
	idx := nowNs / windowNs

	current, err := s.counter.Incr(ctx, s.buildKey(key, idx), s.window*2)
	if err != nil {
		return Result{}, err
	}
	previous, err := s.counter.Get(ctx, s.buildKey(key, idx-1))
	if err != nil {
		return Result{}, err
	}

	elapsedNs := min(max(nowNs-idx*windowNs, 0), windowNs)
	resetIn := max(s.window-time.Duration(elapsedNs), 0)

	u := weightedUsage(uint64(max(current, 0)), uint64(max(previous, 0)), uint64(windowNs), uint64(windowNs-elapsedNs))
	allowed := u.atMost(s.limit, uint64(windowNs))

	used := u.requests(uint64(windowNs))
	remaining := uint64(0)
	if used < s.limit {
		remaining = s.limit - used
	}

	res := Result{
		Allowed:       allowed,
		Remaining:     int64(remaining),
		Limit:         int64(s.limit),
		Window:        s.window,
		WindowResetIn: resetIn,
	}
	if !allowed {
		res.RetryAfter = resetIn
	}
	return res, nil
}

func (s *SlidingWindowRateLimiter) buildKey(key Key, windowIdx int64) string {
	return fmt.Sprintf("%s:%s:%d", s.keyPrefix, key, windowIdx)
}

// usage is current*window + previous*overlap as a 128-bit value, in
// request-nanoseconds. Staying in integers keeps two consecutive requests
// from reporting the same remaining count.
type usage struct{ hi, lo uint64 }

func weightedUsage(current, previous, windowNs, overlapNs uint64) usage {
	curHi, curLo := bits.Mul64(current, windowNs)
	prevHi, prevLo := bits.Mul64(previous, overlapNs)
	lo, carry := bits.Add64(curLo, prevLo, 0)
	hi, _ := bits.Add64(curHi, prevHi, carry)
	return usage{hi: hi, lo: lo}
}

// atMost reports usage <= limit*window.
func (u usage) atMost(limit, windowNs uint64) bool {
	hi, lo := bits.Mul64(limit, windowNs)
	return u.hi < hi || (u.hi == hi && u.lo <= lo)
}

// requests is ceil(usage / window), saturating at MaxUint64.
func (u usage) requests(windowNs uint64) uint64 {
	if u.hi == 0 {
		return (u.lo + windowNs - 1) / windowNs
	}
	if u.hi >= windowNs {
		// the quotient would not fit in 64 bits
		return ^uint64(0)
	}
	q, r := bits.Div64(u.hi, u.lo, windowNs)
	if r != 0 && q != ^uint64(0) {
		q++
	}
	return q
}
