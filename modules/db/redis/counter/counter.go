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

// Package counter keeps rate limit window counters in Redis.
package counter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dietprofile/modules/ratelimit"

	"github.com/redis/rueidis"
)

var _ ratelimit.CounterStore = (*RedisCounter)(nil)

// incrWithTTL increments KEYS[1] and sets its expiry to ARGV[1] ms when the
// increment created it, in one round trip.
//
//go:embed incr_expr.lua
var incrWithTTLSource string

var incrWithTTL = rueidis.NewLuaScript(incrWithTTLSource)

type RedisCounter struct {
	client rueidis.Client
	prefix string
}

// NewRedisCounterStore wraps client as a ratelimit.CounterStore. A non-empty
// prefix namespaces the keys as prefix:key.
func NewRedisCounterStore(client rueidis.Client, prefix string) *RedisCounter {
	if prefix = strings.TrimSpace(prefix); prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisCounter{client: client, prefix: prefix}
}

// Get implements ratelimit.CounterStore. A missing counter reads as 0.
func (r *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Do(ctx, r.client.B().Get().Key(r.prefix+key).Build()).AsInt64()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis counter get %s: %w", key, err)
	}
	return n, nil
}

// Incr implements ratelimit.CounterStore.
func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := strconv.FormatInt(max(ttl.Milliseconds(), 1), 10)
	n, err := incrWithTTL.Exec(ctx, r.client, []string{r.prefix + key}, []string{ms}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis counter incr %s: %w", key, err)
	}
	return n, nil
}
