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

package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dietprofile/modules/db"

	"github.com/redis/rueidis"
)

var _ db.VersionedKV = (*RedisKV)(nil)

// atomicSet swaps KEYS[1] to ARGV[1] with an optional PX ttl of ARGV[2] and
// returns the previous value, in one round trip.
//
//go:embed atomic_set.lua
var atomicSetSource string

var atomicSet = rueidis.NewLuaScript(atomicSetSource)

//go:embed set_if_newer.lua
var setIfNewerSource string

var setIfNewer = rueidis.NewLuaScript(setIfNewerSource)

//go:embed fence.lua
var fenceSource string

var fence = rueidis.NewLuaScript(fenceSource)

// RedisKV is a db.KV over rueidis. Keys are namespaced by a prefix, writes
// carry a default TTL, and reads may go through server-assisted client-side
// caching.
type RedisKV struct {
	client rueidis.Client

	// empty, or ends with ":"
	prefix string

	// applied to every AtomicSet when > 0
	ttl time.Duration

	// AtomicGet uses DoCache with the write TTL as the local cache TTL
	clientCache bool
}

type RedisKVOption func(*RedisKV)

// WithKeyPrefix scopes all keys under prefix, e.g. "dietprofile:profile"
// stores "athlete:42" as "dietprofile:profile:athlete:42".
func WithKeyPrefix(prefix string) RedisKVOption {
	return func(k *RedisKV) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		k.prefix = prefix
	}
}

// WithDefaultTTL expires every written key after ttl. ttl <= 0 keeps keys
// persistent.
func WithDefaultTTL(ttl time.Duration) RedisKVOption {
	return func(k *RedisKV) {
		k.ttl = ttl
	}
}

// WithClientSideCache serves AtomicGet from the client-side cache. The
// prefix must be listed in RedisConfig.ClientTrackingPrefixes.
func WithClientSideCache() RedisKVOption {
	return func(k *RedisKV) {
		k.clientCache = true
	}
}

// NewRedisKV builds a RedisKV on client. One client can back several
// RedisKV with different prefixes.
func NewRedisKV(client rueidis.Client, opts ...RedisKVOption) *RedisKV {
	kv := &RedisKV{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(kv)
		}
	}
	return kv
}

func (k *RedisKV) key(raw string) string {
	return k.prefix + raw
}

// versionKey sits next to the value key. Callers on a cluster put a {hash tag}
// in their keys so both land in the same slot.
func (k *RedisKV) versionKey(raw string) string {
	return k.prefix + raw + ":version"
}

func (k *RedisKV) ttlArg() string {
	if k.ttl <= 0 {
		return ""
	}
	return strconv.FormatInt(max(k.ttl.Milliseconds(), 1), 10)
}

// AtomicGet implements db.KV. It returns the raw []byte, or (nil, nil) for a
// missing key.
func (k *RedisKV) AtomicGet(ctx context.Context, key string) (any, error) {
	var res rueidis.RedisResult
	if k.clientCache && k.ttl > 0 {
		res = k.client.DoCache(ctx, k.client.B().Get().Key(k.key(key)).Cache(), k.ttl)
	} else {
		res = k.client.Do(ctx, k.client.B().Get().Key(k.key(key)).Build())
	}

	bs, err := res.AsBytes()
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis kv: get %q: %w", key, err)
	}
	return bs, nil
}

// AtomicSet implements db.KV. It returns the previous raw []byte, or nil
// when the key was new.
func (k *RedisKV) AtomicSet(ctx context.Context, key string, value any) (any, error) {
	serialized, err := encodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("redis kv: encode %q: %w", key, err)
	}

	bs, err := atomicSet.Exec(ctx, k.client, []string{k.key(key)}, []string{serialized, k.ttlArg()}).AsBytes()
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis kv: set %q: %w", key, err)
	}
	return bs, nil
}

// SetIfNewer implements db.VersionedKV. The value and its version share the
// default TTL.
func (k *RedisKV) SetIfNewer(ctx context.Context, key string, version int64, value any) (bool, error) {
	serialized, err := encodeValue(value)
	if err != nil {
		return false, fmt.Errorf("redis kv: encode %q: %w", key, err)
	}
	stored, err := setIfNewer.Exec(ctx, k.client,
		[]string{k.key(key), k.versionKey(key)},
		[]string{serialized, strconv.FormatInt(version, 10), k.ttlArg()},
	).AsInt64()
	if err != nil {
		return false, fmt.Errorf("redis kv: set %q at version %d: %w", key, version, err)
	}
	return stored == 1, nil
}

// Fence implements db.VersionedKV. hold <= 0 only deletes.
func (k *RedisKV) Fence(ctx context.Context, key string, hold time.Duration) error {
	if hold <= 0 {
		return k.Delete(ctx, key, key+":version")
	}
	err := fence.Exec(ctx, k.client,
		[]string{k.key(key), k.versionKey(key)},
		[]string{strconv.FormatInt(max(hold.Milliseconds(), 1), 10)},
	).Error()
	if err != nil {
		return fmt.Errorf("redis kv: fence %q: %w", key, err)
	}
	return nil
}

// Delete implements db.KV. Missing keys are ignored.
func (k *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = k.key(key)
	}
	if err := k.client.Do(ctx, k.client.B().Del().Key(full...).Build()).Error(); err != nil {
		return fmt.Errorf("redis kv: delete %v: %w", keys, err)
	}
	return nil
}

// HealthCheck implements db.HealthManager with a PING.
func (k *RedisKV) HealthCheck(ctx context.Context) error {
	return k.client.Do(ctx, k.client.B().Ping().Build()).Error()
}

// isNil reports a nil reply. rueidis does not classify it as a Redis ERR.
func isNil(err error) bool {
	if err == nil {
		return false
	}
	if rueidis.IsRedisNil(err) {
		return true
	}
	re, ok := rueidis.IsRedisErr(err)
	return ok && re.IsNil()
}

// encodeValue serializes v for Redis: strings and bytes as they are,
// Stringers by String, everything else as JSON.
func encodeValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", errors.New("redis kv: nil values are not allowed")
	case string:
		return x, nil
	case []byte:
		return rueidis.BinaryString(x), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return rueidis.BinaryString(b), nil
	}
}
