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

// Package db holds the storage contracts the profile adapters are written
// against. Drivers live in the postgres and redis subpackages.
package db

import (
	"context"
	"time"

	"github.com/stephenafamo/bob"
)

// Querier runs statements. Both bob.DB and bob.Tx satisfy it, so repository
// code does not care whether it is inside a transaction.
type Querier interface {
	bob.Executor
}

// TxFn is the body of a transaction. Returning an error rolls it back.
type TxFn func(ctx context.Context, q Querier) error

type HealthManager interface {
	// HealthCheck pings the primary only.
	HealthCheck(ctx context.Context) error
}

type ReaderConnectionManager interface {
	// Reader prefers a replica and falls back to the primary.
	Reader() Querier
}

type ConnectionManager interface {
	Writer() Querier
	ReaderConnectionManager
}

type MigrationManager interface {
	MigrateUp(ctx context.Context) error
}

type TxManager interface {
	WithTx(ctx context.Context, fn TxFn) error
	// WithTimeoutTx is WithTx with the transaction bounded by timeout.
	WithTimeoutTx(ctx context.Context, timeout time.Duration, fn TxFn) error
}

// ConnectionPool is everything main wires from one database.
type ConnectionPool interface {
	HealthManager
	ConnectionManager
	MigrationManager
	TxManager

	Shutdown(context.Context) error
}

// KV is a raw key-value store. A missing key reads as (nil, nil).
type KV interface {
	AtomicGet(ctx context.Context, key string) (any, error)
	AtomicSet(ctx context.Context, key string, value any) (any, error)
	Delete(ctx context.Context, keys ...string) error
}

// VersionedKV is a KV whose writers race readers of lagging sources. A value
// written with SetIfNewer never replaces a newer one, and Fence keeps late
// writers out for a while after a change.
type VersionedKV interface {
	KV

	// SetIfNewer stores value unless key is fenced or holds a higher version.
	// It reports whether value was stored.
	SetIfNewer(ctx context.Context, key string, version int64, value any) (bool, error)

	// Fence deletes key and makes SetIfNewer on it a no-op for hold.
	Fence(ctx context.Context, key string, hold time.Duration) error
}
