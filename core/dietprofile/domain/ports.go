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

package domain

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// ReferenceResolver fetches one entity owned by another service.
//
// Implementations classify every failure into exactly one of:
//   - ErrReferenceNotFound: the service answered, with nothing
//   - ErrTimeout: no answer within the per-call deadline
//   - ErrTransport: anything else on the way (connection, remote error)
//
// The three must stay distinguishable with errors.Is.
type ReferenceResolver interface {
	Resolve(ctx context.Context, id int64) (*RemoteEntity, error)
}

// References groups the resolvers the validator consults.
type References struct {
	Athletes  ReferenceResolver
	Foods     ReferenceResolver
	DietTypes ReferenceResolver
}

// ProfileReadStore defines the port for read operations on dietary profiles.
//
// Implementations may route to read replicas, so a read right after a write
// can be stale. Every check that guards a write goes through ProfileWriteTx.
type ProfileReadStore interface {
	// GetProfileByAthleteID returns ErrProfileNotFound if the athlete has no profile.
	GetProfileByAthleteID(ctx context.Context, athleteID int64) (*DietaryProfile, error)
}

// ProfileWriteStore defines the port for write operations on dietary profiles.
//
// All mutations go through WithTx. If fn returns an error the transaction is
// rolled back, otherwise committed. WithTx must not be nested.
type ProfileWriteStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx ProfileWriteTx) error) error
}

// ProfileWriteTx is a transaction-scoped view of the profile table. It is not
// safe for concurrent use.
type ProfileWriteTx interface {
	// GetProfileForUpdate reads and row-locks the athlete's profile.
	// Returns ErrProfileNotFound if there is none.
	GetProfileForUpdate(ctx context.Context, athleteID int64) (*DietaryProfile, error)

	// CreateProfile inserts p and returns the stored row. Returns
	// ErrDuplicateProfile when the athlete already has a profile.
	CreateProfile(ctx context.Context, p *DietaryProfile) (*DietaryProfile, error)

	// UpdateProfile overwrites the mutable fields of p, bumps its version and
	// returns the stored row. Returns ErrProfileNotFound if the row is gone.
	UpdateProfile(ctx context.Context, p *DietaryProfile) (*DietaryProfile, error)

	// DeleteProfile physically removes the row. Returns ErrProfileNotFound if
	// the row is gone.
	DeleteProfile(ctx context.Context, id uuid.UUID) error
}

// HealthProbe reports whether the persistence backend is reachable.
type HealthProbe interface {
	HealthCheck(ctx context.Context) error
}

// AthleteLock serializes work on one athlete across replicas.
type AthleteLock interface {
	Exclusive(ctx context.Context, athleteID int64, fn func(ctx context.Context) error) error
}

// ProfileCache is a best-effort read cache keyed by athlete id. Get returns
// (nil, nil) on a miss.
type ProfileCache interface {
	Get(ctx context.Context, athleteID int64) (*DietaryProfile, error)
	Put(ctx context.Context, p *DietaryProfile) error
	Invalidate(ctx context.Context, athleteID int64) error
}
