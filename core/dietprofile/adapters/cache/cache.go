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

// Package cache keeps serialized dietary profiles in a key-value store,
// keyed by athlete id.
package cache

import (
	"context"
	"strconv"
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/db"

	"github.com/gofrs/uuid/v5"
)

var _ domain.ProfileCache = (*ProfileCache)(nil)

// Config of the profile read cache. Expiry is set on the underlying KV.
//
// InvalidationHold is how long a write keeps readers from refilling the
// entry. It should cover replica lag plus one slow read.
type Config struct {
	Enabled          bool          `env:"ENABLED"           envDefault:"true"`
	TTL              time.Duration `env:"TTL"               envDefault:"30s"`
	Prefix           string        `env:"PREFIX"            envDefault:"dietprofile:profile"`
	InvalidationHold time.Duration `env:"INVALIDATION_HOLD" envDefault:"5s"`
	ClientSide       bool          `env:"CLIENT_SIDE"`
}

type cachedProfile struct {
	ID                uuid.UUID `json:"id"`
	AthleteID         int64     `json:"athleteId"`
	IntolerantFoodIDs []int64   `json:"intolerantFoodIds"`
	PreferredFoodIDs  []int64   `json:"preferredFoodIds"`
	DietTypeID        *int64    `json:"dietTypeId"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ProfileCache fills from reads that may be stale. Put never replaces a
// newer version, and Invalidate fences the entry for the configured hold so
// a read that started before the write cannot put the old row back.
type ProfileCache struct {
	kv       db.VersionedKV
	profiles db.JSONKV[cachedProfile]
	hold     time.Duration
}

func NewProfileCache(kv db.VersionedKV, hold time.Duration) *ProfileCache {
	return &ProfileCache{kv: kv, profiles: db.NewJSONKV[cachedProfile](kv), hold: hold}
}

// key is hash tagged so the entry and its version share a cluster slot.
func key(athleteID int64) string {
	return "{athlete:" + strconv.FormatInt(athleteID, 10) + "}"
}

func (c *ProfileCache) Get(ctx context.Context, athleteID int64) (*domain.DietaryProfile, error) {
	cp, err := c.profiles.Get(ctx, key(athleteID))
	if err != nil || cp == nil {
		return nil, err
	}
	return &domain.DietaryProfile{
		ID:                cp.ID,
		AthleteID:         cp.AthleteID,
		IntolerantFoodIDs: nonNil(cp.IntolerantFoodIDs),
		PreferredFoodIDs:  nonNil(cp.PreferredFoodIDs),
		DietTypeID:        cp.DietTypeID,
		Version:           cp.Version,
		CreatedAt:         cp.CreatedAt,
		UpdatedAt:         cp.UpdatedAt,
	}, nil
}

func (c *ProfileCache) Put(ctx context.Context, p *domain.DietaryProfile) error {
	_, err := c.kv.SetIfNewer(ctx, key(p.AthleteID), p.Version, cachedProfile{
		ID:                p.ID,
		AthleteID:         p.AthleteID,
		IntolerantFoodIDs: nonNil(p.IntolerantFoodIDs),
		PreferredFoodIDs:  nonNil(p.PreferredFoodIDs),
		DietTypeID:        p.DietTypeID,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	})
	return err
}

func (c *ProfileCache) Invalidate(ctx context.Context, athleteID int64) error {
	return c.kv.Fence(ctx, key(athleteID), c.hold)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
