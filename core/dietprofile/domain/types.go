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
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
)

type (
	// DietaryProfile holds the food constraints of one athlete. Food and diet
	// type ids point into the catalog service, the athlete id into the user
	// service. Neither is owned here.
	DietaryProfile struct {
		ID                uuid.UUID
		AthleteID         int64
		IntolerantFoodIDs []int64
		PreferredFoodIDs  []int64
		DietTypeID        *int64
		Version           int64
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	// ProfileDraft is the input of a create. Missing lists are stored empty.
	ProfileDraft struct {
		IntolerantFoodIDs []int64
		PreferredFoodIDs  []int64
		DietTypeID        *int64
	}

	// ProfilePatch is a sparse update.
	//
	//   - nil list pointer: list untouched
	//   - DietTypeSet=false: diet type untouched
	//   - DietTypeSet=true, DietTypeID=nil: diet type cleared
	ProfilePatch struct {
		IntolerantFoodIDs *[]int64
		PreferredFoodIDs  *[]int64
		DietTypeSet       bool
		DietTypeID        *int64
	}

	ReferenceKind string

	// RemoteEntity is whatever the owning service returned for an id. Only
	// its existence matters to the profile rules.
	RemoteEntity struct {
		Kind    ReferenceKind
		ID      int64
		Payload []byte
	}
)

const (
	KindAthlete  ReferenceKind = "athlete"
	KindFood     ReferenceKind = "food"
	KindDietType ReferenceKind = "diet type"
)

func (p *DietaryProfile) V() int64 {
	return p.Version
}

// NewDietaryProfile builds an unsaved profile from a draft.
func NewDietaryProfile(id uuid.UUID, athleteID int64, d ProfileDraft) *DietaryProfile {
	return &DietaryProfile{
		ID:                id,
		AthleteID:         athleteID,
		IntolerantFoodIDs: normalizeIDs(d.IntolerantFoodIDs),
		PreferredFoodIDs:  normalizeIDs(d.PreferredFoodIDs),
		DietTypeID:        cloneID(d.DietTypeID),
	}
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.IntolerantFoodIDs == nil && p.PreferredFoodIDs == nil && !p.DietTypeSet
}

// Apply merges the present fields onto profile.
func (p ProfilePatch) Apply(profile *DietaryProfile) {
	if p.IntolerantFoodIDs != nil {
		profile.IntolerantFoodIDs = normalizeIDs(*p.IntolerantFoodIDs)
	}
	if p.PreferredFoodIDs != nil {
		profile.PreferredFoodIDs = normalizeIDs(*p.PreferredFoodIDs)
	}
	if p.DietTypeSet {
		profile.DietTypeID = cloneID(p.DietTypeID)
	}
}

// normalizeIDs drops duplicates and keeps first-seen order. Lists are sets.
func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
