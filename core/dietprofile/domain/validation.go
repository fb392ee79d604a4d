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
	"errors"
	"fmt"
	"log/slog"
)

// Validator checks that every id in a profile request exists in the service
// that owns it.
//
// Checks run one after another, never in parallel, and the first failure
// wins. Order:
//
//  1. athlete (create only)
//  2. diet type (when supplied)
//  3. intolerant foods, in list order: failure is PRECONDITION_FAILED
//  4. preferred foods, in list order: failure is NOT_FOUND
type Validator struct {
	refs References
}

func NewValidator(refs References) *Validator {
	return &Validator{refs: refs}
}

// ValidateCreate runs the full check chain for a new profile.
func (v *Validator) ValidateCreate(ctx context.Context, athleteID int64, d ProfileDraft) error {
	if err := v.checkAthlete(ctx, athleteID); err != nil {
		return err
	}
	if d.DietTypeID != nil {
		if err := v.checkDietType(ctx, *d.DietTypeID); err != nil {
			return err
		}
	}
	return v.checkFoods(ctx, d.IntolerantFoodIDs, d.PreferredFoodIDs)
}

// ValidateUpdate checks only what the patch carries. The athlete is not
// re-checked: it was valid when the profile was created.
func (v *Validator) ValidateUpdate(ctx context.Context, p ProfilePatch) error {
	if p.DietTypeSet && p.DietTypeID != nil {
		if err := v.checkDietType(ctx, *p.DietTypeID); err != nil {
			return err
		}
	}
	var intolerant, preferred []int64
	if p.IntolerantFoodIDs != nil {
		intolerant = *p.IntolerantFoodIDs
	}
	if p.PreferredFoodIDs != nil {
		preferred = *p.PreferredFoodIDs
	}
	return v.checkFoods(ctx, intolerant, preferred)
}

func (v *Validator) checkAthlete(ctx context.Context, id int64) error {
	_, err := v.refs.Athletes.Resolve(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrReferenceNotFound):
		return notFound(err, "no athlete found with id %d", id)
	default:
		return fmt.Errorf("athlete %d: %w", id, err)
	}
}

func (v *Validator) checkDietType(ctx context.Context, id int64) error {
	_, err := v.refs.DietTypes.Resolve(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrReferenceNotFound):
		return notFound(err, "no diet type found with id %d", id)
	default:
		return fmt.Errorf("diet type %d: %w", id, err)
	}
}

func (v *Validator) checkFoods(ctx context.Context, intolerant, preferred []int64) error {
	if id, cause := firstUnresolved(ctx, v.refs.Foods, intolerant); cause != nil {
		return preconditionFailed(cause, "no intolerant food found with id %d", id)
	}
	if id, cause := firstUnresolved(ctx, v.refs.Foods, preferred); cause != nil {
		return notFound(cause, "no preferred food found with id %d", id)
	}
	return nil
}

// firstUnresolved resolves ids in order and stops at the first one that fails
// for any reason, timeouts included. It returns that id with its cause, or a
// nil cause when every id resolved.
func firstUnresolved(ctx context.Context, r ReferenceResolver, ids []int64) (int64, error) {
	for _, id := range ids {
		if _, err := r.Resolve(ctx, id); err != nil {
			if !errors.Is(err, ErrReferenceNotFound) {
				slog.WarnContext(ctx, "food lookup failed", slog.Int64("food_id", id), slog.Any("error", err))
			}
			return id, err
		}
	}
	return 0, nil
}
