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
	"fmt"
	"log/slog"
)

// CreateProfile validates every reference in d, then stores a profile for
// athleteID. The athlete id always comes from the caller's route, never the body.
func (app *Application) CreateProfile(ctx context.Context, athleteID int64, d ProfileDraft) (*DietaryProfile, error) {
	if athleteID <= 0 || !validIDs(d.IntolerantFoodIDs) || !validIDs(d.PreferredFoodIDs) ||
		(d.DietTypeID != nil && *d.DietTypeID <= 0) {
		slog.ErrorContext(ctx, "invalid create input", slog.Int64("athlete_id", athleteID))
		return nil, ErrInvalidData
	}

	if err := app.validator.ValidateCreate(ctx, athleteID, d); err != nil {
		return nil, surface(ctx, "create.validate", err)
	}

	var created *DietaryProfile
	create := func(ctx context.Context) error {
		p, err := app.store.Create(ctx, athleteID, d)
		if err != nil {
			return err
		}
		created = p
		return nil
	}

	var err error
	if app.lock != nil {
		err = app.lock.Exclusive(ctx, athleteID, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		return nil, surface(ctx, "create.store", err)
	}

	app.invalidate(ctx, athleteID)
	slog.DebugContext(ctx, "created dietary profile", slog.Any("profile", fmt.Sprintf("%+v", created)))
	return created, nil
}
