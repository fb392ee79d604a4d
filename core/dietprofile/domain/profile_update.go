package domain

import (
	"context"
	"log/slog"
)

// UpdateProfile validates the references carried by patch and merges it onto
// the athlete's profile.
func (app *Application) UpdateProfile(ctx context.Context, athleteID int64, patch ProfilePatch) (*DietaryProfile, error) {
	if athleteID <= 0 {
		return nil, ErrInvalidData
	}
	if patch.IntolerantFoodIDs != nil && !validIDs(*patch.IntolerantFoodIDs) {
		return nil, ErrInvalidData
	}
	if patch.PreferredFoodIDs != nil && !validIDs(*patch.PreferredFoodIDs) {
		return nil, ErrInvalidData
	}
	if patch.DietTypeSet && patch.DietTypeID != nil && *patch.DietTypeID <= 0 {
		return nil, ErrInvalidData
	}

	if err := app.validator.ValidateUpdate(ctx, patch); err != nil {
		return nil, surface(ctx, "update.validate", err)
	}

	updated, err := app.store.Update(ctx, athleteID, patch)
	if err != nil {
		return nil, surface(ctx, "update.store", err)
	}

	app.invalidate(ctx, athleteID)
	slog.DebugContext(ctx, "updated dietary profile", slog.Int64("athlete_id", athleteID), slog.Int64("version", updated.Version))
	return updated, nil
}
