package domain

import (
	"context"
	"errors"
	"log/slog"
)

func (app *Application) GetProfile(ctx context.Context, athleteID int64) (*DietaryProfile, error) {
	if athleteID <= 0 {
		return nil, ErrInvalidData
	}

	if app.cache != nil {
		cached, err := app.cache.Get(ctx, athleteID)
		if err != nil {
			slog.WarnContext(ctx, "profile cache read failed", slog.Int64("athlete_id", athleteID), slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	p, err := app.store.FindByAthleteID(ctx, athleteID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, notFound(err, "no dietary profile found for athlete %d", athleteID)
	}
	if err != nil {
		return nil, surface(ctx, "get", err)
	}

	if app.cache != nil {
		if err := app.cache.Put(ctx, p); err != nil {
			slog.WarnContext(ctx, "profile cache write failed", slog.Int64("athlete_id", athleteID), slog.Any("error", err))
		}
	}
	return p, nil
}
