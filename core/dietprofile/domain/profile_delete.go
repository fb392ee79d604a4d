package domain

import "context"

func (app *Application) DeleteProfile(ctx context.Context, athleteID int64) error {
	if athleteID <= 0 {
		return ErrInvalidData
	}
	if err := app.store.Delete(ctx, athleteID); err != nil {
		return surface(ctx, "delete", err)
	}
	app.invalidate(ctx, athleteID)
	return nil
}
