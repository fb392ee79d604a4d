package domain

import (
	"context"
	"errors"
	"log/slog"
)

// Application is the request handling layer: it sequences validation and
// storage for each operation.
type Application struct {
	validator *Validator
	store     *Store
	health    HealthProbe
	lock      AthleteLock
	cache     ProfileCache
}

type Option func(*Application)

// WithAthleteLock serializes creates per athlete across replicas.
func WithAthleteLock(l AthleteLock) Option {
	return func(app *Application) { app.lock = l }
}

// WithProfileCache enables read-through caching of profiles.
func WithProfileCache(c ProfileCache) Option {
	return func(app *Application) { app.cache = c }
}

func NewApp(reader ProfileReadStore, writer ProfileWriteStore, health HealthProbe, refs References, opts ...Option) *Application {
	app := &Application{
		validator: NewValidator(refs),
		store:     NewStore(reader, writer),
		health:    health,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

// HealthCheck reports whether the persistence backend is reachable.
func (app *Application) HealthCheck(ctx context.Context) error {
	return app.health.HealthCheck(ctx)
}

// surface passes classified errors through and hides everything else behind
// ErrUnhandled.
func surface(ctx context.Context, op string, err error) error {
	if _, ok := AsBusinessError(err); ok {
		return err
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) || errors.Is(err, ErrInvalidData) {
		return err
	}
	slog.ErrorContext(ctx, "unexpected error", slog.String("op", op), slog.Any("error", err))
	return ErrUnhandled
}

func (app *Application) invalidate(ctx context.Context, athleteID int64) {
	if app.cache == nil {
		return
	}
	if err := app.cache.Invalidate(ctx, athleteID); err != nil {
		slog.WarnContext(ctx, "profile cache invalidation failed", slog.Int64("athlete_id", athleteID), slog.Any("error", err))
	}
}

func validIDs(ids []int64) bool {
	for _, id := range ids {
		if id <= 0 {
			return false
		}
	}
	return true
}
