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

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dietprofile/migrations"
	"dietprofile/modules/appconfig"
	"dietprofile/modules/clock"
	"dietprofile/modules/db/postgres"
	"dietprofile/modules/db/redis"
	"dietprofile/modules/db/redis/counter"
	redislocking "dietprofile/modules/db/redis/locking"
	"dietprofile/modules/middleware"
	"dietprofile/modules/middleware/auth"
	"dietprofile/modules/middleware/ratelimit"
	"dietprofile/modules/oapi"
	rl "dietprofile/modules/ratelimit"
	"dietprofile/modules/rpc"
	"dietprofile/modules/server"
	"dietprofile/modules/services"
	"dietprofile/modules/telemetry"

	"dietprofile/core/dietprofile/adapters/cache"
	"dietprofile/core/dietprofile/adapters/locking"
	persistence "dietprofile/core/dietprofile/adapters/persistence/pg"
	"dietprofile/core/dietprofile/adapters/references"
	"dietprofile/core/dietprofile/adapters/rest"
	"dietprofile/core/dietprofile/domain"
)

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		exitCode = 1
		return
	}

	// manual dependency injections, imo there's no need to over-engineer with DI frameworks like Fx or Wire
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: appConfig.LogLevel})))

	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// --- infrastructure ---

	connectionPool, err := postgres.New(
		ctx,
		&appConfig.Postgres,
		postgres.PostgresOptions{
			WriterOptions: []postgres.PgxConfigOption{
				postgres.WithApplicationName(appConfig.Otel.ServiceName),
				postgres.WithHealthCheckPeriod(appConfig.Postgres.HealthCheckPeriod),
			},
			// replicas sit behind pgBouncer, the writer keeps prepared statements
			ReaderOptions: []postgres.PgxConfigOption{
				postgres.WithApplicationName(appConfig.Otel.ServiceName),
				postgres.WithHealthCheckPeriod(appConfig.Postgres.HealthCheckPeriod),
				postgres.WithPgBouncerSimpleProtocol(),
			},
			Migrations: migrations.FS,
		},
	)
	if err != nil {
		slog.ErrorContext(ctx, "database error", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := connectionPool.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "database shutdown error", slog.Any("error", err))
		}
	}()

	if err = connectionPool.HealthCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "database health check failed", slog.Any("error", err))
		exitCode = 1
		return
	}

	if appConfig.Postgres.AutoMigrate {
		if err := connectionPool.MigrateUp(ctx); err != nil {
			slog.ErrorContext(ctx, "database migration failed", slog.Any("error", err))
			exitCode = 1
			return
		}
	}

	// Initialize reader (uses runtime replica selection) and writer (uses prepared statements on primary)
	reader := persistence.NewPostgresProfileReader(connectionPool, persistence.DefaultTable)

	writer, err := persistence.NewPostgresProfileWriter(ctx, connectionPool, persistence.DefaultTable)
	if err != nil {
		slog.ErrorContext(ctx, "profile writer initialization error", slog.Any("error", err))
		exitCode = 1
		return
	}

	redisClient, err := redis.NewRueidisClient(ctx, appConfig.Redis)
	if err != nil {
		slog.ErrorContext(ctx, "redis not properly setup", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer redisClient.Close()

	kvOpts := []redis.RedisKVOption{
		redis.WithKeyPrefix(appConfig.ProfileCache.Prefix),
		redis.WithDefaultTTL(appConfig.ProfileCache.TTL),
	}
	if appConfig.ProfileCache.ClientSide {
		kvOpts = append(kvOpts, redis.WithClientSideCache())
	}
	redisKV := redis.NewRedisKV(redisClient, kvOpts...)

	// --- remote services ---

	users := rpc.NewClient("users", appConfig.Users)
	defer users.Close()
	catalog := rpc.NewClient("catalog", appConfig.Catalog)
	defer catalog.Close()

	refMetrics, err := telemetry.NewReferenceMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize reference metrics, continuing without metrics", slog.Any("error", err))
		refMetrics = nil
	}
	refOpts := []references.Option{
		references.WithTimeout(appConfig.References.Timeout),
		references.WithMetrics(refMetrics),
	}
	refs := domain.References{
		Athletes:  references.NewResolver(users, appConfig.References.Athletes(), refOpts...),
		Foods:     references.NewResolver(catalog, appConfig.References.Foods(), refOpts...),
		DietTypes: references.NewResolver(catalog, appConfig.References.DietTypes(), refOpts...),
	}

	// --- application layer ---

	var appOpts []domain.Option
	if appConfig.ProfileCache.Enabled {
		appOpts = append(appOpts, domain.WithProfileCache(cache.NewProfileCache(redisKV, appConfig.ProfileCache.InvalidationHold)))
	}
	if appConfig.CreateLock.Enabled {
		locker, err := redis.NewLocker(appConfig.Redis, "dietprofile:lock:")
		if err != nil {
			slog.ErrorContext(ctx, "redis locker not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer locker.Close()

		executor := redislocking.NewLockingTaskExecutor(locker,
			redislocking.WithWaitForLock(true),
			redislocking.WithAcquireTimeout(appConfig.CreateLock.AcquireTimeout),
			redislocking.WithLogger(slog.Default()),
		)
		appOpts = append(appOpts, domain.WithAthleteLock(locking.NewAthleteLock(executor, appConfig.CreateLock.HoldTimeout)))
	}

	app := domain.NewApp(reader, writer, connectionPool, refs, appOpts...)

	// --- transport ---

	spec, err := middleware.LoadSpec(oapi.FS, oapi.DietaryProfileSpec)
	if err != nil {
		slog.ErrorContext(ctx, "openapi spec not loadable", slog.Any("error", err))
		exitCode = 1
		return
	}

	guard, err := auth.Bearer(appConfig.Auth)
	if err != nil {
		slog.ErrorContext(ctx, "authorization not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	if appConfig.Auth.Disabled {
		slog.WarnContext(ctx, "authorization disabled, profile routes are open")
	}

	profileAPI := rest.NewProfileAPI(app, rest.WithHealthIndicator("redis", redisKV))
	profileSvc := services.NewDietaryProfileService(profileAPI, spec, guard)

	// Initialize HTTP metrics for middleware-based instrumentation
	httpMetrics, err := telemetry.NewHTTPMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}

	globalMiddlewares := []func(http.Handler) http.Handler{
		middleware.Telemetry(httpMetrics),
		middleware.Recovery(middleware.ProblemPanicHandler),
	}

	if appConfig.RateLimit.Enabled {
		slog.Debug("app rate limit config", slog.Any("rate_limit_config", appConfig.RateLimit))

		rtp, err := ratelimit.ParsePolicy(
			rl.SlidingWindowFactory(clock.RealClockProvider(), counter.NewRedisCounterStore(redisClient, "dietprofile:ratelimit"), appConfig.Env),
			&appConfig.RateLimit,
			ratelimit.PathRouteInfo,
			ratelimit.KeyStrategies(),
		)
		if err != nil {
			slog.ErrorContext(ctx, "ratelimit config not properly parsed", slog.Any("error", err))
			exitCode = 1
			return
		}
		globalMiddlewares = append(globalMiddlewares, ratelimit.NewRateLimitMiddleware(rtp))
	}

	srv, err := server.New(
		appConfig.HTTP.Host, appConfig.HTTP.Port,
		server.WithReadTimeout(appConfig.HTTP.ReadTimeout),
		server.WithWriteTimeout(appConfig.HTTP.WriteTimeout),
		server.WithIdleTimeout(appConfig.HTTP.IdleTimeout),
		server.WithGlobalMiddlewares(globalMiddlewares...),
		server.WithServices(profileSvc),
	)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if err := srv.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}
