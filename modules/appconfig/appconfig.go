package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dietprofile/core/dietprofile/adapters/cache"
	"dietprofile/core/dietprofile/adapters/locking"
	"dietprofile/core/dietprofile/adapters/references"
	"dietprofile/modules/db/postgres"
	"dietprofile/modules/db/redis"
	"dietprofile/modules/middleware/auth"
	"dietprofile/modules/middleware/ratelimit"
	"dietprofile/modules/rpc"
	"dietprofile/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		Env      string     `env:"ENV" envDefault:"dev"`
		LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

		HTTP HTTPConfig `envPrefix:"HTTP_"`

		// --- core infra ----
		Redis    redis.RedisConfig       `envPrefix:"REDIS_"`
		Postgres postgres.PostgresConfig `envPrefix:"POSTGRES_"`

		// --- remote services ----
		Users      rpc.ClientConfig  `envPrefix:"USER_MS_"`
		Catalog    rpc.ClientConfig  `envPrefix:"CATALOG_MS_"`
		References references.Config `envPrefix:"REFERENCES_"`

		// --- application ----
		CreateLock   locking.Config `envPrefix:"CREATE_LOCK_"`
		ProfileCache cache.Config   `envPrefix:"PROFILE_CACHE_"`

		// --- middlewares ----
		Auth      auth.Config              `envPrefix:"AUTH_"`
		RateLimit ratelimit.RestHTTPConfig `envPrefix:"RATE_LIMIT_"`

		// --- otel ----
		// since it has special naming conventions, we do not use prefix here
		Otel telemetry.Config
	}

	HTTPConfig struct {
		Host         string        `env:"HOST" envDefault:"0.0.0.0"`
		Port         int           `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}
)

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate collects every problem so a bad deployment reports them at once.
func validate(c *Config) error {
	var errs []error

	if c.Users.Port == 0 {
		errs = append(errs, errors.New("USER_MS_PORT is required"))
	}
	if c.Catalog.Port == 0 {
		errs = append(errs, errors.New("CATALOG_MS_PORT is required"))
	}
	if !c.Auth.Disabled && c.Auth.Secret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required unless AUTH_DISABLED is set"))
	}
	if c.Auth.Disabled && isProd(c.Env) {
		errs = append(errs, fmt.Errorf("AUTH_DISABLED is not allowed in %s", c.Env))
	}
	if c.References.Timeout <= 0 {
		errs = append(errs, errors.New("REFERENCES_TIMEOUT must be positive"))
	}
	if c.CreateLock.Enabled && c.CreateLock.HoldTimeout <= 0 {
		errs = append(errs, errors.New("CREATE_LOCK_HOLD_TIMEOUT must be positive"))
	}
	if c.ProfileCache.Enabled && c.ProfileCache.TTL <= 0 {
		errs = append(errs, errors.New("PROFILE_CACHE_TTL must be positive"))
	}
	if c.ProfileCache.ClientSide && !tracked(c.Redis, c.ProfileCache.Prefix) {
		errs = append(errs, fmt.Errorf("PROFILE_CACHE_CLIENT_SIDE needs %q in REDIS_CLIENT_TRACKING_PREFIXES", c.ProfileCache.Prefix))
	}

	if len(errs) > 0 {
		return fmt.Errorf("appconfig: %w", errors.Join(errs...))
	}
	return nil
}

// tracked reports whether keys under prefix get invalidation pushes.
func tracked(r redis.RedisConfig, prefix string) bool {
	if r.DisableCache {
		return false
	}
	for _, p := range r.ClientTrackingPrefixes {
		if strings.HasPrefix(prefix+":", p) {
			return true
		}
	}
	return false
}

func isProd(e string) bool {
	switch strings.ToLower(e) {
	case "prod", "production":
		return true
	}
	return false
}
