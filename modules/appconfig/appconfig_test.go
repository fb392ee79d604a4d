package appconfig

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func required(t *testing.T) {
	t.Helper()
	t.Setenv("USER_MS_PORT", "3001")
	t.Setenv("CATALOG_MS_PORT", "3002")
	t.Setenv("AUTH_SECRET", "s3cret")
}

func TestLoadDefaults(t *testing.T) {
	required(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 8080 || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("defaults: port=%d level=%s", cfg.HTTP.Port, cfg.LogLevel)
	}
	if cfg.References.Timeout != 5*time.Second || cfg.References.FoodKey != "alimentoId" {
		t.Fatalf("references: got=%+v", cfg.References)
	}
	if cfg.Users.Address() != "localhost:3001" {
		t.Fatalf("users address: got=%s", cfg.Users.Address())
	}
	if !cfg.CreateLock.Enabled || !cfg.ProfileCache.Enabled {
		t.Fatalf("lock and cache on by default: got=%+v %+v", cfg.CreateLock, cfg.ProfileCache)
	}
}

func TestLoadOverrides(t *testing.T) {
	required(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFERENCES_FOOD_ROLE", "food")
	t.Setenv("CATALOG_MS_HOST", "catalog")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.References.FoodRole != "food" || cfg.Catalog.Host != "catalog" {
		t.Fatalf("overrides: got level=%s role=%s host=%s", cfg.LogLevel, cfg.References.FoodRole, cfg.Catalog.Host)
	}
}

func TestLoadReportsEveryProblem(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("AUTH_DISABLED", "true")

	_, err := Load()
	if err == nil {
		t.Fatalf("want error")
	}
	for _, want := range []string{"USER_MS_PORT", "CATALOG_MS_PORT", "AUTH_DISABLED"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestClientSideCacheNeedsTracking(t *testing.T) {
	required(t)
	t.Setenv("PROFILE_CACHE_CLIENT_SIDE", "true")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_CLIENT_TRACKING_PREFIXES") {
		t.Fatalf("untracked prefix: want tracking error got=%v", err)
	}

	t.Setenv("REDIS_CLIENT_TRACKING_PREFIXES", "dietprofile:profile:")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("tracked prefix: %v", err)
	}
	if !cfg.ProfileCache.ClientSide || cfg.ProfileCache.InvalidationHold != 5*time.Second {
		t.Fatalf("profile cache: got=%+v", cfg.ProfileCache)
	}
}
