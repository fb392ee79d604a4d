package rest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dietprofile/modules/worker"

	"github.com/labstack/echo/v4"
)

const healthTimeout = 3 * time.Second

type (
	// HealthIndicator is one dependency's state.
	HealthIndicator struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}

	// Health follows the terminus report layout: up dependencies in info,
	// down ones in error, all of them in details.
	Health struct {
		Status  string                     `json:"status"`
		Info    map[string]HealthIndicator `json:"info"`
		Error   map[string]HealthIndicator `json:"error"`
		Details map[string]HealthIndicator `json:"details"`
	}
)

// probeFunc adapts a check function to db.HealthManager.
type probeFunc func(ctx context.Context) error

func (f probeFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func (p *ProfileAPI) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	report := Health{
		Status:  "ok",
		Info:    map[string]HealthIndicator{},
		Error:   map[string]HealthIndicator{},
		Details: map[string]HealthIndicator{},
	}

	// dependencies are probed in parallel, a slow one only costs its own timeout
	var mu sync.Mutex
	indicators := append([]indicator{{name: "database", probe: probeFunc(p.app.HealthCheck)}}, p.indicators...)
	worker.Each(ctx, len(indicators), indicators, func(ctx context.Context, ind indicator) {
		err := ind.probe.HealthCheck(ctx)

		state := HealthIndicator{Status: "up"}
		if err != nil {
			slog.WarnContext(ctx, "health check failed", slog.String("indicator", ind.name), slog.Any("error", err))
			state = HealthIndicator{Status: "down", Message: err.Error()}
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Status = "error"
			report.Error[ind.name] = state
		} else {
			report.Info[ind.name] = state
		}
		report.Details[ind.name] = state
	})

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return writeJSON(c, status, report)
}
