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

// Package rest exposes dietary profiles over HTTP with echo.
package rest

import (
	"context"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/db"

	"github.com/labstack/echo/v4"
)

// ProfileApp is the application surface the handlers drive.
type ProfileApp interface {
	CreateProfile(ctx context.Context, athleteID int64, d domain.ProfileDraft) (*domain.DietaryProfile, error)
	UpdateProfile(ctx context.Context, athleteID int64, patch domain.ProfilePatch) (*domain.DietaryProfile, error)
	GetProfile(ctx context.Context, athleteID int64) (*domain.DietaryProfile, error)
	DeleteProfile(ctx context.Context, athleteID int64) error
	HealthCheck(ctx context.Context) error
}

var _ ProfileApp = (*domain.Application)(nil)

type ProfileAPI struct {
	app        ProfileApp
	indicators []indicator
}

type indicator struct {
	name  string
	probe db.HealthManager
}

type Option func(*ProfileAPI)

// WithHealthIndicator adds a dependency to the health report next to the
// database.
func WithHealthIndicator(name string, probe db.HealthManager) Option {
	return func(p *ProfileAPI) {
		p.indicators = append(p.indicators, indicator{name: name, probe: probe})
	}
}

func NewProfileAPI(app ProfileApp, opts ...Option) *ProfileAPI {
	p := &ProfileAPI{app: app}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Register mounts the routes. guard, when set, protects the profile routes
// only.
func (p *ProfileAPI) Register(e *echo.Echo, guard ...echo.MiddlewareFunc) {
	e.GET("/healthz", p.HealthCheck)

	g := e.Group("/v1/dietary-profiles", guard...)
	g.GET("/:athleteId", p.GetByAthleteID)
	g.POST("/:athleteId", p.Create)
	g.PUT("/:athleteId", p.Update)
	g.DELETE("/:athleteId", p.Delete)
}
