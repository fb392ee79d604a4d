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

package services

import (
	"net/http"
	"strings"

	"dietprofile/core/dietprofile/adapters/rest"
	"dietprofile/modules/middleware"
	"dietprofile/modules/server"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

var _ server.RegistrableService = (*DietaryProfileService)(nil)

const profilesPrefix = "/v1/dietary-profiles/"

// DietaryProfileService mounts the dietary profile API on the server mux.
// The routes are served by an echo instance. The bearer guard and request
// validation run ahead of it, in that order, as global middlewares.
type DietaryProfileService struct {
	api   *rest.ProfileAPI
	spec  *openapi3.T
	guard func(http.Handler) http.Handler
}

// NewDietaryProfileService wires api behind spec validation. guard, when not
// nil, protects the profile routes; the health route stays open.
func NewDietaryProfileService(api *rest.ProfileAPI, spec *openapi3.T, guard func(http.Handler) http.Handler) *DietaryProfileService {
	return &DietaryProfileService{api: api, spec: spec, guard: guard}
}

// Register builds the echo router and mounts it for the API prefixes.
func (s *DietaryProfileService) Register(mux *http.ServeMux) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = rest.ProblemErrorHandler

	s.api.Register(e)

	mux.Handle(profilesPrefix, e)
	mux.Handle("/healthz", e)
}

// Middlewares returns the profile route guard followed by OpenAPI request
// validation, so an anonymous caller gets 401 before any schema diagnostics.
func (s *DietaryProfileService) Middlewares() []func(http.Handler) http.Handler {
	var mws []func(http.Handler) http.Handler
	if s.guard != nil {
		mws = append(mws, under(profilesPrefix, s.guard))
	}
	if s.spec != nil {
		mws = append(mws, middleware.OpenAPIValidation(s.spec))
	}
	return mws
}

// under applies mw to requests whose path starts with prefix.
func under(prefix string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				guarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
