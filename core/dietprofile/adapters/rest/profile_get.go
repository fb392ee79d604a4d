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

package rest

import (
	"net/http"

	"dietprofile/modules/etag"

	"github.com/labstack/echo/v4"
)

// GetByAthleteID answers 200 with the profile and its ETag, or 304 when
// If-None-Match already names the current version.
func (p *ProfileAPI) GetByAthleteID(c echo.Context) error {
	athleteID, prob := bindAthleteID(c)
	if prob != nil {
		return writeProblem(c, prob)
	}

	ctx := c.Request().Context()
	prof, err := p.app.GetProfile(ctx, athleteID)
	if err != nil {
		return writeProblem(c, problemFromError(ctx, err))
	}

	c.Response().Header().Set("ETag", etag.Header(prof))
	if etag.MatchesNoneOf(c.Request().Header.Get("If-None-Match"), prof) {
		return c.NoContent(http.StatusNotModified)
	}
	return writeJSON(c, http.StatusOK, SuccessProfile{Data: mapProfile(prof)})
}
