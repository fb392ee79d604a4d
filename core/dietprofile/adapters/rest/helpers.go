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
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"dietprofile/core/dietprofile/domain"
	"dietprofile/modules/api/serde"
	"dietprofile/modules/middleware/problem"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/nullable"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"go.opentelemetry.io/otel/trace"
)

type (
	// ProfileBody is the create and update payload. athleteId is accepted
	// and ignored, the path wins.
	ProfileBody struct {
		AthleteID         *int64                   `json:"athleteId,omitempty"`
		IntolerantFoodIDs *[]int64                 `json:"intolerantFoodIds,omitempty"`
		PreferredFoodIDs  *[]int64                 `json:"preferredFoodIds,omitempty"`
		DietTypeID        nullable.Nullable[int64] `json:"dietTypeId,omitempty"`
	}

	DietaryProfile struct {
		ID                types.UUID `json:"id"`
		AthleteID         int64      `json:"athleteId"`
		IntolerantFoodIDs []int64    `json:"intolerantFoodIds"`
		PreferredFoodIDs  []int64    `json:"preferredFoodIds"`
		DietTypeID        *int64     `json:"dietTypeId"`
		Version           int64      `json:"version"`
		CreatedAt         time.Time  `json:"createdAt"`
		UpdatedAt         time.Time  `json:"updatedAt"`
	}

	SuccessProfile struct {
		Data DietaryProfile `json:"data"`
	}
)

func mapProfile(p *domain.DietaryProfile) DietaryProfile {
	return DietaryProfile{
		ID:                types.UUID(p.ID),
		AthleteID:         p.AthleteID,
		IntolerantFoodIDs: orEmpty(p.IntolerantFoodIDs),
		PreferredFoodIDs:  orEmpty(p.PreferredFoodIDs),
		DietTypeID:        p.DietTypeID,
		Version:           p.Version,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func (b ProfileBody) draft() domain.ProfileDraft {
	d := domain.ProfileDraft{}
	if b.IntolerantFoodIDs != nil {
		d.IntolerantFoodIDs = *b.IntolerantFoodIDs
	}
	if b.PreferredFoodIDs != nil {
		d.PreferredFoodIDs = *b.PreferredFoodIDs
	}
	if b.DietTypeID.IsSpecified() && !b.DietTypeID.IsNull() {
		v := b.DietTypeID.MustGet()
		d.DietTypeID = &v
	}
	return d
}

func (b ProfileBody) patch() domain.ProfilePatch {
	p := domain.ProfilePatch{
		IntolerantFoodIDs: b.IntolerantFoodIDs,
		PreferredFoodIDs:  b.PreferredFoodIDs,
	}
	if b.DietTypeID.IsSpecified() {
		p.DietTypeSet = true
		if !b.DietTypeID.IsNull() {
			v := b.DietTypeID.MustGet()
			p.DietTypeID = &v
		}
	}
	return p
}

// bindAthleteID binds the athleteId path parameter.
func bindAthleteID(c echo.Context) (int64, *problem.Problem) {
	var athleteID int64
	err := runtime.BindStyledParameterWithOptions("simple", "athleteId", c.Param("athleteId"), &athleteID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || athleteID <= 0 {
		return 0, problem.BadRequest("invalid athlete id", problem.WithInvalidParam("athleteId", "must be a positive integer"))
	}
	return athleteID, nil
}

// bindBody decodes an optional JSON body. An empty body is a zero ProfileBody.
func bindBody(c echo.Context) (ProfileBody, *problem.Problem) {
	var body ProfileBody
	err := serde.ParseJsonBody(c.Request().Body, &body)
	if err != nil && !errors.Is(err, io.EOF) {
		return body, problem.BadRequest("malformed body", problem.WithInvalidParam("body", "invalid json"))
	}
	return body, nil
}

// problemFromError maps an application error onto its problem document.
// Business failures carry their category and message as extensions.
func problemFromError(ctx context.Context, err error) *problem.Problem {
	var opts []problem.Option
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, problem.WithTraceID(sc.TraceID().String()))
	}

	if be, ok := domain.AsBusinessError(err); ok {
		opts = append(opts,
			problem.WithExtension("category", string(be.Category)),
			problem.WithExtension("message", be.Message),
		)
		switch be.Category {
		case domain.CategoryNotFound:
			return problem.NotFound(be.Message, opts...)
		case domain.CategoryPreconditionFailed:
			return problem.PreconditionFailed(be.Message, opts...)
		}
	}

	switch {
	case errors.Is(err, domain.ErrTimeout):
		return problem.RequestTimeout("a dependency did not answer in time", opts...)
	case errors.Is(err, domain.ErrTransport):
		return problem.BadGateway("a dependency is unavailable", opts...)
	case errors.Is(err, domain.ErrInvalidData):
		return problem.BadRequest("invalid data", opts...)
	}
	return problem.Internal("server error", opts...)
}

func writeProblem(c echo.Context, p *problem.Problem) error {
	problem.Write(c.Response(), p)
	return nil
}

func writeJSON(c echo.Context, status int, v any) error {
	serde.WriteJSON(c.Response(), status, v)
	return nil
}

// ProblemErrorHandler renders echo's own errors (unknown route, wrong
// method) as problems.
func ProblemErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
	}
	problem.Write(c.Response(), problem.Status(status, http.StatusText(status)))
}
