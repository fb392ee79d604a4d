package rest

import (
	"fmt"
	"log/slog"
	"net/http"

	"dietprofile/modules/etag"

	"github.com/labstack/echo/v4"
)

func (p *ProfileAPI) Create(c echo.Context) error {
	athleteID, prob := bindAthleteID(c)
	if prob != nil {
		return writeProblem(c, prob)
	}
	body, prob := bindBody(c)
	if prob != nil {
		return writeProblem(c, prob)
	}
	if body.AthleteID != nil && *body.AthleteID != athleteID {
		slog.DebugContext(c.Request().Context(), "body athlete id ignored",
			slog.Int64("path", athleteID), slog.Int64("body", *body.AthleteID))
	}

	ctx := c.Request().Context()
	created, err := p.app.CreateProfile(ctx, athleteID, body.draft())
	if err != nil {
		slog.DebugContext(ctx, "domain error", slog.Any("error", err))
		return writeProblem(c, problemFromError(ctx, err))
	}

	h := c.Response().Header()
	h.Set("Location", fmt.Sprintf("/v1/dietary-profiles/%d", created.AthleteID))
	h.Set("ETag", etag.Header(created))
	return writeJSON(c, http.StatusCreated, SuccessProfile{Data: mapProfile(created)})
}
