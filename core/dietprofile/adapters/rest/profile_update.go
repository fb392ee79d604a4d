package rest

import (
	"log/slog"
	"net/http"

	"dietprofile/modules/etag"

	"github.com/labstack/echo/v4"
)

// Update merges the fields present in the body onto the profile. A null
// dietTypeId clears it, an absent one leaves it alone.
func (p *ProfileAPI) Update(c echo.Context) error {
	athleteID, prob := bindAthleteID(c)
	if prob != nil {
		return writeProblem(c, prob)
	}
	body, prob := bindBody(c)
	if prob != nil {
		return writeProblem(c, prob)
	}

	ctx := c.Request().Context()
	updated, err := p.app.UpdateProfile(ctx, athleteID, body.patch())
	if err != nil {
		slog.DebugContext(ctx, "domain error", slog.Any("error", err))
		return writeProblem(c, problemFromError(ctx, err))
	}

	c.Response().Header().Set("ETag", etag.Header(updated))
	return writeJSON(c, http.StatusOK, SuccessProfile{Data: mapProfile(updated)})
}
