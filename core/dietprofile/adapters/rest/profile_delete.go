package rest

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (p *ProfileAPI) Delete(c echo.Context) error {
	athleteID, prob := bindAthleteID(c)
	if prob != nil {
		return writeProblem(c, prob)
	}

	ctx := c.Request().Context()
	if err := p.app.DeleteProfile(ctx, athleteID); err != nil {
		return writeProblem(c, problemFromError(ctx, err))
	}
	return c.NoContent(http.StatusNoContent)
}
