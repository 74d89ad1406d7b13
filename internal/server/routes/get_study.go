package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gide-search/backend/internal/server/middleware"
	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/search"
)

func GetStudyHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	id := c.Param("id")
	doc, err := search.Get(c.Request().Context(), app.Engine, id)
	if err != nil {
		var badReq *search.BadRequestError
		switch {
		case errors.As(err, &badReq):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": badReq.Reason})
		case errors.Is(err, index.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Study not found"})
		case errors.Is(err, index.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Search engine unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Lookup failed"})
		}
	}

	return c.JSON(http.StatusOK, doc)
}
