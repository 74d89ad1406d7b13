package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gide-search/backend/internal/server/middleware"
	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/search"
)

func SearchHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	var req search.Request
	if err := c.Bind(&req); err != nil {
		app.Metrics.SearchRequests.WithLabelValues("bad_request").Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid query parameters"})
	}

	resp, err := search.Search(c.Request().Context(), app.Engine, req)
	if err != nil {
		var badReq *search.BadRequestError
		switch {
		case errors.As(err, &badReq):
			app.Metrics.SearchRequests.WithLabelValues("bad_request").Inc()
			return c.JSON(http.StatusBadRequest, map[string]string{"error": badReq.Reason})
		case errors.Is(err, index.ErrUnavailable):
			app.Metrics.SearchRequests.WithLabelValues("unavailable").Inc()
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Search engine unavailable"})
		default:
			app.Metrics.SearchRequests.WithLabelValues("error").Inc()
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Search failed"})
		}
	}

	app.Metrics.SearchRequests.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, resp)
}
