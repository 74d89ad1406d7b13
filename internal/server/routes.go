package server

import (
	"net/http"

	"github.com/gide-search/backend/internal/metrics"
	"github.com/gide-search/backend/internal/server/middleware"
	"github.com/gide-search/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		app := c.(*middleware.AppContext).App
		if err := app.Engine.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	// Public search surface
	e.GET("/search", routes.SearchHandler)
	e.GET("/schema", routes.GetSchemaHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Study routes
	apiRoutes.GET("/studies/:id", routes.GetStudyHandler)

	// Index administration routes
	apiRoutes.POST("/reindex", routes.ReindexHandler, middleware.RequirePermission("index.reindex"))
	apiRoutes.DELETE("/index", routes.DeleteIndexHandler, middleware.RequirePermission("index.delete"))
}
