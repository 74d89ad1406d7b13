package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gide-search/backend/pkg/study"
)

func GetSchemaHandler(c echo.Context) error {
	schema, err := study.JSONSchema()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to render schema"})
	}
	return c.JSONBlob(http.StatusOK, schema)
}
