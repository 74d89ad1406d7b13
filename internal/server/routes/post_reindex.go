package routes

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/gide-search/backend/internal/queue"
	"github.com/gide-search/backend/internal/server/middleware"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/study"
)

func ReindexHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User

	type reindexParams struct {
		Source string `json:"source" validate:"required"`
		Path   string `json:"path"`
		Query  string `json:"query"`
	}

	var params reindexParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(&params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Source is required"})
	}

	source := study.Source(strings.ToUpper(params.Source))
	if !source.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown source: " + params.Source})
	}

	correlationID, _ := gonanoid.New()
	msg := queue.TransformJobMsg{
		CorrelationID: correlationID,
		Source:        string(source),
		Path:          params.Path,
		Query:         params.Query,
		RequestedBy:   user.Subject,
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create job"})
	}

	if err := queue.PublishFIFO(app.Queue, queue.TransformQueue, msgBytes); err != nil {
		logger.Error("[Server] Failed to enqueue transform job", "source", source, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue job"})
	}

	logger.Info("[Server] Reindex requested", "source", source, "correlation_id", correlationID, "requested_by", user.Subject)
	return c.JSON(http.StatusAccepted, map[string]string{
		"correlation_id": correlationID,
		"source":         string(source),
	})
}
