package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/gide-search/backend/internal/queue"
	"github.com/gide-search/backend/internal/server/middleware"
	"github.com/gide-search/backend/pkg/logger"
)

func DeleteIndexHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	user := c.(*middleware.AppContext).User

	correlationID, _ := gonanoid.New()
	msg := queue.DeleteJobMsg{
		CorrelationID: correlationID,
		RequestedBy:   user.Subject,
	}

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create job"})
	}

	if err := queue.PublishFIFO(app.Queue, queue.DeleteQueue, msgBytes); err != nil {
		logger.Error("[Server] Failed to enqueue delete job", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue job"})
	}

	logger.Info("[Server] Index deletion requested", "correlation_id", correlationID, "requested_by", user.Subject)
	return c.JSON(http.StatusAccepted, map[string]string{"correlation_id": correlationID})
}
