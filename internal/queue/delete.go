package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gide-search/backend/internal/metrics"
	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/logger"
)

// ProcessDeleteJob drops the index and recreates it empty. Used before
// a full re-harvest of every source.
func ProcessDeleteJob(
	ctx context.Context,
	engine index.Engine,
	m *metrics.Metrics,
	msg string,
) error {
	var data DeleteJobMsg
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	if err := engine.DeleteIndex(ctx); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if err := engine.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}

	if m != nil {
		m.IndexedDocuments.Set(0)
	}

	logger.Info("[Index] Index dropped and recreated",
		"correlation_id", data.CorrelationID,
		"requested_by", data.RequestedBy,
	)
	return nil
}
