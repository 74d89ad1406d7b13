package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gide-search/backend/internal/metrics"
	"github.com/gide-search/backend/pkg/index"
	"github.com/gide-search/backend/pkg/logger"
)

// ProcessIndexJob stores a batch of flattened records. Indexing is
// idempotent per record id, so redelivery after a partial failure is
// safe.
func ProcessIndexJob(
	ctx context.Context,
	engine index.Engine,
	m *metrics.Metrics,
	msg string,
) error {
	var data IndexJobMsg
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	if len(data.Studies) == 0 {
		logger.Warn("[Index] Empty batch", "correlation_id", data.CorrelationID)
		return nil
	}

	stored, failed, err := engine.BulkIndex(ctx, data.Studies)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}

	logger.Info("[Index] Batch stored",
		"source", data.Source,
		"correlation_id", data.CorrelationID,
		"stored", stored,
		"failed", failed,
	)

	if m != nil {
		if total, countErr := engine.Count(ctx); countErr == nil {
			m.IndexedDocuments.Set(float64(total))
		}
	}

	if failed > 0 {
		return fmt.Errorf("bulk index stored %d of %d documents", stored, len(data.Studies))
	}
	return nil
}
