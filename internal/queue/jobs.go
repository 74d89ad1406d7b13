package queue

import (
	"github.com/gide-search/backend/pkg/study"
)

// TransformJobMsg asks the worker to harvest one source, validate and
// flatten its records, and hand the survivors to the index queue.
type TransformJobMsg struct {
	CorrelationID string `json:"correlation_id"`
	Source        string `json:"source"`
	// Path overrides the source's configured input location. An
	// "s3://" prefix means the input is fetched from object storage
	// first.
	Path        string `json:"path,omitempty"`
	Query       string `json:"query,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// IndexJobMsg carries a batch of flattened records to be stored.
type IndexJobMsg struct {
	CorrelationID string        `json:"correlation_id"`
	Source        string        `json:"source"`
	Studies       []study.Study `json:"studies"`
}

// DeleteJobMsg asks the worker to drop and recreate the index.
type DeleteJobMsg struct {
	CorrelationID string `json:"correlation_id"`
	RequestedBy   string `json:"requested_by,omitempty"`
}
