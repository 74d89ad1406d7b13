package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/gide-search/backend/internal/metrics"
	"github.com/gide-search/backend/internal/storage"
	"github.com/gide-search/backend/internal/util"
	"github.com/gide-search/backend/pkg/adapter"
	apiadapter "github.com/gide-search/backend/pkg/adapter/api"
	"github.com/gide-search/backend/pkg/adapter/rdf"
	"github.com/gide-search/backend/pkg/adapter/rocrate"
	"github.com/gide-search/backend/pkg/adapter/tabular"
	"github.com/gide-search/backend/pkg/leaselock"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/resolve"
	"github.com/gide-search/backend/pkg/study"
)

type rejectedRecord struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ProcessTransform harvests one source, validates and flattens its
// records, and enqueues the survivors for indexing. Rejected records
// never abort the batch; their reasons are archived to object storage.
func ProcessTransform(
	ctx context.Context,
	conn *pgxpool.Pool,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	m *metrics.Metrics,
	msg string,
) error {
	var data TransformJobMsg
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return err
	}

	source := study.Source(strings.ToUpper(data.Source))
	if !source.Valid() {
		return fmt.Errorf("unknown source %q", data.Source)
	}

	// One harvest per source at a time; a busy lock sends the job to
	// the retry queue.
	locks := leaselock.New(conn)
	return locks.WithLease(ctx, "transform:"+string(source), leaselock.Options{TTL: 30 * time.Minute}, func(ctx context.Context) error {
		return runTransform(ctx, s3Client, ch, m, source, data)
	})
}

func runTransform(
	ctx context.Context,
	s3Client *awss3.Client,
	ch *amqp091.Channel,
	m *metrics.Metrics,
	source study.Source,
	data TransformJobMsg,
) error {
	path := data.Path
	if strings.HasPrefix(path, "s3://") {
		prefix := strings.TrimPrefix(path, "s3://")
		tmpDir, err := os.MkdirTemp("", "gide-harvest-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		fetched, err := storage.FetchPrefix(ctx, s3Client, prefix, tmpDir)
		if err != nil {
			return fmt.Errorf("fetch input from object storage: %w", err)
		}
		logger.Info("[Transform] Fetched input files", "prefix", prefix, "count", fetched)
		path = tmpDir
	}

	ad, err := buildAdapter(source, path, data.Query)
	if err != nil {
		return err
	}

	retries := int(util.GetEnvNumeric("HARVEST_RETRIES", 3))
	records, err := util.RetryWithContext(ctx, retries, ad.Records)
	if err != nil {
		return fmt.Errorf("harvest %s: %w", source, err)
	}

	inputs := make([]resolve.Input, 0, len(records))
	for _, r := range records {
		inputs = append(inputs, resolve.Input{
			Source: adapter.RecordSource(ad, r),
			Suffix: r.Suffix,
			Graph:  r.Graph,
		})
	}

	parallel := int(util.GetEnvNumeric("TRANSFORM_PARALLEL", 4))
	summary := resolve.Run(ctx, inputs, parallel)

	if m != nil {
		m.TransformOutcomes.WithLabelValues(string(source), "accepted").Add(float64(summary.Succeeded))
		m.TransformOutcomes.WithLabelValues(string(source), "rejected").Add(float64(summary.Failed))
	}

	if summary.Failed > 0 {
		archiveRejects(ctx, s3Client, data.CorrelationID, summary)
	}

	studies := summary.Studies()
	if len(studies) == 0 {
		logger.Warn("[Transform] No records survived", "source", source, "correlation_id", data.CorrelationID)
		return nil
	}

	indexMsg, err := json.Marshal(IndexJobMsg{
		CorrelationID: data.CorrelationID,
		Source:        string(source),
		Studies:       studies,
	})
	if err != nil {
		return err
	}
	if err := PublishFIFO(ch, IndexQueue, indexMsg); err != nil {
		return fmt.Errorf("enqueue index job: %w", err)
	}

	logger.Info("[Transform] Batch enqueued for indexing",
		"source", source,
		"correlation_id", data.CorrelationID,
		"accepted", summary.Succeeded,
		"rejected", summary.Failed,
	)
	return nil
}

func buildAdapter(source study.Source, path string, query string) (adapter.Adapter, error) {
	switch source {
	case study.SourceIDR:
		if path == "" {
			path = util.GetEnv("IDR_STUDY_DIR")
		}
		return tabular.New(path), nil
	case study.SourceSSBD:
		if path == "" {
			path = util.GetEnv("SSBD_EXPORT_PATH")
		}
		return rdf.New(path), nil
	case study.SourceBIA:
		if query == "" {
			query = util.GetEnv("BIA_QUERY")
		}
		pageSize := int(util.GetEnvNumeric("BIA_PAGE_SIZE", 100))
		return apiadapter.New(query, pageSize), nil
	case study.SourceExternal:
		if path == "" {
			path = util.GetEnv("CRATE_DIR")
		}
		return rocrate.New(path), nil
	}
	return nil, fmt.Errorf("no adapter for source %q", source)
}

// archiveRejects writes the per-record failure reasons next to the
// correlation id so a rejected batch can be inspected later. Failure to
// archive is logged, never fatal.
func archiveRejects(ctx context.Context, s3Client *awss3.Client, correlationID string, summary resolve.Summary) {
	if s3Client == nil || correlationID == "" {
		return
	}

	rejects := make([]rejectedRecord, 0, summary.Failed)
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			rejects = append(rejects, rejectedRecord{ID: o.ID, Error: o.Err.Error()})
		}
	}

	body, err := json.MarshalIndent(rejects, "", "  ")
	if err != nil {
		logger.Warn("[Transform] Failed to marshal reject report", "correlation_id", correlationID, "err", err)
		return
	}

	name := correlationID + ".json"
	if _, err := storage.PutFile(ctx, s3Client, "rejects", name, correlationID, bytes.NewReader(body)); err != nil {
		logger.Warn("[Transform] Failed to archive reject report", "correlation_id", correlationID, "err", err)
	}
}
