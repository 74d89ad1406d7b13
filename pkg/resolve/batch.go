package resolve

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/profile"
	"github.com/gide-search/backend/pkg/study"
)

// Input is one record of a transformation batch: a graph plus the
// adapter-supplied identity.
type Input struct {
	Source study.Source
	Suffix string
	Graph  *crate.Graph
}

// Outcome records what happened to one input. Exactly one of Study and
// Err is set.
type Outcome struct {
	ID    string
	Study *study.Study
	Err   error
}

// Summary is the result of a batch run.
type Summary struct {
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

// Studies returns the successfully flattened aggregates in input order.
func (s Summary) Studies() []study.Study {
	out := make([]study.Study, 0, s.Succeeded)
	for _, o := range s.Outcomes {
		if o.Study != nil {
			out = append(out, *o.Study)
		}
	}
	return out
}

// Run validates and flattens a batch of graphs. Records are independent
// and processed in parallel; a failure in one never aborts the others.
// Outcomes keep input order regardless of completion order.
func Run(ctx context.Context, inputs []Input, parallel int) Summary {
	if parallel <= 0 {
		parallel = 4
	}

	outcomes := make([]Outcome, len(inputs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	var mu sync.Mutex

	for i, input := range inputs {
		i, input := i, input
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				mu.Lock()
				outcomes[i] = Outcome{ID: recordID(input), Err: gCtx.Err()}
				mu.Unlock()
				return nil
			default:
			}

			outcome := transformOne(input)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	summary := Summary{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	logger.Info("[Transform] Batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary
}

func recordID(in Input) string {
	return in.Source.Prefix() + ":" + in.Suffix
}

func transformOne(in Input) Outcome {
	id := recordID(in)

	report := profile.Validate(in.Graph)
	if err := report.Error(); err != nil {
		logger.Warn("[Transform] Rejected by profile", "record", id, "err", err)
		return Outcome{ID: id, Err: err}
	}

	flattened, err := Flatten(in.Graph, in.Source, in.Suffix)
	if err != nil {
		logger.Error("[Transform] Resolution defect", "record", id, "err", err)
		return Outcome{ID: id, Err: err}
	}
	return Outcome{ID: id, Study: flattened}
}
