// Package adapter defines the boundary between external metadata
// sources and the interchange graph. Each adapter reads one source's
// native format and emits entity graphs; validation and flattening
// happen downstream and are shared by all sources.
package adapter

import (
	"context"
	"crypto/md5"
	"fmt"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/study"
)

// Record is one study's worth of source metadata, expressed as an
// entity graph plus the locally meaningful identifier suffix the
// resolver namespaces under the source prefix. Source is set when a
// record's provenance differs from the adapter's default, e.g. an
// external package that turns out to be an IDR study; the zero value
// defers to Adapter.Source.
type Record struct {
	Suffix string
	Source study.Source
	Graph  *crate.Graph
}

// RecordSource returns the record's own source when set, the adapter's
// otherwise.
func RecordSource(a Adapter, r Record) study.Source {
	if r.Source.Valid() {
		return r.Source
	}
	return a.Source()
}

// Adapter turns one source's native metadata into interchange graphs.
type Adapter interface {
	// Source identifies the federation this adapter reads from.
	Source() study.Source
	// Records produces one graph per study. A record that cannot be
	// read at all is skipped with a log line; Records only errors when
	// the source itself is unreachable.
	Records(ctx context.Context) ([]Record, error)
}

// NewCrate starts a graph with the self-describing descriptor node and
// the root dataset it points at. rootID must be an absolute URL.
func NewCrate(rootID string) (*crate.Graph, *crate.Node) {
	g := crate.NewGraph()

	descriptor := g.AddNode(crate.DescriptorID, crate.TypeCreativeWork)
	descriptor.Add(crate.PropConformsTo, crate.Ref(crate.ProfileBase+crate.MinProfileVersion))
	descriptor.Add(crate.PropAbout, crate.Ref(rootID))

	root := g.AddNode(rootID, crate.TypeDataset)
	return g, root
}

// FragmentID derives a stable fragment identifier for an entity the
// source does not give its own IRI, hashing a natural key the way the
// interchange documents do.
func FragmentID(key string) string {
	return fmt.Sprintf("#%x", md5.Sum([]byte(key)))
}
