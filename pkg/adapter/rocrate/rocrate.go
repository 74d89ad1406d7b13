// Package rocrate ingests externally supplied RO-Crate packages:
// ro-crate-metadata.json documents already in the interchange shape.
// Unlike the other adapters it does not build graphs, it loads them,
// repairing slightly malformed JSON before giving up on a file.
package rocrate

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/gide-search/backend/pkg/adapter"
	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/study"
)

// sourcePatterns identify a crate's federation of origin from its
// publisher, first match wins. Accession prefixes are checked as a
// fallback.
var sourcePatterns = []struct {
	source   study.Source
	patterns []string
}{
	{study.SourceIDR, []string{"idr", "image data resource", "openmicroscopy"}},
	{study.SourceSSBD, []string{"ssbd", "riken"}},
	{study.SourceBIA, []string{"bia", "bioimage archive", "empiar", "ebi"}},
}

// Adapter loads one metadata file or every ro-crate-metadata.json found
// below a directory.
type Adapter struct {
	path string
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(path string) *Adapter {
	return &Adapter{path: path}
}

// Source is the default for crates whose provenance cannot be
// recognized; each record carries its detected source.
func (a *Adapter) Source() study.Source {
	return study.SourceExternal
}

func (a *Adapter) Records(ctx context.Context) ([]adapter.Record, error) {
	files, err := a.discover()
	if err != nil {
		return nil, err
	}

	var records []adapter.Record
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := loadFile(file)
		if err != nil {
			logger.Warn("[Adapter] Skipping unreadable crate", "file", file, "err", err)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

func (a *Adapter) discover() ([]string, error) {
	info, err := os.Stat(a.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", a.path, err)
	}
	if !info.IsDir() {
		return []string{a.path}, nil
	}

	var files []string
	err = filepath.WalkDir(a.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == crate.DescriptorID {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", a.path, err)
	}
	return files, nil
}

func loadFile(path string) (*adapter.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	g, err := crate.Parse(data)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, err
		}
		g, err = crate.Parse([]byte(repaired))
		if err != nil {
			return nil, err
		}
		logger.Warn("[Adapter] Repaired malformed crate JSON", "file", path)
	}

	suffix, source := classify(g)
	return &adapter.Record{Suffix: suffix, Source: source, Graph: g}, nil
}

// classify derives the record's id suffix from the root dataset and
// recognizes its federation of origin where possible.
func classify(g *crate.Graph) (string, study.Source) {
	root := rootDataset(g)
	if root == nil {
		return "unknown", study.SourceExternal
	}

	suffix := root.String(crate.PropIdentifier)
	if suffix == "" {
		suffix = lastPathSegment(root.String(crate.PropURL))
	}
	if suffix == "" {
		suffix = lastPathSegment(root.ID)
	}
	if suffix == "" {
		suffix = "unknown"
	}

	return suffix, detectSource(g, root, suffix)
}

func rootDataset(g *crate.Graph) *crate.Node {
	descriptor, ok := g.Node(crate.DescriptorID)
	if !ok {
		return nil
	}
	for _, id := range descriptor.Refs(crate.PropAbout) {
		if n, ok := g.Node(id); ok && n.HasType(crate.TypeDataset) {
			return n
		}
	}
	return nil
}

func detectSource(g *crate.Graph, root *crate.Node, suffix string) study.Source {
	for _, id := range root.Refs(crate.PropPublisher) {
		publisher, ok := g.Node(id)
		if !ok {
			continue
		}
		text := strings.ToLower(publisher.String(crate.PropName) + " " + publisher.String(crate.PropURL) + " " + publisher.ID)
		for _, entry := range sourcePatterns {
			for _, p := range entry.patterns {
				if strings.Contains(text, p) {
					return entry.source
				}
			}
		}
	}

	upper := strings.ToUpper(suffix)
	switch {
	case strings.HasPrefix(upper, "IDR"):
		return study.SourceIDR
	case strings.HasPrefix(upper, "SSBD"):
		return study.SourceSSBD
	case strings.HasPrefix(upper, "S-BIAD"), strings.HasPrefix(upper, "EMPIAR"):
		return study.SourceBIA
	}
	return study.SourceExternal
}

func lastPathSegment(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
