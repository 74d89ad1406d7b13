// Package tabular reads IDR study metadata dumps: tab-separated
// key/value files where a key may repeat or carry several columns.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gide-search/backend/pkg/adapter"
	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/study"
)

const (
	keyAccession        = "Comment[IDR Study Accession]"
	keyTitle            = "Study Title"
	keyDescription      = "Study Description"
	keyReleaseDate      = "Study Public Release Date"
	keyLicense          = "Study License"
	keyAuthorList       = "Study Author List"
	keyOrganism         = "Study Organism"
	keyOrganismTerm     = "Study Organism Term Accession"
	keyImagingMethod    = "Screen Imaging Method"
	keyImagingTerm      = "Screen Imaging Method Term Accession"
	keySampleType       = "Screen Sample Type"
	keyPubmedID         = "Study PubMed ID"
	keyDOI              = "Study DOI"
	keyPublicationTitle = "Study Publication Title"
)

var (
	accessionPattern = regexp.MustCompile(`(idr\d+)`)
	ncbiPattern      = regexp.MustCompile(`NCBITaxon_(\d+)`)
	fbbiPattern      = regexp.MustCompile(`FBbi_(\d+)`)
)

// Adapter walks an IDR metadata checkout and emits one graph per
// study.txt file.
type Adapter struct {
	dir string
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(dir string) *Adapter {
	return &Adapter{dir: dir}
}

func (a *Adapter) Source() study.Source {
	return study.SourceIDR
}

func (a *Adapter) Records(ctx context.Context) ([]adapter.Record, error) {
	files, err := filepath.Glob(filepath.Join(a.dir, "idr*", "*-study.txt"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.dir, err)
	}

	var records []adapter.Record
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := a.readStudy(file)
		if err != nil {
			logger.Warn("[Adapter] Skipping unreadable study file", "file", file, "err", err)
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

func (a *Adapter) readStudy(path string) (*adapter.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields, err := parseStudyFile(f)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no metadata rows")
	}

	suffix := first(fields[keyAccession])
	if suffix == "" {
		if m := accessionPattern.FindStringSubmatch(filepath.Base(path)); m != nil {
			suffix = m[1]
		} else {
			suffix = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
	}

	return &adapter.Record{Suffix: suffix, Graph: buildGraph(fields, suffix)}, nil
}

// parseStudyFile accumulates the tab-separated rows into a multi-value
// map. Comment rows start with # (sometimes inside quotes); empty
// columns are dropped.
func parseStudyFile(r io.Reader) (map[string][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	fields := map[string][]string{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(row[0])
		if key == "" || strings.HasPrefix(key, "#") || strings.HasPrefix(key, `"#`) {
			continue
		}
		for _, v := range row[1:] {
			if v = strings.TrimSpace(v); v != "" {
				fields[key] = append(fields[key], v)
			}
		}
	}
	return fields, nil
}

func buildGraph(fields map[string][]string, suffix string) *crate.Graph {
	rootID := "https://idr.openmicroscopy.org/search/?query=Name:" + suffix
	g, root := adapter.NewCrate(rootID)

	title := first(fields[keyTitle])
	if title == "" {
		title = suffix
	}
	description := first(fields[keyDescription])
	if description == "" {
		description = title
	}
	root.Set(crate.PropName, crate.Lit(title))
	root.Set(crate.PropDescription, crate.Lit(description))
	root.Set(crate.PropURL, crate.Lit(rootID))
	root.Set(crate.PropIdentifier, crate.Lit(suffix))

	if date := first(fields[keyReleaseDate]); date != "" {
		root.Set(crate.PropDatePublished, crate.Lit(date))
	}
	if license := first(fields[keyLicense]); license != "" {
		root.Set(crate.PropLicense, crate.Lit(license))
	}

	publisher := g.AddNode("https://idr.openmicroscopy.org/", crate.TypeOrganization)
	publisher.Set(crate.PropName, crate.Lit("Image Data Resource"))
	publisher.Set(crate.PropURL, crate.Lit("https://idr.openmicroscopy.org/"))
	root.Add(crate.PropPublisher, crate.Ref(publisher.ID))

	for _, name := range splitAuthors(first(fields[keyAuthorList])) {
		person := g.AddNode(adapter.FragmentID("person/"+name), crate.TypePerson)
		person.Set(crate.PropName, crate.Lit(name))
		root.Add(crate.PropAuthor, crate.Ref(person.ID))
	}

	addBiology(g, root, suffix, fields)
	addMethods(g, root, suffix, fields)
	addPublications(g, root, fields)

	return g
}

// addBiology emits one biosample carrying every organism the dump
// declares. Each taxon is linked both from the biosample and from the
// root, the shape the interchange profile expects.
func addBiology(g *crate.Graph, root *crate.Node, suffix string, fields map[string][]string) {
	sample := g.AddNode(adapter.FragmentID(suffix+"/biosample"), crate.TypeBioSample)
	sampleType := first(fields[keySampleType])
	if sampleType != "" {
		sample.Set(crate.PropName, crate.Lit(sampleType))
		sample.Set(crate.PropDescription, crate.Lit(sampleType))
	} else {
		sample.Set(crate.PropName, crate.Lit(suffix+" sample"))
	}
	root.Add(crate.PropAbout, crate.Ref(sample.ID))

	names := fields[keyOrganism]
	accessions := fields[keyOrganismTerm]
	for i, name := range names {
		taxonID := adapter.FragmentID("taxon/" + name)
		if i < len(accessions) {
			if m := ncbiPattern.FindStringSubmatch(accessions[i]); m != nil {
				taxonID = "http://purl.obolibrary.org/obo/NCBITaxon_" + m[1]
			}
		}
		taxon := g.AddNode(taxonID, crate.TypeTaxon)
		taxon.Set(crate.PropScientificName, crate.Lit(name))
		sample.Add(crate.PropTaxonomicRange, crate.Ref(taxon.ID))
		root.Add(crate.PropAbout, crate.Ref(taxon.ID))
	}
}

func addMethods(g *crate.Graph, root *crate.Node, suffix string, fields map[string][]string) {
	protocol := g.AddNode(adapter.FragmentID(suffix+"/protocol"), crate.TypeLabProtocol)
	protocol.Set(crate.PropName, crate.Lit(suffix+" image acquisition"))
	root.Add(crate.PropMeasurementMethod, crate.Ref(protocol.ID))

	names := fields[keyImagingMethod]
	accessions := fields[keyImagingTerm]
	for i, name := range names {
		termID := adapter.FragmentID("method/" + name)
		if i < len(accessions) {
			if m := fbbiPattern.FindStringSubmatch(accessions[i]); m != nil {
				termID = "http://purl.obolibrary.org/obo/FBbi_" + m[1]
			}
		}
		term := g.AddNode(termID, crate.TypeDefinedTerm)
		term.Set(crate.PropName, crate.Lit(name))
		protocol.Add(crate.PropMeasurementTechnique, crate.Ref(term.ID))
		root.Add(crate.PropMeasurementMethod, crate.Ref(term.ID))
	}
}

// addPublications zips the parallel pubmed/doi/title columns; rows
// where all three are absent are dropped.
func addPublications(g *crate.Graph, root *crate.Node, fields map[string][]string) {
	pmids := fields[keyPubmedID]
	dois := fields[keyDOI]
	titles := fields[keyPublicationTitle]

	count := max(len(pmids), max(len(dois), len(titles)))
	for i := 0; i < count; i++ {
		pmid, doi, title := at(pmids, i), at(dois, i), at(titles, i)
		if pmid == "" && doi == "" && title == "" {
			continue
		}

		paperID := adapter.FragmentID("paper/" + pmid + doi + title)
		if doi != "" {
			paperID = "https://doi.org/" + strings.TrimPrefix(doi, "https://doi.org/")
		}
		paper := g.AddNode(paperID, crate.TypeScholarlyArticle)
		if title != "" {
			paper.Set(crate.PropName, crate.Lit(title))
		}
		if pmid != "" {
			paper.Set(crate.PropPubmedID, crate.Lit(pmid))
		}
		if doi != "" {
			paper.Set(crate.PropIdentifier, crate.Lit(doi))
		}
		root.Add(crate.PropCitation, crate.Ref(paper.ID))
	}
}

func splitAuthors(list string) []string {
	var names []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
