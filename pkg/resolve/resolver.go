// Package resolve flattens a validated entity graph into the canonical
// Study aggregate. The resolver assumes its input already passed
// profile validation; anything inconsistent it still finds is a Defect
// that aborts only the one record.
package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/profile"
	"github.com/gide-search/backend/pkg/study"
)

// Defect is an internal inconsistency discovered after validation
// passed. It is a bug report about the pipeline, not about the input.
type Defect struct {
	RecordID string
	NodeID   string
	Reason   string
}

func (d *Defect) Error() string {
	return fmt.Sprintf("resolution defect in record %s (node %s): %s", d.RecordID, d.NodeID, d.Reason)
}

var (
	ncbiTaxonPattern = regexp.MustCompile(`(?i)NCBITaxon[_:](\d+)|NCBI:txid(\d+)|ncbitaxon/(\d+)`)
	fbbiPattern      = regexp.MustCompile(`(?i)FBbi[_:](\d+)`)
	orcidPattern     = regexp.MustCompile(`orcid\.org/(\d{4}-\d{4}-\d{4}-\d{3}[\dX])`)
	rorPattern       = regexp.MustCompile(`ror\.org/([0-9a-z]+)`)
)

// Flatten materializes the canonical aggregate from an accepted graph.
// The id suffix is supplied by the source adapter; the resolver only
// prepends the source namespace. Traversal is breadth-first per field
// in the fixed canonical order, and multi-valued edges keep the
// first-seen order of the source serialization.
func Flatten(g *crate.Graph, source study.Source, suffix string) (*study.Study, error) {
	report := profileRoot(g)
	if report == nil {
		return nil, &Defect{RecordID: suffix, Reason: "graph has no resolvable root"}
	}
	root := report

	out := &study.Study{
		ID:     source.Prefix() + ":" + suffix,
		Source: source,
	}

	// Identity.
	out.SourceURL = root.String(crate.PropURL)
	if out.SourceURL == "" {
		out.SourceURL = root.ID
	}

	// Descriptive.
	out.Title = root.String(crate.PropName)
	out.Description = root.String(crate.PropDescription)
	out.License = root.String(crate.PropLicense)
	if raw := root.String(crate.PropDatePublished); raw != "" {
		normalized, err := profile.ParseISODate(raw)
		if err != nil {
			return nil, &Defect{RecordID: out.ID, NodeID: root.ID, Reason: "unparseable datePublished slipped past validation"}
		}
		date, err := study.ParseDate(normalized)
		if err != nil {
			return nil, &Defect{RecordID: out.ID, NodeID: root.ID, Reason: "unparseable datePublished slipped past validation"}
		}
		out.ReleaseDate = date
	}
	if ident := root.String(crate.PropIdentifier); strings.HasPrefix(ident, "10.") {
		out.DataDOI = ident
	}

	// People.
	authors, err := resolveAuthors(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.Authors = authors

	publisher, err := resolvePublisher(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.Publisher = publisher

	// Biology.
	biosamples, organisms, err := resolveBiology(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.BioSamples = biosamples
	out.Organisms = organisms

	// Methods.
	protocols, methods, err := resolveMethods(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.ImageAcquisitionProtocols = protocols
	out.ImagingMethods = methods

	// Bibliographic.
	publications, err := resolvePublications(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.Publications = publications

	funding, err := resolveFunding(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.Funding = funding

	// Extent.
	fileCount, sizeBytes, err := resolveExtent(g, root)
	if err != nil {
		return nil, defect(out.ID, err)
	}
	out.FileCount = fileCount
	out.TotalSizeBytes = sizeBytes

	out.Keywords = uniqueStrings(root.Strings(crate.PropKeywords))
	out.ThumbnailURLs = root.Strings(crate.PropThumbnailURL)

	return out, nil
}

// uniqueStrings drops repeated values, keeping first-seen order.
func uniqueStrings(in []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func defect(recordID string, err error) error {
	if d, ok := err.(*Defect); ok {
		d.RecordID = recordID
		return d
	}
	return &Defect{RecordID: recordID, Reason: err.Error()}
}

// profileRoot re-locates the root Dataset. The graph was validated, so
// a missing root here is a defect, not a violation.
func profileRoot(g *crate.Graph) *crate.Node {
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

func resolveAuthors(g *crate.Graph, root *crate.Node) ([]study.Author, error) {
	people, err := g.Resolve(root, crate.PropAuthor)
	if err != nil {
		return nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}

	authors := make([]study.Author, 0, len(people))
	for _, person := range people {
		author := study.Author{
			Name:  person.String(crate.PropName),
			Email: person.String(crate.PropEmail),
			ORCID: extractORCID(person),
		}

		orgs, err := g.Resolve(person, crate.PropAffiliation)
		if err != nil {
			return nil, &Defect{NodeID: person.ID, Reason: err.Error()}
		}
		for _, org := range orgs {
			author.Affiliations = append(author.Affiliations, organisation(org))
		}
		authors = append(authors, author)
	}
	return authors, nil
}

func extractORCID(person *crate.Node) string {
	if m := orcidPattern.FindStringSubmatch(person.ID); m != nil {
		return person.ID
	}
	ident := person.String(crate.PropIdentifier)
	if strings.Contains(strings.ToLower(ident), "orcid") {
		return ident
	}
	return ""
}

// organisation copies an Organization node by value. The same node may
// appear as publisher and as several affiliations; each appearance gets
// its own copy since the canonical model has no shared references.
func organisation(org *crate.Node) study.Organisation {
	o := study.Organisation{
		DisplayName: org.String(crate.PropName),
		Address:     org.String(crate.PropAddress),
		Website:     org.String(crate.PropURL),
	}
	if m := rorPattern.FindStringSubmatch(org.ID); m != nil {
		o.RORID = org.ID
	} else if ident := org.String(crate.PropIdentifier); rorPattern.MatchString(ident) {
		o.RORID = ident
	}
	return o
}

func resolvePublisher(g *crate.Graph, root *crate.Node) (study.Organisation, error) {
	orgs, err := g.Resolve(root, crate.PropPublisher)
	if err != nil {
		return study.Organisation{}, &Defect{NodeID: root.ID, Reason: err.Error()}
	}
	if len(orgs) == 0 {
		return study.Organisation{}, &Defect{NodeID: root.ID, Reason: "validated graph lost its publisher edge"}
	}
	return organisation(orgs[0]), nil
}

func resolveBiology(g *crate.Graph, root *crate.Node) ([]study.BioSample, []study.Organism, error) {
	targets, err := g.Resolve(root, crate.PropAbout)
	if err != nil {
		return nil, nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}

	var samples []study.BioSample
	var flat []study.Organism
	seen := map[string]bool{}

	appendOrganism := func(o study.Organism) {
		if o.ScientificName == "" || seen[o.ScientificName] {
			return
		}
		seen[o.ScientificName] = true
		flat = append(flat, o)
	}

	for _, target := range targets {
		switch {
		case target.HasType(crate.TypeBioSample):
			sample := study.BioSample{
				Name:                        target.String(crate.PropName),
				BiologicalEntityDescription: target.String(crate.PropDescription),
				SampleType:                  inferSampleType(target.String(crate.PropDescription)),
			}

			taxa, err := g.Resolve(target, crate.PropTaxonomicRange)
			if err != nil {
				return nil, nil, &Defect{NodeID: target.ID, Reason: err.Error()}
			}
			for _, taxon := range taxa {
				o := organism(taxon)
				sample.Organisms = append(sample.Organisms, o)
				appendOrganism(o)
			}

			cellLines, err := g.Resolve(target, crate.PropHasCellLine)
			if err != nil {
				return nil, nil, &Defect{NodeID: target.ID, Reason: err.Error()}
			}
			if len(cellLines) > 0 {
				sample.CellLine = cellLines[0].String(crate.PropName)
			}

			samples = append(samples, sample)

		case target.HasType(crate.TypeTaxon):
			// A taxon linked directly from the root, either standalone
			// or as the closure image of a nested taxonomicRange. It
			// joins the flat facet list; the nested copy stays inside
			// its biosample.
			appendOrganism(organism(target))
		}
	}
	return samples, flat, nil
}

func organism(taxon *crate.Node) study.Organism {
	o := study.Organism{
		ScientificName: taxon.String(crate.PropScientificName),
		CommonName:     taxon.String(crate.PropVernacularName),
	}
	if o.ScientificName == "" {
		o.ScientificName = taxon.String(crate.PropName)
	}
	if m := ncbiTaxonPattern.FindStringSubmatch(taxon.ID); m != nil {
		for _, group := range m[1:] {
			if group != "" {
				id, _ := strconv.ParseInt(group, 10, 64)
				o.NCBITaxonID = id
				break
			}
		}
	}
	return o
}

func inferSampleType(description string) string {
	text := strings.ToLower(description)
	switch {
	case strings.Contains(text, "tissue"):
		return "tissue"
	case strings.Contains(text, "cell line"), strings.Contains(text, "cell culture"):
		return "cell"
	case strings.Contains(text, "organism"), strings.Contains(text, "whole"):
		return "organism"
	case strings.Contains(text, "cell"):
		return "cell"
	default:
		return ""
	}
}

func resolveMethods(g *crate.Graph, root *crate.Node) ([]study.ImageAcquisitionProtocol, []study.ImagingMethod, error) {
	targets, err := g.Resolve(root, crate.PropMeasurementMethod)
	if err != nil {
		return nil, nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}

	var protocols []study.ImageAcquisitionProtocol
	var flat []study.ImagingMethod
	seen := map[string]bool{}

	appendMethod := func(m study.ImagingMethod) {
		if m.Name == "" || seen[m.Name] {
			return
		}
		seen[m.Name] = true
		flat = append(flat, m)
	}

	for _, target := range targets {
		switch {
		case target.HasType(crate.TypeLabProtocol):
			protocol := study.ImageAcquisitionProtocol{
				Name:                         target.String(crate.PropName),
				ProtocolDescription:          target.String(crate.PropDescription),
				ImagingInstrumentDescription: target.String(crate.PropLabEquipment),
			}

			terms, err := g.Resolve(target, crate.PropMeasurementTechnique)
			if err != nil {
				return nil, nil, &Defect{NodeID: target.ID, Reason: err.Error()}
			}
			for _, term := range terms {
				m := imagingMethod(term)
				protocol.Methods = append(protocol.Methods, m)
				appendMethod(m)
			}
			protocols = append(protocols, protocol)

		case target.HasType(crate.TypeDefinedTerm):
			appendMethod(imagingMethod(target))
		}
	}
	return protocols, flat, nil
}

func imagingMethod(term *crate.Node) study.ImagingMethod {
	m := study.ImagingMethod{Name: term.String(crate.PropName)}
	if match := fbbiPattern.FindStringSubmatch(term.ID); match != nil {
		m.FbbiID = "FBbi:" + match[1]
	} else if ident := term.String(crate.PropIdentifier); ident != "" {
		if match := fbbiPattern.FindStringSubmatch(ident); match != nil {
			m.FbbiID = "FBbi:" + match[1]
		}
	}
	return m
}

func resolvePublications(g *crate.Graph, root *crate.Node) ([]study.Publication, error) {
	papers, err := g.Resolve(root, crate.PropCitation)
	if err != nil {
		return nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}

	var out []study.Publication
	for _, paper := range papers {
		pub := study.Publication{
			Title:       paper.String(crate.PropName),
			PubmedID:    paper.String(crate.PropPubmedID),
			PmcID:       paper.String(crate.PropPmcID),
			AuthorsName: paper.String(crate.PropAuthorNames),
			DOI:         extractDOI(paper),
		}
		if raw := paper.String(crate.PropDatePublished); len(raw) >= 4 {
			if year, err := strconv.Atoi(raw[:4]); err == nil {
				pub.Year = year
			}
		}
		if pub != (study.Publication{}) {
			out = append(out, pub)
		}
	}
	return out, nil
}

func extractDOI(paper *crate.Node) string {
	candidates := []string{
		paper.String("doi"),
		paper.String(crate.PropIdentifier),
		paper.ID,
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if idx := strings.Index(c, "doi.org/"); idx >= 0 {
			c = c[idx+len("doi.org/"):]
		}
		if strings.HasPrefix(c, "10.") {
			return c
		}
	}
	return ""
}

func resolveFunding(g *crate.Graph, root *crate.Node) ([]study.Funding, error) {
	grants, err := g.Resolve(root, crate.PropFunder)
	if err != nil {
		return nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}

	var out []study.Funding
	for _, grant := range grants {
		f := study.Funding{
			Funder:  grant.String(crate.PropName),
			GrantID: grant.String(crate.PropIdentifier),
		}
		if f.GrantID == "" {
			parts := strings.Split(grant.ID, "/")
			f.GrantID = parts[len(parts)-1]
		}
		if f.GrantID != "" {
			out = append(out, f)
		}
	}
	return out, nil
}

// resolveExtent disambiguates the quantitative values under the size
// edge by unit code: the count-coded one is the file count, the
// byte-coded one the total size. Other unit codes are ignored.
func resolveExtent(g *crate.Graph, root *crate.Node) (fileCount, sizeBytes *int64, err error) {
	values, err := g.Resolve(root, crate.PropSize)
	if err != nil {
		return nil, nil, &Defect{NodeID: root.ID, Reason: err.Error()}
	}
	for _, qv := range values {
		if !qv.HasType(crate.TypeQuantitativeValue) {
			continue
		}
		number, ok := profile.NumericValue(qv)
		if !ok || number < 0 {
			continue
		}
		n := int64(number)
		switch qv.String(crate.PropUnitCode) {
		case crate.UnitCodeCount:
			if fileCount == nil {
				fileCount = &n
			}
		case crate.UnitCodeBytes:
			if sizeBytes == nil {
				sizeBytes = &n
			}
		}
	}
	return fileCount, sizeBytes, nil
}
