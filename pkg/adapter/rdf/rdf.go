// Package rdf reads the SSBD ontology export, an N-Triples document
// describing datasets, their biosamples and imaging methods, and the
// projects that group them.
package rdf

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/gide-search/backend/pkg/adapter"
	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/study"
)

const (
	rdfType   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfsLabel = "http://www.w3.org/2000/01/rdf-schema#label"

	ontology = "http://ssbd.riken.jp/ontology/"

	classDataset = ontology + "SSBD_dataset"
	classProject = ontology + "SSBD_Project"

	predDatasetTitle     = ontology + "has_dataset_title"
	predBiosampleInfo    = ontology + "has_biosample_information"
	predAboutOrganism    = ontology + "is_about_organism"
	predAboutStrain      = ontology + "is_about_strain"
	predImagingInfo      = ontology + "has_imaging_method_total_info"
	predImagingType      = ontology + "has_imaging_method_recorded_type"
	predImagingBody      = ontology + "has_body"
	predDatasetOutput    = ontology + "has_dataset_output"
	predPublications     = ontology + "has_project_publications"
	predDOI              = ontology + "has_doi"
	predPMID             = ontology + "has_PMID"
	predPaperInfo        = ontology + "has_paper_information"
	predProjectURL       = ontology + "has_project_url"
	predProjectDesc      = ontology + "has_description"
	predProjectLicense   = ontology + "has_license"
	predSubmissionDate   = ontology + "has_submission_date"
)

const defaultLicense = "CC BY 4.0"

// citationPattern splits "Authors (Year) Title, Journal, ..." strings.
var citationPattern = regexp.MustCompile(`(?s)^(.+?)\s*\((\d{4})\)\s*(.+)$`)

// Adapter reads one SSBD N-Triples export file.
type Adapter struct {
	path string
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(path string) *Adapter {
	return &Adapter{path: path}
}

func (a *Adapter) Source() study.Source {
	return study.SourceSSBD
}

func (a *Adapter) Records(ctx context.Context) ([]adapter.Record, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.path, err)
	}
	defer f.Close()

	set, err := parseTriples(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", a.path, err)
	}
	return Transform(ctx, set)
}

// Transform builds one graph per SSBD_dataset subject.
func Transform(ctx context.Context, set *tripleSet) ([]adapter.Record, error) {
	projects := indexProjects(set)

	var records []adapter.Record
	for _, dataset := range set.subjectsOfType(classDataset) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records = append(records, buildRecord(set, dataset, projects[dataset]))
	}
	return records, nil
}

// indexProjects maps each dataset IRI to its owning project IRI.
func indexProjects(set *tripleSet) map[string]string {
	owners := map[string]string{}
	for _, project := range set.subjectsOfType(classProject) {
		for _, o := range set.objects(project, predDatasetOutput) {
			if o.iri {
				owners[o.value] = project
			}
		}
	}
	return owners
}

func datasetSuffix(datasetIRI string) string {
	if strings.Contains(datasetIRI, "ssbd-dataset-") {
		parts := strings.Split(datasetIRI, "/")
		return parts[len(parts)-1]
	}
	return datasetIRI
}

func buildRecord(set *tripleSet, dataset, project string) adapter.Record {
	suffix := datasetSuffix(dataset)

	rootID := set.literal(project, predProjectURL)
	if rootID == "" {
		rootID = "https://ssbd.riken.jp/repository/" + suffix + "/"
	}
	g, root := adapter.NewCrate(rootID)

	title := set.literal(dataset, predDatasetTitle)
	if title == "" {
		title = set.literal(dataset, rdfsLabel)
	}
	if title == "" {
		title = suffix
	}
	description := set.literal(project, predProjectDesc)
	if description == "" {
		description = title
	}
	root.Set(crate.PropName, crate.Lit(title))
	root.Set(crate.PropDescription, crate.Lit(description))
	root.Set(crate.PropURL, crate.Lit(rootID))
	root.Set(crate.PropIdentifier, crate.Lit(suffix))

	license := set.literal(project, predProjectLicense)
	if license == "" {
		license = defaultLicense
	}
	root.Set(crate.PropLicense, crate.Lit(license))

	if date := set.literal(project, predSubmissionDate); date != "" {
		root.Set(crate.PropDatePublished, crate.Lit(date))
	}

	publisher := g.AddNode("https://ssbd.riken.jp/", crate.TypeOrganization)
	publisher.Set(crate.PropName, crate.Lit("SSBD"))
	publisher.Set(crate.PropURL, crate.Lit("https://ssbd.riken.jp/"))
	root.Add(crate.PropPublisher, crate.Ref(publisher.ID))

	addBiosample(set, g, root, dataset, suffix)
	addImaging(set, g, root, dataset, suffix)
	addPublications(set, g, root, project)

	return adapter.Record{Suffix: suffix, Graph: g}
}

func addBiosample(set *tripleSet, g *crate.Graph, root *crate.Node, dataset, suffix string) {
	sample := g.AddNode(adapter.FragmentID(suffix+"/biosample"), crate.TypeBioSample)
	sample.Set(crate.PropName, crate.Lit(suffix+" sample"))
	root.Add(crate.PropAbout, crate.Ref(sample.ID))

	info := set.iri(dataset, predBiosampleInfo)
	if info == "" {
		return
	}
	if strain := set.iri(info, predAboutStrain); strain != "" {
		sample.Set(crate.PropDescription, crate.Lit(strain))
	}

	organism := set.iri(info, predAboutOrganism)
	if organism == "" {
		return
	}
	taxon := g.AddNode(organism, crate.TypeTaxon)
	name := set.literal(organism, rdfsLabel)
	if name == "" {
		name = organism
	}
	taxon.Set(crate.PropScientificName, crate.Lit(name))
	sample.Add(crate.PropTaxonomicRange, crate.Ref(taxon.ID))
	root.Add(crate.PropAbout, crate.Ref(taxon.ID))
}

func addImaging(set *tripleSet, g *crate.Graph, root *crate.Node, dataset, suffix string) {
	protocol := g.AddNode(adapter.FragmentID(suffix+"/protocol"), crate.TypeLabProtocol)
	protocol.Set(crate.PropName, crate.Lit(suffix+" imaging"))
	root.Add(crate.PropMeasurementMethod, crate.Ref(protocol.ID))

	info := set.iri(dataset, predImagingInfo)
	if info == "" {
		return
	}
	if instrument := set.literal(info, predImagingBody); instrument != "" {
		protocol.Set(crate.PropLabEquipment, crate.Lit(instrument))
	}

	method := set.iri(info, predImagingType)
	if method == "" {
		return
	}
	term := g.AddNode(method, crate.TypeDefinedTerm)
	name := set.literal(method, rdfsLabel)
	if name == "" {
		name = method
	}
	term.Set(crate.PropName, crate.Lit(name))
	protocol.Add(crate.PropMeasurementTechnique, crate.Ref(term.ID))
	root.Add(crate.PropMeasurementMethod, crate.Ref(term.ID))
}

// addPublications maps the project's papers onto citation nodes and
// derives the dataset's authors from the first citation string, the
// only place the export names people.
func addPublications(set *tripleSet, g *crate.Graph, root *crate.Node, project string) {
	authorsAdded := false
	for _, o := range set.objects(project, predPublications) {
		if !o.iri {
			continue
		}
		paperIRI := o.value

		doi := set.literal(paperIRI, predDOI)
		pmid := set.literal(paperIRI, predPMID)
		info := set.literal(paperIRI, predPaperInfo)

		paperID := paperIRI
		if doi != "" {
			paperID = "https://doi.org/" + strings.TrimPrefix(doi, "https://doi.org/")
		}
		paper := g.AddNode(paperID, crate.TypeScholarlyArticle)
		if doi != "" {
			paper.Set(crate.PropIdentifier, crate.Lit(doi))
		}
		if pmid != "" {
			paper.Set(crate.PropPubmedID, crate.Lit(pmid))
		}

		title := info
		if m := citationPattern.FindStringSubmatch(info); m != nil {
			names := strings.TrimSpace(m[1])
			paper.Set(crate.PropAuthorNames, crate.Lit(names))
			paper.Set(crate.PropDatePublished, crate.Lit(m[2]))
			title = strings.TrimSpace(strings.SplitN(m[3], ",", 2)[0])

			if !authorsAdded {
				for _, name := range strings.Split(names, ",") {
					if name = strings.TrimSpace(name); name != "" {
						person := g.AddNode(adapter.FragmentID("person/"+name), crate.TypePerson)
						person.Set(crate.PropName, crate.Lit(name))
						root.Add(crate.PropAuthor, crate.Ref(person.ID))
					}
				}
				authorsAdded = true
			}
		}
		if title != "" {
			paper.Set(crate.PropName, crate.Lit(title))
		}
		root.Add(crate.PropCitation, crate.Ref(paper.ID))
	}
}
