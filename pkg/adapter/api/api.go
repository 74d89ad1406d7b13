// Package api reads study metadata from the BioImage Archive search
// API and rebuilds each hit as an interchange graph.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gide-search/backend/pkg/adapter"
	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/study"
)

const DefaultBaseURL = "https://alpha.bioimagearchive.org/search/search/fts"

const studyURLBase = "https://www.ebi.ac.uk/biostudies/bioimages/studies/"

// Adapter pages through the BIA full-text search endpoint.
type Adapter struct {
	BaseURL  string
	Query    string
	PageSize int
	Client   *http.Client
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(query string, pageSize int) *Adapter {
	return &Adapter{
		BaseURL:  DefaultBaseURL,
		Query:    query,
		PageSize: pageSize,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) Source() study.Source {
	return study.SourceBIA
}

func (a *Adapter) Records(ctx context.Context) ([]adapter.Record, error) {
	endpoint, err := url.Parse(a.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	params := endpoint.Query()
	params.Set("query", a.Query)
	params.Set("pagination.page_size", strconv.Itoa(a.PageSize))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", endpoint.Host, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseResponse(body)
}

// searchResponse mirrors the BIA response envelope.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Hit `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Hit is one study in the BIA search response.
type Hit struct {
	AccessionID        string        `json:"accession_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Licence            string        `json:"licence"`
	ReleaseDate        string        `json:"release_date"`
	DOI                string        `json:"doi"`
	Keywords           []string      `json:"keyword"`
	Authors            []hitAuthor   `json:"author"`
	Grants             []hitGrant    `json:"grant"`
	RelatedPublication []hitArticle  `json:"related_publication"`
	Datasets           []hitDataset  `json:"dataset"`
}

type hitAuthor struct {
	DisplayName  string           `json:"display_name"`
	ORCID        string           `json:"orcid"`
	ContactEmail string           `json:"contact_email"`
	Affiliations []hitAffiliation `json:"affiliation"`
}

type hitAffiliation struct {
	DisplayName string `json:"display_name"`
	RORID       string `json:"rorid"`
	Address     string `json:"address"`
	Website     string `json:"website"`
}

type hitGrant struct {
	ID      string `json:"id"`
	Funders []struct {
		DisplayName string `json:"display_name"`
	} `json:"funder"`
}

type hitArticle struct {
	DOI             string `json:"doi"`
	PubmedID        string `json:"pubmed_id"`
	Title           string `json:"title"`
	PublicationYear int    `json:"publication_year"`
}

type hitDataset struct {
	BiologicalEntities []struct {
		Title                       string `json:"title"`
		BiologicalEntityDescription string `json:"biological_entity_description"`
		OrganismClassifications     []struct {
			ScientificName string `json:"scientific_name"`
			CommonName     string `json:"common_name"`
			NCBIID         string `json:"ncbi_id"`
		} `json:"organism_classification"`
	} `json:"biological_entity"`
	AcquisitionProcesses []struct {
		Title                        string   `json:"title"`
		ProtocolDescription          string   `json:"protocol_description"`
		ImagingInstrumentDescription string   `json:"imaging_instrument_description"`
		ImagingMethodNames           []string `json:"imaging_method_name"`
		FbbiIDs                      []string `json:"fbbi_id"`
	} `json:"acquisition_process"`
	FileReferenceCount     int64  `json:"file_reference_count"`
	FileReferenceSizeBytes int64  `json:"file_reference_size_bytes"`
	ExampleImageURI        string `json:"example_image_uri"`
}

// ParseResponse decodes a search response body and transforms each hit.
// Hits without an accession id are skipped.
func ParseResponse(body []byte) ([]adapter.Record, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var records []adapter.Record
	for _, h := range resp.Hits.Hits {
		if h.Source.AccessionID == "" {
			logger.Warn("[Adapter] Skipping hit without accession id")
			continue
		}
		records = append(records, TransformHit(h.Source))
	}
	return records, nil
}

// TransformHit rebuilds one search hit as an interchange graph.
func TransformHit(hit Hit) adapter.Record {
	rootID := studyURLBase + hit.AccessionID
	g, root := adapter.NewCrate(rootID)

	title := hit.Title
	if title == "" {
		title = hit.AccessionID
	}
	description := hit.Description
	if description == "" {
		description = title
	}
	root.Set(crate.PropName, crate.Lit(title))
	root.Set(crate.PropDescription, crate.Lit(description))
	root.Set(crate.PropURL, crate.Lit(rootID))
	if hit.DOI != "" {
		root.Set(crate.PropIdentifier, crate.Lit(hit.DOI))
	} else {
		root.Set(crate.PropIdentifier, crate.Lit(hit.AccessionID))
	}

	licence := hit.Licence
	if licence == "" {
		licence = "Unknown"
	}
	root.Set(crate.PropLicense, crate.Lit(licence))
	if hit.ReleaseDate != "" {
		root.Set(crate.PropDatePublished, crate.Lit(hit.ReleaseDate))
	}
	for _, kw := range hit.Keywords {
		root.Add(crate.PropKeywords, crate.Lit(kw))
	}

	publisher := g.AddNode("https://www.ebi.ac.uk/bioimage-archive/", crate.TypeOrganization)
	publisher.Set(crate.PropName, crate.Lit("BioImage Archive"))
	publisher.Set(crate.PropURL, crate.Lit("https://www.ebi.ac.uk/bioimage-archive/"))
	root.Add(crate.PropPublisher, crate.Ref(publisher.ID))

	addAuthors(g, root, hit.Authors)
	addBiology(g, root, hit)
	addMethods(g, root, hit)
	addGrants(g, root, hit.Grants)
	addCitations(g, root, hit.RelatedPublication)
	addExtent(g, root, hit)

	for _, ds := range hit.Datasets {
		if ds.ExampleImageURI != "" {
			root.Add(crate.PropThumbnailURL, crate.Lit(ds.ExampleImageURI))
		}
	}

	return adapter.Record{Suffix: hit.AccessionID, Graph: g}
}

func addAuthors(g *crate.Graph, root *crate.Node, authors []hitAuthor) {
	for _, a := range authors {
		id := adapter.FragmentID("person/" + a.DisplayName)
		if a.ORCID != "" {
			id = orcidURL(a.ORCID)
		}
		person := g.AddNode(id, crate.TypePerson)
		person.Set(crate.PropName, crate.Lit(a.DisplayName))
		if a.ContactEmail != "" {
			person.Set(crate.PropEmail, crate.Lit(a.ContactEmail))
		}

		for _, aff := range a.Affiliations {
			orgID := aff.RORID
			if orgID == "" {
				orgID = adapter.FragmentID("org/" + aff.DisplayName)
			}
			org := g.AddNode(orgID, crate.TypeOrganization)
			org.Set(crate.PropName, crate.Lit(aff.DisplayName))
			if aff.Address != "" {
				org.Set(crate.PropAddress, crate.Lit(aff.Address))
			}
			if aff.Website != "" {
				org.Set(crate.PropURL, crate.Lit(aff.Website))
			}
			person.Add(crate.PropAffiliation, crate.Ref(org.ID))
		}
		root.Add(crate.PropAuthor, crate.Ref(person.ID))
	}
}

func orcidURL(orcid string) string {
	const base = "https://orcid.org/"
	if len(orcid) >= len(base) && orcid[:len(base)] == base {
		return orcid
	}
	return base + orcid
}

func addBiology(g *crate.Graph, root *crate.Node, hit Hit) {
	for di, ds := range hit.Datasets {
		for bi, be := range ds.BiologicalEntities {
			sample := g.AddNode(
				adapter.FragmentID(fmt.Sprintf("%s/biosample/%d/%d", hit.AccessionID, di, bi)),
				crate.TypeBioSample)
			name := be.Title
			if name == "" {
				name = fmt.Sprintf("%s sample %d", hit.AccessionID, bi+1)
			}
			sample.Set(crate.PropName, crate.Lit(name))
			if be.BiologicalEntityDescription != "" {
				sample.Set(crate.PropDescription, crate.Lit(be.BiologicalEntityDescription))
			}
			root.Add(crate.PropAbout, crate.Ref(sample.ID))

			for _, oc := range be.OrganismClassifications {
				name := oc.ScientificName
				if name == "" {
					name = oc.CommonName
				}
				if name == "" {
					continue
				}
				taxonID := oc.NCBIID
				if taxonID == "" {
					taxonID = adapter.FragmentID("taxon/" + name)
				}
				taxon := g.AddNode(taxonID, crate.TypeTaxon)
				taxon.Set(crate.PropScientificName, crate.Lit(name))
				if oc.CommonName != "" {
					taxon.Set(crate.PropVernacularName, crate.Lit(oc.CommonName))
				}
				sample.Add(crate.PropTaxonomicRange, crate.Ref(taxon.ID))
				root.Add(crate.PropAbout, crate.Ref(taxon.ID))
			}
		}
	}
}

func addMethods(g *crate.Graph, root *crate.Node, hit Hit) {
	for di, ds := range hit.Datasets {
		for pi, ap := range ds.AcquisitionProcesses {
			protocol := g.AddNode(
				adapter.FragmentID(fmt.Sprintf("%s/protocol/%d/%d", hit.AccessionID, di, pi)),
				crate.TypeLabProtocol)
			name := ap.Title
			if name == "" {
				name = fmt.Sprintf("%s acquisition %d", hit.AccessionID, pi+1)
			}
			protocol.Set(crate.PropName, crate.Lit(name))
			if ap.ProtocolDescription != "" {
				protocol.Set(crate.PropDescription, crate.Lit(ap.ProtocolDescription))
			}
			if ap.ImagingInstrumentDescription != "" {
				protocol.Set(crate.PropLabEquipment, crate.Lit(ap.ImagingInstrumentDescription))
			}
			root.Add(crate.PropMeasurementMethod, crate.Ref(protocol.ID))

			for i, name := range ap.ImagingMethodNames {
				if name == "" {
					continue
				}
				termID := adapter.FragmentID("method/" + name)
				if i < len(ap.FbbiIDs) && ap.FbbiIDs[i] != "" {
					termID = ap.FbbiIDs[i]
				}
				term := g.AddNode(termID, crate.TypeDefinedTerm)
				term.Set(crate.PropName, crate.Lit(name))
				protocol.Add(crate.PropMeasurementTechnique, crate.Ref(term.ID))
				root.Add(crate.PropMeasurementMethod, crate.Ref(term.ID))
			}
		}
	}
}

func addGrants(g *crate.Graph, root *crate.Node, grants []hitGrant) {
	for _, grant := range grants {
		if grant.ID == "" {
			continue
		}
		node := g.AddNode(adapter.FragmentID("grant/"+grant.ID), crate.TypeGrant)
		node.Set(crate.PropIdentifier, crate.Lit(grant.ID))
		if len(grant.Funders) > 0 {
			node.Set(crate.PropName, crate.Lit(grant.Funders[0].DisplayName))
		}
		root.Add(crate.PropFunder, crate.Ref(node.ID))
	}
}

func addCitations(g *crate.Graph, root *crate.Node, articles []hitArticle) {
	for _, article := range articles {
		if article.DOI == "" && article.PubmedID == "" && article.Title == "" {
			continue
		}
		id := adapter.FragmentID("paper/" + article.DOI + article.PubmedID + article.Title)
		if article.DOI != "" {
			id = "https://doi.org/" + article.DOI
		}
		paper := g.AddNode(id, crate.TypeScholarlyArticle)
		if article.Title != "" {
			paper.Set(crate.PropName, crate.Lit(article.Title))
		}
		if article.DOI != "" {
			paper.Set(crate.PropIdentifier, crate.Lit(article.DOI))
		}
		if article.PubmedID != "" {
			paper.Set(crate.PropPubmedID, crate.Lit(article.PubmedID))
		}
		if article.PublicationYear > 0 {
			paper.Set(crate.PropDatePublished, crate.Lit(strconv.Itoa(article.PublicationYear)))
		}
		root.Add(crate.PropCitation, crate.Ref(paper.ID))
	}
}

// addExtent sums file statistics across datasets into the two
// quantitative values the canonical model understands.
func addExtent(g *crate.Graph, root *crate.Node, hit Hit) {
	var files, size int64
	for _, ds := range hit.Datasets {
		files += ds.FileReferenceCount
		size += ds.FileReferenceSizeBytes
	}
	if files > 0 {
		qv := g.AddNode(adapter.FragmentID(hit.AccessionID+"/file-count"), crate.TypeQuantitativeValue)
		qv.Set(crate.PropValue, crate.Lit(float64(files)))
		qv.Set(crate.PropUnitCode, crate.Lit(crate.UnitCodeCount))
		qv.Set(crate.PropUnitText, crate.Lit("file count"))
		root.Add(crate.PropSize, crate.Ref(qv.ID))
	}
	if size > 0 {
		qv := g.AddNode(adapter.FragmentID(hit.AccessionID+"/total-size"), crate.TypeQuantitativeValue)
		qv.Set(crate.PropValue, crate.Lit(float64(size)))
		qv.Set(crate.PropUnitCode, crate.Lit(crate.UnitCodeBytes))
		qv.Set(crate.PropUnitText, crate.Lit("bytes"))
		root.Add(crate.PropSize, crate.Ref(qv.ID))
	}
}
