// Package study defines the canonical aggregate record that every source
// is normalized into. A Study is a self-contained value object: nothing
// in it references back into the source graph it was flattened from.
package study

import "time"

// Source identifies the federation a record originates from.
type Source string

const (
	SourceIDR      Source = "IDR"
	SourceSSBD     Source = "SSBD"
	SourceBIA      Source = "BIA"
	SourceExternal Source = "EXTERNAL"
)

// Prefix returns the namespace prepended to record identifiers from
// this source, e.g. "idr" in "idr:idr0164".
func (s Source) Prefix() string {
	switch s {
	case SourceIDR:
		return "idr"
	case SourceSSBD:
		return "ssbd"
	case SourceBIA:
		return "bia"
	default:
		return "crate"
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceIDR, SourceSSBD, SourceBIA, SourceExternal:
		return true
	}
	return false
}

// Organism is a resolved taxon record.
type Organism struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name,omitempty"`
	NCBITaxonID    int64  `json:"ncbi_taxon_id,omitempty"`
}

// ImagingMethod is a resolved imaging-technique term, optionally carrying
// its FBbi ontology identifier (e.g. "FBbi:00000246").
type ImagingMethod struct {
	Name   string `json:"name"`
	FbbiID string `json:"fbbi_id,omitempty"`
}

// Organisation is an institution record used for publishers and
// author affiliations.
type Organisation struct {
	DisplayName string `json:"display_name"`
	RORID       string `json:"rorid,omitempty"`
	Address     string `json:"address,omitempty"`
	Website     string `json:"website,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Author is a study author in submission order.
type Author struct {
	Name         string         `json:"name"`
	ORCID        string         `json:"orcid,omitempty"`
	Email        string         `json:"email,omitempty"`
	Affiliations []Organisation `json:"affiliations,omitempty"`
}

// Publication is an associated paper.
type Publication struct {
	DOI         string `json:"doi,omitempty"`
	PubmedID    string `json:"pubmed_id,omitempty"`
	PmcID       string `json:"pmc_id,omitempty"`
	Title       string `json:"title,omitempty"`
	AuthorsName string `json:"authors_name,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// Funding is one grant record.
type Funding struct {
	Funder  string `json:"funder"`
	GrantID string `json:"grant_id"`
}

// BioSample describes one biological sample and the taxa it resolves to.
type BioSample struct {
	Name                        string     `json:"name,omitempty"`
	Organisms                   []Organism `json:"organism"`
	SampleType                  string     `json:"sample_type,omitempty"`
	BiologicalEntityDescription string     `json:"biological_entity_description,omitempty"`
	Strain                      string     `json:"strain,omitempty"`
	CellLine                    string     `json:"cell_line,omitempty"`
}

// ImageAcquisitionProtocol describes one acquisition protocol and the
// imaging-method terms it resolves to.
type ImageAcquisitionProtocol struct {
	Name                          string          `json:"name,omitempty"`
	Methods                       []ImagingMethod `json:"methods"`
	ProtocolDescription           string          `json:"protocol_description,omitempty"`
	ImagingInstrumentDescription  string          `json:"imaging_instrument_description,omitempty"`
}

// Date is a calendar date with day precision. It marshals as an
// ISO 8601 date (YYYY-MM-DD).
type Date struct {
	Year  int `json:"-"`
	Month int `json:"-"`
	Day   int `json:"-"`
}

// ParseDate parses an ISO 8601 date string with day precision.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

func (d Date) String() string {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Study is the flattened, source-agnostic record the resolver produces
// and the index stores. Created once per transformation run, immutable
// thereafter; superseded wholesale on re-transformation.
type Study struct {
	ID        string `json:"id" jsonschema:"description=Namespaced identifier, e.g. 'idr:idr0164'"`
	Source    Source `json:"source"`
	SourceURL string `json:"source_url"`

	Title       string `json:"title"`
	Description string `json:"description"`
	License     string `json:"license"`
	ReleaseDate Date   `json:"release_date"`

	Authors   []Author     `json:"authors"`
	Publisher Organisation `json:"publisher"`

	BioSamples []BioSample `json:"biosamples"`
	// Organisms is the deduplicated union of every taxon nested in
	// BioSamples, kept flat for faceting.
	Organisms []Organism `json:"organisms"`

	ImageAcquisitionProtocols []ImageAcquisitionProtocol `json:"image_acquisition_protocols"`
	// ImagingMethods is the deduplicated union of every method nested in
	// ImageAcquisitionProtocols, kept flat for faceting.
	ImagingMethods []ImagingMethod `json:"imaging_methods"`

	Publications []Publication `json:"publications,omitempty"`
	Funding      []Funding     `json:"funding,omitempty"`

	// FileCount and TotalSizeBytes are nil when the source did not
	// report them.
	FileCount      *int64 `json:"file_count,omitempty"`
	TotalSizeBytes *int64 `json:"total_size_bytes,omitempty"`

	DataDOI       string   `json:"data_doi,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	StudyType     []string `json:"study_type,omitempty"`
	ThumbnailURLs []string `json:"thumbnail_urls,omitempty"`
}

// OrganismNames returns the flat organism facet values.
func (s *Study) OrganismNames() []string {
	names := make([]string, 0, len(s.Organisms))
	for _, o := range s.Organisms {
		names = append(names, o.ScientificName)
	}
	return names
}

// ImagingMethodNames returns the flat imaging-method facet values.
func (s *Study) ImagingMethodNames() []string {
	names := make([]string, 0, len(s.ImagingMethods))
	for _, m := range s.ImagingMethods {
		names = append(names, m.Name)
	}
	return names
}
