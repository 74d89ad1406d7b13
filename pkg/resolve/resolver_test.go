package resolve

import (
	"context"
	"reflect"
	"testing"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/study"
)

const rootID = "https://example.org/study/idr0164"

// fullGraph builds a graph exercising every field the resolver reads.
func fullGraph() *crate.Graph {
	g := crate.NewGraph()

	desc := g.AddNode(crate.DescriptorID, crate.TypeCreativeWork)
	desc.Add(crate.PropConformsTo, crate.Ref(crate.ProfileBase+"1.1"))
	desc.Add(crate.PropAbout, crate.Ref(rootID))

	root := g.AddNode(rootID, crate.TypeDataset)
	root.Add(crate.PropName, crate.Lit("Light-sheet imaging of zebrafish"))
	root.Add(crate.PropDescription, crate.Lit("Whole-embryo time series."))
	root.Add(crate.PropDatePublished, crate.Lit("2021-04-12T00:00:00Z"))
	root.Add(crate.PropLicense, crate.Lit("CC-BY-4.0"))
	root.Add(crate.PropURL, crate.Lit("https://idr.openmicroscopy.org/study/idr0164"))
	root.Add(crate.PropIdentifier, crate.Lit("10.1000/idr0164"))
	root.Add(crate.PropAuthor, crate.Ref("https://orcid.org/0000-0002-1825-0097"))
	root.Add(crate.PropPublisher, crate.Ref("https://ror.org/02jx3x895"))
	root.Add(crate.PropAbout, crate.Ref("#sample"))
	root.Add(crate.PropAbout, crate.Ref("https://identifiers.org/NCBITaxon_7955"))
	root.Add(crate.PropMeasurementMethod, crate.Ref("#protocol"))
	root.Add(crate.PropMeasurementMethod, crate.Ref("http://purl.obolibrary.org/obo/FBbi_00000369"))
	root.Add(crate.PropCitation, crate.Ref("https://doi.org/10.1038/s41586-021-1"))
	root.Add(crate.PropFunder, crate.Ref("#grant"))
	root.Add(crate.PropSize, crate.Ref("#filecount"))
	root.Add(crate.PropSize, crate.Ref("#bytesize"))
	root.Add(crate.PropKeywords, crate.Lit("zebrafish"))
	root.Add(crate.PropKeywords, crate.Lit("light-sheet"))
	root.Add(crate.PropThumbnailURL, crate.Lit("https://example.org/thumb.png"))

	alice := g.AddNode("https://orcid.org/0000-0002-1825-0097", crate.TypePerson)
	alice.Add(crate.PropName, crate.Lit("Alice Example"))
	alice.Add(crate.PropEmail, crate.Lit("alice@example.org"))
	alice.Add(crate.PropAffiliation, crate.Ref("https://ror.org/02jx3x895"))

	org := g.AddNode("https://ror.org/02jx3x895", crate.TypeOrganization)
	org.Add(crate.PropName, crate.Lit("Example Institute"))
	org.Add(crate.PropURL, crate.Lit("https://institute.example.org"))

	sample := g.AddNode("#sample", crate.TypeBioSample)
	sample.Add(crate.PropName, crate.Lit("zebrafish embryo"))
	sample.Add(crate.PropDescription, crate.Lit("whole organism, 24hpf"))
	sample.Add(crate.PropTaxonomicRange, crate.Ref("https://identifiers.org/NCBITaxon_7955"))

	taxon := g.AddNode("https://identifiers.org/NCBITaxon_7955", crate.TypeTaxon)
	taxon.Add(crate.PropScientificName, crate.Lit("Danio rerio"))
	taxon.Add(crate.PropVernacularName, crate.Lit("zebrafish"))

	protocol := g.AddNode("#protocol", crate.TypeLabProtocol)
	protocol.Add(crate.PropName, crate.Lit("embryo imaging protocol"))
	protocol.Add(crate.PropLabEquipment, crate.Lit("Zeiss Lightsheet Z.1"))
	protocol.Add(crate.PropMeasurementTechnique, crate.Ref("http://purl.obolibrary.org/obo/FBbi_00000369"))

	method := g.AddNode("http://purl.obolibrary.org/obo/FBbi_00000369", crate.TypeDefinedTerm)
	method.Add(crate.PropName, crate.Lit("light-sheet fluorescence microscopy"))

	paper := g.AddNode("https://doi.org/10.1038/s41586-021-1", crate.TypeScholarlyArticle)
	paper.Add(crate.PropName, crate.Lit("Imaging zebrafish development"))
	paper.Add(crate.PropDatePublished, crate.Lit("2021-06-01"))

	grant := g.AddNode("#grant", crate.TypeGrant)
	grant.Add(crate.PropName, crate.Lit("Example Foundation"))
	grant.Add(crate.PropIdentifier, crate.Lit("EF-2020-1234"))

	fc := g.AddNode("#filecount", crate.TypeQuantitativeValue)
	fc.Add(crate.PropValue, crate.Lit("2480"))
	fc.Add(crate.PropUnitCode, crate.Lit(crate.UnitCodeCount))

	size := g.AddNode("#bytesize", crate.TypeQuantitativeValue)
	size.Add(crate.PropValue, crate.Lit("17179869184"))
	size.Add(crate.PropUnitCode, crate.Lit(crate.UnitCodeBytes))

	return g
}

func TestFlatten(t *testing.T) {
	s, err := Flatten(fullGraph(), study.SourceIDR, "idr0164")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if s.ID != "idr:idr0164" {
		t.Fatalf("unexpected id %q", s.ID)
	}
	if s.Source != study.SourceIDR {
		t.Fatalf("unexpected source %q", s.Source)
	}
	if s.SourceURL != "https://idr.openmicroscopy.org/study/idr0164" {
		t.Fatalf("unexpected source url %q", s.SourceURL)
	}
	if s.Title != "Light-sheet imaging of zebrafish" {
		t.Fatalf("unexpected title %q", s.Title)
	}
	if s.ReleaseDate.String() != "2021-04-12" {
		t.Fatalf("unexpected release date %v", s.ReleaseDate)
	}
	if s.DataDOI != "10.1000/idr0164" {
		t.Fatalf("unexpected data DOI %q", s.DataDOI)
	}

	if len(s.Authors) != 1 {
		t.Fatalf("expected 1 author, got %d", len(s.Authors))
	}
	author := s.Authors[0]
	if author.Name != "Alice Example" || author.ORCID != "https://orcid.org/0000-0002-1825-0097" {
		t.Fatalf("unexpected author %+v", author)
	}
	if len(author.Affiliations) != 1 || author.Affiliations[0].DisplayName != "Example Institute" {
		t.Fatalf("unexpected affiliations %+v", author.Affiliations)
	}

	if s.Publisher.DisplayName != "Example Institute" || s.Publisher.RORID != "https://ror.org/02jx3x895" {
		t.Fatalf("unexpected publisher %+v", s.Publisher)
	}

	if len(s.BioSamples) != 1 {
		t.Fatalf("expected 1 biosample, got %d", len(s.BioSamples))
	}
	sample := s.BioSamples[0]
	if sample.SampleType != "organism" {
		t.Fatalf("unexpected sample type %q", sample.SampleType)
	}
	if len(sample.Organisms) != 1 || sample.Organisms[0].ScientificName != "Danio rerio" {
		t.Fatalf("unexpected sample organisms %+v", sample.Organisms)
	}
	if sample.Organisms[0].NCBITaxonID != 7955 {
		t.Fatalf("NCBI taxon id not extracted: %+v", sample.Organisms[0])
	}

	// The taxon is linked both inside the biosample and directly from
	// the root; the flat facet list carries it once.
	if len(s.Organisms) != 1 {
		t.Fatalf("organism facet not deduplicated: %+v", s.Organisms)
	}

	if len(s.ImageAcquisitionProtocols) != 1 {
		t.Fatalf("expected 1 protocol, got %d", len(s.ImageAcquisitionProtocols))
	}
	protocol := s.ImageAcquisitionProtocols[0]
	if protocol.ImagingInstrumentDescription != "Zeiss Lightsheet Z.1" {
		t.Fatalf("unexpected protocol %+v", protocol)
	}
	if len(s.ImagingMethods) != 1 {
		t.Fatalf("imaging method facet not deduplicated: %+v", s.ImagingMethods)
	}
	if s.ImagingMethods[0].FbbiID != "FBbi:00000369" {
		t.Fatalf("FBbi id not extracted: %+v", s.ImagingMethods[0])
	}

	if len(s.Publications) != 1 || s.Publications[0].DOI != "10.1038/s41586-021-1" {
		t.Fatalf("unexpected publications %+v", s.Publications)
	}
	if s.Publications[0].Year != 2021 {
		t.Fatalf("publication year not extracted: %+v", s.Publications[0])
	}

	if len(s.Funding) != 1 || s.Funding[0].GrantID != "EF-2020-1234" {
		t.Fatalf("unexpected funding %+v", s.Funding)
	}

	if s.FileCount == nil || *s.FileCount != 2480 {
		t.Fatalf("unexpected file count %v", s.FileCount)
	}
	if s.TotalSizeBytes == nil || *s.TotalSizeBytes != 17179869184 {
		t.Fatalf("unexpected total size %v", s.TotalSizeBytes)
	}

	if !reflect.DeepEqual(s.Keywords, []string{"zebrafish", "light-sheet"}) {
		t.Fatalf("unexpected keywords %v", s.Keywords)
	}
}

func TestFlattenDeduplicatesKeywords(t *testing.T) {
	g := fullGraph()
	root, _ := g.Node(rootID)
	root.Add(crate.PropKeywords, crate.Lit("zebrafish"))
	root.Add(crate.PropKeywords, crate.Lit(""))

	s, err := Flatten(g, study.SourceIDR, "idr0164")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !reflect.DeepEqual(s.Keywords, []string{"zebrafish", "light-sheet"}) {
		t.Fatalf("duplicate keyword survived: %v", s.Keywords)
	}
}

func TestFlattenIsDeterministic(t *testing.T) {
	a, err := Flatten(fullGraph(), study.SourceIDR, "idr0164")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	b, err := Flatten(fullGraph(), study.SourceIDR, "idr0164")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two runs over the same graph differ")
	}
}

func TestFlattenFallsBackToRootID(t *testing.T) {
	g := fullGraph()
	root, _ := g.Node(rootID)
	root.Set(crate.PropURL, crate.Lit(""))

	s, err := Flatten(g, study.SourceExternal, "abc")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if s.ID != "crate:abc" {
		t.Fatalf("unexpected id %q", s.ID)
	}
	if s.SourceURL != rootID {
		t.Fatalf("expected root id fallback, got %q", s.SourceURL)
	}
}

func TestFlattenIgnoresUnknownUnitCodes(t *testing.T) {
	g := fullGraph()
	root, _ := g.Node(rootID)
	qv := g.AddNode("#duration", crate.TypeQuantitativeValue)
	qv.Add(crate.PropValue, crate.Lit("36"))
	qv.Add(crate.PropUnitCode, crate.Lit("HUR"))
	root.Add(crate.PropSize, crate.Ref("#duration"))

	s, err := Flatten(g, study.SourceIDR, "idr0164")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if *s.FileCount != 2480 || *s.TotalSizeBytes != 17179869184 {
		t.Fatalf("extra unit code disturbed the extent: %v %v", *s.FileCount, *s.TotalSizeBytes)
	}
}

func TestFlattenMissingRootIsDefect(t *testing.T) {
	g := crate.NewGraph()
	g.AddNode("#lonely", crate.TypePerson)

	_, err := Flatten(g, study.SourceIDR, "idr0001")
	if err == nil {
		t.Fatalf("expected a defect for a rootless graph")
	}
	if _, ok := err.(*Defect); !ok {
		t.Fatalf("expected *Defect, got %T", err)
	}
}

func TestRunKeepsOrderAndContinuesPastFailures(t *testing.T) {
	bad := crate.NewGraph()
	bad.AddNode("#nothing", crate.TypePerson)

	inputs := []Input{
		{Source: study.SourceIDR, Suffix: "idr0001", Graph: fullGraph()},
		{Source: study.SourceIDR, Suffix: "idr0002", Graph: bad},
		{Source: study.SourceIDR, Suffix: "idr0003", Graph: fullGraph()},
	}

	summary := Run(context.Background(), inputs, 2)
	if summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(summary.Outcomes))
	}

	want := []string{"idr:idr0001", "idr:idr0002", "idr:idr0003"}
	for i, o := range summary.Outcomes {
		if o.ID != want[i] {
			t.Fatalf("outcome %d: expected %q, got %q", i, want[i], o.ID)
		}
	}
	if summary.Outcomes[1].Err == nil || summary.Outcomes[1].Study != nil {
		t.Fatalf("failed record should carry only an error: %+v", summary.Outcomes[1])
	}

	studies := summary.Studies()
	if len(studies) != 2 || studies[0].ID != "idr:idr0001" || studies[1].ID != "idr:idr0003" {
		t.Fatalf("Studies() lost input order: %+v", studies)
	}
}
