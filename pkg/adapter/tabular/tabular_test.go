package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gide-search/backend/pkg/crate"
	"github.com/gide-search/backend/pkg/profile"
	"github.com/gide-search/backend/pkg/resolve"
	"github.com/gide-search/backend/pkg/study"
)

const studyFile = `# Comment rows are ignored
"# Even when the hash hides inside quotes"
Comment[IDR Study Accession]	idr0164
Study Title	Light-sheet imaging of zebrafish embryos
Study Description	Whole-embryo time series of zebrafish development.
Study Public Release Date	2021-04-12
Study License	CC BY 4.0
Study Author List	Example A, Example B
Study Organism	Danio rerio
Study Organism Term Accession	NCBITaxon_7955
Screen Imaging Method	light sheet fluorescence microscopy
Screen Imaging Method Term Accession	FBbi_00000369
Screen Sample Type	whole organism
Study PubMed ID	34012345
Study DOI	https://doi.org/10.1038/s41586-021-1
Study Publication Title	Imaging zebrafish development
`

func writeCheckout(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	studyDir := filepath.Join(dir, "idr0164-example-screen")
	if err := os.MkdirAll(studyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(studyDir, "idr0164-study.txt")
	if err := os.WriteFile(path, []byte(studyFile), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func TestRecords(t *testing.T) {
	a := New(writeCheckout(t))
	if a.Source() != study.SourceIDR {
		t.Fatalf("unexpected source %q", a.Source())
	}

	records, err := a.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.Suffix != "idr0164" {
		t.Fatalf("unexpected suffix %q", record.Suffix)
	}

	report := profile.Validate(record.Graph)
	if !report.OK() {
		t.Fatalf("emitted graph fails validation: %v", report.Error())
	}
}

func TestRecordsFlattenEndToEnd(t *testing.T) {
	a := New(writeCheckout(t))
	records, err := a.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	s, err := resolve.Flatten(records[0].Graph, study.SourceIDR, records[0].Suffix)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if s.ID != "idr:idr0164" {
		t.Fatalf("unexpected id %q", s.ID)
	}
	if s.Title != "Light-sheet imaging of zebrafish embryos" {
		t.Fatalf("unexpected title %q", s.Title)
	}
	if s.ReleaseDate.String() != "2021-04-12" {
		t.Fatalf("unexpected date %v", s.ReleaseDate)
	}
	if len(s.Authors) != 2 || s.Authors[0].Name != "Example A" {
		t.Fatalf("unexpected authors %+v", s.Authors)
	}
	if s.Publisher.DisplayName != "Image Data Resource" {
		t.Fatalf("unexpected publisher %+v", s.Publisher)
	}
	if len(s.Organisms) != 1 || s.Organisms[0].NCBITaxonID != 7955 {
		t.Fatalf("unexpected organisms %+v", s.Organisms)
	}
	if len(s.ImagingMethods) != 1 || s.ImagingMethods[0].FbbiID != "FBbi:00000369" {
		t.Fatalf("unexpected imaging methods %+v", s.ImagingMethods)
	}
	if len(s.BioSamples) != 1 || s.BioSamples[0].SampleType != "organism" {
		t.Fatalf("unexpected biosamples %+v", s.BioSamples)
	}
	if len(s.Publications) != 1 {
		t.Fatalf("unexpected publications %+v", s.Publications)
	}
	pub := s.Publications[0]
	if pub.DOI != "10.1038/s41586-021-1" || pub.PubmedID != "34012345" {
		t.Fatalf("unexpected publication %+v", pub)
	}
}

func TestRecordsSkipsUnreadableFiles(t *testing.T) {
	dir := writeCheckout(t)

	// A second study whose file carries no metadata rows is skipped, not
	// fatal to the batch.
	brokenDir := filepath.Join(dir, "idr0165-broken")
	if err := os.MkdirAll(brokenDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(brokenDir, "idr0165-study.txt"), []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := New(dir).Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the broken study to be skipped, got %d records", len(records))
	}
}

func TestRecordsSuffixFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	studyDir := filepath.Join(dir, "idr0200-no-accession")
	if err := os.MkdirAll(studyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "Study Title\tUntagged study\n"
	if err := os.WriteFile(filepath.Join(studyDir, "idr0200-study.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := New(dir).Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 || records[0].Suffix != "idr0200" {
		t.Fatalf("expected filename-derived suffix, got %+v", records)
	}
}

func TestParseStudyFileMultiValueKeys(t *testing.T) {
	content := "Study Organism\tDanio rerio\nStudy Organism\tMus musculus\n"
	dir := t.TempDir()
	studyDir := filepath.Join(dir, "idr0300-multi")
	if err := os.MkdirAll(studyDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(studyDir, "idr0300-study.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := New(dir).Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	g := records[0].Graph

	taxa := 0
	for _, n := range g.Nodes() {
		if n.HasType(crate.TypeTaxon) {
			taxa++
		}
	}
	if taxa != 2 {
		t.Fatalf("expected 2 taxon nodes from repeated keys, got %d", taxa)
	}
}
