package rdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gide-search/backend/pkg/profile"
	"github.com/gide-search/backend/pkg/resolve"
	"github.com/gide-search/backend/pkg/study"
)

const export = `<http://ssbd.riken.jp/resource/ssbd-dataset-101> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ssbd.riken.jp/ontology/SSBD_dataset> .
<http://ssbd.riken.jp/resource/ssbd-dataset-101> <http://ssbd.riken.jp/ontology/has_dataset_title> "Nuclear division dynamics in C. elegans" .
<http://ssbd.riken.jp/resource/ssbd-dataset-101> <http://ssbd.riken.jp/ontology/has_biosample_information> <http://ssbd.riken.jp/resource/bs-101> .
<http://ssbd.riken.jp/resource/ssbd-dataset-101> <http://ssbd.riken.jp/ontology/has_imaging_method_total_info> <http://ssbd.riken.jp/resource/im-101> .
<http://ssbd.riken.jp/resource/bs-101> <http://ssbd.riken.jp/ontology/is_about_organism> <http://purl.obolibrary.org/obo/NCBITaxon_6239> .
<http://purl.obolibrary.org/obo/NCBITaxon_6239> <http://www.w3.org/2000/01/rdf-schema#label> "Caenorhabditis elegans" .
<http://ssbd.riken.jp/resource/im-101> <http://ssbd.riken.jp/ontology/has_imaging_method_recorded_type> <http://purl.obolibrary.org/obo/FBbi_00000246> .
<http://ssbd.riken.jp/resource/im-101> <http://ssbd.riken.jp/ontology/has_body> "spinning disk confocal microscope" .
<http://purl.obolibrary.org/obo/FBbi_00000246> <http://www.w3.org/2000/01/rdf-schema#label> "fluorescence microscopy" .
<http://ssbd.riken.jp/resource/project-9> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ssbd.riken.jp/ontology/SSBD_Project> .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_dataset_output> <http://ssbd.riken.jp/resource/ssbd-dataset-101> .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_project_url> "https://ssbd.riken.jp/database/project/ssbd-project-9/" .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_description> "Time-lapse recordings of nuclear division in early embryos." .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_license> "CC BY 4.0" .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_submission_date> "2018-06-01" .
<http://ssbd.riken.jp/resource/project-9> <http://ssbd.riken.jp/ontology/has_project_publications> <http://ssbd.riken.jp/resource/paper-9> .
<http://ssbd.riken.jp/resource/paper-9> <http://ssbd.riken.jp/ontology/has_doi> "10.1038/ncb1234" .
<http://ssbd.riken.jp/resource/paper-9> <http://ssbd.riken.jp/ontology/has_PMID> "29123456" .
<http://ssbd.riken.jp/resource/paper-9> <http://ssbd.riken.jp/ontology/has_paper_information> "Sato A, Tanaka B (2018) Nuclear division dynamics, Nat Cell Biol, 20" .
`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.nt")
	if err := os.WriteFile(path, []byte(export), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRecords(t *testing.T) {
	a := New(writeExport(t))
	if a.Source() != study.SourceSSBD {
		t.Fatalf("unexpected source %q", a.Source())
	}

	records, err := a.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Suffix != "ssbd-dataset-101" {
		t.Fatalf("unexpected suffix %q", records[0].Suffix)
	}

	report := profile.Validate(records[0].Graph)
	if !report.OK() {
		t.Fatalf("emitted graph fails validation: %v", report.Error())
	}
}

func TestRecordsFlattenEndToEnd(t *testing.T) {
	a := New(writeExport(t))
	records, err := a.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	s, err := resolve.Flatten(records[0].Graph, study.SourceSSBD, records[0].Suffix)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if s.ID != "ssbd:ssbd-dataset-101" {
		t.Fatalf("unexpected id %q", s.ID)
	}
	if s.Title != "Nuclear division dynamics in C. elegans" {
		t.Fatalf("unexpected title %q", s.Title)
	}
	if s.SourceURL != "https://ssbd.riken.jp/database/project/ssbd-project-9/" {
		t.Fatalf("unexpected source url %q", s.SourceURL)
	}
	if s.ReleaseDate.String() != "2018-06-01" {
		t.Fatalf("unexpected date %v", s.ReleaseDate)
	}

	// Authors come from the citation string, the only place the export
	// names people.
	if len(s.Authors) != 2 || s.Authors[0].Name != "Sato A" || s.Authors[1].Name != "Tanaka B" {
		t.Fatalf("unexpected authors %+v", s.Authors)
	}

	if len(s.Organisms) != 1 {
		t.Fatalf("unexpected organisms %+v", s.Organisms)
	}
	organism := s.Organisms[0]
	if organism.ScientificName != "Caenorhabditis elegans" || organism.NCBITaxonID != 6239 {
		t.Fatalf("unexpected organism %+v", organism)
	}

	if len(s.ImagingMethods) != 1 {
		t.Fatalf("unexpected imaging methods %+v", s.ImagingMethods)
	}
	method := s.ImagingMethods[0]
	if method.Name != "fluorescence microscopy" || method.FbbiID != "FBbi:00000246" {
		t.Fatalf("unexpected method %+v", method)
	}

	if len(s.ImageAcquisitionProtocols) != 1 ||
		s.ImageAcquisitionProtocols[0].ImagingInstrumentDescription != "spinning disk confocal microscope" {
		t.Fatalf("unexpected protocols %+v", s.ImageAcquisitionProtocols)
	}

	if len(s.Publications) != 1 {
		t.Fatalf("unexpected publications %+v", s.Publications)
	}
	pub := s.Publications[0]
	if pub.DOI != "10.1038/ncb1234" || pub.PubmedID != "29123456" || pub.Year != 2018 {
		t.Fatalf("unexpected publication %+v", pub)
	}
	if pub.Title != "Nuclear division dynamics" || pub.AuthorsName != "Sato A, Tanaka B" {
		t.Fatalf("citation string not split: %+v", pub)
	}
}

func TestRecordsMissingFile(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "absent.nt"))
	if _, err := a.Records(context.Background()); err == nil {
		t.Fatalf("expected an error for a missing export file")
	}
}
