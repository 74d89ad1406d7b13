package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gide-search/backend/pkg/profile"
	"github.com/gide-search/backend/pkg/resolve"
	"github.com/gide-search/backend/pkg/study"
)

const responseBody = `{
  "hits": {
    "hits": [
      {"_source": {
        "accession_id": "S-BIAD1234",
        "title": "Volume EM of mouse cortex",
        "description": "Serial block-face imaging of cortical tissue.",
        "licence": "CC0",
        "release_date": "2023-01-15",
        "doi": "10.6019/S-BIAD1234",
        "keyword": ["mouse", "EM"],
        "author": [
          {
            "display_name": "Alice Example",
            "orcid": "0000-0002-1825-0097",
            "affiliation": [
              {"display_name": "Example Institute", "rorid": "https://ror.org/02jx3x895"}
            ]
          }
        ],
        "grant": [
          {"id": "EF-2020-1234", "funder": [{"display_name": "Example Foundation"}]}
        ],
        "related_publication": [
          {"doi": "10.1038/s41586-023-1", "title": "Cortical wiring", "publication_year": 2023}
        ],
        "dataset": [
          {
            "biological_entity": [
              {
                "title": "cortex tissue block",
                "biological_entity_description": "fixed brain tissue",
                "organism_classification": [
                  {"scientific_name": "Mus musculus", "common_name": "mouse", "ncbi_id": "http://purl.obolibrary.org/obo/NCBITaxon_10090"}
                ]
              }
            ],
            "acquisition_process": [
              {
                "title": "SBF-SEM acquisition",
                "imaging_instrument_description": "Zeiss Merlin",
                "imaging_method_name": ["serial block face scanning electron microscopy"],
                "fbbi_id": ["http://purl.obolibrary.org/obo/FBbi_00000585"]
              }
            ],
            "file_reference_count": 1200,
            "file_reference_size_bytes": 904000000,
            "example_image_uri": "https://example.org/thumb.png"
          }
        ]
      }},
      {"_source": {"title": "hit without accession id"}}
    ]
  }
}`

func TestParseResponse(t *testing.T) {
	records, err := ParseResponse([]byte(responseBody))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record (the id-less hit skipped), got %d", len(records))
	}
	if records[0].Suffix != "S-BIAD1234" {
		t.Fatalf("unexpected suffix %q", records[0].Suffix)
	}
}

func TestParseResponseRejectsGarbage(t *testing.T) {
	if _, err := ParseResponse([]byte("not json")); err == nil {
		t.Fatalf("expected a decode error")
	}
}

func TestTransformHitProducesValidGraph(t *testing.T) {
	records, err := ParseResponse([]byte(responseBody))
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	g := records[0].Graph

	report := profile.Validate(g)
	if !report.OK() {
		t.Fatalf("emitted graph fails validation: %v", report.Error())
	}

	s, err := resolve.Flatten(g, study.SourceBIA, records[0].Suffix)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if s.ID != "bia:S-BIAD1234" {
		t.Fatalf("unexpected id %q", s.ID)
	}
	if s.DataDOI != "10.6019/S-BIAD1234" {
		t.Fatalf("unexpected DOI %q", s.DataDOI)
	}
	if len(s.Authors) != 1 || s.Authors[0].ORCID != "https://orcid.org/0000-0002-1825-0097" {
		t.Fatalf("unexpected authors %+v", s.Authors)
	}
	if len(s.Organisms) != 1 || s.Organisms[0].NCBITaxonID != 10090 {
		t.Fatalf("unexpected organisms %+v", s.Organisms)
	}
	if s.Organisms[0].CommonName != "mouse" {
		t.Fatalf("common name lost: %+v", s.Organisms[0])
	}
	if len(s.ImagingMethods) != 1 || s.ImagingMethods[0].FbbiID != "FBbi:00000585" {
		t.Fatalf("unexpected imaging methods %+v", s.ImagingMethods)
	}
	if len(s.BioSamples) != 1 || s.BioSamples[0].Name != "cortex tissue block" {
		t.Fatalf("unexpected biosamples %+v", s.BioSamples)
	}
	if len(s.Funding) != 1 || s.Funding[0].GrantID != "EF-2020-1234" {
		t.Fatalf("unexpected funding %+v", s.Funding)
	}
	if len(s.Publications) != 1 || s.Publications[0].Year != 2023 {
		t.Fatalf("unexpected publications %+v", s.Publications)
	}
	if s.FileCount == nil || *s.FileCount != 1200 {
		t.Fatalf("unexpected file count %v", s.FileCount)
	}
	if s.TotalSizeBytes == nil || *s.TotalSizeBytes != 904000000 {
		t.Fatalf("unexpected size %v", s.TotalSizeBytes)
	}
	if len(s.ThumbnailURLs) != 1 {
		t.Fatalf("thumbnail lost: %+v", s.ThumbnailURLs)
	}
}

func TestRecordsPassesQueryParameters(t *testing.T) {
	var gotQuery, gotPageSize string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotPageSize = r.URL.Query().Get("pagination.page_size")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(responseBody))
	}))
	defer server.Close()

	a := New("microscopy", 50)
	a.BaseURL = server.URL

	records, err := a.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if gotQuery != "microscopy" || gotPageSize != "50" {
		t.Fatalf("unexpected request parameters query=%q page_size=%q", gotQuery, gotPageSize)
	}
}

func TestRecordsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	a := New("microscopy", 50)
	a.BaseURL = server.URL

	if _, err := a.Records(context.Background()); err == nil {
		t.Fatalf("expected an error on a non-200 response")
	}
}
