package profile

import (
	"testing"

	"github.com/gide-search/backend/pkg/crate"
)

const rootID = "https://example.org/study/idr0001"

// validGraph builds the smallest graph that passes every check. Tests
// mutate the result to provoke individual violations.
func validGraph() *crate.Graph {
	g := crate.NewGraph()

	desc := g.AddNode(crate.DescriptorID, crate.TypeCreativeWork)
	desc.Add(crate.PropConformsTo, crate.Ref(crate.ProfileBase+"1.1"))
	desc.Add(crate.PropAbout, crate.Ref(rootID))

	root := g.AddNode(rootID, crate.TypeDataset)
	root.Add(crate.PropName, crate.Lit("Light-sheet imaging of zebrafish"))
	root.Add(crate.PropDescription, crate.Lit("Whole-embryo time series."))
	root.Add(crate.PropDatePublished, crate.Lit("2021-04-12"))
	root.Add(crate.PropLicense, crate.Lit("https://creativecommons.org/licenses/by/4.0/"))
	root.Add(crate.PropAuthor, crate.Ref("#alice"))
	root.Add(crate.PropPublisher, crate.Ref("#org"))
	root.Add(crate.PropAbout, crate.Ref("#taxon"))
	root.Add(crate.PropMeasurementMethod, crate.Ref("#method"))

	alice := g.AddNode("#alice", crate.TypePerson)
	alice.Add(crate.PropName, crate.Lit("Alice Example"))

	org := g.AddNode("#org", crate.TypeOrganization)
	org.Add(crate.PropName, crate.Lit("Example Institute"))

	taxon := g.AddNode("#taxon", crate.TypeTaxon)
	taxon.Add(crate.PropScientificName, crate.Lit("Danio rerio"))

	method := g.AddNode("#method", crate.TypeDefinedTerm)
	method.Add(crate.PropName, crate.Lit("light-sheet fluorescence microscopy"))

	return g
}

func kinds(r Report) []Kind {
	out := make([]Kind, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Kind
	}
	return out
}

func hasKind(r Report, k Kind) bool {
	for _, v := range r.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}

func TestValidateAcceptsValidGraph(t *testing.T) {
	r := Validate(validGraph())
	if !r.OK() {
		t.Fatalf("expected acceptance, got %v", kinds(r))
	}
	if r.Root == nil || r.Root.ID != rootID {
		t.Fatalf("report did not carry the root node")
	}
	if r.Error() != nil {
		t.Fatalf("Error() should be nil on acceptance")
	}
}

func TestValidateMissingDescriptor(t *testing.T) {
	g := crate.NewGraph()
	root := g.AddNode(rootID, crate.TypeDataset)
	root.Add(crate.PropName, crate.Lit("x"))

	r := Validate(g)
	if !hasKind(r, RootCardinalityViolation) {
		t.Fatalf("expected RootCardinalityViolation, got %v", kinds(r))
	}
	if r.Root != nil {
		t.Fatalf("no root should be resolved without a descriptor")
	}
}

func TestValidateProfileTooOld(t *testing.T) {
	g := validGraph()
	desc, _ := g.Node(crate.DescriptorID)
	desc.Set(crate.PropConformsTo, crate.Ref(crate.ProfileBase+"1.0"))

	r := Validate(g)
	if !hasKind(r, ProfileTooOld) {
		t.Fatalf("expected ProfileTooOld, got %v", kinds(r))
	}
}

func TestValidateAcceptsNewerProfile(t *testing.T) {
	g := validGraph()
	desc, _ := g.Node(crate.DescriptorID)
	// "1.10" must compare above "1.2", not below it.
	desc.Set(crate.PropConformsTo, crate.Ref(crate.ProfileBase+"1.10"))

	r := Validate(g)
	if hasKind(r, ProfileTooOld) {
		t.Fatalf("version 1.10 flagged as too old")
	}
}

func TestValidateUnrecognizedProfileAssertion(t *testing.T) {
	g := validGraph()
	desc, _ := g.Node(crate.DescriptorID)
	desc.Set(crate.PropConformsTo, crate.Ref("https://example.org/some-other-profile"))

	r := Validate(g)
	if !hasKind(r, MalformedFieldValue) {
		t.Fatalf("expected MalformedFieldValue, got %v", kinds(r))
	}
}

func TestValidateRelativeRootIdentifier(t *testing.T) {
	g := crate.NewGraph()

	desc := g.AddNode(crate.DescriptorID, crate.TypeCreativeWork)
	desc.Add(crate.PropConformsTo, crate.Ref(crate.ProfileBase+"1.1"))
	desc.Add(crate.PropAbout, crate.Ref("./"))

	root := g.AddNode("./", crate.TypeDataset)
	root.Add(crate.PropName, crate.Lit("x"))
	root.Add(crate.PropDescription, crate.Lit("y"))
	root.Add(crate.PropDatePublished, crate.Lit("2021-04-12"))
	root.Add(crate.PropLicense, crate.Lit("z"))
	root.Add(crate.PropAuthor, crate.Ref("#a"))
	root.Add(crate.PropPublisher, crate.Ref("#a"))
	root.Add(crate.PropAbout, crate.Ref("#taxon"))
	root.Add(crate.PropMeasurementMethod, crate.Ref("#m"))
	g.AddNode("#a", crate.TypePerson).Add(crate.PropName, crate.Lit("a"))
	g.AddNode("#taxon", crate.TypeTaxon).Add(crate.PropScientificName, crate.Lit("t"))
	g.AddNode("#m", crate.TypeDefinedTerm).Add(crate.PropName, crate.Lit("m"))

	r := Validate(g)
	if !hasKind(r, InvalidRootIdentifier) {
		t.Fatalf("expected InvalidRootIdentifier, got %v", kinds(r))
	}
}

func TestValidateRootEdgeCardinality(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(root *crate.Node)
		kind   Kind
	}{
		{
			// A literal author is not a reference, so the edge count is 0.
			name:   "no author reference",
			mutate: func(root *crate.Node) { root.Set(crate.PropAuthor, crate.Lit("Alice Example")) },
			kind:   CardinalityViolation,
		},
		{
			name: "two publishers",
			mutate: func(root *crate.Node) {
				root.Add(crate.PropPublisher, crate.Ref("#alice"))
			},
			kind: CardinalityViolation,
		},
		{
			name:   "no measurement method reference",
			mutate: func(root *crate.Node) { root.Set(crate.PropMeasurementMethod, crate.Lit("microscopy")) },
			kind:   CardinalityViolation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := validGraph()
			root, _ := g.Node(rootID)
			tc.mutate(root)
			r := Validate(g)
			if !hasKind(r, tc.kind) {
				t.Fatalf("expected %s, got %v", tc.kind, kinds(r))
			}
		})
	}
}

func TestValidateAboutNeedsTaxon(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)
	// Keep an about edge, but pointing at a non-Taxon node.
	root.Set(crate.PropAbout, crate.Ref("#alice"))

	r := Validate(g)
	if !hasKind(r, CardinalityViolation) {
		t.Fatalf("expected CardinalityViolation, got %v", kinds(r))
	}
}

func TestValidateClosure(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)

	sample := g.AddNode("#sample", crate.TypeBioSample)
	sample.Add(crate.PropName, crate.Lit("embryo"))
	sample.Add(crate.PropTaxonomicRange, crate.Ref("#taxon2"))
	g.AddNode("#taxon2", crate.TypeTaxon).Add(crate.PropScientificName, crate.Lit("Mus musculus"))

	root.Add(crate.PropAbout, crate.Ref("#sample"))

	r := Validate(g)
	if !hasKind(r, MissingClosureEdge) {
		t.Fatalf("expected MissingClosureEdge, got %v", kinds(r))
	}

	// A direct edge to the sample's taxon repairs the closure.
	root.Add(crate.PropAbout, crate.Ref("#taxon2"))
	r = Validate(g)
	if hasKind(r, MissingClosureEdge) {
		t.Fatalf("closure still flagged after adding the direct edge: %v", kinds(r))
	}
}

func TestValidateProtocolClosure(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)

	proto := g.AddNode("#proto", crate.TypeLabProtocol)
	proto.Add(crate.PropName, crate.Lit("fixation protocol"))
	proto.Add(crate.PropMeasurementTechnique, crate.Ref("#tech"))
	g.AddNode("#tech", crate.TypeDefinedTerm).Add(crate.PropName, crate.Lit("confocal microscopy"))

	root.Add(crate.PropMeasurementMethod, crate.Ref("#proto"))

	r := Validate(g)
	if !hasKind(r, MissingClosureEdge) {
		t.Fatalf("expected MissingClosureEdge, got %v", kinds(r))
	}
}

func TestValidateMissingRequiredFields(t *testing.T) {
	g := validGraph()
	g.AddNode("#bare-taxon", crate.TypeTaxon)

	r := Validate(g)
	if !hasKind(r, MissingRequiredField) {
		t.Fatalf("expected MissingRequiredField, got %v", kinds(r))
	}
}

func TestValidateMalformedDate(t *testing.T) {
	for _, date := range []string{"April 2021", "2021-02-31"} {
		g := validGraph()
		root, _ := g.Node(rootID)
		root.Set(crate.PropDatePublished, crate.Lit(date))

		r := Validate(g)
		if !hasKind(r, MalformedFieldValue) {
			t.Fatalf("date %q: expected MalformedFieldValue, got %v", date, kinds(r))
		}
	}
}

func TestValidateDanglingReference(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)
	root.Add(crate.PropCitation, crate.Ref("#missing-article"))

	r := Validate(g)
	if !hasKind(r, MalformedFieldValue) {
		t.Fatalf("expected MalformedFieldValue, got %v", kinds(r))
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)
	root.Set(crate.PropAuthor, crate.Lit("Alice Example"))
	root.Set(crate.PropDatePublished, crate.Lit("bad"))
	g.AddNode("#bare-taxon", crate.TypeTaxon)

	r := Validate(g)
	if len(r.Violations) < 3 {
		t.Fatalf("expected at least 3 violations, got %d: %v", len(r.Violations), kinds(r))
	}
	if r.Error() == nil {
		t.Fatalf("Error() should be non-nil when violations exist")
	}
}

func TestValidateMalformedQuantitativeValue(t *testing.T) {
	g := validGraph()
	root, _ := g.Node(rootID)
	qv := g.AddNode("#size", crate.TypeQuantitativeValue)
	qv.Add(crate.PropValue, crate.Lit("lots"))
	qv.Add(crate.PropUnitCode, crate.Lit(crate.UnitCodeCount))
	root.Add(crate.PropSize, crate.Ref("#size"))

	r := Validate(g)
	if !hasKind(r, MalformedFieldValue) {
		t.Fatalf("expected MalformedFieldValue, got %v", kinds(r))
	}
}

func TestParseISODate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2021-04-12", "2021-04-12", true},
		{"2021-04-12T10:30:00Z", "2021-04-12", true},
		{"2021", "", false},
		{"2021-13-01", "", false},
		{"2021-00-10", "", false},
		{"2021-02-31", "", false},
		{"2021-04-31", "", false},
		{"0999-01-01", "", false},
	}
	for _, tc := range tests {
		got, err := ParseISODate(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseISODate(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseISODate(%q) should have failed", tc.in)
		}
	}
}
