// Package profile validates an entity graph against the interchange
// profile every source adapter must satisfy. Validation is a pure
// function over the graph: it either accepts, or returns the full list
// of violations found in one pass.
package profile

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gide-search/backend/pkg/crate"
)

// Kind names one class of profile violation.
type Kind string

const (
	RootCardinalityViolation Kind = "RootCardinalityViolation"
	InvalidRootIdentifier    Kind = "InvalidRootIdentifier"
	CardinalityViolation     Kind = "CardinalityViolation"
	MissingClosureEdge       Kind = "MissingClosureEdge"
	MissingRequiredField     Kind = "MissingRequiredField"
	MalformedFieldValue      Kind = "MalformedFieldValue"
	ProfileTooOld            Kind = "ProfileTooOld"
)

// Violation is one defect found during validation.
type Violation struct {
	Kind   Kind
	NodeID string
	// Edge or Field names the offending property, depending on Kind.
	Edge     string
	Field    string
	Expected string
	Actual   string
	Detail   string
}

func (v Violation) String() string {
	var b strings.Builder
	b.WriteString(string(v.Kind))
	if v.NodeID != "" {
		fmt.Fprintf(&b, " node=%s", v.NodeID)
	}
	if v.Edge != "" {
		fmt.Fprintf(&b, " edge=%s", v.Edge)
	}
	if v.Field != "" {
		fmt.Fprintf(&b, " field=%s", v.Field)
	}
	if v.Expected != "" {
		fmt.Fprintf(&b, " expected=%s actual=%s", v.Expected, v.Actual)
	}
	if v.Detail != "" {
		fmt.Fprintf(&b, " (%s)", v.Detail)
	}
	return b.String()
}

// Report is the outcome of validating one graph.
type Report struct {
	Violations []Violation
	// Root is the validated root Dataset node, set only when the
	// descriptor and root checks passed (the remaining checks may
	// still have recorded violations).
	Root *crate.Node
}

// OK reports whether the graph was accepted.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Error renders the report as a single error, or nil when accepted.
func (r Report) Error() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		lines[i] = v.String()
	}
	return fmt.Errorf("profile validation failed: %s", strings.Join(lines, "; "))
}

// requiredFields lists the fields each known type must carry.
var requiredFields = map[string][]string{
	crate.TypeDataset:           {crate.PropName, crate.PropDescription, crate.PropDatePublished, crate.PropLicense},
	crate.TypePerson:            {crate.PropName},
	crate.TypeOrganization:      {crate.PropName},
	crate.TypeBioSample:         {crate.PropName},
	crate.TypeTaxon:             {crate.PropScientificName},
	crate.TypeLabProtocol:       {crate.PropName},
	crate.TypeDefinedTerm:       {crate.PropName},
	crate.TypeQuantitativeValue: {crate.PropValue, crate.PropUnitCode},
}

// Validate checks a graph against the profile. All checks run; nothing
// short-circuits, so a caller can report every defect at once.
func Validate(g *crate.Graph) Report {
	var r Report

	descriptor := checkDescriptor(g, &r)
	root := checkRoot(g, descriptor, &r)
	if root != nil {
		r.Root = root
		checkRootIdentifier(root, &r)
		checkRootEdges(g, root, &r)
		checkClosure(g, root, &r)
	}
	checkFields(g, &r)
	checkReferences(g, &r)

	return r
}

// checkDescriptor verifies the fixed-id descriptor node exists and
// declares a recent enough profile version.
func checkDescriptor(g *crate.Graph, r *Report) *crate.Node {
	descriptor, ok := g.Node(crate.DescriptorID)
	if !ok {
		r.Violations = append(r.Violations, Violation{
			Kind:     RootCardinalityViolation,
			Edge:     "descriptor",
			Expected: "1",
			Actual:   "0",
			Detail:   "no " + crate.DescriptorID + " descriptor node",
		})
		return nil
	}

	refs := descriptor.Refs(crate.PropConformsTo)
	if len(refs) == 0 {
		r.Violations = append(r.Violations, Violation{
			Kind:   MissingRequiredField,
			NodeID: descriptor.ID,
			Field:  crate.PropConformsTo,
		})
		return descriptor
	}

	version, ok := profileVersion(refs[0])
	if !ok {
		r.Violations = append(r.Violations, Violation{
			Kind:   MalformedFieldValue,
			NodeID: descriptor.ID,
			Field:  crate.PropConformsTo,
			Actual: refs[0],
			Detail: "not a recognized profile assertion",
		})
		return descriptor
	}
	if compareVersions(version, crate.MinProfileVersion) < 0 {
		r.Violations = append(r.Violations, Violation{
			Kind:     ProfileTooOld,
			NodeID:   descriptor.ID,
			Expected: ">=" + crate.MinProfileVersion,
			Actual:   version,
		})
	}
	return descriptor
}

// profileVersion extracts the version component of a profile IRI.
func profileVersion(iri string) (string, bool) {
	if !strings.HasPrefix(iri, crate.ProfileBase) {
		return "", false
	}
	version := strings.Trim(strings.TrimPrefix(iri, crate.ProfileBase), "/")
	// Drop e.g. a trailing "/context" component.
	if idx := strings.IndexByte(version, '/'); idx >= 0 {
		version = version[:idx]
	}
	if version == "" {
		return "", false
	}
	return version, true
}

// compareVersions compares dotted numeric versions component-wise, so
// that "1.10" sorts above "1.2".
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		if i < len(as) {
			an, _ = strconv.Atoi(as[i])
		}
		if i < len(bs) {
			bn, _ = strconv.Atoi(bs[i])
		}
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	return 0
}

// checkRoot resolves the descriptor's about edge to exactly one
// Dataset node.
func checkRoot(g *crate.Graph, descriptor *crate.Node, r *Report) *crate.Node {
	if descriptor == nil {
		return nil
	}

	var candidates []*crate.Node
	for _, id := range descriptor.Refs(crate.PropAbout) {
		if n, ok := g.Node(id); ok && n.HasType(crate.TypeDataset) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) != 1 {
		r.Violations = append(r.Violations, Violation{
			Kind:     RootCardinalityViolation,
			NodeID:   descriptor.ID,
			Edge:     crate.PropAbout,
			Expected: "1",
			Actual:   strconv.Itoa(len(candidates)),
			Detail:   "descriptor must point at exactly one Dataset",
		})
		return nil
	}
	return candidates[0]
}

func checkRootIdentifier(root *crate.Node, r *Report) {
	parsed, err := url.Parse(root.ID)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		r.Violations = append(r.Violations, Violation{
			Kind:   InvalidRootIdentifier,
			NodeID: root.ID,
			Detail: "root id must be an absolute URL",
		})
	}
}

// checkRootEdges verifies the cardinality of the root's required
// outgoing edges.
func checkRootEdges(g *crate.Graph, root *crate.Node, r *Report) {
	addCardinality := func(edge, expected string, actual int) {
		r.Violations = append(r.Violations, Violation{
			Kind:     CardinalityViolation,
			NodeID:   root.ID,
			Edge:     edge,
			Expected: expected,
			Actual:   strconv.Itoa(actual),
		})
	}

	authors := root.Refs(crate.PropAuthor)
	if len(authors) < 1 {
		addCardinality(crate.PropAuthor, "1..*", len(authors))
	}

	publishers := root.Refs(crate.PropPublisher)
	if len(publishers) != 1 {
		addCardinality(crate.PropPublisher, "1", len(publishers))
	}

	about := root.Refs(crate.PropAbout)
	if len(about) < 1 {
		addCardinality(crate.PropAbout, "1..*", len(about))
	} else {
		taxa := 0
		for _, id := range about {
			if n, ok := g.Node(id); ok && n.HasType(crate.TypeTaxon) {
				taxa++
			}
		}
		if taxa < 1 {
			addCardinality(crate.PropAbout+"[Taxon]", "1..*", taxa)
		}
	}

	methods := root.Refs(crate.PropMeasurementMethod)
	if len(methods) < 1 {
		addCardinality(crate.PropMeasurementMethod, "1..*", len(methods))
	} else {
		terms := 0
		for _, id := range methods {
			n, ok := g.Node(id)
			if !ok {
				continue
			}
			if n.HasType(crate.TypeDefinedTerm) || n.HasType(crate.TypeLabProtocol) {
				terms++
			}
		}
		if terms < 1 {
			addCardinality(crate.PropMeasurementMethod+"[term]", "1..*", terms)
		}
	}
}

// closureRules lists the indirect paths whose targets must also be
// directly linked from the root: a term reachable in two hops through a
// recommended intermediate type must be reachable in one.
var closureRules = []struct {
	topEdge      string
	intermediate string
	termEdge     string
}{
	{crate.PropAbout, crate.TypeBioSample, crate.PropTaxonomicRange},
	{crate.PropMeasurementMethod, crate.TypeLabProtocol, crate.PropMeasurementTechnique},
}

func checkClosure(g *crate.Graph, root *crate.Node, r *Report) {
	for _, rule := range closureRules {
		oneHop := map[string]bool{}
		for _, id := range root.Refs(rule.topEdge) {
			oneHop[id] = true
		}
		for _, id := range root.Refs(rule.topEdge) {
			intermediate, ok := g.Node(id)
			if !ok || !intermediate.HasType(rule.intermediate) {
				continue
			}
			for _, termID := range intermediate.Refs(rule.termEdge) {
				if !oneHop[termID] {
					r.Violations = append(r.Violations, Violation{
						Kind:     MissingClosureEdge,
						NodeID:   termID,
						Edge:     rule.topEdge,
						Expected: "direct " + rule.topEdge + " edge from root",
						Detail:   "reachable only through " + intermediate.ID,
					})
				}
			}
		}
	}
}

// checkFields verifies per-type required fields and value formats on
// every node in the graph.
func checkFields(g *crate.Graph, r *Report) {
	for _, n := range g.Nodes() {
		for _, label := range n.Types {
			required, ok := requiredFields[label]
			if !ok {
				continue
			}
			for _, field := range required {
				if !n.Has(field) {
					r.Violations = append(r.Violations, Violation{
						Kind:   MissingRequiredField,
						NodeID: n.ID,
						Field:  field,
					})
				}
			}
		}

		if n.HasType(crate.TypeDataset) && n.Has(crate.PropDatePublished) {
			if _, err := parseISODate(n.String(crate.PropDatePublished)); err != nil {
				r.Violations = append(r.Violations, Violation{
					Kind:   MalformedFieldValue,
					NodeID: n.ID,
					Field:  crate.PropDatePublished,
					Actual: n.String(crate.PropDatePublished),
					Detail: "not an ISO 8601 date",
				})
			}
		}

		if n.HasType(crate.TypeQuantitativeValue) && n.Has(crate.PropValue) {
			if _, ok := numericValue(n); !ok {
				r.Violations = append(r.Violations, Violation{
					Kind:   MalformedFieldValue,
					NodeID: n.ID,
					Field:  crate.PropValue,
					Actual: n.String(crate.PropValue),
					Detail: "not a number",
				})
			}
		}
	}
}

// checkReferences flags dangling edges: every reference target must
// resolve inside the same graph.
func checkReferences(g *crate.Graph, r *Report) {
	for _, n := range g.Nodes() {
		for _, prop := range n.Properties() {
			// The descriptor's profile assertion points at an external
			// IRI by design, never at a graph node.
			if n.ID == crate.DescriptorID && prop == crate.PropConformsTo {
				continue
			}
			for _, id := range n.Refs(prop) {
				if _, ok := g.Node(id); !ok {
					r.Violations = append(r.Violations, Violation{
						Kind:   MalformedFieldValue,
						NodeID: n.ID,
						Field:  prop,
						Actual: id,
						Detail: "reference to a node not present in the graph",
					})
				}
			}
		}
	}
}

// NumericValue extracts the numeric payload of a QuantitativeValue
// node, accepting JSON numbers and decimal strings with "." separator.
func NumericValue(n *crate.Node) (float64, bool) {
	return numericValue(n)
}

func numericValue(n *crate.Node) (float64, bool) {
	if f, ok := n.Number(crate.PropValue); ok {
		return f, true
	}
	s := n.String(crate.PropValue)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseISODate is the date format check shared with the resolver.
func ParseISODate(s string) (string, error) {
	return parseISODate(s)
}

func parseISODate(s string) (string, error) {
	if len(s) < 10 {
		return "", fmt.Errorf("date %q too short", s)
	}
	s = s[:10]
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("date %q is not a YYYY-MM-DD calendar date", s)
	}
	if d.Year() < 1000 {
		return "", fmt.Errorf("date %q has a bad year", s)
	}
	return s, nil
}
