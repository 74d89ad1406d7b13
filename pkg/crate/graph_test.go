package crate

import "testing"

func TestAddNodeMergesTypes(t *testing.T) {
	g := NewGraph()

	a := g.AddNode("#sample", TypeBioSample)
	a.Set(PropName, Lit("HeLa culture"))

	// A second occurrence of the same id contributes another type but
	// must not clobber the existing properties.
	b := g.AddNode("#sample", TypeDataset)
	if a != b {
		t.Fatalf("AddNode returned a new node for an existing id")
	}
	if !b.HasType(TypeBioSample) || !b.HasType(TypeDataset) {
		t.Fatalf("types not merged: %v", b.Types)
	}
	if b.String(PropName) != "HeLa culture" {
		t.Fatalf("existing property lost after merge")
	}
	if g.Len() != 1 {
		t.Fatalf("expected 1 node, got %d", g.Len())
	}
}

func TestNodeValueAccessors(t *testing.T) {
	g := NewGraph()
	n := g.AddNode("#qv", TypeQuantitativeValue)
	n.Add(PropValue, Lit(float64(1024)))
	n.Add(PropUnitCode, Lit(UnitCodeBytes))
	n.Add(PropKeywords, Lit("a"))
	n.Add(PropKeywords, Lit("b"))
	n.Add(PropAuthor, Ref("#p1"))
	n.Add(PropAuthor, Lit("not a ref"))
	n.Add(PropAuthor, Ref("#p2"))

	if v, ok := n.Number(PropValue); !ok || v != 1024 {
		t.Fatalf("Number returned %v %v", v, ok)
	}
	if _, ok := n.Number(PropUnitCode); ok {
		t.Fatalf("Number parsed a non-numeric literal")
	}
	if got := n.Strings(PropKeywords); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected Strings result %v", got)
	}
	if refs := n.Refs(PropAuthor); len(refs) != 2 || refs[0] != "#p1" || refs[1] != "#p2" {
		t.Fatalf("Refs should skip literals: %v", refs)
	}
	if n.String("missing") != "" {
		t.Fatalf("String on a missing property should be empty")
	}
}

func TestResolveDanglingReference(t *testing.T) {
	g := NewGraph()
	root := g.AddNode("./", TypeDataset)
	root.Add(PropAuthor, Ref("#ghost"))

	if _, err := g.Resolve(root, PropAuthor); err == nil {
		t.Fatalf("expected a dangling reference error")
	}

	g.AddNode("#ghost", TypePerson)
	targets, err := g.Resolve(root, PropAuthor)
	if err != nil {
		t.Fatalf("Resolve failed after adding the target: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != "#ghost" {
		t.Fatalf("unexpected resolve result %v", targets)
	}
}
