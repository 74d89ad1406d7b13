// Package crate holds the in-memory entity graph loaded from a
// linked-data (RO-Crate style) document. Nodes live in an arena
// addressed by id, so revisiting a node reached through two different
// edges is a lookup rather than an aliasing concern.
package crate

import "fmt"

// Value is a single property value: either a literal scalar or a
// reference to another node in the same graph.
type Value struct {
	ref     string
	literal any
}

// Lit wraps a scalar into a Value.
func Lit(v any) Value { return Value{literal: v} }

// Ref wraps a node id into a reference Value.
func Ref(id string) Value { return Value{ref: id} }

// IsRef reports whether the value is a node reference.
func (v Value) IsRef() bool { return v.ref != "" }

// RefID returns the referenced node id, or "" for literals.
func (v Value) RefID() string { return v.ref }

// Literal returns the scalar payload, or nil for references.
func (v Value) Literal() any { return v.literal }

// Node is one typed, identified entity.
type Node struct {
	ID    string
	Types []string
	// props preserves first-seen ordering of property names and of the
	// values under each name, matching the source serialization.
	propOrder []string
	props     map[string][]Value
}

// HasType reports whether the node declares the given type label.
func (n *Node) HasType(label string) bool {
	for _, t := range n.Types {
		if t == label {
			return true
		}
	}
	return false
}

// Values returns all values of a property in serialization order.
func (n *Node) Values(prop string) []Value {
	return n.props[prop]
}

// Has reports whether the property is present with at least one value.
func (n *Node) Has(prop string) bool {
	return len(n.props[prop]) > 0
}

// String returns the first literal string value of a property.
func (n *Node) String(prop string) string {
	for _, v := range n.Values(prop) {
		if s, ok := v.literal.(string); ok {
			return s
		}
	}
	return ""
}

// Strings returns every literal string value of a property.
func (n *Node) Strings(prop string) []string {
	var out []string
	for _, v := range n.Values(prop) {
		if s, ok := v.literal.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Number returns the first numeric value of a property. JSON numbers
// decode as float64; numeric strings are not coerced here.
func (n *Node) Number(prop string) (float64, bool) {
	for _, v := range n.Values(prop) {
		if f, ok := v.literal.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

// Refs returns every node reference under a property, in order.
func (n *Node) Refs(prop string) []string {
	var out []string
	for _, v := range n.Values(prop) {
		if v.IsRef() {
			out = append(out, v.ref)
		}
	}
	return out
}

// Properties returns the property names in first-seen order.
func (n *Node) Properties() []string {
	return n.propOrder
}

// Add appends a value to a property, preserving insertion order.
func (n *Node) Add(prop string, v Value) {
	if n.props == nil {
		n.props = map[string][]Value{}
	}
	if _, ok := n.props[prop]; !ok {
		n.propOrder = append(n.propOrder, prop)
	}
	n.props[prop] = append(n.props[prop], v)
}

// Set replaces all values of a property with a single value.
func (n *Node) Set(prop string, v Value) {
	if n.props == nil {
		n.props = map[string][]Value{}
	}
	if _, ok := n.props[prop]; !ok {
		n.propOrder = append(n.propOrder, prop)
	}
	n.props[prop] = []Value{v}
}

// Graph is an arena of nodes in first-seen order.
type Graph struct {
	order []*Node
	byID  map[string]*Node
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byID: map[string]*Node{}}
}

// AddNode inserts a node, or merges types/properties into an existing
// node with the same id (a document may mention an entity before
// defining it).
func (g *Graph) AddNode(id string, types ...string) *Node {
	if n, ok := g.byID[id]; ok {
		for _, t := range types {
			if !n.HasType(t) {
				n.Types = append(n.Types, t)
			}
		}
		return n
	}
	n := &Node{ID: id, Types: types}
	g.byID[id] = n
	g.order = append(g.order, n)
	return n
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Nodes returns all nodes in first-seen order.
func (g *Graph) Nodes() []*Node {
	return g.order
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Resolve dereferences the targets of a property on a node, keeping
// serialization order and skipping literals. Dangling references yield
// an error naming the missing target.
func (g *Graph) Resolve(n *Node, prop string) ([]*Node, error) {
	var out []*Node
	for _, id := range n.Refs(prop) {
		target, ok := g.byID[id]
		if !ok {
			return nil, fmt.Errorf("node %q: property %q references unknown node %q", n.ID, prop, id)
		}
		out = append(out, target)
	}
	return out, nil
}
