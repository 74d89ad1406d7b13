package crate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Parse loads an entity graph from a JSON-LD document with a top-level
// "@graph" array. Property values that are objects become nodes in
// their own right: a bare {"@id": ...} is recorded as a reference, an
// inline entity is registered in the arena and referenced, and an
// object with no "@id" gets a generated blank-node id. Decoding walks
// the raw token stream so that the first-seen order of nodes and of
// multi-valued properties survives exactly as serialized.
func Parse(data []byte) (*Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	loader := &loader{graph: NewGraph()}
	foundGraph := false

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read document key: %w", err)
		}
		key, _ := keyTok.(string)
		if key != "@graph" {
			if err := skipValue(dec); err != nil {
				return nil, fmt.Errorf("skip %q: %w", key, err)
			}
			continue
		}
		foundGraph = true
		if err := loader.readGraphArray(dec); err != nil {
			return nil, err
		}
	}

	if !foundGraph {
		return nil, fmt.Errorf("document has no @graph array")
	}
	return loader.graph, nil
}

type loader struct {
	graph  *Graph
	blanks int
}

func (l *loader) nextBlankID() string {
	l.blanks++
	return fmt.Sprintf("_:b%d", l.blanks)
}

func (l *loader) readGraphArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read @graph: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return fmt.Errorf("@graph is not an array")
	}
	for dec.More() {
		if _, err := l.readEntity(dec); err != nil {
			return err
		}
	}
	_, err = dec.Token() // closing ]
	return err
}

// readEntity consumes one JSON object and registers it as a node,
// returning its id.
func (l *loader) readEntity(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("read entity: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", fmt.Errorf("graph entry is not an object")
	}

	type pending struct {
		prop   string
		values []Value
	}
	var (
		id    string
		types []string
		props []pending
	)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("read entity key: %w", err)
		}
		key, _ := keyTok.(string)

		switch key {
		case "@id":
			v, err := dec.Token()
			if err != nil {
				return "", err
			}
			id, _ = v.(string)
		case "@type":
			labels, err := l.readTypeLabels(dec)
			if err != nil {
				return "", err
			}
			types = labels
		default:
			values, err := l.readValues(dec)
			if err != nil {
				return "", fmt.Errorf("property %q: %w", key, err)
			}
			props = append(props, pending{prop: key, values: values})
		}
	}
	if _, err := dec.Token(); err != nil { // closing }
		return "", err
	}

	if id == "" {
		id = l.nextBlankID()
	}
	node := l.graph.AddNode(id, types...)
	for _, p := range props {
		for _, v := range p.values {
			node.Add(p.prop, v)
		}
	}
	return id, nil
}

func (l *loader) readTypeLabels(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case string:
		return []string{t}, nil
	case json.Delim:
		if t != '[' {
			return nil, fmt.Errorf("@type must be a string or array")
		}
		var labels []string
		for dec.More() {
			item, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if s, ok := item.(string); ok {
				labels = append(labels, s)
			}
		}
		_, err := dec.Token() // closing ]
		return labels, err
	default:
		return nil, fmt.Errorf("@type must be a string or array")
	}
}

// readValues consumes one property value (scalar, object or array) and
// returns the Values it contributes, registering inline entities.
func (l *loader) readValues(dec *json.Decoder) ([]Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v, err := l.readObjectValue(dec)
			if err != nil {
				return nil, err
			}
			return []Value{v}, nil
		case '[':
			var out []Value
			for dec.More() {
				inner, err := l.readValues(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, inner...)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		return nil, nil
	default:
		return []Value{Lit(t)}, nil
	}
}

// readObjectValue handles an object in value position: a reference, an
// inline entity, or an anonymous (blank) entity. The opening brace has
// already been consumed.
func (l *loader) readObjectValue(dec *json.Decoder) (Value, error) {
	type pending struct {
		prop   string
		values []Value
	}
	var (
		id     string
		types  []string
		props  []pending
		fields int
	)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, _ := keyTok.(string)
		fields++

		switch key {
		case "@id":
			v, err := dec.Token()
			if err != nil {
				return Value{}, err
			}
			id, _ = v.(string)
		case "@type":
			labels, err := l.readTypeLabels(dec)
			if err != nil {
				return Value{}, err
			}
			types = labels
		default:
			values, err := l.readValues(dec)
			if err != nil {
				return Value{}, err
			}
			props = append(props, pending{prop: key, values: values})
		}
	}
	if _, err := dec.Token(); err != nil { // closing }
		return Value{}, err
	}

	// Bare {"@id": x} is a plain reference; anything richer is an
	// inline entity that joins the arena.
	if id != "" && fields == 1 {
		return Ref(id), nil
	}
	if id == "" {
		id = l.nextBlankID()
	}
	node := l.graph.AddNode(id, types...)
	for _, p := range props {
		for _, v := range p.values {
			node.Add(p.prop, v)
		}
	}
	return Ref(id), nil
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err = dec.Token()
		if err == io.EOF {
			return fmt.Errorf("unexpected end of document")
		}
		if err != nil {
			return err
		}
		if d, ok = tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
