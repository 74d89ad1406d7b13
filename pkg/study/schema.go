package study

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// JSONSchema returns the JSON-schema document describing the canonical
// Study record, for the /schema endpoint and for external consumers
// that want to validate bulk submissions.
func JSONSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: false,
	}
	schema := reflector.Reflect(&Study{})
	schema.Title = "Study"
	schema.Description = "Canonical study record federated from IDR, SSBD, BIA and external RO-Crate packages."
	return json.MarshalIndent(schema, "", "  ")
}
