package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a JSON schema from T without $ref indirection.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// SchemaJSON renders the schema of T as indented JSON for inclusion in prompts.
func SchemaJSON[T any]() string {
	data, err := json.MarshalIndent(GenerateSchema[T](), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
