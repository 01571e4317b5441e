package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator is a PayloadValidator backed by a compiled JSON
// Schema (draft 2020-12). Register one per actionType with RegisterSchema
// to have AddEntry reject malformed details payloads before they are
// hashed and chained.
type JSONSchemaValidator struct {
	schema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles schemaDoc (a JSON Schema document) and
// returns a validator for it. actionType only distinguishes the schema's
// synthetic resource URL and has no bearing on the compiled result.
func NewJSONSchemaValidator(actionType, schemaDoc string) (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	url := fmt.Sprintf("https://agentrust.schemas.local/ledger/%s.schema.json", actionType)
	if err := c.AddResource(url, strings.NewReader(schemaDoc)); err != nil {
		return nil, fmt.Errorf("loading schema for %q: %w", actionType, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %q: %w", actionType, err)
	}

	return &JSONSchemaValidator{schema: compiled}, nil
}

// Validate checks details against the compiled schema. details is
// marshaled and re-decoded through encoding/json first so map values
// (e.g. numeric literals parsed as int by a caller) present the same
// types the schema compiler expects from a JSON document.
func (v *JSONSchemaValidator) Validate(details map[string]interface{}) error {
	b, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshaling details: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decoding details: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("payload does not satisfy schema: %w", err)
	}
	return nil
}
