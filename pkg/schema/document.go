package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const documentSchemaURL = "cfgd-document.json"

// DocumentSchema returns a JSON Schema (draft 2020-12) describing a whole
// configuration document: {"Version": ..., <ObjectType>: ...}. It checks
// document structure and JSON types only; property content is left to the
// validator.
func (r *Registry) DocumentSchema() map[string]any {
	props := map[string]any{
		"Version": map[string]any{"type": "string"},
	}
	for _, t := range r.order {
		switch t.Shape {
		case ScalarSingleton:
			props[t.Name] = propertySchema(t.Properties[0])
		case CompositeSingleton:
			props[t.Name] = bagSchema(t)
		default:
			props[t.Name] = map[string]any{
				"type":                 "object",
				"propertyNames":        map[string]any{"minLength": 1},
				"additionalProperties": bagSchema(t),
			}
		}
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"title":                "cfgd configuration document",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func bagSchema(t *ObjectType) map[string]any {
	props := make(map[string]any, len(t.Properties))
	for _, p := range t.Properties {
		props[p.Name] = propertySchema(p)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

func propertySchema(p *Property) map[string]any {
	s := map[string]any{"type": []string{p.Type.String(), "null"}}
	if p.HasRange {
		s["minimum"] = p.Min
		s["maximum"] = p.Max
	}
	if p.MaxLength > 0 {
		s["maxLength"] = p.MaxLength
	}
	return s
}

// CompileDocumentSchema compiles DocumentSchema for validating decoded
// documents.
func (r *Registry) CompileDocumentSchema() (*jsonschema.Schema, error) {
	data, err := json.Marshal(r.DocumentSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal document schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(documentSchemaURL, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add document schema: %w", err)
	}
	return compiler.Compile(documentSchemaURL)
}
