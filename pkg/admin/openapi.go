package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/schema"
)

// BuildOpenAPI describes the REST API for the registry's object types and
// returns it as validated JSON.
func BuildOpenAPI(ctx context.Context, reg *schema.Registry, version string) ([]byte, error) {
	raw, err := json.Marshal(openAPIDocument(reg, version))
	if err != nil {
		return nil, fmt.Errorf("marshal OpenAPI document: %w", err)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("load OpenAPI document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal OpenAPI document: %w", err)
	}
	return append(out, '\n'), nil
}

func openAPIDocument(reg *schema.Registry, version string) map[string]any {
	var typeNames []string
	schemas := map[string]any{
		"Error": map[string]any{
			"type":     "object",
			"required": []string{"status", "Code", "Message"},
			"properties": map[string]any{
				"status":  map[string]any{"type": "integer"},
				"Code":    map[string]any{"type": "string", "example": cfgerr.CodeNotFound},
				"Message": map[string]any{"type": "string"},
			},
		},
		"Confirmation": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"Code":    map[string]any{"type": "string", "example": cfgerr.CodeSuccess},
				"Message": map[string]any{"type": "string"},
			},
		},
		"RestartRequest": map[string]any{
			"type":     "object",
			"required": []string{"Service"},
			"properties": map[string]any{
				"Service": map[string]any{"type": "string", "enum": []string{ServiceName}},
			},
		},
	}

	docProps := map[string]any{
		"Version": map[string]any{"type": "string", "example": version},
	}
	for _, t := range reg.Types() {
		typeNames = append(typeNames, t.Name)
		ref := map[string]any{"$ref": "#/components/schemas/" + t.Name}
		switch t.Shape {
		case schema.ScalarSingleton:
			schemas[t.Name] = openAPIProperty(t.Properties[0])
			docProps[t.Name] = ref
		case schema.CompositeSingleton:
			schemas[t.Name] = openAPIBag(t)
			docProps[t.Name] = ref
		default:
			schemas[t.Name] = openAPIBag(t)
			docProps[t.Name] = map[string]any{
				"type":                 "object",
				"additionalProperties": ref,
			}
		}
	}
	schemas["Document"] = map[string]any{
		"type":                 "object",
		"properties":           docProps,
		"additionalProperties": false,
	}
	slices.Sort(typeNames)

	jsonBody := func(ref string) map[string]any {
		return map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/" + ref},
			},
		}
	}
	response := func(desc, ref string) map[string]any {
		return map[string]any{"description": desc, "content": jsonBody(ref)}
	}
	errorResponses := func(codes ...string) map[string]any {
		out := map[string]any{}
		for _, c := range codes {
			out[c] = response("Request failed", "Error")
		}
		return out
	}
	withOK := func(m map[string]any, ok map[string]any) map[string]any {
		m["200"] = ok
		return m
	}
	typeParam := map[string]any{
		"name":        "ObjectType",
		"in":          "path",
		"required":    true,
		"description": "Object type name",
		"schema":      map[string]any{"type": "string", "enum": typeNames},
	}
	nameParam := map[string]any{
		"name":        "name",
		"in":          "path",
		"required":    true,
		"description": "Object name",
		"schema":      map[string]any{"type": "string"},
	}
	plain := func(desc string) map[string]any {
		return map[string]any{
			"description": desc,
			"content": map[string]any{
				"application/json": map[string]any{"schema": map[string]any{"type": "object"}},
			},
		}
	}

	paths := map[string]any{
		"/configuration/": map[string]any{
			"get": map[string]any{
				"operationId": "getConfiguration",
				"summary":     "Whole configuration document",
				"responses":   map[string]any{"200": response("Configuration document", "Document")},
			},
		},
		"/configuration": map[string]any{
			"post": map[string]any{
				"operationId": "applyConfiguration",
				"summary":     "Create or update a batch of objects",
				"requestBody": map[string]any{"required": true, "content": jsonBody("Document")},
				"responses":   withOK(errorResponses("400", "404", "500"), response("Effective objects", "Document")),
			},
		},
		"/configuration/{ObjectType}/": map[string]any{
			"get": map[string]any{
				"operationId": "getObjectType",
				"summary":     "Every object of one type",
				"parameters":  []any{typeParam},
				"responses":   withOK(errorResponses("400", "404"), response("Objects of the type", "Document")),
			},
		},
		"/configuration/{ObjectType}/{name}": map[string]any{
			"get": map[string]any{
				"operationId": "getObject",
				"summary":     "One named object",
				"parameters":  []any{typeParam, nameParam},
				"responses":   withOK(errorResponses("400", "404"), response("The object", "Document")),
			},
			"delete": map[string]any{
				"operationId": "deleteObject",
				"summary":     "Delete an unreferenced object",
				"parameters":  []any{typeParam, nameParam},
				"responses":   withOK(errorResponses("400", "403", "404", "500"), response("Deleted", "Confirmation")),
			},
		},
		"/service/restart": map[string]any{
			"post": map[string]any{
				"operationId": "restartService",
				"summary":     "Reload configuration from durable state",
				"requestBody": map[string]any{"required": true, "content": jsonBody("RestartRequest")},
				"responses":   withOK(errorResponses("400", "409", "500"), response("Restarted", "Confirmation")),
			},
		},
		"/service/status": map[string]any{
			"get": map[string]any{
				"operationId": "serviceStatus",
				"summary":     "Lifecycle state",
				"responses":   map[string]any{"200": plain("Service status")},
			},
		},
		"/events": map[string]any{
			"get": map[string]any{
				"operationId": "events",
				"summary":     "WebSocket stream of change events",
				"parameters": []any{map[string]any{
					"name":        "type",
					"in":          "query",
					"description": "Only stream events for these object types",
					"schema":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				}},
				"responses": map[string]any{"101": map[string]any{"description": "Switching to WebSocket"}},
			},
		},
		"/schema.json": map[string]any{
			"get": map[string]any{
				"operationId": "documentSchema",
				"summary":     "JSON Schema of configuration documents",
				"responses":   map[string]any{"200": plain("JSON Schema")},
			},
		},
		"/health": map[string]any{
			"get": map[string]any{
				"operationId": "health",
				"summary":     "Health check",
				"responses": map[string]any{
					"200": plain("Running"),
					"503": plain("Not running"),
				},
			},
		},
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "cfgd configuration API",
			"description": "Typed configuration objects: " + strings.Join(typeNames, ", "),
			"version":     version,
		},
		"paths":      paths,
		"components": map[string]any{"schemas": schemas},
	}
}

func openAPIBag(t *schema.ObjectType) map[string]any {
	props := make(map[string]any, len(t.Properties))
	var required []string
	for _, p := range t.Properties {
		props[p.Name] = openAPIProperty(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["description"] = "Required on create: " + strings.Join(required, ", ")
	}
	return s
}

func openAPIProperty(p *schema.Property) map[string]any {
	s := map[string]any{
		"type":     p.Type.String(),
		"nullable": true,
	}
	if p.HasRange {
		s["minimum"] = p.Min
		s["maximum"] = p.Max
	}
	if p.MaxLength > 0 {
		s["maxLength"] = p.MaxLength
	}
	if len(p.Enum) > 0 {
		s["description"] = "One of (case-insensitive): " + strings.Join(p.Enum, ", ")
	}
	if !p.Default.IsNull() {
		s["default"] = p.Default.Native()
	}
	return s
}
