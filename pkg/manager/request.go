package manager

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// VersionKey is the document member that carries the API version. It is
// accepted and ignored in request bodies.
const VersionKey = "Version"

// Mutation is one create-or-update of a single object.
type Mutation struct {
	Type       *schema.ObjectType
	Name       string
	Properties object.Properties
}

// Batch is an ordered set of mutations applied as one unit.
type Batch []Mutation

// ParseRequest turns a POST body of the form
//
//	{<ObjectType>: {<name>: {...properties...}}}   collection types
//	{<ObjectType>: {...properties...}}             composite singletons
//	{<ObjectType>: <value>}                        scalar singletons
//
// into a batch ordered by registry type order and then by name.
func ParseRequest(reg *schema.Registry, body []byte) (Batch, error) {
	top, err := decodeObject(body)
	if err != nil || top == nil {
		return nil, cfgerr.InvalidShape(preview(body))
	}
	if len(top) == 0 {
		return nil, cfgerr.InvalidShape("{}")
	}

	var batch Batch
	for key, raw := range top {
		if key == VersionKey {
			continue
		}
		t, ok := reg.Lookup(key)
		if !ok {
			return nil, cfgerr.InvalidShape(quote(key))
		}
		if isNull(raw) && t.Shape != schema.ScalarSingleton {
			return nil, cfgerr.InvalidShape(quote(key) + ":null")
		}
		muts, err := parseType(t, raw)
		if err != nil {
			return nil, err
		}
		batch = append(batch, muts...)
	}
	if len(batch) == 0 {
		return nil, cfgerr.InvalidShape(preview(body))
	}

	order := make(map[string]int)
	for i, t := range reg.Types() {
		order[t.Name] = i
	}
	slices.SortStableFunc(batch, func(a, b Mutation) int {
		if d := order[a.Type.Name] - order[b.Type.Name]; d != 0 {
			return d
		}
		return strings.Compare(a.Name, b.Name)
	})
	return batch, nil
}

func parseType(t *schema.ObjectType, raw json.RawMessage) (Batch, error) {
	switch t.Shape {
	case schema.ScalarSingleton:
		// null resets the setting to its default.
		var v object.Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, cfgerr.InvalidShape(quote(t.Name))
		}
		return Batch{{Type: t, Properties: object.Properties{t.Name: v}}}, nil

	case schema.CompositeSingleton:
		props, err := decodeProperties(raw)
		if err != nil {
			return nil, cfgerr.InvalidShape(quote(t.Name))
		}
		return Batch{{Type: t, Properties: props}}, nil
	}

	instances, err := decodeObject(raw)
	if err != nil || instances == nil {
		return nil, cfgerr.InvalidShape(quote(t.Name))
	}
	batch := make(Batch, 0, len(instances))
	for name, body := range instances {
		if isNull(body) {
			// Deletion goes through DELETE only.
			return nil, cfgerr.NullObject(t.Name, name)
		}
		props, err := decodeProperties(body)
		if err != nil {
			return nil, cfgerr.InvalidShape(quote(t.Name) + ":{" + quote(name) + "}")
		}
		batch = append(batch, Mutation{Type: t, Name: name, Properties: props})
	}
	return batch, nil
}

// decodeObject decodes a JSON object into its raw members. A JSON null
// yields a nil map and no error.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && !isNull(trimmed)) {
		return nil, errNotObject
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeProperties(data []byte) (object.Properties, error) {
	members, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if members == nil {
		return nil, errNotObject
	}
	props := make(object.Properties, len(members))
	for k, raw := range members {
		var v object.Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		props[k] = v
	}
	return props, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func quote(s string) string { return `"` + s + `"` }

const maxPreview = 64

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxPreview {
		s = s[:maxPreview] + "..."
	}
	if s == "" {
		return "POST /configuration"
	}
	return s
}
