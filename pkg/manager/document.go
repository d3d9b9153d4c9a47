package manager

import (
	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// Document is a configuration document in the wire shape shared by GET
// responses, POST bodies, exports and imports:
//
//	{"Version": "v1", "<CollectionType>": {"<name>": {...}}, "<Singleton>": ...}
type Document map[string]any

// Document returns every stored object. Collection types without instances
// are omitted.
func (m *Manager) Document() Document {
	snap := m.store.Snapshot()
	doc := Document{VersionKey: m.version}
	for _, t := range m.registry.Types() {
		objs := snap.List(t.Name)
		if len(objs) == 0 {
			continue
		}
		doc[t.Name] = section(t, objs)
	}
	return doc
}

// TypeDocument returns every object of one type.
func (m *Manager) TypeDocument(objectType string) (Document, error) {
	t, ok := m.registry.Lookup(objectType)
	if !ok {
		return nil, cfgerr.InvalidShape(quote(objectType))
	}
	objs := m.store.Snapshot().List(t.Name)
	if t.IsSingleton() && len(objs) == 0 {
		return nil, cfgerr.NotFound(objectType, objectType)
	}
	return Document{VersionKey: m.version, t.Name: section(t, objs)}, nil
}

// ObjectDocument returns one named object of a collection type.
func (m *Manager) ObjectDocument(objectType, name string) (Document, error) {
	t, ok := m.registry.Lookup(objectType)
	if !ok {
		return nil, cfgerr.InvalidShape(quote(objectType))
	}
	if t.IsSingleton() {
		return nil, cfgerr.NotFound(objectType, name)
	}
	o, ok := m.store.Snapshot().Get(t.Name, name)
	if !ok {
		return nil, cfgerr.NotFound(objectType, name)
	}
	return Document{VersionKey: m.version, t.Name: section(t, []*object.Object{o})}, nil
}

// ResultDocument renders an applied batch as the POST success response.
func (m *Manager) ResultDocument(res *Result) Document {
	doc := Document{
		VersionKey: m.version,
		"Code":     cfgerr.CodeSuccess,
		"Message":  cfgerr.Message(cfgerr.CodeSuccess),
	}
	byType := make(map[string][]*object.Object)
	var order []*schema.ObjectType
	for _, o := range res.Objects {
		if _, seen := byType[o.Type]; !seen {
			t, _ := m.registry.Lookup(o.Type)
			order = append(order, t)
		}
		byType[o.Type] = append(byType[o.Type], o)
	}
	for _, t := range order {
		doc[t.Name] = section(t, byType[t.Name])
	}
	return doc
}

// Confirmation is the body returned for successful deletes and restarts.
func Confirmation() Document {
	return Document{"Code": cfgerr.CodeSuccess, "Message": cfgerr.Message(cfgerr.CodeSuccess)}
}

func section(t *schema.ObjectType, objs []*object.Object) any {
	switch t.Shape {
	case schema.ScalarSingleton:
		if len(objs) == 0 {
			return nil
		}
		return objs[0].Properties[t.Name]
	case schema.CompositeSingleton:
		if len(objs) == 0 {
			return object.Properties{}
		}
		return objs[0].Properties
	}
	out := make(map[string]object.Properties, len(objs))
	for _, o := range objs {
		out[o.Name] = o.Properties
	}
	return out
}
