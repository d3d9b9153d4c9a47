package object

import (
	"maps"
	"slices"
)

// Properties is a property bag keyed by property name.
type Properties map[string]Value

// Clone returns a shallow copy. Values are immutable so this is sufficient.
func (p Properties) Clone() Properties {
	if p == nil {
		return Properties{}
	}
	return maps.Clone(p)
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Equal reports whether both bags hold the same properties and values.
func (p Properties) Equal(o Properties) bool {
	return maps.EqualFunc(p, o, Value.Equal)
}

// Object is a single configuration object. Name is empty for singletons.
type Object struct {
	Type       string     `json:"type"`
	Name       string     `json:"name,omitempty"`
	Properties Properties `json:"properties"`
}

// Clone returns a copy of the object with its own property bag.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	return &Object{Type: o.Type, Name: o.Name, Properties: o.Properties.Clone()}
}

// Key returns the "Type/Name" identity of the object.
func (o *Object) Key() string {
	return Key(o.Type, o.Name)
}

// Key builds the identity used to index objects of a type.
func Key(objectType, name string) string {
	return objectType + "/" + name
}
