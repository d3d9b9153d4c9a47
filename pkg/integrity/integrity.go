// Package integrity enforces referential integrity between configuration
// objects: references must resolve, and referenced objects cannot be deleted.
package integrity

import (
	"slices"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// Reader is the read view the checker needs. Both published snapshots and
// in-flight transactions satisfy it.
type Reader interface {
	Get(objectType, name string) (*object.Object, bool)
	List(objectType string) []*object.Object
}

// Checker checks references using the schema registry.
type Checker struct {
	registry *schema.Registry
}

// New creates a Checker.
func New(registry *schema.Registry) *Checker {
	return &Checker{registry: registry}
}

// CheckReferences verifies that every non-empty reference in props resolves
// to an existing object. The first unresolved name is reported as NotFound
// naming the referenced type.
func (c *Checker) CheckReferences(view Reader, objectType string, props object.Properties) error {
	t, ok := c.registry.Lookup(objectType)
	if !ok {
		return cfgerr.InvalidShape(`"` + objectType + `"`)
	}
	for _, p := range t.References() {
		val := props[p.Name]
		if val.Kind != object.KindString || val.Str == "" {
			continue
		}
		names := []string{val.Str}
		if p.RefList {
			names = schema.SplitList(val.Str)
		}
		for _, n := range names {
			if _, ok := view.Get(p.Ref, n); !ok {
				return cfgerr.NotFound(p.Ref, n)
			}
		}
	}
	return nil
}

// CheckDependents verifies that no object references (objectType, name).
// Dependents are searched in registry order, then by name.
func (c *Checker) CheckDependents(view Reader, objectType, name string) error {
	for _, dep := range c.registry.Dependents(objectType) {
		for _, obj := range view.List(dep.Type.Name) {
			if refersTo(obj.Properties[dep.Property.Name], dep.Property.RefList, name) {
				depName := obj.Name
				if dep.Type.IsSingleton() {
					depName = dep.Type.Name
				}
				return cfgerr.InUse(objectType, name, dep.Type.Name, depName)
			}
		}
	}
	return nil
}

// Dependents lists every object that references (objectType, name).
func (c *Checker) Dependents(view Reader, objectType, name string) []*object.Object {
	var out []*object.Object
	for _, dep := range c.registry.Dependents(objectType) {
		for _, obj := range view.List(dep.Type.Name) {
			if refersTo(obj.Properties[dep.Property.Name], dep.Property.RefList, name) {
				out = append(out, obj)
			}
		}
	}
	return out
}

func refersTo(val object.Value, list bool, name string) bool {
	if val.Kind != object.KindString || val.Str == "" {
		return false
	}
	if !list {
		return val.Str == name
	}
	return slices.Contains(schema.SplitList(val.Str), name)
}
