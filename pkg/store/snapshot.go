package store

import (
	"maps"
	"slices"

	"github.com/msgsight/cfgd/pkg/object"
)

// Op is a change operation.
type Op string

// Change operations.
const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Change is a single object write inside a commit. Object holds the new
// state for OpPut and the removed object for OpDelete.
type Change struct {
	Op     Op
	Object *object.Object
}

// Snapshot is an immutable view of every stored object. Objects returned by
// a snapshot are shared and must not be modified.
type Snapshot struct {
	revision uint64
	objects  map[string]map[string]*object.Object
}

// NewSnapshot builds a snapshot from a list of objects.
func NewSnapshot(revision uint64, objs []*object.Object) *Snapshot {
	s := &Snapshot{revision: revision, objects: make(map[string]map[string]*object.Object)}
	for _, o := range objs {
		byName, ok := s.objects[o.Type]
		if !ok {
			byName = make(map[string]*object.Object)
			s.objects[o.Type] = byName
		}
		byName[o.Name] = o
	}
	return s
}

func emptySnapshot() *Snapshot { return NewSnapshot(0, nil) }

// Revision is the commit counter that produced the snapshot.
func (s *Snapshot) Revision() uint64 { return s.revision }

// Get returns one object. Singletons are stored under the empty name.
func (s *Snapshot) Get(objectType, name string) (*object.Object, bool) {
	o, ok := s.objects[objectType][name]
	return o, ok
}

// List returns the objects of a type sorted by name.
func (s *Snapshot) List(objectType string) []*object.Object {
	return sortedObjects(s.objects[objectType])
}

// Objects returns every object, ordered by type then name.
func (s *Snapshot) Objects() []*object.Object {
	var out []*object.Object
	for _, t := range slices.Sorted(maps.Keys(s.objects)) {
		out = append(out, sortedObjects(s.objects[t])...)
	}
	return out
}

// Len returns the number of stored objects.
func (s *Snapshot) Len() int {
	n := 0
	for _, byName := range s.objects {
		n += len(byName)
	}
	return n
}

// Count returns the number of objects of a type.
func (s *Snapshot) Count(objectType string) int { return len(s.objects[objectType]) }

func sortedObjects(byName map[string]*object.Object) []*object.Object {
	out := make([]*object.Object, 0, len(byName))
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		out = append(out, byName[name])
	}
	return out
}

// Tx is a copy-on-write working copy of a snapshot. Per-type maps are copied
// on first write so unchanged types stay shared with the base snapshot.
type Tx struct {
	base    *Snapshot
	objects map[string]map[string]*object.Object
	copied  map[string]bool
	changes []Change
}

func (s *Snapshot) begin() *Tx {
	return &Tx{
		base:    s,
		objects: maps.Clone(s.objects),
		copied:  make(map[string]bool),
	}
}

// Get returns an object as seen by the transaction.
func (tx *Tx) Get(objectType, name string) (*object.Object, bool) {
	o, ok := tx.objects[objectType][name]
	return o, ok
}

// List returns the objects of a type as seen by the transaction.
func (tx *Tx) List(objectType string) []*object.Object {
	return sortedObjects(tx.objects[objectType])
}

// Put stores an object, replacing any object with the same identity.
func (tx *Tx) Put(o *object.Object) {
	tx.writable(o.Type)[o.Name] = o
	tx.changes = append(tx.changes, Change{Op: OpPut, Object: o})
}

// Remove deletes an object. It reports whether the object existed.
func (tx *Tx) Remove(objectType, name string) bool {
	o, ok := tx.objects[objectType][name]
	if !ok {
		return false
	}
	delete(tx.writable(objectType), name)
	tx.changes = append(tx.changes, Change{Op: OpDelete, Object: o})
	return true
}

// Changes returns the recorded writes in order.
func (tx *Tx) Changes() []Change { return tx.changes }

func (tx *Tx) writable(objectType string) map[string]*object.Object {
	if !tx.copied[objectType] {
		tx.objects[objectType] = maps.Clone(tx.objects[objectType])
		if tx.objects[objectType] == nil {
			tx.objects[objectType] = make(map[string]*object.Object)
		}
		tx.copied[objectType] = true
	}
	return tx.objects[objectType]
}

func (tx *Tx) finish(revision uint64) *Snapshot {
	for t, byName := range tx.objects {
		if len(byName) == 0 {
			delete(tx.objects, t)
		}
	}
	return &Snapshot{revision: revision, objects: tx.objects}
}
