// Package schema holds the static, read-only registry of configuration object
// types and their property schemas.
package schema

import (
	"github.com/expr-lang/expr/vm"

	"github.com/msgsight/cfgd/pkg/object"
)

// ValueType is the semantic type of a property.
type ValueType int

// Property value types.
const (
	TypeString ValueType = iota
	TypeInteger
	TypeBoolean
	TypeEnum
)

// String returns the JSON Schema type name.
func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Kind returns the object.Kind a value of this type must carry.
func (t ValueType) Kind() object.Kind {
	switch t {
	case TypeInteger:
		return object.KindInteger
	case TypeBoolean:
		return object.KindBoolean
	default:
		return object.KindString
	}
}

// Shape distinguishes collection types from singletons.
type Shape int

// Object type shapes.
const (
	Collection Shape = iota
	ScalarSingleton
	CompositeSingleton
)

// Grammar names a content predicate applied to string values.
type Grammar int

// Content grammars.
const (
	GrammarNone Grammar = iota
	GrammarIPList
	GrammarInterface
	GrammarTTL
	GrammarURL
	GrammarSize
	GrammarTokens
)

// Property is the schema of one property of an object type.
type Property struct {
	Name     string
	Type     ValueType
	Required bool
	Default  object.Value

	// MaxLength bounds string values in characters; zero means unbounded.
	MaxLength int
	// LengthIsValue reports an over-long value as an invalid value rather
	// than a too-long value.
	LengthIsValue bool

	Min, Max int64
	HasRange bool

	// Enum lists the canonical spellings of an enumeration.
	Enum []string

	Grammar Grammar
	// Tokens is the allowed token set for GrammarTokens.
	Tokens []string
	// TokensBy selects the allowed token set from the value of another
	// property (for example the ActionList keyed by DestinationType).
	TokensBy  string
	TokenSets map[string][]string
	// MaxEntries bounds the number of entries of a list grammar.
	MaxEntries int

	Immutable bool

	// Ref is the referenced object type. RefList means the value is a
	// comma-delimited list of names.
	Ref     string
	RefList bool
}

// IsReference reports whether the property names other objects.
func (p *Property) IsReference() bool { return p.Ref != "" }

// Rule is a conditional requirement: when Assert evaluates false over the
// merged property set, Property is reported missing with Code.
type Rule struct {
	Assert   string
	Property string
	Code     string

	program *vm.Program
}

// ObjectType is the schema of a configuration object type.
type ObjectType struct {
	Name          string
	Shape         Shape
	MaxNameLength int
	Properties    []*Property
	// Group lists the at-least-one-of members in their declared order.
	Group []string
	Rules []*Rule

	index map[string]*Property
}

// IsCollection reports whether the type holds named instances.
func (t *ObjectType) IsCollection() bool { return t.Shape == Collection }

// IsSingleton reports whether the type has exactly one implicit instance.
func (t *ObjectType) IsSingleton() bool { return t.Shape != Collection }

// Property looks up a property schema.
func (t *ObjectType) Property(name string) (*Property, bool) {
	p, ok := t.index[name]
	return p, ok
}

// DefaultValue returns the default of a property, or null.
func (t *ObjectType) DefaultValue(name string) object.Value {
	if p, ok := t.index[name]; ok {
		return p.Default
	}
	return object.Null()
}

// AtLeastOneOf returns the group members in declared order.
func (t *ObjectType) AtLeastOneOf() []string { return t.Group }

// References returns the reference properties of the type.
func (t *ObjectType) References() []*Property {
	var refs []*Property
	for _, p := range t.Properties {
		if p.IsReference() {
			refs = append(refs, p)
		}
	}
	return refs
}

// Defaults returns the fully materialized default property bag: declared
// defaults, and the empty string for string properties without one.
func (t *ObjectType) Defaults() object.Properties {
	props := make(object.Properties, len(t.Properties))
	for _, p := range t.Properties {
		if v, ok := p.materialized(); ok {
			props[p.Name] = v
		}
	}
	return props
}

// materialized returns the value a property takes when it is omitted on
// create or explicitly set to null; ok is false when it has no value at all.
func (p *Property) materialized() (object.Value, bool) {
	if !p.Default.IsNull() {
		return p.Default, true
	}
	if p.Type == TypeString || p.Type == TypeEnum {
		return object.String(""), true
	}
	return object.Null(), false
}

// ResetValue returns the value a null assignment resolves to.
func (p *Property) ResetValue() (object.Value, bool) { return p.materialized() }
