package schema

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/msgsight/cfgd/pkg/object"
)

// Registry is the read-only set of object type schemas, populated once at
// process start.
type Registry struct {
	types map[string]*ObjectType
	order []*ObjectType
}

// New builds the registry from the built-in definition table.
func New() (*Registry, error) {
	return build(builtinTypes())
}

// MustNew is New for package-level initialization and tests.
func MustNew() *Registry {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

func build(defs []*ObjectType) (*Registry, error) {
	r := &Registry{types: make(map[string]*ObjectType, len(defs))}
	for _, t := range defs {
		if _, dup := r.types[t.Name]; dup {
			return nil, fmt.Errorf("duplicate object type %q", t.Name)
		}
		t.index = make(map[string]*Property, len(t.Properties))
		for _, p := range t.Properties {
			if _, dup := t.index[p.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate property %q", t.Name, p.Name)
			}
			t.index[p.Name] = p
		}
		for _, g := range t.Group {
			if _, ok := t.index[g]; !ok {
				return nil, fmt.Errorf("%s: group member %q is not a property", t.Name, g)
			}
		}
		if err := compileRules(t); err != nil {
			return nil, err
		}
		r.types[t.Name] = t
		r.order = append(r.order, t)
	}

	for _, t := range r.order {
		for _, p := range t.References() {
			if _, ok := r.types[p.Ref]; !ok {
				return nil, fmt.Errorf("%s.%s: unknown reference type %q", t.Name, p.Name, p.Ref)
			}
		}
		for _, p := range t.Properties {
			if p.TokensBy == "" {
				continue
			}
			if _, ok := t.index[p.TokensBy]; !ok {
				return nil, fmt.Errorf("%s.%s: token selector %q is not a property", t.Name, p.Name, p.TokensBy)
			}
		}
	}
	return r, nil
}

func compileRules(t *ObjectType) error {
	if len(t.Rules) == 0 {
		return nil
	}
	env := RuleEnv(t, t.Defaults())
	for _, rule := range t.Rules {
		if _, ok := t.index[rule.Property]; !ok {
			return fmt.Errorf("%s: rule property %q is not defined", t.Name, rule.Property)
		}
		program, err := expr.Compile(rule.Assert, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("%s: compile rule %q: %w", t.Name, rule.Assert, err)
		}
		rule.program = program
	}
	return nil
}

// RuleEnv builds the expression environment for a property set. Every
// declared property is present; unset values take the zero value of their
// type.
func RuleEnv(t *ObjectType, props object.Properties) map[string]any {
	env := make(map[string]any, len(t.Properties))
	for _, p := range t.Properties {
		v, ok := props[p.Name]
		if ok && v.Kind == p.Type.Kind() {
			env[p.Name] = v.Native()
			continue
		}
		switch p.Type {
		case TypeInteger:
			env[p.Name] = 0
		case TypeBoolean:
			env[p.Name] = false
		default:
			env[p.Name] = ""
		}
	}
	return env
}

// Holds evaluates the rule against a merged property set.
func (r *Rule) Holds(t *ObjectType, props object.Properties) (bool, error) {
	out, err := expr.Run(r.program, RuleEnv(t, props))
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// Lookup returns the schema of an object type.
func (r *Registry) Lookup(name string) (*ObjectType, bool) {
	t, ok := r.types[name]
	return t, ok
}

// Types returns every object type in declaration order.
func (r *Registry) Types() []*ObjectType {
	return r.order
}

// Singletons returns the singleton types in declaration order.
func (r *Registry) Singletons() []*ObjectType {
	var out []*ObjectType
	for _, t := range r.order {
		if t.IsSingleton() {
			out = append(out, t)
		}
	}
	return out
}

// IsCollection reports whether name is a known collection type.
func (r *Registry) IsCollection(name string) bool {
	t, ok := r.types[name]
	return ok && t.IsCollection()
}

// MaxNameLength returns the name length limit of a collection type.
func (r *Registry) MaxNameLength(name string) int {
	if t, ok := r.types[name]; ok {
		return t.MaxNameLength
	}
	return 0
}

// Dependents returns, for a referenced type, every (type, property) pair that
// may point at it.
func (r *Registry) Dependents(target string) []Dependent {
	var out []Dependent
	for _, t := range r.order {
		for _, p := range t.References() {
			if p.Ref == target {
				out = append(out, Dependent{Type: t, Property: p})
			}
		}
	}
	return out
}

// Dependent is a reference property pointing at some object type.
type Dependent struct {
	Type     *ObjectType
	Property *Property
}
