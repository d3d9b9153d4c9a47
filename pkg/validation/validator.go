package validation

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// Validator validates proposed property sets against the schema registry.
type Validator struct {
	registry *schema.Registry
}

// New creates a Validator.
func New(registry *schema.Registry) *Validator {
	return &Validator{registry: registry}
}

// Registry returns the registry the validator checks against.
func (v *Validator) Registry() *schema.Registry { return v.registry }

// Validate checks proposed against the schema of t and returns the merged
// property set: existing (or the type defaults on create) overlaid with
// proposed, with explicit nulls reset to their defaults. existing must be
// nil when the object does not exist yet. Validate never modifies its
// arguments.
func (v *Validator) Validate(t *schema.ObjectType, name string, proposed, existing object.Properties) (object.Properties, error) {
	if t.IsCollection() {
		if err := ValidateName(t.Name, name, t.MaxNameLength); err != nil {
			return nil, err
		}
	}

	keys := proposed.Keys()

	for _, k := range keys {
		if _, ok := t.Property(k); !ok {
			return nil, cfgerr.UnknownProperty(t.Name, name, k)
		}
	}

	for _, k := range keys {
		p, _ := t.Property(k)
		val := proposed[k]
		if !val.IsNull() && val.Kind != p.Type.Kind() {
			return nil, cfgerr.InvalidType(t.Name, name, k, val.Kind.JSONType())
		}
	}

	normalized := make(object.Properties, len(proposed))
	for _, k := range keys {
		p, _ := t.Property(k)
		val, err := checkContent(t, name, p, proposed[k])
		if err != nil {
			return nil, err
		}
		normalized[k] = val
	}

	for _, k := range keys {
		p, _ := t.Property(k)
		if err := checkLength(t, name, p, normalized[k]); err != nil {
			return nil, err
		}
	}

	if existing != nil {
		for _, k := range keys {
			p, _ := t.Property(k)
			if !p.Immutable {
				continue
			}
			resolved := normalized[k]
			if resolved.IsNull() {
				resolved, _ = p.ResetValue()
			}
			old, ok := existing[k]
			if ok && !old.IsEmpty() && !resolved.Equal(old) {
				return nil, cfgerr.ImmutableChange(t.Name, name, k, resolved.Text())
			}
		}
	}

	merged := t.Defaults()
	maps.Copy(merged, existing)
	for _, k := range keys {
		val := normalized[k]
		if !val.IsNull() {
			merged[k] = val
			continue
		}
		p, _ := t.Property(k)
		if reset, ok := p.ResetValue(); ok {
			merged[k] = reset
		} else {
			delete(merged, k)
		}
	}
	for _, p := range t.Properties {
		if p.Required && merged[p.Name].IsEmpty() {
			return nil, cfgerr.MissingRequiredValue(t.Name, name, p.Name, "null")
		}
	}
	if err := checkDependentTokens(t, name, merged); err != nil {
		return nil, err
	}

	if group := t.AtLeastOneOf(); len(group) > 0 {
		satisfied := false
		for _, g := range group {
			if !merged[g].IsEmpty() {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return nil, cfgerr.MissingRequiredGroup(t.Name, name, group)
		}
	}

	for _, rule := range t.Rules {
		holds, err := rule.Holds(t, merged)
		if err != nil {
			return nil, cfgerr.Internal(fmt.Errorf("evaluate rule %q on %s: %w", rule.Assert, t.Name, err))
		}
		if !holds {
			return nil, cfgerr.MissingConditional(rule.Code, t.Name, name, rule.Property, merged[rule.Property].Text())
		}
	}

	return merged, nil
}

// checkContent applies the per-property content predicate and returns the
// value with canonical spelling.
func checkContent(t *schema.ObjectType, name string, p *schema.Property, val object.Value) (object.Value, error) {
	invalid := func(text string) error {
		return cfgerr.InvalidValue(t.Name, name, p.Name, text)
	}

	switch val.Kind {
	case object.KindInteger:
		if p.HasRange && (val.Int < p.Min || val.Int > p.Max) {
			return val, invalid(strconv.FormatInt(val.Int, 10))
		}
		return val, nil
	case object.KindString:
	default:
		return val, nil
	}

	s := val.Str
	if s == "" && p.Type == schema.TypeEnum && !p.Required {
		return val, nil
	}
	if p.Type == schema.TypeEnum {
		canon, ok := schema.NormalizeEnum(s, p.Enum)
		if !ok {
			return val, invalid(s)
		}
		return object.String(canon), nil
	}
	if s == "" {
		return val, nil
	}

	switch p.Grammar {
	case schema.GrammarIPList:
		res := schema.ParseIPList(s)
		if p.MaxEntries > 0 && res.Entries > p.MaxEntries {
			return val, cfgerr.ListTooLong(t.Name, name, p.Name, p.MaxEntries)
		}
		if !res.Valid {
			return val, invalid(s)
		}
	case schema.GrammarInterface:
		if !schema.ValidInterface(s) {
			return val, invalid(s)
		}
	case schema.GrammarTTL:
		if !schema.ValidTTL(s) {
			return val, invalid(s)
		}
	case schema.GrammarURL:
		if !schema.ValidURL(s) {
			return val, invalid(s)
		}
	case schema.GrammarSize:
		if !schema.ValidSize(s) {
			return val, invalid(s)
		}
	case schema.GrammarTokens:
		allowed := p.Tokens
		if p.TokensBy != "" {
			allowed = tokenUnion(p.TokenSets)
		}
		canon, _, ok := schema.NormalizeTokens(s, allowed)
		if !ok {
			return val, invalid(s)
		}
		return object.String(canon), nil
	}
	return val, nil
}

func checkLength(t *schema.ObjectType, name string, p *schema.Property, val object.Value) error {
	if p.MaxLength == 0 || val.Kind != object.KindString {
		return nil
	}
	if utf8.RuneCountInString(val.Str) <= p.MaxLength {
		return nil
	}
	if p.LengthIsValue {
		return cfgerr.InvalidValue(t.Name, name, p.Name, val.Str)
	}
	return cfgerr.ValueTooLong(t.Name, name, p.Name, val.Str)
}

// checkDependentTokens checks token lists whose allowed set depends on
// another property, against the merged value of that property.
func checkDependentTokens(t *schema.ObjectType, name string, merged object.Properties) error {
	for _, p := range t.Properties {
		if p.TokensBy == "" {
			continue
		}
		val := merged[p.Name]
		if val.Kind != object.KindString || val.Str == "" {
			continue
		}
		allowed := p.TokenSets[merged[p.TokensBy].Str]
		if _, _, ok := schema.NormalizeTokens(val.Str, allowed); !ok {
			return cfgerr.InvalidValue(t.Name, name, p.Name, val.Str)
		}
	}
	return nil
}

func tokenUnion(sets map[string][]string) []string {
	var out []string
	for _, k := range slices.Sorted(maps.Keys(sets)) {
		for _, tok := range sets[k] {
			if !slices.Contains(out, tok) {
				out = append(out, tok)
			}
		}
	}
	return out
}
