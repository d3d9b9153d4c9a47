// Package validation checks proposed configuration changes against the
// schema registry and produces the merged property set to store.
//
// Validation runs in a fixed order and stops at the first failure:
//   - Object name (collection types only)
//   - Unknown property names
//   - JSON type of each property
//   - Value content: ranges, enumerations, token lists, address grammar
//   - Value length
//   - Immutable properties on update
//   - Defaulting and required values
//   - At-least-one-of groups
//   - Conditional requirements
//
// # Basic Usage
//
//	v := validation.New(registry)
//	merged, err := v.Validate(objectType, "MyPolicy", proposed, existing)
//	if err != nil {
//	    var ce *cfgerr.Error
//	    errors.As(err, &ce)
//	    log.Printf("%s: %s", ce.Code, ce.Error())
//	}
//
// A nil existing property set means the object is being created.
package validation
