// Package cfgerr defines the configuration error taxonomy, the stable
// CWLNA message codes and their mapping onto HTTP status codes.
package cfgerr

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies a configuration failure.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindInvalidRequestShape
	KindUnknownProperty
	KindInvalidType
	KindInvalidValue
	KindValueTooLong
	KindNameTooLong
	KindInvalidCharacter
	KindMissingRequiredValue
	KindMissingRequiredGroup
	KindMissingConditionalProperty
	KindImmutableFieldChange
	KindListTooLong
	KindNotFound
	KindAlreadyExists
	KindInUse
	KindUnsupported
)

var kindNames = map[Kind]string{
	KindInternal:                   "Internal",
	KindInvalidRequestShape:        "InvalidRequestShape",
	KindUnknownProperty:            "UnknownProperty",
	KindInvalidType:                "InvalidType",
	KindInvalidValue:               "InvalidValue",
	KindValueTooLong:               "ValueTooLong",
	KindNameTooLong:                "NameTooLong",
	KindInvalidCharacter:           "InvalidCharacter",
	KindMissingRequiredValue:       "MissingRequiredValue",
	KindMissingRequiredGroup:       "MissingRequiredGroup",
	KindMissingConditionalProperty: "MissingConditionalProperty",
	KindImmutableFieldChange:       "ImmutableFieldChange",
	KindListTooLong:                "ListTooLong",
	KindNotFound:                   "NotFound",
	KindAlreadyExists:              "AlreadyExists",
	KindInUse:                      "InUse",
	KindUnsupported:                "Unsupported",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Error lets a Kind be used as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindUnsupported:
		return http.StatusForbidden
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is a structured configuration failure.
type Error struct {
	Kind     Kind
	Code     string
	Object   string
	Name     string
	Property string
	Value    string

	args []string
	err  error
}

// Error returns the rendered catalog message.
func (e *Error) Error() string {
	return Message(e.Code, e.args...)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Is matches a Kind target.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Status returns the HTTP status for the error.
func (e *Error) Status() int { return e.Kind.HTTPStatus() }

// As extracts a *Error from err. Errors that carry no classification are
// reported as internal failures.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return Internal(err)
}

// ====================================================================
// Constructors
// ====================================================================

// InvalidShape reports a request body that does not follow the
// {ObjectType: {name: {...}}} shape.
func InvalidShape(call string) *Error {
	return &Error{Kind: KindInvalidRequestShape, Code: CodeInvalidCall, Value: call, args: []string{call}}
}

// NullObject reports a {ObjectType: {name: null}} instance body.
func NullObject(objectType, name string) *Error {
	return &Error{Kind: KindInvalidRequestShape, Code: CodeNullObject, Object: objectType, Name: name}
}

// UnknownProperty reports a property that the object type does not define.
func UnknownProperty(objectType, name, property string) *Error {
	return &Error{
		Kind: KindUnknownProperty, Code: CodeBadPropertyName,
		Object: objectType, Name: name, Property: property,
		args: []string{objectType, name, property},
	}
}

// InvalidType reports a property whose JSON type does not match its schema.
func InvalidType(objectType, name, property, jsonType string) *Error {
	return &Error{
		Kind: KindInvalidType, Code: CodeBadPropertyType,
		Object: objectType, Name: name, Property: property, Value: jsonType,
		args: []string{objectType, name, property, jsonType},
	}
}

// InvalidValue reports a value that fails its content predicate.
func InvalidValue(objectType, name, property, value string) *Error {
	return &Error{
		Kind: KindInvalidValue, Code: CodeBadPropertyValue,
		Object: objectType, Name: name, Property: property, Value: value,
		args: []string{property, value},
	}
}

// ValueTooLong reports a string value above the property's max length.
func ValueTooLong(objectType, name, property, value string) *Error {
	return &Error{
		Kind: KindValueTooLong, Code: CodeValueTooLong,
		Object: objectType, Name: name, Property: property, Value: value,
		args: []string{objectType, property, value},
	}
}

// NameTooLong reports an object name above the type's max name length.
func NameTooLong(objectType, name string) *Error {
	return &Error{
		Kind: KindNameTooLong, Code: CodeNameTooLong,
		Object: objectType, Name: name, Property: "Name", Value: name,
		args: []string{objectType, name},
	}
}

// InvalidCharacter reports a name with a disallowed leading, embedded or
// control character.
func InvalidCharacter(objectType, name string) *Error {
	return &Error{Kind: KindInvalidCharacter, Code: CodeBadUnicode, Object: objectType, Name: name, Property: "Name", Value: name}
}

// TrailingSpace reports a name ending in white space.
func TrailingSpace(objectType, name string) *Error {
	return &Error{
		Kind: KindInvalidCharacter, Code: CodeArgNotValid,
		Object: objectType, Name: name, Property: "Name", Value: name,
		args: []string{name},
	}
}

// MissingRequiredValue reports a required property that resolved to an
// empty or null value.
func MissingRequiredValue(objectType, name, property, value string) *Error {
	return &Error{
		Kind: KindMissingRequiredValue, Code: CodeRequiredProperty,
		Object: objectType, Name: name, Property: property, Value: value,
		args: []string{property, value},
	}
}

// MissingRequiredGroup reports an object with none of its at-least-one-of
// group members set.
func MissingRequiredGroup(objectType, name string, group []string) *Error {
	list := strings.Join(group, ",")
	return &Error{
		Kind: KindMissingRequiredGroup, Code: CodeMissingGroup,
		Object: objectType, Name: name, Value: list,
		args: []string{objectType, list},
	}
}

// MissingConditional reports a property that a conditional rule requires.
// Rules with a dedicated code carry their own message; others use the
// required property message.
func MissingConditional(code, objectType, name, property, value string) *Error {
	if code == "" {
		code = CodeRequiredProperty
	}
	var args []string
	if code == CodeRequiredProperty {
		args = []string{property, value}
	}
	return &Error{
		Kind: KindMissingConditionalProperty, Code: code,
		Object: objectType, Name: name, Property: property, Value: value,
		args: args,
	}
}

// ImmutableChange reports an attempt to change an immutable property.
func ImmutableChange(objectType, name, property, value string) *Error {
	return &Error{
		Kind: KindImmutableFieldChange, Code: CodeArgNotValid,
		Object: objectType, Name: name, Property: property, Value: value,
		args: []string{property},
	}
}

// ListTooLong reports an address list with more entries than allowed.
func ListTooLong(objectType, name, property string, max int) *Error {
	return &Error{
		Kind: KindListTooLong, Code: CodeTooManyAddresses,
		Object: objectType, Name: name, Property: property,
		args: []string{strconv.Itoa(max)},
	}
}

// NotFound reports a missing object or an unresolved reference target.
func NotFound(objectType, name string) *Error {
	return &Error{
		Kind: KindNotFound, Code: CodeNotFound,
		Object: objectType, Name: name,
		args: []string{objectType, name},
	}
}

// AlreadyExists reports a create of an existing object.
func AlreadyExists(objectType, name string) *Error {
	return &Error{
		Kind: KindAlreadyExists, Code: CodeAlreadyExists,
		Object: objectType, Name: name,
		args: []string{objectType, name},
	}
}

// InUse reports a delete blocked by a dependent object.
func InUse(objectType, name, dependentType, dependentName string) *Error {
	return &Error{
		Kind: KindInUse, Code: CodeInUse,
		Object: objectType, Name: name, Value: dependentType + "/" + dependentName,
		args: []string{objectType, name, dependentType, dependentName},
	}
}

// Unsupported reports an operation the object type does not permit.
func Unsupported(objectType string) *Error {
	return &Error{Kind: KindUnsupported, Code: CodeDeleteNotAllowed, Object: objectType, args: []string{objectType}}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, err: err}
}
