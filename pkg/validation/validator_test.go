package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// ====================================================================
// Helpers
// ====================================================================

var registry = schema.MustNew()

func lookup(t *testing.T, name string) *schema.ObjectType {
	t.Helper()
	ot, ok := registry.Lookup(name)
	require.True(t, ok, "unknown type %s", name)
	return ot
}

func requireKind(t *testing.T, err error, kind cfgerr.Kind) *cfgerr.Error {
	t.Helper()
	require.Error(t, err)
	var ce *cfgerr.Error
	require.True(t, errors.As(err, &ce), "expected *cfgerr.Error, got %T", err)
	require.Equal(t, kind, ce.Kind, "message: %s", ce.Error())
	return ce
}

func messagingPolicy() object.Properties {
	return object.Properties{
		"ClientID":        object.String("*"),
		"Destination":     object.String("*"),
		"DestinationType": object.String("Topic"),
		"ActionList":      object.String("Publish,Subscribe"),
	}
}

// ====================================================================
// Step ordering and individual checks
// ====================================================================

func TestValidate_CreateMaterializesDefaults(t *testing.T) {
	v := New(registry)
	merged, err := v.Validate(lookup(t, "MessagingPolicy"), "TestMsgPol", messagingPolicy(), nil)
	require.NoError(t, err)

	assert.Equal(t, object.Integer(5000), merged["MaxMessages"])
	assert.Equal(t, object.String("RejectNewMessages"), merged["MaxMessagesBehavior"])
	assert.Equal(t, object.String(""), merged["UserID"])
	assert.Equal(t, object.String("*"), merged["ClientID"])
}

func TestValidate_IdempotentDefaulting(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "MessagingPolicy")
	first, err := v.Validate(ot, "p", messagingPolicy(), nil)
	require.NoError(t, err)

	second, err := v.Validate(ot, "p", object.Properties{}, first)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestValidate_MissingGroup(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	delete(props, "ClientID")

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "X", props, nil)
	ce := requireKind(t, err, cfgerr.KindMissingRequiredGroup)
	assert.Equal(t, "CWLNA0139", ce.Code)
	assert.Equal(t, "The object: MessagingPolicy must have one of the properties ClientID,ClientAddress,UserID,GroupID,CommonNames,Protocol specified", ce.Error())
}

func TestValidate_GroupCannotBeClearedOnUpdate(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "MessagingPolicy")
	existing, err := v.Validate(ot, "p", messagingPolicy(), nil)
	require.NoError(t, err)

	_, err = v.Validate(ot, "p", object.Properties{"ClientID": object.Null()}, existing)
	requireKind(t, err, cfgerr.KindMissingRequiredGroup)
}

func TestValidate_UnknownPropertyBeforeType(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	props["Bogus"] = object.Integer(1)
	props["MaxMessages"] = object.String("10")

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindUnknownProperty)
	assert.Equal(t, "CWLNA0138", ce.Code)
	assert.Equal(t, "Bogus", ce.Property)
}

func TestValidate_TypeBeforeContent(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	props["MaxMessages"] = object.String("10")
	props["MaxMessagesBehavior"] = object.String("Nope")

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindInvalidType)
	assert.Equal(t, "The property type is not valid. Object: MessagingPolicy Name: p Property: MaxMessages Type: JSON_STRING", ce.Error())
}

func TestValidate_Content(t *testing.T) {
	tests := []struct {
		name  string
		prop  string
		value object.Value
		kind  cfgerr.Kind
	}{
		{"max messages zero", "MaxMessages", object.Integer(0), cfgerr.KindInvalidValue},
		{"max messages above range", "MaxMessages", object.Integer(20000001), cfgerr.KindInvalidValue},
		{"bad behavior", "MaxMessagesBehavior", object.String("DropAll"), cfgerr.KindInvalidValue},
		{"ttl zero", "MaxMessageTimeToLive", object.String("0"), cfgerr.KindInvalidValue},
		{"ttl overflow", "MaxMessageTimeToLive", object.String("2147483648"), cfgerr.KindInvalidValue},
		{"descending range", "ClientAddress", object.String("10.0.0.9-10.0.0.1"), cfgerr.KindInvalidValue},
		{"unknown action", "ActionList", object.String("Publish,Fly"), cfgerr.KindInvalidValue},
		{"real number", "MaxMessages", mustValue(t, `1.5`), cfgerr.KindInvalidType},
		{"boolean as string", "DisconnectedClientNotification", object.String("true"), cfgerr.KindInvalidType},
	}

	v := New(registry)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := messagingPolicy()
			props[tt.prop] = tt.value
			_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
			ce := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.prop, ce.Property)
		})
	}
}

func TestValidate_InvalidValueMessageQuotesIntegers(t *testing.T) {
	v := New(registry)
	_, err := v.Validate(lookup(t, "TraceBackupCount"), "", object.Properties{"TraceBackupCount": object.Integer(0)}, nil)
	ce := requireKind(t, err, cfgerr.KindInvalidValue)
	assert.Equal(t, `The property value is not valid: Property: TraceBackupCount Value: "0".`, ce.Error())
}

func TestValidate_TooManyClientAddresses(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	props["ClientAddress"] = object.String(strings.TrimSuffix(strings.Repeat("9.3.179.167,", 101), ","))

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindListTooLong)
	assert.Equal(t, "CWLNA0371", ce.Code)
}

func TestValidate_Length(t *testing.T) {
	v := New(registry)

	props := messagingPolicy()
	props["Description"] = object.String(strings.Repeat("d", 1025))
	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindValueTooLong)
	assert.Equal(t, "CWLNA0144", ce.Code)

	props = messagingPolicy()
	props["Destination"] = object.String(strings.Repeat("d", 1025))
	_, err = v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	requireKind(t, err, cfgerr.KindInvalidValue)

	props = messagingPolicy()
	props["Description"] = object.String(strings.Repeat("é", 1024))
	_, err = v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	assert.NoError(t, err, "length is counted in characters")
}

func TestValidate_Names(t *testing.T) {
	tests := []struct {
		name     string
		objType  string
		objName  string
		kind     cfgerr.Kind
		code     string
		accepted bool
	}{
		{"ok", "MessagingPolicy", "Policy 1", 0, "", true},
		{"empty", "MessagingPolicy", "", cfgerr.KindInvalidValue, "CWLNA0112", false},
		{"leading space", "MessagingPolicy", " p", cfgerr.KindInvalidCharacter, "CWLNA0122", false},
		{"comma", "MessagingPolicy", "a,b", cfgerr.KindInvalidCharacter, "CWLNA0122", false},
		{"trailing space", "MessagingPolicy", "p ", cfgerr.KindInvalidCharacter, "CWLNA0115", false},
		{"too long", "MessagingPolicy", strings.Repeat("n", 257), cfgerr.KindNameTooLong, "CWLNA0133", false},
		{"max length", "MessagingPolicy", strings.Repeat("n", 256), 0, "", true},
		{"security profile 33", "SecurityProfile", strings.Repeat("s", 33), cfgerr.KindNameTooLong, "CWLNA0133", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.objType, tt.objName, registry.MaxNameLength(tt.objType))
			if tt.accepted {
				assert.NoError(t, err)
				return
			}
			ce := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestValidate_NameCheckedFirst(t *testing.T) {
	v := New(registry)
	_, err := v.Validate(lookup(t, "MessagingPolicy"), strings.Repeat("n", 300), object.Properties{"Bogus": object.Null()}, nil)
	requireKind(t, err, cfgerr.KindNameTooLong)
}

func TestValidate_Immutable(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "QueuePolicy")
	props := object.Properties{
		"DestinationType": object.String("Queue"),
		"Destination":     object.String("*"),
		"ActionList":      object.String("Send,Receive,Browse"),
	}
	existing, err := v.Validate(ot, "Q1", props, nil)
	require.NoError(t, err)

	change := props.Clone()
	change["DestinationType"] = object.String("Topic")
	_, err = v.Validate(ot, "Q1", change, existing)
	ce := requireKind(t, err, cfgerr.KindImmutableFieldChange)
	assert.Equal(t, "DestinationType", ce.Property)

	same := object.Properties{"DestinationType": object.String("queue")}
	merged, err := v.Validate(ot, "Q1", same, existing)
	require.NoError(t, err, "re-sending the same value in a different case is not a change")
	assert.Equal(t, object.String("Queue"), merged["DestinationType"])
}

func TestValidate_ActionListFollowsDestinationType(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	props["ActionList"] = object.String("Send")

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindInvalidValue)
	assert.Equal(t, "ActionList", ce.Property)

	props["DestinationType"] = object.String("queue")
	props["ActionList"] = object.String("send,browse")
	merged, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	require.NoError(t, err)
	assert.Equal(t, object.String("Send,Browse"), merged["ActionList"])
}

func TestValidate_RequiredValue(t *testing.T) {
	v := New(registry)
	props := messagingPolicy()
	delete(props, "Destination")

	_, err := v.Validate(lookup(t, "MessagingPolicy"), "p", props, nil)
	ce := requireKind(t, err, cfgerr.KindMissingRequiredValue)
	assert.Equal(t, "The value specified for the required property is invalid or null. Property: Destination Value: null.", ce.Error())
}

func TestValidate_ScalarSingleton(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "TraceBackupCount")
	existing := object.Properties{"TraceBackupCount": object.Integer(3)}

	merged, err := v.Validate(ot, "", object.Properties{"TraceBackupCount": object.Integer(50)}, existing)
	require.NoError(t, err)
	assert.Equal(t, object.Integer(50), merged["TraceBackupCount"])

	merged, err = v.Validate(ot, "", object.Properties{"TraceBackupCount": object.Null()}, merged)
	require.NoError(t, err)
	assert.Equal(t, object.Integer(3), merged["TraceBackupCount"])

	_, err = v.Validate(ot, "", object.Properties{"TraceBackupCount": object.String("50")}, existing)
	requireKind(t, err, cfgerr.KindInvalidType)
}

func TestValidate_SecurityProfileConditions(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "SecurityProfile")

	_, err := v.Validate(ot, "sec", object.Properties{}, nil)
	ce := requireKind(t, err, cfgerr.KindMissingConditionalProperty)
	assert.Equal(t, "CWLNA0186", ce.Code)

	_, err = v.Validate(ot, "sec", object.Properties{
		"TLSEnabled": object.Boolean(false),
		"CRLProfile": object.String("crl"),
	}, nil)
	ce = requireKind(t, err, cfgerr.KindMissingConditionalProperty)
	assert.Equal(t, "CWLNA0134", ce.Code)
	assert.Equal(t, "The value specified for the required property is invalid or null. Property: UseClientCertificate Value: false.", ce.Error())

	merged, err := v.Validate(ot, "sec", object.Properties{
		"CertificateProfile":   object.String("cert"),
		"CRLProfile":           object.String("crl"),
		"UseClientCertificate": object.Boolean(true),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, object.String("TLSv1.2"), merged["MinimumProtocolMethod"])
}

func TestValidate_DoesNotMutateInputs(t *testing.T) {
	v := New(registry)
	ot := lookup(t, "MessagingPolicy")
	existing, err := v.Validate(ot, "p", messagingPolicy(), nil)
	require.NoError(t, err)
	before := existing.Clone()

	_, err = v.Validate(ot, "p", object.Properties{"MaxMessages": object.Integer(10)}, existing)
	require.NoError(t, err)
	assert.True(t, before.Equal(existing))
}

func mustValue(t *testing.T, raw string) object.Value {
	t.Helper()
	var v object.Value
	require.NoError(t, v.UnmarshalJSON([]byte(raw)))
	return v
}
