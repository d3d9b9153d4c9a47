package object

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_UnmarshalKinds(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     Kind
		jsonType string
		text     string
	}{
		{"string", `"abc"`, KindString, "JSON_STRING", "abc"},
		{"integer", `42`, KindInteger, "JSON_INTEGER", "42"},
		{"negative integer", `-7`, KindInteger, "JSON_INTEGER", "-7"},
		{"boolean", `true`, KindBoolean, "JSON_BOOLEAN", "true"},
		{"null", `null`, KindNull, "JSON_NULL", "null"},
		{"real", `1.5`, KindReal, "JSON_REAL", "1.5"},
		{"object", `{"a":1}`, KindObject, "JSON_OBJECT", `{"a":1}`},
		{"array", `[1,2]`, KindArray, "JSON_ARRAY", `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.jsonType, v.Kind.JSONType())
			assert.Equal(t, tt.text, v.Text())
		})
	}
}

func TestValue_MarshalNative(t *testing.T) {
	props := Properties{
		"Description": String("hello"),
		"MaxMessages": Integer(5000),
		"Enabled":     Boolean(false),
	}
	data, err := json.Marshal(props)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Description":"hello","MaxMessages":5000,"Enabled":false}`, string(data))

	var back Properties
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, props.Equal(back))
}

func TestValue_IsEmpty(t *testing.T) {
	assert.True(t, Null().IsEmpty())
	assert.True(t, String("").IsEmpty())
	assert.False(t, String("x").IsEmpty())
	assert.False(t, Integer(0).IsEmpty())
	assert.False(t, Boolean(false).IsEmpty())
}

func TestFromAny_YAMLInts(t *testing.T) {
	v, err := FromAny(12)
	require.NoError(t, err)
	assert.Equal(t, Integer(12), v)

	v, err = FromAny(float64(3))
	require.NoError(t, err)
	assert.Equal(t, KindInteger, v.Kind)
}

func TestObject_CloneIsIndependent(t *testing.T) {
	o := &Object{Type: "MessageHub", Name: "hub", Properties: Properties{"Description": String("a")}}
	c := o.Clone()
	c.Properties["Description"] = String("b")
	assert.Equal(t, "a", o.Properties["Description"].Str)
	assert.Equal(t, "MessageHub/hub", o.Key())
}
