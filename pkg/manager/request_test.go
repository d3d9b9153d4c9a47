package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

func TestParseRequest_Shapes(t *testing.T) {
	reg := schema.MustNew()

	batch, err := ParseRequest(reg, []byte(`{
		"Version": "v1",
		"TraceBackupCount": 5,
		"Syslog": {"Port": 514},
		"MessageHub": {"b": {}, "a": {"Description": null}}
	}`))
	require.NoError(t, err)
	require.Len(t, batch, 4)

	// Registry order, then name.
	assert.Equal(t, "MessageHub", batch[0].Type.Name)
	assert.Equal(t, "a", batch[0].Name)
	assert.True(t, batch[0].Properties["Description"].IsNull())
	assert.Equal(t, "b", batch[1].Name)
	assert.Equal(t, "TraceBackupCount", batch[2].Type.Name)
	assert.Equal(t, object.Integer(5), batch[2].Properties["TraceBackupCount"])
	assert.Equal(t, "Syslog", batch[3].Type.Name)
	assert.Equal(t, object.Integer(514), batch[3].Properties["Port"])
}

func TestParseRequest_ScalarSingletonNull(t *testing.T) {
	batch, err := ParseRequest(schema.MustNew(), []byte(`{"TraceBackupCount":null}`))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "TraceBackupCount", batch[0].Type.Name)
	assert.True(t, batch[0].Properties["TraceBackupCount"].IsNull())
}

func TestParseRequest_Errors(t *testing.T) {
	reg := schema.MustNew()

	tests := []struct {
		name string
		body string
		code string
		msg  string
	}{
		{"not an object", `[1,2]`, cfgerr.CodeInvalidCall, ""},
		{"empty body", ``, cfgerr.CodeInvalidCall, "The REST API call: POST /configuration is not valid."},
		{"empty object", `{}`, cfgerr.CodeInvalidCall, ""},
		{"unknown type", `{"Nope":{"a":{}}}`, cfgerr.CodeInvalidCall, `The REST API call: "Nope" is not valid.`},
		{"null type", `{"MessageHub":null}`, cfgerr.CodeInvalidCall, `The REST API call: "MessageHub":null is not valid.`},
		{"null composite", `{"Syslog":null}`, cfgerr.CodeInvalidCall, `The REST API call: "Syslog":null is not valid.`},
		{"null instance", `{"MessageHub":{"h":null}}`, cfgerr.CodeNullObject, "A null object is not allowed."},
		{"scalar instance", `{"MessageHub":{"h":5}}`, cfgerr.CodeInvalidCall, ""},
		{"collection as list", `{"MessageHub":["h"]}`, cfgerr.CodeInvalidCall, ""},
		{"composite as scalar", `{"Syslog":5}`, cfgerr.CodeInvalidCall, ""},
		{"only version", `{"Version":"v1"}`, cfgerr.CodeInvalidCall, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(reg, []byte(tt.body))
			require.ErrorIs(t, err, cfgerr.KindInvalidRequestShape)
			assert.Equal(t, tt.code, cfgerr.As(err).Code)
			assert.Equal(t, 400, cfgerr.As(err).Status())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}
}
