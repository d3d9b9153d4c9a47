package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `{"Version":"v1","Queue":{"orders":{"MaxMessages":5000,"AllowSend":true},"audit":{"MaxMessages":10}}}`

func TestRender(t *testing.T) {
	tests := []struct {
		name   string
		format string
		path   string
		want   string
	}{
		{"single match", FormatJSON, "$.Queue.orders.MaxMessages", "5000\n"},
		{"string match", FormatJSON, "$.Version", "\"v1\"\n"},
		{"yaml", FormatYAML, "$.Queue.orders", "AllowSend: true\nMaxMessages: 5000\n"},
		{"no match", FormatJSON, "$.Queue.nope", "[]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, []byte(doc), tt.format, tt.path))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRender_Wildcard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []byte(doc), FormatJSON, "$.Queue.*.MaxMessages"))
	assert.Contains(t, buf.String(), "5000")
	assert.Contains(t, buf.String(), "10")
}

func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, []byte("not json"), FormatJSON, ""))
	assert.Error(t, Render(&buf, []byte(doc), FormatJSON, "$.[[["))
	assert.Error(t, Render(&buf, []byte(doc), "xml", ""))
}
