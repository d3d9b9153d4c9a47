package portability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/manager"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newManager(t *testing.T) *manager.Manager {
	t.Helper()
	m := manager.New(schema.MustNew(), store.NewMemoryBackend())
	_, err := m.Reload(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat(nil, "a.json"))
	assert.Equal(t, FormatYAML, DetectFormat(nil, "a.YML"))
	assert.Equal(t, FormatJSON, DetectFormat([]byte("  {\"a\":1}"), "stdin"))
	assert.Equal(t, FormatYAML, DetectFormat([]byte("a: 1"), "stdin"))

	f, err := ParseFormat("yml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "{}")
	writeFile(t, dir, "nested/deep/b.json", "{}")
	writeFile(t, dir, "nested/c.txt", "")

	files, err := ExpandPaths([]string{"**/*.json", "a.yaml", "*.yaml"}, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yaml"),
		filepath.Join(dir, "nested", "deep", "b.json"),
	}, files)

	_, err = ExpandPaths([]string{"missing.yaml"}, dir)
	assert.Error(t, err)
	_, err = ExpandPaths([]string{"**/*.toml"}, dir)
	assert.ErrorContains(t, err, "no files match")
}

func TestLoad_MergesYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hubs.yaml", `
Version: v1
MessageHub:
  hub1:
    Description: first
ConnectionPolicy:
  cp1:
    ClientID: "*"
`)
	writeFile(t, dir, "endpoints.json", `{
  "Endpoint": {"ep1": {"Port": 16102, "MessageHub": "hub1", "ConnectionPolicies": "cp1", "TopicPolicies": "tp1"}},
  "TopicPolicy": {"tp1": {"ClientID": "*", "Topic": "*", "ActionList": "Publish"}},
  "TraceBackupCount": 10
}`)

	bundle, err := Load([]string{"*.yaml", "*.json"}, LoadOptions{BaseDir: dir, Registry: schema.MustNew()})
	require.NoError(t, err)
	assert.Len(t, bundle.Files, 2)

	m := newManager(t)
	res, err := Apply(context.Background(), m, bundle)
	require.NoError(t, err)
	assert.Len(t, res.Objects, 5)

	o, err := m.Get("Endpoint", "ep1")
	require.NoError(t, err)
	assert.Equal(t, int64(16102), o.Properties["Port"].Int)
	o, err = m.Get("TraceBackupCount", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), o.Properties["TraceBackupCount"].Int)
}

func TestLoad_DuplicateObjectAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"MessageHub":{"hub1":{}}}`)
	writeFile(t, dir, "b.json", `{"MessageHub":{"hub1":{"Description":"again"}}}`)

	_, err := Load([]string{"*.json"}, LoadOptions{BaseDir: dir})
	require.Error(t, err)
	assert.ErrorContains(t, err, "MessageHub/hub1 is already defined in")
}

func TestLoad_SchemaRejectsWrongShape(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "MessageHub:\n  hub1:\n    Port: 1\n")
	writeFile(t, dir, "typo.json", `{"MesageHub":{"hub1":{}}}`)

	_, err := Load([]string{"bad.yaml"}, LoadOptions{BaseDir: dir, Registry: schema.MustNew()})
	var ie *ImportError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, FormatYAML, ie.Format)

	_, err = Load([]string{"typo.json"}, LoadOptions{BaseDir: dir, Registry: schema.MustNew()})
	assert.ErrorContains(t, err, "document does not match schema")
}

func TestValidate_ReportsServerError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "policy.yaml", `
MessagingPolicy:
  X:
    ActionList: Publish,Subscribe
    Destination: "*"
    DestinationType: Topic
`)
	bundle, err := Load([]string{"policy.yaml"}, LoadOptions{BaseDir: dir, Registry: schema.MustNew()})
	require.NoError(t, err)

	_, err = Validate(context.Background(), schema.MustNew(), bundle)
	assert.ErrorIs(t, err, cfgerr.KindMissingRequiredGroup)
}

func TestExport_RoundTrip(t *testing.T) {
	m := newManager(t)
	batch, err := manager.ParseRequest(m.Registry(), []byte(`{"MessageHub":{"hub1":{"Description":"d"}},"TraceBackupCount":9}`))
	require.NoError(t, err)
	_, err = m.Apply(context.Background(), batch)
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Export(m.Document(), ExportOptions{Format: format})
			require.NoError(t, err)

			dir := t.TempDir()
			writeFile(t, dir, "export."+format.String(), string(data))
			bundle, err := Load([]string{"export.*"}, LoadOptions{BaseDir: dir, Registry: m.Registry()})
			require.NoError(t, err)

			fresh := newManager(t)
			_, err = Apply(context.Background(), fresh, bundle)
			require.NoError(t, err)

			before, err := Export(m.Document(), ExportOptions{Format: FormatJSON})
			require.NoError(t, err)
			after, err := Export(fresh.Document(), ExportOptions{Format: FormatJSON})
			require.NoError(t, err)
			assert.JSONEq(t, string(before), string(after))
		})
	}
}

func TestExport_TypeFilter(t *testing.T) {
	doc := map[string]any{"Version": "v1", "FIPS": false, "TraceLevel": "5"}
	data, err := Export(doc, ExportOptions{Format: FormatYAML, Types: []string{"FIPS"}})
	require.NoError(t, err)
	assert.Equal(t, "FIPS: false\nVersion: v1\n", string(data))

	_, err = Export(doc, ExportOptions{Format: "xml"})
	assert.Error(t, err)
}
