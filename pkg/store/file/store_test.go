package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/store"
	"github.com/msgsight/cfgd/pkg/store/storetest"
)

func TestFileStore_Conformance(t *testing.T) {
	dirs := map[string]string{}
	storetest.Run(t, func(t *testing.T) store.Backend {
		// Both handles opened inside one subtest share its directory.
		dir, ok := dirs[t.Name()]
		if !ok {
			dir = t.TempDir()
			dirs[t.Name()] = dir
		}
		fs := New(Config{DataDir: dir})
		t.Cleanup(func() { _ = fs.Close() })
		return fs
	})
}

func TestFileStore_WritesDataFile(t *testing.T) {
	dir := t.TempDir()
	fs := New(Config{DataDir: filepath.Join(dir, "nested")})
	snap := store.NewSnapshot(3, []*object.Object{
		{Type: "MessageHub", Name: "hub", Properties: object.Properties{"Description": object.String("x")}},
	})

	require.NoError(t, fs.Commit(context.Background(), &store.Commit{Revision: 3, Snapshot: snap}))

	data, err := os.ReadFile(filepath.Join(dir, "nested", DataFileName))
	require.NoError(t, err)
	var stored storeData
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, dataVersion, stored.Version)
	assert.Equal(t, uint64(3), stored.Revision)
	require.Len(t, stored.Objects, 1)
	assert.Equal(t, "hub", stored.Objects[0].Name)

	_, err = os.Stat(filepath.Join(dir, "nested", DataFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_ReadOnly(t *testing.T) {
	fs := New(Config{DataDir: t.TempDir(), ReadOnly: true})
	err := fs.Commit(context.Background(), &store.Commit{Revision: 1, Snapshot: store.NewSnapshot(1, nil)})
	assert.ErrorIs(t, err, store.ErrReadOnly)
}

func TestFileStore_RejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte(`{"version":99,"revision":1,"objects":[]}`), 0600))

	_, err := New(Config{DataDir: dir}).Load(context.Background())
	assert.ErrorContains(t, err, "newer than supported")
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DataFileName), []byte("{not json"), 0600))

	_, err := New(Config{DataDir: dir}).Load(context.Background())
	assert.Error(t, err)
}
