// Package storetest holds the conformance suite every store.Backend must pass.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
)

// Factory opens a backend. Calling it twice in one test must return two
// handles onto the same durable state.
type Factory func(t *testing.T) store.Backend

// Run exercises a backend through a Store: empty load, commits, deletes and
// a reload through a second handle.
func Run(t *testing.T, open Factory) {
	t.Run("EmptyLoad", func(t *testing.T) {
		b := open(t)
		snap, err := b.Load(context.Background())
		require.NoError(t, err)
		assert.Nil(t, snap)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := context.Background()
		reg := schema.MustNew()

		first := store.New(reg, open(t))
		_, err := first.Apply(ctx, func(tx *store.Tx) error {
			tx.Put(&object.Object{Type: "MessageHub", Name: "hub1", Properties: object.Properties{
				"Description": object.String("first hub"),
			}})
			tx.Put(&object.Object{Type: "MessageHub", Name: "hub2", Properties: object.Properties{
				"Description": object.String(""),
			}})
			tx.Put(&object.Object{Type: "TraceBackupCount", Properties: object.Properties{
				"TraceBackupCount": object.Integer(7),
			}})
			tx.Put(&object.Object{Type: "FIPS", Properties: object.Properties{
				"FIPS": object.Boolean(false),
			}})
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, first.Delete(ctx, "MessageHub", "hub2"))
		require.NoError(t, first.Update(ctx, &object.Object{Type: "MessageHub", Name: "hub1", Properties: object.Properties{
			"Description": object.String("updated"),
		}}))

		second := store.New(reg, open(t))
		loaded, err := second.Load(ctx)
		require.NoError(t, err)
		require.True(t, loaded)

		assert.Equal(t, first.Snapshot().Revision(), second.Snapshot().Revision())
		assert.Equal(t, first.Snapshot().Objects(), second.Snapshot().Objects())

		got, err := second.Get("TraceBackupCount", "")
		require.NoError(t, err)
		assert.Equal(t, object.Integer(7), got.Properties["TraceBackupCount"])
		_, err = second.Get("MessageHub", "hub2")
		assert.Error(t, err)
	})
}
