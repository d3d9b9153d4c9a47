package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	s := New(schema.MustNew(), backend)
	t.Cleanup(func() { _ = s.Close() })
	return s, backend
}

func hub(name, desc string) *object.Object {
	return &object.Object{Type: "MessageHub", Name: name, Properties: object.Properties{"Description": object.String(desc)}}
}

// ============================================================================
// CRUD
// ============================================================================

func TestStore_CreateGetList(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, hub("b", "second")))
	require.NoError(t, s.Create(ctx, hub("a", "first")))

	got, err := s.Get("MessageHub", "a")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Properties["Description"].Str)

	list, err := s.List("MessageHub")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)

	assert.Equal(t, 2, backend.Commits())
	assert.Equal(t, uint64(2), s.Snapshot().Revision())
}

func TestStore_CreateDuplicate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, hub("a", "x")))
	err := s.Create(ctx, hub("a", "y"))
	assert.ErrorIs(t, err, cfgerr.KindAlreadyExists)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestStore_NamesAreCaseSensitive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, hub("Hub", "x")))
	require.NoError(t, s.Create(ctx, hub("hub", "y")))

	_, err := s.Get("MessageHub", "HUB")
	assert.ErrorIs(t, err, cfgerr.KindNotFound)
}

func TestStore_UpdateMissing(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Update(context.Background(), hub("nope", "x"))
	assert.ErrorIs(t, err, cfgerr.KindNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UnknownType(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get("Nope", "x")
	assert.ErrorIs(t, err, cfgerr.KindInvalidRequestShape)
	_, err = s.List("Nope")
	assert.ErrorIs(t, err, cfgerr.KindInvalidRequestShape)
}

func TestStore_DeleteRules(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Delete(ctx, "AdminEndpoint", "")
	assert.ErrorIs(t, err, cfgerr.KindUnsupported)

	err = s.Delete(ctx, "MessageHub", "missing")
	assert.ErrorIs(t, err, cfgerr.KindNotFound)

	require.NoError(t, s.Create(ctx, hub("a", "x")))
	require.NoError(t, s.Delete(ctx, "MessageHub", "a"))
	_, err = s.Get("MessageHub", "a")
	assert.ErrorIs(t, err, cfgerr.KindNotFound)
}

func TestStore_DeleteReferencedIsInUse(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, func(tx *Tx) error {
		tx.Put(&object.Object{Type: "CRLProfile", Name: "crl", Properties: object.Properties{"CRLSource": object.String("crl.pem")}})
		tx.Put(&object.Object{Type: "SecurityProfile", Name: "sec", Properties: object.Properties{"CRLProfile": object.String("crl")}})
		return nil
	})
	require.NoError(t, err)

	err = s.Delete(ctx, "CRLProfile", "crl")
	require.ErrorIs(t, err, cfgerr.KindInUse)
	assert.Equal(t, "The Object: CRLProfile, Name: crl is still being used by Object: SecurityProfile, Name: sec", err.Error())

	_, err = s.Get("CRLProfile", "crl")
	assert.NoError(t, err)
}

// ============================================================================
// Atomicity
// ============================================================================

func TestStore_FailedCommitPublishesNothing(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, hub("a", "x")))
	before := s.Snapshot()

	backend.FailNextCommit(errors.New("disk full"))
	err := s.Create(ctx, hub("b", "y"))
	require.ErrorIs(t, err, cfgerr.KindInternal)

	assert.Same(t, before, s.Snapshot())
	_, err = s.Get("MessageHub", "b")
	assert.ErrorIs(t, err, cfgerr.KindNotFound)
}

func TestStore_FailedApplyLeavesStateUntouched(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, err := s.Apply(ctx, func(tx *Tx) error {
		tx.Put(hub("a", "x"))
		return cfgerr.NotFound("MessageHub", "other")
	})
	require.Error(t, err)
	assert.Equal(t, 0, s.Snapshot().Len())
	assert.Equal(t, 0, backend.Commits())
}

func TestStore_SnapshotsAreImmutable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, hub("a", "x")))
	old := s.Snapshot()

	require.NoError(t, s.Create(ctx, hub("b", "y")))
	require.NoError(t, s.Delete(ctx, "MessageHub", "a"))

	assert.Equal(t, 1, old.Count("MessageHub"))
	_, ok := old.Get("MessageHub", "a")
	assert.True(t, ok)
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			// Pairs are always written together.
			assert.Equal(t, snap.Count("MessageHub"), snap.Count("Queue"))
		}
	}()

	for i := 0; i < 50; i++ {
		name := string(rune('a' + i%26))
		_, err := s.Apply(ctx, func(tx *Tx) error {
			tx.Put(hub(name+string(rune('0'+i/26)), "x"))
			tx.Put(&object.Object{Type: "Queue", Name: name + string(rune('0'+i/26)), Properties: object.Properties{}})
			return nil
		})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

// ============================================================================
// Reload
// ============================================================================

func TestStore_LoadRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	first := New(schema.MustNew(), backend)
	ctx := context.Background()

	loaded, err := first.Load(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, first.Create(ctx, hub("a", "x")))

	second := New(schema.MustNew(), backend)
	loaded, err = second.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, first.Snapshot().Objects(), second.Snapshot().Objects())
	assert.Equal(t, first.Snapshot().Revision(), second.Snapshot().Revision())
}

func TestStore_ClosedRejectsWrites(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Create(context.Background(), hub("a", "x"))
	assert.ErrorIs(t, err, ErrClosed)
}
