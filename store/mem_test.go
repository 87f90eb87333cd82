package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

func TestPutGetRoundTrip(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id, err := c.Put(ctx, []byte("fragment-bytes"))
	require.NoError(t, err)

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("fragment-bytes"), got)
}

func TestPutAssignsDistinctIDs(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id1, err := c.Put(ctx, []byte("a"))
	require.NoError(t, err)
	id2, err := c.Put(ctx, []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestPutCopiesInput(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	blob := []byte("mutable")
	id, err := c.Put(ctx, blob)
	require.NoError(t, err)

	blob[0] = 'X'
	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), got)
}

func TestGetMissingIsStoreError(t *testing.T) {
	c := store.NewMemClient()
	_, err := c.Get(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.StoreError))
}

func TestPutNameGetNameRoundTrip(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id, err := c.Put(ctx, []byte("g0"))
	require.NoError(t, err)
	require.NoError(t, c.PutName(ctx, "graph_0", id))

	got, err := c.GetName(ctx, "graph_0")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestGetNameMissingIsStoreError(t *testing.T) {
	c := store.NewMemClient()
	_, err := c.GetName(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.StoreError))
}

func TestPutNameRebindsLastWriterWins(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id1, err := c.Put(ctx, []byte("v1"))
	require.NoError(t, err)
	id2, err := c.Put(ctx, []byte("v2"))
	require.NoError(t, err)

	require.NoError(t, c.PutName(ctx, "graph_0", id1))
	require.NoError(t, c.PutName(ctx, "graph_0", id2))

	got, err := c.GetName(ctx, "graph_0")
	require.NoError(t, err)
	assert.Equal(t, id2, got)
}

func TestDelDataRemovesObject(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id, err := c.Put(ctx, []byte("gone-soon"))
	require.NoError(t, err)
	require.NoError(t, c.DelData(ctx, id))

	_, err = c.Get(ctx, id)
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.StoreError))
}

func TestDelDataMissingIsNotFound(t *testing.T) {
	c := store.NewMemClient()
	err := c.DelData(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
}

func TestDelDataUnbindsNames(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	id, err := c.Put(ctx, []byte("named"))
	require.NoError(t, err)
	require.NoError(t, c.PutName(ctx, "alias", id))
	require.NoError(t, c.DelData(ctx, id))

	_, err = c.GetName(ctx, "alias")
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.StoreError))
}

func TestConstructFragmentGroupRoundTrip(t *testing.T) {
	c := store.NewMemClient()
	ctx := context.Background()

	members := []int64{11, 22, 33}
	groupID, err := c.ConstructFragmentGroup(ctx, "fg_0", members)
	require.NoError(t, err)

	resolved, err := c.GetName(ctx, "fg_0")
	require.NoError(t, err)
	assert.Equal(t, groupID, resolved)

	blob, err := c.Get(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, blob, 8*len(members))
	for i, want := range members {
		var got int64
		for b := 0; b < 8; b++ {
			got |= int64(blob[i*8+b]) << (8 * b)
		}
		assert.Equal(t, want, got)
	}
}
