package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/registry"
)

type fakeFragment struct{ name string }

func (f *fakeFragment) ArtifactKind() string { return "fakeFragment" }

type fakeContext struct{ name string }

func (f *fakeContext) ArtifactKind() string { return "fakeContext" }

func TestPutGetHasRemove(t *testing.T) {
	r := registry.New()
	frag := &fakeFragment{name: "g0"}

	require.NoError(t, r.Put("g0", frag))
	assert.True(t, r.Has("g0"))

	got, err := registry.Get[*fakeFragment](r, "g0")
	require.NoError(t, err)
	assert.Same(t, frag, got)

	require.NoError(t, r.Remove("g0"))
	assert.False(t, r.Has("g0"))
}

func TestPutDuplicate(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Put("g0", &fakeFragment{}))

	err := r.Put("g0", &fakeFragment{})
	assert.True(t, grapeerr.Is(err, grapeerr.DuplicateId))
}

func TestGetNotFound(t *testing.T) {
	r := registry.New()
	_, err := registry.Get[*fakeFragment](r, "missing")
	assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
}

func TestGetTypeMismatch(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Put("g0", &fakeFragment{}))

	_, err := registry.Get[*fakeContext](r, "g0")
	assert.True(t, grapeerr.Is(err, grapeerr.TypeMismatch))
}

func TestRemoveNotFound(t *testing.T) {
	r := registry.New()
	err := r.Remove("missing")
	assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
}
