package appentry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/gcontext"
	"trpc.group/trpc-go/grape-engine/grapeerr"
)

func testWrapper() fragment.Wrapper {
	frag := fragment.NewFragment(0, 1)
	frag.AddInnerVertex("person", 1)
	return fragment.NewLabeledPropertyWrapper(command.GraphDef{
		GraphType: command.ArrowProperty, VineyardID: command.NoVineyardID,
	}, frag)
}

func TestEntryMeta(t *testing.T) {
	e := newEntry("pagerank.so", Meta{Name: "pagerank", Version: "1.0"}, nil, nil)
	assert.Equal(t, Meta{Name: "pagerank", Version: "1.0"}, e.Meta())
}

func TestEntryCreateWorkerDelegatesAndWrapsError(t *testing.T) {
	wantWorker := Worker("a-worker-handle")
	e := newEntry("pagerank.so", Meta{}, func(ctx context.Context, frag fragment.Wrapper, cm comm.Communicator, spec EngineSpec) (Worker, error) {
		return wantWorker, nil
	}, nil)

	w, err := e.CreateWorker(context.Background(), testWrapper(), nil, DefaultEngineSpec())
	require.NoError(t, err)
	assert.Equal(t, wantWorker, w)
}

func TestEntryCreateWorkerErrorIsLibraryLoad(t *testing.T) {
	e := newEntry("pagerank.so", Meta{}, func(ctx context.Context, frag fragment.Wrapper, cm comm.Communicator, spec EngineSpec) (Worker, error) {
		return nil, assertErr
	}, nil)

	_, err := e.CreateWorker(context.Background(), testWrapper(), nil, DefaultEngineSpec())
	require.Error(t, err)
	assert.Equal(t, grapeerr.LibraryLoad, grapeerr.KindOf(err))
}

func TestEntryQueryDelegatesAndReturnsContext(t *testing.T) {
	w := testWrapper()
	wantCtx := gcontext.NewVertexDataContext(w, "person", map[int64]float64{1: 42})

	e := newEntry("pagerank.so", Meta{}, nil, func(ctx context.Context, worker Worker, queryArgs map[string]any, contextKey string, wrapper fragment.Wrapper) (gcontext.Context, error) {
		assert.Equal(t, "ctx0", contextKey)
		return wantCtx, nil
	})

	got, err := e.Query(context.Background(), "worker-handle", map[string]any{"source": int64(1)}, "ctx0", w)
	require.NoError(t, err)
	assert.Same(t, wantCtx, got)
}

func TestEntryQueryErrorIsLibraryLoad(t *testing.T) {
	e := newEntry("pagerank.so", Meta{}, nil, func(ctx context.Context, worker Worker, queryArgs map[string]any, contextKey string, wrapper fragment.Wrapper) (gcontext.Context, error) {
		return nil, assertErr
	})

	_, err := e.Query(context.Background(), "worker-handle", nil, "ctx0", testWrapper())
	require.Error(t, err)
	assert.Equal(t, grapeerr.LibraryLoad, grapeerr.KindOf(err))
}

func TestOpenUnknownPathIsLibraryLoad(t *testing.T) {
	_, err := Open("/nonexistent/path/to/plugin.so")
	require.Error(t, err)
	assert.Equal(t, grapeerr.LibraryLoad, grapeerr.KindOf(err))
}

func TestDefaultEngineSpecIsPositive(t *testing.T) {
	assert.Greater(t, DefaultEngineSpec().Parallelism, 0)
}

var assertErr = grapeerr.New(grapeerr.Unimplemented, "boom")
