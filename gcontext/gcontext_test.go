package gcontext_test

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
	"trpc.group/trpc-go/grape-engine/store"
)

func newPersonWrapper(rank int) fragment.Wrapper {
	frag := fragment.NewFragment(rank, 1)
	frag.AddInnerVertex("person", 1)
	frag.AddInnerVertex("person", 2)
	return fragment.NewLabeledPropertyWrapper(command.GraphDef{
		GraphType: command.ArrowProperty, VineyardID: command.NoVineyardID,
	}, frag)
}

func TestTensorContextRequiresResultSelector(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		tc := gcontext.NewTensorContext(w, []float64{1, 2, 3})
		_, err := tc.ToNdArray(ctx, c, "v.id", fragment.VertexRange{})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, grapeerr.UnsupportedOperation, grapeerr.KindOf(err))
}

func TestTensorContextToNdArrayGathersAcrossWorkers(t *testing.T) {
	err := comm.RunCluster(context.Background(), 2, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		local := []float64{float64(rank) + 1}
		tc := gcontext.NewTensorContext(w, local)
		blob, err := tc.ToNdArray(ctx, c, "r", fragment.VertexRange{})
		if err != nil {
			return err
		}
		if comm.IsRoot(c) {
			decoded, err := command.DecodeNdArray(blob)
			if err != nil {
				return err
			}
			if decoded.TotalCount != 2 {
				t.Fatalf("total count = %d, want 2", decoded.TotalCount)
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestVertexDataContextRoundTripAndAddColumn(t *testing.T) {
	sc := store.NewMemClient()
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		vdc := gcontext.NewVertexDataContext(w, "person", map[int64]float64{1: 10, 2: 20})

		blob, err := vdc.ToNdArray(ctx, c, "r", fragment.VertexRange{})
		if err != nil {
			return err
		}
		decoded, err := command.DecodeNdArray(blob)
		if err != nil {
			return err
		}
		if decoded.TotalCount != 2 {
			t.Fatalf("total count = %d, want 2", decoded.TotalCount)
		}

		updated, err := w.AddColumn(ctx, c, sc, "g1", vdc, "*")
		if err != nil {
			return err
		}
		if updated.GraphDef().Key != "g1" {
			t.Fatalf("key = %q, want g1", updated.GraphDef().Key)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestVertexDataContextUnsupportedSelector(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		vdc := gcontext.NewVertexDataContext(w, "person", map[int64]float64{1: 10})
		_, err := vdc.ToNdArray(ctx, c, "v.property.age", fragment.VertexRange{})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, grapeerr.UnsupportedOperation, grapeerr.KindOf(err))
}

func TestVertexPropertyContextStringFieldRejectedNumerically(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		vpc := gcontext.NewVertexPropertyContext(w, "person", []string{"rank", "name"}, map[int64]map[string]gcontext.Value{
			1: {"rank": {Num: 1.5}, "name": {Str: "ann", IsString: true}},
		})
		_, err := vpc.ToNdArray(ctx, c, "r.name", fragment.VertexRange{})
		return err
	})
	require.Error(t, err)
	assert.Equal(t, grapeerr.DataType, grapeerr.KindOf(err))
}

func TestVertexPropertyContextAddColumnCarriesStrings(t *testing.T) {
	sc := store.NewMemClient()
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		vpc := gcontext.NewVertexPropertyContext(w, "person", []string{"name"}, map[int64]map[string]gcontext.Value{
			1: {"name": {Str: "ann", IsString: true}},
			2: {"name": {Str: "bob", IsString: true}},
		})
		updated, err := w.AddColumn(ctx, c, sc, "g1", vpc, "*")
		if err != nil {
			return err
		}
		frag := updated.Fragment().(*fragment.Fragment)
		if frag.VertexStrings["person"][1]["name"] != "ann" {
			t.Fatalf("name for oid 1 = %q, want ann", frag.VertexStrings["person"][1]["name"])
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledVertexDataContextNarrowAndAddColumn(t *testing.T) {
	sc := store.NewMemClient()
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		w := newPersonWrapper(rank)
		lvdc := gcontext.NewLabeledVertexDataContext(w, map[string]map[int64]float64{
			"person": {1: 100, 2: 200},
		})

		sel, err := gcontext.ParseSelector("#0:r")
		if err != nil {
			return err
		}
		src, err := gcontext.Narrow(lvdc, sel)
		if err != nil {
			return err
		}
		if src.TargetLabel() != "person" {
			t.Fatalf("target label = %q, want person", src.TargetLabel())
		}
		if src.ContextType() != command.ContextLabeledVertexData {
			t.Fatalf("context type = %s, want LABELED_VERTEX_DATA", src.ContextType())
		}

		updated, err := w.AddColumn(ctx, c, sc, "g1", src, "*")
		if err != nil {
			return err
		}
		if !updated.GraphDef().InStore() {
			t.Fatal("expected g1 to be persisted")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledVertexDataContextRequiresLabelPrefix(t *testing.T) {
	w := newPersonWrapper(0)
	lvdc := gcontext.NewLabeledVertexDataContext(w, map[string]map[int64]float64{"person": {1: 1}})
	sel, err := gcontext.ParseSelector("r")
	require.NoError(t, err)
	_, err = gcontext.Narrow(lvdc, sel)
	require.Error(t, err)
	assert.Equal(t, grapeerr.InvalidValue, grapeerr.KindOf(err))
}

func TestNarrowRejectsTensorContext(t *testing.T) {
	w := newPersonWrapper(0)
	tc := gcontext.NewTensorContext(w, []float64{1})
	sel, err := gcontext.ParseSelector("r")
	require.NoError(t, err)
	_, err = gcontext.Narrow(tc, sel)
	require.Error(t, err)
	assert.Equal(t, grapeerr.IllegalState, grapeerr.KindOf(err))
}
