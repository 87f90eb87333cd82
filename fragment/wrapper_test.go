package fragment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

func buildLabeledFragment(fid, fnum int, oids []int64) *fragment.Fragment {
	f := fragment.NewFragment(fid, fnum)
	f.AddEdgeLabel("knows")
	for _, oid := range oids {
		f.AddInnerVertex("person", oid)
		f.SetVertexValue("person", oid, "value", float64(oid)*10)
	}
	return f
}

func baseGraphDef(key string) command.GraphDef {
	return command.GraphDef{
		Key:         key,
		GraphType:   command.ArrowProperty,
		Directed:    true,
		VineyardID:  command.NoVineyardID,
		GenerateEID: true,
	}
}

func TestLabeledPropertyCopyGraphIdentical(t *testing.T) {
	sc := store.NewMemClient()
	shards := [][]int64{{1, 2}, {3, 4}}

	err := comm.RunCluster(context.Background(), 2, func(ctx context.Context, c comm.Communicator, rank int) error {
		f := buildLabeledFragment(rank, 2, shards[rank])
		w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

		copied, err := w.CopyGraph(ctx, c, sc, "g1", fragment.CopyIdentical)
		if err != nil {
			return err
		}
		def := copied.GraphDef()
		if def.Key != "g1" {
			t.Errorf("rank %d: key = %q, want g1", rank, def.Key)
		}
		if !def.InStore() {
			t.Errorf("rank %d: expected copied graph to be in store", rank)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledPropertyCopyGraphReset(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1, 2})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		copied, err := w.CopyGraph(ctx, c, sc, "g1", fragment.CopyReset)
		if err != nil {
			return err
		}
		frag := copied.Fragment().(*fragment.Fragment)
		if len(frag.VertexData["person"]) != 0 {
			t.Errorf("expected reset copy to drop vertex data")
		}
		if len(frag.InnerVertices["person"]) != 0 {
			t.Errorf("expected reset copy to start with no inner vertices")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledPropertyProject(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1, 2})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		projected, err := w.Project(ctx, c, sc, "simple",
			map[string][]string{"person": {"value"}},
			map[string][]string{"knows": nil},
		)
		if err != nil {
			return err
		}
		if projected.GraphDef().GraphType != command.ArrowProjected {
			t.Errorf("project: graph type = %s, want ARROW_PROJECTED", projected.GraphDef().GraphType)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledPropertyProjectEmptyVertexSelection(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.Project(ctx, c, sc, "simple", map[string][]string{}, map[string][]string{"knows": nil})
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
}

func TestLabeledPropertyProjectUnknownLabel(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.Project(ctx, c, sc, "simple", map[string][]string{"nope": nil}, nil)
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
}

type fakeColumnSource struct {
	ctxType command.ContextType
	fnum    int
	vm      fragment.VertexMap
	target  string
	names   []string
	values  map[string]map[int64]float64
}

func (s *fakeColumnSource) ContextType() command.ContextType { return s.ctxType }
func (s *fakeColumnSource) Fnum() int                         { return s.fnum }
func (s *fakeColumnSource) VertexMap() fragment.VertexMap     { return s.vm }
func (s *fakeColumnSource) TargetLabel() string               { return s.target }
func (s *fakeColumnSource) ColumnNames() []string             { return s.names }
func (s *fakeColumnSource) ColumnValue(name string, oid int64) (float64, string, bool, bool) {
	byOid, ok := s.values[name]
	if !ok {
		return 0, "", false, false
	}
	v, ok := byOid[oid]
	return v, "", false, ok
}

func TestLabeledPropertyAddColumn(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1, 2})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	src := &fakeColumnSource{
		ctxType: command.ContextVertexData,
		fnum:    1,
		vm:      f.VertexMap,
		target:  "person",
		names:   []string{"rank"},
		values:  map[string]map[int64]float64{"rank": {1: 1, 2: 2}},
	}

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		updated, err := w.AddColumn(ctx, c, sc, "g1", src, "*")
		if err != nil {
			return err
		}
		frag := updated.Fragment().(*fragment.Fragment)
		if frag.VertexData["person"][1]["rank"] != 1 {
			t.Errorf("add_column: oid 1 rank = %v, want 1", frag.VertexData["person"][1]["rank"])
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledPropertyAddColumnVertexMapMismatch(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	mismatched := fragment.NewVertexMap(1)
	mismatched.Bind(0, "person", 999, 999)
	src := &fakeColumnSource{
		ctxType: command.ContextVertexData,
		fnum:    1,
		vm:      mismatched,
		target:  "person",
		names:   []string{"rank"},
	}

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.AddColumn(ctx, c, sc, "g1", src, "*")
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.IllegalState))
}

func TestLabeledPropertyAddColumnUnknownTargetLabel(t *testing.T) {
	sc := store.NewMemClient()
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	src := &fakeColumnSource{
		ctxType: command.ContextVertexData,
		fnum:    1,
		vm:      f.VertexMap,
		target:  "unknown_label",
		names:   []string{"rank"},
	}

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.AddColumn(ctx, c, sc, "g1", src, "*")
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.IllegalState))
}

func TestLabeledPropertyToNdArrayConcatenatesAcrossWorkers(t *testing.T) {
	shards := [][]int64{{1, 2}, {3}}

	err := comm.RunCluster(context.Background(), 2, func(ctx context.Context, c comm.Communicator, rank int) error {
		f := buildLabeledFragment(rank, 2, shards[rank])
		w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

		archive, err := w.ToNdArray(ctx, c, "person", fragment.SelectorVertexID, fragment.VertexRange{})
		if err != nil {
			return err
		}
		if comm.IsRoot(c) {
			decoded, err := command.DecodeNdArray(archive)
			if err != nil {
				return err
			}
			if decoded.TotalCount != 3 {
				t.Errorf("total count = %d, want 3", decoded.TotalCount)
			}
		} else if archive != nil {
			t.Errorf("non-root rank %d: expected nil archive, got %d bytes", rank, len(archive))
		}
		return nil
	})
	require.NoError(t, err)
}

func TestProjectedToNdArrayUnsupportedSelector(t *testing.T) {
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewProjectedWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.ToNdArray(ctx, c, "person", fragment.SelectorVertexLabelID, fragment.VertexRange{})
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.UnsupportedOperation))
}

func TestLabeledPropertyToDataframe(t *testing.T) {
	f := buildLabeledFragment(0, 1, []int64{1, 2})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		archive, err := w.ToDataframe(ctx, c, "person",
			[]fragment.Selector{fragment.SelectorVertexID, fragment.SelectorVertexData},
			fragment.VertexRange{},
		)
		if err != nil {
			return err
		}
		decoded, err := command.DecodeDataframe(archive)
		if err != nil {
			return err
		}
		if len(decoded.Columns) != 2 {
			t.Errorf("columns = %d, want 2", len(decoded.Columns))
		}
		if decoded.TotalCount != 2 {
			t.Errorf("total count = %d, want 2", decoded.TotalCount)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLabeledPropertyRejectsDynamicOnlyOps(t *testing.T) {
	f := buildLabeledFragment(0, 1, []int64{1})
	w := fragment.NewLabeledPropertyWrapper(baseGraphDef("g0"), f)
	sc := store.NewMemClient()

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.ToDirected(ctx, c, sc, "g1")
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidOperation))
}

func TestDynamicPropertyCopyGraphClonesVertexMap(t *testing.T) {
	f := fragment.NewFragment(0, 2)
	f.VertexMap.Bind(0, "person", 1, 2)
	f.VertexMap.Bind(1, "person", 3, 4)
	f.AddInnerVertex("person", 10)
	w := fragment.NewDynamicPropertyWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProperty, VineyardID: command.NoVineyardID}, f)
	sc := store.NewMemClient()

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		copied, err := w.CopyGraph(ctx, c, sc, "g1", fragment.CopyIdentical)
		if err != nil {
			return err
		}
		frag := copied.Fragment().(*fragment.Fragment)
		if !frag.VertexMap.Equal(f.VertexMap) {
			t.Errorf("expected cloned vertex map to equal source")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDynamicPropertyToDirectedAndBack(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	w := fragment.NewDynamicPropertyWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProperty, Directed: false, VineyardID: command.NoVineyardID}, f)
	sc := store.NewMemClient()

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		directed, err := w.ToDirected(ctx, c, sc, "g1")
		if err != nil {
			return err
		}
		if !directed.GraphDef().Directed {
			t.Errorf("expected ToDirected result to be directed")
		}
		back, err := directed.ToUnDirected(ctx, c, sc, "g2")
		if err != nil {
			return err
		}
		if back.GraphDef().Directed {
			t.Errorf("expected ToUnDirected result to be undirected")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDynamicPropertyCreateGraphViewRejectsUnknownType(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	w := fragment.NewDynamicPropertyWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProperty}, f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.CreateGraphView(ctx, c, "v0", "nonsense")
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
}

func TestDynamicPropertyCreateGraphViewReversedFlipsEveryEdge(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	f.AddEdge("knows", 1, 2)
	f.AddEdge("knows", 2, 3)
	w := fragment.NewDynamicPropertyWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProperty}, f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		view, err := w.CreateGraphView(ctx, c, "v0", "reversed")
		if err != nil {
			return err
		}
		reversed := view.Fragment().(*fragment.Fragment)
		got := reversed.Edges["knows"]
		want := []fragment.Edge{{Src: 2, Dst: 1}, {Src: 3, Dst: 2}}
		if len(got) != len(want) {
			t.Fatalf("reversed edge count = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("edge %d = %+v, want %+v", i, got[i], want[i])
			}
		}
		orig := f.Edges["knows"]
		if orig[0] != (fragment.Edge{Src: 1, Dst: 2}) {
			t.Errorf("source fragment mutated by view creation: %+v", orig[0])
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDynamicPropertyCreateGraphViewSubgraphIsUnimplemented(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	w := fragment.NewDynamicPropertyWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProperty}, f)

	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.CreateGraphView(ctx, c, "v0", "subgraph")
		return err
	})
	require.Error(t, err)
	assert.True(t, grapeerr.Is(err, grapeerr.Unimplemented))
}

func TestDynamicProjectedRejectsProjectAndAddColumn(t *testing.T) {
	f := fragment.NewFragment(0, 1)
	w := fragment.NewDynamicProjectedWrapper(command.GraphDef{Key: "g0", GraphType: command.DynamicProjected}, f)
	sc := store.NewMemClient()

	err1 := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.Project(ctx, c, sc, "g1", nil, nil)
		return err
	})
	require.Error(t, err1)
	assert.True(t, grapeerr.Is(err1, grapeerr.InvalidOperation))

	err2 := comm.RunCluster(context.Background(), 1, func(ctx context.Context, c comm.Communicator, rank int) error {
		_, err := w.AddColumn(ctx, c, sc, "g1", &fakeColumnSource{}, "*")
		return err
	})
	require.Error(t, err2)
	assert.True(t, grapeerr.Is(err2, grapeerr.InvalidOperation))
}
