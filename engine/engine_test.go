package engine_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/config"
	"trpc.group/trpc-go/grape-engine/engine"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/log"
	"trpc.group/trpc-go/grape-engine/store"
	"trpc.group/trpc-go/grape-engine/telemetry"
)

// dummyArtifact satisfies registry.Artifact without depending on any
// engine-internal artifact type, so a test can pre-seed one worker's
// registry under an id a command is about to mint.
type dummyArtifact struct{}

func (dummyArtifact) ArtifactKind() string { return "dummy" }

func attrs(t *testing.T, m map[string]any) map[string]*structpb.Value {
	t.Helper()
	out := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		pv, err := structpb.NewValue(v)
		require.NoError(t, err)
		out[k] = pv
	}
	return out
}

func newInstance(cm comm.Communicator, sc store.Client) *engine.Instance {
	return engine.NewInstance(cm, sc, log.Default, telemetry.NewTracer(), config.Default())
}

func send(t *testing.T, in *engine.Instance, kind command.Kind, a map[string]any) (command.Result, error) {
	t.Helper()
	return in.OnReceive(context.Background(), command.Command{Kind: kind, Attrs: attrs(t, a)})
}

func createDynamicGraph(t *testing.T, in *engine.Instance, directed bool) string {
	t.Helper()
	res, err := send(t, in, command.CreateGraph, map[string]any{
		"graph_type": "DYNAMIC_PROPERTY",
		"directed":   directed,
	})
	require.NoError(t, err)
	require.NotNil(t, res.GraphDef)
	return res.GraphDef.Key
}

type reportGraphPayload struct {
	VertexCount int  `json:"vertex_count"`
	EdgeCount   int  `json:"edge_count"`
	Directed    bool `json:"directed"`
}

func reportGraph(t *testing.T, in *engine.Instance, name string) reportGraphPayload {
	t.Helper()
	res, err := send(t, in, command.ReportGraph, map[string]any{"graph_name": name})
	require.NoError(t, err)
	var payload reportGraphPayload
	require.NoError(t, json.Unmarshal([]byte(res.Data), &payload))
	return payload
}

func TestCreateGraphDynamicPropertyPublishesGraphDef(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		res, err := send(t, in, command.CreateGraph, map[string]any{
			"graph_type": "DYNAMIC_PROPERTY",
			"directed":   true,
		})
		require.NoError(t, err)
		require.NotNil(t, res.GraphDef)
		assert.NotEmpty(t, res.GraphDef.Key)
		assert.Equal(t, command.DynamicProperty, res.GraphDef.GraphType)
		assert.True(t, res.GraphDef.Directed)
		assert.Equal(t, command.NoVineyardID, res.GraphDef.VineyardID)
		return nil
	})
	require.NoError(t, err)
}

func TestModifyVerticesAddAndDeleteUpdateVertexCount(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, false)

		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1", "person,2,age=30"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, reportGraph(t, in, name).VertexCount)

		_, err = send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyDelete,
			"nodes":       []any{"person,1"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, reportGraph(t, in, name).VertexCount)
		return nil
	})
	require.NoError(t, err)
}

func TestModifyEdgesAddAndDeleteUpdateEdgeCount(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, true)

		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1", "person,2"},
		})
		require.NoError(t, err)

		_, err = send(t, in, command.ModifyEdges, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"edges":       []any{"knows,1,2"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, reportGraph(t, in, name).EdgeCount)

		_, err = send(t, in, command.ModifyEdges, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyDelete,
			"edges":       []any{"knows,1,2"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, reportGraph(t, in, name).EdgeCount)
		return nil
	})
	require.NoError(t, err)
}

func TestCopyGraphIdenticalPreservesVertices(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, false)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1"},
		})
		require.NoError(t, err)

		res, err := send(t, in, command.CopyGraph, map[string]any{
			"graph_name": name,
			"copy_type":  "identical",
		})
		require.NoError(t, err)
		require.NotNil(t, res.GraphDef)
		assert.NotEqual(t, name, res.GraphDef.Key)
		assert.Equal(t, 1, reportGraph(t, in, res.GraphDef.Key).VertexCount)
		return nil
	})
	require.NoError(t, err)
}

func TestClearGraphEmptiesVerticesAndEdges(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, true)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1", "person,2"},
		})
		require.NoError(t, err)
		_, err = send(t, in, command.ModifyEdges, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"edges":       []any{"knows,1,2"},
		})
		require.NoError(t, err)

		_, err = send(t, in, command.ClearGraph, map[string]any{"graph_name": name})
		require.NoError(t, err)
		report := reportGraph(t, in, name)
		assert.Equal(t, 0, report.VertexCount)
		assert.Equal(t, 0, report.EdgeCount)
		return nil
	})
	require.NoError(t, err)
}

func TestClearEdgesKeepsVerticesDropsEdges(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, true)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1", "person,2"},
		})
		require.NoError(t, err)
		_, err = send(t, in, command.ModifyEdges, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"edges":       []any{"knows,1,2"},
		})
		require.NoError(t, err)

		_, err = send(t, in, command.ClearEdges, map[string]any{"graph_name": name})
		require.NoError(t, err)
		report := reportGraph(t, in, name)
		assert.Equal(t, 2, report.VertexCount)
		assert.Equal(t, 0, report.EdgeCount)
		return nil
	})
	require.NoError(t, err)
}

func TestInduceSubgraphKeepsOnlyListedNodesAndTheirEdges(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, true)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,1", "person,2", "person,3"},
		})
		require.NoError(t, err)
		_, err = send(t, in, command.ModifyEdges, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"edges":       []any{"knows,1,2", "knows,2,3"},
		})
		require.NoError(t, err)

		res, err := send(t, in, command.InduceSubgraph, map[string]any{
			"graph_name": name,
			"nodes":      []any{"1", "2"},
		})
		require.NoError(t, err)
		require.NotNil(t, res.GraphDef)
		report := reportGraph(t, in, res.GraphDef.Key)
		assert.Equal(t, 2, report.VertexCount)
		assert.Equal(t, 1, report.EdgeCount)
		return nil
	})
	require.NoError(t, err)
}

func TestUnloadGraphRemovesItFromRegistry(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, false)

		_, err := send(t, in, command.UnloadGraph, map[string]any{"graph_name": name})
		require.NoError(t, err)

		_, err = send(t, in, command.ReportGraph, map[string]any{"graph_name": name})
		assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestReportGraphOnUnknownGraphIsNotFound(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		_, err := send(t, in, command.ReportGraph, map[string]any{"graph_name": "does-not-exist"})
		assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
		return nil
	})
	require.NoError(t, err)
}

func TestDispatchUnrecognizedKindIsUnimplemented(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		_, err := in.OnReceive(ctx, command.Command{Kind: command.Kind("NOT_A_REAL_COMMAND")})
		assert.True(t, grapeerr.Is(err, grapeerr.Unimplemented))
		return nil
	})
	require.NoError(t, err)
}

func TestGraphToNumpySelectorIDEncodesSortedOids(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, false)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": engine.ModifyAdd,
			"nodes":       []any{"person,2", "person,1"},
		})
		require.NoError(t, err)

		res, err := send(t, in, command.GraphToNumpy, map[string]any{
			"graph_name": name,
			"label":      "person",
			"selector":   "id",
		})
		require.NoError(t, err)
		decoded, err := command.DecodeNdArray(res.Archive)
		require.NoError(t, err)
		assert.Equal(t, command.TypeFloat64, decoded.Type)
		assert.EqualValues(t, 2, decoded.TotalCount)
		require.Len(t, decoded.Payload, 16)
		assert.Equal(t, 1.0, math.Float64frombits(binary.LittleEndian.Uint64(decoded.Payload[0:8])))
		assert.Equal(t, 2.0, math.Float64frombits(binary.LittleEndian.Uint64(decoded.Payload[8:16])))
		return nil
	})
	require.NoError(t, err)
}

func TestGetEngineConfigReportsRunningConfig(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		res, err := send(t, in, command.GetEngineConfig, map[string]any{})
		require.NoError(t, err)
		var cfg config.Config
		require.NoError(t, json.Unmarshal([]byte(res.Data), &cfg))
		assert.Equal(t, config.Default().RPCEndpoint, cfg.RPCEndpoint)
		return nil
	})
	require.NoError(t, err)
}

// TestCollectiveFailureOnOneWorkerPropagatesToPeerWithoutDeadlock covers
// spec.md's scenario 6 (two workers execute CREATE_GRAPH, one worker's
// local step fails): rank 1's Registry already holds the id CREATE_GRAPH
// is about to mint (standing in for "worker 1's schema path is
// unreadable" -- any local, worker-specific failure has the same
// observable shape), so rank 1's publish fails with DuplicateId while
// rank 0's succeeds locally. Both OnReceive calls must still return
// (not deadlock in Barrier/Allgather), both must report failure, and
// rank 0's locally-successful publish must be rolled back.
func TestCollectiveFailureOnOneWorkerPropagatesToPeerWithoutDeadlock(t *testing.T) {
	comms := comm.NewLocalCluster(2)
	sc := store.NewMemClient()
	instances := make([]*engine.Instance, 2)
	for _, cm := range comms {
		instances[cm.Rank()] = newInstance(cm, sc)
	}

	require.NoError(t, instances[1].Registry.Put("g-1", dummyArtifact{}))

	results := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, in := range instances {
		i, in := i, in
		go func() {
			defer wg.Done()
			_, err := send(t, in, command.CreateGraph, map[string]any{
				"graph_type": "DYNAMIC_PROPERTY",
				"directed":   false,
			})
			results[i] = err
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("collective call deadlocked: one worker's local failure left its peer blocked in the fence")
	}

	require.Error(t, results[0])
	assert.True(t, grapeerr.Is(results[0], grapeerr.StoreError))
	require.Error(t, results[1])
	assert.True(t, grapeerr.Is(results[1], grapeerr.DuplicateId))

	_, err := send(t, instances[0], command.ReportGraph, map[string]any{"graph_name": "g-1"})
	assert.True(t, grapeerr.Is(err, grapeerr.NotFound))
}

func TestModifyVerticesUnknownModifyTypeIsInvalidValue(t *testing.T) {
	err := comm.RunCluster(context.Background(), 1, func(ctx context.Context, cm comm.Communicator, rank int) error {
		in := newInstance(cm, store.NewMemClient())
		name := createDynamicGraph(t, in, false)
		_, err := send(t, in, command.ModifyVertices, map[string]any{
			"graph_name":  name,
			"modify_type": "RENAME",
			"nodes":       []any{"person,1"},
		})
		assert.True(t, grapeerr.Is(err, grapeerr.InvalidValue))
		return nil
	})
	require.NoError(t, err)
}
