// Package engine implements the Grape Instance dispatcher (spec.md
// §4.7): one Instance runs per worker process, receiving commands in
// submission order and routing each to a handler that validates,
// computes locally, optionally persists to the shared store, fences
// with the other workers, and occasionally runs a worker-0-only
// cleanup step. Every handler that creates or changes shared state
// runs through the shared collective helper, except UNLOAD_GRAPH, which
// fences with its own barrier; the read-only handlers run without a
// fence. The dispatch switch is grounded on the teacher's
// graph/executor.go central step-dispatch loop.
package engine

import (
	"context"

	"trpc.group/trpc-go/grape-engine/appentry"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/config"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/gcontext"
	"trpc.group/trpc-go/grape-engine/graphutil"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/idgen"
	"trpc.group/trpc-go/grape-engine/log"
	"trpc.group/trpc-go/grape-engine/params"
	"trpc.group/trpc-go/grape-engine/registry"
	"trpc.group/trpc-go/grape-engine/store"
	"trpc.group/trpc-go/grape-engine/telemetry"
)

// graphArtifact adapts fragment.Wrapper to registry.Artifact.
type graphArtifact struct{ fragment.Wrapper }

func (graphArtifact) ArtifactKind() string { return "fragment.Wrapper" }

// appArtifact adapts *appentry.Entry to registry.Artifact.
type appArtifact struct{ *appentry.Entry }

func (appArtifact) ArtifactKind() string { return "appentry.Entry" }

// ctxArtifact adapts gcontext.Context to registry.Artifact.
type ctxArtifact struct{ gcontext.Context }

func (ctxArtifact) ArtifactKind() string { return "gcontext.Context" }

// Instance is the per-worker dispatcher: cmd/grapeworker's main
// constructs one per rank through NewInstance. OnReceive takes no lock
// of its own, so a caller hands an Instance one command at a time.
type Instance struct {
	Comm      comm.Communicator
	Store     store.Client
	Registry  *registry.Registry
	IDs       *idgen.Generator
	GraphUtil *graphutil.Registry
	Log       log.Logger
	Tracer    *telemetry.Tracer
	Config    config.Config
}

// NewInstance builds an Instance for one worker. cfg is reported
// verbatim by GET_ENGINE_CONFIG.
func NewInstance(cm comm.Communicator, sc store.Client, lg log.Logger, tr *telemetry.Tracer, cfg config.Config) *Instance {
	return &Instance{
		Comm:      cm,
		Store:     sc,
		Registry:  registry.New(),
		IDs:       idgen.New(cm.Rank()),
		GraphUtil: graphutil.NewRegistry(),
		Log:       lg,
		Tracer:    tr,
		Config:    cfg,
	}
}

// OnReceive dispatches cmd by its Kind, implementing the command table
// of SPEC_FULL.md §6:
//
//	CREATE_GRAPH, CREATE_APP, RUN_APP, UNLOAD_APP, UNLOAD_GRAPH,
//	REPORT_GRAPH, PROJECT_GRAPH, PROJECT_TO_SIMPLE, MODIFY_VERTICES,
//	MODIFY_EDGES, TRANSFORM_GRAPH, COPY_GRAPH, TO_DIRECTED,
//	TO_UNDIRECTED, INDUCE_SUBGRAPH, CLEAR_GRAPH, CLEAR_EDGES,
//	VIEW_GRAPH, ADD_LABELS, CONTEXT_TO_NUMPY, CONTEXT_TO_DATAFRAME,
//	TO_VINEYARD_TENSOR, TO_VINEYARD_DATAFRAME, ADD_COLUMN,
//	GRAPH_TO_NUMPY, GRAPH_TO_DATAFRAME, REGISTER_GRAPH_TYPE,
//	GET_ENGINE_CONFIG.
//
// An unrecognized Kind is reported as grapeerr.Unimplemented rather
// than a panic.
func (in *Instance) OnReceive(ctx context.Context, cmd command.Command) (command.Result, error) {
	ctx, done := in.Tracer.StartCommand(ctx, string(cmd.Kind))
	p := params.New(cmd.Attrs)
	res, err := in.dispatch(ctx, cmd, p)
	done(err)
	return res, err
}

func (in *Instance) dispatch(ctx context.Context, cmd command.Command, p *params.Accessor) (command.Result, error) {
	switch cmd.Kind {
	case command.CreateGraph:
		return in.handleCreateGraph(ctx, p)
	case command.CreateApp:
		return in.handleCreateApp(ctx, p)
	case command.RunApp:
		return in.handleRunApp(ctx, cmd, p)
	case command.UnloadApp:
		return in.handleUnloadApp(ctx, p)
	case command.UnloadGraph:
		return in.handleUnloadGraph(ctx, p)
	case command.ReportGraph:
		return in.handleReportGraph(p)
	case command.ProjectGraph:
		return in.handleProjectGraph(ctx, p)
	case command.ProjectToSimple:
		return in.handleProjectToSimple(ctx, p)
	case command.ModifyVertices:
		return in.handleModifyVertices(ctx, p)
	case command.ModifyEdges:
		return in.handleModifyEdges(ctx, p)
	case command.TransformGraph:
		return in.handleTransformGraph(ctx, p)
	case command.CopyGraph:
		return in.handleCopyGraph(ctx, p)
	case command.ToDirected:
		return in.handleToDirected(ctx, p)
	case command.ToUndirected:
		return in.handleToUndirected(ctx, p)
	case command.InduceSubgraph:
		return in.handleInduceSubgraph(ctx, p)
	case command.ClearGraph:
		return in.handleClearGraph(ctx, p)
	case command.ClearEdges:
		return in.handleClearEdges(ctx, p)
	case command.ViewGraph:
		return in.handleViewGraph(ctx, p)
	case command.AddLabels:
		return in.handleAddLabels(ctx, p)
	case command.ContextToNumpy:
		return in.handleContextToNumpy(ctx, p)
	case command.ContextToDataframe:
		return in.handleContextToDataframe(ctx, p)
	case command.ToVineyardTensor:
		return in.handleToVineyardTensor(ctx, p)
	case command.ToVineyardDataframe:
		return in.handleToVineyardDataframe(ctx, p)
	case command.AddColumn:
		return in.handleAddColumn(ctx, p)
	case command.GraphToNumpy:
		return in.handleGraphToNumpy(ctx, p)
	case command.GraphToDataframe:
		return in.handleGraphToDataframe(ctx, p)
	case command.RegisterGraphType:
		return in.handleRegisterGraphType(ctx, p)
	case command.GetEngineConfig:
		return in.handleGetEngineConfig(p)
	default:
		return command.Result{}, grapeerr.New(grapeerr.Unimplemented, "unrecognized command kind %q", cmd.Kind)
	}
}

// collective runs fn once on every worker, then fences via Allgather so
// every worker's outcome (success or failure) is known to every other
// worker before OnReceive returns anywhere — spec.md §4.7's
// "validate → compute → store → fence" discipline, implemented once so
// no handler can skip the fence, and spec.md §4.9/§8 scenario 6's
// "both workers report StoreError; no partial registry state remains":
// fn runs and this Allgather is reached on every worker regardless of
// whether fn failed locally, so a worker that fails can never leave a
// peer that succeeded locally blocked waiting on a collective call it
// will never make. If any worker failed, every id this command
// Put/Removed on this worker's Registry since entering collective is
// rolled back, and every worker returns the same failure: its own
// error if it is the one that failed locally, grapeerr.StoreError
// otherwise. A handler that needs a different fence shape (UNLOAD_GRAPH's
// two-phase delete) builds its own instead of calling collective.
func (in *Instance) collective(ctx context.Context, fn func() (command.Result, error)) (command.Result, error) {
	before := in.Registry.Snapshot()
	res, localErr := fn()

	status := []byte{0}
	if localErr != nil {
		status[0] = 1
	}
	shards, gerr := in.Comm.Allgather(ctx, status)
	if gerr != nil {
		return command.Result{}, grapeerr.Wrap(grapeerr.CommError, gerr, "collective fence")
	}

	failed := localErr != nil
	for _, s := range shards {
		if len(s) > 0 && s[0] == 1 {
			failed = true
		}
	}
	if failed {
		in.Registry.RestoreFrom(before)
		if localErr != nil {
			return command.Result{}, localErr
		}
		return command.Result{}, grapeerr.New(grapeerr.StoreError, "collective command aborted: a peer worker failed")
	}
	return res, nil
}

// graph resolves graphName to its fragment.Wrapper artifact.
func (in *Instance) graph(graphName string) (fragment.Wrapper, error) {
	art, err := registry.Get[graphArtifact](in.Registry, graphName)
	if err != nil {
		return nil, err
	}
	return art.Wrapper, nil
}

// rawFragment extracts w's concrete *fragment.Fragment payload, used by
// handlers (MODIFY_VERTICES, CLEAR_GRAPH, ...) that mutate fragment
// state directly rather than through a Wrapper method.
func rawFragment(w fragment.Wrapper, op string) (*fragment.Fragment, error) {
	frag, ok := w.Fragment().(*fragment.Fragment)
	if !ok {
		return nil, grapeerr.New(grapeerr.IllegalState, "%s: graph has no fragment payload", op)
	}
	return frag, nil
}

// context resolves ctxName to its gcontext.Context artifact.
func (in *Instance) context(ctxName string) (gcontext.Context, error) {
	art, err := registry.Get[ctxArtifact](in.Registry, ctxName)
	if err != nil {
		return nil, err
	}
	return art.Context, nil
}

// publishGraph registers w under its own GraphDef.Key, failing with
// DuplicateId if that key is already in use.
func (in *Instance) publishGraph(w fragment.Wrapper) error {
	return in.Registry.Put(w.GraphDef().Key, graphArtifact{w})
}

// utility resolves the Utility registered for sig, failing with
// NotFound if REGISTER_GRAPH_TYPE has not been issued for it yet.
func (in *Instance) utility(sig command.TypeSignature) (graphutil.Utility, error) {
	u, ok := in.GraphUtil.Utility(sig)
	if !ok {
		return nil, grapeerr.New(grapeerr.NotFound, "graph type signature %q not registered", sig)
	}
	return u, nil
}
