package command

import "google.golang.org/protobuf/types/known/structpb"

// Kind is the tag of a command the dispatcher accepts. The full table
// (required/optional attributes, produced value) is documented on the
// engine.Instance.OnReceive doc comment and in SPEC_FULL.md §6.
type Kind string

// Command kinds.
const (
	CreateGraph         Kind = "CREATE_GRAPH"
	CreateApp           Kind = "CREATE_APP"
	RunApp              Kind = "RUN_APP"
	UnloadApp           Kind = "UNLOAD_APP"
	UnloadGraph         Kind = "UNLOAD_GRAPH"
	ReportGraph         Kind = "REPORT_GRAPH"
	ProjectGraph        Kind = "PROJECT_GRAPH"
	ProjectToSimple     Kind = "PROJECT_TO_SIMPLE"
	ModifyVertices      Kind = "MODIFY_VERTICES"
	ModifyEdges         Kind = "MODIFY_EDGES"
	TransformGraph      Kind = "TRANSFORM_GRAPH"
	CopyGraph           Kind = "COPY_GRAPH"
	ToDirected          Kind = "TO_DIRECTED"
	ToUndirected        Kind = "TO_UNDIRECTED"
	InduceSubgraph      Kind = "INDUCE_SUBGRAPH"
	ClearGraph          Kind = "CLEAR_GRAPH"
	ClearEdges          Kind = "CLEAR_EDGES"
	ViewGraph           Kind = "VIEW_GRAPH"
	AddLabels           Kind = "ADD_LABELS"
	ContextToNumpy      Kind = "CONTEXT_TO_NUMPY"
	ContextToDataframe  Kind = "CONTEXT_TO_DATAFRAME"
	ToVineyardTensor    Kind = "TO_VINEYARD_TENSOR"
	ToVineyardDataframe Kind = "TO_VINEYARD_DATAFRAME"
	AddColumn           Kind = "ADD_COLUMN"
	GraphToNumpy        Kind = "GRAPH_TO_NUMPY"
	GraphToDataframe    Kind = "GRAPH_TO_DATAFRAME"
	RegisterGraphType   Kind = "REGISTER_GRAPH_TYPE"
	GetEngineConfig     Kind = "GET_ENGINE_CONFIG"
)

// Command is the tagged record a worker receives from the coordinator.
// Attrs is a string-keyed union of primitive types, enumerations,
// string lists and nested proto lists/structs, encoded with
// structpb.Value so the shape matches the wire envelope exactly.
type Command struct {
	Kind  Kind
	Attrs map[string]*structpb.Value
	// QueryArgs carries algorithm-specific binary parameters for
	// RUN_APP; opaque to the dispatcher, interpreted by the loaded
	// algorithm entry.
	QueryArgs []byte
}

// AggregationPolicy tells the coordinator how to reduce W workers'
// per-worker Results into one.
type AggregationPolicy string

// Aggregation policies.
const (
	// PickFirst keeps only worker 0's payload.
	PickFirst AggregationPolicy = "PICK_FIRST"
	// PickFirstNonEmpty keeps the first non-empty shard in worker
	// order.
	PickFirstNonEmpty AggregationPolicy = "PICK_FIRST_NON_EMPTY"
	// Concatenate concatenates all workers' payloads in ascending
	// worker-id order.
	Concatenate AggregationPolicy = "CONCATENATE"
)

// Result is what a successful OnReceive call returns. Exactly one of
// GraphDef, Data or Archive is meaningful, depending on the command
// kind; Policy tells the coordinator how to reduce per-worker results.
type Result struct {
	GraphDef *GraphDef
	Data     string
	Archive  []byte
	Policy   AggregationPolicy
}

// GraphDefResult wraps a GraphDef result with the given policy
// (PickFirst: every worker computes the identical metadata).
func GraphDefResult(def GraphDef) Result {
	return Result{GraphDef: &def, Policy: PickFirst}
}

// DataResult wraps a string (id or JSON) result.
func DataResult(data string, policy AggregationPolicy) Result {
	return Result{Data: data, Policy: policy}
}

// ArchiveResult wraps a serialized binary archive, produced at worker
// 0 and concatenated from every worker's shard.
func ArchiveResult(archive []byte) Result {
	return Result{Archive: archive, Policy: PickFirstNonEmpty}
}

// EmptyResult is returned by commands that produce no payload (e.g.
// UNLOAD_GRAPH, CLEAR_EDGES).
func EmptyResult() Result {
	return Result{Policy: PickFirst}
}
