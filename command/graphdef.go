// Package command holds the wire-level types the dispatcher (package
// engine) accepts and returns: the command envelope, the GraphDef
// metadata record, and the Archive byte layout used to ship selected
// vertex data back to the coordinator.
package command

// GraphType enumerates the four fragment representations the engine
// understands. A Wrapper's declared variant always equals its
// GraphDef's GraphType (spec invariant).
type GraphType string

// Graph types.
const (
	ArrowProperty    GraphType = "ARROW_PROPERTY"
	ArrowProjected   GraphType = "ARROW_PROJECTED"
	DynamicProperty  GraphType = "DYNAMIC_PROPERTY"
	DynamicProjected GraphType = "DYNAMIC_PROJECTED"
)

// IsColumnar reports whether g is backed by the columnar (Arrow-like)
// representation rather than the mutable dynamic one.
func (g GraphType) IsColumnar() bool {
	return g == ArrowProperty || g == ArrowProjected
}

// IsLabeledProperty reports whether g carries a full label/property
// schema as opposed to being already projected down to a simple graph.
func (g GraphType) IsLabeledProperty() bool {
	return g == ArrowProperty || g == DynamicProperty
}

// ContextType enumerates the granularity of a query result.
type ContextType string

// Context types.
const (
	ContextTensor                ContextType = "TENSOR"
	ContextVertexData            ContextType = "VERTEX_DATA"
	ContextLabeledVertexData     ContextType = "LABELED_VERTEX_DATA"
	ContextVertexProperty        ContextType = "VERTEX_PROPERTY"
	ContextLabeledVertexProperty ContextType = "LABELED_VERTEX_PROPERTY"
)

// TypeSignature is the canonical string encoding of a fragment's
// OID/VID/VDATA/EDATA template-parameter tuple. It keys the
// graphutil.Registry's cached loaders/converters/projectors.
type TypeSignature string

// SchemaDef is the schema portion of a GraphDef.
type SchemaDef struct {
	OidType            string `json:"oid_type"`
	VidType            string `json:"vid_type"`
	VdataType          string `json:"vdata_type"`
	EdataType          string `json:"edata_type"`
	PropertySchemaJSON string `json:"property_schema_json"`
}

// GraphDef is the metadata record materialized for every graph
// artifact by load/project/convert/copy/add-column/view.
type GraphDef struct {
	Key         string    `json:"key"`
	GraphType   GraphType `json:"graph_type"`
	Directed    bool      `json:"directed"`
	VineyardID  int64     `json:"vineyard_id"`
	Schema      SchemaDef `json:"schema_def"`
	SchemaPath  string    `json:"schema_path,omitempty"`
	GenerateEID bool      `json:"generate_eid"`
}

// NoVineyardID is the sentinel VineyardID for graphs that were never
// materialized into the shared object store.
const NoVineyardID int64 = -1

// InStore reports whether the graph is backed by a shared-store
// fragment group.
func (g GraphDef) InStore() bool {
	return g.VineyardID != NoVineyardID
}
