package fragment

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

const dynamicPropertyVariant = "dynamic-property"

var dynamicPropertySelectors = map[Selector]bool{
	SelectorVertexID:   true,
	SelectorVertexData: true,
	SelectorResult:     true,
}

// DynamicPropertyWrapper is the mutable, heterogeneous-attribute
// variant; it is the only variant supporting ToDirected, ToUnDirected
// and CreateGraphView.
type DynamicPropertyWrapper struct {
	base
}

// NewDynamicPropertyWrapper wraps frag with def.
func NewDynamicPropertyWrapper(def command.GraphDef, frag *Fragment) *DynamicPropertyWrapper {
	return &DynamicPropertyWrapper{base{def: def, frag: frag}}
}

// CopyGraph clones the vertex map fnum-way in parallel, then clones
// the fragment payload — the dynamic-copy path of spec.md §4.3,
// distinct from the columnar path's object-store round trip.
func (w *DynamicPropertyWrapper) CopyGraph(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, copyType CopyType) (Wrapper, error) {
	cloned, err := cloneDynamic(w.frag, copyType)
	if err != nil {
		return nil, err
	}
	if err := cm.Barrier(ctx); err != nil {
		return nil, grapeerr.Wrap(grapeerr.CommError, err, "barrier after dynamic copy")
	}
	def := w.def
	def.Key = dstName
	return NewDynamicPropertyWrapper(def, cloned), nil
}

func (w *DynamicPropertyWrapper) Project(context.Context, comm.Communicator, store.Client, string, map[string][]string, map[string][]string) (Wrapper, error) {
	return nil, invalidOperation(dynamicPropertyVariant, "project")
}

func (w *DynamicPropertyWrapper) AddColumn(context.Context, comm.Communicator, store.Client, string, ColumnSource, string) (Wrapper, error) {
	return nil, invalidOperation(dynamicPropertyVariant, "add_column")
}

func (w *DynamicPropertyWrapper) ToNdArray(ctx context.Context, cm comm.Communicator, label string, sel Selector, vr VertexRange) ([]byte, error) {
	return doToNdArray(ctx, cm, &w.base, dynamicPropertyVariant, dynamicPropertySelectors, label, sel, vr)
}

func (w *DynamicPropertyWrapper) ToDataframe(ctx context.Context, cm comm.Communicator, label string, sels []Selector, vr VertexRange) ([]byte, error) {
	return doToDataframe(ctx, cm, &w.base, dynamicPropertyVariant, dynamicPropertySelectors, label, sels, vr)
}

func (w *DynamicPropertyWrapper) ToDirected(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string) (Wrapper, error) {
	cloned, err := cloneDynamic(w.frag, CopyIdentical)
	if err != nil {
		return nil, err
	}
	def := w.def
	def.Key = dstName
	def.Directed = true
	return NewDynamicPropertyWrapper(def, cloned), nil
}

func (w *DynamicPropertyWrapper) ToUnDirected(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string) (Wrapper, error) {
	cloned, err := cloneDynamic(w.frag, CopyIdentical)
	if err != nil {
		return nil, err
	}
	def := w.def
	def.Key = dstName
	def.Directed = false
	return NewDynamicPropertyWrapper(def, cloned), nil
}

// CreateGraphView constructs a read-only view handle. "reversed" swaps
// every edge's Src and Dst in place on the cloned payload; "subgraph"
// is not yet reachable (see Open Question decisions in DESIGN.md) and
// is rejected as Unimplemented rather than silently returned as an
// identical clone.
func (w *DynamicPropertyWrapper) CreateGraphView(ctx context.Context, cm comm.Communicator, viewID, viewType string) (Wrapper, error) {
	switch viewType {
	case "reversed":
	case "subgraph":
		return nil, grapeerr.New(grapeerr.Unimplemented, "create_graph_view: subgraph views require a filter spec not yet carried on this command")
	default:
		return nil, grapeerr.New(grapeerr.InvalidValue, "create_graph_view: unknown view type %q", viewType)
	}
	cloned, err := cloneDynamic(w.frag, CopyIdentical)
	if err != nil {
		return nil, err
	}
	for label, edges := range cloned.Edges {
		for i, e := range edges {
			cloned.Edges[label][i] = Edge{Src: e.Dst, Dst: e.Src}
		}
	}
	def := w.def
	def.Key = viewID
	return NewDynamicPropertyWrapper(def, cloned), nil
}

// cloneDynamic performs the dynamic CopyGraph/ToDirected/ToUnDirected
// shape: fnum-way vertex map clone via a scoped pool, then an
// in-memory clone of the fragment payload.
func cloneDynamic(frag *Fragment, copyType CopyType) (*Fragment, error) {
	cloned := frag.clone()
	err := cloneVertexMapFanout(frag.Fnum, func(fid int) {
		table := cloned.VertexMap.O2GTableID[fid]
		array := cloned.VertexMap.OidArrayID[fid]
		for label := range table {
			cloned.VertexMap.Bind(fid, label, table[label], array[label])
		}
	})
	if err != nil {
		return nil, err
	}
	if copyType == CopyReset {
		cloned.resetData()
	}
	return cloned, nil
}
