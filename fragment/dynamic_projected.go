package fragment

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/store"
)

const dynamicProjectedVariant = "dynamic-projected"

var dynamicProjectedSelectors = map[Selector]bool{
	SelectorVertexID:   true,
	SelectorVertexData: true,
	SelectorResult:     true,
}

// DynamicProjectedWrapper is the column-poor dynamic variant: mutable
// like DynamicPropertyWrapper but restricted to a simple graph shape
// like ProjectedWrapper. It supports neither Project/AddColumn (those
// are labeled-property only) nor ToDirected/ToUnDirected/
// CreateGraphView (those are dynamic-property only).
type DynamicProjectedWrapper struct {
	base
}

// NewDynamicProjectedWrapper wraps frag with def.
func NewDynamicProjectedWrapper(def command.GraphDef, frag *Fragment) *DynamicProjectedWrapper {
	return &DynamicProjectedWrapper{base{def: def, frag: frag}}
}

func (w *DynamicProjectedWrapper) CopyGraph(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, copyType CopyType) (Wrapper, error) {
	cloned, err := cloneDynamic(w.frag, copyType)
	if err != nil {
		return nil, err
	}
	if err := cm.Barrier(ctx); err != nil {
		return nil, err
	}
	def := w.def
	def.Key = dstName
	return NewDynamicProjectedWrapper(def, cloned), nil
}

func (w *DynamicProjectedWrapper) Project(context.Context, comm.Communicator, store.Client, string, map[string][]string, map[string][]string) (Wrapper, error) {
	return nil, invalidOperation(dynamicProjectedVariant, "project")
}

func (w *DynamicProjectedWrapper) AddColumn(context.Context, comm.Communicator, store.Client, string, ColumnSource, string) (Wrapper, error) {
	return nil, invalidOperation(dynamicProjectedVariant, "add_column")
}

func (w *DynamicProjectedWrapper) ToNdArray(ctx context.Context, cm comm.Communicator, label string, sel Selector, vr VertexRange) ([]byte, error) {
	return doToNdArray(ctx, cm, &w.base, dynamicProjectedVariant, dynamicProjectedSelectors, label, sel, vr)
}

func (w *DynamicProjectedWrapper) ToDataframe(ctx context.Context, cm comm.Communicator, label string, sels []Selector, vr VertexRange) ([]byte, error) {
	return doToDataframe(ctx, cm, &w.base, dynamicProjectedVariant, dynamicProjectedSelectors, label, sels, vr)
}

func (w *DynamicProjectedWrapper) ToDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(dynamicProjectedVariant, "to_directed")
}

func (w *DynamicProjectedWrapper) ToUnDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(dynamicProjectedVariant, "to_undirected")
}

func (w *DynamicProjectedWrapper) CreateGraphView(context.Context, comm.Communicator, string, string) (Wrapper, error) {
	return nil, invalidOperation(dynamicProjectedVariant, "create_graph_view")
}
