package fragment

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/store"
)

const projectedVariant = "projected"

var projectedSelectors = map[Selector]bool{
	SelectorVertexID:   true,
	SelectorVertexData: true,
	SelectorResult:     true,
}

// ProjectedWrapper is the column-poor, algorithm-facing variant
// produced by LabeledPropertyWrapper.Project.
type ProjectedWrapper struct {
	base
}

// NewProjectedWrapper wraps frag with def.
func NewProjectedWrapper(def command.GraphDef, frag *Fragment) *ProjectedWrapper {
	return &ProjectedWrapper{base{def: def, frag: frag}}
}

func (w *ProjectedWrapper) CopyGraph(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, copyType CopyType) (Wrapper, error) {
	cloned := w.frag.clone()
	if copyType == CopyReset {
		cloned.resetData()
	}
	groupID, err := persistFragmentGroup(ctx, cm, sc, dstName, marshalFragment(cloned))
	if err != nil {
		return nil, err
	}
	def := w.def
	def.Key = dstName
	def.VineyardID = groupID
	return NewProjectedWrapper(def, cloned), nil
}

func (w *ProjectedWrapper) Project(context.Context, comm.Communicator, store.Client, string, map[string][]string, map[string][]string) (Wrapper, error) {
	return nil, invalidOperation(projectedVariant, "project")
}

func (w *ProjectedWrapper) AddColumn(context.Context, comm.Communicator, store.Client, string, ColumnSource, string) (Wrapper, error) {
	return nil, invalidOperation(projectedVariant, "add_column")
}

func (w *ProjectedWrapper) ToNdArray(ctx context.Context, cm comm.Communicator, label string, sel Selector, vr VertexRange) ([]byte, error) {
	return doToNdArray(ctx, cm, &w.base, projectedVariant, projectedSelectors, label, sel, vr)
}

func (w *ProjectedWrapper) ToDataframe(ctx context.Context, cm comm.Communicator, label string, sels []Selector, vr VertexRange) ([]byte, error) {
	return doToDataframe(ctx, cm, &w.base, projectedVariant, projectedSelectors, label, sels, vr)
}

func (w *ProjectedWrapper) ToDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(projectedVariant, "to_directed")
}

func (w *ProjectedWrapper) ToUnDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(projectedVariant, "to_undirected")
}

func (w *ProjectedWrapper) CreateGraphView(context.Context, comm.Communicator, string, string) (Wrapper, error) {
	return nil, invalidOperation(projectedVariant, "create_graph_view")
}
