package fragment

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

const labeledPropertyVariant = "labeled-property"

var labeledPropertySelectors = map[Selector]bool{
	SelectorVertexID:      true,
	SelectorVertexData:    true,
	SelectorVertexLabelID: true,
}

// LabeledPropertyWrapper is the column-rich variant: every vertex/edge
// label carries its full property table, and it is the only variant
// that supports Project and AddColumn.
type LabeledPropertyWrapper struct {
	base
}

// NewLabeledPropertyWrapper wraps frag with def as given; it does not
// check def.GraphType against the wrapper variant.
func NewLabeledPropertyWrapper(def command.GraphDef, frag *Fragment) *LabeledPropertyWrapper {
	return &LabeledPropertyWrapper{base{def: def, frag: frag}}
}

func (w *LabeledPropertyWrapper) CopyGraph(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, copyType CopyType) (Wrapper, error) {
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
	return NewLabeledPropertyWrapper(def, cloned), nil
}

func (w *LabeledPropertyWrapper) Project(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, vertexProps, edgeProps map[string][]string) (Wrapper, error) {
	if len(vertexProps) == 0 {
		return nil, grapeerr.New(grapeerr.InvalidValue, "project: vertex_collections must select at least one vertex label")
	}
	out := NewFragment(w.frag.Fid, w.frag.Fnum)
	out.VertexMap = w.frag.VertexMap.clone()
	for label, props := range vertexProps {
		if _, ok := indexOf(w.frag.VertexLabels, label); !ok {
			return nil, grapeerr.New(grapeerr.InvalidValue, "project: unknown vertex label %q", label)
		}
		out.AddVertexLabel(label)
		for _, oid := range w.frag.InnerVertices[label] {
			out.AddInnerVertex(label, oid)
			for _, prop := range props {
				if v, ok := w.frag.VertexData[label][oid][prop]; ok {
					out.SetVertexValue(label, oid, prop, v)
				}
				if s, ok := w.frag.VertexStrings[label][oid][prop]; ok {
					out.SetVertexString(label, oid, prop, s)
				}
			}
		}
	}
	for label := range edgeProps {
		if _, ok := indexOf(w.frag.EdgeLabels, label); !ok {
			return nil, grapeerr.New(grapeerr.InvalidValue, "project: unknown edge label %q", label)
		}
		out.AddEdgeLabel(label)
	}

	groupID, err := persistFragmentGroup(ctx, cm, sc, dstName, marshalFragment(out))
	if err != nil {
		return nil, err
	}
	def := command.GraphDef{
		Key:         dstName,
		GraphType:   command.ArrowProjected,
		Directed:    w.def.Directed,
		VineyardID:  groupID,
		Schema:      w.def.Schema,
		GenerateEID: w.def.GenerateEID,
	}
	return NewProjectedWrapper(def, out), nil
}

// AddColumn appends src's columns as new vertex properties on
// targetLabel, enforcing the preconditions of spec.md §4.3: context
// type, fragment count, vertex-map identity, and label existence.
func (w *LabeledPropertyWrapper) AddColumn(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, src ColumnSource, selectors string) (Wrapper, error) {
	switch src.ContextType() {
	case command.ContextVertexData, command.ContextLabeledVertexData,
		command.ContextVertexProperty, command.ContextLabeledVertexProperty:
	default:
		return nil, grapeerr.New(grapeerr.IllegalState, "add_column: unsupported context type %s", src.ContextType())
	}
	if src.Fnum() != w.frag.Fnum {
		return nil, grapeerr.New(grapeerr.IllegalState, "add_column: fragment count mismatch: context has %d, graph has %d", src.Fnum(), w.frag.Fnum)
	}
	if !src.VertexMap().Equal(w.frag.VertexMap) {
		return nil, grapeerr.New(grapeerr.IllegalState, "add_column: vertex map identity mismatch")
	}
	targetLabel := src.TargetLabel()
	if _, ok := indexOf(w.frag.VertexLabels, targetLabel); !ok {
		return nil, grapeerr.New(grapeerr.IllegalState, "add_column: target label %q not in graph schema", targetLabel)
	}

	names, err := parseAddColumnSelectors(selectors, src.ColumnNames())
	if err != nil {
		return nil, err
	}

	out := w.frag.clone()
	for _, oid := range out.InnerVertices[targetLabel] {
		for _, name := range names {
			num, str, isString, ok := src.ColumnValue(name, oid)
			if !ok {
				continue
			}
			if isString {
				out.SetVertexString(targetLabel, oid, name, str)
			} else {
				out.SetVertexValue(targetLabel, oid, name, num)
			}
		}
	}

	groupID, err := persistFragmentGroup(ctx, cm, sc, dstName, marshalFragment(out))
	if err != nil {
		return nil, err
	}
	def := w.def
	def.Key = dstName
	def.VineyardID = groupID
	return NewLabeledPropertyWrapper(def, out), nil
}

func (w *LabeledPropertyWrapper) ToNdArray(ctx context.Context, cm comm.Communicator, label string, sel Selector, vr VertexRange) ([]byte, error) {
	return doToNdArray(ctx, cm, &w.base, labeledPropertyVariant, labeledPropertySelectors, label, sel, vr)
}

func (w *LabeledPropertyWrapper) ToDataframe(ctx context.Context, cm comm.Communicator, label string, sels []Selector, vr VertexRange) ([]byte, error) {
	return doToDataframe(ctx, cm, &w.base, labeledPropertyVariant, labeledPropertySelectors, label, sels, vr)
}

func (w *LabeledPropertyWrapper) ToDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(labeledPropertyVariant, "to_directed")
}

func (w *LabeledPropertyWrapper) ToUnDirected(context.Context, comm.Communicator, store.Client, string) (Wrapper, error) {
	return nil, invalidOperation(labeledPropertyVariant, "to_undirected")
}

func (w *LabeledPropertyWrapper) CreateGraphView(context.Context, comm.Communicator, string, string) (Wrapper, error) {
	return nil, invalidOperation(labeledPropertyVariant, "create_graph_view")
}

func indexOf(ss []string, s string) (int, bool) {
	for i, v := range ss {
		if v == s {
			return i, true
		}
	}
	return 0, false
}
