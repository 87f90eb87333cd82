package gcontext

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// LabeledVertexDataContext is the labeled variant of VertexDataContext:
// one numeric result per inner vertex, partitioned by vertex label.
// Every Context method's selector must carry the `#<label_id>:` prefix
// naming which label's values to read.
type LabeledVertexDataContext struct {
	wrapper fragment.Wrapper
	values  map[string]map[int64]float64 // label -> oid -> value
}

// NewLabeledVertexDataContext builds a LabeledVertexDataContext.
func NewLabeledVertexDataContext(wrapper fragment.Wrapper, values map[string]map[int64]float64) *LabeledVertexDataContext {
	return &LabeledVertexDataContext{wrapper: wrapper, values: values}
}

func (c *LabeledVertexDataContext) ContextType() command.ContextType {
	return command.ContextLabeledVertexData
}
func (c *LabeledVertexDataContext) FragmentWrapper() fragment.Wrapper { return c.wrapper }

func (c *LabeledVertexDataContext) labelFor(sel Selector) (string, error) {
	if !sel.HasLabel {
		return "", grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-data context requires a '#<label_id>:' selector prefix")
	}
	frag := fragmentOf(c.wrapper)
	if sel.LabelID < 0 || int(sel.LabelID) >= len(frag.VertexLabels) {
		return "", grapeerr.New(grapeerr.InvalidValue, "unknown label id %d", sel.LabelID)
	}
	return frag.VertexLabels[sel.LabelID], nil
}

// Narrow resolves sel's label prefix to a fragment.ColumnSource scoped
// to just that label, the form AddColumn (and the single-label Context
// methods, internally) consume.
func (c *LabeledVertexDataContext) Narrow(sel Selector) (fragment.ColumnSource, error) {
	label, err := c.labelFor(sel)
	if err != nil {
		return nil, err
	}
	return &labeledDataView{wrapper: c.wrapper, label: label, values: c.values[label]}, nil
}

// labeledDataView is a single-label read of a LabeledVertexDataContext,
// reporting the original labeled ContextType so AddColumn's validation
// still sees where the data truly came from.
type labeledDataView struct {
	wrapper fragment.Wrapper
	label   string
	values  map[int64]float64
}

func (v *labeledDataView) ContextType() command.ContextType  { return command.ContextLabeledVertexData }
func (v *labeledDataView) Fnum() int                          { return fragmentOf(v.wrapper).Fnum }
func (v *labeledDataView) VertexMap() fragment.VertexMap      { return fragmentOf(v.wrapper).VertexMap }
func (v *labeledDataView) TargetLabel() string                { return v.label }
func (v *labeledDataView) ColumnNames() []string              { return []string{resultColumn} }

func (v *labeledDataView) ColumnValue(name string, oid int64) (num float64, str string, isString bool, ok bool) {
	if name != resultColumn {
		return 0, "", false, false
	}
	val, present := v.values[oid]
	return val, "", false, present
}

func (c *LabeledVertexDataContext) oidsFor(label string, vr fragment.VertexRange) []int64 {
	values := c.values[label]
	oids := make([]int64, 0, len(values))
	for oid := range values {
		oids = append(oids, oid)
	}
	return applyRange(vr, sortedOids(oids))
}

func (c *LabeledVertexDataContext) resolve(label string) columnResolver {
	return func(oid int64, sel Selector) (float64, error) {
		switch sel.Kind {
		case KindVertexID:
			return float64(oid), nil
		case KindVertexLabelID:
			id, ok := fragmentOf(c.wrapper).LabelID(label)
			if !ok {
				return 0, grapeerr.New(grapeerr.InvalidValue, "unknown label %q", label)
			}
			return float64(id), nil
		case KindResult:
			v, ok := c.values[label][oid]
			if !ok {
				return 0, grapeerr.New(grapeerr.InvalidValue, "no result for oid %d", oid)
			}
			return v, nil
		default:
			return 0, grapeerr.New(grapeerr.UnsupportedOperation, "labeled-vertex-data context does not support selector kind %d", sel.Kind)
		}
	}
}

func (c *LabeledVertexDataContext) ToNdArray(ctx context.Context, cm comm.Communicator, selector string, vr fragment.VertexRange) ([]byte, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	label, err := c.labelFor(sel)
	if err != nil {
		return nil, err
	}
	return ndArrayFromResolver(ctx, cm, c.oidsFor(label, vr), sel, c.resolve(label))
}

func (c *LabeledVertexDataContext) ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, vr fragment.VertexRange) ([]byte, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 || !sels[0].Selector.HasLabel {
		return nil, grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-data context requires a '#<label_id>:' selector prefix")
	}
	label, err := c.labelFor(sels[0].Selector)
	if err != nil {
		return nil, err
	}
	return dataframeFromResolver(ctx, cm, c.oidsFor(label, vr), sels, c.resolve(label))
}

func (c *LabeledVertexDataContext) ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToNdArray(ctx, cm, selector, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *LabeledVertexDataContext) ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToDataframe(ctx, cm, selectors, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *LabeledVertexDataContext) ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 || !sels[0].Selector.HasLabel {
		return nil, grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-data context requires a '#<label_id>:' selector prefix")
	}
	label, err := c.labelFor(sels[0].Selector)
	if err != nil {
		return nil, err
	}
	return arrowArraysFromResolver(ctx, cm, c.oidsFor(label, fragment.VertexRange{}), sels, c.resolve(label))
}
