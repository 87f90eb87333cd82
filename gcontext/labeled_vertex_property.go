package gcontext

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// LabeledVertexPropertyContext is the labeled variant of
// VertexPropertyContext: several named result fields per inner vertex,
// partitioned by vertex label.
type LabeledVertexPropertyContext struct {
	wrapper fragment.Wrapper
	columns map[string][]string // label -> ordered column names
	values  map[string]map[int64]map[string]Value
}

// NewLabeledVertexPropertyContext builds a LabeledVertexPropertyContext.
func NewLabeledVertexPropertyContext(wrapper fragment.Wrapper, columns map[string][]string, values map[string]map[int64]map[string]Value) *LabeledVertexPropertyContext {
	return &LabeledVertexPropertyContext{wrapper: wrapper, columns: columns, values: values}
}

func (c *LabeledVertexPropertyContext) ContextType() command.ContextType {
	return command.ContextLabeledVertexProperty
}
func (c *LabeledVertexPropertyContext) FragmentWrapper() fragment.Wrapper { return c.wrapper }

func (c *LabeledVertexPropertyContext) labelFor(sel Selector) (string, error) {
	if !sel.HasLabel {
		return "", grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-property context requires a '#<label_id>:' selector prefix")
	}
	frag := fragmentOf(c.wrapper)
	if sel.LabelID < 0 || int(sel.LabelID) >= len(frag.VertexLabels) {
		return "", grapeerr.New(grapeerr.InvalidValue, "unknown label id %d", sel.LabelID)
	}
	return frag.VertexLabels[sel.LabelID], nil
}

// Narrow resolves sel's label prefix to a fragment.ColumnSource scoped
// to just that label.
func (c *LabeledVertexPropertyContext) Narrow(sel Selector) (fragment.ColumnSource, error) {
	label, err := c.labelFor(sel)
	if err != nil {
		return nil, err
	}
	return &labeledPropertyView{wrapper: c.wrapper, label: label, columns: c.columns[label], values: c.values[label]}, nil
}

// labeledPropertyView is a single-label read of a
// LabeledVertexPropertyContext.
type labeledPropertyView struct {
	wrapper fragment.Wrapper
	label   string
	columns []string
	values  map[int64]map[string]Value
}

func (v *labeledPropertyView) ContextType() command.ContextType {
	return command.ContextLabeledVertexProperty
}
func (v *labeledPropertyView) Fnum() int                     { return fragmentOf(v.wrapper).Fnum }
func (v *labeledPropertyView) VertexMap() fragment.VertexMap { return fragmentOf(v.wrapper).VertexMap }
func (v *labeledPropertyView) TargetLabel() string           { return v.label }
func (v *labeledPropertyView) ColumnNames() []string         { return v.columns }

func (v *labeledPropertyView) ColumnValue(name string, oid int64) (num float64, str string, isString bool, ok bool) {
	val, present := v.values[oid][name]
	if !present {
		return 0, "", false, false
	}
	return val.Num, val.Str, val.IsString, true
}

func (c *LabeledVertexPropertyContext) oidsFor(label string, vr fragment.VertexRange) []int64 {
	values := c.values[label]
	oids := make([]int64, 0, len(values))
	for oid := range values {
		oids = append(oids, oid)
	}
	return applyRange(vr, sortedOids(oids))
}

func (c *LabeledVertexPropertyContext) resolve(label string) columnResolver {
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
		case KindResultField:
			v, ok := c.values[label][oid][sel.Field]
			if !ok {
				return 0, grapeerr.New(grapeerr.InvalidValue, "no field %q for oid %d", sel.Field, oid)
			}
			if v.IsString {
				return 0, grapeerr.New(grapeerr.DataType, "field %q for oid %d is a string, not numeric", sel.Field, oid)
			}
			return v.Num, nil
		default:
			return 0, grapeerr.New(grapeerr.UnsupportedOperation, "labeled-vertex-property context does not support selector kind %d", sel.Kind)
		}
	}
}

func (c *LabeledVertexPropertyContext) ToNdArray(ctx context.Context, cm comm.Communicator, selector string, vr fragment.VertexRange) ([]byte, error) {
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

func (c *LabeledVertexPropertyContext) ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, vr fragment.VertexRange) ([]byte, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 || !sels[0].Selector.HasLabel {
		return nil, grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-property context requires a '#<label_id>:' selector prefix")
	}
	label, err := c.labelFor(sels[0].Selector)
	if err != nil {
		return nil, err
	}
	return dataframeFromResolver(ctx, cm, c.oidsFor(label, vr), sels, c.resolve(label))
}

func (c *LabeledVertexPropertyContext) ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToNdArray(ctx, cm, selector, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *LabeledVertexPropertyContext) ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToDataframe(ctx, cm, selectors, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *LabeledVertexPropertyContext) ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	if len(sels) == 0 || !sels[0].Selector.HasLabel {
		return nil, grapeerr.New(grapeerr.InvalidValue, "labeled-vertex-property context requires a '#<label_id>:' selector prefix")
	}
	label, err := c.labelFor(sels[0].Selector)
	if err != nil {
		return nil, err
	}
	return arrowArraysFromResolver(ctx, cm, c.oidsFor(label, fragment.VertexRange{}), sels, c.resolve(label))
}
