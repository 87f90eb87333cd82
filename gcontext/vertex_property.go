package gcontext

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// VertexPropertyContext is the single-label, multi-column granularity:
// several named result fields per inner vertex of one label.
type VertexPropertyContext struct {
	wrapper fragment.Wrapper
	label   string
	columns []string
	values  map[int64]map[string]Value
}

// NewVertexPropertyContext builds a VertexPropertyContext over label's
// inner vertices. columns fixes the output column order.
func NewVertexPropertyContext(wrapper fragment.Wrapper, label string, columns []string, values map[int64]map[string]Value) *VertexPropertyContext {
	return &VertexPropertyContext{wrapper: wrapper, label: label, columns: columns, values: values}
}

func (c *VertexPropertyContext) ContextType() command.ContextType  { return command.ContextVertexProperty }
func (c *VertexPropertyContext) FragmentWrapper() fragment.Wrapper { return c.wrapper }

// fragment.ColumnSource.

func (c *VertexPropertyContext) Fnum() int                  { return fragmentOf(c.wrapper).Fnum }
func (c *VertexPropertyContext) VertexMap() fragment.VertexMap { return fragmentOf(c.wrapper).VertexMap }
func (c *VertexPropertyContext) TargetLabel() string        { return c.label }
func (c *VertexPropertyContext) ColumnNames() []string      { return c.columns }

func (c *VertexPropertyContext) ColumnValue(name string, oid int64) (num float64, str string, isString bool, ok bool) {
	v, present := c.values[oid][name]
	if !present {
		return 0, "", false, false
	}
	return v.Num, v.Str, v.IsString, true
}

func (c *VertexPropertyContext) oids(vr fragment.VertexRange) []int64 {
	oids := make([]int64, 0, len(c.values))
	for oid := range c.values {
		oids = append(oids, oid)
	}
	return applyRange(vr, sortedOids(oids))
}

func (c *VertexPropertyContext) resolve(oid int64, sel Selector) (float64, error) {
	switch sel.Kind {
	case KindVertexID:
		return float64(oid), nil
	case KindVertexLabelID:
		id, ok := fragmentOf(c.wrapper).LabelID(c.label)
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "unknown label %q", c.label)
		}
		return float64(id), nil
	case KindResultField:
		v, ok := c.values[oid][sel.Field]
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "no field %q for oid %d", sel.Field, oid)
		}
		if v.IsString {
			return 0, grapeerr.New(grapeerr.DataType, "field %q for oid %d is a string, not numeric", sel.Field, oid)
		}
		return v.Num, nil
	default:
		return 0, grapeerr.New(grapeerr.UnsupportedOperation, "vertex-property context does not support selector kind %d", sel.Kind)
	}
}

func (c *VertexPropertyContext) ToNdArray(ctx context.Context, cm comm.Communicator, selector string, vr fragment.VertexRange) ([]byte, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	return ndArrayFromResolver(ctx, cm, c.oids(vr), sel, c.resolve)
}

func (c *VertexPropertyContext) ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, vr fragment.VertexRange) ([]byte, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	return dataframeFromResolver(ctx, cm, c.oids(vr), sels, c.resolve)
}

func (c *VertexPropertyContext) ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToNdArray(ctx, cm, selector, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *VertexPropertyContext) ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToDataframe(ctx, cm, selectors, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *VertexPropertyContext) ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	return arrowArraysFromResolver(ctx, cm, c.oids(fragment.VertexRange{}), sels, c.resolve)
}
