package gcontext

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// resultColumn is the single property name an unlabeled-scalar context
// contributes through AddColumn.
const resultColumn = "result"

// VertexDataContext is the single-label, single-scalar-per-vertex
// granularity: one numeric result per inner vertex of one label.
type VertexDataContext struct {
	wrapper fragment.Wrapper
	label   string
	values  map[int64]float64
}

// NewVertexDataContext builds a VertexDataContext over label's inner
// vertices, one scalar each.
func NewVertexDataContext(wrapper fragment.Wrapper, label string, values map[int64]float64) *VertexDataContext {
	return &VertexDataContext{wrapper: wrapper, label: label, values: values}
}

func (c *VertexDataContext) ContextType() command.ContextType  { return command.ContextVertexData }
func (c *VertexDataContext) FragmentWrapper() fragment.Wrapper { return c.wrapper }

// fragment.ColumnSource.

func (c *VertexDataContext) Fnum() int                  { return fragmentOf(c.wrapper).Fnum }
func (c *VertexDataContext) VertexMap() fragment.VertexMap { return fragmentOf(c.wrapper).VertexMap }
func (c *VertexDataContext) TargetLabel() string        { return c.label }
func (c *VertexDataContext) ColumnNames() []string       { return []string{resultColumn} }

func (c *VertexDataContext) ColumnValue(name string, oid int64) (num float64, str string, isString bool, ok bool) {
	if name != resultColumn {
		return 0, "", false, false
	}
	v, present := c.values[oid]
	return v, "", false, present
}

func (c *VertexDataContext) oids(vr fragment.VertexRange) []int64 {
	oids := make([]int64, 0, len(c.values))
	for oid := range c.values {
		oids = append(oids, oid)
	}
	return applyRange(vr, sortedOids(oids))
}

func (c *VertexDataContext) resolve(oid int64, sel Selector) (float64, error) {
	switch sel.Kind {
	case KindVertexID:
		return float64(oid), nil
	case KindVertexLabelID:
		id, ok := fragmentOf(c.wrapper).LabelID(c.label)
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "unknown label %q", c.label)
		}
		return float64(id), nil
	case KindResult:
		v, ok := c.values[oid]
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "no result for oid %d", oid)
		}
		return v, nil
	default:
		return 0, grapeerr.New(grapeerr.UnsupportedOperation, "vertex-data context does not support selector kind %d", sel.Kind)
	}
}

func (c *VertexDataContext) ToNdArray(ctx context.Context, cm comm.Communicator, selector string, vr fragment.VertexRange) ([]byte, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	return ndArrayFromResolver(ctx, cm, c.oids(vr), sel, c.resolve)
}

func (c *VertexDataContext) ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, vr fragment.VertexRange) ([]byte, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	return dataframeFromResolver(ctx, cm, c.oids(vr), sels, c.resolve)
}

func (c *VertexDataContext) ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToNdArray(ctx, cm, selector, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *VertexDataContext) ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToDataframe(ctx, cm, selectors, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *VertexDataContext) ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error) {
	sels, err := ParseSelectorList(selectors)
	if err != nil {
		return nil, err
	}
	return arrowArraysFromResolver(ctx, cm, c.oids(fragment.VertexRange{}), sels, c.resolve)
}
