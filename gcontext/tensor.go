package gcontext

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// TensorContext is the no-vertex-association result granularity: a
// flat numeric result (e.g. a single scalar or fixed-size vector) with
// no per-vertex keying, so it never implements fragment.ColumnSource.
type TensorContext struct {
	wrapper fragment.Wrapper
	values  []float64
}

// NewTensorContext builds a TensorContext over this worker's local
// shard of the result. values holds no vertex association; every
// worker's slice is concatenated, in rank order, by a Context output
// method's collective gather.
func NewTensorContext(wrapper fragment.Wrapper, values []float64) *TensorContext {
	return &TensorContext{wrapper: wrapper, values: values}
}

func (c *TensorContext) ContextType() command.ContextType       { return command.ContextTensor }
func (c *TensorContext) FragmentWrapper() fragment.Wrapper      { return c.wrapper }

func (c *TensorContext) requireResultSelector(raw string) error {
	sel, err := ParseSelector(raw)
	if err != nil {
		return err
	}
	if sel.Kind != KindResult {
		return grapeerr.New(grapeerr.UnsupportedOperation, "tensor context only supports selector \"r\", got %q", raw)
	}
	return nil
}

func (c *TensorContext) ToNdArray(ctx context.Context, cm comm.Communicator, selector string, _ fragment.VertexRange) ([]byte, error) {
	if err := c.requireResultSelector(selector); err != nil {
		return nil, err
	}
	total, combined, ok, err := gatherFloat64Slice(ctx, cm, c.values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return command.EncodeNdArray(command.TypeFloat64, total, combined), nil
}

func (c *TensorContext) ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, _ fragment.VertexRange) ([]byte, error) {
	if err := c.requireResultSelector(selectors); err != nil {
		return nil, err
	}
	total, combined, ok, err := gatherFloat64Slice(ctx, cm, c.values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return command.EncodeDataframe(total, []command.Column{{Name: "r", Type: command.TypeFloat64, Payload: combined}}), nil
}

func (c *TensorContext) ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToNdArray(ctx, cm, selector, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *TensorContext) ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error) {
	blob, err := c.ToDataframe(ctx, cm, selectors, vr)
	if err != nil {
		return 0, err
	}
	return materialize(ctx, cm, sc, blob)
}

func (c *TensorContext) ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error) {
	if err := c.requireResultSelector(selectors); err != nil {
		return nil, err
	}
	_, combined, ok, err := gatherFloat64Slice(ctx, cm, c.values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []command.Column{{Name: "r", Type: command.TypeFloat64, Payload: combined}}, nil
}
