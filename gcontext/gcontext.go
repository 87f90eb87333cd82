// Package gcontext implements the Context Wrapper Hierarchy (spec.md
// §4.6): the result containers a RUN_APP query produces, keyed by
// granularity (tensor, per-vertex data, per-vertex property, and their
// labeled variants). Only this package imports fragment, never the
// reverse — fragment.ColumnSource is the narrow surface AddColumn needs
// and is declared in package fragment to keep that dependency one-way.
package gcontext

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// Context is the abstract result container every RUN_APP query
// produces. Concrete variants additionally implement
// fragment.ColumnSource when their granularity is usable as an
// AddColumn source (vertex-data, vertex-property, and their labeled
// forms; TensorContext does not, having no vertex association).
type Context interface {
	// ContextType reports the granularity, one of command's five
	// Context* constants.
	ContextType() command.ContextType
	// FragmentWrapper is the back-pointer to the fragment wrapper that
	// produced this context, enforced identical by AddColumn.
	FragmentWrapper() fragment.Wrapper

	ToNdArray(ctx context.Context, cm comm.Communicator, selector string, vr fragment.VertexRange) ([]byte, error)
	ToDataframe(ctx context.Context, cm comm.Communicator, selectors string, vr fragment.VertexRange) ([]byte, error)
	ToVineyardTensor(ctx context.Context, cm comm.Communicator, sc store.Client, selector string, vr fragment.VertexRange) (int64, error)
	ToVineyardDataframe(ctx context.Context, cm comm.Communicator, sc store.Client, selectors string, vr fragment.VertexRange) (int64, error)
	ToArrowArrays(ctx context.Context, cm comm.Communicator, selectors string) ([]command.Column, error)
}

// sortedOids returns oids in ascending order, the iteration order
// fragment's own InnerVertices-based archive encoders use.
func sortedOids(oids []int64) []int64 {
	out := append([]int64(nil), oids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func encodeFloat64Shard(oids []int64, values map[int64]float64) []byte {
	buf := make([]byte, 8*len(oids))
	for i, oid := range oids {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(values[oid]))
	}
	return buf
}

func putInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func getInt64(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

// gatherRaw runs the collective half of ToNdArray/ToDataframe: every
// worker contributes its local element count and raw payload; worker 0
// concatenates shards in ascending rank order. Mirrors
// fragment.gatherShards, duplicated here rather than exported from
// fragment to keep fragment free of any gcontext-shaped dependency.
func gatherRaw(ctx context.Context, cm comm.Communicator, localCount int64, payload []byte) (total int64, combined []byte, ok bool, err error) {
	shard := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(shard, uint64(localCount))
	copy(shard[8:], payload)

	shards, err := cm.Allgather(ctx, shard)
	if err != nil {
		return 0, nil, false, grapeerr.Wrap(grapeerr.CommError, err, "gather context archive shards")
	}
	if !comm.IsRoot(cm) {
		return 0, nil, false, nil
	}
	var buf []byte
	var sum int64
	for _, s := range shards {
		if len(s) < 8 {
			return 0, nil, false, grapeerr.New(grapeerr.IllegalState, "malformed context archive shard")
		}
		sum += int64(binary.LittleEndian.Uint64(s))
		buf = append(buf, s[8:]...)
	}
	return sum, buf, true, nil
}

// gatherFloat64Shards gathers one float64 value per oid in localOids.
func gatherFloat64Shards(ctx context.Context, cm comm.Communicator, localOids []int64, values map[int64]float64) (total int64, combined []byte, ok bool, err error) {
	return gatherRaw(ctx, cm, int64(len(localOids)), encodeFloat64Shard(localOids, values))
}

// gatherFloat64Slice gathers a worker's local, vertex-less value slice
// (TensorContext's payload).
func gatherFloat64Slice(ctx context.Context, cm comm.Communicator, local []float64) (total int64, combined []byte, ok bool, err error) {
	payload := make([]byte, 8*len(local))
	for i, v := range local {
		binary.LittleEndian.PutUint64(payload[i*8:], math.Float64bits(v))
	}
	return gatherRaw(ctx, cm, int64(len(local)), payload)
}

// applyRange filters oids to the [Begin, End) window, or returns them
// unfiltered when vr is the zero value ("all"), mirroring
// fragment.VertexRange's own (unexported) semantics.
func applyRange(vr fragment.VertexRange, oids []int64) []int64 {
	if vr.Begin == 0 && vr.End == 0 {
		return oids
	}
	out := oids[:0:0]
	for _, oid := range oids {
		if oid >= vr.Begin && oid < vr.End {
			out = append(out, oid)
		}
	}
	return out
}

// fragmentOf extracts the concrete *fragment.Fragment backing a
// wrapper, the only way gcontext reaches fragment-level facts (label
// ids, fnum, vertex map) without fragment exporting anything beyond
// Wrapper/ColumnSource.
func fragmentOf(w fragment.Wrapper) *fragment.Fragment {
	f, _ := w.Fragment().(*fragment.Fragment)
	return f
}

// columnResolver resolves one selector against one oid to a numeric
// value. Selecting a string-valued field reports grapeerr.DataType:
// every Context output path (ToNdArray/ToDataframe/ToVineyard*/
// ToArrowArrays) is numeric-only, while AddColumn's ColumnSource path
// (ColumnValue) keeps full string support separately.
type columnResolver func(oid int64, sel Selector) (float64, error)

func ndArrayFromResolver(ctx context.Context, cm comm.Communicator, oids []int64, sel Selector, resolve columnResolver) ([]byte, error) {
	values := make(map[int64]float64, len(oids))
	for _, oid := range oids {
		v, err := resolve(oid, sel)
		if err != nil {
			return nil, err
		}
		values[oid] = v
	}
	total, combined, ok, err := gatherFloat64Shards(ctx, cm, oids, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return command.EncodeNdArray(command.TypeFloat64, total, combined), nil
}

func columnsFromResolver(ctx context.Context, cm comm.Communicator, oids []int64, sels []NamedSelector, resolve columnResolver) (int64, []command.Column, bool, error) {
	var total int64
	var cols []command.Column
	for _, ns := range sels {
		values := make(map[int64]float64, len(oids))
		for _, oid := range oids {
			v, err := resolve(oid, ns.Selector)
			if err != nil {
				return 0, nil, false, err
			}
			values[oid] = v
		}
		t, combined, ok, err := gatherFloat64Shards(ctx, cm, oids, values)
		if err != nil {
			return 0, nil, false, err
		}
		if !ok {
			continue
		}
		total = t
		cols = append(cols, command.Column{Name: ns.Name, Type: command.TypeFloat64, Payload: combined})
	}
	if !comm.IsRoot(cm) {
		return 0, nil, false, nil
	}
	return total, cols, true, nil
}

func dataframeFromResolver(ctx context.Context, cm comm.Communicator, oids []int64, sels []NamedSelector, resolve columnResolver) ([]byte, error) {
	total, cols, ok, err := columnsFromResolver(ctx, cm, oids, sels, resolve)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return command.EncodeDataframe(total, cols), nil
}

func arrowArraysFromResolver(ctx context.Context, cm comm.Communicator, oids []int64, sels []NamedSelector, resolve columnResolver) ([]command.Column, error) {
	_, cols, ok, err := columnsFromResolver(ctx, cm, oids, sels, resolve)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cols, nil
}

// materialize persists blob into sc and broadcasts its object id so
// every worker's ToVineyard* call returns the same id, the same
// put-then-broadcast shape persistFragmentGroup uses for fragment
// groups (fragment/wrapper.go).
func materialize(ctx context.Context, cm comm.Communicator, sc store.Client, blob []byte) (int64, error) {
	var localID int64
	if comm.IsRoot(cm) {
		id, err := sc.Put(ctx, blob)
		if err != nil {
			return 0, grapeerr.Wrap(grapeerr.StoreError, err, "put context archive")
		}
		localID = id
	}
	out, err := cm.Broadcast(ctx, 0, putInt64(localID))
	if err != nil {
		return 0, grapeerr.Wrap(grapeerr.CommError, err, "broadcast context object id")
	}
	return getInt64(out), nil
}
