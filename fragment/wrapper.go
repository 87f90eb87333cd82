package fragment

import (
	"context"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// Selector names what a ToNdArray/ToDataframe call reads off a vertex.
// Support varies per Wrapper variant (spec.md §4.3's selector matrix).
type Selector int

// Selectors.
const (
	SelectorVertexID Selector = iota
	SelectorVertexData
	SelectorVertexLabelID
	SelectorResult
)

// CopyType controls whether CopyGraph preserves the source's data.
type CopyType string

// Copy types.
const (
	CopyIdentical CopyType = "identical"
	CopyReset     CopyType = "reset"
)

// VertexRange selects the inner vertices of a label whose oid lies in
// [Begin, End); a zero-value range (Begin == End == 0) means "all".
type VertexRange struct {
	Begin, End int64
}

func (r VertexRange) apply(oids []int64) []int64 {
	if r.Begin == 0 && r.End == 0 {
		return oids
	}
	out := oids[:0:0]
	for _, oid := range oids {
		if oid >= r.Begin && oid < r.End {
			out = append(out, oid)
		}
	}
	return out
}

// ColumnSource is the subset of a context wrapper (package gcontext)
// that AddColumn needs. It is declared here, not there, so that
// fragment never imports gcontext — only gcontext imports fragment,
// to hold its FragmentWrapper back-pointer.
type ColumnSource interface {
	ContextType() command.ContextType
	Fnum() int
	VertexMap() VertexMap
	TargetLabel() string
	ColumnNames() []string
	// ColumnValue returns the value bound to oid under the named
	// column, distinguishing numeric from string payloads.
	ColumnValue(name string, oid int64) (num float64, str string, isString bool, ok bool)
}

// Wrapper is the polymorphic handle pairing a GraphDef with a concrete
// Fragment. Every method's support depends on the concrete variant;
// an unsupported call fails with grapeerr.UnsupportedOperation or
// grapeerr.InvalidOperation per spec.md §4.3.
type Wrapper interface {
	Fragment() any
	GraphDef() command.GraphDef

	CopyGraph(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, copyType CopyType) (Wrapper, error)
	Project(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, vertexProps, edgeProps map[string][]string) (Wrapper, error)
	AddColumn(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, src ColumnSource, selectors string) (Wrapper, error)
	ToNdArray(ctx context.Context, cm comm.Communicator, label string, sel Selector, vr VertexRange) ([]byte, error)
	ToDataframe(ctx context.Context, cm comm.Communicator, label string, sels []Selector, vr VertexRange) ([]byte, error)
	ToDirected(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string) (Wrapper, error)
	ToUnDirected(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string) (Wrapper, error)
	CreateGraphView(ctx context.Context, cm comm.Communicator, viewID, viewType string) (Wrapper, error)
}

// base holds the fields every concrete Wrapper shares.
type base struct {
	def  command.GraphDef
	frag *Fragment
}

func (b *base) Fragment() any              { return b.frag }
func (b *base) GraphDef() command.GraphDef { return b.def }

// cloneVertexMapFanout clones src's vertex map fnum-way, one goroutine
// per source fragment-id, joined before returning — the scoped
// work-stealing pool substitute for a scoped thread acquisition (see
// DESIGN.md, package fragment).
func cloneVertexMapFanout(fnum int, perFid func(fid int)) error {
	if fnum <= 0 {
		return grapeerr.New(grapeerr.InvalidValue, "fnum must be positive, got %d", fnum)
	}
	var wg sync.WaitGroup
	errs := make([]error, fnum)
	pool, err := ants.NewPoolWithFunc(fnum, func(arg any) {
		fid := arg.(int)
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				errs[fid] = grapeerr.New(grapeerr.IllegalState, "vertex map clone fid %d panicked: %v", fid, r)
			}
		}()
		perFid(fid)
	})
	if err != nil {
		return grapeerr.Wrap(grapeerr.IllegalState, err, "create vertex map clone pool")
	}
	defer pool.Release()

	for fid := 0; fid < fnum; fid++ {
		wg.Add(1)
		if err := pool.Invoke(fid); err != nil {
			wg.Done()
			errs[fid] = grapeerr.Wrap(grapeerr.IllegalState, err, "submit vertex map clone fid %d", fid)
		}
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// encodeFloat64Shard serializes oids' values for property under label
// as consecutive little-endian float64s, in oids' order.
func encodeFloat64Shard(oids []int64, values map[int64]float64) []byte {
	buf := make([]byte, 8*len(oids))
	for i, oid := range oids {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(values[oid]))
	}
	return buf
}

// gatherShards runs the collective half of ToNdArray/ToDataframe:
// every worker contributes its local count and payload; worker 0
// concatenates shards in ascending rank order and returns the
// combined count and bytes, others return ok=false.
func gatherShards(ctx context.Context, cm comm.Communicator, localCount int64, localPayload []byte) (total int64, combined []byte, ok bool, err error) {
	shard := make([]byte, 8+len(localPayload))
	binary.LittleEndian.PutUint64(shard, uint64(localCount))
	copy(shard[8:], localPayload)

	shards, err := cm.Allgather(ctx, shard)
	if err != nil {
		return 0, nil, false, grapeerr.Wrap(grapeerr.CommError, err, "gather archive shards")
	}
	if !comm.IsRoot(cm) {
		return 0, nil, false, nil
	}
	var buf []byte
	var sum int64
	for _, s := range shards {
		if len(s) < 8 {
			return 0, nil, false, grapeerr.New(grapeerr.IllegalState, "malformed archive shard")
		}
		sum += int64(binary.LittleEndian.Uint64(s))
		buf = append(buf, s[8:]...)
	}
	return sum, buf, true, nil
}

// sortedOids returns a copy of f's inner vertex oids for label sorted
// ascending by oid. This order can differ from the insertion order
// that f.InnerVertices[label] itself holds.
func sortedOids(f *Fragment, label string) []int64 {
	oids := append([]int64(nil), f.InnerVertices[label]...)
	sort.Slice(oids, func(i, j int) bool { return oids[i] < oids[j] })
	return oids
}

func unsupportedSelector(variant string, sel Selector) error {
	return grapeerr.New(grapeerr.UnsupportedOperation, "%s does not support selector %d", variant, sel)
}

func invalidOperation(variant, op string) error {
	return grapeerr.New(grapeerr.InvalidOperation, "%s does not support %s", variant, op)
}

func valueFor(f *Fragment, label string, oid int64, sel Selector) (float64, error) {
	switch sel {
	case SelectorVertexID:
		return float64(oid), nil
	case SelectorVertexData:
		v, ok := f.VertexData[label][oid]["value"]
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "no vertex data for oid %d", oid)
		}
		return v, nil
	case SelectorVertexLabelID:
		id, ok := f.LabelID(label)
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "unknown label %q", label)
		}
		return float64(id), nil
	case SelectorResult:
		v, ok := f.VertexData[label][oid]["result"]
		if !ok {
			return 0, grapeerr.New(grapeerr.InvalidValue, "no result for oid %d", oid)
		}
		return v, nil
	default:
		return 0, grapeerr.New(grapeerr.InvalidValue, "unknown selector %d", sel)
	}
}

func selectorName(sel Selector) string {
	switch sel {
	case SelectorVertexID:
		return "id"
	case SelectorVertexData:
		return "data"
	case SelectorVertexLabelID:
		return "label_id"
	case SelectorResult:
		return "result"
	default:
		return "unknown"
	}
}

// doToNdArray implements the shared ToNdArray shape every variant
// shares, parameterized by the variant's name (for error messages) and
// its selector-support set.
func doToNdArray(ctx context.Context, cm comm.Communicator, b *base, variant string, supported map[Selector]bool, label string, sel Selector, vr VertexRange) ([]byte, error) {
	if !supported[sel] {
		return nil, unsupportedSelector(variant, sel)
	}
	oids := vr.apply(sortedOids(b.frag, label))
	values := make(map[int64]float64, len(oids))
	for _, oid := range oids {
		v, err := valueFor(b.frag, label, oid, sel)
		if err != nil {
			return nil, err
		}
		values[oid] = v
	}
	payload := encodeFloat64Shard(oids, values)
	total, combined, ok, err := gatherShards(ctx, cm, int64(len(oids)), payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return command.EncodeNdArray(command.TypeFloat64, total, combined), nil
}

// doToDataframe implements the shared ToDataframe shape: one archive
// column per requested selector, each gathered in its own collective
// round in the same order on every worker.
func doToDataframe(ctx context.Context, cm comm.Communicator, b *base, variant string, supported map[Selector]bool, label string, sels []Selector, vr VertexRange) ([]byte, error) {
	for _, sel := range sels {
		if !supported[sel] {
			return nil, unsupportedSelector(variant, sel)
		}
	}
	oids := vr.apply(sortedOids(b.frag, label))
	var total int64
	var cols []command.Column
	for _, sel := range sels {
		values := make(map[int64]float64, len(oids))
		for _, oid := range oids {
			v, err := valueFor(b.frag, label, oid, sel)
			if err != nil {
				return nil, err
			}
			values[oid] = v
		}
		payload := encodeFloat64Shard(oids, values)
		t, combined, ok, err := gatherShards(ctx, cm, int64(len(oids)), payload)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		total = t
		cols = append(cols, command.Column{Name: selectorName(sel), Type: command.TypeFloat64, Payload: combined})
	}
	if !comm.IsRoot(cm) {
		return nil, nil
	}
	return command.EncodeDataframe(total, cols), nil
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

// persistFragmentGroup is the columnar-copy collective: every worker
// puts its own cloned shard, all ids are gathered, worker 0
// reconstructs the fragment-group object, and the resulting group id
// is broadcast back so every wrapper's GraphDef agrees (spec.md §4.3,
// "labeled-property copies reconstruct the fragment-group").
func persistFragmentGroup(ctx context.Context, cm comm.Communicator, sc store.Client, dstName string, blob []byte) (int64, error) {
	localID, err := sc.Put(ctx, blob)
	if err != nil {
		return 0, grapeerr.Wrap(grapeerr.StoreError, err, "put fragment shard")
	}
	shards, err := cm.Allgather(ctx, putInt64(localID))
	if err != nil {
		return 0, grapeerr.Wrap(grapeerr.CommError, err, "allgather fragment shard ids")
	}
	memberIDs := make([]int64, len(shards))
	for i, s := range shards {
		memberIDs[i] = getInt64(s)
	}
	var groupID int64
	if comm.IsRoot(cm) {
		gid, err := sc.ConstructFragmentGroup(ctx, dstName, memberIDs)
		if err != nil {
			return 0, grapeerr.Wrap(grapeerr.StoreError, err, "construct fragment group %q", dstName)
		}
		groupID = gid
	}
	out, err := cm.Broadcast(ctx, 0, putInt64(groupID))
	if err != nil {
		return 0, grapeerr.Wrap(grapeerr.CommError, err, "broadcast fragment group id")
	}
	return getInt64(out), nil
}
