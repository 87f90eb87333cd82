package graphutil

import (
	"context"
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// PropertyValue is one property value on a VertexRecord, typed by the
// paired TypeCode in VertexRecord.Types: string-family codes read Str,
// every other code reads Num.
type PropertyValue struct {
	Num float64
	Str string
}

// VertexRecord is one input vertex for LoadGraph/AddLabelsToGraph.
type VertexRecord struct {
	Label      string
	Oid        int64
	Properties map[string]PropertyValue
	Types      map[string]command.TypeCode
}

// EdgeRecord is one input edge for LoadGraph/AddLabelsToGraph.
type EdgeRecord struct {
	Label    string
	Src, Dst int64
}

// LoadParams is the full input to a load: every worker receives the
// same LoadParams and keeps only the vertices/edges it owns, the same
// hash-partitioning scheme every wrapper variant assumes elsewhere.
type LoadParams struct {
	Vertices []VertexRecord
	Edges    []EdgeRecord
	Directed bool
}

// DefaultUtility is the Utility registered for every TypeSignature this
// repository exercises; the four operations share no per-signature
// specialization since Fragment's in-memory shape does not vary with
// OID/VID/VDATA/EDATA width.
type DefaultUtility struct{}

// NewDefaultUtility builds a DefaultUtility.
func NewDefaultUtility() *DefaultUtility {
	return &DefaultUtility{}
}

// LoadGraph partitions params across the fnum workers by oid modulo
// fnum, builds each worker's local shard, and persists the resulting
// fragment group under graphName via the labeled-property CopyGraph
// path (spec.md §4.1's "load produces a labeled-property graph").
func (u *DefaultUtility) LoadGraph(ctx context.Context, cm comm.Communicator, sc store.Client, graphName string, params LoadParams) (fragment.Wrapper, error) {
	fid, fnum := cm.Rank(), cm.Size()
	frag := fragment.NewFragment(fid, fnum)

	labels := vertexLabelsOf(params)
	vm, err := buildVertexMap(ctx, cm, sc, labels)
	if err != nil {
		return nil, err
	}
	frag.VertexMap = vm

	if err := mergeLoadParams(frag, params, fid, fnum); err != nil {
		return nil, err
	}

	def := command.GraphDef{
		GraphType:  command.ArrowProperty,
		Directed:   params.Directed,
		VineyardID: command.NoVineyardID,
	}
	wrapper := fragment.NewLabeledPropertyWrapper(def, frag)
	return wrapper.CopyGraph(ctx, cm, sc, graphName, fragment.CopyIdentical)
}

// AddLabelsToGraph merges params' vertices/edges into the fragment
// shard previously persisted at srcFragID, extending its vertex map
// for any newly introduced labels, and republishes the result under
// graphName (spec.md §4.1's "add labels extends an existing graph in
// place, producing a new generation").
func (u *DefaultUtility) AddLabelsToGraph(ctx context.Context, srcFragID int, cm comm.Communicator, sc store.Client, graphName string, params LoadParams) (fragment.Wrapper, error) {
	blob, err := sc.Get(ctx, int64(srcFragID))
	if err != nil {
		return nil, err
	}
	frag, err := fragment.Unmarshal(blob)
	if err != nil {
		return nil, err
	}

	var newLabels []string
	for _, label := range vertexLabelsOf(params) {
		if _, ok := frag.LabelID(label); !ok {
			newLabels = append(newLabels, label)
		}
	}
	if len(newLabels) > 0 {
		vm, err := buildVertexMap(ctx, cm, sc, newLabels)
		if err != nil {
			return nil, err
		}
		mergeVertexMap(frag.VertexMap, vm)
	}

	if err := mergeLoadParams(frag, params, frag.Fid, frag.Fnum); err != nil {
		return nil, err
	}

	def := command.GraphDef{
		GraphType:  command.ArrowProperty,
		Directed:   params.Directed,
		VineyardID: command.NoVineyardID,
	}
	wrapper := fragment.NewLabeledPropertyWrapper(def, frag)
	return wrapper.CopyGraph(ctx, cm, sc, graphName, fragment.CopyIdentical)
}

// ToDynamicFragment converts a columnar wrapper into its mutable
// dynamic counterpart, rejecting any pair of vertices that are joined
// by edges of two different labels (spec.md §4.1's "a dynamic fragment
// carries at most one labeled edge per ordered vertex pair").
func (u *DefaultUtility) ToDynamicFragment(ctx context.Context, cm comm.Communicator, src fragment.Wrapper, dstName string) (fragment.Wrapper, error) {
	frag, ok := src.Fragment().(*fragment.Fragment)
	if !ok || frag == nil {
		return nil, grapeerr.New(grapeerr.IllegalState, "to_dynamic_fragment: source has no fragment payload")
	}
	if err := detectParallelEdges(frag); err != nil {
		return nil, err
	}

	cloned := frag.Clone()
	if err := cm.Barrier(ctx); err != nil {
		return nil, grapeerr.Wrap(grapeerr.CommError, err, "barrier after dynamic conversion")
	}

	srcDef := src.GraphDef()
	def := command.GraphDef{
		Key:         dstName,
		Directed:    srcDef.Directed,
		Schema:      srcDef.Schema,
		GenerateEID: srcDef.GenerateEID,
		VineyardID:  command.NoVineyardID,
	}
	if srcDef.GraphType.IsLabeledProperty() {
		def.GraphType = command.DynamicProperty
		return fragment.NewDynamicPropertyWrapper(def, cloned), nil
	}
	def.GraphType = command.DynamicProjected
	return fragment.NewDynamicProjectedWrapper(def, cloned), nil
}

// ToArrowFragment converts a dynamic wrapper back to its columnar
// counterpart, persisting the result the same way LoadGraph does.
func (u *DefaultUtility) ToArrowFragment(ctx context.Context, sc store.Client, cm comm.Communicator, src fragment.Wrapper, dstName string) (fragment.Wrapper, error) {
	frag, ok := src.Fragment().(*fragment.Fragment)
	if !ok || frag == nil {
		return nil, grapeerr.New(grapeerr.IllegalState, "to_arrow_fragment: source has no fragment payload")
	}
	cloned := frag.Clone()

	srcDef := src.GraphDef()
	def := command.GraphDef{
		Directed:    srcDef.Directed,
		Schema:      srcDef.Schema,
		GenerateEID: srcDef.GenerateEID,
		VineyardID:  command.NoVineyardID,
	}
	if srcDef.GraphType.IsLabeledProperty() {
		def.GraphType = command.ArrowProperty
		wrapper := fragment.NewLabeledPropertyWrapper(def, cloned)
		return wrapper.CopyGraph(ctx, cm, sc, dstName, fragment.CopyIdentical)
	}
	def.GraphType = command.ArrowProjected
	wrapper := fragment.NewProjectedWrapper(def, cloned)
	return wrapper.CopyGraph(ctx, cm, sc, dstName, fragment.CopyIdentical)
}

// vertexLabelsOf returns params' vertex labels in first-seen order.
func vertexLabelsOf(params LoadParams) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, v := range params.Vertices {
		if !seen[v.Label] {
			seen[v.Label] = true
			labels = append(labels, v.Label)
		}
	}
	return labels
}

// mergeLoadParams adds the vertices and edges params describes that
// fid owns (oid modulo fnum) into frag, raising grapeerr.IllegalState
// when a property name is redeclared on the same label with a
// different type than it already carries.
func mergeLoadParams(frag *fragment.Fragment, params LoadParams, fid, fnum int) error {
	for _, v := range params.Vertices {
		if int(v.Oid%int64(fnum)) != fid {
			continue
		}
		frag.AddInnerVertex(v.Label, v.Oid)
		for name, pv := range v.Properties {
			typ := v.Types[name]
			if existing, ok := frag.PropertyType(v.Label, name); ok && existing != typ {
				return grapeerr.New(grapeerr.IllegalState,
					"load_graph: property %q on label %q redeclared with a different type", name, v.Label)
			}
			if err := frag.SetTypedProperty(v.Label, v.Oid, name, typ, pv.Num, pv.Str); err != nil {
				return err
			}
		}
	}
	for _, e := range params.Edges {
		if int(e.Src%int64(fnum)) != fid {
			continue
		}
		frag.AddEdge(e.Label, e.Src, e.Dst)
	}
	return nil
}

// detectParallelEdges rejects a fragment where the same ordered
// (src, dst) pair carries two differently labeled edges, the case
// ToDynamicFragment cannot represent in a single dynamic adjacency.
func detectParallelEdges(frag *fragment.Fragment) error {
	seen := make(map[[2]int64]string)
	for label, edges := range frag.Edges {
		for _, e := range edges {
			key := [2]int64{e.Src, e.Dst}
			if first, ok := seen[key]; ok {
				if first != label {
					return grapeerr.New(grapeerr.IllegalState,
						"to_dynamic_fragment: edge (%d,%d) carries both label %q and %q", e.Src, e.Dst, first, label)
				}
				continue
			}
			seen[key] = label
		}
	}
	return nil
}

// buildVertexMap runs the collective that assigns every worker a
// (o2g-table, oid-array) object id pair per label and shares them
// cluster-wide, the same Put-then-Allgather shape persistFragmentGroup
// uses to reconcile per-worker object ids into one agreed view.
func buildVertexMap(ctx context.Context, cm comm.Communicator, sc store.Client, labels []string) (fragment.VertexMap, error) {
	fid, fnum := cm.Rank(), cm.Size()
	ids := make([][2]int64, len(labels))
	for i, label := range labels {
		tableID, err := sc.Put(ctx, []byte(fmt.Sprintf("o2g-table:%s:%d", label, fid)))
		if err != nil {
			return fragment.VertexMap{}, grapeerr.Wrap(grapeerr.StoreError, err, "put o2g table for label %q", label)
		}
		arrayID, err := sc.Put(ctx, []byte(fmt.Sprintf("oid-array:%s:%d", label, fid)))
		if err != nil {
			return fragment.VertexMap{}, grapeerr.Wrap(grapeerr.StoreError, err, "put oid array for label %q", label)
		}
		ids[i] = [2]int64{tableID, arrayID}
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		return fragment.VertexMap{}, grapeerr.Wrap(grapeerr.IllegalState, err, "marshal vertex map shard")
	}
	shards, err := cm.Allgather(ctx, payload)
	if err != nil {
		return fragment.VertexMap{}, grapeerr.Wrap(grapeerr.CommError, err, "allgather vertex map shards")
	}

	vm := fragment.NewVertexMap(fnum)
	for peerFid, shard := range shards {
		var peerIDs [][2]int64
		if err := json.Unmarshal(shard, &peerIDs); err != nil {
			return fragment.VertexMap{}, grapeerr.Wrap(grapeerr.IllegalState, err, "unmarshal vertex map shard from fid %d", peerFid)
		}
		for i, label := range labels {
			if i >= len(peerIDs) {
				continue
			}
			vm.Bind(peerFid, label, peerIDs[i][0], peerIDs[i][1])
		}
	}
	return vm, nil
}

// mergeVertexMap copies every (fid, label) entry of src into dst.
func mergeVertexMap(dst, src fragment.VertexMap) {
	for fid, table := range src.O2GTableID {
		for label, tableID := range table {
			arrayID := src.OidArrayID[fid][label]
			dst.Bind(fid, label, tableID, arrayID)
		}
	}
}
