// Package fragment implements the polymorphic Fragment Wrapper
// hierarchy: a handle pairing a command.GraphDef with a concrete,
// per-worker graph shard (Fragment), plus the four wrapper variants
// the engine package dispatches against.
package fragment

import (
	"encoding/json"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Fragment is the per-worker shard of a partitioned graph. It is a
// deliberately lightweight, in-memory stand-in for the real
// Vineyard/GraphScope fragment (whose columnar storage and native
// AddVertexColumns/ToDirectedFrom calls are an external collaborator
// out of scope here, per spec.md §1) — rich enough to exercise every
// Wrapper operation and its invariants.
type Fragment struct {
	Fid  int
	Fnum int

	VertexLabels []string
	EdgeLabels   []string

	// VertexMap translates between OIDs and GIDs and must stay
	// consistent across every fragment of the same graph.
	VertexMap VertexMap

	// InnerVertices[label] holds the OIDs owned by this fragment, in
	// iteration order; the block is contiguous per (Fid, label).
	InnerVertices map[string][]int64

	// Properties[label] is the ordered list of property names carried
	// by that vertex label's columnar table.
	Properties map[string][]string

	// VertexData[label][oid][property] holds the property value, kept
	// as float64 for numeric ones and an opaque string fallback stored
	// separately in VertexStrings when the property is non-numeric.
	VertexData    map[string]map[int64]map[string]float64
	VertexStrings map[string]map[int64]map[string]string

	// Edges[label] holds this fragment's local edges under that edge
	// label, src/dst given as OIDs.
	Edges map[string][]Edge

	// PropertyTypes[label][property] records the TypeCode a property
	// was declared with, consulted by graphutil's columnar/dynamic
	// conversion dispatch. Properties set only through
	// SetVertexValue/SetVertexString have no entry here, so
	// PropertyType reports ok == false for them.
	PropertyTypes map[string]map[string]command.TypeCode
}

// Edge is a directed (Src, Dst) pair under one edge label.
type Edge struct {
	Src, Dst int64
}

// NewFragment builds an empty fragment for worker fid of an fnum-way
// partition.
func NewFragment(fid, fnum int) *Fragment {
	return &Fragment{
		Fid:           fid,
		Fnum:          fnum,
		VertexMap:     NewVertexMap(fnum),
		InnerVertices: make(map[string][]int64),
		Properties:    make(map[string][]string),
		VertexData:    make(map[string]map[int64]map[string]float64),
		VertexStrings: make(map[string]map[int64]map[string]string),
		Edges:         make(map[string][]Edge),
		PropertyTypes: make(map[string]map[string]command.TypeCode),
	}
}

// AddVertexLabel registers label as one of f's vertex labels if it is
// not already present.
func (f *Fragment) AddVertexLabel(label string) {
	for _, l := range f.VertexLabels {
		if l == label {
			return
		}
	}
	f.VertexLabels = append(f.VertexLabels, label)
}

// AddEdgeLabel registers label as one of f's edge labels if it is not
// already present.
func (f *Fragment) AddEdgeLabel(label string) {
	for _, l := range f.EdgeLabels {
		if l == label {
			return
		}
	}
	f.EdgeLabels = append(f.EdgeLabels, label)
}

// LabelID returns label's position in f.VertexLabels, the numeric id
// the VertexLabelId selector reports.
func (f *Fragment) LabelID(label string) (int64, bool) {
	for i, l := range f.VertexLabels {
		if l == label {
			return int64(i), true
		}
	}
	return 0, false
}

// AddInnerVertex records oid as an inner vertex of label, appending to
// the contiguous per-label block.
func (f *Fragment) AddInnerVertex(label string, oid int64) {
	f.AddVertexLabel(label)
	f.InnerVertices[label] = append(f.InnerVertices[label], oid)
}

// SetVertexValue binds a numeric property value to oid under label.
func (f *Fragment) SetVertexValue(label string, oid int64, prop string, value float64) {
	if f.VertexData[label] == nil {
		f.VertexData[label] = make(map[int64]map[string]float64)
	}
	if f.VertexData[label][oid] == nil {
		f.VertexData[label][oid] = make(map[string]float64)
	}
	f.VertexData[label][oid][prop] = value
	f.addProperty(label, prop)
}

// SetVertexString binds a string property value to oid under label.
func (f *Fragment) SetVertexString(label string, oid int64, prop, value string) {
	if f.VertexStrings[label] == nil {
		f.VertexStrings[label] = make(map[int64]map[string]string)
	}
	if f.VertexStrings[label][oid] == nil {
		f.VertexStrings[label][oid] = make(map[string]string)
	}
	f.VertexStrings[label][oid][prop] = value
	f.addProperty(label, prop)
}

// SetPropertyType records the declared type of label's prop property.
func (f *Fragment) SetPropertyType(label, prop string, typ command.TypeCode) {
	if f.PropertyTypes[label] == nil {
		f.PropertyTypes[label] = make(map[string]command.TypeCode)
	}
	f.PropertyTypes[label][prop] = typ
}

// PropertyType reports the declared type of label's prop property, if
// any was recorded via SetPropertyType or SetTypedProperty.
func (f *Fragment) PropertyType(label, prop string) (command.TypeCode, bool) {
	byProp, ok := f.PropertyTypes[label]
	if !ok {
		return 0, false
	}
	typ, ok := byProp[prop]
	return typ, ok
}

// SetTypedProperty binds a property value together with its TypeCode:
// string-family codes (TypeUTF8, TypeLargeUTF8) go to VertexStrings,
// every other recognized code goes to VertexData as a float64. An
// unrecognized code is a caller error reported as grapeerr.DataType.
func (f *Fragment) SetTypedProperty(label string, oid int64, prop string, typ command.TypeCode, num float64, str string) error {
	switch typ {
	case command.TypeInt32, command.TypeInt64, command.TypeUint32, command.TypeUint64,
		command.TypeFloat32, command.TypeFloat64:
		f.SetVertexValue(label, oid, prop, num)
	case command.TypeUTF8, command.TypeLargeUTF8:
		f.SetVertexString(label, oid, prop, str)
	default:
		return grapeerr.New(grapeerr.DataType, "fragment: unrecognized type code %d for property %q", typ, prop)
	}
	f.SetPropertyType(label, prop, typ)
	return nil
}

func (f *Fragment) addProperty(label, prop string) {
	for _, p := range f.Properties[label] {
		if p == prop {
			return
		}
	}
	f.Properties[label] = append(f.Properties[label], prop)
}

// resetData empties f down to its label/vertex-map schema: no inner
// vertices, no properties, no edges — the behavior CopyGraph's
// CopyReset copy type asks for, as opposed to CopyIdentical's full
// duplication.
func (f *Fragment) resetData() {
	f.InnerVertices = make(map[string][]int64)
	f.Properties = make(map[string][]string)
	f.VertexData = make(map[string]map[int64]map[string]float64)
	f.VertexStrings = make(map[string]map[int64]map[string]string)
	f.Edges = make(map[string][]Edge)
}

// clone returns a deep-enough copy of f: new top-level maps and
// slices, independent of the original's mutations.
func (f *Fragment) clone() *Fragment {
	out := NewFragment(f.Fid, f.Fnum)
	out.VertexMap = f.VertexMap.clone()
	out.VertexLabels = append([]string(nil), f.VertexLabels...)
	out.EdgeLabels = append([]string(nil), f.EdgeLabels...)
	for label, oids := range f.InnerVertices {
		out.InnerVertices[label] = append([]int64(nil), oids...)
	}
	for label, props := range f.Properties {
		out.Properties[label] = append([]string(nil), props...)
	}
	for label, byOid := range f.VertexData {
		dst := make(map[int64]map[string]float64, len(byOid))
		for oid, byProp := range byOid {
			cp := make(map[string]float64, len(byProp))
			for k, v := range byProp {
				cp[k] = v
			}
			dst[oid] = cp
		}
		out.VertexData[label] = dst
	}
	for label, byOid := range f.VertexStrings {
		dst := make(map[int64]map[string]string, len(byOid))
		for oid, byProp := range byOid {
			cp := make(map[string]string, len(byProp))
			for k, v := range byProp {
				cp[k] = v
			}
			dst[oid] = cp
		}
		out.VertexStrings[label] = dst
	}
	for label, edges := range f.Edges {
		out.Edges[label] = append([]Edge(nil), edges...)
	}
	for label, byProp := range f.PropertyTypes {
		cp := make(map[string]command.TypeCode, len(byProp))
		for k, v := range byProp {
			cp[k] = v
		}
		out.PropertyTypes[label] = cp
	}
	return out
}

// Clone returns a deep-enough copy of f, independent of f's own later
// mutations.
func (f *Fragment) Clone() *Fragment {
	return f.clone()
}

// AddEdge records a directed edge under label.
func (f *Fragment) AddEdge(label string, src, dst int64) {
	f.AddEdgeLabel(label)
	f.Edges[label] = append(f.Edges[label], Edge{Src: src, Dst: dst})
}

// VertexMap is the shared-identity object every fragment of a graph
// carries: per-(fragment-id, label), the o2g-table and oid-array
// object ids. Two VertexMaps are Equal only when every entry matches,
// which is the precondition AddColumn enforces against a context's
// back-pointer vertex map (spec.md §4.3).
type VertexMap struct {
	Fnum       int
	O2GTableID map[int]map[string]int64
	OidArrayID map[int]map[string]int64
}

// NewVertexMap builds an empty vertex map for an fnum-way partition.
func NewVertexMap(fnum int) VertexMap {
	return VertexMap{
		Fnum:       fnum,
		O2GTableID: make(map[int]map[string]int64),
		OidArrayID: make(map[int]map[string]int64),
	}
}

// Bind records the (o2g-table, oid-array) object ids this vertex map
// uses for (fid, label).
func (v VertexMap) Bind(fid int, label string, o2gTableID, oidArrayID int64) {
	if v.O2GTableID[fid] == nil {
		v.O2GTableID[fid] = make(map[string]int64)
	}
	if v.OidArrayID[fid] == nil {
		v.OidArrayID[fid] = make(map[string]int64)
	}
	v.O2GTableID[fid][label] = o2gTableID
	v.OidArrayID[fid][label] = oidArrayID
}

// Equal reports whether v and o agree on fnum and every (fid, label)
// table/array object id.
func (v VertexMap) Equal(o VertexMap) bool {
	if v.Fnum != o.Fnum {
		return false
	}
	return tableEqual(v.O2GTableID, o.O2GTableID) && tableEqual(v.OidArrayID, o.OidArrayID)
}

func tableEqual(a, b map[int]map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for fid, byLabel := range a {
		other, ok := b[fid]
		if !ok || len(other) != len(byLabel) {
			return false
		}
		for label, id := range byLabel {
			if otherID, ok := other[label]; !ok || otherID != id {
				return false
			}
		}
	}
	return true
}

// marshalFragment encodes frag as the opaque blob a columnar
// CopyGraph/Project persists into the shared object store; the store
// never interprets these bytes, it only round-trips them.
func marshalFragment(frag *Fragment) []byte {
	blob, err := json.Marshal(frag)
	if err != nil {
		// Fragment's fields are all JSON-safe (no channels, funcs, or
		// cycles); Marshal failing here would be a programming error.
		panic("fragment: marshal fragment: " + err.Error())
	}
	return blob
}

// Unmarshal decodes a blob previously produced by marshalFragment, the
// inverse half of the opaque-blob round trip the shared object store
// never interprets on its own.
func Unmarshal(blob []byte) (*Fragment, error) {
	var frag Fragment
	if err := json.Unmarshal(blob, &frag); err != nil {
		return nil, grapeerr.Wrap(grapeerr.StoreError, err, "fragment: unmarshal fragment")
	}
	return &frag, nil
}

func (v VertexMap) clone() VertexMap {
	out := NewVertexMap(v.Fnum)
	for fid, byLabel := range v.O2GTableID {
		cp := make(map[string]int64, len(byLabel))
		for k, val := range byLabel {
			cp[k] = val
		}
		out.O2GTableID[fid] = cp
	}
	for fid, byLabel := range v.OidArrayID {
		cp := make(map[string]int64, len(byLabel))
		for k, val := range byLabel {
			cp[k] = val
		}
		out.OidArrayID[fid] = cp
	}
	return out
}
