package engine

import (
	"strconv"
	"strings"

	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
)

// vertexRangeArg is the wire shape of the optional vertex_range
// attribute shared by the context/graph archive commands.
type vertexRangeArg struct {
	Begin int64 `json:"begin"`
	End   int64 `json:"end"`
}

func vertexRangeParam(p *params.Accessor) (fragment.VertexRange, error) {
	if !p.Has("vertex_range") {
		return fragment.VertexRange{}, nil
	}
	var vr vertexRangeArg
	if err := p.GetStruct("vertex_range", &vr); err != nil {
		return fragment.VertexRange{}, err
	}
	return fragment.VertexRange{Begin: vr.Begin, End: vr.End}, nil
}

// parseFragmentSelector maps a GRAPH_TO_NUMPY/GRAPH_TO_DATAFRAME
// selector name to the fragment.Selector it names.
func parseFragmentSelector(s string) (fragment.Selector, error) {
	switch s {
	case "id":
		return fragment.SelectorVertexID, nil
	case "data":
		return fragment.SelectorVertexData, nil
	case "label_id":
		return fragment.SelectorVertexLabelID, nil
	case "result":
		return fragment.SelectorResult, nil
	default:
		return 0, grapeerr.New(grapeerr.InvalidValue, "unknown selector %q", s)
	}
}

func parseFragmentSelectorList(raw string) ([]fragment.Selector, error) {
	parts := strings.Split(raw, ",")
	out := make([]fragment.Selector, 0, len(parts))
	for _, part := range parts {
		sel, err := parseFragmentSelector(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// graphArchiveArgs reads the graph_name/label/selector/vertex_range
// attributes shared by GRAPH_TO_NUMPY.
func graphArchiveArgs(p *params.Accessor) (graphName, label string, sel fragment.Selector, vr fragment.VertexRange, err error) {
	graphName, err = p.GetString("graph_name")
	if err != nil {
		return "", "", 0, fragment.VertexRange{}, err
	}
	label, err = p.GetString("label")
	if err != nil {
		return "", "", 0, fragment.VertexRange{}, err
	}
	selStr, err := p.GetString("selector")
	if err != nil {
		return "", "", 0, fragment.VertexRange{}, err
	}
	sel, err = parseFragmentSelector(selStr)
	if err != nil {
		return "", "", 0, fragment.VertexRange{}, err
	}
	vr, err = vertexRangeParam(p)
	if err != nil {
		return "", "", 0, fragment.VertexRange{}, err
	}
	return graphName, label, sel, vr, nil
}

// graphArchiveListArgs is graphArchiveArgs for GRAPH_TO_DATAFRAME, whose
// selector attribute is a comma-joined list.
func graphArchiveListArgs(p *params.Accessor) (graphName, label string, sels []fragment.Selector, vr fragment.VertexRange, err error) {
	graphName, err = p.GetString("graph_name")
	if err != nil {
		return "", "", nil, fragment.VertexRange{}, err
	}
	label, err = p.GetString("label")
	if err != nil {
		return "", "", nil, fragment.VertexRange{}, err
	}
	selStr, err := p.GetString("selector")
	if err != nil {
		return "", "", nil, fragment.VertexRange{}, err
	}
	sels, err = parseFragmentSelectorList(selStr)
	if err != nil {
		return "", "", nil, fragment.VertexRange{}, err
	}
	vr, err = vertexRangeParam(p)
	if err != nil {
		return "", "", nil, fragment.VertexRange{}, err
	}
	return graphName, label, sels, vr, nil
}

// parseNodeSpec parses one MODIFY_VERTICES node entry: "label,oid" or
// "label,oid,prop=val;prop2=val2".
func parseNodeSpec(spec string) (label string, oid int64, props map[string]float64, err error) {
	fields := strings.SplitN(spec, ",", 3)
	if len(fields) < 2 {
		return "", 0, nil, grapeerr.New(grapeerr.InvalidValue, "node spec %q: want label,oid[,props]", spec)
	}
	label = fields[0]
	oid, perr := strconv.ParseInt(fields[1], 10, 64)
	if perr != nil {
		return "", 0, nil, grapeerr.Wrap(grapeerr.InvalidValue, perr, "node spec %q: invalid oid", spec)
	}
	props = map[string]float64{}
	if len(fields) == 3 && fields[2] != "" {
		for _, kv := range strings.Split(fields[2], ";") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return "", 0, nil, grapeerr.New(grapeerr.InvalidValue, "node spec %q: malformed property %q", spec, kv)
			}
			num, nerr := strconv.ParseFloat(v, 64)
			if nerr != nil {
				return "", 0, nil, grapeerr.Wrap(grapeerr.InvalidValue, nerr, "node spec %q: invalid property value", spec)
			}
			props[k] = num
		}
	}
	return label, oid, props, nil
}

// parseEdgeSpec parses one MODIFY_EDGES edge entry: "label,src,dst".
func parseEdgeSpec(spec string) (label string, src, dst int64, err error) {
	fields := strings.SplitN(spec, ",", 3)
	if len(fields) != 3 {
		return "", 0, 0, grapeerr.New(grapeerr.InvalidValue, "edge spec %q: want label,src,dst", spec)
	}
	label = fields[0]
	src, serr := strconv.ParseInt(fields[1], 10, 64)
	if serr != nil {
		return "", 0, 0, grapeerr.Wrap(grapeerr.InvalidValue, serr, "edge spec %q: invalid src", spec)
	}
	dst, derr := strconv.ParseInt(fields[2], 10, 64)
	if derr != nil {
		return "", 0, 0, grapeerr.Wrap(grapeerr.InvalidValue, derr, "edge spec %q: invalid dst", spec)
	}
	return label, src, dst, nil
}

// removeInnerVertex deletes oid and its property data from label's
// block in frag, in place.
func removeInnerVertex(frag *fragment.Fragment, label string, oid int64) {
	oids := frag.InnerVertices[label]
	for i, o := range oids {
		if o == oid {
			frag.InnerVertices[label] = append(oids[:i], oids[i+1:]...)
			break
		}
	}
	delete(frag.VertexData[label], oid)
	delete(frag.VertexStrings[label], oid)
}

// removeEdge deletes the first (src, dst) edge under label, in place.
func removeEdge(frag *fragment.Fragment, label string, src, dst int64) {
	edges := frag.Edges[label]
	for i, e := range edges {
		if e.Src == src && e.Dst == dst {
			frag.Edges[label] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}
