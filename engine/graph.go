package engine

import (
	"context"
	"encoding/json"
	"strconv"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
)

// handleCreateGraph implements CREATE_GRAPH: R graph_type; one of
// {directed (dynamic), type_signature (arrow)}.
func (in *Instance) handleCreateGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		gt, err := p.GetGraphType("graph_type")
		if err != nil {
			return command.Result{}, err
		}

		name := in.IDs.Next("g")
		frag := fragment.NewFragment(in.Comm.Rank(), in.Comm.Size())
		def := command.GraphDef{Key: name, GraphType: gt, VineyardID: command.NoVineyardID}

		var w fragment.Wrapper
		switch gt {
		case command.ArrowProperty, command.ArrowProjected:
			sigStr, err := p.GetString("type_signature")
			if err != nil {
				return command.Result{}, err
			}
			if _, err := in.utility(command.TypeSignature(sigStr)); err != nil {
				return command.Result{}, err
			}
			if gt == command.ArrowProperty {
				w = fragment.NewLabeledPropertyWrapper(def, frag)
			} else {
				w = fragment.NewProjectedWrapper(def, frag)
			}
		case command.DynamicProperty, command.DynamicProjected:
			directed, err := p.GetBool("directed")
			if err != nil {
				return command.Result{}, err
			}
			def.Directed = directed
			if gt == command.DynamicProperty {
				w = fragment.NewDynamicPropertyWrapper(def, frag)
			} else {
				w = fragment.NewDynamicProjectedWrapper(def, frag)
			}
		}

		if err := in.publishGraph(w); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(w.GraphDef()), nil
	})
}

// handleCopyGraph implements COPY_GRAPH: R graph_name, copy_type.
func (in *Instance) handleCopyGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		copyType, err := params.GetEnum(p, "copy_type", fragment.CopyIdentical, fragment.CopyReset)
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		dstName := in.IDs.Next("g")
		out, err := w.CopyGraph(ctx, in.Comm, in.Store, dstName, copyType)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleToDirected implements TO_DIRECTED: R graph_name.
func (in *Instance) handleToDirected(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		dstName := in.IDs.Next("g")
		out, err := w.ToDirected(ctx, in.Comm, in.Store, dstName)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleToUndirected implements TO_UNDIRECTED: R graph_name.
func (in *Instance) handleToUndirected(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		dstName := in.IDs.Next("g")
		out, err := w.ToUnDirected(ctx, in.Comm, in.Store, dstName)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleViewGraph implements VIEW_GRAPH: R graph_name, view_type.
func (in *Instance) handleViewGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		viewType, err := p.GetString("view_type")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		viewID := in.IDs.Next("g")
		out, err := w.CreateGraphView(ctx, in.Comm, viewID, viewType)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleClearGraph implements CLEAR_GRAPH: R graph_name. It empties the
// graph's vertices, properties and edges in place, keeping its id and
// vertex-map identity.
func (in *Instance) handleClearGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "clear_graph")
		if err != nil {
			return command.Result{}, err
		}
		frag.InnerVertices = map[string][]int64{}
		frag.Properties = map[string][]string{}
		frag.VertexData = map[string]map[int64]map[string]float64{}
		frag.VertexStrings = map[string]map[int64]map[string]string{}
		frag.Edges = map[string][]fragment.Edge{}
		return command.EmptyResult(), nil
	})
}

// handleClearEdges implements CLEAR_EDGES: R graph_name.
func (in *Instance) handleClearEdges(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "clear_edges")
		if err != nil {
			return command.Result{}, err
		}
		frag.Edges = map[string][]fragment.Edge{}
		return command.EmptyResult(), nil
	})
}

// handleUnloadGraph implements UNLOAD_GRAPH: R graph_name; O
// vineyard_id. It issues DelData on every worker for the local shard,
// barriers, then has worker 0 alone delete the fragment-group object,
// matching spec.md §4.7's two-phase unload sequence. DelData's NotFound
// on an object nothing ever put there is an explicitly optional delete
// and is ignored (store.Client.DelData's documented contract).
func (in *Instance) handleUnloadGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	graphName, err := p.GetString("graph_name")
	if err != nil {
		return command.Result{}, err
	}
	w, err := in.graph(graphName)
	if err != nil {
		return command.Result{}, err
	}
	def := w.GraphDef()
	vineyardID := p.GetInt64Or("vineyard_id", def.VineyardID)

	if def.InStore() || p.Has("vineyard_id") {
		if err := in.Store.DelData(ctx, vineyardID); err != nil && grapeerr.KindOf(err) != grapeerr.NotFound {
			return command.Result{}, err
		}
	}
	if err := in.Comm.Barrier(ctx); err != nil {
		return command.Result{}, grapeerr.Wrap(grapeerr.CommError, err, "unload_graph: barrier")
	}
	if comm.IsRoot(in.Comm) && (def.InStore() || p.Has("vineyard_id")) {
		if err := in.Store.DelData(ctx, vineyardID); err != nil && grapeerr.KindOf(err) != grapeerr.NotFound {
			return command.Result{}, err
		}
	}
	if err := in.Registry.Remove(graphName); err != nil {
		return command.Result{}, err
	}
	return command.EmptyResult(), nil
}

// handleReportGraph implements REPORT_GRAPH: R graph_name (dynamic
// only).
func (in *Instance) handleReportGraph(p *params.Accessor) (command.Result, error) {
	graphName, err := p.GetString("graph_name")
	if err != nil {
		return command.Result{}, err
	}
	w, err := in.graph(graphName)
	if err != nil {
		return command.Result{}, err
	}
	if w.GraphDef().GraphType.IsColumnar() {
		return command.Result{}, grapeerr.New(grapeerr.InvalidOperation, "report_graph: %s is not a dynamic graph", w.GraphDef().GraphType)
	}
	frag, err := rawFragment(w, "report_graph")
	if err != nil {
		return command.Result{}, err
	}

	vertexCount, edgeCount := 0, 0
	for _, oids := range frag.InnerVertices {
		vertexCount += len(oids)
	}
	for _, edges := range frag.Edges {
		edgeCount += len(edges)
	}

	report := map[string]any{
		"fid":           frag.Fid,
		"fnum":          frag.Fnum,
		"vertex_labels": frag.VertexLabels,
		"edge_labels":   frag.EdgeLabels,
		"vertex_count":  vertexCount,
		"edge_count":    edgeCount,
		"directed":      w.GraphDef().Directed,
	}
	blob, err := json.Marshal(report)
	if err != nil {
		return command.Result{}, grapeerr.Wrap(grapeerr.IllegalState, err, "report_graph: marshal")
	}
	return command.DataResult(string(blob), command.PickFirst), nil
}

// handleInduceSubgraph implements INDUCE_SUBGRAPH: R graph_name; one of
// nodes, edges. Per SPEC_FULL.md §9's Open Question decision, the
// induced subgraph inherits the parent's generate_eid bit
// unconditionally.
func (in *Instance) handleInduceSubgraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "induce_subgraph")
		if err != nil {
			return command.Result{}, err
		}

		keep, err := inducedVertexSet(p)
		if err != nil {
			return command.Result{}, err
		}

		out := fragment.NewFragment(frag.Fid, frag.Fnum)
		out.VertexMap = frag.VertexMap
		for _, label := range frag.VertexLabels {
			out.AddVertexLabel(label)
			for _, oid := range frag.InnerVertices[label] {
				if !keep[oid] {
					continue
				}
				out.AddInnerVertex(label, oid)
				for prop, val := range frag.VertexData[label][oid] {
					out.SetVertexValue(label, oid, prop, val)
				}
				for prop, val := range frag.VertexStrings[label][oid] {
					out.SetVertexString(label, oid, prop, val)
				}
			}
		}
		for _, label := range frag.EdgeLabels {
			out.AddEdgeLabel(label)
			for _, e := range frag.Edges[label] {
				if keep[e.Src] && keep[e.Dst] {
					out.AddEdge(label, e.Src, e.Dst)
				}
			}
		}

		def := w.GraphDef()
		def.Key = in.IDs.Next("g")
		def.VineyardID = command.NoVineyardID

		var induced fragment.Wrapper
		switch def.GraphType {
		case command.ArrowProperty:
			induced, err = fragment.NewLabeledPropertyWrapper(def, out).CopyGraph(ctx, in.Comm, in.Store, def.Key, fragment.CopyIdentical)
		case command.ArrowProjected:
			induced, err = fragment.NewProjectedWrapper(def, out).CopyGraph(ctx, in.Comm, in.Store, def.Key, fragment.CopyIdentical)
		case command.DynamicProperty:
			induced = fragment.NewDynamicPropertyWrapper(def, out)
		case command.DynamicProjected:
			induced = fragment.NewDynamicProjectedWrapper(def, out)
		}
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(induced); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(induced.GraphDef()), nil
	})
}

func inducedVertexSet(p *params.Accessor) (map[int64]bool, error) {
	switch {
	case p.Has("nodes"):
		nodes, err := p.GetStringList("nodes")
		if err != nil {
			return nil, err
		}
		keep := make(map[int64]bool, len(nodes))
		for _, s := range nodes {
			oid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, grapeerr.Wrap(grapeerr.InvalidValue, err, "induce_subgraph: node oid %q", s)
			}
			keep[oid] = true
		}
		return keep, nil
	case p.Has("edges"):
		edges, err := p.GetStringList("edges")
		if err != nil {
			return nil, err
		}
		keep := make(map[int64]bool)
		for _, s := range edges {
			_, src, dst, err := parseEdgeSpec(s)
			if err != nil {
				return nil, err
			}
			keep[src] = true
			keep[dst] = true
		}
		return keep, nil
	default:
		return nil, grapeerr.New(grapeerr.MissingKey, "induce_subgraph: one of nodes, edges is required")
	}
}

// handleModifyVertices implements MODIFY_VERTICES: R graph_name,
// modify_type, nodes (string list).
func (in *Instance) handleModifyVertices(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		modifyType, err := p.GetString("modify_type")
		if err != nil {
			return command.Result{}, err
		}
		nodes, err := p.GetStringList("nodes")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "modify_vertices")
		if err != nil {
			return command.Result{}, err
		}

		switch modifyType {
		case ModifyAdd:
			for _, spec := range nodes {
				label, oid, props, err := parseNodeSpec(spec)
				if err != nil {
					return command.Result{}, err
				}
				frag.AddInnerVertex(label, oid)
				for k, v := range props {
					frag.SetVertexValue(label, oid, k, v)
				}
			}
		case ModifyDelete:
			for _, spec := range nodes {
				label, oid, _, err := parseNodeSpec(spec)
				if err != nil {
					return command.Result{}, err
				}
				removeInnerVertex(frag, label, oid)
			}
		default:
			return command.Result{}, grapeerr.New(grapeerr.InvalidValue, "modify_vertices: unknown modify_type %q", modifyType)
		}
		return command.EmptyResult(), nil
	})
}

// handleModifyEdges implements MODIFY_EDGES: R graph_name, modify_type,
// edges (string list).
func (in *Instance) handleModifyEdges(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		modifyType, err := p.GetString("modify_type")
		if err != nil {
			return command.Result{}, err
		}
		edges, err := p.GetStringList("edges")
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "modify_edges")
		if err != nil {
			return command.Result{}, err
		}

		switch modifyType {
		case ModifyAdd:
			for _, spec := range edges {
				label, src, dst, err := parseEdgeSpec(spec)
				if err != nil {
					return command.Result{}, err
				}
				frag.AddEdge(label, src, dst)
			}
		case ModifyDelete:
			for _, spec := range edges {
				label, src, dst, err := parseEdgeSpec(spec)
				if err != nil {
					return command.Result{}, err
				}
				removeEdge(frag, label, src, dst)
			}
		default:
			return command.Result{}, grapeerr.New(grapeerr.InvalidValue, "modify_edges: unknown modify_type %q", modifyType)
		}
		return command.EmptyResult(), nil
	})
}

// ModifyAdd and ModifyDelete are the recognized modify_type values for
// MODIFY_VERTICES and MODIFY_EDGES.
const (
	ModifyAdd    = "ADD"
	ModifyDelete = "DELETE"
)
