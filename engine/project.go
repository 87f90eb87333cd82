package engine

import (
	"context"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/graphutil"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
)

// handleProjectGraph implements PROJECT_GRAPH: R graph_name,
// vertex_collections, edge_collections. No type_signature is carried
// on this command, so it goes through the signature-agnostic
// DefaultProjector directly rather than a cached, per-signature one
// (every signature shares the same Fragment shape, so the two are
// equivalent).
func (in *Instance) handleProjectGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		var vertexProps map[string][]string
		if err := p.GetStruct("vertex_collections", &vertexProps); err != nil {
			return command.Result{}, err
		}
		var edgeProps map[string][]string
		if err := p.GetStruct("edge_collections", &edgeProps); err != nil {
			return command.Result{}, err
		}

		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		dstName := in.IDs.Next("g")
		out, err := graphutil.NewDefaultProjector().Project(ctx, in.Comm, in.Store, w, dstName, graphutil.ProjectParams{
			VertexProperties: vertexProps,
			EdgeProperties:   edgeProps,
		})
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleProjectToSimple implements PROJECT_TO_SIMPLE: R graph_name,
// type_signature. It projects every vertex/edge label through with no
// properties retained, the "simple graph" projection.
func (in *Instance) handleProjectToSimple(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		sigStr, err := p.GetString("type_signature")
		if err != nil {
			return command.Result{}, err
		}
		if _, err := in.utility(command.TypeSignature(sigStr)); err != nil {
			return command.Result{}, err
		}

		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		frag, err := rawFragment(w, "project_to_simple")
		if err != nil {
			return command.Result{}, err
		}

		vertexProps := make(map[string][]string, len(frag.VertexLabels))
		for _, l := range frag.VertexLabels {
			vertexProps[l] = nil
		}
		edgeProps := make(map[string][]string, len(frag.EdgeLabels))
		for _, l := range frag.EdgeLabels {
			edgeProps[l] = nil
		}

		dstName := in.IDs.Next("g")
		out, err := w.Project(ctx, in.Comm, in.Store, dstName, vertexProps, edgeProps)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleTransformGraph implements TRANSFORM_GRAPH: R graph_name,
// dst_graph_type, type_signature.
func (in *Instance) handleTransformGraph(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		dstType, err := p.GetGraphType("dst_graph_type")
		if err != nil {
			return command.Result{}, err
		}
		sigStr, err := p.GetString("type_signature")
		if err != nil {
			return command.Result{}, err
		}
		u, err := in.utility(command.TypeSignature(sigStr))
		if err != nil {
			return command.Result{}, err
		}

		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		dstName := in.IDs.Next("g")

		var out fragment.Wrapper
		if dstType.IsColumnar() {
			out, err = u.ToArrowFragment(ctx, in.Store, in.Comm, w, dstName)
		} else {
			out, err = u.ToDynamicFragment(ctx, in.Comm, w, dstName)
		}
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// vertexDescriptor and edgeDescriptor are the wire shapes of one
// ADD_LABELS vertex/edge input; decoded via params.Accessor.GetStruct,
// which matches on "json" tags.
type vertexDescriptor struct {
	Label      string             `json:"label"`
	Oid        int64              `json:"oid"`
	Properties map[string]float64 `json:"properties"`
}

type edgeDescriptor struct {
	Label string `json:"label"`
	Src   int64  `json:"src"`
	Dst   int64  `json:"dst"`
}

type labelDescriptors struct {
	Vertices []vertexDescriptor `json:"vertices"`
	Edges    []edgeDescriptor   `json:"edges"`
	Directed bool               `json:"directed"`
}

// handleAddLabels implements ADD_LABELS: R graph_name, type_signature,
// label descriptors. If the source graph has not yet been persisted to
// the shared store, it is copied in place first so AddLabelsToGraph has
// a store object id to extend.
func (in *Instance) handleAddLabels(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		sigStr, err := p.GetString("type_signature")
		if err != nil {
			return command.Result{}, err
		}
		u, err := in.utility(command.TypeSignature(sigStr))
		if err != nil {
			return command.Result{}, err
		}
		var desc labelDescriptors
		if err := p.GetStruct("label_descriptors", &desc); err != nil {
			return command.Result{}, err
		}

		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		if w.GraphDef().GraphType != command.ArrowProperty {
			return command.Result{}, grapeerr.New(grapeerr.InvalidOperation, "add_labels: %s is not a columnar labeled-property graph", w.GraphDef().GraphType)
		}
		if !w.GraphDef().InStore() {
			persisted, err := w.CopyGraph(ctx, in.Comm, in.Store, graphName, fragment.CopyIdentical)
			if err != nil {
				return command.Result{}, err
			}
			w = persisted
		}

		loadParams := graphutil.LoadParams{Directed: desc.Directed}
		for _, v := range desc.Vertices {
			rec := graphutil.VertexRecord{
				Label:      v.Label,
				Oid:        v.Oid,
				Properties: make(map[string]graphutil.PropertyValue, len(v.Properties)),
				Types:      make(map[string]command.TypeCode, len(v.Properties)),
			}
			for name, num := range v.Properties {
				rec.Properties[name] = graphutil.PropertyValue{Num: num}
				rec.Types[name] = command.TypeFloat64
			}
			loadParams.Vertices = append(loadParams.Vertices, rec)
		}
		for _, e := range desc.Edges {
			loadParams.Edges = append(loadParams.Edges, graphutil.EdgeRecord{Label: e.Label, Src: e.Src, Dst: e.Dst})
		}

		dstName := in.IDs.Next("g")
		out, err := u.AddLabelsToGraph(ctx, int(w.GraphDef().VineyardID), in.Comm, in.Store, dstName, loadParams)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleRegisterGraphType implements REGISTER_GRAPH_TYPE: R graph_type,
// type_signature, graph_library_path. Every graph type this repository
// exercises shares one in-memory Fragment shape and needs no
// specialization (graphutil.DefaultUtility/DefaultProjector), so
// registration is simply binding sig to the shared default
// implementations rather than loading graph_library_path as a plugin —
// unlike CREATE_APP, which does load an external algorithm plugin.
func (in *Instance) handleRegisterGraphType(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		if _, err := p.GetGraphType("graph_type"); err != nil {
			return command.Result{}, err
		}
		sigStr, err := p.GetString("type_signature")
		if err != nil {
			return command.Result{}, err
		}
		sig := command.TypeSignature(sigStr)
		in.GraphUtil.RegisterUtility(sig, graphutil.NewDefaultUtility())
		in.GraphUtil.RegisterProjector(sig, graphutil.NewDefaultProjector())
		return command.EmptyResult(), nil
	})
}
