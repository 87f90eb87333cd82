package engine

import (
	"context"
	"encoding/json"

	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/config"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/gcontext"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
)

// handleContextToNumpy implements CONTEXT_TO_NUMPY: R ctx_name, selector;
// O vertex_range, axis. Read-only, so it runs outside collective.
func (in *Instance) handleContextToNumpy(ctx context.Context, p *params.Accessor) (command.Result, error) {
	ctxName, selector, vr, err := contextArgs(p)
	if err != nil {
		return command.Result{}, err
	}
	gc, err := in.context(ctxName)
	if err != nil {
		return command.Result{}, err
	}
	blob, err := gc.ToNdArray(ctx, in.Comm, selector, vr)
	if err != nil {
		return command.Result{}, err
	}
	return command.ArchiveResult(blob), nil
}

// handleContextToDataframe implements CONTEXT_TO_DATAFRAME: R ctx_name,
// selector (a comma-joined selector list); O vertex_range, axis.
func (in *Instance) handleContextToDataframe(ctx context.Context, p *params.Accessor) (command.Result, error) {
	ctxName, selector, vr, err := contextArgs(p)
	if err != nil {
		return command.Result{}, err
	}
	gc, err := in.context(ctxName)
	if err != nil {
		return command.Result{}, err
	}
	blob, err := gc.ToDataframe(ctx, in.Comm, selector, vr)
	if err != nil {
		return command.Result{}, err
	}
	return command.ArchiveResult(blob), nil
}

// objectIDResult is the JSON payload TO_VINEYARD_TENSOR/DATAFRAME report:
// "json{object_id}" per the command table.
type objectIDResult struct {
	ObjectID int64 `json:"object_id"`
}

// handleToVineyardTensor implements TO_VINEYARD_TENSOR: R ctx_name,
// selector; O vertex_range, axis. It persists the tensor to the shared
// store, so it runs inside collective.
func (in *Instance) handleToVineyardTensor(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		ctxName, selector, vr, err := contextArgs(p)
		if err != nil {
			return command.Result{}, err
		}
		gc, err := in.context(ctxName)
		if err != nil {
			return command.Result{}, err
		}
		id, err := gc.ToVineyardTensor(ctx, in.Comm, in.Store, selector, vr)
		if err != nil {
			return command.Result{}, err
		}
		return objectIDDataResult(id)
	})
}

// handleToVineyardDataframe implements TO_VINEYARD_DATAFRAME: R
// ctx_name, selector; O vertex_range, axis.
func (in *Instance) handleToVineyardDataframe(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		ctxName, selector, vr, err := contextArgs(p)
		if err != nil {
			return command.Result{}, err
		}
		gc, err := in.context(ctxName)
		if err != nil {
			return command.Result{}, err
		}
		id, err := gc.ToVineyardDataframe(ctx, in.Comm, in.Store, selector, vr)
		if err != nil {
			return command.Result{}, err
		}
		return objectIDDataResult(id)
	})
}

func objectIDDataResult(id int64) (command.Result, error) {
	payload, err := json.Marshal(objectIDResult{ObjectID: id})
	if err != nil {
		return command.Result{}, grapeerr.Wrap(grapeerr.IllegalState, err, "marshal object_id result")
	}
	return command.DataResult(string(payload), command.PickFirst), nil
}

// contextArgs reads the ctx_name/selector/vertex_range attributes shared
// by every context/archive command.
func contextArgs(p *params.Accessor) (ctxName, selector string, vr fragment.VertexRange, err error) {
	ctxName, err = p.GetString("ctx_name")
	if err != nil {
		return "", "", fragment.VertexRange{}, err
	}
	selector, err = p.GetString("selector")
	if err != nil {
		return "", "", fragment.VertexRange{}, err
	}
	vr, err = vertexRangeParam(p)
	if err != nil {
		return "", "", fragment.VertexRange{}, err
	}
	return ctxName, selector, vr, nil
}

// handleAddColumn implements ADD_COLUMN: R graph_name, ctx_name,
// selector. The selector names one column (or, for a labeled context,
// one label's worth of columns) on the stored context to graft onto
// graph_name as a new property.
func (in *Instance) handleAddColumn(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}
		ctxName, err := p.GetString("ctx_name")
		if err != nil {
			return command.Result{}, err
		}
		selector, err := p.GetString("selector")
		if err != nil {
			return command.Result{}, err
		}

		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}
		gc, err := in.context(ctxName)
		if err != nil {
			return command.Result{}, err
		}
		if gc.FragmentWrapper() != w {
			return command.Result{}, grapeerr.New(grapeerr.InvalidOperation, "add_column: ctx_name %q was not produced from graph_name %q", ctxName, graphName)
		}

		sel, err := gcontext.ParseSelector(selector)
		if err != nil {
			return command.Result{}, err
		}
		src, err := gcontext.Narrow(gc, sel)
		if err != nil {
			return command.Result{}, err
		}

		dstName := in.IDs.Next("g")
		out, err := w.AddColumn(ctx, in.Comm, in.Store, dstName, src, selector)
		if err != nil {
			return command.Result{}, err
		}
		if err := in.publishGraph(out); err != nil {
			return command.Result{}, err
		}
		return command.GraphDefResult(out.GraphDef()), nil
	})
}

// handleGraphToNumpy implements GRAPH_TO_NUMPY: R graph_name, label,
// selector; O vertex_range. label is not in the command table's literal
// attribute list but is required by fragment.Wrapper.ToNdArray to pick
// which vertex label the archive is built over.
func (in *Instance) handleGraphToNumpy(ctx context.Context, p *params.Accessor) (command.Result, error) {
	graphName, label, sel, vr, err := graphArchiveArgs(p)
	if err != nil {
		return command.Result{}, err
	}
	w, err := in.graph(graphName)
	if err != nil {
		return command.Result{}, err
	}
	blob, err := w.ToNdArray(ctx, in.Comm, label, sel, vr)
	if err != nil {
		return command.Result{}, err
	}
	return command.ArchiveResult(blob), nil
}

// handleGraphToDataframe implements GRAPH_TO_DATAFRAME: R graph_name,
// label, selector (comma-joined); O vertex_range.
func (in *Instance) handleGraphToDataframe(ctx context.Context, p *params.Accessor) (command.Result, error) {
	graphName, label, sels, vr, err := graphArchiveListArgs(p)
	if err != nil {
		return command.Result{}, err
	}
	w, err := in.graph(graphName)
	if err != nil {
		return command.Result{}, err
	}
	blob, err := w.ToDataframe(ctx, in.Comm, label, sels, vr)
	if err != nil {
		return command.Result{}, err
	}
	return command.ArchiveResult(blob), nil
}

// handleGetEngineConfig implements GET_ENGINE_CONFIG: no required
// attrs. An optional config_path re-reads configuration from disk
// instead of reporting the instance's running Config.
func (in *Instance) handleGetEngineConfig(p *params.Accessor) (command.Result, error) {
	cfg := in.Config
	if p.Has("config_path") {
		path, err := p.GetString("config_path")
		if err != nil {
			return command.Result{}, err
		}
		loaded, err := config.Load(path)
		if err != nil {
			return command.Result{}, err
		}
		cfg = loaded
	}
	blob, err := cfg.JSON()
	if err != nil {
		return command.Result{}, err
	}
	return command.DataResult(blob, command.PickFirst), nil
}
