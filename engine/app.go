package engine

import (
	"context"
	"encoding/json"

	"trpc.group/trpc-go/grape-engine/appentry"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/params"
	"trpc.group/trpc-go/grape-engine/registry"
)

// handleCreateApp implements CREATE_APP: R app_library_path.
func (in *Instance) handleCreateApp(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		path, err := p.GetString("app_library_path")
		if err != nil {
			return command.Result{}, err
		}
		entry, err := appentry.Open(path)
		if err != nil {
			return command.Result{}, err
		}
		name := in.IDs.Next("app")
		if err := in.Registry.Put(name, appArtifact{entry}); err != nil {
			return command.Result{}, err
		}
		return command.DataResult(name, command.PickFirst), nil
	})
}

// handleUnloadApp implements UNLOAD_APP: R app_name.
func (in *Instance) handleUnloadApp(ctx context.Context, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		name, err := p.GetString("app_name")
		if err != nil {
			return command.Result{}, err
		}
		if err := in.Registry.Remove(name); err != nil {
			return command.Result{}, err
		}
		return command.EmptyResult(), nil
	})
}

// runAppResult is the JSON payload RUN_APP reports: "json{context_type,
// context_key}" per the command table.
type runAppResult struct {
	ContextType string `json:"context_type"`
	ContextKey  string `json:"context_key"`
}

// handleRunApp implements RUN_APP: R app_name, graph_name; plus
// algorithm-specific query_args (carried out-of-band on
// command.Command.QueryArgs, JSON-encoded). It creates a transient
// algorithm worker, runs one query against it, and materializes the
// produced gcontext.Context under a fresh ctx_name; subsequent
// CONTEXT_TO_* / TO_VINEYARD_* / ADD_COLUMN commands reference that
// name. No worker handle is cached: RUN_APP's worker exists only for
// the duration of the call.
func (in *Instance) handleRunApp(ctx context.Context, cmd command.Command, p *params.Accessor) (command.Result, error) {
	return in.collective(ctx, func() (command.Result, error) {
		appName, err := p.GetString("app_name")
		if err != nil {
			return command.Result{}, err
		}
		graphName, err := p.GetString("graph_name")
		if err != nil {
			return command.Result{}, err
		}

		entryArt, err := registry.Get[appArtifact](in.Registry, appName)
		if err != nil {
			return command.Result{}, err
		}
		w, err := in.graph(graphName)
		if err != nil {
			return command.Result{}, err
		}

		worker, err := entryArt.CreateWorker(ctx, w, in.Comm, appentry.DefaultEngineSpec())
		if err != nil {
			return command.Result{}, err
		}

		queryArgs, err := decodeQueryArgs(cmd.QueryArgs)
		if err != nil {
			return command.Result{}, err
		}

		contextKey := in.IDs.Next("ctx")
		gc, err := entryArt.Query(ctx, worker, queryArgs, contextKey, w)
		if err != nil {
			return command.Result{}, err
		}

		result := runAppResult{ContextKey: contextKey}
		if gc != nil {
			if err := in.Registry.Put(contextKey, ctxArtifact{gc}); err != nil {
				return command.Result{}, err
			}
			result.ContextType = string(gc.ContextType())
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return command.Result{}, grapeerr.Wrap(grapeerr.IllegalState, err, "run_app: marshal result")
		}
		return command.DataResult(string(payload), command.PickFirst), nil
	})
}

// decodeQueryArgs decodes RUN_APP's opaque binary query args as JSON,
// the wire format the coordinator encodes algorithm-specific
// parameters with. Empty args decode to a nil map, meaning "the
// algorithm takes no parameters."
func decodeQueryArgs(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, grapeerr.Wrap(grapeerr.InvalidValue, err, "run_app: decode query_args")
	}
	return m, nil
}
