package graphutil

import (
	"context"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
	"trpc.group/trpc-go/grape-engine/store"
)

// ProjectParams names the vertex and edge properties a Projector keeps
// from the source labeled-property graph, identically shaped to the
// params LabeledPropertyWrapper.Project already accepts.
type ProjectParams struct {
	VertexProperties map[string][]string
	EdgeProperties   map[string][]string
}

// DefaultProjector delegates to the source wrapper's own Project
// method; it exists as the per-TypeSignature registry entry spec.md
// §4.4 describes, even though every signature this repository
// exercises shares one Fragment shape and needs no specialization.
type DefaultProjector struct{}

// NewDefaultProjector builds a DefaultProjector.
func NewDefaultProjector() *DefaultProjector {
	return &DefaultProjector{}
}

// Project requires src to be a LabeledPropertyWrapper, the only
// variant Project is valid against (spec.md §4.3).
func (p *DefaultProjector) Project(ctx context.Context, cm comm.Communicator, sc store.Client, src fragment.Wrapper, dstID string, params ProjectParams) (fragment.Wrapper, error) {
	if src == nil {
		return nil, grapeerr.New(grapeerr.InvalidValue, "project: nil source wrapper")
	}
	if src.GraphDef().GraphType != command.ArrowProperty {
		return nil, grapeerr.New(grapeerr.InvalidOperation, "project: source graph type %s does not support project", src.GraphDef().GraphType)
	}
	return src.Project(ctx, cm, sc, dstID, params.VertexProperties, params.EdgeProperties)
}
