package gcontext

import (
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Narrow resolves a Context plus the ADD_COLUMN command's selector into
// the fragment.ColumnSource AddColumn consumes. Unlabeled contexts
// already implement fragment.ColumnSource directly; labeled contexts
// narrow to the one label sel's `#<label_id>:` prefix names.
// TensorContext has no vertex association and is never a valid source
// (reported as grapeerr.IllegalState, matching AddColumn's own
// unsupported-context-type rejection).
func Narrow(ctx Context, sel Selector) (fragment.ColumnSource, error) {
	switch c := ctx.(type) {
	case *VertexDataContext:
		return c, nil
	case *VertexPropertyContext:
		return c, nil
	case *LabeledVertexDataContext:
		return c.Narrow(sel)
	case *LabeledVertexPropertyContext:
		return c.Narrow(sel)
	default:
		return nil, grapeerr.New(grapeerr.IllegalState, "context type %s cannot be used as an add_column source", ctx.ContextType())
	}
}
