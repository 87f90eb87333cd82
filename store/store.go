// Package store owns the contract for the shared-memory object store
// (spec §1 lists the real Vineyard-like store as an out-of-scope
// external collaborator) and ships MemClient, an in-memory
// implementation used by this repository's own tests.
package store

import "context"

// Client is the object-store surface the engine and fragment/gcontext
// packages depend on: blob persistence, name→id lookup, and
// fragment-group assembly.
type Client interface {
	// Put persists an opaque blob and returns its object id.
	Put(ctx context.Context, blob []byte) (int64, error)
	// Get retrieves a previously Put blob by object id.
	Get(ctx context.Context, id int64) ([]byte, error)
	// PutName binds a human-readable name to an object id. Rebinding
	// an existing name is allowed (last writer wins), matching how a
	// graph/context name is re-pointed across COPY_GRAPH generations.
	PutName(ctx context.Context, name string, id int64) error
	// GetName resolves a name to an object id.
	GetName(ctx context.Context, name string) (int64, error)
	// DelData deletes an object. Deleting an absent id is reported as
	// NotFound; callers performing an explicitly optional delete (spec
	// §7 "deleting a store object that may not exist") should ignore
	// that specific failure.
	DelData(ctx context.Context, id int64) error
	// ConstructFragmentGroup assembles memberIDs (one per worker's
	// locally persisted fragment) into one named, cluster-wide
	// fragment-group object and returns its id. It is the "implicit
	// fence" call that must follow every fragment-group's per-worker
	// object-store writes (spec §5).
	ConstructFragmentGroup(ctx context.Context, name string, memberIDs []int64) (int64, error)
}
