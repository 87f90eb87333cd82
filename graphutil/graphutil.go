// Package graphutil implements per-type-signature graph utilities and
// projectors: the loaders, columnar/dynamic converters, and simple-graph
// projectors that a Fragment Wrapper delegates construction work to
// (spec.md §4.4).
package graphutil

import (
	"context"
	"sync"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/command"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/store"
)

// Utility builds, converts, and extends graphs of one concrete
// OID/VID/VDATA/EDATA shape, identified by its TypeSignature.
type Utility interface {
	LoadGraph(ctx context.Context, cm comm.Communicator, sc store.Client, graphName string, params LoadParams) (fragment.Wrapper, error)
	AddLabelsToGraph(ctx context.Context, srcFragID int, cm comm.Communicator, sc store.Client, graphName string, params LoadParams) (fragment.Wrapper, error)
	ToDynamicFragment(ctx context.Context, cm comm.Communicator, src fragment.Wrapper, dstName string) (fragment.Wrapper, error)
	ToArrowFragment(ctx context.Context, sc store.Client, cm comm.Communicator, src fragment.Wrapper, dstName string) (fragment.Wrapper, error)
}

// Projector builds a projected simple graph from a labeled-property
// source. Unlike spec.md §4.4's abbreviated signature, Project takes
// the same comm/store dependencies LoadGraph does: constructing and
// persisting the projected fragment group needs them, the same way
// Wrapper.Project does.
type Projector interface {
	Project(ctx context.Context, cm comm.Communicator, sc store.Client, src fragment.Wrapper, dstID string, params ProjectParams) (fragment.Wrapper, error)
}

// Registry caches one Utility and one Projector per TypeSignature.
// Registration is append-only and idempotent, generalized from the
// teacher's dsl/registry.Registry ("named component" keyed store) from
// "named component" to "named type signature": the first registration
// for a signature wins and subsequent calls are a no-op, matching
// spec.md §3's "type utilities are cached by their type signature and
// reused across commands."
type Registry struct {
	mu         sync.RWMutex
	utilities  map[command.TypeSignature]Utility
	projectors map[command.TypeSignature]Projector
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		utilities:  make(map[command.TypeSignature]Utility),
		projectors: make(map[command.TypeSignature]Projector),
	}
}

// RegisterUtility registers u for sig if no utility is registered yet.
func (r *Registry) RegisterUtility(sig command.TypeSignature, u Utility) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.utilities[sig]; exists {
		return
	}
	r.utilities[sig] = u
}

// Utility looks up the utility cached for sig.
func (r *Registry) Utility(sig command.TypeSignature) (Utility, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.utilities[sig]
	return u, ok
}

// RegisterProjector registers p for sig if no projector is registered
// yet.
func (r *Registry) RegisterProjector(sig command.TypeSignature, p Projector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.projectors[sig]; exists {
		return
	}
	r.projectors[sig] = p
}

// Projector looks up the projector cached for sig.
func (r *Registry) Projector(sig command.TypeSignature) (Projector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projectors[sig]
	return p, ok
}
