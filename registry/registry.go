// Package registry implements the per-worker Object Registry: a map
// from string id to a registered artifact (fragment wrapper, algorithm
// entry, query context, or graph utility). It is the only root of
// ownership for artifacts after publication — after a dispatcher
// command publishes an id, no other code in the process retains a
// strong handle to it across command boundaries.
package registry

import (
	"fmt"
	"sync"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// Artifact is the marker interface every registrable value implements.
// It exists only so the registry's map value type is self-documenting;
// it carries no behavior of its own.
type Artifact interface {
	// ArtifactKind returns a short tag used in TypeMismatch messages
	// (e.g. "fragment.Wrapper", "appentry.Entry", "gcontext.Context").
	ArtifactKind() string
}

// Registry is a process-wide, concurrency-safe map from id to
// Artifact. engine.NewInstance constructs one per engine.Instance and
// keeps it in Instance.Registry.
type Registry struct {
	mu        sync.RWMutex
	artifacts map[string]Artifact
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{artifacts: make(map[string]Artifact)}
}

// Put registers an artifact under id. It fails with DuplicateId if id
// is already present.
func (r *Registry) Put(id string, a Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.artifacts[id]; exists {
		return grapeerr.New(grapeerr.DuplicateId, "id %q already registered", id)
	}
	r.artifacts[id] = a
	return nil
}

// Has reports whether id is present.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.artifacts[id]
	return exists
}

// Remove deletes id. It fails with NotFound if id is absent.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.artifacts[id]; !exists {
		return grapeerr.New(grapeerr.NotFound, "id %q not registered", id)
	}
	delete(r.artifacts, id)
	return nil
}

// Snapshot returns a copy of the id->artifact map as it stands right
// now, for a caller (engine's collective fence) that needs to undo a
// Put/Remove performed since the snapshot was taken.
func (r *Registry) Snapshot() map[string]Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Artifact, len(r.artifacts))
	for id, a := range r.artifacts {
		out[id] = a
	}
	return out
}

// RestoreFrom replaces the registry's contents with before, undoing
// every Put/Remove issued after the snapshot it came from was taken.
func (r *Registry) RestoreFrom(before map[string]Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = make(map[string]Artifact, len(before))
	for id, a := range before {
		r.artifacts[id] = a
	}
}

// Get retrieves the artifact registered under id as type T. It fails
// with NotFound if id is absent, or TypeMismatch if the registered
// value is not a T.
func Get[T Artifact](r *Registry, id string) (T, error) {
	var zero T
	r.mu.RLock()
	a, exists := r.artifacts[id]
	r.mu.RUnlock()
	if !exists {
		return zero, grapeerr.New(grapeerr.NotFound, "id %q not registered", id)
	}
	typed, ok := a.(T)
	if !ok {
		return zero, grapeerr.New(grapeerr.TypeMismatch,
			"id %q holds %s, want %s", id, a.ArtifactKind(), fmt.Sprintf("%T", zero))
	}
	return typed, nil
}
