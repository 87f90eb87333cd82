// Package appentry loads externally built graph algorithms as Go
// plugins and runs them against a worker's fragment (spec.md §4.5):
// the real algorithm body is an out-of-scope external collaborator,
// resolved at runtime through the standard library's own dynamic
// library mechanism rather than compiled into this module.
package appentry

import (
	"context"
	"plugin"
	"runtime"

	"trpc.group/trpc-go/grape-engine/comm"
	"trpc.group/trpc-go/grape-engine/fragment"
	"trpc.group/trpc-go/grape-engine/gcontext"
	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// EngineSpec describes the parallelism an algorithm worker should use.
// It is opaque to the dispatcher once handed to CreateWorker.
type EngineSpec struct {
	Parallelism int
}

// DefaultEngineSpec returns an EngineSpec sized to the host's CPU
// count. RUN_APP always passes this spec to CreateWorker; no command
// attribute selects another.
func DefaultEngineSpec() EngineSpec {
	return EngineSpec{Parallelism: runtime.NumCPU()}
}

// Worker is the opaque handle an algorithm plugin's CreateWorker
// returns and Query receives back; this package never looks inside it.
type Worker any

// Meta describes the algorithm a plugin implements.
type Meta struct {
	Name    string
	Version string
}

// CreateWorkerFunc is the signature the plugin's exported CreateWorker
// symbol must satisfy.
type CreateWorkerFunc func(ctx context.Context, frag fragment.Wrapper, cm comm.Communicator, spec EngineSpec) (Worker, error)

// QueryFunc is the signature the plugin's exported Query symbol must
// satisfy.
type QueryFunc func(ctx context.Context, worker Worker, queryArgs map[string]any, contextKey string, wrapper fragment.Wrapper) (gcontext.Context, error)

// MetaFunc is the signature the plugin's exported Meta symbol must
// satisfy.
type MetaFunc func() Meta

// Entry is a resolved algorithm handle: a plugin.Plugin whose
// CreateWorker/Query/Meta symbols have already been looked up and
// type-asserted, so every later call is a direct function invocation.
type Entry struct {
	path         string
	meta         Meta
	createWorker CreateWorkerFunc
	query        QueryFunc
}

// Open loads the Go plugin at path and resolves its CreateWorker,
// Query and Meta exported symbols. A failure to open the library or to
// resolve/type-assert any of the three symbols is reported as
// grapeerr.LibraryLoad, never a panic.
func Open(path string) (*Entry, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, grapeerr.Wrap(grapeerr.LibraryLoad, err, "open algorithm plugin %q", path)
	}

	createWorker, err := lookupSymbol[CreateWorkerFunc](p, path, "CreateWorker")
	if err != nil {
		return nil, err
	}
	query, err := lookupSymbol[QueryFunc](p, path, "Query")
	if err != nil {
		return nil, err
	}
	metaFn, err := lookupSymbol[MetaFunc](p, path, "Meta")
	if err != nil {
		return nil, err
	}

	return newEntry(path, metaFn(), createWorker, query), nil
}

// newEntry builds an Entry directly from already-resolved symbols,
// the seam appentry's own tests use in place of a real .so.
func newEntry(path string, meta Meta, createWorker CreateWorkerFunc, query QueryFunc) *Entry {
	return &Entry{path: path, meta: meta, createWorker: createWorker, query: query}
}

func lookupSymbol[T any](p *plugin.Plugin, path, name string) (T, error) {
	var zero T
	sym, err := p.Lookup(name)
	if err != nil {
		return zero, grapeerr.Wrap(grapeerr.LibraryLoad, err, "resolve %s in plugin %q", name, path)
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, grapeerr.New(grapeerr.LibraryLoad, "plugin %q: symbol %s has an unexpected signature", path, name)
	}
	return fn, nil
}

// Meta returns the algorithm's self-reported name and version.
func (e *Entry) Meta() Meta {
	return e.meta
}

// CreateWorker starts an algorithm worker over frag using cm for any
// collective communication the algorithm itself performs.
func (e *Entry) CreateWorker(ctx context.Context, frag fragment.Wrapper, cm comm.Communicator, spec EngineSpec) (Worker, error) {
	worker, err := e.createWorker(ctx, frag, cm, spec)
	if err != nil {
		return nil, grapeerr.Wrap(grapeerr.LibraryLoad, err, "create worker for plugin %q", e.path)
	}
	return worker, nil
}

// Query runs one query against a previously created worker, returning
// the result context the dispatcher materializes under contextKey. A
// nil context with a nil error means the algorithm produced no
// queryable result.
func (e *Entry) Query(ctx context.Context, worker Worker, queryArgs map[string]any, contextKey string, wrapper fragment.Wrapper) (gcontext.Context, error) {
	result, err := e.query(ctx, worker, queryArgs, contextKey, wrapper)
	if err != nil {
		return nil, grapeerr.Wrap(grapeerr.LibraryLoad, err, "query plugin %q", e.path)
	}
	return result, nil
}
