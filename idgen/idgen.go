// Package idgen implements the dispatcher's identifier generation: a
// monotonic counter per process, optionally composed with the worker's
// rank when uniqueness must hold cluster-wide. Graph, app and context
// names only ever need process-local uniqueness (they are looked up
// locally), so the rank suffix is opt-in.
package idgen

import (
	"fmt"
	"sync/atomic"
)

// Generator produces unique, monotonically increasing ids for one
// worker process.
type Generator struct {
	rank    int
	counter atomic.Uint64
}

// New creates a Generator for the worker at the given rank.
func New(rank int) *Generator {
	return &Generator{rank: rank}
}

// Next returns "<prefix>-<n>", unique within this process for the
// lifetime of the Generator.
func (g *Generator) Next(prefix string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%d", prefix, n)
}

// NextClusterWide returns "<prefix>-r<rank>-<n>", composing the
// process-local counter with this worker's rank so the id is unique
// cluster-wide even without coordination across workers.
func (g *Generator) NextClusterWide(prefix string) string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-r%d-%d", prefix, g.rank, n)
}
