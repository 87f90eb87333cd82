package comm

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunCluster runs fn once per rank of a size-worker LocalCommunicator
// cluster, concurrently, and joins on every rank before returning —
// the same fan-out-then-join shape the retrieval pack uses for
// bounded per-unit parallelism (see DESIGN.md, package comm). It
// returns the first error from any rank; the others still run to
// completion so every goroutine's Communicator calls stay in lockstep
// (a rank that returned early would otherwise deadlock its peers in
// Barrier/Allgather).
func RunCluster(ctx context.Context, size int, fn func(ctx context.Context, c Communicator, rank int) error) error {
	comms := NewLocalCluster(size)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range comms {
		c := c
		g.Go(func() error {
			return fn(ctx, c, c.Rank())
		})
	}
	return g.Wait()
}
