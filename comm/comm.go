// Package comm owns the contract for the MPI-style communicator the
// engine bridges to (spec §1 lists the real communicator as an
// out-of-scope external collaborator). It also provides
// LocalCommunicator, an in-process simulation of W cooperating workers
// used by this repository's own tests and by single-host deployments
// where "the cluster" is W goroutines in one process.
package comm

import "context"

// Communicator is the collective-operation contract every dispatcher
// command that touches shared state relies on.
type Communicator interface {
	// Rank returns this worker's fragment id (fid in spec terms).
	Rank() int
	// Size returns the total number of fragments (fnum).
	Size() int
	// Barrier blocks until every worker has called Barrier for this
	// round. It is the implicit fence after a fragment-group
	// construction (spec §5).
	Barrier(ctx context.Context) error
	// Allgather exchanges one []byte per worker and returns all of
	// them, ordered by rank, to every worker. Used by ToNdArray /
	// ToDataframe to collect per-worker shard sizes and payloads at
	// worker 0, and by vertex-map reconstruction.
	Allgather(ctx context.Context, local []byte) ([][]byte, error)
	// Broadcast sends root's data to every worker and returns it.
	Broadcast(ctx context.Context, root int, data []byte) ([]byte, error)
}

// IsRoot reports whether c is rank 0, the worker that writes archive
// headers and performs worker-0-only cleanup steps.
func IsRoot(c Communicator) bool {
	return c.Rank() == 0
}
