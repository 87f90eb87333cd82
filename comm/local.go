package comm

import (
	"context"
	"sync"

	"trpc.group/trpc-go/grape-engine/grapeerr"
)

// cyclicBarrier is a reusable rendezvous point for exactly n
// participants, released once all n have arrived, then reset for the
// next round.
type cyclicBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
}

func newCyclicBarrier(n int) *cyclicBarrier {
	b := &cyclicBarrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *cyclicBarrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
}

// gatherRound collects one []byte contribution per rank and releases
// all participants with the same ordered slice once everyone has
// contributed.
type gatherRound struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
	buf        [][]byte
	result     [][]byte
}

func newGatherRound(n int) *gatherRound {
	g := &gatherRound{n: n, buf: make([][]byte, n)}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *gatherRound) gather(rank int, data []byte) [][]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	gen := g.generation
	g.buf[rank] = data
	g.count++
	if g.count == g.n {
		out := make([][]byte, g.n)
		copy(out, g.buf)
		g.result = out
		g.count = 0
		g.generation++
		g.cond.Broadcast()
		return out
	}
	for gen == g.generation {
		g.cond.Wait()
	}
	return g.result
}

// broadcastRound is a gatherRound specialized for "root publishes,
// everyone reads."
type broadcastRound struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
	value      []byte
}

func newBroadcastRound(n int) *broadcastRound {
	b := &broadcastRound{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *broadcastRound) participate(rank, root int, data []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.generation
	if rank == root {
		b.value = data
	}
	b.count++
	if b.count == b.n {
		out := b.value
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		return out
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	return b.value
}

// cluster is the shared state backing every rank's LocalCommunicator.
type cluster struct {
	size      int
	barrier   *cyclicBarrier
	gather    *gatherRound
	broadcast *broadcastRound
}

// LocalCommunicator is an in-process Communicator bound to one rank of
// a simulated W-worker cluster. Every rank's LocalCommunicator for the
// same cluster must call Barrier/Allgather/Broadcast the same number
// of times, in the same order, exactly as the spec's "commands on a
// session are processed in submission order" discipline requires of a
// real deployment.
type LocalCommunicator struct {
	rank int
	c    *cluster
}

// NewLocalCluster builds size LocalCommunicators, one per rank,
// sharing synchronization state.
func NewLocalCluster(size int) []Communicator {
	if size <= 0 {
		panic("comm: cluster size must be positive")
	}
	c := &cluster{
		size:      size,
		barrier:   newCyclicBarrier(size),
		gather:    newGatherRound(size),
		broadcast: newBroadcastRound(size),
	}
	out := make([]Communicator, size)
	for i := 0; i < size; i++ {
		out[i] = &LocalCommunicator{rank: i, c: c}
	}
	return out
}

// Rank implements Communicator.
func (l *LocalCommunicator) Rank() int { return l.rank }

// Size implements Communicator.
func (l *LocalCommunicator) Size() int { return l.c.size }

// Barrier implements Communicator.
func (l *LocalCommunicator) Barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return grapeerr.Wrap(grapeerr.CommError, err, "barrier cancelled")
	}
	l.c.barrier.wait()
	return nil
}

// Allgather implements Communicator.
func (l *LocalCommunicator) Allgather(ctx context.Context, local []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, grapeerr.Wrap(grapeerr.CommError, err, "allgather cancelled")
	}
	return l.c.gather.gather(l.rank, local), nil
}

// Broadcast implements Communicator.
func (l *LocalCommunicator) Broadcast(ctx context.Context, root int, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, grapeerr.Wrap(grapeerr.CommError, err, "broadcast cancelled")
	}
	return l.c.broadcast.participate(l.rank, root, data), nil
}
