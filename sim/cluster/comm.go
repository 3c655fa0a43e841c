// Package cluster distributes a simulation across a set of worker
// goroutines. Each worker owns a contiguous slab of the particle
// population, bounded by a leaf of a binary partition tree. Workers talk
// through in-process collectives (barrier, broadcast, gather, scatter,
// allgather, all-to-all, pairwise sendrecv) built on per-pair buffered
// channels, one collective per logical phase of the step. The package
// also carries the load balancer, the round-robin migration tournament
// and the peer ghost exchange.
package cluster

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCommMismatch reports that a worker entered a collective out of
	// phase with its peers. The cluster cannot recover; the failing
	// worker aborts every rank.
	ErrCommMismatch = errors.New("cluster: collective sequence mismatch")

	// ErrCommAborted reports that another worker tore the cluster down
	// while this one was blocked inside a collective.
	ErrCommAborted = errors.New("cluster: aborted")
)

// envelope is one message on a rank-pair link. The tag names the
// collective phase; receivers verify it before touching the payload.
type envelope struct {
	from int
	tag  string
	v    any
}

// A link never holds more than two undrained envelopes between
// consecutive collectives.
const linkDepth = 4

// Comm is the communication fabric shared by every worker in the
// cluster. All methods take the calling worker's rank; the same Comm
// value is handed to every worker goroutine.
type Comm struct {
	size  int
	links [][]chan envelope // links[from][to]
	abort chan struct{}
	once  sync.Once
}

// NewComm builds the fabric for size workers.
func NewComm(size int) (*Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("cluster: worker count must be at least 1, got %d", size)
	}
	c := &Comm{
		size:  size,
		links: make([][]chan envelope, size),
		abort: make(chan struct{}),
	}
	for from := range c.links {
		c.links[from] = make([]chan envelope, size)
		for to := range c.links[from] {
			c.links[from][to] = make(chan envelope, linkDepth)
		}
	}
	return c, nil
}

// Size returns the worker count.
func (c *Comm) Size() int { return c.size }

// Abort tears the cluster down: every worker blocked in a collective
// returns ErrCommAborted. Safe to call from any goroutine, once or many
// times.
func (c *Comm) Abort() {
	c.once.Do(func() { close(c.abort) })
}

func (c *Comm) send(from, to int, tag string, v any) error {
	select {
	case c.links[from][to] <- envelope{from: from, tag: tag, v: v}:
		return nil
	case <-c.abort:
		return ErrCommAborted
	}
}

func (c *Comm) recv(rank, from int, tag string) (any, error) {
	select {
	case env := <-c.links[from][rank]:
		if env.tag != tag {
			c.Abort()
			return nil, fmt.Errorf("%w: rank %d expected %q from rank %d, got %q",
				ErrCommMismatch, rank, tag, from, env.tag)
		}
		return env.v, nil
	case <-c.abort:
		return nil, ErrCommAborted
	}
}

// Barrier blocks until every worker has entered it. Rank 0 collects one
// message per peer, then releases them in rank order.
func (c *Comm) Barrier(rank int, tag string) error {
	if c.size == 1 {
		return nil
	}
	if rank == 0 {
		for from := 1; from < c.size; from++ {
			if _, err := c.recv(rank, from, tag); err != nil {
				return err
			}
		}
		for to := 1; to < c.size; to++ {
			if err := c.send(rank, to, tag, nil); err != nil {
				return err
			}
		}
		return nil
	}
	if err := c.send(rank, 0, tag, nil); err != nil {
		return err
	}
	_, err := c.recv(rank, 0, tag)
	return err
}

// Bcast distributes root's value to every worker and returns it.
func (c *Comm) Bcast(rank, root int, tag string, v any) (any, error) {
	if c.size == 1 {
		return v, nil
	}
	if rank == root {
		for to := 0; to < c.size; to++ {
			if to == root {
				continue
			}
			if err := c.send(rank, to, tag, v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return c.recv(rank, root, tag)
}

// Gather collects one value per worker on root, indexed by rank.
// Non-root callers contribute their value and receive nil.
func (c *Comm) Gather(rank, root int, tag string, v any) ([]any, error) {
	if c.size == 1 {
		return []any{v}, nil
	}
	if rank != root {
		return nil, c.send(rank, root, tag, v)
	}
	out := make([]any, c.size)
	out[root] = v
	for from := 0; from < c.size; from++ {
		if from == root {
			continue
		}
		got, err := c.recv(rank, from, tag)
		if err != nil {
			return nil, err
		}
		out[from] = got
	}
	return out, nil
}

// Scatter hands each worker its entry of root's send slice.
func (c *Comm) Scatter(rank, root int, tag string, send []any) (any, error) {
	if c.size == 1 {
		return send[0], nil
	}
	if rank == root {
		if len(send) != c.size {
			c.Abort()
			return nil, fmt.Errorf("%w: scatter payload has %d entries for %d workers",
				ErrCommMismatch, len(send), c.size)
		}
		for to := 0; to < c.size; to++ {
			if to == root {
				continue
			}
			if err := c.send(rank, to, tag, send[to]); err != nil {
				return nil, err
			}
		}
		return send[root], nil
	}
	return c.recv(rank, root, tag)
}

// Allgather collects one value per worker on every worker, indexed by
// rank. Sends run in ascending peer order, then receives.
func (c *Comm) Allgather(rank int, tag string, v any) ([]any, error) {
	out := make([]any, c.size)
	out[rank] = v
	if c.size == 1 {
		return out, nil
	}
	for to := 0; to < c.size; to++ {
		if to == rank {
			continue
		}
		if err := c.send(rank, to, tag, v); err != nil {
			return nil, err
		}
	}
	for from := 0; from < c.size; from++ {
		if from == rank {
			continue
		}
		got, err := c.recv(rank, from, tag)
		if err != nil {
			return nil, err
		}
		out[from] = got
	}
	return out, nil
}

// Alltoall delivers send[i] to worker i and returns the values received
// from each worker, indexed by rank. send must have one entry per
// worker; send[rank] is returned in place.
func (c *Comm) Alltoall(rank int, tag string, send []any) ([]any, error) {
	if len(send) != c.size {
		c.Abort()
		return nil, fmt.Errorf("%w: all-to-all payload has %d entries for %d workers",
			ErrCommMismatch, len(send), c.size)
	}
	out := make([]any, c.size)
	out[rank] = send[rank]
	if c.size == 1 {
		return out, nil
	}
	for to := 0; to < c.size; to++ {
		if to == rank {
			continue
		}
		if err := c.send(rank, to, tag, send[to]); err != nil {
			return nil, err
		}
	}
	for from := 0; from < c.size; from++ {
		if from == rank {
			continue
		}
		got, err := c.recv(rank, from, tag)
		if err != nil {
			return nil, err
		}
		out[from] = got
	}
	return out, nil
}

// SendRecv exchanges one value with a single peer. The lower rank sends
// first, so both sides of a tournament pair agree on the order.
func (c *Comm) SendRecv(rank, peer int, tag string, v any) (any, error) {
	if peer == rank {
		return v, nil
	}
	if rank < peer {
		if err := c.send(rank, peer, tag, v); err != nil {
			return nil, err
		}
		return c.recv(rank, peer, tag)
	}
	got, err := c.recv(rank, peer, tag)
	if err != nil {
		return nil, err
	}
	if err := c.send(rank, peer, tag, v); err != nil {
		return nil, err
	}
	return got, nil
}
