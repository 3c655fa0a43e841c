package cluster

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// Bounds is a plain axis-aligned box. A worker publishes two per step:
// the tight box around its particle positions (r-box) and the same box
// grown by each particle's kernel reach (h-box).
type Bounds struct {
	Min particle.Vec
	Max particle.Vec
}

// Overlaps reports whether the boxes intersect over the first ndim axes.
// An empty worker publishes an inverted box, which overlaps nothing.
func (b Bounds) Overlaps(o Bounds, ndim int) bool {
	for k := 0; k < ndim; k++ {
		if b.Min[k] > o.Max[k] || b.Max[k] < o.Min[k] {
			return false
		}
	}
	return true
}

// DistSqd returns the squared distance from r to the box, zero inside.
func (b Bounds) DistSqd(r particle.Vec, ndim int) float64 {
	d2 := 0.0
	for k := 0; k < ndim; k++ {
		if d := b.Min[k] - r[k]; d > 0 {
			d2 += d * d
		}
		if d := r[k] - b.Max[k]; d > 0 {
			d2 += d * d
		}
	}
	return d2
}

func emptyBounds(ndim int) Bounds {
	var b Bounds
	for k := 0; k < ndim; k++ {
		b.Min[k] = bigNumber
		b.Max[k] = -bigNumber
	}
	return b
}

// Worker drives one rank's share of the cluster protocol: the initial
// decomposition, per-step bound gathers, ghost export and refresh, and
// load-balance migration. Every exported method is a collective; all
// ranks must call it in the same step phase or the fabric aborts.
type Worker struct {
	Rank      int
	Tree      *Tree
	KernRange float64

	RBoxes []Bounds
	HBoxes []Bounds

	comm    *Comm
	rounds  [][]int
	exports [][]int
	importN []int
	importA int
	level   int // next balance level, rank 0 only
}

// NewWorker binds a rank to the fabric and its replicated tree copy.
// KernRange is the kernel support radius in units of h, used to grow the
// h-box.
func NewWorker(rank int, comm *Comm, tree *Tree, kernRange float64) (*Worker, error) {
	if comm.Size() != tree.Size {
		return nil, fmt.Errorf("cluster: fabric has %d workers but tree has %d leaves",
			comm.Size(), tree.Size)
	}
	if rank < 0 || rank >= comm.Size() {
		return nil, fmt.Errorf("cluster: rank %d out of range for %d workers", rank, comm.Size())
	}
	if kernRange <= 0 {
		return nil, fmt.Errorf("cluster: kernel range must be positive, got %g", kernRange)
	}
	return &Worker{
		Rank:      rank,
		Tree:      tree,
		KernRange: kernRange,
		RBoxes:    make([]Bounds, comm.Size()),
		HBoxes:    make([]Bounds, comm.Size()),
		comm:      comm,
		level:     tree.Depth - 1,
	}, nil
}

// Comm exposes the fabric for caller-level collectives, such as the
// star-force reduction and the diagnostics gather.
func (w *Worker) Comm() *Comm { return w.comm }

// Setup computes the migration tournament calendar on rank 0 and
// broadcasts it. Must run once before the first Balance.
func (w *Worker) Setup() error {
	var rounds [][]int
	if w.Rank == 0 {
		r, err := tournament(w.comm.Size())
		if err != nil {
			w.comm.Abort()
			return err
		}
		rounds = r
	}
	got, err := w.comm.Bcast(w.Rank, 0, "setup.calendar", rounds)
	if err != nil {
		return err
	}
	if got != nil {
		w.rounds = got.([][]int)
	}
	return nil
}

// Distribute performs the initial decomposition. Rank 0 passes every
// particle of the simulation; it partitions the tree over their
// positions, broadcasts the tree state and scatters each worker its
// subset. All ranks leave with their owned particles loaded.
func (w *Worker) Distribute(f *sph.Fluid, all []particle.Particle) error {
	size := w.comm.Size()
	var st State
	var buckets []any
	if w.Rank == 0 {
		rs := make([]particle.Vec, len(all))
		for i := range all {
			rs[i] = all[i].R
		}
		if err := w.Tree.Partition(rs); err != nil {
			w.comm.Abort()
			return err
		}
		st = w.Tree.State()
		parts := make([][]particle.Particle, size)
		for i := range all {
			owner := w.Tree.OwnerOf(all[i].R)
			parts[owner] = append(parts[owner], all[i])
		}
		buckets = make([]any, size)
		for rank := range parts {
			buckets[rank] = parts[rank]
		}
	}
	got, err := w.comm.Bcast(w.Rank, 0, "init.tree", st)
	if err != nil {
		return err
	}
	if w.Rank != 0 {
		if err := w.Tree.Apply(got.(State)); err != nil {
			w.comm.Abort()
			return err
		}
	}
	mine, err := w.comm.Scatter(w.Rank, 0, "init.parts", buckets)
	if err != nil {
		return err
	}
	for _, p := range mine.([]particle.Particle) {
		if err := f.AddParticle(p); err != nil {
			w.comm.Abort()
			return err
		}
	}
	log.WithFields(log.Fields{
		"rank": w.Rank,
		"nsph": f.NSph,
	}).Debug("initial decomposition")
	return nil
}

// GatherBounds recomputes this worker's r-box and h-box over its owned
// particles and their boundary images, then allgathers both so every
// rank sees every box. Images count because across a periodic seam they
// are the only footprint a worker leaves inside its far neighbour's
// reach.
func (w *Worker) GatherBounds(f *sph.Fluid) error {
	ndim := w.Tree.NDim
	rb := emptyBounds(ndim)
	hb := emptyBounds(ndim)
	for i := 0; i < f.NSph+f.NGhost; i++ {
		p := &f.Parts[i]
		if p.Dead {
			continue
		}
		reach := w.KernRange * p.H
		for k := 0; k < ndim; k++ {
			if p.R[k] < rb.Min[k] {
				rb.Min[k] = p.R[k]
			}
			if p.R[k] > rb.Max[k] {
				rb.Max[k] = p.R[k]
			}
			if p.R[k]-reach < hb.Min[k] {
				hb.Min[k] = p.R[k] - reach
			}
			if p.R[k]+reach > hb.Max[k] {
				hb.Max[k] = p.R[k] + reach
			}
		}
	}
	got, err := w.comm.Allgather(w.Rank, "bounds.r", rb)
	if err != nil {
		return err
	}
	for rank := range got {
		w.RBoxes[rank] = got[rank].(Bounds)
	}
	got, err = w.comm.Allgather(w.Rank, "bounds.h", hb)
	if err != nil {
		return err
	}
	for rank := range got {
		w.HBoxes[rank] = got[rank].(Bounds)
	}
	return nil
}
