package cluster

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// workInfo is one worker's load report: total work and the work
// centroid. Work counts 1/nstep per particle, so particles on finer
// timestep levels weigh more.
type workInfo struct {
	Work  float64
	XWork particle.Vec
}

// balanceState is what rank 0 broadcasts after moving the split planes.
type balanceState struct {
	Tree  State
	Level int
	Works []float64
}

// Report summarises one load-balance pass.
type Report struct {
	Level    int       // tree level whose planes were adjusted; -1 on a single worker
	Works    []float64 // per-worker work before the adjustment
	Sent     int       // particles shipped out by this worker
	Received int       // particles shipped in
}

// Imbalance returns the coefficient of variation of per-worker work.
func (r Report) Imbalance() float64 {
	if len(r.Works) < 2 {
		return 0
	}
	m := stat.Mean(r.Works, nil)
	if m == 0 {
		return 0
	}
	return stat.StdDev(r.Works, nil) / m
}

// Spread returns the gap between the busiest and idlest worker.
func (r Report) Spread() float64 {
	if len(r.Works) == 0 {
		return 0
	}
	return floats.Max(r.Works) - floats.Min(r.Works)
}

// Balance runs one load-balancing pass: gather per-worker work on rank
// 0, move the split planes of one tree level (cycling bottom-up and
// wrapping at the root), broadcast the new tree, and migrate emigrant
// particles over the tournament. Copies must be cleared before calling;
// migration renumbers the owned segment.
func (w *Worker) Balance(f *sph.Fluid) (Report, error) {
	size := w.comm.Size()
	if f.NGhost > 0 || f.NImported > 0 {
		w.comm.Abort()
		return Report{}, fmt.Errorf("cluster: rank %d balancing with %d copies still present",
			w.Rank, f.NGhost+f.NImported)
	}
	info := w.localWork(f)
	gathered, err := w.comm.Gather(w.Rank, 0, "balance.work", info)
	if err != nil {
		return Report{}, err
	}

	var st balanceState
	if w.Rank == 0 {
		works := make([]float64, size)
		xworks := make([]particle.Vec, size)
		for rank, g := range gathered {
			gi := g.(workInfo)
			works[rank] = gi.Work
			xworks[rank] = gi.XWork
		}
		level := w.level
		w.level--
		if w.level < 0 {
			w.level = w.Tree.Depth - 1
		}
		if size > 1 {
			w.Tree.accumulateWork(works, xworks)
			w.Tree.balanceLevel(level)
		}
		st = balanceState{Tree: w.Tree.State(), Level: level, Works: works}
	}
	got, err := w.comm.Bcast(w.Rank, 0, "balance.tree", st)
	if err != nil {
		return Report{}, err
	}
	st = got.(balanceState)
	if w.Rank != 0 {
		if err := w.Tree.Apply(st.Tree); err != nil {
			w.comm.Abort()
			return Report{}, err
		}
	}

	sent, received, err := w.migrate(f)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Level: st.Level, Works: st.Works, Sent: sent, Received: received}
	log.WithFields(log.Fields{
		"rank":      w.Rank,
		"level":     rep.Level,
		"sent":      sent,
		"received":  received,
		"imbalance": rep.Imbalance(),
	}).Debug("load balance")
	return rep, nil
}

func (w *Worker) localWork(f *sph.Fluid) workInfo {
	var info workInfo
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead {
			continue
		}
		wi := 1.0
		if p.NStep > 0 {
			wi = 1.0 / float64(p.NStep)
		}
		info.Work += wi
		for k := 0; k < w.Tree.NDim; k++ {
			info.XWork[k] += p.R[k] * wi
		}
	}
	if info.Work > 0 {
		for k := 0; k < w.Tree.NDim; k++ {
			info.XWork[k] /= info.Work
		}
	}
	return info
}

// migrate ships every owned particle whose position now falls in a peer
// leaf. Each tournament round pairs this worker with one peer; both
// sides exchange their buckets, lower rank first, so no pair blocks on
// a third.
func (w *Worker) migrate(f *sph.Fluid) (sent, received int, err error) {
	if w.comm.Size() == 1 {
		return 0, 0, nil
	}
	if w.rounds == nil {
		return 0, 0, fmt.Errorf("cluster: rank %d migrating before Setup", w.Rank)
	}
	buckets := make([][]particle.Particle, w.comm.Size())
	leaving := make(map[int]bool)
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead {
			continue
		}
		owner := w.Tree.OwnerOf(p.R)
		if owner == w.Rank {
			continue
		}
		buckets[owner] = append(buckets[owner], *p)
		leaving[i] = true
	}
	var incoming []particle.Particle
	for _, round := range w.rounds {
		peer := round[w.Rank]
		got, err := w.comm.SendRecv(w.Rank, peer, "balance.migrate", buckets[peer])
		if err != nil {
			return 0, 0, err
		}
		incoming = append(incoming, got.([]particle.Particle)...)
	}
	f.RemoveReals(leaving)
	for _, p := range incoming {
		if err := f.AddParticle(p); err != nil {
			w.comm.Abort()
			return 0, 0, err
		}
	}
	return len(leaving), len(incoming), nil
}
