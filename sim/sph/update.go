package sph

import (
	"math"
	"runtime"
	"sync"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// maxGatherRounds bounds the gather-radius doubling of the smoothing
// length solve before falling back to an unbounded gather.
const maxGatherRounds = 16

// Update drives the per-step SPH sweeps over a Fluid. Each sweep splits
// the active owned particles into contiguous chunks, runs one goroutine
// per chunk against a private Accum block, and folds the blocks back in
// chunk order, so the float sums do not depend on goroutine scheduling.
//
// Force sweeps write accelerations only to active owned particles: the
// reverse half of a pair against an inactive or replicated partner is
// discarded during the fold. Neighbour step levels merge onto every
// particle, boundary ghosts fold theirs onto their originals, and
// imported copies keep theirs for the exchange to return to the owner.
//
// An Update belongs to one worker and its methods are not reentrant.
type Update struct {
	Engine  Engine
	Search  Search
	Workers int

	accs  []*Accum  // sweep scratch, one block per goroutine
	uprev []float64 // internal energies frozen at the start of a solve
}

// NewUpdate sizes the sweeps at the given goroutine count; workers <= 0
// selects one per CPU.
func NewUpdate(engine Engine, search Search, workers int) *Update {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Update{Engine: engine, Search: search, Workers: workers}
}

// Properties rebuilds the neighbour index, then solves the smoothing
// length, density and thermodynamic state of every active owned
// particle. Particles must carry a positive smoothing length guess;
// initial conditions and the previous step both leave one.
//
// Internal energies are frozen into a snapshot before the goroutines
// start: the solves store u back through the equation of state, and the
// energy-density sum must not watch those stores mid-sweep.
func (u *Update) Properties(f *Fluid, stars []particle.Star) error {
	u.Search.Rebuild(f)
	active := f.ActiveReals(nil)
	if len(active) == 0 {
		return nil
	}

	n := f.Total()
	if cap(u.uprev) < n {
		u.uprev = make([]float64, n)
	}
	u.uprev = u.uprev[:n]
	for i := 0; i < n; i++ {
		u.uprev[i] = f.Parts[i].U
	}

	chunks := u.chunkCount(len(active))
	errs := make([]error, chunks)
	var wg sync.WaitGroup
	for w := 0; w < chunks; w++ {
		lo, hi := chunkRange(len(active), chunks, w)
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			var scr solveScratch
			for _, i := range active[lo:hi] {
				if err := u.solveH(f, i, stars, &scr); err != nil {
					errs[w] = err
					return
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// solveScratch carries a goroutine's reusable candidate buffers.
type solveScratch struct {
	cand []int
	dist []float64
	mu   []float64
}

// solveH gathers candidates around particle i and runs the engine's h
// iteration, doubling the gathered reach whenever the iteration escapes
// it.
func (u *Update) solveH(f *Fluid, i int, stars []particle.Star, scr *solveScratch) error {
	p := &f.Parts[i]
	kernRange := u.Engine.Kernel().Range()
	hmax := p.H

	for round := 0; round < maxGatherRounds; round++ {
		if p.H > hmax {
			hmax = p.H
		}
		scr.cand = u.Search.Gather(f, p.R, kernRange*hmax, scr.cand[:0])
		u.fillPairScratch(f, p.R, scr)
		ok, err := u.Engine.ComputeH(i, f.Parts, scr.cand, scr.dist, scr.mu, hmax, stars)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		hmax *= 2.0
	}

	// Doubling never caught the support; hand the iteration every
	// particle and no upper bound.
	scr.cand = u.Search.Gather(f, p.R, bigNumber, scr.cand[:0])
	u.fillPairScratch(f, p.R, scr)
	_, err := u.Engine.ComputeH(i, f.Parts, scr.cand, scr.dist, scr.mu, bigNumber, stars)
	return err
}

// fillPairScratch fills the squared distance from r to each candidate
// and the candidate's m*u product, with u read from the sweep snapshot.
func (u *Update) fillPairScratch(f *Fluid, r particle.Vec, scr *solveScratch) {
	scr.dist = scr.dist[:0]
	scr.mu = scr.mu[:0]
	for _, j := range scr.cand {
		var dr particle.Vec
		for k := 0; k < f.NDim; k++ {
			dr[k] = f.Parts[j].R[k] - r[k]
		}
		scr.dist = append(scr.dist, particle.Dot(dr, dr, f.NDim))
		scr.mu = append(scr.mu, f.Parts[j].M*u.uprev[j])
	}
}

// HydroForces runs the hydrodynamic pair sweep over the active owned
// particles: pressure, viscosity and conductivity inside kernel range,
// softened star gravity when stars are present, then the divergence and
// PdV corrections.
func (u *Update) HydroForces(f *Fluid, stars []particle.Star) {
	u.Search.Rebuild(f)
	active := f.ActiveReals(nil)
	u.zeroActive(f, active)
	if len(active) == 0 {
		return
	}

	u.sweep(f, active, func(i int, buf *neibBuf, acc *Accum) {
		p := &f.Parts[i]
		buf.neib = u.Search.GatherScatter(f, p.R, math.Sqrt(p.HRangeSqd), buf.neib[:0])
		buf.neib = filterPairs(f, i, buf.neib)
		u.Engine.HydroForces(i, f.Parts, buf.neib, acc)
		if len(stars) > 0 {
			u.Engine.StarGravForces(i, f.Parts, stars, acc)
		}
	})

	for _, i := range active {
		u.Engine.PostHydro(&f.Parts[i])
	}
}

// HydroGravForces runs the combined sweep: hydrodynamics plus softened
// self-gravity inside kernel range, direct summation beyond it, and star
// gravity on top. Gravity touches every pair, so partners come from a
// linear split rather than the neighbour index.
func (u *Update) HydroGravForces(f *Fluid, stars []particle.Star) {
	active := f.ActiveReals(nil)
	u.zeroActive(f, active)
	if len(active) == 0 {
		return
	}

	u.sweep(f, active, func(i int, buf *neibBuf, acc *Accum) {
		u.splitByRange(f, i, buf)
		u.Engine.HydroGravForces(i, f.Parts, buf.neib, acc)
		u.Engine.DirectGravForces(i, f.Parts, buf.direct, acc)
		if len(stars) > 0 {
			u.Engine.StarGravForces(i, f.Parts, stars, acc)
		}
	})

	for _, i := range active {
		u.Engine.PostHydro(&f.Parts[i])
	}
}

// GravForces runs the self-gravity sweep alone: kernel-softened pairs
// inside the support, direct summation beyond, star gravity on top.
func (u *Update) GravForces(f *Fluid, stars []particle.Star) {
	active := f.ActiveReals(nil)
	u.zeroActive(f, active)
	if len(active) == 0 {
		return
	}

	u.sweep(f, active, func(i int, buf *neibBuf, acc *Accum) {
		u.splitByRange(f, i, buf)
		u.Engine.GravForces(i, f.Parts, buf.neib, acc)
		u.Engine.DirectGravForces(i, f.Parts, buf.direct, acc)
		if len(stars) > 0 {
			u.Engine.StarGravForces(i, f.Parts, stars, acc)
		}
	})
}

// FoldGravity adds the gravitational acceleration into the total for
// every active owned particle, so integrators see one acceleration.
// Drivers call it once per step after the force sweep.
func (u *Update) FoldGravity(f *Fluid) {
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if !p.Active || p.Dead {
			continue
		}
		for k := 0; k < f.NDim; k++ {
			p.A[k] += p.AGrav[k]
		}
	}
}

// neibBuf carries a goroutine's reusable neighbour lists.
type neibBuf struct {
	neib   []int
	direct []int
}

// sweep fans fn over the active indices on one goroutine per chunk, then
// folds the scratch blocks into the particle array.
func (u *Update) sweep(f *Fluid, active []int, fn func(i int, buf *neibBuf, acc *Accum)) {
	n := f.Total()
	chunks := u.chunkCount(len(active))
	for len(u.accs) < chunks {
		u.accs = append(u.accs, NewAccum(n))
	}
	accs := u.accs[:chunks]
	for _, acc := range accs {
		acc.Reset(n)
	}

	var wg sync.WaitGroup
	for w := 0; w < chunks; w++ {
		lo, hi := chunkRange(len(active), chunks, w)
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			var buf neibBuf
			for _, i := range active[lo:hi] {
				fn(i, &buf, accs[w])
			}
		}(w, lo, hi)
	}
	wg.Wait()

	u.reduce(f, active, accs)
}

// reduce folds the scratch blocks into the particle array in block
// order. Forces land on active owned particles only; neighbour levels
// merge onto everything, with boundary ghosts folding onto their
// originals in descending index order so ghost-of-ghost chains resolve
// before their sources.
func (u *Update) reduce(f *Fluid, active []int, accs []*Accum) {
	for _, i := range active {
		p := &f.Parts[i]
		for _, acc := range accs {
			for k := 0; k < f.NDim; k++ {
				p.A[k] += acc.A[i][k]
				p.AGrav[k] += acc.AGrav[i][k]
			}
			p.GPot += acc.GPot[i]
			p.DUDt += acc.DUDt[i]
			p.DivV += acc.DivV[i]
		}
	}

	for i := f.Total() - 1; i >= 0; i-- {
		p := &f.Parts[i]
		for _, acc := range accs {
			if acc.LevelNeib[i] > p.LevelNeib {
				p.LevelNeib = acc.LevelNeib[i]
			}
		}
		if p.Kind == particle.PeriodicGhost || p.Kind == particle.MirrorGhost {
			src := &f.Parts[p.IOrig]
			if p.LevelNeib > src.LevelNeib {
				src.LevelNeib = p.LevelNeib
			}
		}
	}
}

// zeroActive clears the force accumulators of the active owned particles
// and the neighbour levels of everything before a force sweep.
func (u *Update) zeroActive(f *Fluid, active []int) {
	n := f.Total()
	for i := 0; i < n; i++ {
		f.Parts[i].LevelNeib = 0
	}
	for _, i := range active {
		p := &f.Parts[i]
		p.A = particle.Vec{}
		p.AGrav = particle.Vec{}
		p.GPot = 0.0
		p.DUDt = 0.0
		p.DivV = 0.0
	}
}

// filterPairs applies the pair-ownership rule in place: from active i
// the sweep keeps neighbour j when j is the higher index or j will not
// run a sweep of its own this step.
func filterPairs(f *Fluid, i int, neib []int) []int {
	kept := neib[:0]
	for _, j := range neib {
		if j == i {
			continue
		}
		if j > i || !f.Parts[j].Active {
			kept = append(kept, j)
		}
	}
	return kept
}

// splitByRange partitions every live particle into kernel-range
// neighbours of i, pair-filtered, and far-field partners for direct
// summation.
func (u *Update) splitByRange(f *Fluid, i int, buf *neibBuf) {
	p := &f.Parts[i]
	buf.neib = buf.neib[:0]
	buf.direct = buf.direct[:0]
	n := f.Total()
	for j := 0; j < n; j++ {
		q := &f.Parts[j]
		if j == i || q.Dead {
			continue
		}
		var dr particle.Vec
		for k := 0; k < f.NDim; k++ {
			dr[k] = q.R[k] - p.R[k]
		}
		drsqd := particle.Dot(dr, dr, f.NDim)
		if drsqd <= p.HRangeSqd || drsqd <= q.HRangeSqd {
			if j > i || !q.Active {
				buf.neib = append(buf.neib, j)
			}
		} else {
			buf.direct = append(buf.direct, j)
		}
	}
}

// chunkCount caps the goroutine count at the work available.
func (u *Update) chunkCount(nactive int) int {
	chunks := u.Workers
	if chunks > nactive {
		chunks = nactive
	}
	if chunks < 1 {
		chunks = 1
	}
	return chunks
}

// chunkRange splits n items into nearly equal contiguous chunks.
func chunkRange(n, chunks, w int) (lo, hi int) {
	size := (n + chunks - 1) / chunks
	lo = w * size
	hi = lo + size
	if lo > n {
		lo = n
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}
