package cluster

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// ExportGhosts sends copies of owned particles, and of the boundary
// images built from them, to every peer whose neighbour sums can reach
// them, and appends the copies received in return as imported ghosts.
// Boundary images must travel too: across a periodic seam the owner's
// real sits a full box length away and only its wrapped image lands
// inside the peer's reach. A peer qualifies when its h-box overlaps
// this worker's r-box (or the reverse); a candidate is exported when
// its own kernel sphere reaches the peer's r-box or its position lies
// inside the peer's h-box. Counts travel in one all-to-all, payloads in
// a second. The export lists are kept for RefreshGhosts.
//
// Boundary ghosts must already be in place: imports land after them and
// the segment layout must not change before the refresh.
func (w *Worker) ExportGhosts(f *sph.Fluid) error {
	size := w.comm.Size()
	w.exports = make([][]int, size)
	w.importN = make([]int, size)
	w.importA = f.NSph + f.NGhost
	if size == 1 {
		return nil
	}

	ndim := w.Tree.NDim
	for peer := 0; peer < size; peer++ {
		if peer == w.Rank {
			continue
		}
		if !w.HBoxes[peer].Overlaps(w.RBoxes[w.Rank], ndim) &&
			!w.HBoxes[w.Rank].Overlaps(w.RBoxes[peer], ndim) {
			continue
		}
		for i := 0; i < f.NSph+f.NGhost; i++ {
			p := &f.Parts[i]
			if p.Dead {
				continue
			}
			if w.RBoxes[peer].DistSqd(p.R, ndim) <= p.HRangeSqd ||
				w.HBoxes[peer].DistSqd(p.R, ndim) == 0 {
				w.exports[peer] = append(w.exports[peer], i)
			}
		}
	}

	counts := make([]any, size)
	for peer := range counts {
		counts[peer] = len(w.exports[peer])
	}
	gotCounts, err := w.comm.Alltoall(w.Rank, "ghost.count", counts)
	if err != nil {
		return err
	}
	payload := w.packExports(f)
	gotParts, err := w.comm.Alltoall(w.Rank, "ghost.parts", payload)
	if err != nil {
		return err
	}
	for from := 0; from < size; from++ {
		if from == w.Rank {
			continue
		}
		ps := gotParts[from].([]particle.Particle)
		if len(ps) != gotCounts[from].(int) {
			w.comm.Abort()
			return fmt.Errorf("%w: rank %d announced %d ghosts to rank %d but sent %d",
				ErrCommMismatch, from, gotCounts[from].(int), w.Rank, len(ps))
		}
		w.importN[from] = len(ps)
		for _, p := range ps {
			p.Active = false
			if err := f.AddImported(p); err != nil {
				w.comm.Abort()
				return err
			}
		}
	}
	return nil
}

// RefreshGhosts re-sends the current state of the exported particles and
// overwrites the imported copies in place. The export lists, counts and
// segment offsets from the last ExportGhosts are reused; the number of
// owned particles and boundary ghosts must not have changed in between.
func (w *Worker) RefreshGhosts(f *sph.Fluid) error {
	size := w.comm.Size()
	if size == 1 {
		return nil
	}
	if w.exports == nil {
		return fmt.Errorf("cluster: rank %d refreshing ghosts before exchange", w.Rank)
	}
	if w.importA != f.NSph+f.NGhost {
		w.comm.Abort()
		return fmt.Errorf("%w: rank %d import segment moved from %d to %d between exchange and refresh",
			ErrCommMismatch, w.Rank, w.importA, f.NSph+f.NGhost)
	}
	payload := w.packExports(f)
	got, err := w.comm.Alltoall(w.Rank, "ghost.update", payload)
	if err != nil {
		return err
	}
	idx := w.importA
	for from := 0; from < size; from++ {
		if from == w.Rank {
			continue
		}
		ps := got[from].([]particle.Particle)
		if len(ps) != w.importN[from] {
			w.comm.Abort()
			return fmt.Errorf("%w: rank %d sent %d ghost updates to rank %d, expected %d",
				ErrCommMismatch, from, len(ps), w.Rank, w.importN[from])
		}
		for _, p := range ps {
			p.Kind = particle.Imported
			p.Active = false
			f.Parts[idx] = p
			idx++
		}
	}
	return nil
}

func (w *Worker) packExports(f *sph.Fluid) []any {
	payload := make([]any, w.comm.Size())
	for peer, ids := range w.exports {
		ps := make([]particle.Particle, len(ids))
		for n, i := range ids {
			ps[n] = f.Parts[i]
		}
		payload[peer] = ps
	}
	return payload
}

// FoldLevels returns the neighbour-level stamps that force sweeps left
// on imported copies to the workers that own the originals. Imports
// arrive in export-list order, so the sender maps each stamp back by
// position; stamps on exported boundary images forward to the image's
// origin. Runs after the force sweeps and before levels are adjusted,
// while the export lists from the last ExportGhosts are still in step.
func (w *Worker) FoldLevels(f *sph.Fluid) error {
	size := w.comm.Size()
	if size == 1 {
		return nil
	}
	if w.exports == nil {
		return fmt.Errorf("cluster: rank %d folding levels before exchange", w.Rank)
	}

	payload := make([]any, size)
	idx := w.importA
	for from := 0; from < size; from++ {
		if from == w.Rank {
			continue
		}
		levels := make([]int, w.importN[from])
		for k := range levels {
			levels[k] = f.Parts[idx].LevelNeib
			idx++
		}
		payload[from] = levels
	}
	got, err := w.comm.Alltoall(w.Rank, "ghost.levels", payload)
	if err != nil {
		return err
	}

	for peer := 0; peer < size; peer++ {
		if peer == w.Rank {
			continue
		}
		levels := got[peer].([]int)
		if len(levels) != len(w.exports[peer]) {
			w.comm.Abort()
			return fmt.Errorf("%w: rank %d returned %d level stamps to rank %d, expected %d",
				ErrCommMismatch, peer, len(levels), w.Rank, len(w.exports[peer]))
		}
		for k, i := range w.exports[peer] {
			p := &f.Parts[i]
			for p.Kind.IsGhost() {
				p = &f.Parts[p.IOrig]
			}
			if levels[k] > p.LevelNeib {
				p.LevelNeib = levels[k]
			}
		}
	}
	return nil
}
