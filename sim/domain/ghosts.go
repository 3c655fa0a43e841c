package domain

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

// ghostRange pads the trigger distance so a ghost created at the start of
// a step still covers its origin's kernel after the origin moves.
const ghostRange = 1.1

// Ghosts wraps escaped particles back into the box and maintains the
// boundary ghost segment of a Fluid. KernRange is the kernel support
// radius in units of h.
type Ghosts struct {
	Box       *Box
	KernRange float64
}

// Wrap relocates owned particles that crossed a periodic face back into
// the box, shifting the block-step checkpoint with the position so the
// integrator never sees the jump. Open and mirror faces leave positions
// alone; mirror faces reflect velocities through the force field instead.
func (g *Ghosts) Wrap(f *sph.Fluid) {
	box := g.Box
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		for k := 0; k < box.NDim; k++ {
			if p.R[k] < box.Min[k] && box.BoundLo[k] == Periodic {
				p.R[k] += box.Size(k)
				p.R0[k] += box.Size(k)
			}
			if p.R[k] > box.Max[k] && box.BoundHi[k] == Periodic {
				p.R[k] -= box.Size(k)
				p.R0[k] -= box.Size(k)
			}
		}
	}
}

// Search rebuilds the boundary ghost segment from scratch. tghost is the
// ghost lifetime: a particle moving towards a face is replicated if its
// kernel could reach the face within that time.
//
// Ghosts are generated axis by axis, and every pass scans the ghosts made
// by the previous axes as well, so particles near edges and corners are
// replicated once per crossed face combination. A ghost therefore records
// the single axis of its own creation; chains of origins accumulate the
// full corner shift.
func (g *Ghosts) Search(f *sph.Fluid, tghost float64) error {
	f.ClearCopies()
	box := g.Box
	if box.AllOpen() {
		return nil
	}

	for k := 0; k < box.NDim; k++ {
		if !box.Closed(k) {
			continue
		}
		// f.Total() grows as ghosts are appended; bound the scan to the
		// particles that existed before this axis ran.
		nscan := f.Total()
		for i := 0; i < nscan; i++ {
			p := &f.Parts[i]
			reach := ghostRange * g.KernRange * p.H
			if p.R[k]+math.Min(0.0, p.V[k]*tghost) < box.Min[k]+reach {
				switch box.BoundLo[k] {
				case Periodic:
					if err := g.create(f, i, k, false, p.R[k]+box.Size(k), p.V[k]); err != nil {
						return err
					}
				case Mirror:
					if err := g.create(f, i, k, false, 2.0*box.Min[k]-p.R[k], -p.V[k]); err != nil {
						return err
					}
				}
			}
			if p.R[k]+math.Max(0.0, p.V[k]*tghost) > box.Max[k]-reach {
				switch box.BoundHi[k] {
				case Periodic:
					if err := g.create(f, i, k, true, p.R[k]-box.Size(k), p.V[k]); err != nil {
						return err
					}
				case Mirror:
					if err := g.create(f, i, k, true, 2.0*box.Max[k]-p.R[k], -p.V[k]); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// create appends one ghost copy of particle i with its axis-k coordinate
// and velocity replaced.
func (g *Ghosts) create(f *sph.Fluid, i, k int, upper bool, rk, vk float64) error {
	if f.Total() >= f.NMax() {
		return fmt.Errorf("%w: %d ghosts over %d owned at capacity %d",
			ErrGhostOverflow, f.NGhost, f.NSph, f.NMax())
	}
	ghost := f.Parts[i]
	ghost.R[k] = rk
	ghost.V[k] = vk
	ghost.Active = false
	if g.Box.boundAt(k, upper) == Mirror {
		ghost.Kind = particle.MirrorGhost
	} else {
		ghost.Kind = particle.PeriodicGhost
	}
	ghost.GhostAxis = int8(k)
	ghost.GhostUpper = upper
	ghost.IOrig = i
	return f.AddGhost(ghost)
}

func (b *Box) boundAt(k int, upper bool) Boundary {
	if upper {
		return b.BoundHi[k]
	}
	return b.BoundLo[k]
}

// Refresh copies the full state of each origin onto its ghosts and
// reapplies the stored shift or reflection. Ascending index order makes
// corner chains resolve: a ghost-of-a-ghost copies from an origin that
// was refreshed earlier in the same pass.
func (g *Ghosts) Refresh(f *sph.Fluid) {
	box := g.Box
	for j := 0; j < f.NGhost; j++ {
		i := f.NSph + j
		p := &f.Parts[i]
		kind, axis, upper, iorig := p.Kind, p.GhostAxis, p.GhostUpper, p.IOrig

		*p = f.Parts[iorig]
		p.Kind = kind
		p.GhostAxis = axis
		p.GhostUpper = upper
		p.IOrig = iorig
		p.Active = false

		k := int(axis)
		switch {
		case kind == particle.PeriodicGhost && !upper:
			p.R[k] += box.Size(k)
		case kind == particle.PeriodicGhost && upper:
			p.R[k] -= box.Size(k)
		case kind == particle.MirrorGhost && !upper:
			p.R[k] = 2.0*box.Min[k] - p.R[k]
			p.V[k] = -p.V[k]
		case kind == particle.MirrorGhost && upper:
			p.R[k] = 2.0*box.Max[k] - p.R[k]
			p.V[k] = -p.V[k]
		}
	}
}
