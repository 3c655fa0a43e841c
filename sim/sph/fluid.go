package sph

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// Fluid holds a worker's particle array in three contiguous segments:
// owned particles in [0, NSph), boundary ghosts in [NSph, NSph+NGhost),
// and copies imported from peer workers after that. The segment layout is
// what makes the pair-ownership rule cheap: every replicated copy has a
// higher index than every owned particle.
//
// The array never grows past its construction capacity. Ghost creation and
// imports fail with ErrParticleOverflow instead of reallocating, so index
// lists built earlier in a step stay valid.
type Fluid struct {
	NDim      int
	Parts     []particle.Particle
	NSph      int
	NGhost    int
	NImported int
}

// NewFluid returns an empty container with room for nmax particles
// including ghosts and imports.
func NewFluid(ndim, nmax int) *Fluid {
	return &Fluid{
		NDim:  ndim,
		Parts: make([]particle.Particle, 0, nmax),
	}
}

// Total counts owned particles plus every replicated copy.
func (f *Fluid) Total() int { return f.NSph + f.NGhost + f.NImported }

// NMax is the fixed capacity of the particle array.
func (f *Fluid) NMax() int { return cap(f.Parts) }

// AddParticle appends an owned particle. Only valid while no ghosts or
// imports are present.
func (f *Fluid) AddParticle(p particle.Particle) error {
	if f.NGhost > 0 || f.NImported > 0 {
		return fmt.Errorf("sph: cannot add owned particles while %d copies are present",
			f.NGhost+f.NImported)
	}
	if len(f.Parts) == cap(f.Parts) {
		return fmt.Errorf("%w: %d owned particles at capacity %d",
			ErrParticleOverflow, f.NSph, cap(f.Parts))
	}
	p.Kind = particle.Real
	p.IOrig = -1
	f.Parts = append(f.Parts, p)
	f.NSph++
	return nil
}

// AddGhost appends a boundary ghost. Only valid before imports.
func (f *Fluid) AddGhost(p particle.Particle) error {
	if f.NImported > 0 {
		return fmt.Errorf("sph: boundary ghosts must be created before imports")
	}
	if len(f.Parts) == cap(f.Parts) {
		return fmt.Errorf("%w: %d ghosts over %d owned at capacity %d",
			ErrParticleOverflow, f.NGhost, f.NSph, cap(f.Parts))
	}
	f.Parts = append(f.Parts, p)
	f.NGhost++
	return nil
}

// AddImported appends a copy received from a peer worker.
func (f *Fluid) AddImported(p particle.Particle) error {
	if len(f.Parts) == cap(f.Parts) {
		return fmt.Errorf("%w: %d imports over %d owned+ghost at capacity %d",
			ErrParticleOverflow, f.NImported, f.NSph+f.NGhost, cap(f.Parts))
	}
	p.Kind = particle.Imported
	f.Parts = append(f.Parts, p)
	f.NImported++
	return nil
}

// ClearCopies drops every ghost and imported copy, leaving only owned
// particles.
func (f *Fluid) ClearCopies() {
	f.Parts = f.Parts[:f.NSph]
	f.NGhost = 0
	f.NImported = 0
}

// ActiveReals appends the indices of owned particles flagged active.
func (f *Fluid) ActiveReals(out []int) []int {
	for i := 0; i < f.NSph; i++ {
		if f.Parts[i].Active && !f.Parts[i].Dead {
			out = append(out, i)
		}
	}
	return out
}

// CompactDead removes particles consumed by accretion, preserving the
// relative order of survivors, and returns how many were dropped. Copies
// must have been cleared first: compaction renumbers owned particles.
func (f *Fluid) CompactDead() int {
	if f.NGhost > 0 || f.NImported > 0 {
		return 0
	}
	kept := 0
	for i := 0; i < f.NSph; i++ {
		if f.Parts[i].Dead {
			continue
		}
		if kept != i {
			f.Parts[kept] = f.Parts[i]
		}
		kept++
	}
	dropped := f.NSph - kept
	f.Parts = f.Parts[:kept]
	f.NSph = kept
	return dropped
}

// RemoveReals deletes the owned particles whose indices are set in the
// given mask, preserving order. Used when migrating particles to a peer.
func (f *Fluid) RemoveReals(leaving map[int]bool) int {
	if len(leaving) == 0 || f.NGhost > 0 || f.NImported > 0 {
		return 0
	}
	kept := 0
	for i := 0; i < f.NSph; i++ {
		if leaving[i] {
			continue
		}
		if kept != i {
			f.Parts[kept] = f.Parts[i]
		}
		kept++
	}
	dropped := f.NSph - kept
	f.Parts = f.Parts[:kept]
	f.NSph = kept
	return dropped
}
