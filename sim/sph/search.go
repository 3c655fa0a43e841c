package sph

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// bigNumber stands in for an unbounded distance or timestep.
const bigNumber = 9.9e30

// Search produces candidate neighbour lists from current positions.
// Rebuild must run after any motion, creation or removal; the query
// methods are read-only afterwards and safe from several goroutines.
type Search interface {
	Name() string

	// Rebuild indexes every live particle, ghosts and imports included.
	Rebuild(f *Fluid)

	// Gather appends the indices of particles within radius of r,
	// including a particle exactly at r.
	Gather(f *Fluid, r particle.Vec, radius float64, out []int) []int

	// GatherScatter appends the indices within max(radius, the
	// neighbour's own kernel reach) of r: the pair set hydrodynamic
	// forces need.
	GatherScatter(f *Fluid, r particle.Vec, radius float64, out []int) []int
}

// NewSearch builds the named candidate search: "bruteforce" or "grid".
func NewSearch(name string, ndim int) (Search, error) {
	switch name {
	case "bruteforce":
		return NewBruteForce(ndim), nil
	case "grid":
		return NewGrid(ndim), nil
	default:
		return nil, fmt.Errorf("sph: unknown neighbour search %q", name)
	}
}

// BruteForce scans the whole array for every query.
type BruteForce struct {
	ndim int
}

func NewBruteForce(ndim int) *BruteForce { return &BruteForce{ndim: ndim} }

func (b *BruteForce) Name() string     { return "bruteforce" }
func (b *BruteForce) Rebuild(f *Fluid) {}

func (b *BruteForce) Gather(f *Fluid, r particle.Vec, radius float64, out []int) []int {
	rsqd := radius * radius
	n := f.Total()
	for j := 0; j < n; j++ {
		p := &f.Parts[j]
		if p.Dead {
			continue
		}
		var dr particle.Vec
		for k := 0; k < b.ndim; k++ {
			dr[k] = p.R[k] - r[k]
		}
		if particle.Dot(dr, dr, b.ndim) <= rsqd {
			out = append(out, j)
		}
	}
	return out
}

func (b *BruteForce) GatherScatter(f *Fluid, r particle.Vec, radius float64, out []int) []int {
	rsqd := radius * radius
	n := f.Total()
	for j := 0; j < n; j++ {
		p := &f.Parts[j]
		if p.Dead {
			continue
		}
		var dr particle.Vec
		for k := 0; k < b.ndim; k++ {
			dr[k] = p.R[k] - r[k]
		}
		drsqd := particle.Dot(dr, dr, b.ndim)
		if drsqd <= rsqd || drsqd <= p.HRangeSqd {
			out = append(out, j)
		}
	}
	return out
}
