// Package sph implements the smoothed-particle-hydrodynamics engines: the
// grad-h scheme with self-gravity and the Saitoh & Makino (2012) internal
// energy formulation, plus the neighbour searches, the parallel sweep that
// drives them, and the leapfrog integrators for the fluid.
//
// # Engines
//
// An Engine owns the per-pair arithmetic only. It never walks neighbour
// lists of its own: the Update sweep gathers candidates, applies the
// pair-ownership rule and hands the engine index lists into a shared
// particle array. Pair contributions are written to an Accum scratch block
// so sweeps can run on several goroutines and reduce deterministically.
//
// # Pair ownership
//
// Every interacting pair is evaluated exactly once per step. The sweep
// visits active particles i in index order and keeps neighbour j when
// j > i or j is inactive; the engine writes both sides of the pair into
// the scratch block, and the reduction discards sides owned by inactive or
// replicated particles. Ghost and imported copies always sit at higher
// indices than owned particles, so pairs against copies are kept
// unconditionally and their reverse contributions dropped.
package sph

import (
	"errors"
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/eos"
	"github.com/stefano-meschiari/gandalf/sim/kernel"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// smallNumber regularises divisions by near-zero separations.
const smallNumber = 1e-20

var (
	// ErrHIterationDiverged reports a smoothing length that failed to
	// converge within the iteration budget.
	ErrHIterationDiverged = errors.New("smoothing length iteration failed to converge")
	// ErrParticleOverflow reports an exhausted particle array.
	ErrParticleOverflow = errors.New("particle array full")
)

// Viscosity selects the artificial viscosity switch.
type Viscosity uint8

const (
	NoViscosity Viscosity = iota
	// Mon97 is the Monaghan (1997) signal-velocity form with fixed alpha.
	Mon97
	// Mon97TD evolves a per-particle alpha between alpha_min and
	// alpha_max (Morris & Monaghan 1997).
	Mon97TD
)

func (v Viscosity) String() string {
	switch v {
	case NoViscosity:
		return "none"
	case Mon97:
		return "mon97"
	case Mon97TD:
		return "mon97td"
	}
	return fmt.Sprintf("viscosity(%d)", uint8(v))
}

// ParseViscosity maps a configuration tag to a Viscosity.
func ParseViscosity(s string) (Viscosity, error) {
	switch s {
	case "none", "":
		return NoViscosity, nil
	case "mon97":
		return Mon97, nil
	case "mon97td":
		return Mon97TD, nil
	}
	return NoViscosity, fmt.Errorf("sph: unknown artificial viscosity %q", s)
}

// Conductivity selects the artificial conductivity switch.
type Conductivity uint8

const (
	NoConductivity Conductivity = iota
	// Wadsley2008 uses the velocity-divergence form of Wadsley et al.
	Wadsley2008
	// Price2008 uses the pressure-jump signal velocity of Price (2008).
	Price2008
)

func (c Conductivity) String() string {
	switch c {
	case NoConductivity:
		return "none"
	case Wadsley2008:
		return "wadsley2008"
	case Price2008:
		return "price2008"
	}
	return fmt.Sprintf("conductivity(%d)", uint8(c))
}

// ParseConductivity maps a configuration tag to a Conductivity.
func ParseConductivity(s string) (Conductivity, error) {
	switch s {
	case "none", "":
		return NoConductivity, nil
	case "wadsley2008":
		return Wadsley2008, nil
	case "price2008":
		return Price2008, nil
	}
	return NoConductivity, fmt.Errorf("sph: unknown artificial conductivity %q", s)
}

// Options configures an SPH engine.
type Options struct {
	NDim         int
	HFac         float64 // smoothing length multiplier h = HFac (m/rho)^(1/ndim)
	HConverge    float64 // relative tolerance on the h fixed point
	HMinSink     float64 // lower h bound for particles inside sinks
	Viscosity    Viscosity
	Conductivity Conductivity
	AlphaVisc    float64
	BetaVisc     float64
	AlphaMin     float64 // floor alpha decays towards (mon97td)
	TDLength     float64 // decay length in units of h (mon97td)
	CreateSinks  bool    // track potential minima for sink candidate searches
	SoftenStars  bool    // mean-h softening of star gravity
	Kernel       kernel.Kernel
	EOS          eos.EOS
}

func (o Options) validate() error {
	if o.NDim < 1 || o.NDim > 3 {
		return fmt.Errorf("sph: ndim must be 1, 2 or 3, got %d", o.NDim)
	}
	if o.HFac <= 0.0 {
		return fmt.Errorf("sph: h_fac must be positive, got %v", o.HFac)
	}
	if o.HConverge <= 0.0 || o.HConverge >= 1.0 {
		return fmt.Errorf("sph: h_converge must lie in (0,1), got %v", o.HConverge)
	}
	if o.AlphaVisc < 0.0 || o.BetaVisc < 0.0 {
		return fmt.Errorf("sph: viscosity coefficients must be non-negative")
	}
	if o.Viscosity == Mon97TD {
		if o.AlphaMin <= 0.0 || o.AlphaMin > o.AlphaVisc {
			return fmt.Errorf("sph: alpha_min must lie in (0, alpha_visc], got %v", o.AlphaMin)
		}
		if o.TDLength <= 0.0 {
			return fmt.Errorf("sph: td_length must be positive, got %v", o.TDLength)
		}
	}
	if o.Kernel == nil {
		return errors.New("sph: kernel is required")
	}
	if o.EOS == nil {
		return errors.New("sph: equation of state is required")
	}
	return nil
}

// Engine computes smoothed particle properties and pair forces. Engines
// hold no mutable state and may be shared across goroutines; all pair
// output goes through the Accum passed in.
type Engine interface {
	Name() string
	Kernel() kernel.Kernel
	EOS() eos.EOS

	// ComputeH iterates the smoothing length of parts[i] over the
	// candidate list cand, whose squared distances are given in drsqd.
	// mu carries the candidates' m*u products snapshot at the start of
	// the sweep; only the energy-density formulation consumes it, and the
	// snapshot keeps concurrent solves off each other's live u stores.
	// It returns false when the support cannot be bounded by hmax; the
	// caller should regather with a larger reach and retry.
	ComputeH(i int, parts []particle.Particle, cand []int, drsqd, mu []float64,
		hmax float64, stars []particle.Star) (bool, error)

	// HydroForces accumulates pressure, viscosity and conductivity
	// contributions for every pair (i, j) with j drawn from neib.
	HydroForces(i int, parts []particle.Particle, neib []int, acc *Accum)

	// HydroGravForces is HydroForces plus kernel-softened self-gravity
	// for neighbours inside the support.
	HydroGravForces(i int, parts []particle.Particle, neib []int, acc *Accum)

	// GravForces accumulates kernel-softened gravity only.
	GravForces(i int, parts []particle.Particle, neib []int, acc *Accum)

	// DirectGravForces accumulates unsoftened 1/r^2 gravity against the
	// far field list. The engine skips active lower-index partners so
	// pairs of active particles are counted once.
	DirectGravForces(i int, parts []particle.Particle, direct []int, acc *Accum)

	// StarGravForces accumulates softened gravity from every star onto
	// parts[i].
	StarGravForces(i int, parts []particle.Particle, stars []particle.Star, acc *Accum)

	// PostHydro normalises the velocity divergence and applies the PdV
	// heating term. Call after the pair sweep has been reduced.
	PostHydro(p *particle.Particle)
}

// New builds the named engine: "gradhsph" or "sm2012sph".
func New(name string, opts Options) (Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	switch name {
	case "gradhsph":
		return NewGradh(opts), nil
	case "sm2012sph":
		return NewSM2012(opts), nil
	default:
		return nil, fmt.Errorf("sph: unknown engine %q", name)
	}
}

// Accum is a per-goroutine scratch block for pair contributions. Slices
// are indexed by particle index and sized to the full array including
// ghosts; the reduction folds blocks together in a fixed order so results
// do not depend on goroutine scheduling.
type Accum struct {
	A         []particle.Vec
	AGrav     []particle.Vec
	GPot      []float64
	DUDt      []float64
	DivV      []float64
	LevelNeib []int
}

// NewAccum returns a scratch block for n particles.
func NewAccum(n int) *Accum {
	return &Accum{
		A:         make([]particle.Vec, n),
		AGrav:     make([]particle.Vec, n),
		GPot:      make([]float64, n),
		DUDt:      make([]float64, n),
		DivV:      make([]float64, n),
		LevelNeib: make([]int, n),
	}
}

// Reset clears the block and grows it to cover n particles.
func (a *Accum) Reset(n int) {
	if cap(a.A) < n {
		a.A = make([]particle.Vec, n)
		a.AGrav = make([]particle.Vec, n)
		a.GPot = make([]float64, n)
		a.DUDt = make([]float64, n)
		a.DivV = make([]float64, n)
		a.LevelNeib = make([]int, n)
		return
	}
	a.A = a.A[:n]
	a.AGrav = a.AGrav[:n]
	a.GPot = a.GPot[:n]
	a.DUDt = a.DUDt[:n]
	a.DivV = a.DivV[:n]
	a.LevelNeib = a.LevelNeib[:n]
	for i := range a.A {
		a.A[i] = particle.Vec{}
		a.AGrav[i] = particle.Vec{}
		a.GPot[i] = 0.0
		a.DUDt[i] = 0.0
		a.DivV[i] = 0.0
		a.LevelNeib[i] = 0
	}
}
