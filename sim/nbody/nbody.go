// Package nbody integrates star particles: direct unsoftened star-star
// gravity, kernel-softened star-gas gravity, and the two leapfrog
// flavours used for the fluid. Stars carry no pressure terms, so the
// integrator here is the whole of their dynamics.
package nbody

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/kernel"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// smallNumber regularises divisions by near-zero separations.
const smallNumber = 1e-20

// Scheme selects the leapfrog variant.
type Scheme uint8

const (
	// KDK drifts to second order and evaluates forces at the end of the
	// step.
	KDK Scheme = iota
	// DKD drifts to first order and evaluates forces at the midpoint.
	DKD
)

func (s Scheme) String() string {
	switch s {
	case KDK:
		return "lfkdk"
	case DKD:
		return "lfdkd"
	}
	return fmt.Sprintf("scheme(%d)", uint8(s))
}

// ParseScheme maps a configuration tag to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "lfkdk", "":
		return KDK, nil
	case "lfdkd":
		return DKD, nil
	}
	return KDK, fmt.Errorf("nbody: unknown integration scheme %q", s)
}

// Integrator advances star particles with a block-stepped leapfrog.
type Integrator struct {
	NDim   int
	Scheme Scheme
	Mult   float64 // timestep multiplier on sqrt(h/|a|)
	Kern   kernel.Kernel
}

// Steps returns how many integer ticks one block step spans on the
// finest level: DKD needs an addressable midpoint, KDK does not.
func (s Scheme) Steps() int64 {
	if s == DKD {
		return 2
	}
	return 1
}

// New builds a star integrator for the named scheme.
func New(scheme string, ndim int, mult float64, kern kernel.Kernel) (*Integrator, error) {
	sch, err := ParseScheme(scheme)
	if err != nil {
		return nil, err
	}
	if ndim < 1 || ndim > 3 {
		return nil, fmt.Errorf("nbody: ndim must be 1, 2 or 3, got %d", ndim)
	}
	if mult <= 0.0 {
		return nil, fmt.Errorf("nbody: timestep multiplier must be positive, got %v", mult)
	}
	return &Integrator{NDim: ndim, Scheme: sch, Mult: mult, Kern: kern}, nil
}

// ZeroActive clears the force accumulators of active stars before a new
// force pass.
func (nb *Integrator) ZeroActive(stars []particle.Star) {
	for i := range stars {
		if !stars[i].Active {
			continue
		}
		stars[i].A = particle.Vec{}
		stars[i].GPot = 0.0
	}
}

// DirectGravForces sums unsoftened 1/r^2 gravity onto every active star
// from every other star.
func (nb *Integrator) DirectGravForces(stars []particle.Star) {
	for i := range stars {
		if !stars[i].Active {
			continue
		}
		for j := range stars {
			if i == j {
				continue
			}
			var dr particle.Vec
			for k := 0; k < nb.NDim; k++ {
				dr[k] = stars[j].R[k] - stars[i].R[k]
			}
			drsqd := particle.Dot(dr, dr, nb.NDim) + smallNumber
			invdrmag := 1.0 / math.Sqrt(drsqd)
			invdr3 := invdrmag * invdrmag * invdrmag
			for k := 0; k < nb.NDim; k++ {
				stars[i].A[k] += stars[j].M * dr[k] * invdr3
			}
			stars[i].GPot += stars[j].M * invdrmag
		}
	}
}

// GasGravForces sums kernel-softened gravity from the first nsph fluid
// particles onto every active star, with the mean softening length
// 2/(h_star + h_gas). The reverse force on the gas is applied inside the
// SPH sweep with the same softening, so the pair stays antisymmetric.
func (nb *Integrator) GasGravForces(stars []particle.Star, parts []particle.Particle, nsph int) {
	for i := range stars {
		if !stars[i].Active {
			continue
		}
		for j := 0; j < nsph; j++ {
			p := &parts[j]
			if p.Dead {
				continue
			}
			var dr particle.Vec
			for k := 0; k < nb.NDim; k++ {
				dr[k] = p.R[k] - stars[i].R[k]
			}
			drmag := math.Sqrt(particle.Dot(dr, dr, nb.NDim))
			invdrmag := 1.0 / (drmag + smallNumber)
			invhmean := 2.0 / (stars[i].H + p.H)

			paux := p.M * invhmean * invhmean * nb.Kern.WGrav(drmag*invhmean) * invdrmag
			for k := 0; k < nb.NDim; k++ {
				stars[i].A[k] += dr[k] * paux
			}
			stars[i].GPot += p.M * invhmean * nb.Kern.WPot(drmag*invhmean)
		}
	}
}

// Advance moves every star from its block-step checkpoint to the integer
// time n and flags the stars due a force evaluation: at the step midpoint
// for DKD, at the step end for KDK.
func (nb *Integrator) Advance(n int64, timestep float64, stars []particle.Star) {
	for i := range stars {
		s := &stars[i]
		dn := n - s.NLast
		dt := timestep * float64(dn)

		switch nb.Scheme {
		case DKD:
			for k := 0; k < nb.NDim; k++ {
				s.R[k] = s.R0[k] + s.V0[k]*dt
				s.V[k] = s.V0[k] + s.A0[k]*dt
			}
			s.Active = dn == s.NStep/2
		case KDK:
			for k := 0; k < nb.NDim; k++ {
				s.R[k] = s.R0[k] + s.V0[k]*dt + 0.5*s.A0[k]*dt*dt
				s.V[k] = s.V0[k] + s.A0[k]*dt
			}
			s.Active = dn == s.NStep
		}
	}
}

// Correct applies the end-of-step velocity correction
// v += 0.5 (a - a0) dt, completing the second-order kick.
func (nb *Integrator) Correct(n int64, timestep float64, stars []particle.Star) {
	for i := range stars {
		s := &stars[i]
		if n-s.NLast != s.NStep {
			continue
		}
		dt := timestep * float64(s.NStep)
		for k := 0; k < nb.NDim; k++ {
			s.V[k] += 0.5 * (s.A[k] - s.A0[k]) * dt
		}
	}
}

// EndStep checkpoints every star that finished its block step.
func (nb *Integrator) EndStep(n int64, stars []particle.Star) {
	for i := range stars {
		s := &stars[i]
		if n-s.NLast != s.NStep {
			continue
		}
		s.R0 = s.R
		s.V0 = s.V
		s.A0 = s.A
		s.NLast = n
		s.Active = false
	}
}

// Timestep returns the acceleration-limited step for one star.
func (nb *Integrator) Timestep(s *particle.Star) float64 {
	amag := math.Sqrt(particle.Dot(s.A, s.A, nb.NDim))
	return nb.Mult * math.Sqrt(s.H/(amag+smallNumber))
}
