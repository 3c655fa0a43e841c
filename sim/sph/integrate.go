package sph

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// Scheme selects the leapfrog flavour for the fluid.
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

// Steps returns how many integer ticks one block step spans on the
// finest level: DKD needs an addressable midpoint, KDK does not.
func (s Scheme) Steps() int64 {
	if s == DKD {
		return 2
	}
	return 1
}

// ParseScheme maps a configuration tag to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "lfkdk", "":
		return KDK, nil
	case "lfdkd":
		return DKD, nil
	}
	return KDK, fmt.Errorf("sph: unknown integration scheme %q", s)
}

// Integrator advances fluid particles between force evaluations with a
// block-stepped leapfrog. Every predicted quantity is recomputed from
// the step checkpoint on each tick, so repeated Advance calls within a
// block are idempotent.
type Integrator struct {
	NDim   int
	Scheme Scheme

	// EnergyEqn integrates the explicit energy equation; fixed-u closures
	// leave it off and take u from the equation of state instead.
	EnergyEqn bool
	// TDVisc evolves the per-particle viscosity alpha each tick, pinned
	// to [AlphaMin, AlphaMax].
	TDVisc   bool
	AlphaMin float64
	AlphaMax float64

	CourantMult float64
	AccelMult   float64
	EnergyMult  float64
}

// NewIntegrator builds a fluid integrator for the named scheme.
func NewIntegrator(scheme string, ndim int, courantMult, accelMult, energyMult float64) (*Integrator, error) {
	sch, err := ParseScheme(scheme)
	if err != nil {
		return nil, err
	}
	if ndim < 1 || ndim > 3 {
		return nil, fmt.Errorf("sph: ndim must be 1, 2 or 3, got %d", ndim)
	}
	if courantMult <= 0.0 || accelMult <= 0.0 || energyMult <= 0.0 {
		return nil, fmt.Errorf("sph: timestep multipliers must be positive")
	}
	return &Integrator{
		NDim:        ndim,
		Scheme:      sch,
		CourantMult: courantMult,
		AccelMult:   accelMult,
		EnergyMult:  energyMult,
	}, nil
}

// Advance moves every owned particle from its block-step checkpoint to
// the integer time n and flags the particles due a force evaluation: at
// the step midpoint for DKD, at the step end for KDK.
func (in *Integrator) Advance(n int64, tick float64, f *Fluid) {
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead {
			continue
		}
		dn := n - p.NLast
		dt := tick * float64(dn)

		switch in.Scheme {
		case DKD:
			for k := 0; k < in.NDim; k++ {
				p.R[k] = p.R0[k] + p.V0[k]*dt
				p.V[k] = p.V0[k] + p.A0[k]*dt
			}
			p.Active = dn == p.NStep/2
		case KDK:
			for k := 0; k < in.NDim; k++ {
				p.R[k] = p.R0[k] + p.V0[k]*dt + 0.5*p.A0[k]*dt*dt
				p.V[k] = p.V0[k] + p.A0[k]*dt
			}
			p.Active = dn == p.NStep
		}

		if in.EnergyEqn {
			p.U = math.Max(p.U0+p.DUDt0*dt, smallNumber)
		}
		if in.TDVisc {
			p.Alpha = math.Min(math.Max(p.Alpha0+p.DAlphaDt*dt, in.AlphaMin), in.AlphaMax)
		}
	}
}

// Correct applies the end-of-step corrections: the second-order velocity
// kick v += 0.5 (a - a0) dt and, under the energy equation, the
// trapezoidal energy update u = u0 + 0.5 (du/dt + du/dt0) dt.
func (in *Integrator) Correct(n int64, tick float64, f *Fluid) {
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead || n-p.NLast != p.NStep {
			continue
		}
		dt := tick * float64(p.NStep)
		for k := 0; k < in.NDim; k++ {
			p.V[k] += 0.5 * (p.A[k] - p.A0[k]) * dt
		}
		if in.EnergyEqn {
			p.U = math.Max(p.U0+0.5*(p.DUDt+p.DUDt0)*dt, smallNumber)
		}
	}
}

// EndStep checkpoints every particle that finished its block step.
func (in *Integrator) EndStep(n int64, f *Fluid) {
	for i := 0; i < f.NSph; i++ {
		p := &f.Parts[i]
		if p.Dead || n-p.NLast != p.NStep {
			continue
		}
		p.R0 = p.R
		p.V0 = p.V
		p.A0 = p.A
		p.U0 = p.U
		p.DUDt0 = p.DUDt
		p.Alpha0 = p.Alpha
		p.NLast = n
		p.Active = false
	}
}

// Timestep returns the per-particle step limit: the Courant condition on
// the signal speed, the acceleration condition, and under the energy
// equation the heating condition. The Courant condition drops the sound
// speed when hydro forces are off and only the compression timescale
// binds.
func (in *Integrator) Timestep(p *particle.Particle, hydro bool) float64 {
	var dt float64
	if hydro {
		dt = in.CourantMult * p.H / (p.Sound + p.H*math.Abs(p.DivV) + smallNumber)
	} else {
		dt = in.CourantMult * p.H / (p.H*math.Abs(p.DivV) + smallNumber)
	}

	amag := math.Sqrt(particle.Dot(p.A, p.A, in.NDim))
	dt = math.Min(dt, in.AccelMult*math.Sqrt(p.H/(amag+smallNumber)))

	if in.EnergyEqn {
		dt = math.Min(dt, in.EnergyMult*p.U/(math.Abs(p.DUDt)+smallNumber))
	}
	return dt
}
