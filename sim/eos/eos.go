// Package eos implements the thermodynamic closures that map a particle's
// density and specific internal energy to pressure, sound speed and
// temperature.
//
// Three closures are recognised. The isothermal and barotropic forms fix u
// as a function of density alone, and the SPH engine overwrites the
// particle's u from SpecificInternalEnergy after every density update. The
// adiabatic form leaves u to the energy equation and returns it unchanged.
package eos

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// EOS is the closure queried by the SPH engine after each density update.
type EOS interface {
	Name() string
	Gamma() float64
	Pressure(p *particle.Particle) float64
	SoundSpeed(p *particle.Particle) float64
	SpecificInternalEnergy(p *particle.Particle) float64
	Temperature(p *particle.Particle) float64
	// EntropicFunction returns K = P/rho^gamma.
	EntropicFunction(p *particle.Particle) float64
}

// Params carries the thermodynamic constants shared by the closures.
type Params struct {
	Gamma   float64 // ratio of specific heats
	MuBar   float64 // mean gas particle mass
	Temp0   float64 // temperature scale
	RhoBary float64 // barotropic transition density
}

// New builds the named closure. Unknown names and non-physical constants
// are configuration errors.
func New(name string, p Params) (EOS, error) {
	if p.Gamma <= 1.0 {
		return nil, fmt.Errorf("eos: gamma must exceed 1, got %v", p.Gamma)
	}
	if p.MuBar <= 0.0 {
		return nil, fmt.Errorf("eos: mu_bar must be positive, got %v", p.MuBar)
	}
	switch name {
	case "isothermal":
		return NewIsothermal(p), nil
	case "barotropic":
		if p.RhoBary <= 0.0 {
			return nil, fmt.Errorf("eos: rho_bary must be positive, got %v", p.RhoBary)
		}
		return NewBarotropic(p), nil
	case "adiabatic":
		return NewAdiabatic(p), nil
	default:
		return nil, fmt.Errorf("eos: unknown equation of state %q", name)
	}
}
