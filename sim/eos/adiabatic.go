package eos

import (
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// Adiabatic leaves the specific internal energy to the energy equation.
type Adiabatic struct {
	gamma   float64
	gammam1 float64
	muBar   float64
}

func NewAdiabatic(p Params) *Adiabatic {
	return &Adiabatic{
		gamma:   p.Gamma,
		gammam1: p.Gamma - 1.0,
		muBar:   p.MuBar,
	}
}

func (e *Adiabatic) Name() string   { return "adiabatic" }
func (e *Adiabatic) Gamma() float64 { return e.gamma }

func (e *Adiabatic) Pressure(p *particle.Particle) float64 {
	return e.gammam1 * p.Rho * p.U
}

func (e *Adiabatic) SoundSpeed(p *particle.Particle) float64 {
	return math.Sqrt(e.gamma * e.gammam1 * p.U)
}

func (e *Adiabatic) SpecificInternalEnergy(p *particle.Particle) float64 {
	return p.U
}

func (e *Adiabatic) Temperature(p *particle.Particle) float64 {
	return e.gammam1 * e.muBar * p.U
}

func (e *Adiabatic) EntropicFunction(p *particle.Particle) float64 {
	return e.gammam1 * p.U * math.Pow(p.Rho, 1.0-e.gamma)
}
