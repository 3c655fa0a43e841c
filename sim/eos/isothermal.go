package eos

import (
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// Isothermal fixes every particle at temperature Temp0, so the internal
// energy is a constant and pressure scales linearly with density.
type Isothermal struct {
	gamma   float64
	gammam1 float64
	muBar   float64
	temp0   float64
}

func NewIsothermal(p Params) *Isothermal {
	return &Isothermal{
		gamma:   p.Gamma,
		gammam1: p.Gamma - 1.0,
		muBar:   p.MuBar,
		temp0:   p.Temp0,
	}
}

func (e *Isothermal) Name() string   { return "isothermal" }
func (e *Isothermal) Gamma() float64 { return e.gamma }

func (e *Isothermal) Pressure(p *particle.Particle) float64 {
	return e.gammam1 * p.Rho * p.U
}

func (e *Isothermal) SoundSpeed(p *particle.Particle) float64 {
	return math.Sqrt(e.gammam1 * p.U)
}

func (e *Isothermal) SpecificInternalEnergy(p *particle.Particle) float64 {
	return e.temp0 / e.gammam1 / e.muBar
}

func (e *Isothermal) Temperature(p *particle.Particle) float64 {
	return e.temp0
}

func (e *Isothermal) EntropicFunction(p *particle.Particle) float64 {
	return e.gammam1 * p.U * math.Pow(p.Rho, 1.0-e.gamma)
}
