package eos

import (
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// Barotropic behaves isothermally below the transition density RhoBary and
// stiffens to an adiabat above it, mimicking the switch to optically thick
// collapse without an energy equation.
type Barotropic struct {
	gamma   float64
	gammam1 float64
	muBar   float64
	temp0   float64
	rhoBary float64
}

func NewBarotropic(p Params) *Barotropic {
	return &Barotropic{
		gamma:   p.Gamma,
		gammam1: p.Gamma - 1.0,
		muBar:   p.MuBar,
		temp0:   p.Temp0,
		rhoBary: p.RhoBary,
	}
}

func (e *Barotropic) Name() string   { return "barotropic" }
func (e *Barotropic) Gamma() float64 { return e.gamma }

func (e *Barotropic) Pressure(p *particle.Particle) float64 {
	return e.gammam1 * p.Rho * p.U
}

func (e *Barotropic) SoundSpeed(p *particle.Particle) float64 {
	return math.Sqrt(e.gammam1 * p.U)
}

func (e *Barotropic) SpecificInternalEnergy(p *particle.Particle) float64 {
	return e.temp0 / e.gammam1 / e.muBar *
		(1.0 + math.Pow(p.Rho/e.rhoBary, e.gammam1))
}

func (e *Barotropic) Temperature(p *particle.Particle) float64 {
	return e.temp0 * (1.0 + math.Pow(p.Rho/e.rhoBary, e.gammam1))
}

func (e *Barotropic) EntropicFunction(p *particle.Particle) float64 {
	return e.gammam1 * p.U * math.Pow(p.Rho, 1.0-e.gamma)
}
