package ic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// uniformSphere draws NSph uniformly random positions inside a sphere of
// the given radius centred on the origin, sharing MTotal equally.
func uniformSphere(p *Params, box *domain.Box, gamma, hfac float64, rng *rand.Rand) (*Model, error) {
	if err := validateSphere(p); err != nil {
		return nil, err
	}
	rho := p.MTotal / sphereVolume(p.Radius, box.NDim)
	m := p.MTotal / float64(p.NSph)
	u := thermalEnergy(p.Press, rho, gamma)
	h := hGuess(m, rho, box.NDim, hfac)
	v := particle.Vec(p.VFluid)

	model := &Model{Parts: make([]particle.Particle, 0, p.NSph)}
	for i := 0; i < p.NSph; i++ {
		r := ballPoint(rng, box.NDim)
		for k := 0; k < box.NDim; k++ {
			r[k] *= p.Radius
		}
		model.Parts = append(model.Parts, newParticle(r, v, m, h, rho, u))
	}
	return model, nil
}

// bossBodenheimer builds the rotating perturbed cloud of Boss &
// Bodenheimer (1979): a uniform sphere whose azimuthal density carries an
// m=2 perturbation rho(phi) = rho0 (1 + amp cos 2phi), in solid-body
// rotation about the z axis. The perturbation is imposed by remapping
// each particle's azimuth through the inverse of the cumulative density,
// solved by Newton iteration.
func bossBodenheimer(p *Params, box *domain.Box, gamma, hfac float64, rng *rand.Rand) (*Model, error) {
	if box.NDim != 3 {
		return nil, fmt.Errorf("ic: bossbodenheimer is three-dimensional, box has ndim=%d", box.NDim)
	}
	if err := validateSphere(p); err != nil {
		return nil, err
	}
	if p.Amp < 0.0 || p.Amp >= 1.0 {
		return nil, fmt.Errorf("ic: perturbation amplitude must lie in [0,1), got %v", p.Amp)
	}
	rho := p.MTotal / sphereVolume(p.Radius, 3)
	m := p.MTotal / float64(p.NSph)
	u := thermalEnergy(p.Press, rho, gamma)
	h := hGuess(m, rho, 3, hfac)

	model := &Model{Parts: make([]particle.Particle, 0, p.NSph)}
	for i := 0; i < p.NSph; i++ {
		r := ballPoint(rng, 3)
		for k := 0; k < 3; k++ {
			r[k] *= p.Radius
		}
		if p.Amp > 0.0 {
			rcyl := math.Hypot(r[0], r[1])
			phi := perturbedAzimuth(math.Atan2(r[1], r[0]), p.Amp)
			r[0] = rcyl * math.Cos(phi)
			r[1] = rcyl * math.Sin(phi)
		}
		v := particle.Vec{-p.AngVel * r[1], p.AngVel * r[0], 0.0}
		model.Parts = append(model.Parts, newParticle(r, v, m, h, rho, u))
	}
	return model, nil
}

func validateSphere(p *Params) error {
	if p.NSph < 1 {
		return fmt.Errorf("ic: nsph must be positive, got %d", p.NSph)
	}
	if p.MTotal <= 0.0 {
		return fmt.Errorf("ic: m_total must be positive, got %v", p.MTotal)
	}
	if p.Radius <= 0.0 {
		return fmt.Errorf("ic: radius must be positive, got %v", p.Radius)
	}
	return nil
}

func sphereVolume(radius float64, ndim int) float64 {
	switch ndim {
	case 1:
		return 2.0 * radius
	case 2:
		return math.Pi * radius * radius
	}
	return 4.0 * math.Pi * radius * radius * radius / 3.0
}

// ballPoint rejection-samples a uniform point in the unit ball.
func ballPoint(rng *rand.Rand, ndim int) particle.Vec {
	for {
		var r particle.Vec
		for k := 0; k < ndim; k++ {
			r[k] = 2.0*rng.Float64() - 1.0
		}
		if particle.Dot(r, r, ndim) <= 1.0 {
			return r
		}
	}
}

// perturbedAzimuth solves phi + (amp/2) sin 2phi = phi0 for phi. A
// uniform phi0 then lands with density proportional to 1 + amp cos 2phi.
// The derivative 1 + amp cos 2phi stays positive for amp < 1, so the
// Newton step never stalls.
func perturbedAzimuth(phi0, amp float64) float64 {
	phi := phi0
	for i := 0; i < 50; i++ {
		f := phi + 0.5*amp*math.Sin(2.0*phi) - phi0
		if math.Abs(f) < 1.0e-10 {
			break
		}
		phi -= f / (1.0 + amp*math.Cos(2.0*phi))
	}
	return phi
}
