package ic

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// latticeCube fills the box with a uniform cubic lattice of equal-mass
// particles at density RhoFluid. NSph must be a perfect ndim-th power so
// the lattice comes out square.
func latticeCube(p *Params, box *domain.Box, gamma, hfac float64) (*Model, error) {
	vol, err := boxVolume(box)
	if err != nil {
		return nil, err
	}
	if p.NSph < 1 {
		return nil, fmt.Errorf("ic: nsph must be positive, got %d", p.NSph)
	}
	if p.RhoFluid <= 0.0 {
		return nil, fmt.Errorf("ic: rho_fluid must be positive, got %v", p.RhoFluid)
	}
	side := int(math.Round(math.Pow(float64(p.NSph), 1.0/float64(box.NDim))))
	n := 1
	for k := 0; k < box.NDim; k++ {
		n *= side
	}
	if n != p.NSph {
		return nil, fmt.Errorf("ic: nsph=%d is not a %dd lattice; nearest is %d", p.NSph, box.NDim, n)
	}

	m := p.RhoFluid * vol / float64(p.NSph)
	u := thermalEnergy(p.Press, p.RhoFluid, gamma)
	h := hGuess(m, p.RhoFluid, box.NDim, hfac)
	v := particle.Vec(p.VFluid)

	model := &Model{Parts: make([]particle.Particle, 0, p.NSph)}
	for i := 0; i < p.NSph; i++ {
		var r particle.Vec
		rem := i
		for k := 0; k < box.NDim; k++ {
			r[k] = box.Min[k] + (float64(rem%side)+0.5)*box.Size(k)/float64(side)
			rem /= side
		}
		model.Parts = append(model.Parts, newParticle(r, v, m, h, p.RhoFluid, u))
	}
	return model, nil
}

// randomCube fills the box with uniformly random positions at the same
// bulk state as the lattice. Useful as a noisy relaxation start.
func randomCube(p *Params, box *domain.Box, gamma, hfac float64, rng *rand.Rand) (*Model, error) {
	vol, err := boxVolume(box)
	if err != nil {
		return nil, err
	}
	if p.NSph < 1 {
		return nil, fmt.Errorf("ic: nsph must be positive, got %d", p.NSph)
	}
	if p.RhoFluid <= 0.0 {
		return nil, fmt.Errorf("ic: rho_fluid must be positive, got %v", p.RhoFluid)
	}

	m := p.RhoFluid * vol / float64(p.NSph)
	u := thermalEnergy(p.Press, p.RhoFluid, gamma)
	h := hGuess(m, p.RhoFluid, box.NDim, hfac)
	v := particle.Vec(p.VFluid)

	model := &Model{Parts: make([]particle.Particle, 0, p.NSph)}
	for i := 0; i < p.NSph; i++ {
		var r particle.Vec
		for k := 0; k < box.NDim; k++ {
			r[k] = box.Min[k] + rng.Float64()*box.Size(k)
		}
		model.Parts = append(model.Parts, newParticle(r, v, m, h, p.RhoFluid, u))
	}
	return model, nil
}

func boxVolume(box *domain.Box) (float64, error) {
	vol := 1.0
	for k := 0; k < box.NDim; k++ {
		if box.Size(k) <= 0.0 {
			return 0.0, fmt.Errorf("ic: box axis %d has non-positive size %g", k, box.Size(k))
		}
		vol *= box.Size(k)
	}
	return vol, nil
}
