package ic

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// binaryStars places two stars at apocentre of a bound Keplerian orbit in
// the xy plane, centre of mass at the origin with zero net momentum. Code
// units take G = 1.
func binaryStars(p *Params, box *domain.Box) (*Model, error) {
	if box.NDim < 2 {
		return nil, fmt.Errorf("ic: binary orbits need ndim >= 2, box has ndim=%d", box.NDim)
	}
	if p.M1 <= 0.0 || p.M2 <= 0.0 {
		return nil, fmt.Errorf("ic: star masses must be positive, got %v and %v", p.M1, p.M2)
	}
	if p.SemiMajor <= 0.0 {
		return nil, fmt.Errorf("ic: semi_major must be positive, got %v", p.SemiMajor)
	}
	if p.Ecc < 0.0 || p.Ecc >= 1.0 {
		return nil, fmt.Errorf("ic: eccentricity must lie in [0,1), got %v", p.Ecc)
	}
	if p.HStar <= 0.0 {
		return nil, fmt.Errorf("ic: h_star must be positive, got %v", p.HStar)
	}

	mtot := p.M1 + p.M2
	sep := p.SemiMajor * (1.0 + p.Ecc)
	vrel := math.Sqrt(mtot * (1.0 - p.Ecc) / sep)

	star := func(mass, frac float64) particle.Star {
		return particle.Star{
			R:      particle.Vec{frac * sep, 0.0, 0.0},
			V:      particle.Vec{0.0, frac * vrel, 0.0},
			M:      mass,
			H:      p.HStar,
			Active: true,
			NStep:  1,
		}
	}
	return &Model{Stars: []particle.Star{
		star(p.M1, -p.M2/mtot),
		star(p.M2, p.M1/mtot),
	}}, nil
}
