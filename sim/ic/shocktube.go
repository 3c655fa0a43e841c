package ic

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// shocktube lays two uniform one-dimensional lattices against a diaphragm
// at x = 0, left state on [min,0) and right state on [0,max). Particles
// carry equal masses, so the lattice spacing encodes the density jump and
// the counts follow from the mass split.
func shocktube(p *Params, box *domain.Box, gamma, hfac float64) (*Model, error) {
	if box.NDim != 1 {
		return nil, fmt.Errorf("ic: shocktube is one-dimensional, box has ndim=%d", box.NDim)
	}
	if box.Min[0] >= 0.0 || box.Max[0] <= 0.0 {
		return nil, fmt.Errorf("ic: shocktube box must straddle x=0, got [%g,%g]", box.Min[0], box.Max[0])
	}
	if p.NSph < 2 {
		return nil, fmt.Errorf("ic: shocktube needs at least 2 particles, got %d", p.NSph)
	}
	if p.RhoLeft <= 0.0 || p.RhoRight <= 0.0 {
		return nil, fmt.Errorf("ic: shocktube densities must be positive, got %v and %v", p.RhoLeft, p.RhoRight)
	}

	lenL := -box.Min[0]
	lenR := box.Max[0]
	m := (p.RhoLeft*lenL + p.RhoRight*lenR) / float64(p.NSph)
	nL := int(math.Round(p.RhoLeft * lenL / m))
	nR := p.NSph - nL
	if nL < 1 || nR < 1 {
		return nil, fmt.Errorf("ic: shocktube split leaves %d/%d particles; raise nsph", nL, nR)
	}

	uL := thermalEnergy(p.PressLeft, p.RhoLeft, gamma)
	uR := thermalEnergy(p.PressRight, p.RhoRight, gamma)
	hL := hGuess(m, p.RhoLeft, 1, hfac)
	hR := hGuess(m, p.RhoRight, 1, hfac)

	model := &Model{Parts: make([]particle.Particle, 0, p.NSph)}
	dxL := lenL / float64(nL)
	for i := 0; i < nL; i++ {
		r := particle.Vec{box.Min[0] + (float64(i)+0.5)*dxL}
		v := particle.Vec{p.VLeft}
		model.Parts = append(model.Parts, newParticle(r, v, m, hL, p.RhoLeft, uL))
	}
	dxR := lenR / float64(nR)
	for i := 0; i < nR; i++ {
		r := particle.Vec{(float64(i) + 0.5) * dxR}
		v := particle.Vec{p.VRight}
		model.Parts = append(model.Parts, newParticle(r, v, m, hR, p.RhoRight, uR))
	}
	return model, nil
}
