package sph

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/eos"
	"github.com/stefano-meschiari/gandalf/sim/kernel"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// hIterMax bounds the fixed-point phase of the h iteration. One midpoint
// restart follows, then bisection until 5*hIterMax, then divergence.
const hIterMax = 30

// dissipation holds the artificial viscosity and conductivity switches
// shared by the SPH engines.
type dissipation struct {
	avisc     Viscosity
	acond     Conductivity
	alphaVisc float64
	betaVisc  float64
	alphaMin  float64
	tdLength  float64
	eosm      eos.EOS
}

// alphaSource sets the Morris & Monaghan source term once the velocity
// divergence has been normalised: compression pumps alpha towards its
// ceiling, the signal-crossing time over tdLength smoothing lengths
// decays it back to the floor.
func (d *dissipation) alphaSource(p *particle.Particle) {
	if d.avisc != Mon97TD {
		return
	}
	p.DAlphaDt = math.Max(-p.DivV, 0.0)*(d.alphaVisc-p.Alpha) -
		(p.Alpha-d.alphaMin)*p.Sound/(d.tdLength*p.H)
}

// apply adds the dissipation terms for an approaching pair (i, j) and
// returns the increment to the pairwise pressure sum. The kernel gradients
// are negative inside the support, so the increment carries the same
// repulsive sign as the pressure term while the viscous du/dt contribution
// heats both sides.
func (d *dissipation) apply(i, j int, p, q *particle.Particle, dvdr float64,
	wkerni, wkernj float64, acc *Accum) float64 {

	winvrho := 0.25 * (wkerni + wkernj) * (p.InvRho + q.InvRho)
	dpaux := 0.0

	switch d.avisc {
	case Mon97:
		vsignal := p.Sound + q.Sound - d.betaVisc*d.alphaVisc*dvdr
		dpaux -= d.alphaVisc * vsignal * dvdr * winvrho
		uaux := 0.5 * d.alphaVisc * vsignal * dvdr * dvdr * winvrho
		acc.DUDt[i] -= q.M * uaux
		acc.DUDt[j] -= p.M * uaux
	case Mon97TD:
		alphaMean := 0.5 * (p.Alpha + q.Alpha)
		vsignal := p.Sound + q.Sound - d.betaVisc*alphaMean*dvdr
		dpaux -= alphaMean * vsignal * dvdr * winvrho
		uaux := 0.5 * alphaMean * vsignal * dvdr * dvdr * winvrho
		acc.DUDt[i] -= q.M * uaux
		acc.DUDt[j] -= p.M * uaux
	}

	switch d.acond {
	case Wadsley2008:
		uaux := 0.5 * dvdr * (q.U - p.U) * (p.InvRho*wkerni + q.InvRho*wkernj)
		acc.DUDt[i] += q.M * uaux
		acc.DUDt[j] -= p.M * uaux
	case Price2008:
		vsignal := math.Sqrt(math.Abs(d.eosm.Pressure(p)-d.eosm.Pressure(q)) *
			0.5 * (p.InvRho + q.InvRho))
		acc.DUDt[i] += 0.5 * q.M * vsignal * (p.U - q.U) * winvrho
		acc.DUDt[j] -= 0.5 * p.M * vsignal * (p.U - q.U) * winvrho
	}

	return dpaux
}

// Gradh is the grad-h SPH engine: variational density-energy formulation
// with Omega corrections (Springel & Hernquist 2002) and kernel-softened
// conservative self-gravity (Price & Monaghan 2007).
type Gradh struct {
	dissipation
	ndim        int
	ndimF       float64
	invNDim     float64
	kern        kernel.Kernel
	hFac        float64
	hConverge   float64
	hMinSink    float64
	createSinks bool
	softenStars bool
}

func NewGradh(opts Options) *Gradh {
	return &Gradh{
		dissipation: dissipation{
			avisc:     opts.Viscosity,
			acond:     opts.Conductivity,
			alphaVisc: opts.AlphaVisc,
			betaVisc:  opts.BetaVisc,
			alphaMin:  opts.AlphaMin,
			tdLength:  opts.TDLength,
			eosm:      opts.EOS,
		},
		ndim:        opts.NDim,
		ndimF:       float64(opts.NDim),
		invNDim:     1.0 / float64(opts.NDim),
		kern:        opts.Kernel,
		hFac:        opts.HFac,
		hConverge:   opts.HConverge,
		hMinSink:    opts.HMinSink,
		createSinks: opts.CreateSinks,
		softenStars: opts.SoftenStars,
	}
}

func (g *Gradh) Name() string          { return "gradhsph" }
func (g *Gradh) Kernel() kernel.Kernel { return g.kern }
func (g *Gradh) EOS() eos.EOS          { return g.eosm }

// ComputeH solves h = h_fac (m/rho(h))^(1/ndim) for parts[i] by fixed
// point iteration, falling back to bisection, and finalises every
// per-particle smoothed quantity: density, the grad-h corrections, the
// thermodynamic state and the potential-minimum flag. The mu snapshot
// is unused here; the mass density alone closes the iteration.
func (g *Gradh) ComputeH(i int, parts []particle.Particle, cand []int, drsqd, mu []float64,
	hmax float64, stars []particle.Star) (bool, error) {

	p := &parts[i]
	hLower := 0.0
	hUpper := hmax
	if p.SinkID != -1 {
		hLower = g.hMinSink
	}

	iteration := 0
	for {
		iteration++
		p.InvH = 1.0 / p.H
		p.Rho = 0.0
		p.InvOmega = 0.0
		p.Zeta = 0.0
		p.Chi = 0.0
		p.Hfactor = math.Pow(p.InvH, g.ndimF)
		invhsqd := p.InvH * p.InvH

		for jj, j := range cand {
			ssqd := drsqd[jj] * invhsqd
			m := parts[j].M
			p.Rho += m * g.kern.W0S2(ssqd)
			p.InvOmega += m * p.InvH * g.kern.WOmegaS2(ssqd)
			p.Zeta += m * g.kern.WZetaS2(ssqd)
		}

		p.Rho *= p.Hfactor
		p.InvOmega *= p.Hfactor
		p.Zeta *= invhsqd

		if p.Rho > 0.0 {
			p.InvRho = 1.0 / p.Rho
		}

		if p.Rho > 0.0 && p.H > hLower &&
			math.Abs(p.H-g.hFac*math.Pow(p.M*p.InvRho, g.invNDim)) < g.hConverge*p.H {
			break
		}

		switch {
		case iteration < hIterMax:
			// Fixed point. An empty kernel cannot steer it, so grow h
			// instead and let the hmax check expand the candidates.
			if p.Rho < smallNumber {
				p.H *= 2.0
			} else {
				p.H = g.hFac * math.Pow(p.M*p.InvRho, g.invNDim)
			}
		case iteration == hIterMax:
			p.H = 0.5 * (hLower + hUpper)
		case iteration < 5*hIterMax:
			if p.Rho < smallNumber ||
				p.Rho*math.Pow(p.H, g.ndimF) > math.Pow(g.hFac, g.ndimF)*p.M {
				hUpper = p.H
			} else {
				hLower = p.H
			}
			p.H = 0.5 * (hLower + hUpper)
		default:
			return false, fmt.Errorf(
				"%w: particle %d after %d iterations: h=%g rho=%g bounds=[%g,%g] hmax=%g r=%v",
				ErrHIterationDiverged, i, iteration, p.H, p.Rho, hLower, hUpper, hmax, p.R)
		}

		if p.H > hmax {
			return false, nil
		}
		if p.H <= hLower || p.H >= hUpper {
			break
		}
	}

	p.H = math.Max(g.hFac*math.Pow(p.M*p.InvRho, g.invNDim), hLower)
	p.InvH = 1.0 / p.H
	p.HRangeSqd = g.kern.RangeSqd() * p.H * p.H
	p.InvOmega = 1.0 / (1.0 + g.invNDim*p.H*p.InvOmega*p.InvRho)
	p.Zeta = -g.invNDim * p.H * p.Zeta * p.InvRho * p.InvOmega

	p.U = g.eosm.SpecificInternalEnergy(p)
	p.Sound = g.eosm.SoundSpeed(p)
	p.Press = g.eosm.Pressure(p)
	p.Hfactor = math.Pow(p.InvH, g.ndimF+1.0)
	p.Pfactor = p.Press * p.InvRho * p.InvRho * p.InvOmega
	p.DivV = 0.0

	// A particle is a sink candidate only if no neighbour inside the
	// kernel sits in a strictly deeper potential.
	if g.createSinks {
		invhsqd := p.InvH * p.InvH
		p.PotMin = true
		for jj, j := range cand {
			if parts[j].GPot > 1.000000001*p.GPot &&
				drsqd[jj]*invhsqd < g.kern.RangeSqd() {
				p.PotMin = false
				break
			}
		}
	}

	if len(stars) > 0 {
		if g.softenStars {
			for s := range stars {
				invhmean := 2.0 / (p.H + stars[s].H)
				invhsqd := invhmean * invhmean
				var dr particle.Vec
				for k := 0; k < g.ndim; k++ {
					dr[k] = stars[s].R[k] - p.R[k]
				}
				ssqd := particle.Dot(dr, dr, g.ndim) * invhsqd
				p.Chi += stars[s].M * invhsqd * g.kern.WZetaS2(ssqd)
			}
		} else {
			invhsqd := 4.0 * p.InvH * p.InvH
			for s := range stars {
				var dr particle.Vec
				for k := 0; k < g.ndim; k++ {
					dr[k] = stars[s].R[k] - p.R[k]
				}
				ssqd := particle.Dot(dr, dr, g.ndim) * invhsqd
				p.Chi += stars[s].M * invhsqd * g.kern.WZetaS2(ssqd)
			}
		}
		p.Chi = -g.invNDim * p.H * p.Chi * p.InvRho * p.InvOmega
	}

	return p.H <= hmax, nil
}

func (g *Gradh) HydroForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
	p := &parts[i]
	for _, j := range neib {
		q := &parts[j]

		var dr, dv particle.Vec
		for k := 0; k < g.ndim; k++ {
			dr[k] = q.R[k] - p.R[k]
			dv[k] = q.V[k] - p.V[k]
		}
		drmag := math.Sqrt(particle.Dot(dr, dr, g.ndim))
		invdrmag := 1.0 / (drmag + smallNumber)
		for k := 0; k < g.ndim; k++ {
			dr[k] *= invdrmag
		}
		dvdr := particle.Dot(dv, dr, g.ndim)

		wkerni := p.Hfactor * g.kern.W1(drmag*p.InvH)
		wkernj := q.Hfactor * g.kern.W1(drmag*q.InvH)

		acc.DivV[i] -= q.M * dvdr * wkerni
		acc.DivV[j] -= p.M * dvdr * wkernj

		paux := p.Pfactor*wkerni + q.Pfactor*wkernj
		if dvdr < 0.0 {
			paux += g.apply(i, j, p, q, dvdr, wkerni, wkernj, acc)
		}

		for k := 0; k < g.ndim; k++ {
			acc.A[i][k] += q.M * dr[k] * paux
			acc.A[j][k] -= p.M * dr[k] * paux
		}
		if q.Level > acc.LevelNeib[i] {
			acc.LevelNeib[i] = q.Level
		}
		if p.Level > acc.LevelNeib[j] {
			acc.LevelNeib[j] = p.Level
		}
	}
}

func (g *Gradh) HydroGravForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
	p := &parts[i]
	for _, j := range neib {
		q := &parts[j]

		var dr, dv particle.Vec
		for k := 0; k < g.ndim; k++ {
			dr[k] = q.R[k] - p.R[k]
			dv[k] = q.V[k] - p.V[k]
		}
		drmag := math.Sqrt(particle.Dot(dr, dr, g.ndim) + smallNumber)
		invdrmag := 1.0 / drmag
		for k := 0; k < g.ndim; k++ {
			dr[k] *= invdrmag
		}
		dvdr := particle.Dot(dv, dr, g.ndim)

		wkerni := p.Hfactor * g.kern.W1(drmag*p.InvH)
		wkernj := q.Hfactor * g.kern.W1(drmag*q.InvH)

		paux := p.Pfactor*wkerni + q.Pfactor*wkernj
		if dvdr < 0.0 {
			paux += g.apply(i, j, p, q, dvdr, wkerni, wkernj, acc)
		}
		for k := 0; k < g.ndim; k++ {
			acc.A[i][k] += q.M * dr[k] * paux
			acc.A[j][k] -= p.M * dr[k] * paux
		}

		gpaux, gaux := g.pairGrav(p, q, drmag, wkerni, wkernj)
		for k := 0; k < g.ndim; k++ {
			acc.AGrav[i][k] += q.M * dr[k] * gpaux
			acc.AGrav[j][k] -= p.M * dr[k] * gpaux
		}
		acc.GPot[i] += q.M * gaux
		acc.GPot[j] += p.M * gaux

		acc.DivV[i] -= q.M * dvdr * wkerni
		acc.DivV[j] -= p.M * dvdr * wkernj
		if q.Level > acc.LevelNeib[i] {
			acc.LevelNeib[i] = q.Level
		}
		if p.Level > acc.LevelNeib[j] {
			acc.LevelNeib[j] = p.Level
		}
	}
}

// pairGrav returns the symmetrised kernel-softened gravitational force and
// potential weights for a pair inside at least one support radius. The
// zeta and chi terms carry the grad-h and star-softening corrections that
// keep the softened force conservative.
func (g *Gradh) pairGrav(p, q *particle.Particle, drmag, wkerni, wkernj float64) (float64, float64) {
	gpaux := 0.5 * (p.InvH*p.InvH*g.kern.WGrav(drmag*p.InvH) +
		(p.Zeta+p.Chi)*wkerni +
		q.InvH*q.InvH*g.kern.WGrav(drmag*q.InvH) +
		(q.Zeta+q.Chi)*wkernj)
	gaux := 0.5 * (p.InvH*g.kern.WPot(drmag*p.InvH) +
		q.InvH*g.kern.WPot(drmag*q.InvH))
	return gpaux, gaux
}

func (g *Gradh) GravForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
	p := &parts[i]
	for _, j := range neib {
		q := &parts[j]

		var dr particle.Vec
		for k := 0; k < g.ndim; k++ {
			dr[k] = q.R[k] - p.R[k]
		}
		drmag := math.Sqrt(particle.Dot(dr, dr, g.ndim))
		invdrmag := 1.0 / (drmag + smallNumber)
		for k := 0; k < g.ndim; k++ {
			dr[k] *= invdrmag
		}

		wkerni := p.Hfactor * g.kern.W1(drmag*p.InvH)
		wkernj := q.Hfactor * g.kern.W1(drmag*q.InvH)
		gpaux, gaux := g.pairGrav(p, q, drmag, wkerni, wkernj)
		for k := 0; k < g.ndim; k++ {
			acc.AGrav[i][k] += q.M * dr[k] * gpaux
			acc.AGrav[j][k] -= p.M * dr[k] * gpaux
		}
		acc.GPot[i] += q.M * gaux
		acc.GPot[j] += p.M * gaux
	}
}

func (g *Gradh) DirectGravForces(i int, parts []particle.Particle, direct []int, acc *Accum) {
	p := &parts[i]
	for _, j := range direct {
		// Pairs of active particles are owned by the higher index.
		if j <= i && parts[j].Active {
			continue
		}
		q := &parts[j]

		var dr particle.Vec
		for k := 0; k < g.ndim; k++ {
			dr[k] = q.R[k] - p.R[k]
		}
		drsqd := particle.Dot(dr, dr, g.ndim) + smallNumber
		invdrmag := 1.0 / math.Sqrt(drsqd)
		invdr3 := invdrmag * invdrmag * invdrmag

		for k := 0; k < g.ndim; k++ {
			acc.AGrav[i][k] += q.M * dr[k] * invdr3
			acc.AGrav[j][k] -= p.M * dr[k] * invdr3
		}
		acc.GPot[i] += q.M * invdrmag
		acc.GPot[j] += p.M * invdrmag
	}
}

func (g *Gradh) StarGravForces(i int, parts []particle.Particle, stars []particle.Star, acc *Accum) {
	p := &parts[i]
	for s := range stars {
		st := &stars[s]

		var dr particle.Vec
		for k := 0; k < g.ndim; k++ {
			dr[k] = st.R[k] - p.R[k]
		}
		drmag := math.Sqrt(particle.Dot(dr, dr, g.ndim))
		invdrmag := 1.0 / (drmag + smallNumber)
		invhmean := 2.0 / (p.H + st.H)

		paux := st.M * invhmean * invhmean * g.kern.WGrav(drmag*invhmean) * invdrmag
		for k := 0; k < g.ndim; k++ {
			acc.AGrav[i][k] += dr[k] * paux
		}
		acc.GPot[i] += st.M * invhmean * g.kern.WPot(drmag*invhmean)
	}
}

func (g *Gradh) PostHydro(p *particle.Particle) {
	p.DivV *= p.InvRho
	p.DUDt -= g.eosm.Pressure(p) * p.DivV * p.InvRho * p.InvOmega
	g.alphaSource(p)
}
