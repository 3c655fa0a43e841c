package sph

import (
	"fmt"
	"math"

	"github.com/stefano-meschiari/gandalf/sim/eos"
	"github.com/stefano-meschiari/gandalf/sim/kernel"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// SM2012 is the Saitoh & Makino (2012) formulation: the pressure force is
// built from the smoothed internal energy density q = sum m_j u_j W
// instead of the mass density, which removes the spurious surface tension
// at contact discontinuities. Hydrodynamics only: the gravity entry points
// are stubs and the configuration layer rejects self-gravity runs with
// this engine.
type SM2012 struct {
	dissipation
	ndim        int
	ndimF       float64
	invNDim     float64
	kern        kernel.Kernel
	hFac        float64
	hConverge   float64
	hMinSink    float64
	gammam1     float64
	createSinks bool
	softenStars bool
}

func NewSM2012(opts Options) *SM2012 {
	return &SM2012{
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
		gammam1:     opts.EOS.Gamma() - 1.0,
		createSinks: opts.CreateSinks,
		softenStars: opts.SoftenStars,
	}
}

func (e *SM2012) Name() string          { return "sm2012sph" }
func (e *SM2012) Kernel() kernel.Kernel { return e.kern }
func (e *SM2012) EOS() eos.EOS          { return e.eosm }

// ComputeH mirrors the grad-h solver but additionally accumulates the
// smoothed energy density q from the mu snapshot, whose inverse replaces
// one density factor in the pressure sum.
func (e *SM2012) ComputeH(i int, parts []particle.Particle, cand []int, drsqd, mu []float64,
	hmax float64, stars []particle.Star) (bool, error) {

	p := &parts[i]
	hLower := 0.0
	hUpper := hmax
	if p.SinkID != -1 {
		hLower = e.hMinSink
	}

	iteration := 0
	for {
		iteration++
		p.InvH = 1.0 / p.H
		p.Rho = 0.0
		p.InvOmega = 0.0
		p.Zeta = 0.0
		p.Chi = 0.0
		p.Q = 0.0
		p.Hfactor = math.Pow(p.InvH, e.ndimF)
		invhsqd := p.InvH * p.InvH

		for jj, j := range cand {
			ssqd := drsqd[jj] * invhsqd
			w0 := e.kern.W0S2(ssqd)
			m := parts[j].M
			p.Rho += m * w0
			p.InvOmega += m * p.InvH * e.kern.WOmegaS2(ssqd)
			p.Q += mu[jj] * w0
			p.Zeta += m * e.kern.WZetaS2(ssqd)
		}

		p.Rho *= p.Hfactor
		p.InvOmega *= p.Hfactor
		p.Q *= p.Hfactor
		p.Zeta *= invhsqd

		if p.Rho > 0.0 {
			p.InvRho = 1.0 / p.Rho
		}

		if p.Rho > 0.0 && p.H > hLower &&
			math.Abs(p.H-e.hFac*math.Pow(p.M*p.InvRho, e.invNDim)) < e.hConverge*p.H {
			break
		}

		switch {
		case iteration < hIterMax:
			if p.Rho < smallNumber {
				p.H *= 2.0
			} else {
				p.H = e.hFac * math.Pow(p.M*p.InvRho, e.invNDim)
			}
		case iteration == hIterMax:
			p.H = 0.5 * (hLower + hUpper)
		case iteration < 5*hIterMax:
			if p.Rho < smallNumber ||
				p.Rho*math.Pow(p.H, e.ndimF) > math.Pow(e.hFac, e.ndimF)*p.M {
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

	p.H = math.Max(e.hFac*math.Pow(p.M*p.InvRho, e.invNDim), hLower)
	p.InvH = 1.0 / p.H
	p.HRangeSqd = e.kern.RangeSqd() * p.H * p.H
	p.InvOmega = 1.0 / (1.0 + e.invNDim*p.H*p.InvOmega*p.InvRho)
	p.Zeta = -e.invNDim * p.H * p.Zeta * p.InvRho * p.InvOmega
	p.InvQ = 1.0 / p.Q

	p.U = e.eosm.SpecificInternalEnergy(p)
	p.Sound = e.eosm.SoundSpeed(p)
	p.Press = e.eosm.Pressure(p)
	p.Hfactor = math.Pow(p.InvH, e.ndimF+1.0)
	p.Pfactor = p.Press * p.InvRho * p.InvQ
	p.DivV = 0.0

	if e.createSinks {
		invhsqd := p.InvH * p.InvH
		p.PotMin = true
		for jj, j := range cand {
			if parts[j].GPot > 1.000000001*p.GPot &&
				drsqd[jj]*invhsqd < e.kern.RangeSqd() {
				p.PotMin = false
				break
			}
		}
	}

	if len(stars) > 0 {
		if e.softenStars {
			for s := range stars {
				invhmean := 2.0 / (p.H + stars[s].H)
				invhsqd := invhmean * invhmean
				var dr particle.Vec
				for k := 0; k < e.ndim; k++ {
					dr[k] = stars[s].R[k] - p.R[k]
				}
				ssqd := particle.Dot(dr, dr, e.ndim) * invhsqd
				p.Chi += stars[s].M * invhsqd * e.kern.WZetaS2(ssqd)
			}
		} else {
			invhsqd := 4.0 * p.InvH * p.InvH
			for s := range stars {
				var dr particle.Vec
				for k := 0; k < e.ndim; k++ {
					dr[k] = stars[s].R[k] - p.R[k]
				}
				ssqd := particle.Dot(dr, dr, e.ndim) * invhsqd
				p.Chi += stars[s].M * invhsqd * e.kern.WZetaS2(ssqd)
			}
		}
		p.Chi = -e.invNDim * p.H * p.Chi * p.InvRho * p.InvOmega
	}

	return p.H <= hmax, nil
}

func (e *SM2012) HydroForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
	p := &parts[i]
	for _, j := range neib {
		q := &parts[j]

		var dr, dv particle.Vec
		for k := 0; k < e.ndim; k++ {
			dr[k] = q.R[k] - p.R[k]
			dv[k] = q.V[k] - p.V[k]
		}
		drmag := math.Sqrt(particle.Dot(dr, dr, e.ndim))
		invdrmag := 1.0 / (drmag + smallNumber)
		for k := 0; k < e.ndim; k++ {
			dr[k] *= invdrmag
		}
		dvdr := particle.Dot(dv, dr, e.ndim)

		wkerni := p.Hfactor * e.kern.W1(drmag*p.InvH)
		wkernj := q.Hfactor * e.kern.W1(drmag*q.InvH)

		acc.DivV[i] -= q.M * dvdr * wkerni
		acc.DivV[j] -= p.M * dvdr * wkernj

		paux := 0.5 * e.gammam1 * p.U * q.U * (p.InvQ + q.InvQ) * (wkerni + wkernj)
		if dvdr < 0.0 {
			paux += e.apply(i, j, p, q, dvdr, wkerni, wkernj, acc)
		}

		for k := 0; k < e.ndim; k++ {
			acc.A[i][k] += q.M * dr[k] * paux
			acc.A[j][k] -= p.M * dr[k] * paux
		}

		// Energy equation: the compressional term is pairwise here, not
		// a post-sweep PdV correction.
		acc.DUDt[i] += 0.5 * q.M * q.U * dvdr * (wkerni + wkernj) * p.Pfactor
		acc.DUDt[j] += 0.5 * p.M * p.U * dvdr * (wkerni + wkernj) * q.Pfactor

		if q.Level > acc.LevelNeib[i] {
			acc.LevelNeib[i] = q.Level
		}
		if p.Level > acc.LevelNeib[j] {
			acc.LevelNeib[j] = p.Level
		}
	}
}

// The SM2012 scheme carries no self-gravity formulation.

func (e *SM2012) HydroGravForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
}

func (e *SM2012) GravForces(i int, parts []particle.Particle, neib []int, acc *Accum) {
}

func (e *SM2012) DirectGravForces(i int, parts []particle.Particle, direct []int, acc *Accum) {
}

func (e *SM2012) StarGravForces(i int, parts []particle.Particle, stars []particle.Star, acc *Accum) {
}

func (e *SM2012) PostHydro(p *particle.Particle) {
	p.DivV *= p.InvRho
	e.alphaSource(p)
}
