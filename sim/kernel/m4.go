package kernel

import "math"

// M4 is the cubic spline kernel of Monaghan & Lattanzio (1985) with
// support radius 2. The default production kernel.
type M4 struct {
	ndim  int
	ndimf float64
	norm  float64
}

// NewM4 returns the M4 kernel normalised for ndim dimensions.
func NewM4(ndim int) *M4 {
	var norm float64
	switch ndim {
	case 1:
		norm = 2.0 / 3.0
	case 2:
		norm = 10.0 / (7.0 * math.Pi)
	default:
		norm = 1.0 / math.Pi
	}
	return &M4{ndim: ndim, ndimf: float64(ndim), norm: norm}
}

func (k *M4) Name() string      { return "m4" }
func (k *M4) Range() float64    { return 2.0 }
func (k *M4) RangeSqd() float64 { return 4.0 }
func (k *M4) Norm() float64     { return k.norm }

func (k *M4) W0(s float64) float64 {
	if s < 1.0 {
		return k.norm * (1.0 - 1.5*s*s + 0.75*s*s*s)
	} else if s < 2.0 {
		d := 2.0 - s
		return 0.25 * k.norm * d * d * d
	}
	return 0.0
}

func (k *M4) W0S2(ssqd float64) float64 { return k.W0(math.Sqrt(ssqd)) }

func (k *M4) W1(s float64) float64 {
	if s < 1.0 {
		return k.norm * (-3.0*s + 2.25*s*s)
	} else if s < 2.0 {
		d := 2.0 - s
		return -0.75 * k.norm * d * d
	}
	return 0.0
}

func (k *M4) WOmegaS2(ssqd float64) float64 {
	s := math.Sqrt(ssqd)
	nd := k.ndimf
	if s < 1.0 {
		return k.norm * (-nd + 1.5*(nd+2.0)*s*s - 0.75*(nd+3.0)*s*s*s)
	} else if s < 2.0 {
		return k.norm * (-2.0*nd + 3.0*(nd+1.0)*s -
			1.5*(nd+2.0)*s*s + 0.25*(nd+3.0)*s*s*s)
	}
	return 0.0
}

func (k *M4) WZetaS2(ssqd float64) float64 {
	s := math.Sqrt(ssqd)
	if s < 1.0 {
		s2 := s * s
		return 1.4 - 2.0*s2 + 1.5*s2*s2 - 0.6*s2*s2*s
	} else if s < 2.0 {
		s2 := s * s
		return 1.6 - 4.0*s2 + 4.0*s2*s - 1.5*s2*s2 + 0.2*s2*s2*s
	}
	return 0.0
}

func (k *M4) WGrav(s float64) float64 {
	if s < 1.0 {
		return (4.0/3.0)*s - 1.2*s*s*s + 0.5*s*s*s*s
	} else if s < 2.0 {
		s2 := s * s
		return (8.0/3.0)*s - 3.0*s2 + 1.2*s2*s - s2*s2/6.0 - 1.0/(15.0*s2)
	}
	return 1.0 / (s * s)
}

func (k *M4) WPot(s float64) float64 {
	if s < 1.0 {
		s2 := s * s
		return 1.4 - (2.0/3.0)*s2 + 0.3*s2*s2 - 0.1*s2*s2*s
	} else if s < 2.0 {
		s2 := s * s
		return -1.0/(15.0*s) + 1.6 - (4.0/3.0)*s2 + s2*s - 0.3*s2*s2 + s2*s2*s/30.0
	}
	return 1.0 / s
}
