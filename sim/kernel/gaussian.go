package kernel

import "math"

// gaussianRange is where the Gaussian is truncated. exp(-16) leaves a
// relative mass deficit below 1e-7, well under the solver tolerances.
const gaussianRange = 4.0

// Gaussian is the truncated Gaussian kernel. Unlike the splines its
// gravity profiles are closed forms in erf.
type Gaussian struct {
	ndim  int
	ndimf float64
	norm  float64
}

// NewGaussian returns the Gaussian kernel normalised for ndim dimensions.
func NewGaussian(ndim int) *Gaussian {
	var norm float64
	switch ndim {
	case 1:
		norm = 1.0 / math.Sqrt(math.Pi)
	case 2:
		norm = 1.0 / math.Pi
	default:
		norm = 1.0 / (math.Pi * math.Sqrt(math.Pi))
	}
	return &Gaussian{ndim: ndim, ndimf: float64(ndim), norm: norm}
}

func (k *Gaussian) Name() string      { return "gaussian" }
func (k *Gaussian) Range() float64    { return gaussianRange }
func (k *Gaussian) RangeSqd() float64 { return gaussianRange * gaussianRange }
func (k *Gaussian) Norm() float64     { return k.norm }

func (k *Gaussian) W0(s float64) float64 {
	if s < gaussianRange {
		return k.norm * math.Exp(-s*s)
	}
	return 0.0
}

func (k *Gaussian) W0S2(ssqd float64) float64 {
	if ssqd < gaussianRange*gaussianRange {
		return k.norm * math.Exp(-ssqd)
	}
	return 0.0
}

func (k *Gaussian) W1(s float64) float64 {
	if s < gaussianRange {
		return -2.0 * s * k.norm * math.Exp(-s*s)
	}
	return 0.0
}

func (k *Gaussian) WOmegaS2(ssqd float64) float64 {
	if ssqd < gaussianRange*gaussianRange {
		return k.norm * (-k.ndimf + 2.0*ssqd) * math.Exp(-ssqd)
	}
	return 0.0
}

func (k *Gaussian) WZetaS2(ssqd float64) float64 {
	if ssqd < gaussianRange*gaussianRange {
		return (2.0 / math.Sqrt(math.Pi)) * math.Exp(-ssqd)
	}
	return 0.0
}

func (k *Gaussian) WGrav(s float64) float64 {
	if s <= 0.0 {
		return 0.0
	}
	// Enclosed-mass profile of a 3d Gaussian; tends to 1/s^2 for large s.
	return (math.Erf(s) - (2.0/math.Sqrt(math.Pi))*s*math.Exp(-s*s)) / (s * s)
}

func (k *Gaussian) WPot(s float64) float64 {
	if s <= 0.0 {
		return 2.0 / math.Sqrt(math.Pi)
	}
	return math.Erf(s) / s
}
