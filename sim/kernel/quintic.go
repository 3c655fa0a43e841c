package kernel

import "math"

// Quintic is the fifth-order B-spline kernel with support radius 3. Its
// smoother second derivative suppresses the pairing instability at the
// cost of a larger neighbour count.
type Quintic struct {
	ndim  int
	ndimf float64
	norm  float64
}

// NewQuintic returns the quintic spline kernel normalised for ndim
// dimensions.
func NewQuintic(ndim int) *Quintic {
	var norm float64
	switch ndim {
	case 1:
		norm = 1.0 / 120.0
	case 2:
		norm = 7.0 / (478.0 * math.Pi)
	default:
		norm = 1.0 / (120.0 * math.Pi)
	}
	return &Quintic{ndim: ndim, ndimf: float64(ndim), norm: norm}
}

func (k *Quintic) Name() string      { return "quintic" }
func (k *Quintic) Range() float64    { return 3.0 }
func (k *Quintic) RangeSqd() float64 { return 9.0 }
func (k *Quintic) Norm() float64     { return k.norm }

// The three polynomial pieces below are the expansions of
// (3-s)^5 - 6(2-s)^5 + 15(1-s)^5 on [0,1), (3-s)^5 - 6(2-s)^5 on [1,2)
// and (3-s)^5 on [2,3).

func (k *Quintic) W0(s float64) float64 {
	s2 := s * s
	if s < 1.0 {
		return k.norm * (66.0 - 60.0*s2 + 30.0*s2*s2 - 10.0*s2*s2*s)
	} else if s < 2.0 {
		return k.norm * (51.0 + 75.0*s - 210.0*s2 + 150.0*s2*s -
			45.0*s2*s2 + 5.0*s2*s2*s)
	} else if s < 3.0 {
		return k.norm * (243.0 - 405.0*s + 270.0*s2 - 90.0*s2*s +
			15.0*s2*s2 - s2*s2*s)
	}
	return 0.0
}

func (k *Quintic) W0S2(ssqd float64) float64 { return k.W0(math.Sqrt(ssqd)) }

func (k *Quintic) W1(s float64) float64 {
	s2 := s * s
	if s < 1.0 {
		return k.norm * (-120.0*s + 120.0*s2*s - 50.0*s2*s2)
	} else if s < 2.0 {
		return k.norm * (75.0 - 420.0*s + 450.0*s2 - 180.0*s2*s + 25.0*s2*s2)
	} else if s < 3.0 {
		return k.norm * (-405.0 + 540.0*s - 270.0*s2 + 60.0*s2*s - 5.0*s2*s2)
	}
	return 0.0
}

func (k *Quintic) WOmegaS2(ssqd float64) float64 {
	s := math.Sqrt(ssqd)
	s2 := ssqd
	nd := k.ndimf
	if s < 1.0 {
		return k.norm * (-66.0*nd + (60.0*nd+120.0)*s2 -
			(30.0*nd+120.0)*s2*s2 + (10.0*nd+50.0)*s2*s2*s)
	} else if s < 2.0 {
		return k.norm * (-51.0*nd - 75.0*(nd+1.0)*s + 210.0*(nd+2.0)*s2 -
			150.0*(nd+3.0)*s2*s + 45.0*(nd+4.0)*s2*s2 - 5.0*(nd+5.0)*s2*s2*s)
	} else if s < 3.0 {
		return k.norm * (-243.0*nd + 405.0*(nd+1.0)*s - 270.0*(nd+2.0)*s2 +
			90.0*(nd+3.0)*s2*s - 15.0*(nd+4.0)*s2*s2 + (nd+5.0)*s2*s2*s)
	}
	return 0.0
}

// The gravity profiles are the exact integrals of the 3d-normalised
// quintic, scaled by 4*pi*norm3d = 1/30.

func (k *Quintic) WZetaS2(ssqd float64) float64 {
	s := math.Sqrt(ssqd)
	s2 := ssqd
	if s < 1.0 {
		return (478.0/14.0 - 33.0*s2 + 15.0*s2*s2 - 5.0*s2*s2*s2 +
			(10.0/7.0)*s2*s2*s2*s) / 30.0
	} else if s < 2.0 {
		return (473.0/14.0 - 25.5*s2 - 25.0*s2*s + 52.5*s2*s2 - 30.0*s2*s2*s +
			7.5*s2*s2*s2 - (5.0/7.0)*s2*s2*s2*s) / 30.0
	} else if s < 3.0 {
		return (729.0/14.0 - 121.5*s2 + 135.0*s2*s - 67.5*s2*s2 + 18.0*s2*s2*s -
			2.5*s2*s2*s2 + (1.0/7.0)*s2*s2*s2*s) / 30.0
	}
	return 0.0
}

func (k *Quintic) WGrav(s float64) float64 {
	s2 := s * s
	if s < 1.0 {
		return (22.0*s - 12.0*s2*s + (30.0/7.0)*s2*s2*s - 1.25*s2*s2*s2) / 30.0
	} else if s < 2.0 {
		return (5.0/(56.0*s2) + 17.0*s + 18.75*s2 - 42.0*s2*s + 25.0*s2*s2 -
			(45.0/7.0)*s2*s2*s + 0.625*s2*s2*s2) / 30.0
	} else if s < 3.0 {
		return (-507.0/(56.0*s2) + 81.0*s - 101.25*s2 + 54.0*s2*s - 15.0*s2*s2 +
			(15.0/7.0)*s2*s2*s - 0.125*s2*s2*s2) / 30.0
	}
	return 1.0 / s2
}

func (k *Quintic) WPot(s float64) float64 {
	s2 := s * s
	if s < 1.0 {
		return (478.0/14.0 - 11.0*s2 + 3.0*s2*s2 - (5.0/7.0)*s2*s2*s2 +
			(5.0/28.0)*s2*s2*s2*s) / 30.0
	} else if s < 2.0 {
		return (5.0/(56.0*s) + 473.0/14.0 - 8.5*s2 - 6.25*s2*s + 10.5*s2*s2 -
			5.0*s2*s2*s + (15.0/14.0)*s2*s2*s2 - (5.0/56.0)*s2*s2*s2*s) / 30.0
	} else if s < 3.0 {
		return (-507.0/(56.0*s) + 729.0/14.0 - 40.5*s2 + 33.75*s2*s -
			13.5*s2*s2 + 3.0*s2*s2*s - (5.0/14.0)*s2*s2*s2 +
			(1.0/56.0)*s2*s2*s2*s) / 30.0
	}
	return 1.0 / s
}
