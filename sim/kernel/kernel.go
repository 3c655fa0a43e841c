// Package kernel implements the SPH smoothing kernel catalogue: the M4
// cubic spline, the quintic spline, a truncated Gaussian, and a tabulated
// wrapper that trades exactness for constant-cost lookups.
//
// All kernels are normalised so that the volume integral of W over the
// support equals one in the configured dimension. The gravitational
// profiles WGrav/WPot follow the kernel-softened forms of Price & Monaghan
// (2007) and continue analytically to the point-mass 1/s^2 and 1/s tails
// beyond the support radius.
package kernel

import "fmt"

// Kernel evaluates a compact-support smoothing kernel and its derived
// weights as functions of the dimensionless separation s = r/h.
//
// W0 is the kernel itself and W1 its radial derivative (negative inside
// the support). WOmegaS2 and WZetaS2 are the grad-h correction weights,
// taken as functions of s^2 so hot loops can skip a square root. The
// kernel weights all return 0 at and beyond Range; the gravitational
// profiles WGrav and WPot instead continue as the point-mass 1/s^2 and
// 1/s tails there.
type Kernel interface {
	Name() string
	Range() float64
	RangeSqd() float64
	Norm() float64
	W0(s float64) float64
	W0S2(ssqd float64) float64
	W1(s float64) float64
	WOmegaS2(ssqd float64) float64
	WZetaS2(ssqd float64) float64
	WGrav(s float64) float64
	WPot(s float64) float64
}

// New builds the named kernel for ndim spatial dimensions. Unknown names
// and unsupported dimensions are configuration errors.
func New(name string, ndim int) (Kernel, error) {
	if ndim < 1 || ndim > 3 {
		return nil, fmt.Errorf("kernel: ndim must be 1, 2 or 3, got %d", ndim)
	}
	switch name {
	case "m4":
		return NewM4(ndim), nil
	case "quintic":
		return NewQuintic(ndim), nil
	case "gaussian":
		return NewGaussian(ndim), nil
	default:
		return nil, fmt.Errorf("kernel: unknown kernel %q", name)
	}
}
