// Package particle defines the data model shared by every stage of the
// engine: SPH fluid particles, N-body stars, and the kind tags that mark
// ghost copies near box boundaries and worker edges.
//
// Neighbour lists and ghost origins reference particles by index into the
// owning worker's array, never by pointer, so arrays can be compacted or
// reallocated without invalidating references.
package particle

import "fmt"

// Vec is a fixed three-component vector. Runs with fewer dimensions leave
// the trailing components at zero and bound their loops by ndim.
type Vec [3]float64

// Dot returns the inner product of a and b over the first ndim components.
func Dot(a, b Vec, ndim int) float64 {
	s := 0.0
	for k := 0; k < ndim; k++ {
		s += a[k] * b[k]
	}
	return s
}

// === Ghost kind tags ===

// Kind records how a particle entered the local array. It is assigned at
// creation and never changes afterwards.
type Kind uint8

const (
	// Real marks a particle owned by the local worker.
	Real Kind = iota
	// PeriodicGhost marks a copy shifted across a periodic face.
	PeriodicGhost
	// MirrorGhost marks a copy reflected about a mirror face.
	MirrorGhost
	// Imported marks a ghost received from a peer worker.
	Imported
)

func (k Kind) String() string {
	switch k {
	case Real:
		return "real"
	case PeriodicGhost:
		return "periodic-ghost"
	case MirrorGhost:
		return "mirror-ghost"
	case Imported:
		return "imported"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsGhost reports whether the kind is any flavour of replicated copy.
func (k Kind) IsGhost() bool { return k != Real }

// === Fluid particle ===

// Particle is a single SPH fluid particle.
//
// The summed fields (Rho, InvOmega, Zeta, Chi, GPot, DivV and the
// accelerations) are owned by the force evaluation: they are recomputed
// from scratch each time the particle is active and must not be written by
// anything else. R0/V0/A0/U0 are the integrator checkpoint saved at the
// start of the particle's current block step.
type Particle struct {
	// Kinematics.
	R     Vec // position
	V     Vec // velocity
	A     Vec // hydrodynamic acceleration
	AGrav Vec // gravitational acceleration

	// Block-step checkpoint.
	R0     Vec
	V0     Vec
	A0     Vec
	U0     float64
	DUDt0  float64
	Alpha0 float64

	// Intrinsic and summed properties.
	M         float64 // mass
	H         float64 // smoothing length
	InvH      float64
	Hfactor   float64 // invh^(ndim+1), premultiplier for kernel gradients
	HRangeSqd float64 // squared kernel reach, (R_k*h)^2
	Rho       float64
	InvRho    float64
	U         float64 // specific internal energy
	DUDt      float64
	Press     float64
	Pfactor   float64 // P/(rho^2*Omega)
	InvOmega  float64 // grad-h correction 1/Omega
	Zeta      float64 // grad-h gravity correction
	Chi       float64 // star-softening analogue of Zeta
	Q         float64 // smoothed internal energy density (SM2012 scheme)
	InvQ      float64
	GPot      float64 // gravitational potential magnitude (stored positive)
	Sound     float64
	DivV      float64
	Alpha     float64 // time-dependent viscosity coefficient
	DAlphaDt  float64

	// Block stepping.
	Active    bool
	Level     int   // step level, 0 = largest step
	LevelNeib int   // highest level seen among interaction partners
	NStep     int64 // step length in integer time units
	NLast     int64 // integer time at last step start

	// Identity.
	Kind       Kind
	GhostAxis  int8 // face axis that created this ghost
	GhostUpper bool // true if created at the upper face
	IOrig      int  // index of the source particle, for ghosts
	SinkID     int  // id of the sink this particle sits inside, -1 if none
	PotMin     bool // no neighbour inside the kernel has a deeper potential
	Dead       bool // consumed by accretion, compacted away at step end
}
