// Package domain models the simulation bounding box and the boundary
// conditions on its faces: wrapping particles that leave a periodic box
// and replicating particles near closed faces as periodic or mirror
// ghosts so kernel sums see the medium continue across the boundary.
package domain

import (
	"errors"
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// ErrGhostOverflow reports that ghost creation exhausted the preallocated
// particle capacity. The limit is fixed at startup; there is no regrowth.
var ErrGhostOverflow = errors.New("ghost particle capacity exhausted")

// Boundary is the condition applied on one face of the box.
type Boundary uint8

const (
	Open Boundary = iota
	Periodic
	Mirror
)

func (b Boundary) String() string {
	switch b {
	case Open:
		return "open"
	case Periodic:
		return "periodic"
	case Mirror:
		return "mirror"
	}
	return fmt.Sprintf("boundary(%d)", uint8(b))
}

// ParseBoundary maps a configuration tag to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch s {
	case "open", "":
		return Open, nil
	case "periodic":
		return Periodic, nil
	case "mirror":
		return Mirror, nil
	}
	return Open, fmt.Errorf("domain: unknown boundary %q", s)
}

// Box is the simulation bounding box with a boundary condition on each
// face. Axes beyond NDim are ignored.
type Box struct {
	NDim     int
	Min, Max particle.Vec
	BoundLo  [3]Boundary
	BoundHi  [3]Boundary
}

// Size returns the box extent along axis k.
func (b *Box) Size(k int) float64 { return b.Max[k] - b.Min[k] }

// HalfSize returns half the box extent along axis k.
func (b *Box) HalfSize(k int) float64 { return 0.5 * (b.Max[k] - b.Min[k]) }

// AllOpen reports whether every face is open, in which case no wrapping
// or ghost work is ever needed.
func (b *Box) AllOpen() bool {
	for k := 0; k < b.NDim; k++ {
		if b.BoundLo[k] != Open || b.BoundHi[k] != Open {
			return false
		}
	}
	return true
}

// Closed reports whether axis k has a non-open face on either side.
func (b *Box) Closed(k int) bool {
	return b.BoundLo[k] != Open || b.BoundHi[k] != Open
}

// Validate rejects inverted extents and half-periodic axes. A periodic
// face only makes sense when the opposite face wraps with it.
func (b *Box) Validate() error {
	if b.NDim < 1 || b.NDim > 3 {
		return fmt.Errorf("domain: ndim must be 1, 2 or 3, got %d", b.NDim)
	}
	for k := 0; k < b.NDim; k++ {
		if b.Closed(k) && b.Size(k) <= 0.0 {
			return fmt.Errorf("domain: axis %d has non-positive size %g", k, b.Size(k))
		}
		if (b.BoundLo[k] == Periodic) != (b.BoundHi[k] == Periodic) {
			return fmt.Errorf("domain: axis %d pairs %v with %v; periodic boundaries come in pairs",
				k, b.BoundLo[k], b.BoundHi[k])
		}
	}
	return nil
}

// Contains reports whether r lies inside the box over the first ndim
// axes, lower bound inclusive.
func (b *Box) Contains(r particle.Vec) bool {
	for k := 0; k < b.NDim; k++ {
		if r[k] < b.Min[k] || r[k] >= b.Max[k] {
			return false
		}
	}
	return true
}
