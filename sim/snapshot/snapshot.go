// Package snapshot captures simulation frames and moves them between the
// supported on-disk formats.
//
// A State holds one frame as flat per-field arrays, positions through
// energy derivatives, 3 ndim + 5 arrays in total. Frames stay in code
// units; scaling belongs to whoever presents them. Formats implement
// Read and Write against whole files, so the engine never touches format
// details and the convert command is a Read piped into a Write.
package snapshot

import (
	"fmt"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// State is one captured frame. Only the first NDim axes of the position,
// velocity and acceleration triples are allocated.
type State struct {
	NDim int
	Time float64

	X, Y, Z    []float64
	VX, VY, VZ []float64
	AX, AY, AZ []float64

	M, H, Rho, U, DUDt []float64
}

// Column pairs an array with its name, in file column order.
type Column struct {
	Name string
	Data []float64
}

// NewState allocates a frame for n particles.
func NewState(ndim, n int, time float64) (*State, error) {
	if ndim < 1 || ndim > 3 {
		return nil, fmt.Errorf("snapshot: ndim must be 1, 2 or 3, got %d", ndim)
	}
	if n < 0 {
		return nil, fmt.Errorf("snapshot: negative particle count %d", n)
	}
	s := &State{NDim: ndim, Time: time}
	slots := []*[]float64{&s.X, &s.VX, &s.AX}
	if ndim > 1 {
		slots = append(slots, &s.Y, &s.VY, &s.AY)
	}
	if ndim > 2 {
		slots = append(slots, &s.Z, &s.VZ, &s.AZ)
	}
	slots = append(slots, &s.M, &s.H, &s.Rho, &s.U, &s.DUDt)
	for _, slot := range slots {
		*slot = make([]float64, n)
	}
	return s, nil
}

// Capture copies the given particles into a fresh frame. Callers pass the
// owned particle range; ghosts and imports have no place in a snapshot.
func Capture(ndim int, time float64, parts []particle.Particle) (*State, error) {
	s, err := NewState(ndim, len(parts), time)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		p := &parts[i]
		s.X[i], s.VX[i], s.AX[i] = p.R[0], p.V[0], p.A[0]
		if ndim > 1 {
			s.Y[i], s.VY[i], s.AY[i] = p.R[1], p.V[1], p.A[1]
		}
		if ndim > 2 {
			s.Z[i], s.VZ[i], s.AZ[i] = p.R[2], p.V[2], p.A[2]
		}
		s.M[i] = p.M
		s.H[i] = p.H
		s.Rho[i] = p.Rho
		s.U[i] = p.U
		s.DUDt[i] = p.DUDt
	}
	return s, nil
}

// N returns the particle count of the frame.
func (s *State) N() int { return len(s.M) }

// Columns lists the live arrays in canonical order: positions, velocities
// and accelerations over the first NDim axes, then m, h, rho, u, dudt.
// The file formats and the profiler both follow this order.
func (s *State) Columns() []Column {
	cols := []Column{{"x", s.X}}
	if s.NDim > 1 {
		cols = append(cols, Column{"y", s.Y})
	}
	if s.NDim > 2 {
		cols = append(cols, Column{"z", s.Z})
	}
	cols = append(cols, Column{"vx", s.VX})
	if s.NDim > 1 {
		cols = append(cols, Column{"vy", s.VY})
	}
	if s.NDim > 2 {
		cols = append(cols, Column{"vz", s.VZ})
	}
	cols = append(cols, Column{"ax", s.AX})
	if s.NDim > 1 {
		cols = append(cols, Column{"ay", s.AY})
	}
	if s.NDim > 2 {
		cols = append(cols, Column{"az", s.AZ})
	}
	return append(cols,
		Column{"m", s.M}, Column{"h", s.H}, Column{"rho", s.Rho},
		Column{"u", s.U}, Column{"dudt", s.DUDt})
}

// Array extracts a named array. Axis names beyond the frame's
// dimensionality are unknown, matching the arrays that exist on disk.
func (s *State) Array(name string) ([]float64, error) {
	for _, col := range s.Columns() {
		if col.Name == name {
			return col.Data, nil
		}
	}
	return nil, fmt.Errorf("snapshot: unknown array %q for ndim=%d", name, s.NDim)
}

// Format reads and writes whole frames at a path.
type Format interface {
	Name() string
	Read(path string) (*State, error)
	Write(path string, s *State) error
}

// New builds the named format: "column" or "binary".
func New(name string) (Format, error) {
	switch name {
	case "column":
		return columnFormat{}, nil
	case "binary":
		return binaryFormat{}, nil
	}
	return nil, fmt.Errorf("snapshot: unknown format %q", name)
}
