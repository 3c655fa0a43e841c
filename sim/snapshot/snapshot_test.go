package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

func testParticles() []particle.Particle {
	return []particle.Particle{
		{
			R: particle.Vec{0.1, 0.2, 0.0}, V: particle.Vec{1.0, -1.0, 0.0},
			A: particle.Vec{0.5, 0.25, 0.0},
			M: 0.01, H: 0.07, Rho: 1.3, U: 1.5, DUDt: -0.2,
		},
		{
			R: particle.Vec{-0.4, 0.9, 0.0}, V: particle.Vec{0.0, 2.0, 0.0},
			A: particle.Vec{-0.1, 0.0, 0.0},
			M: 0.02, H: 0.09, Rho: 0.8, U: 2.5, DUDt: 0.0,
		},
	}
}

func TestCaptureCopiesParticleState(t *testing.T) {
	// GIVEN two particles in a 2d run at t=1.25
	s, err := Capture(2, 1.25, testParticles())
	require.NoError(t, err)

	// THEN the frame holds every field by name and axis
	assert.Equal(t, 2, s.N())
	assert.Equal(t, 1.25, s.Time)
	assert.Equal(t, []float64{0.1, -0.4}, s.X)
	assert.Equal(t, []float64{0.2, 0.9}, s.Y)
	assert.Equal(t, []float64{1.0, 0.0}, s.VX)
	assert.Equal(t, []float64{-1.0, 2.0}, s.VY)
	assert.Equal(t, []float64{0.5, -0.1}, s.AX)
	assert.Equal(t, []float64{0.01, 0.02}, s.M)
	assert.Equal(t, []float64{1.5, 2.5}, s.U)
	assert.Equal(t, []float64{-0.2, 0.0}, s.DUDt)

	// AND the third axis stays unallocated in two dimensions
	assert.Nil(t, s.Z)
	assert.Nil(t, s.VZ)
	assert.Nil(t, s.AZ)
}

func TestColumnsFollowCanonicalOrder(t *testing.T) {
	names := func(s *State) []string {
		cols := s.Columns()
		out := make([]string, len(cols))
		for i, c := range cols {
			out[i] = c.Name
		}
		return out
	}

	s1, err := NewState(1, 0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "vx", "ax", "m", "h", "rho", "u", "dudt"}, names(s1))

	s3, err := NewState(3, 0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"x", "y", "z", "vx", "vy", "vz", "ax", "ay", "az",
		"m", "h", "rho", "u", "dudt",
	}, names(s3))
}

func TestArrayExtraction(t *testing.T) {
	// GIVEN a captured 2d frame
	s, err := Capture(2, 0.0, testParticles())
	require.NoError(t, err)

	// WHEN extracting arrays by name THEN known names return their data
	rho, err := s.Array("rho")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.3, 0.8}, rho)

	vy, err := s.Array("vy")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.0, 2.0}, vy)

	// AND axes beyond the dimensionality are unknown, like typos
	_, err = s.Array("z")
	assert.Error(t, err)
	_, err = s.Array("entropy")
	assert.Error(t, err)
}

func TestNewStateValidatesShape(t *testing.T) {
	_, err := NewState(0, 10, 0.0)
	assert.Error(t, err)
	_, err = NewState(4, 10, 0.0)
	assert.Error(t, err)
	_, err = NewState(2, -1, 0.0)
	assert.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("hdf5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
