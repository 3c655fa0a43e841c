package cmd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/stefano-meschiari/gandalf/sim/snapshot"
)

func TestRadialDensityUniformPair1D(t *testing.T) {
	// GIVEN two symmetric pairs whose masses fill their shells exactly:
	// each half-bin of width 0.25 holds one particle of mass 0.25
	st, err := snapshot.NewState(1, 4, 0)
	require.NoError(t, err)
	copy(st.X, []float64{-0.5, -0.1, 0.1, 0.5})
	copy(st.M, []float64{0.25, 0.25, 0.25, 0.25})

	// WHEN the profile uses two shells
	rho, err := radialDensity(st, 2)
	require.NoError(t, err)

	// THEN both shells report unit density
	require.Len(t, rho, 2)
	assert.InDelta(t, 1.0, rho[0], 1e-14)
	assert.InDelta(t, 1.0, rho[1], 1e-14)
}

func TestRadialDensityOneParticlePerShell3D(t *testing.T) {
	// GIVEN one particle per shell carrying exactly the shell volume
	const bins = 4
	radii := []float64{0.1, 0.3, 0.5, 0.7}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, radii[bins-1])

	st, err := snapshot.NewState(3, bins, 0)
	require.NoError(t, err)
	for i, r := range radii {
		st.X[i] = r
		st.M[i] = shellVolume(3, dividers[i], dividers[i+1])
	}
	// The last shell top moves just past rmax inside radialDensity, so
	// give the outermost particle that volume instead.
	st.M[bins-1] = shellVolume(3, dividers[bins-1], math.Nextafter(radii[bins-1], math.Inf(1)))

	// WHEN the profile runs with matching bins
	rho, err := radialDensity(st, bins)
	require.NoError(t, err)

	// THEN every shell reports unit density
	for b, got := range rho {
		assert.InDelta(t, 1.0, got, 1e-12, "shell %d", b)
	}
}

func TestRadialDensityConservesMass(t *testing.T) {
	// GIVEN scattered radii and uneven masses
	const n = 50
	st, err := snapshot.NewState(3, n, 0)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		frac := float64(i) * 0.6180339887498949
		frac -= math.Floor(frac)
		st.X[i] = 0.01 + 0.97*frac
		st.Y[i] = 0.0
		st.Z[i] = 0.0
		st.M[i] = 0.001 * float64(i+1)
	}
	total := floats.Sum(st.M)

	// WHEN the mass is binned into shells
	const bins = 7
	rho, err := radialDensity(st, bins)
	require.NoError(t, err)

	// THEN the densities integrate back to the total mass
	radii := make([]float64, n)
	for i := range radii {
		radii[i] = math.Abs(st.X[i])
	}
	rmax := floats.Max(radii)
	dividers := make([]float64, bins+1)
	floats.Span(dividers, 0, rmax)
	dividers[bins] = math.Nextafter(rmax, math.Inf(1))
	var back float64
	for b := 0; b < bins; b++ {
		back += rho[b] * shellVolume(3, dividers[b], dividers[b+1])
	}
	assert.InDelta(t, total, back, 1e-12)
}

func TestRadialDensityRejectsDegenerateInput(t *testing.T) {
	st, err := snapshot.NewState(2, 3, 0)
	require.NoError(t, err)

	// GIVEN no bins
	_, err = radialDensity(st, 0)
	assert.Error(t, err)

	// GIVEN an empty snapshot
	empty, err := snapshot.NewState(2, 0, 0)
	require.NoError(t, err)
	_, err = radialDensity(empty, 4)
	assert.Error(t, err)

	// GIVEN every particle at the origin
	_, err = radialDensity(st, 4)
	assert.Error(t, err)
}

func TestShellVolume(t *testing.T) {
	assert.InDelta(t, 1.0, shellVolume(1, 0, 0.5), 1e-15)
	assert.InDelta(t, math.Pi, shellVolume(2, 0, 1), 1e-15)
	assert.InDelta(t, 4*math.Pi/3, shellVolume(3, 0, 1), 1e-15)
	assert.InDelta(t, 4*math.Pi/3*7, shellVolume(3, 1, 2), 1e-12)
}
