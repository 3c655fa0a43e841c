package sph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

func ownedParticle(x float64) particle.Particle {
	p := particle.Particle{M: 1.0, H: 0.1, Active: true, SinkID: -1, NStep: 1}
	p.R[0] = x
	return p
}

func TestFluidSegmentOrdering(t *testing.T) {
	// GIVEN owned particles, then a ghost, then an import
	f := NewFluid(1, 6)
	require.NoError(t, f.AddParticle(ownedParticle(0.1)))
	require.NoError(t, f.AddParticle(ownedParticle(0.2)))
	require.NoError(t, f.AddGhost(ownedParticle(1.1)))
	require.NoError(t, f.AddImported(ownedParticle(0.5)))

	// THEN the segments account for every particle
	assert.Equal(t, 2, f.NSph)
	assert.Equal(t, 1, f.NGhost)
	assert.Equal(t, 1, f.NImported)
	assert.Equal(t, 4, f.Total())
	assert.Equal(t, particle.Real, f.Parts[0].Kind)
	assert.Equal(t, particle.Imported, f.Parts[3].Kind)

	// AND inserts that would break the layout are rejected
	assert.Error(t, f.AddParticle(ownedParticle(0.3)), "owned insert while copies present")
	assert.Error(t, f.AddGhost(ownedParticle(1.2)), "ghost insert after imports")

	// WHEN the copies are cleared
	f.ClearCopies()

	// THEN only the owned segment remains and inserts work again
	assert.Equal(t, 2, f.Total())
	require.NoError(t, f.AddParticle(ownedParticle(0.3)))
	assert.Equal(t, 3, f.NSph)
}

func TestFluidCapacityOverflow(t *testing.T) {
	// GIVEN a fluid filled to its fixed capacity
	f := NewFluid(1, 2)
	require.NoError(t, f.AddParticle(ownedParticle(0.1)))
	require.NoError(t, f.AddGhost(ownedParticle(1.1)))

	// THEN every further insert fails instead of reallocating
	assert.ErrorIs(t, f.AddGhost(ownedParticle(1.2)), ErrParticleOverflow)
	assert.ErrorIs(t, f.AddImported(ownedParticle(0.5)), ErrParticleOverflow)

	full := NewFluid(1, 1)
	require.NoError(t, full.AddParticle(ownedParticle(0.1)))
	assert.ErrorIs(t, full.AddParticle(ownedParticle(0.2)), ErrParticleOverflow)
}

func TestFluidCompactDeadPreservesOrder(t *testing.T) {
	// GIVEN five owned particles with two accreted
	f := NewFluid(1, 6)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.AddParticle(ownedParticle(float64(i))))
	}
	f.Parts[1].Dead = true
	f.Parts[3].Dead = true

	// WHEN the dead are compacted
	dropped := f.CompactDead()

	// THEN survivors keep their relative order
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 3, f.NSph)
	for i, want := range []float64{0.0, 2.0, 4.0} {
		assert.Equal(t, want, f.Parts[i].R[0], "survivor %d", i)
	}

	// AND compaction refuses to renumber while copies are present
	require.NoError(t, f.AddGhost(ownedParticle(9.0)))
	f.Parts[0].Dead = true
	assert.Equal(t, 0, f.CompactDead())
	assert.Equal(t, 3, f.NSph)
}
