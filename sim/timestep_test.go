package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepperSizing(t *testing.T) {
	// GIVEN a one-stage scheme the clock resolves exactly the deepest
	// level; a two-stage scheme gets one extra bit for the midpoints.
	kdk := NewStepper(0.8, 3, 1, 1)
	assert.Equal(t, int64(8), kdk.NResync())
	assert.InDelta(t, 0.1, kdk.Tick(), 1e-15)

	dkd := NewStepper(0.8, 3, 1, 2)
	assert.Equal(t, int64(16), dkd.NResync())
	assert.InDelta(t, 0.05, dkd.Tick(), 1e-15)

	// A full hierarchy spans dt_max in both cases.
	assert.InDelta(t, 0.8, float64(kdk.NResync())*kdk.Tick(), 1e-15)
	assert.InDelta(t, 0.8, float64(dkd.NResync())*dkd.Tick(), 1e-15)
}

func TestStepperNStepOf(t *testing.T) {
	st := NewStepper(1.0, 4, 1, 1)

	// Level 0 owns the whole block; each level below halves it.
	assert.Equal(t, st.NResync(), st.NStepOf(0))
	for level := 1; level <= st.LevelMax; level++ {
		assert.Equal(t, st.NStepOf(level-1)/2, st.NStepOf(level))
	}
	assert.Equal(t, int64(1), st.NStepOf(st.LevelMax))
}

func TestStepperStride(t *testing.T) {
	// KDK particles act at block ends only.
	kdk := NewStepper(1.0, 3, 1, 1)
	for level := 0; level <= kdk.LevelMax; level++ {
		assert.Equal(t, kdk.NStepOf(level), kdk.Stride(level))
	}

	// DKD particles also act at block midpoints, halving the gap.
	dkd := NewStepper(1.0, 3, 1, 2)
	for level := 0; level <= dkd.LevelMax; level++ {
		assert.Equal(t, dkd.NStepOf(level)/2, dkd.Stride(level))
	}

	// The deepest stride is one tick under either scheme.
	assert.Equal(t, int64(1), kdk.Stride(kdk.LevelMax))
	assert.Equal(t, int64(1), dkd.Stride(dkd.LevelMax))
}

func TestStepperLevelFor(t *testing.T) {
	st := NewStepper(1.0, 4, 1, 1)

	tests := []struct {
		name  string
		dt    float64
		level int
	}{
		{"at dt_max", 1.0, 0},
		{"above dt_max", 10.0, 0},
		{"exactly half", 0.5, 1},
		{"just under half", 0.49, 2},
		{"eighth", 0.125, 3},
		{"below the floor", 1e-6, 4},
		{"zero", 0.0, 4},
		{"negative", -1.0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, st.LevelFor(tt.dt))
		})
	}
}

func TestStepperFloored(t *testing.T) {
	st := NewStepper(1.0, 3, 1, 1)
	floor := 1.0 / 8.0

	assert.False(t, st.Floored(floor))
	assert.False(t, st.Floored(0.5))
	assert.True(t, st.Floored(floor/2))
	assert.True(t, st.Floored(0.0))
}

func TestStepperAdjust(t *testing.T) {
	st := NewStepper(1.0, 4, 1, 1)

	// Finer demand takes effect at once, skipping levels if needed.
	assert.Equal(t, 4, st.Adjust(4, 0, 1e-9))
	assert.Equal(t, 3, st.Adjust(4, 1, 0.125))

	// Coarser demand climbs one level per block, and only when the
	// longer block begins on this tick.
	assert.Equal(t, 1, st.Adjust(8, 2, 1.0), "n=8 aligns with level 1 blocks")
	assert.Equal(t, 2, st.Adjust(4, 2, 1.0), "n=4 sits mid-block at level 1")

	// A matching demand keeps the level.
	assert.Equal(t, 2, st.Adjust(4, 2, 0.25))
}

func TestStepperPromote(t *testing.T) {
	st := NewStepper(1.0, 4, 2, 1)

	// Neighbour gap within level_diff_max: no promotion.
	_, ok := st.Promote(3, 0, 2, 4)
	assert.False(t, ok)

	// A neighbour at level 4 drags a level-0 particle to 2, but only on
	// ticks aligned with the target stepping. NStepOf(2) = 4.
	level, ok := st.Promote(4, 0, 0, 4)
	require.True(t, ok)
	assert.Equal(t, 2, level)

	_, ok = st.Promote(3, 0, 0, 4)
	assert.False(t, ok, "n-nlast=3 is not on the level-2 grid")

	// The target clamps to the hierarchy floor.
	level, ok = st.Promote(1, 0, 0, 99)
	require.True(t, ok)
	assert.Equal(t, st.LevelMax, level)
}

func TestStepperStrideReachesResync(t *testing.T) {
	// WHEN the deepest level only ever coarsens by one per step, the
	// clock lands exactly on nresync: each stride divides the next.
	for _, steps := range []int64{1, 2} {
		st := NewStepper(1.0, 5, 1, steps)

		maxLevel := st.LevelMax
		n := int64(0)
		for n < st.NResync() {
			n += st.Stride(maxLevel)
			// Coarsen as soon as the wider grid allows it.
			if maxLevel > 0 && n%st.NStepOf(maxLevel-1) == 0 {
				maxLevel--
			}
		}
		assert.Equal(t, st.NResync(), n, "steps=%d", steps)
	}
}

func TestStepperStrideStaysOnGrid(t *testing.T) {
	// Every reachable tick is a multiple of the stride chosen at it, so
	// deepening the hierarchy mid-run never strands the clock.
	st := NewStepper(1.0, 4, 1, 2)
	n := int64(0)
	levels := []int{4, 4, 3, 3, 4, 2, 1, 4, 0}
	k := 0
	for n < st.NResync() {
		level := levels[k%len(levels)]
		k++
		stride := st.Stride(level)
		if n%stride != 0 {
			// A particle can only occupy a level whose grid contains
			// the current tick; skip combinations the driver cannot
			// produce.
			continue
		}
		n += stride
	}
	assert.Equal(t, st.NResync(), n)
}
