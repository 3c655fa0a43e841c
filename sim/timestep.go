package sim

import "math"

// Stepper owns the block-timestep hierarchy: the mapping between raw
// per-particle timesteps and power-of-two levels of the global step.
//
// Level 0 steps at dt_max, level l at dt_max/2^l. The integer clock
// resolves one bit deeper than the deepest level when the scheme needs
// an addressable midpoint, so a full hierarchy is nresync ticks; every
// block ends there at once and all levels are reassigned freely.
// Between resyncs a particle may drop to a finer level the moment its
// block ends, but climbs one level at a time and only when the coarser
// block starts on the current tick.
type Stepper struct {
	DtMax        float64
	LevelMax     int
	LevelDiffMax int

	levelStep int
	steps     int64
	nresync   int64
	tick      float64
}

// NewStepper sizes the hierarchy. schemeSteps is the number of force
// evaluations the integration scheme needs per block (1 for KDK, 2 for
// DKD's midpoint).
func NewStepper(dtMax float64, levelMax, levelDiffMax int, schemeSteps int64) *Stepper {
	levelStep := levelMax + int(schemeSteps) - 1
	nresync := int64(1) << uint(levelStep)
	return &Stepper{
		DtMax:        dtMax,
		LevelMax:     levelMax,
		LevelDiffMax: levelDiffMax,
		levelStep:    levelStep,
		steps:        schemeSteps,
		nresync:      nresync,
		tick:         dtMax / float64(nresync),
	}
}

// Tick returns the duration of one integer clock tick.
func (st *Stepper) Tick() float64 { return st.tick }

// NResync returns the ticks in one resync block.
func (st *Stepper) NResync() int64 { return st.nresync }

// Stride returns the clock advance per outer step when the deepest
// occupied level is maxLevel: the gap between consecutive ticks at which
// any particle can come due. Particles act at block ends, and for a
// two-stage scheme also at midpoints, which halves the gap.
func (st *Stepper) Stride(maxLevel int) int64 {
	return st.NStepOf(maxLevel) >> uint(st.steps-1)
}

// LevelFor maps a raw timestep to the shallowest level whose block step
// does not exceed it, clamped to the hierarchy. A particle demanding
// less than the deepest step runs at LevelMax regardless; the hierarchy
// never subdivides past its configured floor.
func (st *Stepper) LevelFor(dt float64) int {
	if dt >= st.DtMax {
		return 0
	}
	if dt <= 0.0 {
		return st.LevelMax
	}
	level := int(math.Ceil(math.Log2(st.DtMax / dt)))
	if level > st.LevelMax {
		level = st.LevelMax
	}
	if level < 0 {
		level = 0
	}
	return level
}

// NStepOf returns the block length in ticks of the given level.
func (st *Stepper) NStepOf(level int) int64 {
	return int64(1) << uint(st.levelStep-level)
}

// Floored reports whether dt demands a deeper level than the hierarchy
// has, so callers can warn that the step floor is binding.
func (st *Stepper) Floored(dt float64) bool {
	if dt <= 0.0 {
		return true
	}
	return dt < st.DtMax/float64(int64(1)<<uint(st.LevelMax))
}

// Adjust re-levels a particle whose block just ended at tick n: finer
// levels take effect at once, coarser ones one level per block and only
// when the longer block is aligned with n.
func (st *Stepper) Adjust(n int64, level int, dt float64) int {
	target := st.LevelFor(dt)
	if target > level {
		return target
	}
	if target < level && n%st.NStepOf(level-1) == 0 {
		return level - 1
	}
	return level
}

// Promote caps the gap to the busiest neighbour level. The promotion
// applies mid-block when the elapsed ticks sit on a boundary of the
// finer stepping, so the shortened block still ends on its own grid;
// otherwise the particle keeps its level until the next opportunity.
func (st *Stepper) Promote(n, nlast int64, level, levelNeib int) (int, bool) {
	target := levelNeib - st.LevelDiffMax
	if target <= level {
		return level, false
	}
	if target > st.LevelMax {
		target = st.LevelMax
	}
	if target <= level {
		return level, false
	}
	if (n-nlast)%st.NStepOf(target) != 0 {
		return level, false
	}
	return target, true
}
