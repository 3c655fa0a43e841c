package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefano-meschiari/gandalf/sim/particle"
	"github.com/stefano-meschiari/gandalf/sim/sph"
)

const testKernRange = 2.0

// testCluster wires size workers with replicated trees and per-worker
// fluids, the way the driver does.
type testCluster struct {
	comm    *Comm
	trees   []*Tree
	workers []*Worker
	fluids  []*sph.Fluid
}

func newTestCluster(t *testing.T, ndim, size, nmax int, min, max particle.Vec) *testCluster {
	t.Helper()
	comm, err := NewComm(size)
	require.NoError(t, err)
	tc := &testCluster{comm: comm}
	for rank := 0; rank < size; rank++ {
		tree, err := NewTree(ndim, size, min, max)
		require.NoError(t, err)
		w, err := NewWorker(rank, comm, tree, testKernRange)
		require.NoError(t, err)
		tc.trees = append(tc.trees, tree)
		tc.workers = append(tc.workers, w)
		tc.fluids = append(tc.fluids, sph.NewFluid(ndim, nmax))
	}
	return tc
}

func fluidParticle(x, h float64) particle.Particle {
	return particle.Particle{
		R:         particle.Vec{x},
		M:         1.0,
		H:         h,
		HRangeSqd: (testKernRange * h) * (testKernRange * h),
		NStep:     1,
		NLast:     0,
		SinkID:    -1,
		Active:    true,
	}
}

// lattice1D returns n particles evenly spaced across [0,1).
func lattice1D(n int, h float64) []particle.Particle {
	dx := 1.0 / float64(n)
	ps := make([]particle.Particle, n)
	for i := range ps {
		ps[i] = fluidParticle((float64(i)+0.5)*dx, h)
	}
	return ps
}

func TestNewWorkerValidatesArguments(t *testing.T) {
	comm, err := NewComm(2)
	require.NoError(t, err)
	min, max := unitCube(1)
	tree2, err := NewTree(1, 2, min, max)
	require.NoError(t, err)
	tree4, err := NewTree(1, 4, min, max)
	require.NoError(t, err)

	_, err = NewWorker(0, comm, tree4, 2.0)
	assert.Error(t, err, "tree and fabric sizes must agree")
	_, err = NewWorker(2, comm, tree2, 2.0)
	assert.Error(t, err, "rank out of range")
	_, err = NewWorker(0, comm, tree2, 0.0)
	assert.Error(t, err, "kernel range must be positive")
	_, err = NewWorker(1, comm, tree2, 2.0)
	assert.NoError(t, err)
}

func TestDistributeScattersEqualSubsets(t *testing.T) {
	// GIVEN all particles loaded on rank 0
	min, max := unitCube(1)
	tc := newTestCluster(t, 1, 4, 128, min, max)
	all := lattice1D(64, 0.02)

	// WHEN the cluster distributes
	runWorkers(t, 4, func(rank int) error {
		if err := tc.workers[rank].Setup(); err != nil {
			return err
		}
		var mine []particle.Particle
		if rank == 0 {
			mine = all
		}
		return tc.workers[rank].Distribute(tc.fluids[rank], mine)
	})

	// THEN every worker owns a quarter, each inside its own leaf
	total := 0
	for rank, f := range tc.fluids {
		assert.Equalf(t, 16, f.NSph, "rank %d", rank)
		total += f.NSph
		for i := 0; i < f.NSph; i++ {
			assert.Equal(t, rank, tc.trees[rank].OwnerOf(f.Parts[i].R))
		}
	}
	assert.Equal(t, 64, total)

	// AND every replica routes positions the same way
	for rank := 1; rank < 4; rank++ {
		assert.Equal(t, tc.trees[0].State(), tc.trees[rank].State())
	}
}

func TestGatherBoundsPublishesAllBoxes(t *testing.T) {
	// GIVEN two workers with known particle extents
	min, max := unitCube(1)
	tc := newTestCluster(t, 1, 2, 16, min, max)
	require.NoError(t, tc.fluids[0].AddParticle(fluidParticle(0.1, 0.05)))
	require.NoError(t, tc.fluids[0].AddParticle(fluidParticle(0.2, 0.05)))
	require.NoError(t, tc.fluids[1].AddParticle(fluidParticle(0.7, 0.1)))
	require.NoError(t, tc.fluids[1].AddParticle(fluidParticle(0.9, 0.1)))

	// WHEN both allgather their bounds
	runWorkers(t, 2, func(rank int) error {
		return tc.workers[rank].GatherBounds(tc.fluids[rank])
	})

	// THEN every rank sees both r-boxes and kernel-grown h-boxes
	for rank := 0; rank < 2; rank++ {
		w := tc.workers[rank]
		assert.InDelta(t, 0.1, w.RBoxes[0].Min[0], 1e-12)
		assert.InDelta(t, 0.2, w.RBoxes[0].Max[0], 1e-12)
		assert.InDelta(t, 0.0, w.HBoxes[0].Min[0], 1e-12)
		assert.InDelta(t, 0.3, w.HBoxes[0].Max[0], 1e-12)
		assert.InDelta(t, 0.7, w.RBoxes[1].Min[0], 1e-12)
		assert.InDelta(t, 0.9, w.RBoxes[1].Max[0], 1e-12)
		assert.InDelta(t, 0.5, w.HBoxes[1].Min[0], 1e-12)
		assert.InDelta(t, 1.1, w.HBoxes[1].Max[0], 1e-12)
	}
}

func TestBoundsOverlapAndDistance(t *testing.T) {
	a := Bounds{Min: particle.Vec{0, 0}, Max: particle.Vec{1, 1}}
	b := Bounds{Min: particle.Vec{0.5, 0.5}, Max: particle.Vec{2, 2}}
	c := Bounds{Min: particle.Vec{3, 3}, Max: particle.Vec{4, 4}}

	assert.True(t, a.Overlaps(b, 2))
	assert.False(t, a.Overlaps(c, 2))

	assert.Equal(t, 0.0, a.DistSqd(particle.Vec{0.5, 0.5}, 2))
	assert.InDelta(t, 0.25, a.DistSqd(particle.Vec{1.5, 0.5}, 2), 1e-12)
	assert.InDelta(t, 0.5, a.DistSqd(particle.Vec{1.5, 1.5}, 2), 1e-12)

	// an empty worker's inverted box overlaps nothing and repels everything
	e := emptyBounds(2)
	assert.False(t, e.Overlaps(a, 2))
	assert.False(t, a.Overlaps(e, 2))
}
