package cluster

import (
	"fmt"
	"sort"

	"github.com/stefano-meschiari/gandalf/sim/domain"
	"github.com/stefano-meschiari/gandalf/sim/particle"
)

const bigNumber = 9.9e30

// Cell is one node of the partition tree. The first child sits at the
// next cell index, the second at C2; C2 == 0 marks a leaf. Internal
// cells split their box at Plane along Axis; leaves map to one worker
// each.
type Cell struct {
	Level int
	Axis  int
	Plane float64
	C2    int
	Rank  int
	Min   particle.Vec
	Max   particle.Vec
	Work  float64
	XWork particle.Vec
}

// Leaf reports whether the cell has no children.
func (c *Cell) Leaf() bool { return c.C2 == 0 }

// Tree is the binary domain partition, replicated on every worker.
// Leaves equal the worker count and tile the root box exactly, so every
// position maps to one owner. Split axes cycle per level starting from
// Axis0, the axis of widest particle spread at decomposition time.
type Tree struct {
	NDim  int
	Size  int
	Depth int
	Axis0 int
	Cells []Cell

	leaf []int // leaf cell index per rank
}

// NewTree builds an unpartitioned tree over the root bounds. The worker
// count must be a power of two so the tree is complete.
func NewTree(ndim, size int, min, max particle.Vec) (*Tree, error) {
	if ndim < 1 || ndim > 3 {
		return nil, fmt.Errorf("cluster: ndim must be 1, 2 or 3, got %d", ndim)
	}
	depth := 0
	for s := size; s > 1; s >>= 1 {
		depth++
	}
	if size < 1 || 1<<depth != size {
		return nil, fmt.Errorf("cluster: worker count must be a power of two, got %d", size)
	}
	t := &Tree{
		NDim:  ndim,
		Size:  size,
		Depth: depth,
		Cells: make([]Cell, 2*size-1),
		leaf:  make([]int, size),
	}
	t.fill(0, 0, 0, size)
	t.Cells[0].Min = min
	t.Cells[0].Max = max
	t.setAxes()
	t.RefreshBounds()
	return t, nil
}

// fill lays out the subtree rooted at cell c covering nleaf workers
// starting at rank0, and returns the next free cell index.
func (t *Tree) fill(c, level, rank0, nleaf int) int {
	cell := &t.Cells[c]
	cell.Level = level
	cell.Rank = -1
	cell.Axis = -1
	if nleaf == 1 {
		cell.C2 = 0
		cell.Rank = rank0
		t.leaf[rank0] = c
		return c + 1
	}
	next := t.fill(c+1, level+1, rank0, nleaf/2)
	cell.C2 = next
	return t.fill(next, level+1, rank0+nleaf/2, nleaf/2)
}

func (t *Tree) setAxes() {
	for i := range t.Cells {
		if !t.Cells[i].Leaf() {
			t.Cells[i].Axis = (t.Axis0 + t.Cells[i].Level) % t.NDim
		}
	}
}

// RootBounds maps a simulation box to partition-tree root bounds: closed
// axes keep the box extent, open axes widen to sentinel values so drifting
// particles always stay inside some leaf.
func RootBounds(box *domain.Box) (min, max particle.Vec) {
	for k := 0; k < box.NDim; k++ {
		if box.BoundLo[k] == domain.Open {
			min[k] = -bigNumber
		} else {
			min[k] = box.Min[k]
		}
		if box.BoundHi[k] == domain.Open {
			max[k] = bigNumber
		} else {
			max[k] = box.Max[k]
		}
	}
	return min, max
}

// Partition splits the given positions into equal halves recursively,
// placing each split plane midway between the straddling pair. Run on
// rank 0 at startup; peers receive the result through State/Apply.
func (t *Tree) Partition(rs []particle.Vec) error {
	if len(rs) == 0 {
		return fmt.Errorf("cluster: cannot partition zero particles")
	}
	t.Axis0 = widestAxis(rs, t.NDim)
	t.setAxes()
	ids := make([]int, len(rs))
	for i := range ids {
		ids[i] = i
	}
	t.splitCell(0, rs, ids)
	return nil
}

func widestAxis(rs []particle.Vec, ndim int) int {
	axis := 0
	widest := -1.0
	for k := 0; k < ndim; k++ {
		lo, hi := rs[0][k], rs[0][k]
		for _, r := range rs {
			if r[k] < lo {
				lo = r[k]
			}
			if r[k] > hi {
				hi = r[k]
			}
		}
		if hi-lo > widest {
			widest = hi - lo
			axis = k
		}
	}
	return axis
}

func (t *Tree) splitCell(c int, rs []particle.Vec, ids []int) {
	cell := &t.Cells[c]
	if cell.Leaf() {
		return
	}
	k := cell.Axis
	mid := len(ids) / 2
	if len(ids) >= 2 {
		sort.Slice(ids, func(a, b int) bool { return rs[ids[a]][k] < rs[ids[b]][k] })
		cell.Plane = 0.5 * (rs[ids[mid-1]][k] + rs[ids[mid]][k])
	} else {
		cell.Plane = 0.5 * (cell.Min[k] + cell.Max[k])
	}
	c1, c2 := c+1, cell.C2
	t.Cells[c1].Min, t.Cells[c1].Max = cell.Min, cell.Max
	t.Cells[c2].Min, t.Cells[c2].Max = cell.Min, cell.Max
	t.Cells[c1].Max[k] = cell.Plane
	t.Cells[c2].Min[k] = cell.Plane
	t.splitCell(c1, rs, ids[:mid])
	t.splitCell(c2, rs, ids[mid:])
}

// RefreshBounds rederives every cell box from the root bounds and the
// split planes.
func (t *Tree) RefreshBounds() {
	var down func(c int)
	down = func(c int) {
		cell := &t.Cells[c]
		if cell.Leaf() {
			return
		}
		k := cell.Axis
		c1, c2 := c+1, cell.C2
		t.Cells[c1].Min, t.Cells[c1].Max = cell.Min, cell.Max
		t.Cells[c2].Min, t.Cells[c2].Max = cell.Min, cell.Max
		t.Cells[c1].Max[k] = cell.Plane
		t.Cells[c2].Min[k] = cell.Plane
		down(c1)
		down(c2)
	}
	down(0)
}

// OwnerOf returns the rank whose leaf box contains r. Positions on a
// split plane belong to the upper side.
func (t *Tree) OwnerOf(r particle.Vec) int {
	c := 0
	for !t.Cells[c].Leaf() {
		if r[t.Cells[c].Axis] < t.Cells[c].Plane {
			c++
		} else {
			c = t.Cells[c].C2
		}
	}
	return t.Cells[c].Rank
}

// LeafCell returns the leaf owned by rank.
func (t *Tree) LeafCell(rank int) *Cell { return &t.Cells[t.leaf[rank]] }

// State captures everything peers need to replicate the tree: the root
// split axis and the plane of every internal cell in cell order.
type State struct {
	Axis0  int
	Planes []float64
}

// State snapshots the tree for broadcast.
func (t *Tree) State() State {
	planes := make([]float64, 0, t.Size-1)
	for i := range t.Cells {
		if !t.Cells[i].Leaf() {
			planes = append(planes, t.Cells[i].Plane)
		}
	}
	return State{Axis0: t.Axis0, Planes: planes}
}

// Apply installs a broadcast snapshot and rederives the cell boxes.
func (t *Tree) Apply(s State) error {
	if len(s.Planes) != t.Size-1 {
		return fmt.Errorf("cluster: tree state has %d planes for %d workers", len(s.Planes), t.Size)
	}
	t.Axis0 = s.Axis0
	t.setAxes()
	n := 0
	for i := range t.Cells {
		if !t.Cells[i].Leaf() {
			t.Cells[i].Plane = s.Planes[n]
			n++
		}
	}
	t.RefreshBounds()
	return nil
}

// accumulateWork propagates per-worker work and work centroids from the
// leaves to the root. Children always sit at higher indices than their
// parent, so one reverse pass suffices.
func (t *Tree) accumulateWork(work []float64, xwork []particle.Vec) {
	for c := len(t.Cells) - 1; c >= 0; c-- {
		cell := &t.Cells[c]
		if cell.Leaf() {
			cell.Work = work[cell.Rank]
			cell.XWork = xwork[cell.Rank]
			continue
		}
		c1, c2 := &t.Cells[c+1], &t.Cells[cell.C2]
		cell.Work = c1.Work + c2.Work
		for k := 0; k < t.NDim; k++ {
			if cell.Work > 0 {
				cell.XWork[k] = (c1.Work*c1.XWork[k] + c2.Work*c2.XWork[k]) / cell.Work
			} else {
				cell.XWork[k] = cell.Plane
			}
		}
	}
}

// balanceLevel moves the split plane of every internal cell on the given
// level toward equal work between its subtrees. The work density at the
// plane is estimated from each side's total work and centroid distance,
// and the new plane is clamped between the two centroids. Returns how
// many planes moved.
func (t *Tree) balanceLevel(level int) int {
	moved := 0
	for c := range t.Cells {
		cell := &t.Cells[c]
		if cell.Leaf() || cell.Level != level {
			continue
		}
		k := cell.Axis
		c1, c2 := &t.Cells[c+1], &t.Cells[cell.C2]
		x1, x2 := c1.XWork[k], c2.XWork[k]
		d1, d2 := cell.Plane-x1, x2-cell.Plane
		if d1 <= 0 || d2 <= 0 {
			continue
		}
		dwdx1 := 0.5 * c1.Work / d1
		dwdx2 := 0.5 * c2.Work / d2
		if dwdx1+dwdx2 <= 0 {
			continue
		}
		plane := cell.Plane + (c2.Work-c1.Work)/(dwdx1+dwdx2)
		if plane < x1 {
			plane = x1
		}
		if plane > x2 {
			plane = x2
		}
		if plane != cell.Plane {
			cell.Plane = plane
			moved++
		}
	}
	if moved > 0 {
		t.RefreshBounds()
	}
	return moved
}
