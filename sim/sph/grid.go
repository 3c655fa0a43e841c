package sph

import (
	"math"

	"github.com/stefano-meschiari/gandalf/sim/particle"
)

// gridCellBudget caps the cell count at a multiple of the particle count
// so sparse configurations do not allocate huge empty grids.
const gridCellBudget = 8

// Grid is a uniform linked-cell index. The cell edge is set to the largest
// kernel reach present at Rebuild, so gather-scatter queries visit only
// the adjacent cell shell unless the query radius itself spans several
// cells. Each cell records the largest reach of its members, letting the
// scatter side prune whole cells.
type Grid struct {
	ndim     int
	lo       particle.Vec
	cellSize float64
	maxReach float64
	dims     [3]int
	heads    []int
	next     []int
	cellMaxR []float64 // per-cell max kernel reach squared
}

func NewGrid(ndim int) *Grid {
	return &Grid{ndim: ndim, dims: [3]int{1, 1, 1}}
}

func (g *Grid) Name() string { return "grid" }

func (g *Grid) Rebuild(f *Fluid) {
	n := f.Total()
	g.maxReach = 0.0
	var lo, hi particle.Vec
	first := true
	for j := 0; j < n; j++ {
		p := &f.Parts[j]
		if p.Dead {
			continue
		}
		if first {
			lo, hi = p.R, p.R
			first = false
		}
		for k := 0; k < g.ndim; k++ {
			lo[k] = math.Min(lo[k], p.R[k])
			hi[k] = math.Max(hi[k], p.R[k])
		}
		if reach := math.Sqrt(p.HRangeSqd); reach > g.maxReach {
			g.maxReach = reach
		}
	}
	g.lo = lo

	g.cellSize = g.maxReach
	if g.cellSize <= 0.0 {
		// No valid reach yet: one cell degenerates to a full scan.
		g.cellSize = bigNumber
	}
	for {
		ncells := 1
		for k := 0; k < g.ndim; k++ {
			g.dims[k] = int((hi[k]-lo[k])/g.cellSize) + 1
			if g.dims[k] < 1 {
				g.dims[k] = 1
			}
			ncells *= g.dims[k]
		}
		for k := g.ndim; k < 3; k++ {
			g.dims[k] = 1
		}
		if ncells <= gridCellBudget*n+64 {
			break
		}
		g.cellSize *= 2.0
	}

	ncells := g.dims[0] * g.dims[1] * g.dims[2]
	if cap(g.heads) < ncells {
		g.heads = make([]int, ncells)
		g.cellMaxR = make([]float64, ncells)
	}
	g.heads = g.heads[:ncells]
	g.cellMaxR = g.cellMaxR[:ncells]
	for c := range g.heads {
		g.heads[c] = -1
		g.cellMaxR[c] = 0.0
	}
	if cap(g.next) < n {
		g.next = make([]int, n)
	}
	g.next = g.next[:n]

	for j := 0; j < n; j++ {
		p := &f.Parts[j]
		if p.Dead {
			g.next[j] = -1
			continue
		}
		c := g.cellIndex(g.cellCoord(p.R))
		g.next[j] = g.heads[c]
		g.heads[c] = j
		if p.HRangeSqd > g.cellMaxR[c] {
			g.cellMaxR[c] = p.HRangeSqd
		}
	}
}

func (g *Grid) cellCoord(r particle.Vec) [3]int {
	var c [3]int
	for k := 0; k < g.ndim; k++ {
		c[k] = int((r[k] - g.lo[k]) / g.cellSize)
		if c[k] < 0 {
			c[k] = 0
		}
		if c[k] >= g.dims[k] {
			c[k] = g.dims[k] - 1
		}
	}
	return c
}

func (g *Grid) cellIndex(c [3]int) int {
	return (c[2]*g.dims[1]+c[1])*g.dims[0] + c[0]
}

// span converts a reach into a cell-count halo, clamped to the grid.
func (g *Grid) span(radius float64, k int) int {
	s := radius / g.cellSize
	if s >= float64(g.dims[k]) {
		return g.dims[k]
	}
	return int(s) + 1
}

func (g *Grid) Gather(f *Fluid, r particle.Vec, radius float64, out []int) []int {
	return g.query(f, r, radius, false, out)
}

func (g *Grid) GatherScatter(f *Fluid, r particle.Vec, radius float64, out []int) []int {
	return g.query(f, r, radius, true, out)
}

func (g *Grid) query(f *Fluid, r particle.Vec, radius float64, scatter bool, out []int) []int {
	rsqd := radius * radius
	reach := radius
	if scatter && g.maxReach > reach {
		reach = g.maxReach
	}
	centre := g.cellCoord(r)
	var lo, hi [3]int
	for k := 0; k < g.ndim; k++ {
		s := g.span(reach, k)
		lo[k] = centre[k] - s
		hi[k] = centre[k] + s
		if lo[k] < 0 {
			lo[k] = 0
		}
		if hi[k] >= g.dims[k] {
			hi[k] = g.dims[k] - 1
		}
	}

	var c [3]int
	for c[2] = lo[2]; c[2] <= hi[2]; c[2]++ {
		for c[1] = lo[1]; c[1] <= hi[1]; c[1]++ {
			for c[0] = lo[0]; c[0] <= hi[0]; c[0]++ {
				ci := g.cellIndex(c)
				if g.heads[ci] == -1 {
					continue
				}
				// Prune cells that neither the query sphere nor the
				// cell's own largest reach can bridge.
				dmin := 0.0
				for k := 0; k < g.ndim; k++ {
					cLo := g.lo[k] + float64(c[k])*g.cellSize
					if r[k] < cLo {
						d := cLo - r[k]
						dmin += d * d
					} else if r[k] > cLo+g.cellSize {
						d := r[k] - cLo - g.cellSize
						dmin += d * d
					}
				}
				if dmin > rsqd && (!scatter || dmin > g.cellMaxR[ci]) {
					continue
				}
				for j := g.heads[ci]; j != -1; j = g.next[j] {
					p := &f.Parts[j]
					var dr particle.Vec
					for k := 0; k < g.ndim; k++ {
						dr[k] = p.R[k] - r[k]
					}
					drsqd := particle.Dot(dr, dr, g.ndim)
					if drsqd <= rsqd || (scatter && drsqd <= p.HRangeSqd) {
						out = append(out, j)
					}
				}
			}
		}
	}
	return out
}
