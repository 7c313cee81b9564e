package reorder

import (
	"fmt"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// grid is the coarse cell layout of the hybrid sort. Cells are cubes whose
// side is MinLevelSize·2^k, so each one is a valid octree node.
type grid struct {
	origin [3]float64
	side   float64
	dims   [3]uint32
}

func (g grid) cells() int {
	return int(g.dims[0]) * int(g.dims[1]) * int(g.dims[2])
}

// planGrid chooses a cell side that puts about cellAtoms atoms in each
// cell of the bounding volume, keeping the cell count at most max(n, 8).
func planGrid(b box, n, cellAtoms int) grid {
	ext := b.extent()
	volume := 1.0
	for _, e := range ext {
		volume *= max(e, MinLevelSize)
	}

	target := max(1, n/cellAtoms)
	side := rootSize(math.Cbrt(volume / float64(target)))
	limit := max(n, 8)

	g := grid{origin: b.min}
	for {
		g.side = side
		total := 1
		fits := true
		for axis, e := range ext {
			d := int(math.Floor(e/side)) + 1
			if d >= 1<<mortonBits {
				fits = false
			}
			g.dims[axis] = uint32(min(d, 1<<mortonBits-1))
			total *= d
		}
		if fits && total <= limit {
			return g
		}
		side *= 2
	}
}

// coord returns the cell coordinate of a position along one axis.
func (g grid) coord(v float32, axis int) uint32 {
	c := math.Floor((float64(v) - g.origin[axis]) / g.side)
	if c < 0 {
		return 0
	}
	if c >= float64(g.dims[axis]) {
		return g.dims[axis] - 1
	}
	return uint32(c)
}

// cell is one occupied grid cell: the atoms order[Start:End] and the cube
// they fall into.
type cell struct {
	start, end int
	coord      [3]uint32
}

// sortGrid buckets every atom into its grid cell, lays the occupied cells
// out in Morton order and refines each cell with an octree descent.
// rank holds one word per grid cell.
func (w *walker) sortGrid(g grid, rank []uint32) {
	n := len(w.order)
	dx, dy := g.dims[0], g.dims[1]
	occupied := bitset.New(uint(len(rank)))

	for i, a := range w.order {
		cx := g.coord(w.xs[a], 0)
		cy := g.coord(w.ys[a], 1)
		cz := g.coord(w.zs[a], 2)
		id := cx + dx*(cy+dy*cz)
		w.keys[i] = id
		rank[id]++
		occupied.Set(uint(id))
	}

	cells := make([]cell, 0, occupied.Count())
	for id, ok := occupied.NextSet(0); ok; id, ok = occupied.NextSet(id + 1) {
		v := uint32(id)
		cells = append(cells, cell{coord: [3]uint32{v % dx, (v / dx) % dy, v / (dx * dy)}})
	}
	slices.SortFunc(cells, func(a, b cell) int {
		ka := morton(a.coord[0], a.coord[1], a.coord[2])
		kb := morton(b.coord[0], b.coord[1], b.coord[2])
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	})

	offset := 0
	for i := range cells {
		c := &cells[i]
		id := c.coord[0] + dx*(c.coord[1]+dy*c.coord[2])
		count := int(rank[id])
		c.start, c.end = offset, offset+count
		rank[id] = uint32(offset)
		offset += count
	}
	if offset != n {
		panic(fmt.Sprintf("reorder: grid cells hold %d of %d atoms", offset, n))
	}

	for i, a := range w.order {
		id := w.keys[i]
		w.tmp[rank[id]] = a
		rank[id]++
	}
	copy(w.order, w.tmp)

	refine := func(i int) {
		c := cells[i]
		if c.end-c.start <= 1 {
			return
		}
		var center [3]float64
		for axis := 0; axis < 3; axis++ {
			center[axis] = g.origin[axis] + (float64(c.coord[axis])+0.5)*g.side
		}
		w.descend(c.start, c.end, center, g.side)
	}

	if w.pool == nil {
		for i := range cells {
			refine(i)
		}
		return
	}
	w.pool.Run(len(cells), refine)
}
