package cluster

// spatialGrid is a broad-phase index over 2D points: a map from a packed
// (cx, cy) cell key to the slice of indices inserted into that cell, in
// insertion order. A single int64 key per cell means a cell lookup in the
// 3x3-neighbourhood scan does not allocate.
//
// Cell slices are not sorted by the grid itself. When indices are inserted
// in ascending order over a tof-sorted batch, as GridClusterer does, each
// cell slice is tof-ascending as a consequence.
type spatialGrid struct {
	cellSize int
	cells    map[int64][]int32 // packed (cx,cy) -> hit indices, insertion order
}

func newSpatialGrid(cellSize int) *spatialGrid {
	if cellSize < 1 {
		cellSize = 1
	}
	return &spatialGrid{cellSize: cellSize, cells: make(map[int64][]int32)}
}

func (g *spatialGrid) cellOf(x, y uint16) (int32, int32) {
	return int32(int(x) / g.cellSize), int32(int(y) / g.cellSize)
}

func packCell(cx, cy int32) int64 {
	return int64(cx)<<32 | int64(uint32(cy))
}

// insert appends hit index idx into the cell containing (x, y).
func (g *spatialGrid) insert(x, y uint16, idx int32) {
	cx, cy := g.cellOf(x, y)
	key := packCell(cx, cy)
	g.cells[key] = append(g.cells[key], idx)
}

// removeSwap removes idx from the cell containing (x, y) using
// swap-remove, since cell order never matters for correctness.
func (g *spatialGrid) removeSwap(x, y uint16, idx int32) {
	cx, cy := g.cellOf(x, y)
	key := packCell(cx, cy)
	slice := g.cells[key]
	for i, v := range slice {
		if v == idx {
			slice[i] = slice[len(slice)-1]
			g.cells[key] = slice[:len(slice)-1]
			return
		}
	}
}

// cellSlice returns the raw (unsorted) index slice for one cell, or nil.
func (g *spatialGrid) cellSlice(cx, cy int32) []int32 {
	return g.cells[packCell(cx, cy)]
}

// neighbourCells calls fn for each of the 3x3 cells centered on (x, y)'s
// containing cell.
func (g *spatialGrid) neighbourCells(x, y uint16, fn func(cx, cy int32)) {
	cx, cy := g.cellOf(x, y)
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			fn(cx+dx, cy+dy)
		}
	}
}
