package cluster

import (
	"github.com/alitto/pond"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

// unionFind is a path-compression, union-by-rank disjoint-set forest over
// hit indices.
type unionFind struct {
	parent []int32
	rank   []uint8
}

func newUnionFind(n int) *unionFind {
	parent := make([]int32, n)
	for i := range parent {
		parent[i] = int32(i)
	}
	return &unionFind{parent: parent, rank: make([]uint8, n)}
}

func (u *unionFind) find(x int32) int32 {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int32) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// GridClusterer implements the broad-phase grid / union-find algorithm.
// It requires its input to already be tof-sorted: the critical temporal
// pruning in unionHits breaks out of the inner neighbour loop as soon as
// tof_j - tof_i exceeds the window, which is only valid when hits arrive
// tof-ascending.
type GridClusterer struct {
	cfg  Config
	pool *pond.WorkerPool
}

// NewGridClusterer builds a clusterer. pool is optional; when nil, the
// label-reset and remap passes run sequentially instead of data-parallel.
func NewGridClusterer(cfg Config, pool *pond.WorkerPool) (*GridClusterer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GridClusterer{cfg: cfg, pool: pool}, nil
}

// Cluster assigns batch.ClusterID in place and returns the number of
// surviving (post size-filter) clusters.
func (c *GridClusterer) Cluster(batch *tpx3.HitBatch) (int, error) {
	n := batch.Len()
	if n == 0 {
		return 0, ErrEmptyInput
	}
	if !batch.IsTOFSorted() {
		return 0, ErrNotTOFSorted
	}

	grid := newSpatialGrid(c.cfg.CellSize())
	for i := 0; i < n; i++ {
		grid.insert(batch.X[i], batch.Y[i], int32(i))
	}

	uf := newUnionFind(n)
	c.unionHits(batch, grid, uf)

	return c.assignLabels(batch, uf)
}

// unionHits is the narrow phase: for each hit i, scan the 3x3 cells around
// it and union with any hit j > i (tof-ascending) satisfying the
// spatio-temporal predicate, breaking out of a cell's scan as soon as the
// tof gap exceeds the window.
func (c *GridClusterer) unionHits(batch *tpx3.HitBatch, grid *spatialGrid, uf *unionFind) {
	radiusSq := c.cfg.radiusSquared()
	windowTicks := c.cfg.WindowTicks()
	n := batch.Len()

	for i := 0; i < n; i++ {
		xi, yi, tofi := batch.X[i], batch.Y[i], batch.TOF[i]
		grid.neighbourCells(xi, yi, func(cx, cy int32) {
			cell := grid.cellSlice(cx, cy)
			for _, jRaw := range cell {
				j := int(jRaw)
				if j <= i {
					continue
				}
				tofj := batch.TOF[j]
				if tofj < tofi {
					continue
				}
				if tofj-tofi > windowTicks {
					break
				}
				if linked(xi, yi, tofi, batch.X[j], batch.Y[j], tofj, radiusSq, windowTicks) {
					uf.union(int32(i), jRaw)
				}
			}
		})
	}
}

// assignLabels computes per-root cluster sizes, assigns a dense label to
// every root meeting the size filter, and writes -1 to filtered hits. The
// per-hit label lookup is split across the worker pool when one is
// configured, since it is embarrassingly parallel over independent
// indices once root sizes are known.
func (c *GridClusterer) assignLabels(batch *tpx3.HitBatch, uf *unionFind) (int, error) {
	n := batch.Len()
	rootSize := make(map[int32]int, n)
	// rootOrder records each root's first-occurrence index so labels are
	// assigned in a deterministic, input-order sequence rather than Go's
	// randomized map iteration order: identical input must produce
	// identical concrete cluster_id values across repeated calls.
	var rootOrder []int32
	for i := 0; i < n; i++ {
		root := uf.find(int32(i))
		if _, seen := rootSize[root]; !seen {
			rootOrder = append(rootOrder, root)
		}
		rootSize[root]++
	}

	rootLabel := make(map[int32]int32, len(rootSize))
	next := int32(0)
	for _, root := range rootOrder {
		size := rootSize[root]
		if size < c.cfg.MinClusterSize {
			continue
		}
		if c.cfg.MaxClusterSize != 0 && size > c.cfg.MaxClusterSize {
			continue
		}
		rootLabel[root] = next
		next++
	}
	if next > (1<<31 - 1) {
		return 0, ErrClusterIDOverflow
	}

	assign := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			root := uf.find(int32(i))
			if label, ok := rootLabel[root]; ok {
				batch.ClusterID[i] = label
			} else {
				batch.ClusterID[i] = -1
			}
		}
	}

	if c.pool == nil {
		assign(0, n)
		return int(next), nil
	}

	chunks := chunkRanges(n, c.pool.MaxWorkers())
	group := c.pool.Group()
	for _, r := range chunks {
		lo, hi := r[0], r[1]
		group.Submit(func() { assign(lo, hi) })
	}
	group.Wait()

	return int(next), nil
}

// chunkRanges splits [0, n) into up to workers contiguous ranges.
func chunkRanges(n, workers int) [][2]int {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers == 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	var ranges [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	return ranges
}
