package cluster

import (
	"github.com/alitto/pond"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

const (
	noise     int32 = -2
	unvisited int32 = -3
)

// DBSCANClusterer implements density-based clustering with the canonical
// DBSCAN expansion rule: a point with at least DBSCANMinPoints neighbours
// opens a cluster, and a seed popped from the queue appends its own
// neighbours only when it is itself core (at least DBSCANMinPoints
// neighbours). A border point takes the cluster label but never extends
// the seed queue; a point earlier marked noise is relabelled into the
// cluster whose expansion reaches it.
//
// Unlike GridClusterer, the input need not be tof-sorted.
type DBSCANClusterer struct {
	cfg  Config
	pool *pond.WorkerPool
}

// NewDBSCANClusterer builds a clusterer. pool is optional.
func NewDBSCANClusterer(cfg Config, pool *pond.WorkerPool) (*DBSCANClusterer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DBSCANClusterer{cfg: cfg, pool: pool}, nil
}

// Cluster assigns batch.ClusterID in place and returns the number of
// surviving (post size-filter) clusters.
func (c *DBSCANClusterer) Cluster(batch *tpx3.HitBatch) (int, error) {
	n := batch.Len()
	if n == 0 {
		return 0, ErrEmptyInput
	}

	grid := newSpatialGrid(c.cfg.CellSize())
	for i := 0; i < n; i++ {
		grid.insert(batch.X[i], batch.Y[i], int32(i))
	}

	labels := make([]int32, n)
	for i := range labels {
		labels[i] = unvisited
	}

	radiusSq := c.cfg.radiusSquared()
	windowTicks := c.cfg.WindowTicks()
	minPoints := c.cfg.DBSCANMinPoints

	neighboursOf := func(i int) []int32 {
		var out []int32
		xi, yi, tofi := batch.X[i], batch.Y[i], batch.TOF[i]
		grid.neighbourCells(xi, yi, func(cx, cy int32) {
			for _, jRaw := range grid.cellSlice(cx, cy) {
				j := int(jRaw)
				if j == i {
					continue
				}
				if linked(xi, yi, tofi, batch.X[j], batch.Y[j], batch.TOF[j], radiusSq, windowTicks) {
					out = append(out, jRaw)
				}
			}
		})
		return out
	}

	currentCluster := int32(0)
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbours := neighboursOf(i)
		if len(neighbours) < minPoints {
			labels[i] = noise
			continue
		}

		labels[i] = currentCluster
		seeds := append([]int32{}, neighbours...)
		for len(seeds) > 0 {
			s := seeds[0]
			seeds = seeds[1:]

			if labels[s] == noise {
				labels[s] = currentCluster
				continue
			}
			if labels[s] != unvisited {
				continue
			}

			labels[s] = currentCluster
			sNeighbours := neighboursOf(int(s))
			if len(sNeighbours) >= minPoints {
				seeds = append(seeds, sNeighbours...)
			}
		}

		currentCluster++
	}

	return c.postFilter(batch, labels, int(currentCluster))
}

// postFilter relabels clusters below min_cluster_size to -1 and densely
// remaps the survivors, distributing the per-hit rewrite across the
// worker pool when one is configured.
func (c *DBSCANClusterer) postFilter(batch *tpx3.HitBatch, labels []int32, numClusters int) (int, error) {
	sizes := make([]int, numClusters)
	for _, l := range labels {
		if l >= 0 {
			sizes[l]++
		}
	}

	remap := make([]int32, numClusters)
	next := int32(0)
	for cl, size := range sizes {
		if size < c.cfg.MinClusterSize {
			remap[cl] = -1
			continue
		}
		if c.cfg.MaxClusterSize != 0 && size > c.cfg.MaxClusterSize {
			remap[cl] = -1
			continue
		}
		remap[cl] = next
		next++
	}
	if next > (1<<31 - 1) {
		return 0, ErrClusterIDOverflow
	}

	n := len(labels)
	assign := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			l := labels[i]
			if l < 0 {
				batch.ClusterID[i] = -1
				continue
			}
			batch.ClusterID[i] = remap[l]
		}
	}

	if c.pool == nil {
		assign(0, n)
		return int(next), nil
	}

	group := c.pool.Group()
	for _, r := range chunkRanges(n, c.pool.MaxWorkers()) {
		lo, hi := r[0], r[1]
		group.Submit(func() { assign(lo, hi) })
	}
	group.Wait()

	return int(next), nil
}
