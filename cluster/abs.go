package cluster

import (
	"sort"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

// maxBuckets hard-caps the ABS bucket pool to contain pathological inputs
// (e.g. a detector firing continuously with no coherent clusters).
const maxBuckets = 1_000_000

// bucket is one growing cluster's running bounding box and tof window.
type bucket struct {
	active   bool
	id       int32 // unique across the whole pass, independent of slot reuse
	minX     int
	minY     int
	maxX     int
	maxY     int
	startTOF uint32
	lastTOF  uint32
	cell     int64 // packed cell this bucket is indexed under, for removal
}

// ABSClusterer implements the single-pass, age-based streaming algorithm:
// a pool of active buckets, each a growing cluster, aged out and closed
// once their tof window has elapsed. Input need not be tof-sorted in
// principle, but the aging policy assumes hits arrive in roughly
// increasing tof order, the same assumption a true streaming reader
// satisfies; a MergedPulseBatch from the merger always does.
type ABSClusterer struct {
	cfg Config

	buckets  []bucket
	freeList []int32
	grid     *spatialGrid // indexes bucket indices, not hit indices
	hitCount int
	nextID   int32 // next unique bucket generation id, never reused
}

// NewABSClusterer builds a clusterer.
func NewABSClusterer(cfg Config) (*ABSClusterer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ABSClusterer{cfg: cfg}, nil
}

// Cluster assigns batch.ClusterID in place and returns the number of
// surviving (post size-filter) clusters.
func (c *ABSClusterer) Cluster(batch *tpx3.HitBatch) (int, error) {
	n := batch.Len()
	if n == 0 {
		return 0, ErrEmptyInput
	}

	c.buckets = c.buckets[:0]
	c.freeList = c.freeList[:0]
	c.grid = newSpatialGrid(c.cfg.CellSize())
	c.hitCount = 0
	c.nextID = 0

	// labels holds each hit's bucket generation id, not its pool slot:
	// slots are recycled through the free-list as buckets age out, so two
	// temporally-distinct buckets can share a slot. Only the generation id
	// uniquely identifies a cluster across the whole pass.
	labels := make([]int32, n)
	radius := int(c.cfg.Radius)
	if radius < 1 {
		radius = 1
	}
	windowTicks := c.cfg.WindowTicks()

	for i := 0; i < n; i++ {
		x, y, tof := int(batch.X[i]), int(batch.Y[i]), batch.TOF[i]

		c.hitCount++
		if c.cfg.ABSScanInterval > 0 && c.hitCount%c.cfg.ABSScanInterval == 0 {
			c.ageBuckets(tof, windowTicks)
		}

		bucketID, err := c.assign(x, y, tof, radius, windowTicks)
		if err != nil {
			return 0, err
		}
		labels[i] = bucketID
	}

	// Force-close every remaining active bucket at a synthetic reference
	// tof beyond all observed data, so nothing straddling the final scan
	// interval is silently left open.
	if n > 0 {
		c.ageBuckets(batch.TOF[n-1]+windowTicks+1, windowTicks)
	}

	return c.finalize(batch, labels)
}

// assign finds the first active bucket near (x, y) whose expanded
// bounding box contains the hit and whose window has not elapsed,
// extending it; otherwise it allocates a new bucket. It returns the
// bucket's generation id (see labels' comment in Cluster), not its slot.
func (c *ABSClusterer) assign(x, y int, tof uint32, radius int, windowTicks uint32) (int32, error) {
	cx, cy := int32(x/c.cfg.CellSize()), int32(y/c.cfg.CellSize())

	var found int32 = -1
	for dx := int32(-1); dx <= 1 && found < 0; dx++ {
		for dy := int32(-1); dy <= 1 && found < 0; dy++ {
			for _, idxRaw := range c.grid.cellSlice(cx+dx, cy+dy) {
				idx := int(idxRaw)
				b := &c.buckets[idx]
				if !b.active {
					continue
				}
				if tof-b.startTOF > windowTicks {
					continue
				}
				if x >= b.minX-radius && x <= b.maxX+radius && y >= b.minY-radius && y <= b.maxY+radius {
					found = idxRaw
					break
				}
			}
		}
	}

	if found >= 0 {
		b := &c.buckets[found]
		if x < b.minX {
			b.minX = x
		}
		if x > b.maxX {
			b.maxX = x
		}
		if y < b.minY {
			b.minY = y
		}
		if y > b.maxY {
			b.maxY = y
		}
		b.lastTOF = tof
		return b.id, nil
	}

	idx, err := c.allocate(x, y, tof)
	if err != nil {
		return 0, err
	}
	c.buckets[idx].cell = packCell(cx, cy)
	c.grid.cells[packCell(cx, cy)] = append(c.grid.cells[packCell(cx, cy)], idx)
	return c.buckets[idx].id, nil
}

// allocate returns a free bucket slot, reusing the free-list when
// possible, seeded with one hit and stamped with a fresh generation id.
func (c *ABSClusterer) allocate(x, y int, tof uint32) (int32, error) {
	id := c.nextID
	c.nextID++
	b := bucket{active: true, id: id, minX: x, maxX: x, minY: y, maxY: y, startTOF: tof, lastTOF: tof}

	if n := len(c.freeList); n > 0 {
		idx := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		c.buckets[idx] = b
		return idx, nil
	}

	if len(c.buckets) >= maxBuckets {
		return 0, ErrBucketPoolExhausted
	}
	c.buckets = append(c.buckets, b)
	return int32(len(c.buckets) - 1), nil
}

// ageBuckets closes every active bucket whose window has elapsed relative
// to refTOF, returning its grid slot and releasing it to the free-list.
func (c *ABSClusterer) ageBuckets(refTOF uint32, windowTicks uint32) {
	for i := range c.buckets {
		b := &c.buckets[i]
		if !b.active {
			continue
		}
		if refTOF-b.startTOF <= windowTicks {
			continue
		}
		c.grid.removeFromCell(b.cell, int32(i))
		b.active = false
		c.freeList = append(c.freeList, int32(i))
	}
}

// finalize computes per-bucket sizes keyed by generation id, assigns
// dense labels to buckets meeting the size filter, and writes
// batch.ClusterID. Keying by id rather than pool slot is required: the
// free-list recycles slots across temporally-disjoint buckets, so two
// unrelated clusters can occupy the same slot at different times.
func (c *ABSClusterer) finalize(batch *tpx3.HitBatch, labels []int32) (int, error) {
	sizes := make(map[int32]int, len(labels))
	for _, l := range labels {
		sizes[l]++
	}

	// Generation ids are handed out in strictly increasing allocation
	// order (the same order buckets are first seen while scanning hits),
	// so sorting ids ascending reproduces that first-occurrence order
	// instead of Go's randomized map iteration order: identical input
	// must yield identical concrete cluster_id values across calls.
	ids := make([]int32, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	remap := make(map[int32]int32, len(sizes))
	next := int32(0)
	for _, id := range ids {
		size := sizes[id]
		if size < c.cfg.MinClusterSize {
			remap[id] = -1
			continue
		}
		if c.cfg.MaxClusterSize != 0 && size > c.cfg.MaxClusterSize {
			remap[id] = -1
			continue
		}
		remap[id] = next
		next++
	}
	if next > (1<<31 - 1) {
		return 0, ErrClusterIDOverflow
	}

	for i, l := range labels {
		batch.ClusterID[i] = remap[l]
	}

	return int(next), nil
}

// removeFromCell removes bucketIdx from the grid cell it was indexed
// under, using swap-remove since cell order is irrelevant.
func (g *spatialGrid) removeFromCell(cell int64, bucketIdx int32) {
	slice := g.cells[cell]
	for i, v := range slice {
		if v == bucketIdx {
			slice[i] = slice[len(slice)-1]
			g.cells[cell] = slice[:len(slice)-1]
			return
		}
	}
}
