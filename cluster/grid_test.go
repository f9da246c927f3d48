package cluster

import (
	"testing"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

func makeSortedBatch(hits ...[4]uint32) *tpx3.HitBatch {
	b := tpx3.NewHitBatch(len(hits))
	for _, h := range hits {
		b.Push(uint16(h[0]), uint16(h[1]), h[2], 1, h[2], 0)
	}
	return b
}

func TestGridClustererRejectsUnsortedInput(t *testing.T) {
	c, err := NewGridClusterer(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := makeSortedBatch([4]uint32{0, 0, 100}, [4]uint32{0, 0, 10})
	if _, err := c.Cluster(b); err != ErrNotTOFSorted {
		t.Fatalf("err = %v, want ErrNotTOFSorted", err)
	}
}

func TestGridClustererRejectsEmptyInput(t *testing.T) {
	c, err := NewGridClusterer(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := tpx3.NewHitBatch(0)
	if _, err := c.Cluster(b); err != ErrEmptyInput {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestGridClustererGroupsNearbyHitsIntoOneCluster(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 2
	cfg.WindowNS = 25 * 10 // 10 ticks
	c, err := NewGridClusterer(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three hits tightly packed in space and time form one cluster; a
	// fourth hit far away in tof (past the window) is its own cluster.
	b := makeSortedBatch(
		[4]uint32{10, 10, 100},
		[4]uint32{11, 10, 102},
		[4]uint32{10, 11, 105},
		[4]uint32{200, 200, 5000},
	)

	n, err := c.Cluster(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d clusters, want 2", n)
	}
	if b.ClusterID[0] != b.ClusterID[1] || b.ClusterID[1] != b.ClusterID[2] {
		t.Fatalf("first three hits must share a cluster id, got %v", b.ClusterID)
	}
	if b.ClusterID[3] == b.ClusterID[0] {
		t.Fatal("the isolated hit must not share a cluster with the tight group")
	}
}

func TestGridClustererFiltersClustersBelowMinSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 2
	cfg.WindowNS = 250
	cfg.MinClusterSize = 2
	c, err := NewGridClusterer(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two isolated singleton hits, far apart: both should be filtered as
	// noise under a min size of 2.
	b := makeSortedBatch(
		[4]uint32{0, 0, 100},
		[4]uint32{200, 200, 9000},
	)
	n, err := c.Cluster(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("got %d surviving clusters, want 0", n)
	}
	if b.ClusterID[0] != -1 || b.ClusterID[1] != -1 {
		t.Fatalf("filtered hits must carry ClusterID -1, got %v", b.ClusterID)
	}
}

func TestChunkRangesCoversWholeRangeWithoutOverlap(t *testing.T) {
	ranges := chunkRanges(10, 3)
	var total int
	prevHi := 0
	for _, r := range ranges {
		if r[0] != prevHi {
			t.Fatalf("gap/overlap at range %v, prev hi %d", r, prevHi)
		}
		total += r[1] - r[0]
		prevHi = r[1]
	}
	if total != 10 {
		t.Fatalf("ranges cover %d items, want 10", total)
	}
	if prevHi != 10 {
		t.Fatalf("ranges end at %d, want 10", prevHi)
	}
}

func TestChunkRangesHandlesMoreWorkersThanItems(t *testing.T) {
	ranges := chunkRanges(2, 8)
	var total int
	for _, r := range ranges {
		total += r[1] - r[0]
	}
	if total != 2 {
		t.Fatalf("ranges cover %d items, want 2", total)
	}
}

func TestGridClustererAssignsDeterministicLabelsAcrossRuns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Radius = 2
	cfg.WindowNS = 250

	build := func() *tpx3.HitBatch {
		return makeSortedBatch(
			[4]uint32{10, 10, 100},
			[4]uint32{11, 10, 102},
			[4]uint32{100, 100, 2000},
			[4]uint32{101, 100, 2002},
			[4]uint32{200, 200, 9000},
		)
	}

	var want []int32
	for run := 0; run < 5; run++ {
		c, err := NewGridClusterer(cfg, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b := build()
		if _, err := c.Cluster(b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run == 0 {
			want = append([]int32(nil), b.ClusterID...)
			continue
		}
		for i := range want {
			if b.ClusterID[i] != want[i] {
				t.Fatalf("run %d: ClusterID = %v, want %v (labels must be reproducible across calls)", run, b.ClusterID, want)
			}
		}
	}
}

func TestUnionFindUnionsAcrossChains(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)
	if uf.find(0) != uf.find(2) {
		t.Fatal("0 and 2 must share a root after chained unions")
	}
	if uf.find(0) == uf.find(3) {
		t.Fatal("disjoint groups must not share a root")
	}
}
