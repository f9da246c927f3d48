package tpx3

import "sort"

// HitBatch stores decoded hits as seven parallel arrays rather than an
// array of structs, so downstream clustering and extraction can operate
// column-at-a-time and the arrays compress and vectorize well. All seven
// slices always have identical length; NewHitBatch and the mutators below
// are the only places that invariant needs enforcing.
type HitBatch struct {
	X         []uint16
	Y         []uint16
	TOF       []uint32
	TOT       []uint16
	Timestamp []uint32
	ChipID    []uint8
	ClusterID []int32
}

// NewHitBatch returns an empty batch with room for capacity hits
// preallocated in every column.
func NewHitBatch(capacity int) *HitBatch {
	return &HitBatch{
		X:         make([]uint16, 0, capacity),
		Y:         make([]uint16, 0, capacity),
		TOF:       make([]uint32, 0, capacity),
		TOT:       make([]uint16, 0, capacity),
		Timestamp: make([]uint32, 0, capacity),
		ChipID:    make([]uint8, 0, capacity),
		ClusterID: make([]int32, 0, capacity),
	}
}

// Len returns the shared column length.
func (b *HitBatch) Len() int {
	return len(b.X)
}

// IsEmpty reports whether the batch has zero hits.
func (b *HitBatch) IsEmpty() bool {
	return b.Len() == 0
}

// Clear truncates every column to zero length without releasing capacity.
func (b *HitBatch) Clear() {
	b.X = b.X[:0]
	b.Y = b.Y[:0]
	b.TOF = b.TOF[:0]
	b.TOT = b.TOT[:0]
	b.Timestamp = b.Timestamp[:0]
	b.ChipID = b.ChipID[:0]
	b.ClusterID = b.ClusterID[:0]
}

// Push appends one decoded hit. ClusterID starts at -1 (unassigned).
func (b *HitBatch) Push(x, y uint16, tof uint32, tot uint16, timestamp uint32, chipID uint8) {
	b.X = append(b.X, x)
	b.Y = append(b.Y, y)
	b.TOF = append(b.TOF, tof)
	b.TOT = append(b.TOT, tot)
	b.Timestamp = append(b.Timestamp, timestamp)
	b.ChipID = append(b.ChipID, chipID)
	b.ClusterID = append(b.ClusterID, -1)
}

// Append concatenates other onto b, column by column.
func (b *HitBatch) Append(other *HitBatch) {
	b.X = append(b.X, other.X...)
	b.Y = append(b.Y, other.Y...)
	b.TOF = append(b.TOF, other.TOF...)
	b.TOT = append(b.TOT, other.TOT...)
	b.Timestamp = append(b.Timestamp, other.Timestamp...)
	b.ChipID = append(b.ChipID, other.ChipID...)
	b.ClusterID = append(b.ClusterID, other.ClusterID...)
}

// Slice returns a new owned batch holding a copy of hits [lo, hi).
func (b *HitBatch) Slice(lo, hi int) *HitBatch {
	out := NewHitBatch(hi - lo)
	out.X = append(out.X, b.X[lo:hi]...)
	out.Y = append(out.Y, b.Y[lo:hi]...)
	out.TOF = append(out.TOF, b.TOF[lo:hi]...)
	out.TOT = append(out.TOT, b.TOT[lo:hi]...)
	out.Timestamp = append(out.Timestamp, b.Timestamp[lo:hi]...)
	out.ChipID = append(out.ChipID, b.ChipID[lo:hi]...)
	out.ClusterID = append(out.ClusterID, b.ClusterID[lo:hi]...)
	return out
}

// SortByTOF stably sorts every column by ascending TOF. A permutation
// index is built once and every column is re-ordered through the same
// index, rather than running seven synchronized comparison sorts.
func (b *HitBatch) SortByTOF() {
	n := b.Len()
	if n < 2 {
		return
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return b.TOF[perm[i]] < b.TOF[perm[j]]
	})
	b.applyPermutation(perm)
}

func (b *HitBatch) applyPermutation(perm []int) {
	n := len(perm)
	x := make([]uint16, n)
	y := make([]uint16, n)
	tof := make([]uint32, n)
	tot := make([]uint16, n)
	ts := make([]uint32, n)
	chip := make([]uint8, n)
	cluster := make([]int32, n)
	for i, p := range perm {
		x[i] = b.X[p]
		y[i] = b.Y[p]
		tof[i] = b.TOF[p]
		tot[i] = b.TOT[p]
		ts[i] = b.Timestamp[p]
		chip[i] = b.ChipID[p]
		cluster[i] = b.ClusterID[p]
	}
	b.X, b.Y, b.TOF, b.TOT, b.Timestamp, b.ChipID, b.ClusterID = x, y, tof, tot, ts, chip, cluster
}

// IsTOFSorted reports whether the batch is already non-decreasing in tof,
// the invariant several clustering algorithms require and assert.
func (b *HitBatch) IsTOFSorted() bool {
	for i := 1; i < b.Len(); i++ {
		if b.TOF[i] < b.TOF[i-1] {
			return false
		}
	}
	return true
}
