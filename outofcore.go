package tpx3

import (
	"runtime"
	"sort"
)

// bytesPerHit approximates a HitBatch's per-hit memory footprint across its
// seven columns (2+2+4+2+4+1+4 bytes), used only to size out-of-core
// batches; it need not be exact, only a stable basis for a budget.
const bytesPerHit = 19

// OutOfCoreConfig controls how MergedPulseBatch values are grouped into
// bounded-memory PulseBatchGroup values.
type OutOfCoreConfig struct {
	MemoryFraction    float64 // fraction of estimated available RAM to use, if MemoryBudgetBytes is 0
	MemoryBudgetBytes uint64  // explicit byte budget; takes precedence if non-zero
	WindowTicks       uint32  // clustering temporal window, sizes ghost-hit overlap
}

// ResolveBudgetBytes returns the configured byte budget. An explicit
// MemoryBudgetBytes wins; otherwise a fraction of runtime.MemStats' system
// memory estimate is used. The standard library has no portable
// "available system memory" query (unlike a dedicated system-info crate),
// so this deliberately estimates from the Go runtime's own memory stats
// rather than pulling in a platform-specific dependency for one number.
func (c OutOfCoreConfig) ResolveBudgetBytes() (uint64, error) {
	if c.MemoryBudgetBytes > 0 {
		return c.MemoryBudgetBytes, nil
	}
	if c.MemoryFraction <= 0 || c.MemoryFraction > 1 {
		return 0, ErrMemoryBudget
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	// Sys is the total memory obtained from the OS by the runtime; it is a
	// conservative proxy for what this process may use, not total system
	// RAM, but it scales sensibly with -memprofile-style sizing knobs and
	// needs no platform-specific syscalls.
	base := stats.Sys
	if base == 0 {
		return 0, ErrMemoryBudget
	}
	return uint64(float64(base) * c.MemoryFraction), nil
}

// PulseSlice is one emittable slice of a (possibly split) pulse: the hits
// to process, plus the tof cutoff beyond which extracted neutrons must not
// be emitted, since a later slice already owns the overlap region.
type PulseSlice struct {
	ExtendedTDC   uint64
	Hits          *HitBatch
	EmitCutoffTOF uint32
	HasCutoff     bool
}

// PulseBatchGroup accumulates whole pulses until the next would overflow
// the configured budget.
type PulseBatchGroup struct {
	Slices []PulseSlice
}

func (g *PulseBatchGroup) sizeBytes() uint64 {
	var total uint64
	for _, s := range g.Slices {
		total += uint64(s.Hits.Len()) * bytesPerHit
	}
	return total
}

// PulseBatcher consumes a MergedPulseBatch stream and emits PulseBatchGroup
// values sized to the configured memory budget, splitting any
// single pulse that alone exceeds the budget at tof boundaries.
type PulseBatcher struct {
	cfg         OutOfCoreConfig
	budgetBytes uint64
}

// NewPulseBatcher resolves the configured budget up front.
func NewPulseBatcher(cfg OutOfCoreConfig) (*PulseBatcher, error) {
	budget, err := cfg.ResolveBudgetBytes()
	if err != nil {
		return nil, err
	}
	return &PulseBatcher{cfg: cfg, budgetBytes: budget}, nil
}

// Run drains in, emitting PulseBatchGroup values on the returned channel.
func (b *PulseBatcher) Run(in <-chan *MergedPulseBatch, cancelled func() bool) <-chan *PulseBatchGroup {
	out := make(chan *PulseBatchGroup)

	go func() {
		defer close(out)
		group := &PulseBatchGroup{}

		flush := func() {
			if len(group.Slices) > 0 {
				out <- group
				group = &PulseBatchGroup{}
			}
		}

		for merged := range in {
			if cancelled != nil && cancelled() {
				return
			}

			pulseBytes := uint64(merged.Hits.Len()) * bytesPerHit

			if pulseBytes > b.budgetBytes {
				flush()
				for _, slice := range SplitPulseWithOverlap(merged, b.budgetBytes, b.cfg.WindowTicks) {
					out <- &PulseBatchGroup{Slices: []PulseSlice{slice}}
				}
				continue
			}

			if group.sizeBytes()+pulseBytes > b.budgetBytes && len(group.Slices) > 0 {
				flush()
			}
			group.Slices = append(group.Slices, PulseSlice{ExtendedTDC: merged.ExtendedTDC, Hits: merged.Hits})
		}
		flush()
	}()

	return out
}

// SplitPulseWithOverlap splits a single oversized pulse at tof boundaries
// sized to fit budgetBytes per slice. Every slice but the last carries an
// EmitCutoffTOF at its own boundary and also holds the hits up to
// windowTicks past that cutoff ("ghost hits"), so clustering can still link
// clusters straddling the cut. The slice that follows starts at the cut, so
// the ghost hits are processed again there; downstream extraction must
// discard anything with representative tof beyond the cutoff to avoid
// double-emission.
func SplitPulseWithOverlap(merged *MergedPulseBatch, budgetBytes uint64, windowTicks uint32) []PulseSlice {
	hits := merged.Hits
	n := hits.Len()
	if n == 0 {
		return nil
	}

	hitsPerSlice := int(budgetBytes / bytesPerHit)
	if hitsPerSlice < 1 {
		hitsPerSlice = 1
	}

	var slices []PulseSlice
	lo := 0
	for lo < n {
		hi := lo + hitsPerSlice
		if hi > n {
			hi = n
		}
		isLast := hi >= n
		cutoffIdx := hi - 1

		// Extend hi to absorb ghost hits within windowTicks of the cutoff
		// tof, so a cluster straddling the boundary is not severed.
		cutoffTOF := hits.TOF[cutoffIdx]
		extendedHi := hi
		for extendedHi < n && uint32(hits.TOF[extendedHi])-cutoffTOF <= windowTicks {
			extendedHi++
		}

		slice := PulseSlice{
			ExtendedTDC: merged.ExtendedTDC,
			Hits:        hits.Slice(lo, extendedHi),
			HasCutoff:   !isLast,
		}
		if !isLast {
			slice.EmitCutoffTOF = cutoffTOF
		}
		slices = append(slices, slice)
		lo = hi
	}
	return slices
}

// CountEmittedHits reports how many hits in a tof-sorted batch fall at or
// before cutoffTOF, via binary search rather than a linear scan, a
// partition-point idiom for tracking emitted-hit counts without
// recounting ghost hits across overlapping slices.
func CountEmittedHits(batch *HitBatch, cutoffTOF uint32) int {
	return sort.Search(batch.Len(), func(i int) bool {
		return batch.TOF[i] > cutoffTOF
	})
}
