package tpx3

import "testing"

func mergedBatch(extendedTDC uint64, tofs ...uint32) *MergedPulseBatch {
	hits := NewHitBatch(len(tofs))
	for _, tof := range tofs {
		hits.Push(0, 0, tof, 1, tof, 0)
	}
	return &MergedPulseBatch{ExtendedTDC: extendedTDC, Hits: hits}
}

func TestOutOfCoreConfigResolveBudgetExplicitWins(t *testing.T) {
	cfg := OutOfCoreConfig{MemoryBudgetBytes: 4096, MemoryFraction: 0.9}
	got, err := cfg.ResolveBudgetBytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 4096 {
		t.Fatalf("budget = %d, want 4096", got)
	}
}

func TestOutOfCoreConfigResolveBudgetInvalidFraction(t *testing.T) {
	for _, frac := range []float64{0, -0.1, 1.1} {
		cfg := OutOfCoreConfig{MemoryFraction: frac}
		if _, err := cfg.ResolveBudgetBytes(); err != ErrMemoryBudget {
			t.Fatalf("fraction %v: err = %v, want ErrMemoryBudget", frac, err)
		}
	}
}

func TestPulseBatcherAccumulatesUntilBudget(t *testing.T) {
	cfg := OutOfCoreConfig{MemoryBudgetBytes: bytesPerHit * 5, WindowTicks: 10}
	b, err := NewPulseBatcher(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := make(chan *MergedPulseBatch, 8)
	in <- mergedBatch(1000, 1, 2)          // 2 hits
	in <- mergedBatch(2000, 3, 4)          // 2 hits, total 4 <= 5
	in <- mergedBatch(3000, 5, 6, 7)       // 3 hits would overflow (4+3=7>5): new group
	close(in)

	out := b.Run(in, nil)
	var groups []*PulseBatchGroup
	for g := range out {
		groups = append(groups, g)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if len(groups[0].Slices) != 2 {
		t.Fatalf("group 0 has %d slices, want 2", len(groups[0].Slices))
	}
	if len(groups[1].Slices) != 1 {
		t.Fatalf("group 1 has %d slices, want 1", len(groups[1].Slices))
	}
}

func TestSplitPulseWithOverlapCarriesGhostHitsAndCutoff(t *testing.T) {
	// Budget allows exactly 3 hits per slice; a hit within windowTicks=5 of
	// the cutoff tof must be absorbed into the first slice as a ghost hit,
	// and that slice must carry EmitCutoffTOF so downstream doesn't double
	// emit it.
	merged := mergedBatch(1000, 1, 2, 3, 6, 50, 51)
	slices := SplitPulseWithOverlap(merged, bytesPerHit*3, 5)

	if len(slices) < 2 {
		t.Fatalf("got %d slices, want at least 2", len(slices))
	}
	first := slices[0]
	if !first.HasCutoff {
		t.Fatal("first slice of a split pulse must carry a cutoff")
	}
	if first.EmitCutoffTOF != 3 {
		t.Fatalf("EmitCutoffTOF = %d, want 3 (the boundary before overlap absorption)", first.EmitCutoffTOF)
	}
	// tof=6 is within windowTicks(5) of cutoff(3): 6-3=3<=5, so it must be
	// absorbed into the first slice despite exceeding the raw hit count.
	if first.Hits.Len() < 4 {
		t.Fatalf("first slice has %d hits, want >= 4 (ghost hit absorbed)", first.Hits.Len())
	}
	last := slices[len(slices)-1]
	if last.HasCutoff {
		t.Fatal("the last slice of a split pulse must not carry a cutoff")
	}
}

func TestSplitPulseWithOverlapEmptyBatch(t *testing.T) {
	merged := mergedBatch(1000)
	slices := SplitPulseWithOverlap(merged, 1024, 5)
	if slices != nil {
		t.Fatalf("expected nil slices for an empty pulse, got %+v", slices)
	}
}

func TestCountEmittedHitsBinarySearch(t *testing.T) {
	b := NewHitBatch(0)
	for _, tof := range []uint32{1, 2, 3, 5, 8, 13} {
		b.Push(0, 0, tof, 1, tof, 0)
	}
	if got := CountEmittedHits(b, 5); got != 4 {
		t.Fatalf("CountEmittedHits(<=5) = %d, want 4", got)
	}
	if got := CountEmittedHits(b, 0); got != 0 {
		t.Fatalf("CountEmittedHits(<=0) = %d, want 0", got)
	}
	if got := CountEmittedHits(b, 100); got != 6 {
		t.Fatalf("CountEmittedHits(<=100) = %d, want 6", got)
	}
}

func TestPulseBatcherSplitsOversizedSinglePulse(t *testing.T) {
	cfg := OutOfCoreConfig{MemoryBudgetBytes: bytesPerHit * 2, WindowTicks: 1}
	b, err := NewPulseBatcher(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in := make(chan *MergedPulseBatch, 1)
	in <- mergedBatch(5000, 1, 2, 3, 4, 5, 6, 7, 8)
	close(in)

	out := b.Run(in, nil)
	var groups []*PulseBatchGroup
	for g := range out {
		groups = append(groups, g)
	}
	if len(groups) < 2 {
		t.Fatalf("got %d groups for an oversized single pulse, want multiple slices", len(groups))
	}
	for _, g := range groups {
		if len(g.Slices) != 1 {
			t.Fatalf("split-pulse groups must carry exactly one slice each, got %d", len(g.Slices))
		}
	}
}
