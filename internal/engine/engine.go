// Package engine wires the per-chip pulse readers, the k-way merger, and
// the out-of-core batcher into one concurrent pipeline: single-threaded
// section discovery, one worker per chip for pulse reading, a single
// merger consumer, and cooperative cancellation via a shared flag polled
// at every suspension point.
package engine

import (
	"context"
	"sync/atomic"

	"github.com/alitto/pond"
	"golang.org/x/sync/errgroup"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

// Options configures one streaming run.
type Options struct {
	Detector  tpx3.DetectorConfig
	OutOfCore tpx3.OutOfCoreConfig
}

// Run scans data for sections, propagates TDC state, spins up one pulse
// reader goroutine per chip observed, merges their output in strict
// (extended_tdc, tof) order, and batches the merged stream into
// memory-bounded PulseBatchGroup values delivered on the returned channel.
//
// Cancellation is cooperative: ctx is polled by each pulse reader at its
// section boundaries, by the merger while waiting to receive, and by the
// out-of-core batcher before each merged pulse. Section discovery and TDC
// propagation run to completion before any of that starts and are not
// interrupted by ctx.
// Errors from any stage (notably a memory budget that cannot be resolved)
// abort the whole pipeline; the first error is returned once every
// goroutine has unwound.
func Run(ctx context.Context, data []byte, opts Options) (<-chan *tpx3.PulseBatchGroup, *errgroup.Group, error) {
	if err := opts.Detector.Validate(); err != nil {
		return nil, nil, err
	}

	var cancelled atomic.Bool
	cancelledFn := func() bool {
		if ctx.Err() != nil {
			cancelled.Store(true)
		}
		return cancelled.Load()
	}

	sections, _ := tpx3.ScanSections(data, 0, true)
	propagator := tpx3.NewTDCPropagator()
	propagator.Propagate(data, 0, sections)

	byChip := make(map[uint8][]tpx3.Section)
	for _, s := range sections {
		byChip[s.ChipID] = append(byChip[s.ChipID], s)
	}

	g, gctx := errgroup.WithContext(ctx)
	_ = gctx

	pool := pond.New(len(byChip), 0, pond.MinWorkers(len(byChip)))

	streams := make(map[uint8]<-chan *tpx3.PulseBatch, len(byChip))
	for chipID, chipSections := range byChip {
		ch := make(chan *tpx3.PulseBatch, 2)
		streams[chipID] = ch
		reader := tpx3.NewPulseReader(chipID, opts.Detector, ch)
		chipSections := chipSections
		pool.Submit(func() {
			reader.Run(data, 0, chipSections, cancelledFn)
		})
	}

	g.Go(func() error {
		pool.StopAndWait()
		return nil
	})

	merged := tpx3.KWayMerge(streams, cancelledFn)

	batcher, err := tpx3.NewPulseBatcher(opts.OutOfCore)
	if err != nil {
		cancelled.Store(true)
		pool.StopAndWait()
		return nil, nil, err
	}

	groups := batcher.Run(merged, cancelledFn)

	return groups, g, nil
}
