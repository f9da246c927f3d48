package tpx3

import (
	"container/heap"
	"time"
)

// mergePollInterval bounds cancellation latency in KWayMerge: a receive that
// would otherwise block forever on a stalled chip producer is retried on
// this cadence so a cancellation flag set mid-wait is still observed
// promptly.
const mergePollInterval = 50 * time.Millisecond

// recvOrCancel receives from in, waking every mergePollInterval to re-check
// cancelled so a stalled producer never blocks cancellation indefinitely.
func recvOrCancel(in <-chan *PulseBatch, cancelled func() bool) (batch *PulseBatch, ok bool, wasCancelled bool) {
	timer := time.NewTimer(mergePollInterval)
	defer timer.Stop()
	for {
		select {
		case b, chOk := <-in:
			return b, chOk, false
		case <-timer.C:
			if cancelled != nil && cancelled() {
				return nil, false, true
			}
			timer.Reset(mergePollInterval)
		}
	}
}

// MergedPulseBatch is every per-chip PulseBatch sharing an extended TDC,
// concatenated and re-sorted by tof.
type MergedPulseBatch struct {
	ExtendedTDC uint64
	Hits        *HitBatch
}

// chipStream is one chip's channel of pulses plus its current head, the
// unit the merge heap orders on.
type chipStream struct {
	in   <-chan *PulseBatch
	head *PulseBatch
}

type mergeHeap []*chipStream

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	ei, ej := h[i].head.ExtendedTDC(), h[j].head.ExtendedTDC()
	if ei != ej {
		return ei < ej
	}
	return h[i].head.ChipID < h[j].head.ChipID
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*chipStream)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KWayMerge reads the head PulseBatch from every chip's channel and drains
// them in strictly non-decreasing (extended_tdc, tof) order, keyed first
// on extended_tdc with chip_id as a deterministic tiebreak. Every chip
// whose head shares the smallest extended_tdc is drained together into a
// single MergedPulseBatch re-sorted by tof.
//
// cancelled is polled before every receive so discovery-side cancellation
// propagates without the merger blocking forever on a stalled producer.
func KWayMerge(streams map[uint8]<-chan *PulseBatch, cancelled func() bool) <-chan *MergedPulseBatch {
	out := make(chan *MergedPulseBatch)

	go func() {
		defer close(out)

		h := &mergeHeap{}
		heap.Init(h)
		for _, in := range streams {
			cs := &chipStream{in: in}
			if cancelled != nil && cancelled() {
				return
			}
			batch, ok, cancelledWait := recvOrCancel(cs.in, cancelled)
			if cancelledWait {
				return
			}
			if !ok {
				continue
			}
			cs.head = batch
			heap.Push(h, cs)
		}

		for h.Len() > 0 {
			if cancelled != nil && cancelled() {
				return
			}

			smallest := (*h)[0].head.ExtendedTDC()
			var drained []*chipStream
			for h.Len() > 0 && (*h)[0].head.ExtendedTDC() == smallest {
				cs := heap.Pop(h).(*chipStream)
				drained = append(drained, cs)
			}

			merged := NewHitBatch(0)
			for _, cs := range drained {
				merged.Append(cs.head.Hits)
			}
			merged.SortByTOF()
			out <- &MergedPulseBatch{ExtendedTDC: smallest, Hits: merged}

			for _, cs := range drained {
				batch, ok, cancelledWait := recvOrCancel(cs.in, cancelled)
				if cancelledWait {
					return
				}
				if !ok {
					continue
				}
				cs.head = batch
				heap.Push(h, cs)
			}
		}
	}()

	return out
}
