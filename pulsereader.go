package tpx3

const (
	// rolloverGuardBand is 2^22: any apparent backward jump of the coarse
	// timestamp smaller than this is a real backward reading, not a wrap.
	rolloverGuardBand uint32 = 0x400000
	// rolloverExtension is 2^30, the width of the coarse timestamp field.
	rolloverExtension uint32 = 0x40000000
	coarseTSMask      uint32 = 0x3FFFFFFF
)

// correctTimestampRollover repairs a hit timestamp that wrapped inside the
// window of a single pulse. The guard band of 2^22 ticks (~4ms at 25ns)
// distinguishes a genuine wrap from a hit that is legitimately earlier
// than the reference TDC.
func correctTimestampRollover(hitTS, tdcTS uint32) uint32 {
	if hitTS+rolloverGuardBand < tdcTS {
		return hitTS + rolloverExtension
	}
	return hitTS
}

// calculateTOF computes time-of-flight referenced to tdc, bounded to at
// most one detector period even when the coarse timestamp rolls over
// between the TDC and the hit.
func calculateTOF(correctedTS, tdcTS, tdcPeriodTicks uint32) uint32 {
	rawTOF := correctedTS - tdcTS
	if rawTOF > tdcPeriodTicks {
		return rawTOF - tdcPeriodTicks
	}
	return rawTOF
}

// PulseBatch bundles one chip's decoded hits between two successive TDC
// triggers for that chip. ExtendedTDC orders pulses globally across the
// 30-bit wrap.
type PulseBatch struct {
	ChipID     uint8
	RawTDC     uint32
	Epoch      uint64
	Hits       *HitBatch
}

// ExtendedTDC returns (epoch << 30) | raw_tdc, a monotone global pulse key.
func (p *PulseBatch) ExtendedTDC() uint64 {
	return (p.Epoch << 30) | uint64(p.RawTDC)
}

type rawHit struct {
	x, y      uint16
	timestamp uint32 // raw (uncorrected) coarse timestamp
	tot       uint16
}

// PulseReader implements the per-chip lookahead state machine: it
// converts one chip's ordered section stream into strictly time-ordered
// PulseBatch values, resolving "late hits" that physically arrive after
// the next TDC trigger but logically belong to the prior pulse.
type PulseReader struct {
	chipID         uint8
	det            DetectorConfig
	tdcPeriodTicks uint32
	transform      ChipTransform

	state   int // 0=S0 pre-stream, 1=S1 one open, 2=S2 two open
	epoch   uint64
	haveTDC bool
	lastTDC uint32

	prevTDC   uint32
	prevEpoch uint64
	prevHits  []rawHit

	currTDC   uint32
	currEpoch uint64
	currHits  []rawHit

	preTDCHits     []rawHit
	droppedPreTDC  int

	out chan *PulseBatch
}

const (
	stateS0 = iota
	stateS1
	stateS2
)

// NewPulseReader constructs a reader for one chip. out is the bounded
// channel the reader publishes completed pulses into; depth 2 is
// sufficient to keep the reader from blocking on its own lookahead.
func NewPulseReader(chipID uint8, det DetectorConfig, out chan *PulseBatch) *PulseReader {
	return &PulseReader{
		chipID:         chipID,
		det:            det,
		tdcPeriodTicks: det.TDCPeriodTicks(),
		transform:      det.ChipTransforms[chipID],
		state:          stateS0,
		out:            out,
	}
}

// DroppedPreTDCHits reports how many hits were discarded for arriving
// before the chip's first TDC reference.
func (r *PulseReader) DroppedPreTDCHits() int {
	return r.droppedPreTDC
}

// onTDC handles a new TDC1-rising observation for this chip: epoch
// bookkeeping, then state-machine transition.
func (r *PulseReader) onTDC(rawTDC uint32) {
	epoch := r.epoch
	if r.haveTDC && rawTDC < r.lastTDC {
		epoch++
	}
	r.epoch = epoch
	r.haveTDC = true
	r.lastTDC = rawTDC

	switch r.state {
	case stateS0:
		// pre-TDC hits buffered so far cannot be attributed; drop them.
		r.droppedPreTDC += len(r.preTDCHits)
		r.preTDCHits = nil
		r.currTDC, r.currEpoch = rawTDC, epoch
		r.currHits = nil
		r.state = stateS1

	case stateS1:
		r.prevTDC, r.prevEpoch, r.prevHits = r.currTDC, r.currEpoch, r.currHits
		r.currTDC, r.currEpoch = rawTDC, epoch
		r.currHits = nil
		r.state = stateS2

	case stateS2:
		r.emit(r.prevTDC, r.prevEpoch, r.prevHits)
		r.prevTDC, r.prevEpoch, r.prevHits = r.currTDC, r.currEpoch, r.currHits
		r.currTDC, r.currEpoch = rawTDC, epoch
		r.currHits = nil
	}
}

// onHit handles a decoded hit packet for this chip.
func (r *PulseReader) onHit(fields HitFields) {
	switch r.state {
	case stateS0:
		if !r.det.EnableMissingTDCCorrection {
			r.droppedPreTDC++
			return
		}
		r.preTDCHits = append(r.preTDCHits, rawHit{x: fields.LocalX, y: fields.LocalY, timestamp: fields.Timestamp, tot: fields.ToT})

	case stateS1:
		r.currHits = append(r.currHits, rawHit{x: fields.LocalX, y: fields.LocalY, timestamp: fields.Timestamp, tot: fields.ToT})

	case stateS2:
		corrected := correctTimestampRollover(fields.Timestamp, r.currTDC)
		h := rawHit{x: fields.LocalX, y: fields.LocalY, timestamp: fields.Timestamp, tot: fields.ToT}
		if corrected < r.currTDC {
			r.prevHits = append(r.prevHits, h)
		} else {
			r.currHits = append(r.currHits, h)
		}
	}
}

// Flush closes out remaining open pulses at end-of-stream (state S3).
func (r *PulseReader) Flush() {
	switch r.state {
	case stateS1:
		r.emit(r.currTDC, r.currEpoch, r.currHits)
	case stateS2:
		r.emit(r.prevTDC, r.prevEpoch, r.prevHits)
		r.emit(r.currTDC, r.currEpoch, r.currHits)
	}
	r.state = stateS0
}

// emit converts a buffered raw-hit list into a tof-sorted PulseBatch and
// publishes it on the output channel.
func (r *PulseReader) emit(tdc uint32, epoch uint64, hits []rawHit) {
	batch := NewHitBatch(len(hits))
	for _, h := range hits {
		corrected := correctTimestampRollover(h.timestamp, tdc)
		tof := calculateTOF(corrected, tdc, r.tdcPeriodTicks)
		gx, gy := r.transform.Apply(h.x, h.y)
		batch.Push(gx, gy, tof, h.tot, corrected, r.chipID)
	}
	batch.SortByTOF()
	r.out <- &PulseBatch{ChipID: r.chipID, RawTDC: tdc, Epoch: epoch, Hits: batch}
}

// Run drives the reader over an ordered slice of sections belonging to
// this chip, decoding each section's packets and dispatching TDC/hit
// events into the state machine, then flushing at end-of-stream. It
// closes the output channel when done. cancelled is polled at every
// section boundary for cooperative cancellation.
func (r *PulseReader) Run(data []byte, baseOffset int64, sections []Section, cancelled func() bool) {
	defer close(r.out)
	for _, sec := range sections {
		if cancelled != nil && cancelled() {
			return
		}
		start := sec.Start - baseOffset
		end := sec.End - baseOffset
		for off := start; off < end; off += packetSize {
			raw := littleEndianUint64(data[off : off+packetSize])
			p := Packet(raw)
			switch {
			case p.IsTDC1Rising():
				r.onTDC(p.TDCTimestamp())
			case p.IsHit():
				r.onHit(p.DecodeHit())
			}
		}
	}
	r.Flush()
}
