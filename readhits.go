package tpx3

import "github.com/samber/lo"

// ReadHits is the single-threaded convenience entry point: decode every
// packet in data under det, attribute each hit to its pulse, and return
// one combined, tof-sorted HitBatch. It runs the same section scan, TDC
// propagation, and per-chip pulse reading as the concurrent pipeline in
// internal/engine, just sequentially and without a streaming watermark,
// since the whole file is already in memory.
func ReadHits(data []byte, det DetectorConfig) (*HitBatch, error) {
	if err := det.Validate(); err != nil {
		return nil, err
	}

	sections, _ := ScanSections(data, 0, true)
	NewTDCPropagator().Propagate(data, 0, sections)

	byChip := lo.GroupBy(sections, func(s Section) uint8 { return s.ChipID })

	out := NewHitBatch(0)
	for chipID, chipSections := range byChip {
		ch := make(chan *PulseBatch, 2)
		reader := NewPulseReader(chipID, det, ch)
		go reader.Run(data, 0, chipSections, nil)
		for pulse := range ch {
			out.Append(pulse.Hits)
		}
	}

	out.SortByTOF()
	return out, nil
}
