package tpx3

import "testing"

func packetBytes(words ...uint64) []byte {
	buf := make([]byte, 0, len(words)*8)
	for _, w := range words {
		b := make([]byte, 8)
		for i := 0; i < 8; i++ {
			b[i] = byte(w >> (8 * i))
		}
		buf = append(buf, b...)
	}
	return buf
}

func TestScanSectionsSinglePassEOF(t *testing.T) {
	data := packetBytes(
		makeHeader(0),
		makeTDC1Rising(100),
		makeHit(1, 1, 50, 10),
		makeHeader(1),
		makeHit(2, 2, 60, 20),
	)

	sections, consumed := ScanSections(data, 0, true)
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].ChipID != 0 || sections[1].ChipID != 1 {
		t.Fatalf("unexpected chip ids: %+v", sections)
	}
	if sections[0].Start != 0 || sections[0].End != 24 {
		t.Fatalf("section 0 range = [%d,%d), want [0,24)", sections[0].Start, sections[0].End)
	}
	if sections[1].Start != 24 || sections[1].End != int64(len(data)) {
		t.Fatalf("section 1 range = [%d,%d), want [24,%d)", sections[1].Start, sections[1].End, len(data))
	}
	if consumed != int64(len(data)) {
		t.Fatalf("consumed = %d, want %d", consumed, len(data))
	}
}

func TestScanSectionsStreamingWithholdsOpenSection(t *testing.T) {
	data := packetBytes(
		makeHeader(0),
		makeTDC1Rising(100),
		makeHeader(1),
		makeHit(2, 2, 60, 20),
	)

	sections, consumed := ScanSections(data, 0, false)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1 (trailing open section withheld)", len(sections))
	}
	if consumed != 16 {
		t.Fatalf("consumed = %d, want 16 (end of the closed section)", consumed)
	}

	// Re-scanning from the watermark with more data appended should close
	// the previously-open section once its boundary (the next header) is
	// seen, and withhold or close the next one per the same isEOF rule.
	more := packetBytes(makeHeader(2))
	rest := append(append([]byte{}, data[consumed:]...), more...)
	sections2, consumed2 := ScanSections(rest, consumed, true)
	if len(sections2) != 2 {
		t.Fatalf("re-scan got %d sections, want 2: %+v", len(sections2), sections2)
	}
	if sections2[0].ChipID != 1 || sections2[0].Start != consumed || sections2[0].End != consumed+16 {
		t.Fatalf("re-scan section 0 = %+v, want chip 1 [%d,%d)", sections2[0], consumed, consumed+16)
	}
	if sections2[1].ChipID != 2 || sections2[1].Start != consumed+16 {
		t.Fatalf("re-scan section 1 = %+v, want chip 2 starting at %d", sections2[1], consumed+16)
	}
	if consumed2 != consumed+int64(len(rest)) {
		t.Fatalf("consumed2 = %d, want %d", consumed2, consumed+int64(len(rest)))
	}
}

func TestScanSectionsNoHeaderReportsZero(t *testing.T) {
	data := packetBytes(makeHit(1, 1, 1, 1), makeTDC1Rising(5))
	sections, consumed := ScanSections(data, 0, false)
	if sections != nil {
		t.Fatalf("expected no sections, got %+v", sections)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0 so the caller grows the window", consumed)
	}
}

func TestScanSectionsIgnoresTrailingPartialPacket(t *testing.T) {
	data := packetBytes(makeHeader(0), makeHit(1, 1, 1, 1))
	data = append(data, 0x01, 0x02, 0x03) // 3 misaligned trailing bytes

	sections, consumed := ScanSections(data, 0, true)
	if len(sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(sections))
	}
	if sections[0].End != 16 {
		t.Fatalf("section end = %d, want 16 (trailing partial bytes excluded)", sections[0].End)
	}
	if consumed != 16 {
		t.Fatalf("consumed = %d, want 16", consumed)
	}
}

func TestTDCPropagatorThreadsStateAcrossSections(t *testing.T) {
	data := packetBytes(
		makeHeader(0),
		makeTDC1Rising(1000),
		makeHit(1, 1, 50, 10),
		makeHeader(1),
		makeTDC1Rising(2000),
		makeHeader(0),
		makeTDC1Rising(3000),
	)

	sections, _ := ScanSections(data, 0, true)
	if len(sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(sections))
	}

	prop := NewTDCPropagator()
	prop.Propagate(data, 0, sections)

	if sections[0].InitialTDC != nil {
		t.Fatalf("first chip-0 section must have no InitialTDC, got %v", *sections[0].InitialTDC)
	}
	if sections[0].FinalTDC == nil || *sections[0].FinalTDC != 1000 {
		t.Fatalf("first chip-0 section FinalTDC = %v, want 1000", sections[0].FinalTDC)
	}
	if sections[1].InitialTDC != nil {
		t.Fatalf("first chip-1 section must have no InitialTDC, got %v", *sections[1].InitialTDC)
	}
	if sections[1].FinalTDC == nil || *sections[1].FinalTDC != 2000 {
		t.Fatalf("chip-1 section FinalTDC = %v, want 2000", sections[1].FinalTDC)
	}
	// Second chip-0 section inherits the first's final TDC as its initial.
	if sections[2].InitialTDC == nil || *sections[2].InitialTDC != 1000 {
		t.Fatalf("second chip-0 section InitialTDC = %v, want 1000", sections[2].InitialTDC)
	}
	if sections[2].FinalTDC == nil || *sections[2].FinalTDC != 3000 {
		t.Fatalf("second chip-0 section FinalTDC = %v, want 3000", sections[2].FinalTDC)
	}
}
