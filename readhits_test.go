package tpx3

import "testing"

func packWordsForReadHits(words ...uint64) []byte {
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

func TestReadHitsMergesChipsAndSortsByTOF(t *testing.T) {
	chip0 := packWordsForReadHits(
		makeHeader(0),
		makeTDC1Rising(1000),
		makeHit(1, 1, 1050, 5), // tof 50
		makeTDC1Rising(2000),
	)
	chip1 := packWordsForReadHits(
		makeHeader(1),
		makeTDC1Rising(1000),
		makeHit(2, 2, 1010, 7), // tof 10
		makeTDC1Rising(2000),
	)
	data := append(chip0, chip1...)

	batch, err := ReadHits(data, VenusDefaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Len() != 2 {
		t.Fatalf("got %d hits, want 2", batch.Len())
	}
	if batch.TOF[0] != 10 || batch.TOF[1] != 50 {
		t.Fatalf("not tof-sorted across chips: %v", batch.TOF)
	}
	if !batch.IsTOFSorted() {
		t.Fatal("batch must be tof-sorted")
	}
}

func TestReadHitsRejectsInvalidDetectorConfig(t *testing.T) {
	det := DetectorConfig{TDCFrequencyHz: 0}
	if _, err := ReadHits(nil, det); err == nil {
		t.Fatal("expected an error for an invalid detector configuration")
	}
}

func TestReadHitsEmptyInputReturnsEmptyBatch(t *testing.T) {
	batch, err := ReadHits(nil, VenusDefaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Len() != 0 {
		t.Fatalf("got %d hits, want 0", batch.Len())
	}
}
