package neutron

import (
	"errors"
	"math"

	tpx3 "github.com/ornlneutronimaging/tpx3stream"
)

// Sentinel errors surfaced by extraction.
var (
	ErrEmptyCluster  = errors.New("neutron: cluster has no hits")
	ErrInvalidConfig = errors.New("neutron: invalid configuration")
)

// ExtractionConfig controls how a clustered HitBatch is converted into
// Neutron records.
type ExtractionConfig struct {
	SuperResolutionFactor float64 // multiplier on emitted (x, y); default 8
	WeightedByTOT         bool    // tot-weighted vs arithmetic mean centroid
	MinTOTThreshold       uint16  // hits below this are dropped before centroiding
}

// DefaultExtractionConfig returns the standard super-resolution-8,
// tot-weighted configuration with no amplitude floor.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{SuperResolutionFactor: 8.0, WeightedByTOT: true, MinTOTThreshold: 0}
}

// Validate reports ErrInvalidConfig when the configuration cannot be used.
func (c ExtractionConfig) Validate() error {
	if c.SuperResolutionFactor <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Extract centroids every cluster in batch (cluster ids 0..numClusters-1;
// -1 is unassigned/noise and is skipped) into a neutron.Batch.
//
// Per cluster: the representative tof/chip_id come from the hit with the
// maximum tot (ties broken by first occurrence, i.e. the lowest hit
// index); the spatial centroid is either the tot-weighted or arithmetic
// mean of the surviving hits; emitted (x, y) is scaled by
// SuperResolutionFactor; emitted total tot saturates at uint16 max.
func Extract(batch *tpx3.HitBatch, numClusters int, cfg ExtractionConfig) (*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	type accum struct {
		sumX, sumY, sumWeight float64
		sumTOT                uint64
		nHits                 uint16
		maxTOT                uint16
		maxTOTIdx             int
		hasMaxTOT             bool
	}

	accums := make([]accum, numClusters)
	n := batch.Len()

	for i := 0; i < n; i++ {
		cl := batch.ClusterID[i]
		if cl < 0 || int(cl) >= numClusters {
			continue
		}
		tot := batch.TOT[i]
		if tot < cfg.MinTOTThreshold {
			continue
		}

		a := &accums[cl]
		weight := 1.0
		if cfg.WeightedByTOT {
			weight = float64(tot)
		}
		a.sumX += float64(batch.X[i]) * weight
		a.sumY += float64(batch.Y[i]) * weight
		a.sumWeight += weight
		a.sumTOT += uint64(tot)
		a.nHits++

		if !a.hasMaxTOT || tot > a.maxTOT {
			a.maxTOT = tot
			a.maxTOTIdx = i
			a.hasMaxTOT = true
		}
	}

	out := &Batch{}
	for _, a := range accums {
		if !a.hasMaxTOT || a.nHits == 0 {
			continue
		}

		var x, y float64
		if a.sumWeight > 0 {
			x = a.sumX / a.sumWeight
			y = a.sumY / a.sumWeight
		}

		totalTOT := a.sumTOT
		if totalTOT > math.MaxUint16 {
			totalTOT = math.MaxUint16
		}

		out.Append(Neutron{
			X:      x * cfg.SuperResolutionFactor,
			Y:      y * cfg.SuperResolutionFactor,
			TOF:    batch.TOF[a.maxTOTIdx],
			TOT:    uint16(totalTOT),
			NHits:  a.nHits,
			ChipID: batch.ChipID[a.maxTOTIdx],
		})
	}

	return out, nil
}
