package neutron

import (
	"math"

	"github.com/samber/lo"
)

// FloatRange is an inclusive [Min, Max] range over a float64-valued field.
type FloatRange struct {
	Min float64
	Max float64
}

// TOFRange is an inclusive [Min, Max] range over tof ticks.
type TOFRange struct {
	Min uint32
	Max uint32
}

// Statistics summarizes a batch of centroided neutrons: counts per
// chip, per size category, basic tof/tot distribution moments, and
// spatial/temporal ranges.
type Statistics struct {
	Count             int
	CountByChip       map[uint8]int
	CountBySize       map[SizeCategory]int
	MeanTOF           float64
	StdTOF            float64
	MeanTOT           float64
	MeanNHits         float64
	SingleHitFraction float64
	XRange            FloatRange
	YRange            FloatRange
	TOFRange          TOFRange
}

// StatisticsFromNeutrons computes summary statistics over a slice of
// neutrons. Grouping by chip id and size category is expressed with
// lo.GroupBy/lo.MapValues rather than hand-written accumulation loops,
// matching how the rest of this codebase reaches for samber/lo for
// bucketing and reduction idioms.
func StatisticsFromNeutrons(neutrons []Neutron) Statistics {
	stats := Statistics{
		Count:       len(neutrons),
		CountByChip: map[uint8]int{},
		CountBySize: map[SizeCategory]int{},
	}
	if len(neutrons) == 0 {
		return stats
	}

	byChip := lo.GroupBy(neutrons, func(n Neutron) uint8 { return n.ChipID })
	stats.CountByChip = lo.MapValues(byChip, func(group []Neutron, _ uint8) int { return len(group) })

	bySize := lo.GroupBy(neutrons, func(n Neutron) SizeCategory { return n.SizeCategoryOf() })
	stats.CountBySize = lo.MapValues(bySize, func(group []Neutron, _ SizeCategory) int { return len(group) })

	var sumTOF, sumTOT, sumNHits float64
	var singleHits int
	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	tofMin, tofMax := neutrons[0].TOF, neutrons[0].TOF

	for _, n := range neutrons {
		sumTOF += float64(n.TOF)
		sumTOT += float64(n.TOT)
		sumNHits += float64(n.NHits)
		if n.NHits == 1 {
			singleHits++
		}
		if n.X < xMin {
			xMin = n.X
		}
		if n.X > xMax {
			xMax = n.X
		}
		if n.Y < yMin {
			yMin = n.Y
		}
		if n.Y > yMax {
			yMax = n.Y
		}
		if n.TOF < tofMin {
			tofMin = n.TOF
		}
		if n.TOF > tofMax {
			tofMax = n.TOF
		}
	}
	count := float64(len(neutrons))
	meanTOF := sumTOF / count

	var sumSqDev float64
	for _, n := range neutrons {
		dev := float64(n.TOF) - meanTOF
		sumSqDev += dev * dev
	}
	stdTOF := math.Sqrt(sumSqDev / count)

	stats.MeanTOF = roundTo(meanTOF, 2)
	stats.StdTOF = roundTo(stdTOF, 2)
	stats.MeanTOT = roundTo(sumTOT/count, 2)
	stats.MeanNHits = roundTo(sumNHits/count, 2)
	stats.SingleHitFraction = roundTo(float64(singleHits)/count, 4)
	stats.XRange = FloatRange{Min: xMin, Max: xMax}
	stats.YRange = FloatRange{Min: yMin, Max: yMax}
	stats.TOFRange = TOFRange{Min: tofMin, Max: tofMax}

	return stats
}

// roundTo rounds v to the given number of decimal places, used only for
// human-readable summary formatting.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
