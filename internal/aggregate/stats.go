package aggregate

import (
	"math"
	"sort"

	"snowpilot/pkg/models"
)

// computeStats rolls one metric's values up into summary statistics. An
// empty input yields a zero-count Stats.
func computeStats(values []float64) models.Stats {
	n := len(values)
	if n == 0 {
		return models.Stats{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	median := medianSorted(sorted)

	return models.Stats{
		Count:  n,
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: math.Sqrt(variance),
		P95:    percentileSorted(sorted, 0.95),
		Median: median,
		MAD:    mad(values, median),
	}
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// mad is the median absolute deviation, a robust spread estimate.
func mad(values []float64, median float64) float64 {
	if len(values) == 0 {
		return 0
	}
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return medianSorted(dev)
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
