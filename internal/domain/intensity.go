package domain

import (
	"math"
	"slices"
)

// quartersPerHour is the rolling window, in 15-minute buckets, of an hourly intensity.
const quartersPerHour = 4

// MaxIntensities returns, per site, the largest 15-minute depth and the
// largest depth over any four consecutive 15-minute buckets. rows must be
// 15-minute aggregates of a single day. Gaps inside a group count as zero;
// groups spanning fewer than four buckets have no hourly value. NaN buckets
// are skipped.
func MaxIntensities(rows []AggregateRow) (fifteen, hourly map[string]float64) {
	fifteen = make(map[string]float64)
	hourly = make(map[string]float64)

	sorted := slices.Clone(rows)
	sortRows(sorted)
	filled := Backfill(sorted, FifteenMinutes)
	start := 0
	for start < len(filled) {
		end := start
		for end < len(filled) && filled[end].GroupKey == filled[start].GroupKey {
			end++
		}
		group := filled[start:end]
		site := group[0].SiteName

		for _, r := range group {
			if math.IsNaN(r.PrecipMM) {
				continue
			}
			updateMax(fifteen, site, r.PrecipMM)
		}
		for i := quartersPerHour - 1; i < len(group); i++ {
			sum := 0.0
			for _, r := range group[i-quartersPerHour+1 : i+1] {
				sum += r.PrecipMM
			}
			if math.IsNaN(sum) {
				continue
			}
			updateMax(hourly, site, sum)
		}
		start = end
	}
	return fifteen, hourly
}

func updateMax(m map[string]float64, k string, v float64) {
	if cur, ok := m[k]; !ok || v > cur {
		m[k] = v
	}
}
