package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultTrimPercent is the tail fraction trimmed from each end of a storm.
const DefaultTrimPercent = 0.025

// StormWindow is the trimmed span of a day that holds the bulk of its rainfall.
type StormWindow struct {
	Date          Date      `json:"date"`
	Start         time.Time `json:"start_time"`
	End           time.Time `json:"end_time"`
	DurationHours float64   `json:"duration_hours"`
}

// ValidateTrimPercent rejects values outside the open interval (0, 0.5).
func ValidateTrimPercent(trim float64) error {
	if !(trim > 0 && trim < 0.5) {
		return fmt.Errorf("trim percent %v outside (0, 0.5)", trim)
	}
	return nil
}

// DetectStormWindow finds the storm window of date from its 15-minute
// aggregate rows. Rows are summed across groups per bucket, skipping NaN
// depths. The window spans the buckets whose cumulative fraction of the day's
// total lies strictly between trim and 1-trim.
//
// A day with no rows, a zero total, or no bucket inside the trimmed band
// yields a *DegenerateStormError.
func DetectStormWindow(date Date, rows []AggregateRow, trim float64) (StormWindow, error) {
	if err := ValidateTrimPercent(trim); err != nil {
		return StormWindow{}, err
	}

	buckets, sums := sumByBucket(rows)
	if len(buckets) == 0 {
		return StormWindow{}, &DegenerateStormError{Date: date, Reason: "no observations"}
	}

	var total float64
	for _, s := range sums {
		total += s
	}
	if total == 0 {
		return StormWindow{}, &DegenerateStormError{Date: date, Reason: "zero total rainfall"}
	}

	var start, end time.Time
	var cum float64
	found := false
	for i, b := range buckets {
		cum += sums[i]
		frac := cum / total
		if frac <= trim || frac >= 1-trim {
			continue
		}
		if !found {
			start = b
			found = true
		}
		end = b
	}
	if !found {
		return StormWindow{}, &DegenerateStormError{Date: date, Reason: "no bucket inside trim window"}
	}

	return StormWindow{
		Date:          date,
		Start:         start,
		End:           end,
		DurationHours: end.Sub(start).Seconds() / 3600,
	}, nil
}

// CumulativeFractions returns the ordered buckets of rows with the running
// fraction of the total at each, using the same summation as DetectStormWindow.
func CumulativeFractions(rows []AggregateRow) ([]time.Time, []float64) {
	buckets, sums := sumByBucket(rows)
	var total float64
	for _, s := range sums {
		total += s
	}
	fracs := make([]float64, len(sums))
	var cum float64
	for i, s := range sums {
		cum += s
		fracs[i] = cum / total
	}
	return buckets, fracs
}

func sumByBucket(rows []AggregateRow) ([]time.Time, []float64) {
	byBucket := make(map[int64]float64)
	starts := make(map[int64]time.Time)
	for _, r := range rows {
		k := r.Bucket.UnixNano()
		if _, ok := starts[k]; !ok {
			starts[k] = r.Bucket
			byBucket[k] = 0
		}
		if !math.IsNaN(r.PrecipMM) {
			byBucket[k] += r.PrecipMM
		}
	}

	keys := make([]int64, 0, len(byBucket))
	for k := range byBucket {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	buckets := make([]time.Time, len(keys))
	sums := make([]float64, len(keys))
	for i, k := range keys {
		buckets[i] = starts[k]
		sums[i] = byBucket[k]
	}
	return buckets, sums
}
