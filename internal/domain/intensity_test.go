package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxIntensities(t *testing.T) {
	rows := []AggregateRow{
		{GroupKey: GroupKey{SiteName: "A"}, Bucket: at(10, 0), PrecipMM: 1},
		{GroupKey: GroupKey{SiteName: "A"}, Bucket: at(10, 15), PrecipMM: 2},
		{GroupKey: GroupKey{SiteName: "A"}, Bucket: at(10, 45), PrecipMM: 3},
		{GroupKey: GroupKey{SiteName: "A"}, Bucket: at(11, 0), PrecipMM: 4},
		{GroupKey: GroupKey{SiteName: "B"}, Bucket: at(10, 0), PrecipMM: 5},
		{GroupKey: GroupKey{SiteName: "C"}, Bucket: at(9, 0), PrecipMM: math.NaN()},
		{GroupKey: GroupKey{SiteName: "C"}, Bucket: at(9, 15), PrecipMM: 0.5},
	}

	fifteen, hourly := MaxIntensities(rows)

	assert.Equal(t, map[string]float64{"A": 4, "B": 5, "C": 0.5}, fifteen)
	assert.Equal(t, map[string]float64{"A": 9}, hourly, "A's 10:15-11:00 window, gap counted as zero")
}

func TestSummarizeStorm(t *testing.T) {
	w := StormWindow{
		Date:          stormDate,
		Start:         at(10, 0),
		End:           at(10, 30),
		DurationHours: 0.5,
	}

	s := SummarizeStorm(w, []float64{2, 4}, []float64{1, 3}, []float64{2, 6})

	assert.Equal(t, "2014-07-10", s.Date)
	assert.Equal(t, 2, s.Sites)
	assert.Equal(t, CellOf(3), s.MeanTotalMM)
	require.True(t, s.StdTotalMM.Valid)
	assert.InDelta(t, math.Sqrt2, s.StdTotalMM.Value, 1e-12)
	assert.Equal(t, CellOf(6), s.AvgIntensityMMH)
	assert.Equal(t, CellOf(2), s.MeanMax15MM)
	assert.Equal(t, CellOf(3), s.MaxMax15MM)
	assert.Equal(t, CellOf(4), s.MeanMaxHourMM)
	assert.Equal(t, CellOf(6), s.MaxMaxHourMM)
	assert.Equal(t, StatusOK, s.Status)
}

func TestSummarizeStormSparse(t *testing.T) {
	w := StormWindow{Date: stormDate, Start: at(10, 0), End: at(10, 0)}

	s := SummarizeStorm(w, []float64{7}, nil, nil)

	assert.Equal(t, CellOf(7), s.MeanTotalMM)
	assert.False(t, s.StdTotalMM.Valid, "one site has no sample deviation")
	assert.False(t, s.AvgIntensityMMH.Valid, "zero duration has no intensity")
	assert.False(t, s.MaxMaxHourMM.Valid)
	assert.Equal(t, CellOf(0), s.DurationHours)

	d := DegenerateSummary(stormDate, "zero total rainfall")
	assert.Equal(t, StatusDegenerate, d.Status)
	assert.True(t, d.Start.IsZero())
}

func TestSubDailyColumns(t *testing.T) {
	obs := []Observation{
		gaugeObs("A", 0, 0, 10, 10, 20, 1),
		gaugeObs("A", 0, 0, 10, 10, 50, 2),
		gaugeObs("B", 1, 1, 10, 11, 5, 3),
	}
	w := StormWindow{Date: stormDate, Start: at(10, 15), End: at(11, 0), DurationHours: 0.75}

	t.Run("hourly start floors to the hour", func(t *testing.T) {
		cols := SubDailyColumns(w, Aggregate(obs, BySiteKey, Hourly), Hourly)

		require.Len(t, cols, 2)
		assert.Equal(t, "2014-07-10 10:00:00", cols[0].Label)
		assert.Equal(t, map[string]float64{"A": 3}, cols[0].Values)
		assert.Equal(t, "2014-07-10 11:00:00", cols[1].Label)
		assert.Equal(t, map[string]float64{"B": 3}, cols[1].Values)
	})

	t.Run("fifteen minute steps", func(t *testing.T) {
		cols := SubDailyColumns(w, Aggregate(obs, BySiteKey, FifteenMinutes), FifteenMinutes)

		var labels []string
		for _, c := range cols {
			labels = append(labels, c.Label)
		}
		assert.Equal(t, []string{
			"2014-07-10 10:15:00",
			"2014-07-10 10:30:00",
			"2014-07-10 10:45:00",
			"2014-07-10 11:00:00",
		}, labels)
		assert.Empty(t, cols[1].Values)
	})
}

func TestStormSummaryJSON(t *testing.T) {
	s := DegenerateSummary(Date{2015, time.October, 2}, "no observations")

	b, err := json.Marshal(s)

	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date": "2015-10-02",
		"duration_hours": null,
		"sites": 0,
		"mean_total_mm": null,
		"std_total_mm": null,
		"avg_intensity_mm_per_hr": null,
		"mean_max_15min_mm": null,
		"max_max_15min_mm": null,
		"mean_max_hourly_mm": null,
		"max_max_hourly_mm": null,
		"status": "degenerate",
		"reason": "no observations"
	}`, string(b))
}
