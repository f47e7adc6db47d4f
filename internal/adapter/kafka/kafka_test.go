package kafka

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 4, 26, 15, 10, 0, 0, time.UTC)
	start := time.Date(2014, 7, 10, 12, 0, 0, 0, time.UTC)
	summary := domain.SummarizeStorm(domain.StormWindow{
		Date:          domain.Date{Year: 2014, Month: time.July, Day: 10},
		Start:         start,
		End:           start.Add(2 * time.Hour),
		DurationHours: 2,
	}, []float64{10, 14}, []float64{3}, []float64{8})

	msg, err := serializeToMessage("run-7", now, summary)
	require.NoError(t, err)

	assert.Equal(t, []byte("2014-07-10"), msg.Key)
	assert.Contains(t, string(msg.Value), `"mean_total_mm":12`)
	assert.Contains(t, string(msg.Value), `"std_total_mm":2.8284271247461903`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, HeaderRunID, msg.Headers[0].Key)
	assert.Equal(t, []byte("run-7"), msg.Headers[0].Value)
	assert.Equal(t, []byte("ok"), msg.Headers[1].Value)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	decoded, headers, err := DecodeMessage(msg)
	require.NoError(t, err)
	if diff := cmp.Diff(summary, decoded); diff != "" {
		t.Errorf("decoded summary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "run-7", headers[HeaderRunID])
}

func TestSerializeDegenerate(t *testing.T) {
	summary := domain.DegenerateSummary(domain.Date{Year: 2015, Month: time.October, Day: 2}, "no observations")

	msg, err := serializeToMessage("run-8", time.Now(), summary)
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
	}`, string(msg.Value))
	assert.Equal(t, []byte("degenerate"), msg.Headers[1].Value)
}
