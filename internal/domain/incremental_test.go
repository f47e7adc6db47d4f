package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	carry  = IncrementalOptions{Reset: ResetCarry, First: FirstAbsolute}
	strict = IncrementalOptions{Reset: ResetStrict, First: FirstAbsolute}
)

func TestIncrements(t *testing.T) {
	tests := []struct {
		name       string
		cum        []float64
		opts       IncrementalOptions
		wantInc    []float64
		wantResets []int
	}{
		{name: "empty", cum: nil, opts: carry, wantInc: []float64{}},
		{name: "single positive", cum: []float64{3}, opts: carry, wantInc: []float64{3}},
		{name: "single zero", cum: []float64{0}, opts: carry, wantInc: []float64{0}},
		{name: "first value zeroed", cum: []float64{3, 4}, opts: IncrementalOptions{First: FirstZero}, wantInc: []float64{0, 1}},
		{name: "monotonic", cum: []float64{1, 2, 2, 4}, opts: carry, wantInc: []float64{1, 1, 0, 2}},
		{name: "carry reset", cum: []float64{1, 2, 3, 1, 2}, opts: carry, wantInc: []float64{1, 1, 1, 1, 1}, wantResets: []int{3}},
		{name: "strict reset", cum: []float64{1, 2, 3, 1, 2}, opts: strict, wantInc: []float64{1, 1, 1, 0, 1}, wantResets: []int{3}},
		{name: "strict after zero", cum: []float64{0, 0, 1}, opts: strict, wantInc: []float64{0, 0, 0}, wantResets: []int{1, 2}},
		{name: "carry after zero", cum: []float64{0, 0, 1}, opts: carry, wantInc: []float64{0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inc, resets := Increments(tt.cum, tt.opts)
			assert.Equal(t, tt.wantInc, inc)
			assert.Equal(t, tt.wantResets, resets)
		})
	}
}

func TestIncrementsReconstructsDelta(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for n := 1; n < 60; n++ {
		cum := make([]float64, n)
		level := r.Float64() * 5
		for i := range cum {
			level += r.Float64() * 2
			cum[i] = level
		}

		inc, resets := Increments(cum, carry)

		require.Empty(t, resets)
		var sum float64
		for _, v := range inc {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, cum[n-1]-cum[0]+cum[0], sum, 1e-9)
	}
}

func TestIncrementsQuarantinesEveryDecrease(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 200; trial++ {
		n := 2 + r.IntN(40)
		cum := make([]float64, n)
		for i := range cum {
			if i > 0 && r.IntN(5) == 0 {
				cum[i] = cum[i-1] * r.Float64() * 0.9
				continue
			}
			if i > 0 {
				cum[i] = cum[i-1] + r.Float64()
			} else {
				cum[i] = r.Float64()
			}
		}
		cum[n-1] = cum[n-2] / 2 // at least one decrease

		var want []int
		for i := 1; i < n; i++ {
			if cum[i] < cum[i-1] {
				want = append(want, i)
			}
		}

		inc, resets := Increments(cum, carry)

		require.Len(t, inc, n)
		assert.Equal(t, want, resets)
	}
}

func gaugeObs(site string, x, y float64, day, hour, minute int, precip float64) Observation {
	return Observation{
		Time:     time.Date(2014, time.July, day, hour, minute, 0, 0, testLoc),
		X:        x,
		Y:        y,
		SiteName: site,
		Src:      "vab",
		PrecipMM: precip,
	}
}

func TestMakeIncremental(t *testing.T) {
	series := []Observation{
		gaugeObs("A", 1, 1, 10, 0, 0, 1),
		gaugeObs("A", 1, 1, 10, 0, 15, 2),
		gaugeObs("A", 1, 1, 10, 0, 30, 0.5),
		gaugeObs("A", 1, 1, 10, 0, 45, 1.5),
	}

	out, quarantine := MakeIncremental(series, carry)

	require.Len(t, out, 4)
	got := []float64{out[0].PrecipMM, out[1].PrecipMM, out[2].PrecipMM, out[3].PrecipMM}
	assert.Equal(t, []float64{1, 1, 0.5, 1}, got)
	for i := range out {
		assert.Equal(t, series[i].Time, out[i].Time)
	}
	require.Len(t, quarantine, 1)
	assert.Equal(t, 2, quarantine[0].Step)
	assert.Equal(t, series[1], quarantine[0].Observation)
}

func TestConvertCumulative(t *testing.T) {
	t.Run("locations and days convert independently", func(t *testing.T) {
		obs := []Observation{
			gaugeObs("A", 1, 1, 10, 0, 15, 3),
			gaugeObs("B", 2, 2, 10, 0, 0, 5),
			gaugeObs("A", 1, 1, 10, 0, 0, 1),
			gaugeObs("B", 2, 2, 10, 0, 15, 6),
			gaugeObs("A", 1, 1, 11, 0, 0, 4),
		}

		out, quarantine := ConvertCumulative(obs, carry)

		want := []Observation{
			gaugeObs("A", 1, 1, 10, 0, 0, 1),
			gaugeObs("A", 1, 1, 10, 0, 15, 2),
			gaugeObs("B", 2, 2, 10, 0, 0, 5),
			gaugeObs("B", 2, 2, 10, 0, 15, 1),
			gaugeObs("A", 1, 1, 11, 0, 0, 4),
		}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("ConvertCumulative mismatch (-want +got):\n%s", diff)
		}
		assert.Empty(t, quarantine)
	})

	t.Run("quarantine collected across groups", func(t *testing.T) {
		obs := []Observation{
			gaugeObs("A", 1, 1, 10, 0, 0, 2),
			gaugeObs("A", 1, 1, 10, 0, 15, 1),
			gaugeObs("B", 2, 2, 10, 0, 0, 4),
			gaugeObs("B", 2, 2, 10, 0, 15, 3),
		}

		out, quarantine := ConvertCumulative(obs, strict)

		assert.Len(t, out, 4)
		require.Len(t, quarantine, 2)
		assert.Equal(t, "A", quarantine[0].SiteName)
		assert.Equal(t, "B", quarantine[1].SiteName)
	})

	t.Run("empty", func(t *testing.T) {
		out, quarantine := ConvertCumulative(nil, carry)
		assert.Empty(t, out)
		assert.Empty(t, quarantine)
	})
}

func TestParsePolicies(t *testing.T) {
	p, err := ParseResetPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ResetCarry, p)

	p, err = ParseResetPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, ResetStrict, p)

	_, err = ParseResetPolicy("lenient")
	assert.Error(t, err)

	f, err := ParseFirstValuePolicy("zero")
	require.NoError(t, err)
	assert.Equal(t, FirstZero, f)
}
