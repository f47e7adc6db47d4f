package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ResetPolicy selects how a decrease in a cumulative series is handled.
type ResetPolicy int

const (
	// ResetCarry emits the post-reset total as the step's increment.
	ResetCarry ResetPolicy = iota
	// ResetStrict emits zero for the step and additionally treats a
	// non-positive predecessor as a reset.
	ResetStrict
)

func (p ResetPolicy) String() string {
	switch p {
	case ResetCarry:
		return "carry"
	case ResetStrict:
		return "strict"
	default:
		return fmt.Sprintf("ResetPolicy(%d)", int(p))
	}
}

// ParseResetPolicy accepts "carry" and "strict".
func ParseResetPolicy(s string) (ResetPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "carry":
		return ResetCarry, nil
	case "strict":
		return ResetStrict, nil
	default:
		return 0, fmt.Errorf("unknown reset policy %q", s)
	}
}

// FirstValuePolicy selects the increment emitted for a series' first reading.
type FirstValuePolicy int

const (
	// FirstAbsolute treats a positive first total as the first interval's depth.
	FirstAbsolute FirstValuePolicy = iota
	// FirstZero always starts the series at zero.
	FirstZero
)

func (p FirstValuePolicy) String() string {
	switch p {
	case FirstAbsolute:
		return "absolute"
	case FirstZero:
		return "zero"
	default:
		return fmt.Sprintf("FirstValuePolicy(%d)", int(p))
	}
}

// ParseFirstValuePolicy accepts "absolute" and "zero".
func ParseFirstValuePolicy(s string) (FirstValuePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return FirstAbsolute, nil
	case "zero":
		return FirstZero, nil
	default:
		return 0, fmt.Errorf("unknown first value policy %q", s)
	}
}

// IncrementalOptions configures cumulative-to-incremental conversion.
type IncrementalOptions struct {
	Reset ResetPolicy
	First FirstValuePolicy
}

// Increments differences a cumulative series. The returned slice is aligned
// index for index with cum; resets holds every step i at which reading i-1
// was judged a reset.
func Increments(cum []float64, opts IncrementalOptions) (inc []float64, resets []int) {
	if len(cum) == 0 {
		return []float64{}, nil
	}

	inc = make([]float64, len(cum))
	if opts.First == FirstAbsolute && cum[0] > 0 {
		inc[0] = cum[0]
	}

	for i := 1; i < len(cum); i++ {
		prev, cur := cum[i-1], cum[i]
		monotonic := cur >= prev
		if opts.Reset == ResetStrict {
			monotonic = monotonic && prev > 0
		}
		if monotonic {
			inc[i] = cur - prev
			continue
		}

		resets = append(resets, i)
		if opts.Reset == ResetCarry {
			inc[i] = cur
		}
	}
	return inc, resets
}

// MakeIncremental converts one location's time-ordered cumulative series.
// Quarantined readings keep their original cumulative value.
func MakeIncremental(series []Observation, opts IncrementalOptions) ([]Observation, []QuarantineRecord) {
	cum := make([]float64, len(series))
	for i, o := range series {
		cum[i] = o.PrecipMM
	}

	inc, resets := Increments(cum, opts)

	out := make([]Observation, len(series))
	for i, o := range series {
		o.PrecipMM = inc[i]
		out[i] = o
	}

	quarantine := make([]QuarantineRecord, 0, len(resets))
	for _, step := range resets {
		quarantine = append(quarantine, QuarantineRecord{Observation: series[step-1], Step: step})
	}
	return out, quarantine
}

type locationDay struct {
	date Date
	x, y float64
}

// ConvertCumulative groups observations by calendar day and (x, y), orders
// each group by time, and converts it with MakeIncremental. Output is ordered
// by day, then location, then time.
func ConvertCumulative(obs []Observation, opts IncrementalOptions) ([]Observation, []QuarantineRecord) {
	groups := make(map[locationDay][]Observation)
	keys := make([]locationDay, 0)
	for _, o := range obs {
		k := locationDay{date: DateOf(o.Time), x: o.X, y: o.Y}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.date != b.date {
			return a.date.Before(b.date)
		}
		if a.x != b.x {
			return a.x < b.x
		}
		return a.y < b.y
	})

	out := make([]Observation, 0, len(obs))
	var quarantine []QuarantineRecord
	for _, k := range keys {
		series := groups[k]
		sort.SliceStable(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })

		inc, q := MakeIncremental(series, opts)
		out = append(out, inc...)
		quarantine = append(quarantine, q...)
	}
	return out, quarantine
}
