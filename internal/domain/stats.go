package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// LabelLayout formats sub-daily column labels.
const LabelLayout = "2006-01-02 15:04:05"

// Storm summary statuses.
const (
	StatusOK         = "ok"
	StatusDegenerate = "degenerate"
)

// MarshalJSON encodes a missing cell as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON accepts a number or null.
func (c *Cell) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Cell{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = CellOf(v)
	return nil
}

// String renders a missing cell as the empty string.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// StormSummary is one row of the per-date storm statistics table.
type StormSummary struct {
	Date            string    `json:"date"`
	Start           time.Time `json:"start_time,omitzero"`
	End             time.Time `json:"end_time,omitzero"`
	DurationHours   Cell      `json:"duration_hours"`
	Sites           int       `json:"sites"`
	MeanTotalMM     Cell      `json:"mean_total_mm"`
	StdTotalMM      Cell      `json:"std_total_mm"`
	AvgIntensityMMH Cell      `json:"avg_intensity_mm_per_hr"`
	MeanMax15MM     Cell      `json:"mean_max_15min_mm"`
	MaxMax15MM      Cell      `json:"max_max_15min_mm"`
	MeanMaxHourMM   Cell      `json:"mean_max_hourly_mm"`
	MaxMaxHourMM    Cell      `json:"max_max_hourly_mm"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
}

// SummarizeStorm computes the storm statistics of a day from its per-site
// daily totals and max intensities. Missing values must already be removed.
func SummarizeStorm(w StormWindow, totals, max15, maxHour []float64) StormSummary {
	mean := meanOf(totals)
	s := StormSummary{
		Date:          w.Date.String(),
		Start:         w.Start,
		End:           w.End,
		DurationHours: CellOf(w.DurationHours),
		Sites:         len(totals),
		MeanTotalMM:   mean,
		StdTotalMM:    sampleStd(totals),
		MeanMax15MM:   meanOf(max15),
		MaxMax15MM:    maxOf(max15),
		MeanMaxHourMM: meanOf(maxHour),
		MaxMaxHourMM:  maxOf(maxHour),
		Status:        StatusOK,
	}
	if mean.Valid && w.DurationHours > 0 {
		s.AvgIntensityMMH = CellOf(mean.Value / w.DurationHours)
	}
	return s
}

// DegenerateSummary is the placeholder row of a date without a storm window.
func DegenerateSummary(d Date, reason string) StormSummary {
	return StormSummary{Date: d.String(), Status: StatusDegenerate, Reason: reason}
}

// SubDailyColumns returns one column per res bucket of the storm window,
// starting at the bucket containing w.Start and ending at the one containing
// w.End. rows must be aggregates at res.
func SubDailyColumns(w StormWindow, rows []AggregateRow, res Resolution) []Column {
	var cols []Column
	last := res.Bucket(w.End)
	for b := res.Bucket(w.Start); !b.After(last); b = res.Next(b) {
		cols = append(cols, Column{
			Label:  b.Format(LabelLayout),
			Values: BucketTotalsBySite(rows, b),
		})
	}
	return cols
}

func meanOf(xs []float64) Cell {
	if len(xs) == 0 {
		return Cell{}
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return CellOf(sum / float64(len(xs)))
}

func sampleStd(xs []float64) Cell {
	if len(xs) < 2 {
		return Cell{}
	}
	mean := meanOf(xs).Value
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return CellOf(math.Sqrt(ss / float64(len(xs)-1)))
}

func maxOf(xs []float64) Cell {
	if len(xs) == 0 {
		return Cell{}
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return CellOf(m)
}
