package domain

import "time"

// Output table names. They match the table names of the historical study
// database so downstream plotting keeps working.
const (
	TableDaily      = "daily"
	TableFifteen    = "fif"
	TableHourly     = "hr"
	TableMaxFifteen = "max_intensity_fif"
	TableMaxHourly  = "max_intensity_hr"
	TableStorms     = "storm_summary"
)

// SubDailyTableName returns the output table name of a sub-daily resolution.
func SubDailyTableName(r Resolution) string {
	switch r {
	case FifteenMinutes:
		return TableFifteen
	case Hourly:
		return TableHourly
	default:
		return TableDaily
	}
}

// NamedTable is a summary table with its output name.
type NamedTable struct {
	Name  string
	Table *Table
}

// RunResult is everything one run produces. It is built once and never
// mutated; sinks decide how to persist it.
type RunResult struct {
	RunID       string
	GeneratedAt time.Time
	Tables      []NamedTable
	Storms      []StormSummary
}

// TableByName returns the named table, if the run produced it.
func (r *RunResult) TableByName(name string) (*Table, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t.Table, true
		}
	}
	return nil, false
}
