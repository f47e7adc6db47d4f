package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDegenerateStorm is matched by every *DegenerateStormError via errors.Is.
var ErrDegenerateStorm = errors.New("degenerate storm window")

// ParseError reports a value in a source row that could not be converted.
type ParseError struct {
	Table  string
	Row    int
	Column string
	Value  any
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s row %d column %q value %v: %v", e.Table, e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError reports a source table whose columns do not match its mapping.
type SchemaError struct {
	Table   string
	Row     int
	Missing []string
	Unknown []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown columns "+strings.Join(e.Unknown, ", "))
	}
	return fmt.Sprintf("schema of %s row %d: %s", e.Table, e.Row, strings.Join(parts, "; "))
}

// DegenerateStormError is returned when a day's rainfall cannot produce a
// trimmed storm window, typically because the day's total is zero.
type DegenerateStormError struct {
	Date   Date
	Reason string
}

func (e *DegenerateStormError) Error() string {
	return fmt.Sprintf("storm window for %s: %s", e.Date, e.Reason)
}

func (e *DegenerateStormError) Is(target error) bool { return target == ErrDegenerateStorm }
