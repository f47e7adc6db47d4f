package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cast"
)

// Canonical column names shared by every normalized source and output table.
const (
	ColumnTime     = "datetime"
	ColumnX        = "x"
	ColumnY        = "y"
	ColumnSiteName = "site_name"
	ColumnSrc      = "src"
	ColumnPrecip   = "precip_mm"
)

// ColumnMap names the source columns holding each canonical field.
// Empty entries default to the canonical name.
type ColumnMap struct {
	Time     string `yaml:"datetime"`
	X        string `yaml:"x"`
	Y        string `yaml:"y"`
	SiteName string `yaml:"site_name"`
	Precip   string `yaml:"precip_mm"`
}

func (c ColumnMap) withDefaults() ColumnMap {
	if c.Time == "" {
		c.Time = ColumnTime
	}
	if c.X == "" {
		c.X = ColumnX
	}
	if c.Y == "" {
		c.Y = ColumnY
	}
	if c.SiteName == "" {
		c.SiteName = ColumnSiteName
	}
	if c.Precip == "" {
		c.Precip = ColumnPrecip
	}
	return c
}

// SourceSpec describes how one gauge network's table maps onto Observation.
type SourceSpec struct {
	Src        string    `yaml:"src" validate:"required"`
	Table      string    `yaml:"table" validate:"required"`
	Columns    ColumnMap `yaml:"columns"`
	Drop       []string  `yaml:"drop"`   // present but discarded, e.g. a superseded site_name
	Ignore     []string  `yaml:"ignore"` // tolerated bookkeeping columns, e.g. index
	Cumulative bool      `yaml:"cumulative"`
	Allow      []string  `yaml:"allow"` // when non-empty, only these sites are kept
}

// Normalize converts rows from spec's table into canonical observations with
// timestamps read as wall-clock times in loc. Rows must carry every mapped
// column and nothing outside the mapped, dropped, and ignored sets.
//
// A wall-clock time inside a repeated (DST fall-back) hour is ambiguous. It
// resolves to the first occurrence unless the same gauge's previous row is
// already at or past it, in which case it is the second pass.
func Normalize(spec SourceSpec, rows []Row, loc *time.Location) ([]Observation, error) {
	cols := spec.Columns.withDefaults()
	required := []string{cols.Time, cols.X, cols.Y, cols.SiteName, cols.Precip}

	known := make(map[string]struct{}, len(required)+len(spec.Drop)+len(spec.Ignore))
	for _, c := range slices.Concat(required, spec.Drop, spec.Ignore) {
		known[c] = struct{}{}
	}

	var allow map[string]struct{}
	if len(spec.Allow) > 0 {
		allow = make(map[string]struct{}, len(spec.Allow))
		for _, s := range spec.Allow {
			allow[trimSiteName(s)] = struct{}{}
		}
	}

	last := make(map[GroupKey]time.Time)
	out := make([]Observation, 0, len(rows))
	for i, row := range rows {
		if err := checkSchema(spec.Table, i, row, required, known); err != nil {
			return nil, err
		}

		obs, err := normalizeRow(spec, cols, i, row, loc)
		if err != nil {
			return nil, err
		}
		if allow != nil {
			if _, ok := allow[obs.SiteName]; !ok {
				continue
			}
		}
		gauge := GroupKey{X: obs.X, Y: obs.Y}
		if prev, ok := last[gauge]; ok {
			obs.Time = secondPass(obs.Time, prev)
		}
		last[gauge] = obs.Time
		out = append(out, obs)
	}
	return out, nil
}

// secondPass returns the later occurrence of t's wall-clock time when t falls
// in a repeated hour and does not come after prev. Otherwise t is unchanged.
func secondPass(t, prev time.Time) time.Time {
	if t.After(prev) {
		return t
	}
	later := t.Add(time.Hour)
	if later.Hour() == t.Hour() && later.Minute() == t.Minute() && later.Day() == t.Day() && later.After(prev) {
		return later
	}
	return t
}

func checkSchema(table string, i int, row Row, required []string, known map[string]struct{}) error {
	missing := missingColumns(row, required...)
	var unknown []string
	for c := range row {
		if _, ok := known[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &SchemaError{Table: table, Row: i, Missing: missing, Unknown: unknown}
}

func missingColumns(row Row, required ...string) []string {
	var missing []string
	for _, c := range required {
		if _, ok := row[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

func normalizeRow(spec SourceSpec, cols ColumnMap, i int, row Row, loc *time.Location) (Observation, error) {
	parseErr := func(col string, err error) error {
		return &ParseError{Table: spec.Table, Row: i, Column: col, Value: row[col], Err: err}
	}

	ts, err := parseTimestamp(row[cols.Time], loc)
	if err != nil {
		return Observation{}, parseErr(cols.Time, err)
	}
	x, err := parseCoordinate(row[cols.X])
	if err != nil {
		return Observation{}, parseErr(cols.X, err)
	}
	y, err := parseCoordinate(row[cols.Y])
	if err != nil {
		return Observation{}, parseErr(cols.Y, err)
	}
	site, err := cast.ToStringE(textValue(row[cols.SiteName]))
	if err != nil {
		return Observation{}, parseErr(cols.SiteName, err)
	}
	site = trimSiteName(site)
	if site == "" {
		return Observation{}, parseErr(cols.SiteName, fmt.Errorf("empty site name"))
	}
	precip, err := parsePrecip(row[cols.Precip])
	if err != nil {
		return Observation{}, parseErr(cols.Precip, err)
	}

	return Observation{
		Time:     ts,
		X:        x,
		Y:        y,
		SiteName: site,
		Src:      spec.Src,
		PrecipMM: precip,
	}, nil
}

// parseTimestamp reads v as a naive wall-clock time in loc. Driver-decoded
// time.Time values keep their wall clock and are re-anchored in loc.
func parseTimestamp(v any, loc *time.Location) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("null timestamp")
	case time.Time:
		return wallClock(t, loc), nil
	}
	s, err := cast.ToStringE(textValue(v))
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := cast.ToTimeInDefaultLocationE(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func parseCoordinate(v any) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("null coordinate")
	}
	return cast.ToFloat64E(numericValue(v))
}

// parsePrecip maps NULL and blank values to NaN so that missing readings
// stay distinguishable from zero rainfall.
func parsePrecip(v any) (float64, error) {
	v = numericValue(v)
	if v == nil {
		return math.NaN(), nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "nan") {
			return math.NaN(), nil
		}
		v = s
	}
	return cast.ToFloat64E(v)
}

// textValue converts driver byte slices to strings.
func textValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// numericValue converts driver byte slices (lib/pq NUMERIC) to trimmed strings.
func numericValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return strings.TrimSpace(string(t))
	case string:
		return strings.TrimSpace(t)
	}
	return v
}

func trimSiteName(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// RegistryFromRows builds a registry from a site table with site_name, x and
// y columns and an optional src column. Extra columns are ignored.
func RegistryFromRows(table string, rows []Row) (*Registry, error) {
	sites := make([]Site, 0, len(rows))
	for i, row := range rows {
		if missing := missingColumns(row, ColumnSiteName, ColumnX, ColumnY); len(missing) > 0 {
			return nil, &SchemaError{Table: table, Row: i, Missing: missing}
		}
		name, err := cast.ToStringE(textValue(row[ColumnSiteName]))
		if err != nil {
			return nil, &ParseError{Table: table, Row: i, Column: ColumnSiteName, Value: row[ColumnSiteName], Err: err}
		}
		x, err := parseCoordinate(row[ColumnX])
		if err != nil {
			return nil, &ParseError{Table: table, Row: i, Column: ColumnX, Value: row[ColumnX], Err: err}
		}
		y, err := parseCoordinate(row[ColumnY])
		if err != nil {
			return nil, &ParseError{Table: table, Row: i, Column: ColumnY, Value: row[ColumnY], Err: err}
		}
		var src string
		if v, ok := row[ColumnSrc]; ok && v != nil {
			src = cast.ToString(textValue(v))
		}
		sites = append(sites, Site{Name: name, X: x, Y: y, Src: src})
	}
	reg, err := NewRegistry(sites)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", table, err)
	}
	return reg, nil
}
