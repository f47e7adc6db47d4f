package domain

import (
	"fmt"
	"strings"
	"time"
)

// Row is one record from a tabular data source, keyed by column name.
type Row map[string]any

// Observation is a single gauge reading in canonical form. PrecipMM holds a
// running total before incremental conversion and a per-interval depth after.
type Observation struct {
	Time     time.Time `json:"datetime"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	SiteName string    `json:"site_name"`
	Src      string    `json:"src"`
	PrecipMM float64   `json:"precip_mm"`
}

// QuarantineRecord is a reading flagged because the next cumulative value
// decreased. Step is the index of that next reading within its series.
type QuarantineRecord struct {
	Observation
	Step int `json:"step"`
}

// Site is a gauge location from the site registry.
type Site struct {
	Name string  `json:"site_name" db:"site_name"`
	X    float64 `json:"x" db:"x"`
	Y    float64 `json:"y" db:"y"`
	Src  string  `json:"src" db:"src"`
}

// Registry is the ordered, immutable list of sites that seeds every summary table.
type Registry struct {
	sites []Site
	index map[string]int
}

// NewRegistry builds a registry, rejecting blank and duplicate site names.
func NewRegistry(sites []Site) (*Registry, error) {
	r := &Registry{
		sites: make([]Site, 0, len(sites)),
		index: make(map[string]int, len(sites)),
	}
	for i, s := range sites {
		s.Name = trimSiteName(s.Name)
		if s.Name == "" {
			return nil, fmt.Errorf("registry entry %d: empty site name", i)
		}
		if _, ok := r.index[s.Name]; ok {
			return nil, fmt.Errorf("registry entry %d: duplicate site %q", i, s.Name)
		}
		r.index[s.Name] = len(r.sites)
		r.sites = append(r.sites, s)
	}
	return r, nil
}

// Sites returns a copy of the registered sites in registry order.
func (r *Registry) Sites() []Site {
	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Lookup returns the site registered under name.
func (r *Registry) Lookup(name string) (Site, bool) {
	i, ok := r.index[name]
	if !ok {
		return Site{}, false
	}
	return r.sites[i], true
}

// Len returns the number of registered sites.
func (r *Registry) Len() int { return len(r.sites) }

// Date is a calendar day in the study time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts "2006-01-02" and the compact "20060102" form.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	layout := "2006-01-02"
	if len(s) == 8 && !strings.Contains(s, "-") {
		layout = "20060102"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Start returns local midnight of the day in loc.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Contains reports whether t, read in its own location, falls on d.
func (d Date) Contains(t time.Time) bool {
	return DateOf(t) == d
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// ForDate returns the observations that fall on d, preserving order.
func ForDate(obs []Observation, d Date) []Observation {
	out := make([]Observation, 0)
	for _, o := range obs {
		if d.Contains(o.Time) {
			out = append(out, o)
		}
	}
	return out
}

// ForDates keeps observations falling on any of dates.
func ForDates(obs []Observation, dates []Date) []Observation {
	want := make(map[Date]struct{}, len(dates))
	for _, d := range dates {
		want[d] = struct{}{}
	}
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if _, ok := want[DateOf(o.Time)]; ok {
			out = append(out, o)
		}
	}
	return out
}
