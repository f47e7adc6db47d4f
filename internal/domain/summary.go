package domain

import (
	"fmt"
	"math"
	"slices"
)

// Cell is one summary table value. A cell that is not Valid is missing data,
// which is distinct from a valid zero.
type Cell struct {
	Value float64
	Valid bool
}

// CellOf wraps v, treating NaN as missing.
func CellOf(v float64) Cell {
	if math.IsNaN(v) {
		return Cell{}
	}
	return Cell{Value: v, Valid: true}
}

// Column is a labelled per-site aggregate to be joined onto a table.
type Column struct {
	Label  string
	Values map[string]float64
}

// Table is a wide summary: one row per registered site, one column per label.
// Tables are immutable; every operation returns a new table.
type Table struct {
	sites  []Site
	index  map[string]int
	labels []string
	cells  [][]Cell // [site][label]
}

// NewTable returns a table holding only the registry's leading columns.
func NewTable(reg *Registry) *Table {
	sites := reg.Sites()
	t := &Table{
		sites: sites,
		index: make(map[string]int, len(sites)),
		cells: make([][]Cell, len(sites)),
	}
	for i, s := range sites {
		t.index[s.Name] = i
	}
	return t
}

func (t *Table) clone() *Table {
	c := &Table{
		sites:  slices.Clone(t.sites),
		index:  make(map[string]int, len(t.sites)),
		labels: slices.Clone(t.labels),
		cells:  make([][]Cell, len(t.cells)),
	}
	for i, s := range c.sites {
		c.index[s.Name] = i
		c.cells[i] = slices.Clone(t.cells[i])
	}
	return c
}

// Join left-joins col onto t by site name. Registered sites absent from col
// become missing; values for unregistered sites are ignored.
func (t *Table) Join(col Column) (*Table, error) {
	if slices.Contains(t.labels, col.Label) {
		return nil, fmt.Errorf("join column %q: label already present", col.Label)
	}
	out := t.clone()
	out.labels = append(out.labels, col.Label)
	for i, s := range out.sites {
		cell := Cell{}
		if v, ok := col.Values[s.Name]; ok {
			cell = CellOf(v)
		}
		out.cells[i] = append(out.cells[i], cell)
	}
	return out, nil
}

// Merge joins every column of other onto t. Both tables must share the
// same registry.
func (t *Table) Merge(other *Table) (*Table, error) {
	out := t
	for j, label := range other.labels {
		values := make(map[string]float64, len(other.sites))
		for i, s := range other.sites {
			if c := other.cells[i][j]; c.Valid {
				values[s.Name] = c.Value
			}
		}
		var err error
		if out, err = out.Join(Column{Label: label, Values: values}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Exclude drops the rows of the given sites.
func (t *Table) Exclude(deny []string) *Table {
	if len(deny) == 0 {
		return t.clone()
	}
	drop := make(map[string]struct{}, len(deny))
	for _, d := range deny {
		drop[trimSiteName(d)] = struct{}{}
	}
	out := &Table{index: make(map[string]int), labels: slices.Clone(t.labels)}
	for i, s := range t.sites {
		if _, ok := drop[s.Name]; ok {
			continue
		}
		out.index[s.Name] = len(out.sites)
		out.sites = append(out.sites, s)
		out.cells = append(out.cells, slices.Clone(t.cells[i]))
	}
	return out
}

// DropEmptyColumns removes label columns whose valid values do not sum to a
// positive depth.
func (t *Table) DropEmptyColumns() *Table {
	keep := make([]int, 0, len(t.labels))
	for j := range t.labels {
		sum := 0.0
		for i := range t.sites {
			if c := t.cells[i][j]; c.Valid {
				sum += c.Value
			}
		}
		if sum > 0 {
			keep = append(keep, j)
		}
	}

	out := &Table{
		sites: slices.Clone(t.sites),
		index: make(map[string]int, len(t.sites)),
		cells: make([][]Cell, len(t.sites)),
	}
	for _, j := range keep {
		out.labels = append(out.labels, t.labels[j])
	}
	for i, s := range out.sites {
		out.index[s.Name] = i
		row := make([]Cell, 0, len(keep))
		for _, j := range keep {
			row = append(row, t.cells[i][j])
		}
		out.cells[i] = row
	}
	return out
}

// Labels returns the label columns in join order.
func (t *Table) Labels() []string { return slices.Clone(t.labels) }

// Sites returns the table rows' sites in order.
func (t *Table) Sites() []Site { return slices.Clone(t.sites) }

// Cell returns the value at (site, label). ok is false when either key is unknown.
func (t *Table) Cell(site, label string) (c Cell, ok bool) {
	i, ok := t.index[site]
	if !ok {
		return Cell{}, false
	}
	j := slices.Index(t.labels, label)
	if j < 0 {
		return Cell{}, false
	}
	return t.cells[i][j], true
}

// Row returns the cells of site in label order.
func (t *Table) Row(site string) ([]Cell, bool) {
	i, ok := t.index[site]
	if !ok {
		return nil, false
	}
	return slices.Clone(t.cells[i]), true
}

// ColumnValues returns the valid values of label in row order.
func (t *Table) ColumnValues(label string) []float64 {
	j := slices.Index(t.labels, label)
	if j < 0 {
		return nil
	}
	var out []float64
	for i := range t.sites {
		if c := t.cells[i][j]; c.Valid {
			out = append(out, c.Value)
		}
	}
	return out
}

// SummaryBuilder assembles summary tables from a registry and a QC deny-list.
type SummaryBuilder struct {
	registry *Registry
	deny     []string
}

// NewSummaryBuilder creates a builder. deny lists site names removed from
// every table it builds.
func NewSummaryBuilder(reg *Registry, deny []string) *SummaryBuilder {
	return &SummaryBuilder{registry: reg, deny: slices.Clone(deny)}
}

// Build joins columns in order onto an empty registry table and then applies
// the deny-list.
func (b *SummaryBuilder) Build(columns []Column) (*Table, error) {
	t := NewTable(b.registry)
	for _, col := range columns {
		var err error
		if t, err = t.Join(col); err != nil {
			return nil, err
		}
	}
	return t.Exclude(b.deny), nil
}

// Combine merges per-interval tables into one, drops columns without
// rainfall, and applies the deny-list.
func (b *SummaryBuilder) Combine(tables []*Table) (*Table, error) {
	t := NewTable(b.registry)
	for _, part := range tables {
		var err error
		if t, err = t.Merge(part); err != nil {
			return nil, err
		}
	}
	return t.DropEmptyColumns().Exclude(b.deny), nil
}

type siteDay struct {
	site string
	date Date
}

// MaskZeroDays marks every observation of a site-day whose depths sum to
// exactly zero as missing (NaN), so "no rain" reported by a gauge is not
// mistaken for a measured dry day. Site-days without observations are
// untouched. Only the given dates are considered; an empty list means all.
func MaskZeroDays(obs []Observation, dates []Date) []Observation {
	var want map[Date]struct{}
	if len(dates) > 0 {
		want = make(map[Date]struct{}, len(dates))
		for _, d := range dates {
			want[d] = struct{}{}
		}
	}

	sums := make(map[siteDay]float64)
	for _, o := range obs {
		sums[siteDay{site: o.SiteName, date: DateOf(o.Time)}] += o.PrecipMM
	}

	out := make([]Observation, len(obs))
	for i, o := range obs {
		k := siteDay{site: o.SiteName, date: DateOf(o.Time)}
		_, considered := want[k.date]
		if (want == nil || considered) && sums[k] == 0 {
			o.PrecipMM = math.NaN()
		}
		out[i] = o
	}
	return out
}
