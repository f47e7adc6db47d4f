package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, names ...string) *Registry {
	t.Helper()
	sites := make([]Site, len(names))
	for i, n := range names {
		sites[i] = Site{Name: n, X: float64(i), Y: float64(i), Src: "vab"}
	}
	reg, err := NewRegistry(sites)
	require.NoError(t, err)
	return reg
}

func TestSummaryJoin(t *testing.T) {
	reg, err := NewRegistry([]Site{{Name: "A", X: 0, Y: 0}, {Name: "B", X: 1, Y: 1}})
	require.NoError(t, err)

	table, err := NewSummaryBuilder(reg, nil).Build([]Column{
		{Label: "2020-01-01", Values: map[string]float64{"A": 5.0}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-01"}, table.Labels())
	a, ok := table.Cell("A", "2020-01-01")
	require.True(t, ok)
	assert.Equal(t, Cell{Value: 5.0, Valid: true}, a)
	b, ok := table.Cell("B", "2020-01-01")
	require.True(t, ok)
	assert.False(t, b.Valid, "absent site must be missing, not zero")
}

func TestSummaryJoinIgnoresUnregisteredSites(t *testing.T) {
	reg := testRegistry(t, "A")

	table, err := NewSummaryBuilder(reg, nil).Build([]Column{
		{Label: "d1", Values: map[string]float64{"A": 1, "Z": 9}},
		{Label: "d2", Values: map[string]float64{"A": 0}},
	})

	require.NoError(t, err)
	require.Len(t, table.Sites(), 1)
	_, ok := table.Row("Z")
	assert.False(t, ok)
	row, ok := table.Row("A")
	require.True(t, ok)
	assert.Equal(t, []Cell{{Value: 1, Valid: true}, {Value: 0, Valid: true}}, row)
}

func TestSummaryJoinIsImmutable(t *testing.T) {
	base := NewTable(testRegistry(t, "A"))

	joined, err := base.Join(Column{Label: "d1", Values: map[string]float64{"A": 1}})
	require.NoError(t, err)

	assert.Empty(t, base.Labels())
	assert.Equal(t, []string{"d1"}, joined.Labels())

	_, err = joined.Join(Column{Label: "d1"})
	assert.Error(t, err)
}

func TestZeroDayMasking(t *testing.T) {
	day := Date{2014, time.July, 10}
	reg := testRegistry(t, "A", "B", "C")
	var obs []Observation
	for i := 0; i < 4; i++ {
		obs = append(obs, gaugeObs("A", 0, 0, 10, 12, i*15, 0.0))
	}
	obs = append(obs,
		gaugeObs("B", 1, 1, 10, 12, 0, 0.0),
		gaugeObs("B", 1, 1, 10, 12, 15, 2.5),
		gaugeObs("A", 0, 0, 11, 12, 0, 0.0),
	)

	masked := MaskZeroDays(obs, []Date{day})
	totals := TotalsBySite(Aggregate(ForDate(masked, day), BySiteKey, Daily))
	table, err := NewSummaryBuilder(reg, nil).Build([]Column{{Label: day.String(), Values: totals}})
	require.NoError(t, err)

	a, _ := table.Cell("A", day.String())
	assert.False(t, a.Valid, "all-zero day becomes missing")
	b, _ := table.Cell("B", day.String())
	assert.Equal(t, Cell{Value: 2.5, Valid: true}, b)
	c, _ := table.Cell("C", day.String())
	assert.False(t, c.Valid, "site without observations stays missing")

	assert.Equal(t, 0.0, masked[len(masked)-1].PrecipMM, "dates outside the list are untouched")
	assert.Equal(t, 0.0, obs[0].PrecipMM, "input is not modified")
}

func TestMaskZeroDaysAllDates(t *testing.T) {
	obs := []Observation{
		gaugeObs("A", 0, 0, 10, 0, 0, 0),
		gaugeObs("A", 0, 0, 11, 0, 0, 0),
	}

	masked := MaskZeroDays(obs, nil)

	assert.True(t, math.IsNaN(masked[0].PrecipMM))
	assert.True(t, math.IsNaN(masked[1].PrecipMM))
}

func TestDenyList(t *testing.T) {
	reg := testRegistry(t, "KVAVIRGI52", "KVANORFO1", "KVAVIRGI112")
	builder := NewSummaryBuilder(reg, []string{"KVAVIRGI52", "KVAVIRGI112 "})

	daily, err := builder.Build([]Column{
		{Label: "d1", Values: map[string]float64{"KVAVIRGI52": 80, "KVANORFO1": 10, "KVAVIRGI112": 3}},
	})
	require.NoError(t, err)
	combined, err := builder.Combine([]*Table{daily})
	require.NoError(t, err)

	for _, table := range []*Table{daily, combined} {
		require.Len(t, table.Sites(), 1)
		assert.Equal(t, "KVANORFO1", table.Sites()[0].Name)
		_, ok := table.Row("KVAVIRGI52")
		assert.False(t, ok)
	}
}

func TestCombineDropsDryColumns(t *testing.T) {
	reg := testRegistry(t, "A", "B")
	builder := NewSummaryBuilder(reg, nil)
	first, err := NewTable(reg).Join(Column{Label: "2014-07-10 12:00:00", Values: map[string]float64{"A": 1}})
	require.NoError(t, err)
	second, err := NewTable(reg).Join(Column{Label: "2014-07-10 13:00:00", Values: map[string]float64{"A": 0, "B": 0}})
	require.NoError(t, err)
	third, err := NewTable(reg).Join(Column{Label: "2014-07-11 02:00:00", Values: map[string]float64{"B": 4}})
	require.NoError(t, err)

	combined, err := builder.Combine([]*Table{first, second, third})

	require.NoError(t, err)
	assert.Equal(t, []string{"2014-07-10 12:00:00", "2014-07-11 02:00:00"}, combined.Labels())
	assert.Equal(t, []float64{4}, combined.ColumnValues("2014-07-11 02:00:00"))
}

func TestCell(t *testing.T) {
	assert.Equal(t, Cell{}, CellOf(math.NaN()))
	assert.Equal(t, "", Cell{}.String())
	assert.Equal(t, "2.5", CellOf(2.5).String())

	b, err := json.Marshal(struct {
		A Cell `json:"a"`
		B Cell `json:"b"`
	}{A: CellOf(1.25)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.25,"b":null}`, string(b))
}

func TestCellUnmarshalJSON(t *testing.T) {
	var got struct {
		A Cell `json:"a"`
		B Cell `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":3.5,"b":null}`), &got))
	assert.Equal(t, CellOf(3.5), got.A)
	assert.False(t, got.B.Valid)
}
