package file

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

func TestSourceFetch(t *testing.T) {
	dir := t.TempDir()
	body := "datetime,x,y,site_name,precip_mm\n" +
		"2014-07-10 12:00:00,1,2,MMPS-171,0.5\n" +
		"2014-07-10 12:15:00,1,2,MMPS-171,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hrsd_obs_spatial.csv"), []byte(body), 0o600))
	src := NewSource(dir)

	rows, err := src.Fetch(context.Background(), "hrsd_obs_spatial")

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.Row{
		"datetime": "2014-07-10 12:00:00", "x": "1", "y": "2", "site_name": "MMPS-171", "precip_mm": "0.5",
	}, rows[0])
	assert.Nil(t, rows[1]["precip_mm"])
	require.NoError(t, src.CheckReadiness(context.Background()))
}

func TestSourceFetchErrors(t *testing.T) {
	src := NewSource(t.TempDir())

	_, err := src.Fetch(context.Background(), "../etc/passwd")
	assert.ErrorContains(t, err, "invalid table name")

	_, err = src.Fetch(context.Background(), "absent")
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Error(t, NewSource(filepath.Join(t.TempDir(), "nope")).CheckReadiness(context.Background()))
}

func quarantined(site string, minute int, precip float64) domain.QuarantineRecord {
	return domain.QuarantineRecord{
		Observation: domain.Observation{
			Time:     time.Date(2014, time.July, 10, 12, minute, 0, 0, time.UTC),
			X:        3705123.5,
			Y:        1063211.25,
			SiteName: site,
			Src:      "wu",
			PrecipMM: precip,
		},
		Step: 3,
	}
}

func TestAuditLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "non_cumulative.csv")
	log := NewAuditLog(path)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, []domain.QuarantineRecord{quarantined("KVANORFO1", 15, 4.25)}))
	require.NoError(t, log.Append(ctx, nil))
	require.NoError(t, NewAuditLog(path).Append(ctx, []domain.QuarantineRecord{quarantined("KVAVIRGI52", 30, 1)}))

	header, records, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"datetime", "x", "y", "site_name", "src", "precip_mm"}, header)
	assert.Equal(t, [][]string{
		{"2014-07-10 12:15:00", "3705123.5", "1063211.25", "KVANORFO1", "wu", "4.25"},
		{"2014-07-10 12:30:00", "3705123.5", "1063211.25", "KVAVIRGI52", "wu", "1"},
	}, records)
}

func testTable(t *testing.T) *domain.Table {
	t.Helper()
	reg, err := domain.NewRegistry([]domain.Site{
		{Name: "A", X: 1.5, Y: 2, Src: "vab"},
		{Name: "B", X: 3, Y: 4, Src: "wu"},
	})
	require.NoError(t, err)
	table, err := domain.NewSummaryBuilder(reg, nil).Build([]domain.Column{
		{Label: "2014-07-10", Values: map[string]float64{"A": 12.5}},
	})
	require.NoError(t, err)
	return table
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteTable(&buf, testTable(t)))

	assert.Equal(t, "site_name,x,y,src,2014-07-10\nA,1.5,2,vab,12.5\nB,3,4,wu,\n", buf.String())
}

func TestWriterLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	w := NewWriter(dir, slog.Default())
	start := time.Date(2014, 7, 10, 12, 0, 0, 0, time.UTC)
	res := &domain.RunResult{
		RunID:  "run-1",
		Tables: []domain.NamedTable{{Name: domain.TableDaily, Table: testTable(t)}},
		Storms: []domain.StormSummary{
			domain.SummarizeStorm(domain.StormWindow{
				Date: domain.Date{Year: 2014, Month: time.July, Day: 10}, Start: start, End: start.Add(90 * time.Minute), DurationHours: 1.5,
			}, []float64{12.5}, []float64{3}, []float64{7}),
			domain.DegenerateSummary(domain.Date{Year: 2014, Month: time.July, Day: 11}, "zero total rainfall"),
		},
	}

	require.NoError(t, w.Load(context.Background(), res))
	require.NoError(t, w.Load(context.Background(), res), "second run replaces files")

	_, daily, err := ReadCSV(filepath.Join(dir, "daily.csv"))
	require.NoError(t, err)
	assert.Len(t, daily, 2)

	header, storms, err := ReadCSV(filepath.Join(dir, "storm_summary.csv"))
	require.NoError(t, err)
	assert.Equal(t, StormHeader, header)
	require.Len(t, storms, 2)
	assert.Equal(t, []string{
		"2014-07-10", "2014-07-10 12:00:00", "2014-07-10 13:30:00", "1.5", "1",
		"12.5", "", "8.333333333333334", "7", "7", "3", "3", "ok", "",
	}, storms[0])
	assert.Equal(t, "degenerate", storms[1][12])
	assert.Equal(t, "zero total rainfall", storms[1][13])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}
