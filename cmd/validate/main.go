// Command validate checks a finished run's output directory against the
// study that produced it: table shape, deny-list exclusion, registry
// alignment across tables, intensity ordering, and storm summary sanity.
//
// Usage:
//
//	go run ./cmd/validate -study study.yaml -out-dir output
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/rain-gauge-etl/internal/adapter/file"
	"github.com/couchcryptid/rain-gauge-etl/internal/config"
	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

var siteColumns = []string{domain.ColumnSiteName, domain.ColumnX, domain.ColumnY, domain.ColumnSrc}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// table is a summary table read back from CSV.
type table struct {
	name   string
	labels []string
	sites  []string
	// values[site][label]; missing cells are absent.
	values map[string]map[string]float64
}

type storm struct {
	date, start, end, status, reason string
	duration                         string
}

func main() {
	studyPath := flag.String("study", "study.yaml", "study definition used for the run")
	outDir := flag.String("out-dir", "output", "directory holding the run's output files")
	flag.Parse()

	os.Exit(run(*studyPath, *outDir))
}

func run(studyPath, outDir string) int {
	fmt.Println("=== Rain Gauge Output Validation ===")
	fmt.Println()

	study, err := config.LoadStudy(studyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	names := []string{domain.TableDaily, domain.TableMaxHourly, domain.TableMaxFifteen}
	for _, r := range study.SubDailyResolutions() {
		names = append(names, domain.SubDailyTableName(r))
	}
	tables := make(map[string]*table, len(names))
	shape := &phase{name: "Phase 1: Table shape"}
	for _, n := range names {
		t, err := loadTable(outDir, n)
		if err != nil {
			shape.errorf("%v", err)
			continue
		}
		tables[n] = t
	}
	checkShape(shape, study, tables)

	storms, err := loadStorms(outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		shape,
		validateDenyList(study, tables),
		validateRegistryAlignment(tables),
		validateIntensityOrdering(tables),
		validateStorms(study, storms),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Tables: %d, sites: %d, storm dates: %d\n", len(tables), siteCount(tables), len(storms))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func loadTable(dir, name string) (*table, error) {
	header, records, err := file.ReadCSV(filepath.Join(dir, name+".csv"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(header) < len(siteColumns) || !slices.Equal(header[:len(siteColumns)], siteColumns) {
		return nil, fmt.Errorf("%s: header starts %v, want %v", name, header, siteColumns)
	}
	t := &table{
		name:   name,
		labels: header[len(siteColumns):],
		values: make(map[string]map[string]float64, len(records)),
	}
	for i, rec := range records {
		site := rec[0]
		t.sites = append(t.sites, site)
		row := make(map[string]float64)
		for j, label := range t.labels {
			cell := rec[len(siteColumns)+j]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %s: %w", name, i+1, label, err)
			}
			row[label] = v
		}
		t.values[site] = row
	}
	return t, nil
}

func loadStorms(dir string) ([]storm, error) {
	header, records, err := file.ReadCSV(filepath.Join(dir, domain.TableStorms+".csv"))
	if err != nil {
		return nil, err
	}
	if !slices.Equal(header, file.StormHeader) {
		return nil, fmt.Errorf("%s: header %v, want %v", domain.TableStorms, header, file.StormHeader)
	}
	col := func(rec []string, name string) string { return rec[slices.Index(file.StormHeader, name)] }
	out := make([]storm, 0, len(records))
	for _, rec := range records {
		out = append(out, storm{
			date:     col(rec, "date"),
			start:    col(rec, "start_time"),
			end:      col(rec, "end_time"),
			duration: col(rec, "duration_hours"),
			status:   col(rec, "status"),
			reason:   col(rec, "reason"),
		})
	}
	return out, nil
}

func checkShape(p *phase, study *config.Study, tables map[string]*table) {
	for _, t := range tables {
		seen := make(map[string]bool, len(t.labels))
		for _, l := range t.labels {
			if seen[l] {
				p.errorf("%s: duplicate column %q", t.name, l)
			}
			seen[l] = true
		}
		seenSite := make(map[string]bool, len(t.sites))
		for _, s := range t.sites {
			if seenSite[s] {
				p.errorf("%s: duplicate site %q", t.name, s)
			}
			seenSite[s] = true
		}
	}
	for _, name := range []string{domain.TableDaily, domain.TableMaxHourly, domain.TableMaxFifteen} {
		t, ok := tables[name]
		if !ok {
			continue
		}
		if want := dateLabels(study); !slices.Equal(t.labels, want) {
			p.errorf("%s: columns %v, want study dates %v", name, t.labels, want)
		}
	}
	for _, r := range study.SubDailyResolutions() {
		t, ok := tables[domain.SubDailyTableName(r)]
		if !ok {
			continue
		}
		for _, l := range t.labels {
			ts, err := time.Parse(domain.LabelLayout, l)
			if err != nil {
				p.errorf("%s: column %q is not a timestamp", t.name, l)
				continue
			}
			if !ts.Equal(r.Bucket(ts)) {
				p.errorf("%s: column %q is not on a %s boundary", t.name, l, r)
			}
		}
	}
}

func validateDenyList(study *config.Study, tables map[string]*table) *phase {
	p := &phase{name: "Phase 2: Deny-list exclusion"}
	for _, t := range tables {
		for _, d := range study.Deny {
			if _, ok := t.values[d]; ok {
				p.errorf("%s: denied site %s present", t.name, d)
			}
		}
	}
	return p
}

func validateRegistryAlignment(tables map[string]*table) *phase {
	p := &phase{name: "Phase 3: Registry alignment"}
	daily, ok := tables[domain.TableDaily]
	if !ok {
		p.errorf("daily table missing")
		return p
	}
	for _, t := range tables {
		if !slices.Equal(t.sites, daily.sites) {
			p.errorf("%s: %d sites, daily has %d (or order differs)", t.name, len(t.sites), len(daily.sites))
		}
		for site, row := range t.values {
			for label, v := range row {
				if v < 0 {
					p.errorf("%s: %s/%s negative depth %g", t.name, site, label, v)
				}
			}
		}
	}
	return p
}

func validateIntensityOrdering(tables map[string]*table) *phase {
	p := &phase{name: "Phase 4: Intensity ordering"}
	daily, maxHr, max15 := tables[domain.TableDaily], tables[domain.TableMaxHourly], tables[domain.TableMaxFifteen]
	if daily == nil || maxHr == nil || max15 == nil {
		p.errorf("daily or max intensity tables missing")
		return p
	}
	const eps = 1e-9
	for _, site := range daily.sites {
		for _, date := range daily.labels {
			total, hasTotal := daily.values[site][date]
			hr, hasHr := maxHr.values[site][date]
			q, hasQ := max15.values[site][date]
			if hasHr && hasTotal && hr > total+eps {
				p.errorf("%s %s: max hourly %g exceeds daily total %g", site, date, hr, total)
			}
			if hasQ && hasTotal && q > total+eps {
				p.errorf("%s %s: max 15-min %g exceeds daily total %g", site, date, q, total)
			}
			if hasQ && hasHr && q > hr+eps {
				p.errorf("%s %s: max 15-min %g exceeds max hourly %g", site, date, q, hr)
			}
			if !hasTotal && (hasHr || hasQ) {
				p.errorf("%s %s: intensity present without a daily total", site, date)
			}
		}
	}
	return p
}

func validateStorms(study *config.Study, storms []storm) *phase {
	p := &phase{name: "Phase 5: Storm summary"}
	want := dateLabels(study)
	if len(storms) != len(want) {
		p.errorf("%d storm rows, want one per study date (%d)", len(storms), len(want))
	}
	for i, s := range storms {
		if i < len(want) && s.date != want[i] {
			p.errorf("row %d: date %s, want %s", i+1, s.date, want[i])
		}
		switch s.status {
		case domain.StatusOK:
			start, err1 := time.Parse(domain.LabelLayout, s.start)
			end, err2 := time.Parse(domain.LabelLayout, s.end)
			if err1 != nil || err2 != nil {
				p.errorf("%s: unparseable window %q..%q", s.date, s.start, s.end)
				continue
			}
			if end.Before(start) {
				p.errorf("%s: window ends before it starts", s.date)
			}
			d, err := strconv.ParseFloat(s.duration, 64)
			if err != nil || d < 0 {
				p.errorf("%s: duration %q is not a non-negative number", s.date, s.duration)
			}
		case domain.StatusDegenerate:
			if s.start != "" || s.end != "" || s.duration != "" {
				p.errorf("%s: degenerate date has window columns", s.date)
			}
			if s.reason == "" {
				p.errorf("%s: degenerate date has no reason", s.date)
			}
		default:
			p.errorf("%s: unknown status %q", s.date, s.status)
		}
	}
	return p
}

func dateLabels(study *config.Study) []string {
	dates := study.StormDates()
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}

func siteCount(tables map[string]*table) int {
	if t, ok := tables[domain.TableDaily]; ok {
		return len(t.sites)
	}
	return 0
}
