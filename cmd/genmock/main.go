// Command genmock writes a synthetic gauge study: a SQLite database holding a
// site registry and three rain gauge networks, plus the study.yaml that
// describes it. The data exercises every pipeline path: incremental and
// cumulative sources, a gauge reset, an allow-listed network, deny-listed
// stations, a registered site without data, and an all-zero storm date.
//
// Usage:
//
//	go run ./cmd/genmock -db data/master.sqlite -study study.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/rain-gauge-etl/internal/adapter/sqlsource"
	"github.com/couchcryptid/rain-gauge-etl/internal/config"
	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// Table names written by genmock and referenced by the generated study.
const (
	tableSites = "sites_list"
	tableVAB   = "vabeach_reformat_mm"
	tableHRSD  = "hrsd_obs_spatial"
	tableWU    = "wu"
)

// stormDates get rain; dryDate is reported all-zero by every gauge.
var (
	stormDates = []string{"2014-07-10", "2014-08-12", "2014-09-08", "2014-09-09"}
	dryDate    = "2014-09-21"
)

type site struct {
	Name string  `db:"site_name"`
	X    float64 `db:"x"`
	Y    float64 `db:"y"`
	Src  string  `db:"src"`
}

type reading struct {
	Time     string  `db:"datetime"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	SiteName string  `db:"site_name"`
	Precip   float64 `db:"precip_mm"`
}

type wuReading struct {
	Index    int     `db:"index"`
	Time     string  `db:"datetime"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	SiteCode string  `db:"site_code"`
	SiteName string  `db:"site_name"`
	Precip   float64 `db:"precip_mm"`
}

const schema = `
CREATE TABLE sites_list (site_name TEXT NOT NULL, x REAL NOT NULL, y REAL NOT NULL, src TEXT NOT NULL);
CREATE TABLE vabeach_reformat_mm (datetime TEXT, x REAL, y REAL, site_name TEXT, precip_mm REAL);
CREATE TABLE hrsd_obs_spatial (datetime TEXT, x REAL, y REAL, site_name TEXT, precip_mm REAL);
CREATE TABLE wu ("index" INTEGER, datetime TEXT, x REAL, y REAL, site_code TEXT, site_name TEXT, precip_mm REAL);
`

const studyTemplate = `# Generated by genmock.
timezone: America/New_York
registry_table: %s
dates: [%s]
trim_percent: 0.025
zero_day_mask: true
reset_policy: carry
first_value: absolute
sub_daily: [15min, hour]
deny: [%s]
sources:
  - src: vabeach
    table: %s
  - src: hrsd
    table: %s
    allow: [%s]
  - src: wu
    table: %s
    cumulative: true
    columns:
      site_name: site_code
    drop: [site_name]
    ignore: [index]
`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "data/master.sqlite", "output SQLite database (replaced if present)")
	studyPath := flag.String("study", "study.yaml", "output study definition")
	seed := flag.Uint64("seed", 20140710, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return err
	}

	vab := makeSites("VB", "vabeach", 6, 3_745_000, 1_050_000)
	hrsd := makeSites("HR", "hrsd", 4, 3_730_000, 1_065_000)
	outside := site{Name: "HR99", X: 3_600_000, Y: 1_200_000, Src: "hrsd"}
	wuSites := []site{
		{Name: "KVAVIRGI40", X: 3_741_500, Y: 1_052_300, Src: "wu"},
		{Name: "KVAVIRGI41", X: 3_748_200, Y: 1_057_900, Src: "wu"},
		{Name: "KVAVIRGI52", X: 3_752_100, Y: 1_049_600, Src: "wu"},
	}
	registry := slices.Concat(vab, hrsd, wuSites, []site{{Name: "VB07", X: 3_755_000, Y: 1_058_000, Src: "vabeach"}})

	var vabRows, hrsdRows []reading
	var wuRows []wuReading
	for _, ds := range append(slices.Clone(stormDates), dryDate) {
		day, err := time.ParseInLocation(time.DateOnly, ds, loc)
		if err != nil {
			return err
		}
		dry := ds == dryDate
		peak := 6 + rng.Float64()*12
		for _, s := range vab {
			vabRows = append(vabRows, incremental(s, day, 15*time.Minute, profile(rng, peak, dry))...)
		}
		if dry {
			continue
		}
		for _, s := range append(slices.Clone(hrsd), outside) {
			hrsdRows = append(hrsdRows, incremental(s, day, 15*time.Minute, profile(rng, peak, dry))...)
		}
		for i, s := range wuSites {
			// One station is reset mid-afternoon on the first storm.
			reset := i == 1 && ds == stormDates[0]
			wuRows = append(wuRows, cumulative(s, day, profile(rng, peak, dry), reset, len(wuRows))...)
		}
	}

	if err := writeDB(*dbPath, registry, vabRows, hrsdRows, wuRows); err != nil {
		return err
	}
	log.Printf("%s: %d sites, %d vabeach, %d hrsd, %d wu rows", *dbPath, len(registry), len(vabRows), len(hrsdRows), len(wuRows))

	if err := writeStudy(*studyPath, hrsd); err != nil {
		return err
	}
	log.Printf("%s: %d dates", *studyPath, len(stormDates)+1)
	return nil
}

func makeSites(prefix, src string, n int, x0, y0 float64) []site {
	out := make([]site, n)
	for i := range out {
		out[i] = site{
			Name: fmt.Sprintf("%s%02d", prefix, i+1),
			X:    x0 + float64(i)*1_750,
			Y:    y0 + float64(i%3)*2_200,
			Src:  src,
		}
	}
	return out
}

// profile returns a storm hyetograph for one gauge: a Gaussian burst around
// peak (hours after midnight) with a random total depth and spread.
func profile(rng *rand.Rand, peak float64, dry bool) func(hours, stepHours float64) float64 {
	if dry {
		return func(_, _ float64) float64 { return 0 }
	}
	depth := 10 + rng.Float64()*50
	sigma := 0.75 + rng.Float64()*1.5
	center := peak + rng.NormFloat64()*0.5
	cdf := func(h float64) float64 { return 0.5 * (1 + math.Erf((h-center)/(sigma*math.Sqrt2))) }
	return func(hours, stepHours float64) float64 {
		v := depth * (cdf(hours+stepHours) - cdf(hours))
		return math.Round(v*100) / 100
	}
}

func incremental(s site, day time.Time, step time.Duration, depth func(h, dh float64) float64) []reading {
	var out []reading
	for t := day; t.Before(day.AddDate(0, 0, 1)); t = t.Add(step) {
		h := t.Sub(day).Hours()
		out = append(out, reading{
			Time:     t.Format(domain.LabelLayout),
			X:        s.X,
			Y:        s.Y,
			SiteName: s.Name,
			Precip:   depth(h, step.Hours()),
		})
	}
	return out
}

// cumulative reports running daily totals every five minutes, the way
// Weather Underground stations do. When reset is set the total drops back to
// zero at 14:00.
func cumulative(s site, day time.Time, depth func(h, dh float64) float64, reset bool, index int) []wuReading {
	const step = 5 * time.Minute
	var out []wuReading
	var total float64
	for t := day; t.Before(day.AddDate(0, 0, 1)); t = t.Add(step) {
		h := t.Sub(day).Hours()
		if reset && t.Hour() == 14 && t.Minute() == 0 {
			total = 0
		}
		total = math.Round((total+depth(h, step.Hours()))*100) / 100
		out = append(out, wuReading{
			Index:    index + len(out),
			Time:     t.Format(domain.LabelLayout),
			X:        s.X,
			Y:        s.Y,
			SiteCode: s.Name + "   ",
			SiteName: strings.ToLower(s.Name),
			Precip:   total,
		})
	}
	return out
}

func writeDB(path string, registry []site, vab, hrsd []reading, wu []wuReading) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	ctx := context.Background()
	db, err := sqlsource.Open(ctx, config.DriverSQLite, path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertAll(ctx, tx, `INSERT INTO sites_list (site_name, x, y, src) VALUES (:site_name, :x, :y, :src)`, registry); err != nil {
		return err
	}
	for _, table := range []struct {
		name string
		rows []reading
	}{{tableVAB, vab}, {tableHRSD, hrsd}} {
		q := fmt.Sprintf(`INSERT INTO %s (datetime, x, y, site_name, precip_mm) VALUES (:datetime, :x, :y, :site_name, :precip_mm)`, table.name)
		if err := insertAll(ctx, tx, q, table.rows); err != nil {
			return err
		}
	}
	if err := insertAll(ctx, tx, `INSERT INTO wu ("index", datetime, x, y, site_code, site_name, precip_mm) VALUES (:index, :datetime, :x, :y, :site_code, :site_name, :precip_mm)`, wu); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAll[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T) error {
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return nil
}

func writeStudy(path string, allow []site) error {
	names := make([]string, len(allow))
	for i, s := range allow {
		names[i] = s.Name
	}
	quoted := make([]string, 0, len(stormDates)+1)
	for _, d := range append(slices.Clone(stormDates), dryDate) {
		quoted = append(quoted, fmt.Sprintf("%q", d))
	}
	body := fmt.Sprintf(studyTemplate,
		tableSites,
		strings.Join(quoted, ", "),
		strings.Join(config.DefaultStudy().Deny, ", "),
		tableVAB,
		tableHRSD, strings.Join(names, ", "),
		tableWU,
	)
	if _, err := config.ParseStudy([]byte(body)); err != nil {
		return fmt.Errorf("generated study is invalid: %w", err)
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
