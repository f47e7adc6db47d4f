package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Resolution is the width of an aggregation bucket.
type Resolution int

const (
	FifteenMinutes Resolution = iota + 1
	Hourly
	Daily
)

// ParseResolution accepts the names used in study files and the pandas-style
// aliases of the historical analyses ("15T", "H", "D").
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "15min", "15m", "15t", "fifteen":
		return FifteenMinutes, nil
	case "hour", "hourly", "1h", "h":
		return Hourly, nil
	case "day", "daily", "1d", "d":
		return Daily, nil
	default:
		return 0, fmt.Errorf("unknown resolution %q", s)
	}
}

func (r Resolution) String() string {
	switch r {
	case FifteenMinutes:
		return "15min"
	case Hourly:
		return "hour"
	case Daily:
		return "day"
	default:
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
}

// Step returns the nominal bucket width.
func (r Resolution) Step() time.Duration {
	switch r {
	case FifteenMinutes:
		return 15 * time.Minute
	case Hourly:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Bucket returns the wall-clock start of the bucket containing t.
func (r Resolution) Bucket(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch r {
	case FifteenMinutes:
		return time.Date(y, m, d, t.Hour(), t.Minute()-t.Minute()%15, 0, 0, loc)
	case Hourly:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// Next returns the start of the bucket following b. It steps on wall-clock
// fields so the result is always later than b, including across a DST
// transition where the repeated hour folds into its first occurrence.
func (r Resolution) Next(b time.Time) time.Time {
	y, m, d := b.Date()
	loc := b.Location()
	var next time.Time
	switch r {
	case FifteenMinutes:
		next = time.Date(y, m, d, b.Hour(), b.Minute()-b.Minute()%15+15, 0, 0, loc)
	case Hourly:
		next = time.Date(y, m, d, b.Hour()+1, 0, 0, 0, loc)
	default:
		next = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	if !next.After(b) {
		// The step landed in a spring-forward gap, which time.Date resolves
		// backwards, or b is the second pass of a repeated hour.
		next = b.Add(r.Step())
	}
	return next
}

// GroupBy selects the identity fields an aggregation groups on.
type GroupBy uint8

const (
	ByX GroupBy = 1 << iota
	ByY
	BySite
	BySrc

	// ByLocation groups on coordinates only.
	ByLocation = ByX | ByY
	// BySiteKey is the full {x, y, site_name, src} key.
	BySiteKey = ByX | ByY | BySite | BySrc
)

// GroupKey identifies an aggregation group. Fields outside the GroupBy set
// are left zero.
type GroupKey struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	SiteName string  `json:"site_name"`
	Src      string  `json:"src"`
}

func (g GroupBy) key(o Observation) GroupKey {
	var k GroupKey
	if g&ByX != 0 {
		k.X = o.X
	}
	if g&ByY != 0 {
		k.Y = o.Y
	}
	if g&BySite != 0 {
		k.SiteName = o.SiteName
	}
	if g&BySrc != 0 {
		k.Src = o.Src
	}
	return k
}

func (k GroupKey) less(o GroupKey) bool {
	if k.X != o.X {
		return k.X < o.X
	}
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	if k.SiteName != o.SiteName {
		return k.SiteName < o.SiteName
	}
	return k.Src < o.Src
}

// AggregateRow is the summed precipitation of one group in one bucket.
// Count is the number of observations summed; backfilled rows have zero.
type AggregateRow struct {
	GroupKey
	Bucket   time.Time `json:"datetime"`
	PrecipMM float64   `json:"precip_mm"`
	Count    int       `json:"count"`
}

type groupBucket struct {
	key    GroupKey
	bucket time.Time
}

// Aggregate groups observations by group and sums precipitation within each
// bucket of res. Groups are formed before bucketing so sums never cross
// groups. Empty buckets produce no row and NaN depths propagate. Rows are
// ordered by group, then bucket.
func Aggregate(obs []Observation, group GroupBy, res Resolution) []AggregateRow {
	idx := make(map[groupBucket]int)
	rows := make([]AggregateRow, 0)
	for _, o := range obs {
		k := groupBucket{key: group.key(o), bucket: res.Bucket(o.Time)}
		i, ok := idx[k]
		if !ok {
			i = len(rows)
			idx[k] = i
			rows = append(rows, AggregateRow{GroupKey: k.key, Bucket: k.bucket})
		}
		rows[i].PrecipMM += o.PrecipMM
		rows[i].Count++
	}
	sortRows(rows)
	return rows
}

func sortRows(rows []AggregateRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].GroupKey != rows[j].GroupKey {
			return rows[i].GroupKey.less(rows[j].GroupKey)
		}
		return rows[i].Bucket.Before(rows[j].Bucket)
	})
}

// Backfill inserts zero rows for the empty buckets between each group's first
// and last bucket. rows must come from Aggregate at the same resolution.
func Backfill(rows []AggregateRow, res Resolution) []AggregateRow {
	out := make([]AggregateRow, 0, len(rows))
	for i, r := range rows {
		if i > 0 && rows[i-1].GroupKey == r.GroupKey {
			for b := res.Next(rows[i-1].Bucket); b.Before(r.Bucket); b = res.Next(b) {
				out = append(out, AggregateRow{GroupKey: r.GroupKey, Bucket: b})
			}
		}
		out = append(out, r)
	}
	return out
}

// TotalsBySite sums rows per site name. A site's total is NaN when any of its
// rows is NaN.
func TotalsBySite(rows []AggregateRow) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range rows {
		totals[r.SiteName] += r.PrecipMM
	}
	return totals
}

// CountsBySite returns the number of observations behind each site's rows.
func CountsBySite(rows []AggregateRow) map[string]int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.SiteName] += r.Count
	}
	return counts
}

// BucketTotalsBySite sums the rows of a single bucket per site name.
func BucketTotalsBySite(rows []AggregateRow, bucket time.Time) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range rows {
		if r.Bucket.Equal(bucket) {
			totals[r.SiteName] += r.PrecipMM
		}
	}
	return totals
}
