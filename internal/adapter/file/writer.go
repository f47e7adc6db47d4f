package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// StormHeader is the column layout of the storm summary file.
var StormHeader = []string{
	"date", "start_time", "end_time", "duration_hours", "sites",
	"mean_total_mm", "std_total_mm", "avg_intensity_mm_per_hr",
	"mean_max_hourly_mm", "max_max_hourly_mm",
	"mean_max_15min_mm", "max_max_15min_mm",
	"status", "reason",
}

// Writer writes each run's tables to <dir>/<name>.csv, replacing the previous
// run's files atomically.
// It implements pipeline.Loader.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "file" }

// Load writes every table and the storm summary of res.
func (w *Writer) Load(_ context.Context, res *domain.RunResult) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, nt := range res.Tables {
		if err := w.replace(nt.Name, func(out io.Writer) error { return WriteTable(out, nt.Table) }); err != nil {
			return err
		}
	}
	if err := w.replace(domain.TableStorms, func(out io.Writer) error { return WriteStorms(out, res.Storms) }); err != nil {
		return err
	}
	w.logger.Info("output files written", "dir", w.dir, "tables", len(res.Tables)+1, "run_id", res.RunID)
	return nil
}

func (w *Writer) replace(name string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(w.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name+".csv")); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// WriteTable writes t as CSV: site_name, x, y, src, then one column per label.
// Missing cells are empty.
func WriteTable(out io.Writer, t *domain.Table) error {
	w := csv.NewWriter(out)
	header := append([]string{domain.ColumnSiteName, domain.ColumnX, domain.ColumnY, domain.ColumnSrc}, t.Labels()...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range t.Sites() {
		cells, _ := t.Row(s.Name)
		rec := make([]string, 0, len(header))
		rec = append(rec, s.Name, formatFloat(s.X), formatFloat(s.Y), s.Src)
		for _, c := range cells {
			rec = append(rec, c.String())
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteStorms writes one row per storm date.
func WriteStorms(out io.Writer, storms []domain.StormSummary) error {
	w := csv.NewWriter(out)
	if err := w.Write(StormHeader); err != nil {
		return err
	}
	for _, s := range storms {
		var start, end string
		if !s.Start.IsZero() {
			start = s.Start.Format(domain.LabelLayout)
			end = s.End.Format(domain.LabelLayout)
		}
		rec := []string{
			s.Date, start, end, s.DurationHours.String(), strconv.Itoa(s.Sites),
			s.MeanTotalMM.String(), s.StdTotalMM.String(), s.AvgIntensityMMH.String(),
			s.MeanMaxHourMM.String(), s.MaxMaxHourMM.String(),
			s.MeanMax15MM.String(), s.MaxMax15MM.String(),
			s.Status, s.Reason,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV reads a whole delimited output file, returning its header and records.
func ReadCSV(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("read %s: empty file", path)
	}
	return all[0], all[1:], nil
}
