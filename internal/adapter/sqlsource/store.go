package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// Table values are stored in long form and versioned by run id, so earlier
// runs stay queryable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS summary_values (
		run_id     TEXT NOT NULL,
		table_name TEXT NOT NULL,
		site_name  TEXT NOT NULL,
		label      TEXT NOT NULL,
		value      DOUBLE PRECISION,
		PRIMARY KEY (run_id, table_name, site_name, label)
	)`,
	`CREATE TABLE IF NOT EXISTS storm_windows (
		run_id                  TEXT NOT NULL,
		date                    TEXT NOT NULL,
		start_time              TEXT,
		end_time                TEXT,
		duration_hours          DOUBLE PRECISION,
		sites                   INTEGER NOT NULL,
		mean_total_mm           DOUBLE PRECISION,
		std_total_mm            DOUBLE PRECISION,
		avg_intensity_mm_per_hr DOUBLE PRECISION,
		mean_max_15min_mm       DOUBLE PRECISION,
		max_max_15min_mm        DOUBLE PRECISION,
		mean_max_hourly_mm      DOUBLE PRECISION,
		max_max_hourly_mm       DOUBLE PRECISION,
		status                  TEXT NOT NULL,
		reason                  TEXT NOT NULL,
		generated_at            TEXT NOT NULL,
		PRIMARY KEY (run_id, date)
	)`,
}

// ValueRow is one stored summary table cell.
type ValueRow struct {
	RunID     string          `db:"run_id"`
	TableName string          `db:"table_name"`
	SiteName  string          `db:"site_name"`
	Label     string          `db:"label"`
	Value     sql.NullFloat64 `db:"value"`
}

type stormRow struct {
	RunID         string          `db:"run_id"`
	Date          string          `db:"date"`
	Start         sql.NullString  `db:"start_time"`
	End           sql.NullString  `db:"end_time"`
	Duration      sql.NullFloat64 `db:"duration_hours"`
	Sites         int             `db:"sites"`
	MeanTotal     sql.NullFloat64 `db:"mean_total_mm"`
	StdTotal      sql.NullFloat64 `db:"std_total_mm"`
	AvgIntensity  sql.NullFloat64 `db:"avg_intensity_mm_per_hr"`
	MeanMax15     sql.NullFloat64 `db:"mean_max_15min_mm"`
	MaxMax15      sql.NullFloat64 `db:"max_max_15min_mm"`
	MeanMaxHourly sql.NullFloat64 `db:"mean_max_hourly_mm"`
	MaxMaxHourly  sql.NullFloat64 `db:"max_max_hourly_mm"`
	Status        string          `db:"status"`
	Reason        string          `db:"reason"`
	GeneratedAt   string          `db:"generated_at"`
}

const insertStorm = `INSERT INTO storm_windows (
	run_id, date, start_time, end_time, duration_hours, sites,
	mean_total_mm, std_total_mm, avg_intensity_mm_per_hr,
	mean_max_15min_mm, max_max_15min_mm, mean_max_hourly_mm, max_max_hourly_mm,
	status, reason, generated_at
) VALUES (
	:run_id, :date, :start_time, :end_time, :duration_hours, :sites,
	:mean_total_mm, :std_total_mm, :avg_intensity_mm_per_hr,
	:mean_max_15min_mm, :max_max_15min_mm, :mean_max_hourly_mm, :max_max_hourly_mm,
	:status, :reason, :generated_at
)`

// Store persists run results to SQL tables.
// It implements pipeline.Loader.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore wraps an open database. Call Migrate before the first Load.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the result tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate result tables: %w", err)
		}
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sql" }

// Load writes every table cell and storm summary of res in one transaction.
func (s *Store) Load(ctx context.Context, res *domain.RunResult) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insertValue := tx.Rebind(`INSERT INTO summary_values (run_id, table_name, site_name, label, value) VALUES (?, ?, ?, ?, ?)`)
	stmt, err := tx.PreparexContext(ctx, insertValue)
	if err != nil {
		return fmt.Errorf("prepare value insert: %w", err)
	}
	defer stmt.Close()

	cells := 0
	for _, nt := range res.Tables {
		labels := nt.Table.Labels()
		for _, site := range nt.Table.Sites() {
			row, _ := nt.Table.Row(site.Name)
			for j, c := range row {
				if _, err := stmt.ExecContext(ctx, res.RunID, nt.Name, site.Name, labels[j], nullFloat(c)); err != nil {
					return fmt.Errorf("insert %s value: %w", nt.Name, err)
				}
				cells++
			}
		}
	}

	generated := res.GeneratedAt.UTC().Format(time.RFC3339)
	for _, st := range res.Storms {
		if _, err := tx.NamedExecContext(ctx, insertStorm, toStormRow(res.RunID, generated, st)); err != nil {
			return fmt.Errorf("insert storm %s: %w", st.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	s.logger.Info("results stored", "run_id", res.RunID, "cells", cells, "storms", len(res.Storms))
	return nil
}

// Values returns the stored cells of one table of one run.
func (s *Store) Values(ctx context.Context, runID, table string) ([]ValueRow, error) {
	var out []ValueRow
	query := s.db.Rebind(`SELECT run_id, table_name, site_name, label, value FROM summary_values
		WHERE run_id = ? AND table_name = ? ORDER BY site_name, label`)
	if err := s.db.SelectContext(ctx, &out, query, runID, table); err != nil {
		return nil, fmt.Errorf("select %s values: %w", table, err)
	}
	return out, nil
}

// StormStatuses returns date to status for one run.
func (s *Store) StormStatuses(ctx context.Context, runID string) (map[string]string, error) {
	var rows []struct {
		Date   string `db:"date"`
		Status string `db:"status"`
	}
	query := s.db.Rebind(`SELECT date, status FROM storm_windows WHERE run_id = ?`)
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("select storm windows: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Date] = r.Status
	}
	return out, nil
}

func toStormRow(runID, generated string, st domain.StormSummary) stormRow {
	r := stormRow{
		RunID:         runID,
		Date:          st.Date,
		Duration:      nullFloat(st.DurationHours),
		Sites:         st.Sites,
		MeanTotal:     nullFloat(st.MeanTotalMM),
		StdTotal:      nullFloat(st.StdTotalMM),
		AvgIntensity:  nullFloat(st.AvgIntensityMMH),
		MeanMax15:     nullFloat(st.MeanMax15MM),
		MaxMax15:      nullFloat(st.MaxMax15MM),
		MeanMaxHourly: nullFloat(st.MeanMaxHourMM),
		MaxMaxHourly:  nullFloat(st.MaxMaxHourMM),
		Status:        st.Status,
		Reason:        st.Reason,
		GeneratedAt:   generated,
	}
	if !st.Start.IsZero() {
		r.Start = sql.NullString{String: st.Start.Format(domain.LabelLayout), Valid: true}
		r.End = sql.NullString{String: st.End.Format(domain.LabelLayout), Valid: true}
	}
	return r
}

func nullFloat(c domain.Cell) sql.NullFloat64 {
	return sql.NullFloat64{Float64: c.Value, Valid: c.Valid}
}
