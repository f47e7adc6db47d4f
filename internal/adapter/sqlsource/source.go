// Package sqlsource reads gauge tables from the study database and persists
// run results back to it. SQLite and PostgreSQL are supported.
package sqlsource

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects to the study database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one writer at a time; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

// Source fetches whole tables as rows keyed by column name.
// It implements pipeline.Extractor.
type Source struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSource wraps an open database.
func NewSource(db *sqlx.DB, logger *slog.Logger) *Source {
	return &Source{db: db, logger: logger}
}

// Fetch returns every row of table.
func (s *Source) Fetch(ctx context.Context, table string) ([]domain.Row, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("fetch %q: invalid table name", table)
	}

	start := time.Now()
	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer rows.Close()

	var out []domain.Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, domain.Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}

	s.logger.Debug("table fetched", "table", table, "rows", len(out), "duration", time.Since(start))
	return out, nil
}

// CheckReadiness pings the database.
func (s *Source) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}
