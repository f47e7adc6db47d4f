// Package file reads gauge tables from CSV exports and writes run outputs as
// delimited files.
package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source serves tables from <dir>/<table>.csv. Every value is a string;
// empty cells become nil so they read as missing.
// It implements pipeline.Extractor.
type Source struct {
	dir string
}

// NewSource creates a CSV directory source.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Fetch reads every row of the table's CSV file.
func (s *Source) Fetch(ctx context.Context, table string) ([]domain.Row, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("fetch %q: invalid table name", table)
	}
	f, err := os.Open(filepath.Join(s.dir, table+".csv"))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", table, err)
	}

	var rows []domain.Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		row := make(domain.Row, len(header))
		for i, col := range header {
			if rec[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CheckReadiness verifies the source directory exists.
func (s *Source) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source directory %s is not a directory", s.dir)
	}
	return nil
}
