package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

var auditHeader = []string{
	domain.ColumnTime, domain.ColumnX, domain.ColumnY,
	domain.ColumnSiteName, domain.ColumnSrc, domain.ColumnPrecip,
}

// AuditLog appends quarantined readings to a CSV file. The file is only ever
// appended to; the header is written when the file is created.
// It implements pipeline.AuditSink.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog creates an audit log at path. The file is created on first append.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the log file location.
func (a *AuditLog) Path() string { return a.path }

// Append writes one row per record.
func (a *AuditLog) Append(_ context.Context, recs []domain.QuarantineRecord) error {
	if len(recs) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(auditHeader); err != nil {
			return fmt.Errorf("write audit header: %w", err)
		}
	}
	for _, r := range recs {
		if err := w.Write(auditRecord(r)); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return f.Close()
}

func auditRecord(r domain.QuarantineRecord) []string {
	return []string{
		r.Time.Format(domain.LabelLayout),
		formatFloat(r.X),
		formatFloat(r.Y),
		r.SiteName,
		r.Src,
		formatFloat(r.PrecipMM),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
