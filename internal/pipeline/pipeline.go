package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/rain-gauge-etl/internal/config"
	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
	"github.com/couchcryptid/rain-gauge-etl/internal/observability"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Extractor reads whole tables from the study data source.
type Extractor interface {
	Fetch(ctx context.Context, table string) ([]domain.Row, error)
}

// AuditSink records quarantined readings. Records are appended, never replaced.
type AuditSink interface {
	Append(ctx context.Context, recs []domain.QuarantineRecord) error
}

// Loader persists the result of a run.
type Loader interface {
	Name() string
	Load(ctx context.Context, res *domain.RunResult) error
}

// Report summarizes one run for logs and the status endpoint.
type Report struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Sources         int       `json:"sources"`
	Observations    int       `json:"observations"`
	Quarantined     int       `json:"quarantined"`
	Dates           int       `json:"dates"`
	DegenerateDates []string  `json:"degenerate_dates"`
	Tables          []string  `json:"tables"`
	Error           string    `json:"error,omitempty"`
}

// Pipeline runs the extract, analyze, load sequence for one study.
type Pipeline struct {
	extractor Extractor
	study     *config.Study
	audit     AuditSink
	loaders   []Loader
	logger    *slog.Logger
	metrics   *observability.Metrics
	workers   int

	ready   atomic.Bool
	running atomic.Bool

	mu   sync.RWMutex
	last *Report
}

// New creates a Pipeline. workers bounds how many storm dates are analyzed
// concurrently; values below one mean one.
func New(e Extractor, study *config.Study, audit AuditSink, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		extractor: e,
		study:     study,
		audit:     audit,
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LatestReport returns the report of the most recent run, successful or not.
func (p *Pipeline) LatestReport() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Run executes one complete batch: every source is read once, every storm
// date is analyzed, and the result is handed to each loader.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	start := time.Now()
	report := &Report{RunID: uuid.NewString(), StartedAt: domain.Now()}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("run started", "sources", len(p.study.Sources), "dates", len(p.study.Dates), "workers", p.workers)

	err := p.run(ctx, report, logger)

	report.FinishedAt = domain.Now()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		report.Error = err.Error()
		p.metrics.Runs.WithLabelValues("error").Inc()
		logger.Error("run failed", "error", err)
	} else {
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.metrics.LastSuccessTime.Set(float64(report.FinishedAt.Unix()))
		p.ready.Store(true)
		logger.Info("run complete",
			"observations", report.Observations,
			"quarantined", report.Quarantined,
			"dates", report.Dates,
			"degenerate", len(report.DegenerateDates),
			"duration", time.Since(start),
		)
	}

	p.mu.Lock()
	saved := *report
	p.last = &saved
	p.mu.Unlock()

	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *Report, logger *slog.Logger) error {
	reg, obs, err := p.extract(ctx, report, logger)
	if err != nil {
		return err
	}

	res, err := p.analyze(ctx, reg, obs, report, logger)
	if err != nil {
		return err
	}
	res.RunID = report.RunID
	res.GeneratedAt = report.StartedAt
	for _, nt := range res.Tables {
		report.Tables = append(report.Tables, nt.Name)
	}
	report.Tables = append(report.Tables, domain.TableStorms)

	return p.load(ctx, res, logger)
}

func (p *Pipeline) load(ctx context.Context, res *domain.RunResult, logger *slog.Logger) error {
	var errs []error
	for _, l := range p.loaders {
		if err := l.Load(ctx, res); err != nil {
			logger.Error("load failed", "sink", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("load %s: %w", l.Name(), err))
			continue
		}
		p.metrics.LoadsCompleted.WithLabelValues(l.Name()).Inc()
	}
	return errors.Join(errs...)
}
