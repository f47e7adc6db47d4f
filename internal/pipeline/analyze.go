package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// dayResult holds everything computed for one storm date.
type dayResult struct {
	date      domain.Date
	totals    map[string]float64
	max15     map[string]float64
	maxHourly map[string]float64
	window    domain.StormWindow
	// degenerate is the reason no storm window exists, empty otherwise.
	degenerate string
	subDaily   map[domain.Resolution]*domain.Table
}

// analyze computes every per-date aggregate and assembles the summary
// tables. Dates are independent and run on up to p.workers goroutines; a
// degenerate storm date is recorded and skipped without affecting the others.
func (p *Pipeline) analyze(ctx context.Context, reg *domain.Registry, obs []domain.Observation, report *Report, logger *slog.Logger) (*domain.RunResult, error) {
	dates := p.study.StormDates()
	if p.study.ZeroDayMask {
		obs = domain.MaskZeroDays(obs, dates)
	}

	byDate := make(map[domain.Date][]domain.Observation, len(dates))
	for _, o := range obs {
		d := domain.DateOf(o.Time)
		byDate[d] = append(byDate[d], o)
	}

	days := make([]dayResult, len(dates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, d := range dates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.analyzeDay(reg, d, byDate[d])
			if err != nil {
				return fmt.Errorf("analyze %s: %w", d, err)
			}
			days[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range days {
		p.metrics.DatesProcessed.Inc()
		if r.degenerate != "" {
			p.metrics.DegenerateDates.Inc()
			report.DegenerateDates = append(report.DegenerateDates, r.date.String())
			logger.Warn("storm window skipped", "date", r.date.String(), "reason", r.degenerate)
		}
	}
	report.Dates = len(days)

	return p.assemble(reg, days)
}

func (p *Pipeline) analyzeDay(reg *domain.Registry, d domain.Date, obs []domain.Observation) (dayResult, error) {
	r := dayResult{date: d}

	r.totals = domain.TotalsBySite(domain.Aggregate(obs, domain.BySiteKey, domain.Daily))

	fifteen := domain.Aggregate(obs, domain.BySiteKey, domain.FifteenMinutes)
	r.max15, r.maxHourly = domain.MaxIntensities(fifteen)

	window, err := domain.DetectStormWindow(d, fifteen, p.study.TrimPercent)
	if err != nil {
		var de *domain.DegenerateStormError
		if !errors.As(err, &de) {
			return dayResult{}, err
		}
		r.degenerate = de.Reason
		return r, nil
	}
	r.window = window

	r.subDaily = make(map[domain.Resolution]*domain.Table)
	for _, res := range p.study.SubDailyResolutions() {
		rows := fifteen
		if res != domain.FifteenMinutes {
			rows = domain.Aggregate(obs, domain.BySiteKey, res)
		}
		t := domain.NewTable(reg)
		for _, col := range domain.SubDailyColumns(window, rows, res) {
			if t, err = t.Join(col); err != nil {
				return dayResult{}, err
			}
		}
		r.subDaily[res] = t
	}
	return r, nil
}

// assemble joins the per-date results, in study date order, into the run's
// output tables and storm summaries. The deny-list applies to every table and
// so to the storm statistics derived from them.
func (p *Pipeline) assemble(reg *domain.Registry, days []dayResult) (*domain.RunResult, error) {
	builder := domain.NewSummaryBuilder(reg, p.study.Deny)

	var totals, max15, maxHourly []domain.Column
	for _, r := range days {
		label := r.date.String()
		totals = append(totals, domain.Column{Label: label, Values: r.totals})
		max15 = append(max15, domain.Column{Label: label, Values: r.max15})
		maxHourly = append(maxHourly, domain.Column{Label: label, Values: r.maxHourly})
	}

	res := &domain.RunResult{}
	daily, err := builder.Build(totals)
	if err != nil {
		return nil, fmt.Errorf("build %s table: %w", domain.TableDaily, err)
	}
	res.Tables = append(res.Tables, domain.NamedTable{Name: domain.TableDaily, Table: daily})

	for _, step := range p.study.SubDailyResolutions() {
		var parts []*domain.Table
		for _, r := range days {
			if t, ok := r.subDaily[step]; ok {
				parts = append(parts, t)
			}
		}
		name := domain.SubDailyTableName(step)
		t, err := builder.Combine(parts)
		if err != nil {
			return nil, fmt.Errorf("build %s table: %w", name, err)
		}
		res.Tables = append(res.Tables, domain.NamedTable{Name: name, Table: t})
	}

	maxHourTable, err := builder.Build(maxHourly)
	if err != nil {
		return nil, fmt.Errorf("build %s table: %w", domain.TableMaxHourly, err)
	}
	max15Table, err := builder.Build(max15)
	if err != nil {
		return nil, fmt.Errorf("build %s table: %w", domain.TableMaxFifteen, err)
	}
	res.Tables = append(res.Tables,
		domain.NamedTable{Name: domain.TableMaxHourly, Table: maxHourTable},
		domain.NamedTable{Name: domain.TableMaxFifteen, Table: max15Table},
	)

	for _, r := range days {
		if r.degenerate != "" {
			res.Storms = append(res.Storms, domain.DegenerateSummary(r.date, r.degenerate))
			continue
		}
		label := r.date.String()
		res.Storms = append(res.Storms, domain.SummarizeStorm(r.window,
			daily.ColumnValues(label),
			max15Table.ColumnValues(label),
			maxHourTable.ColumnValues(label),
		))
	}
	return res, nil
}
