package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/rain-gauge-etl/internal/domain"
)

// extract loads the site registry and every source, returning canonical
// incremental observations restricted to the study dates. Parse and schema
// failures abort the run with the offending table named.
func (p *Pipeline) extract(ctx context.Context, report *Report, logger *slog.Logger) (*domain.Registry, []domain.Observation, error) {
	rows, err := p.extractor.Fetch(ctx, p.study.RegistryTable)
	if err != nil {
		return nil, nil, fmt.Errorf("extract registry: %w", err)
	}
	reg, err := domain.RegistryFromRows(p.study.RegistryTable, rows)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("registry loaded", "table", p.study.RegistryTable, "sites", reg.Len())

	dates := p.study.StormDates()
	var all []domain.Observation
	for _, spec := range p.study.Sources {
		rows, err := p.extractor.Fetch(ctx, spec.Table)
		if err != nil {
			return nil, nil, fmt.Errorf("extract %s: %w", spec.Src, err)
		}
		obs, err := domain.Normalize(spec, rows, p.study.Location())
		if err != nil {
			return nil, nil, fmt.Errorf("normalize %s: %w", spec.Src, err)
		}
		obs = domain.ForDates(obs, dates)

		if spec.Cumulative {
			var quarantine []domain.QuarantineRecord
			obs, quarantine = domain.ConvertCumulative(obs, p.study.Incremental())
			if err := p.recordQuarantine(ctx, spec.Src, quarantine, logger); err != nil {
				return nil, nil, err
			}
			report.Quarantined += len(quarantine)
		}

		p.metrics.ObservationsNormalized.WithLabelValues(spec.Src).Add(float64(len(obs)))
		logger.Info("source extracted", "src", spec.Src, "table", spec.Table, "rows", len(rows), "observations", len(obs))
		report.Sources++
		report.Observations += len(obs)
		all = append(all, obs...)
	}
	return reg, all, nil
}

func (p *Pipeline) recordQuarantine(ctx context.Context, src string, recs []domain.QuarantineRecord, logger *slog.Logger) error {
	if len(recs) == 0 {
		return nil
	}
	for _, r := range recs {
		logger.Debug("reading quarantined",
			"src", src,
			"site_name", r.SiteName,
			"datetime", r.Time,
			"precip_mm", r.PrecipMM,
			"step", r.Step,
		)
	}
	if err := p.audit.Append(ctx, recs); err != nil {
		return fmt.Errorf("audit %s quarantine: %w", src, err)
	}
	p.metrics.ObservationsQuarantined.WithLabelValues(src).Add(float64(len(recs)))
	logger.Info("cumulative resets quarantined", "src", src, "quarantined", len(recs))
	return nil
}
