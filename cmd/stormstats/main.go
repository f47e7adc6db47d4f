package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/rain-gauge-etl/internal/adapter/file"
	httpadapter "github.com/couchcryptid/rain-gauge-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/rain-gauge-etl/internal/adapter/kafka"
	"github.com/couchcryptid/rain-gauge-etl/internal/adapter/sqlsource"
	"github.com/couchcryptid/rain-gauge-etl/internal/config"
	"github.com/couchcryptid/rain-gauge-etl/internal/observability"
	"github.com/couchcryptid/rain-gauge-etl/internal/pipeline"
	"github.com/couchcryptid/rain-gauge-etl/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	study, err := config.LoadStudy(cfg.StudyFile)
	if err != nil {
		logger.Error("failed to load study", "path", cfg.StudyFile, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, study, logger, metrics); err != nil {
		logger.Error("stormstats failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, study *config.Study, logger *slog.Logger, metrics *observability.Metrics) error {
	var (
		extractor pipeline.Extractor
		loaders   = []pipeline.Loader{file.NewWriter(cfg.OutputDir, logger)}
		closers   []func() error
	)
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("close error", "error", err)
			}
		}
	}()

	switch cfg.SourceDriver {
	case config.DriverCSV:
		extractor = file.NewSource(cfg.SourceDSN)
	default:
		db, err := sqlsource.Open(ctx, cfg.SourceDriver, cfg.SourceDSN)
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)
		extractor = sqlsource.NewSource(db, logger)

		if cfg.PersistTables {
			store := sqlsource.NewStore(db, logger)
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			loaders = append(loaders, store)
		}
	}

	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer.Close)
		loaders = append(loaders, writer)
		logger.Info("storm publishing enabled", "topic", cfg.KafkaStormTopic, "brokers", cfg.KafkaBrokers)
	}

	audit := file.NewAuditLog(cfg.AuditLog)
	p := pipeline.New(extractor, study, audit, loaders, logger, metrics, cfg.Workers)

	if cfg.Schedule == "" {
		report, err := p.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("outputs ready", "dir", cfg.OutputDir, "audit_log", audit.Path(), "tables", report.Tables)
		return nil
	}

	return serve(ctx, cfg, p, logger)
}

// serve runs the pipeline on cfg.Schedule with the health server up until ctx
// is cancelled.
func serve(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	sched, err := scheduler.New(cfg.Schedule, p, logger)
	if err != nil {
		return err
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
