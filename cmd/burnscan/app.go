package main

import (
	"context"
	"fmt"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/burn-area-service/internal/adapter/archive"
	"github.com/couchcryptid/burn-area-service/internal/adapter/gdal"
	kafkaadapter "github.com/couchcryptid/burn-area-service/internal/adapter/kafka"
	"github.com/couchcryptid/burn-area-service/internal/adapter/sqlite"
	"github.com/couchcryptid/burn-area-service/internal/adapter/stac"
	"github.com/couchcryptid/burn-area-service/internal/config"
	"github.com/couchcryptid/burn-area-service/internal/observability"
	"github.com/couchcryptid/burn-area-service/internal/pipeline"
)

// app holds what every subcommand shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &app{
		cfg:     cfg,
		logger:  sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: observability.NewMetrics(),
	}, nil
}

func (a *app) openLedger(ctx context.Context) (*sqlite.Store, error) {
	store, err := sqlite.Open(ctx, a.cfg.DBPath, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("ledger opened", "path", a.cfg.DBPath)
	return store, nil
}

// newPublisher returns nil when event publication is disabled.
func (a *app) newPublisher() *kafkaadapter.Publisher {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("completion events disabled")
		return nil
	}
	a.logger.Info("completion events enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic)
	return kafkaadapter.NewPublisher(a.cfg, a.logger, a.metrics)
}

func (a *app) newPipeline(ledger *sqlite.Store, publisher *kafkaadapter.Publisher) *pipeline.Pipeline {
	engine := gdal.NewEngine(a.logger)
	stages := pipeline.Stages{
		Extractor:  archive.NewExtractor(a.cfg.ExtractConcurrency, a.logger),
		Clipper:    engine,
		Rasters:    engine,
		Vectorizer: engine,
	}
	dirs := pipeline.Dirs{WorkRoot: a.cfg.WorkRoot, Results: a.cfg.ResultsDir}

	opts := []pipeline.Option{pipeline.WithRecorder(ledger)}
	if publisher != nil {
		opts = append(opts, pipeline.WithPublisher(publisher))
	}
	return pipeline.New(stages, dirs, a.logger, a.metrics, opts...)
}

func (a *app) newCatalog() *stac.Client {
	return stac.NewClient(a.cfg.CatalogURL, a.cfg.CatalogToken, a.cfg.CatalogTimeout, a.metrics, a.logger)
}

func (a *app) boundaryIndex() *gdal.BoundaryIndex {
	return gdal.NewBoundaryIndex(a.cfg.BoundaryIndex, gdal.DefaultCodeField, a.logger)
}
