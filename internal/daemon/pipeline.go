package daemon

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"pagecapture/internal/config"
	"pagecapture/internal/digest"
	"pagecapture/internal/hotfolder"
	"pagecapture/internal/ingestion"
	"pagecapture/internal/metrics"
	"pagecapture/internal/staging"
	"pagecapture/internal/validator"
)

// Pipeline holds the capture components built from one configuration.
type Pipeline struct {
	Validator *validator.Validator
	Staging   *staging.Store
	Ingestion *ingestion.Manager
	Watcher   *hotfolder.Watcher
	Metrics   *metrics.Metrics
}

// NewPipeline builds every component from cfg. Metrics are registered on reg
// when it is non-nil. Staging is nil when disabled in cfg.
func NewPipeline(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline requires config")
	}
	algo, err := digest.ParseAlgorithm(cfg.Validation.Digest)
	if err != nil {
		return nil, fmt.Errorf("validation.digest: %w", err)
	}
	m := metrics.New(reg)

	store, err := staging.NewFromConfig(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	val := validator.New(algo, logger)
	manager := ingestion.NewManager(ingestion.Options{
		Algorithm: algo,
		Logger:    logger,
		Metrics:   m,
	})

	opts := hotfolder.Options{
		Dir:            cfg.Paths.WatchDir,
		Extensions:     cfg.Watcher.Extensions,
		IgnorePatterns: cfg.Watcher.IgnorePatterns,
		Interval:       cfg.PollInterval(),
		Notify:         cfg.Watcher.Notify,
		Validator:      val,
		Ingestion:      manager,
		Operator:       hotfolder.StaticOperator(cfg.Watcher.OperatorID),
		Logger:         logger,
		Metrics:        m,
	}
	if store != nil {
		opts.Staging = store
	}
	watcher, err := hotfolder.New(opts)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Validator: val,
		Staging:   store,
		Ingestion: manager,
		Watcher:   watcher,
		Metrics:   m,
	}, nil
}
