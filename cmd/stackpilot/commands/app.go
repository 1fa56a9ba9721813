package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stackpilot/stackpilot/pkg/config"
	"github.com/stackpilot/stackpilot/pkg/engine"
	"github.com/stackpilot/stackpilot/pkg/publish"
	"github.com/stackpilot/stackpilot/pkg/runner"
	"github.com/stackpilot/stackpilot/pkg/stores"
	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// app wires the engine and its collaborators from configuration. One app
// is built per command invocation.
type app struct {
	cfg     *config.Config
	store   *stores.SQLiteStore
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	engine  *engine.Engine
}

// newApp builds the engine from the configured file (or defaults).
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// The configured logger replaces the bootstrap global before any
	// component derives its child logger from it.
	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, err
	}
	log.Logger = logger.Zerolog()

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		go func() {
			if err := metrics.Serve(); err != nil {
				log.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	tracer, err := telemetry.NewTracer(
		cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.ServiceVersion,
		cfg.Telemetry.Environment,
	)
	if err != nil {
		return nil, err
	}

	var store *stores.SQLiteStore
	if cfg.Database.Enabled {
		store, err = stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
	}

	r := runner.NewExecRunner()
	publisher := publish.NewS3Publisher(cfg.AWS.Bin, r)
	invalidator := publish.NewCloudFrontInvalidator(cfg.AWS.Bin, r, metrics)

	engineCfg := engine.Config{
		TerraformBin: cfg.Terraform.Bin,
		VarFile:      cfg.Terraform.VarFile,
		ApplyTimeout: cfg.Terraform.ApplyTimeout,
	}

	var engineStore engine.Store
	if store != nil {
		engineStore = store
	}

	return &app{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		tracer:  tracer,
		engine:  engine.NewEngine(engineCfg, r, publisher, invalidator, engineStore, metrics, tracer),
	}, nil
}

// Close releases the app's resources, flushing pending telemetry.
func (a *app) Close(ctx context.Context) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to shut down tracer")
	}
}
