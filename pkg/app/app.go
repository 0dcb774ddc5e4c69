// Package app wires configuration into the runnable pieces shared by the
// server and the CLI.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"assetmigration/pkg/checkpoint"
	"assetmigration/pkg/config"
	"assetmigration/pkg/job"
	"assetmigration/pkg/locator"
	"assetmigration/pkg/logger"
	"assetmigration/pkg/metrics"
	"assetmigration/pkg/provider"
	"assetmigration/pkg/provider/mediacdn"
	"assetmigration/pkg/provider/s3compat"
	"assetmigration/pkg/scheduler"
	"assetmigration/pkg/state"
	"assetmigration/pkg/transfer"
)

// App holds the wired components for one process.
type App struct {
	Cfg        *config.Config
	Log        *zap.Logger
	Provider   provider.Client
	Store      checkpoint.Store
	States     state.Manager
	Locator    locator.Locator
	Metrics    *metrics.Collector
	Controller *job.Controller
	Scheduler  *scheduler.Scheduler
}

// Option tweaks wiring before components are built.
type Option func(*options)

type options struct {
	locator locator.Locator
}

// WithLocator replaces the database locator, for file-driven CLI runs.
func WithLocator(loc locator.Locator) Option {
	return func(o *options) { o.locator = loc }
}

// New builds every component the configuration asks for. Call Close when
// done.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &App{Cfg: cfg, Log: log, Metrics: metrics.New()}

	if err := a.buildProvider(); err != nil {
		return nil, err
	}
	if err := a.buildStore(); err != nil {
		return nil, err
	}
	if err := a.buildStates(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildLocator(o.locator); err != nil {
		a.Close()
		return nil, err
	}

	a.Controller = job.New(a.Provider, a.Store, a.States, a.Metrics, log, job.Options{
		FlushEvery:    cfg.Migration.FlushEvery,
		ErrorRingSize: cfg.Migration.ErrorRingSize,
		Timeouts: transfer.Timeouts{
			Download: time.Duration(cfg.Migration.DownloadTimeoutSeconds) * time.Second,
			Upload:   time.Duration(cfg.Migration.UploadTimeoutSeconds) * time.Second,
		},
	})

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.AutoContinueCron, a.Controller, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Scheduler = sched
	}

	log.Info("application wired", zap.String("destination", cfg.Redacted()))
	return a, nil
}

func (a *App) buildProvider() error {
	switch a.Cfg.Provider.Kind {
	case "mediacdn":
		a.Provider = mediacdn.New(a.Cfg.Provider.BaseURL, nil)
	case "s3compat":
		a.Provider = s3compat.New(s3compat.Options{
			EndpointURL:    a.Cfg.Provider.EndpointURL,
			Region:         a.Cfg.Provider.Region,
			ForcePathStyle: a.Cfg.Provider.ForcePathStyle,
		})
	default:
		return fmt.Errorf("unknown provider kind %q", a.Cfg.Provider.Kind)
	}
	return nil
}

func (a *App) buildStore() error {
	switch a.Cfg.Checkpoint.Backend {
	case "sqlite":
		store, err := checkpoint.NewSQLiteStore(a.Cfg.Checkpoint.Path)
		if err != nil {
			return fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		a.Store = store
	default:
		a.Store = checkpoint.NewFileStore(a.Cfg.Checkpoint.Path)
	}
	return nil
}

func (a *App) buildStates() error {
	switch a.Cfg.State.Backend {
	case "postgres":
		states, err := state.NewDBManager("postgres", a.Cfg.State.DSN)
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
		a.States = states
	case "file":
		a.States = state.NewFileManager(a.Cfg.State.Path)
	case "none":
		a.States = nil
	}
	return nil
}

func (a *App) buildLocator(override locator.Locator) error {
	if override != nil {
		a.Locator = override
		return nil
	}
	if a.Cfg.Locator.DSN == "" {
		return fmt.Errorf("%s is required when no URL list is supplied", config.EnvLocatorDSN)
	}
	loc, err := locator.NewDBLocator(a.Cfg.Locator.DSN, a.Cfg.Locator.Sources, a.Cfg.RetiredAccounts, a.Log)
	if err != nil {
		return err
	}
	a.Locator = loc
	return nil
}

// Close releases every component that holds a resource.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Locator != nil {
		a.Locator.Close()
	}
	if a.States != nil {
		a.States.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	a.Log.Sync()
}
