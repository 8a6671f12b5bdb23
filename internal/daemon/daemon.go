package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"audiovault/internal/api"
	"audiovault/internal/catalog"
	"audiovault/internal/config"
	"audiovault/internal/filestore"
	"audiovault/internal/identity"
	"audiovault/internal/ingest"
	"audiovault/internal/logging"
	"audiovault/internal/preflight"
	"audiovault/internal/stream"
)

// Daemon serves the upload API and enforces single-instance execution per
// storage root.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Store
	pipeline *ingest.Pipeline
	handler  *api.Server
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	APIAddress   string
	CatalogPath  string
	StorageRoot  string
	LockFilePath string
	StrictQuota  bool
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, catalog, and logger")
	}

	files, err := filestore.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		catalog:  store,
		pipeline: ingest.New(cfg, files, store, logger),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	handler, err := api.New(api.Options{
		Pipeline:       d.pipeline,
		Streamer:       stream.New(cfg, logger),
		Identity:       identity.New(cfg, logger),
		Owners:         store,
		Status:         d.apiStatus,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build api: %w", err)
	}
	d.handler = handler
	d.api = newAPIServer(cfg.Paths.APIBind, handler.Handler(), logger)
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks and opens the API
// listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another audiovault daemon instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	for _, result := range results {
		attrs := logging.Args(
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
		switch {
		case result.Passed:
			d.logger.Debug("preflight check passed", attrs...)
		case result.Fatal:
			d.logger.Error("preflight check failed", attrs...)
		default:
			d.logger.Warn("preflight check failed", attrs...)
		}
	}
	if failed, bad := preflight.FirstFatal(results); bad {
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight %s: %s", failed.Name, failed.Detail)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("audiovault daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
		logging.String("storage_root", d.cfg.Paths.StorageRoot),
	)
	return nil
}

// Stop closes the API listener and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("audiovault daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.catalog != nil {
		return d.catalog.Close()
	}
	return nil
}

// Pipeline exposes the upload pipeline the API serves.
func (d *Daemon) Pipeline() *ingest.Pipeline {
	return d.pipeline
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.addr(),
		CatalogPath:  d.catalog.Path(),
		StorageRoot:  d.cfg.Paths.StorageRoot,
		LockFilePath: d.lockPath,
		StrictQuota:  d.cfg.Quota.Strict,
	}
}

func (d *Daemon) apiStatus(ctx context.Context) api.StatusResponse {
	status := d.Status(ctx)
	return api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		CatalogPath:  status.CatalogPath,
		StorageRoot:  status.StorageRoot,
		LockFilePath: status.LockFilePath,
		StrictQuota:  status.StrictQuota,
	}
}
