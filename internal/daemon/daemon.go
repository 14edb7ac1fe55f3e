package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"pagecapture/internal/config"
	"pagecapture/internal/hotfolder"
	"pagecapture/internal/ingestion"
	"pagecapture/internal/logging"
	"pagecapture/internal/preflight"
	"pagecapture/internal/staging"
)

// LockFileName is the advisory lock held while a process owns the watch directory.
const LockFileName = "pagecapture.lock"

// ErrAlreadyRunning indicates another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another pagecapture instance is already running")

// ErrStagingDisabled indicates an export was requested without a staging area.
var ErrStagingDisabled = errors.New("staging is disabled")

// Daemon runs the capture pipeline and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *Pipeline
	logPath  string

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Watcher      hotfolder.Status
	Ingestion    ingestion.Stats
	Staging      *staging.Stats
	LockFilePath string
}

// New constructs a daemon around an assembled pipeline.
func New(cfg *config.Config, pipeline *Pipeline, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || pipeline == nil || pipeline.Watcher == nil || pipeline.Ingestion == nil {
		return nil, errors.New("daemon requires config and an assembled pipeline")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		pipeline: pipeline,
		logPath:  filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the scan and maintenance loops.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.acquireLock(); err != nil {
		return err
	}
	results := preflight.RunAll(d.cfg)
	if err := preflight.Failed(results); err != nil {
		d.releaseLock()
		return err
	}

	if removed := logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, d.cfg.Logging.RetentionDays, d.logPath); removed > 0 {
		d.logger.Info("pruned old log files", logging.Int("count", removed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return d.pipeline.Watcher.Run(groupCtx, hotfolder.RunOptions{Interval: d.cfg.PollInterval()})
	})
	if d.pipeline.Staging != nil {
		group.Go(func() error {
			d.runMaintenance(groupCtx)
			return nil
		})
	}
	d.cancel = cancel
	d.group = group
	d.running.Store(true)

	d.logger.Info("pagecapture daemon started",
		logging.String("watch_dir", d.cfg.Paths.WatchDir),
		logging.Bool("staging", d.pipeline.Staging != nil),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts the loops, waits for them to finish, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	d.cancel()
	if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(d.logger, "daemon loop exited with error", "daemon_loop_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the watch directory and staging root"),
		)
	}
	d.cancel = nil
	d.group = nil
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("pagecapture daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// ScanOnce runs a single pass under the daemon lock; it refuses to run while
// another process owns the watch directory.
func (d *Daemon) ScanOnce(ctx context.Context, batchID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return d.pipeline.Watcher.ScanOnce(ctx, batchID)
	}
	if err := d.acquireLock(); err != nil {
		return nil, err
	}
	defer d.releaseLock()
	return d.pipeline.Watcher.ScanOnce(ctx, batchID)
}

// Export marks a staged file as picked up by a downstream consumer so the
// retention purge may reclaim it.
func (d *Daemon) Export(ctx context.Context, fileID string) error {
	if d.pipeline.Staging == nil {
		return ErrStagingDisabled
	}
	return d.pipeline.Staging.MarkExported(ctx, fileID)
}

// Pipeline returns the components the daemon drives.
func (d *Daemon) Pipeline() *Pipeline {
	return d.pipeline
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	st := Status{
		Running:      d.running.Load(),
		Watcher:      d.pipeline.Watcher.Status(),
		Ingestion:    d.pipeline.Ingestion.Stats(),
		LockFilePath: d.lockPath,
	}
	if d.pipeline.Staging != nil {
		stats := d.pipeline.Staging.Stats()
		st.Staging = &stats
	}
	return st
}

func (d *Daemon) acquireLock() error {
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// runMaintenance purges exported staging files on every purge interval and
// sweeps untracked leftovers when configured.
func (d *Daemon) runMaintenance(ctx context.Context) {
	store := d.pipeline.Staging
	sweepAge := d.cfg.SweepUntrackedAge()
	sweep := func() {
		if sweepAge <= 0 {
			return
		}
		res := store.SweepUntracked(ctx, sweepAge)
		if len(res.Removed) > 0 || len(res.Errors) > 0 {
			d.logger.Info("staging sweep finished",
				logging.Int("removed", len(res.Removed)),
				logging.Int("errors", len(res.Errors)),
				logging.String(logging.FieldEventType, "staging_sweep"),
			)
		}
	}

	sweep()
	interval := d.cfg.PurgeInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.PurgeOld(ctx)
			sweep()
		}
	}
}
