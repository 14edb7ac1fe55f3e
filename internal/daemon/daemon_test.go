package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pagecapture/internal/daemon"
	"pagecapture/internal/ingestion"
	"pagecapture/internal/logging"
	"pagecapture/internal/staging"
	"pagecapture/internal/testsupport"
)

func newDaemon(t *testing.T, opts ...testsupport.ConfigOption) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	pipeline, err := daemon.NewPipeline(cfg, logging.NewNop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	d, err := daemon.New(cfg, pipeline, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Staging == nil {
		t.Fatal("expected staging stats when staging is enabled")
	}
	if filepath.Base(status.LockFilePath) != daemon.LockFileName {
		t.Fatalf("lock path = %s", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	// Stopping twice is harmless.
	d.Stop()
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	build := func() *daemon.Daemon {
		p, err := daemon.NewPipeline(cfg, logging.NewNop(), nil)
		if err != nil {
			t.Fatal(err)
		}
		d, err := daemon.New(cfg, p, logging.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	first, second := build(), build()
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if _, err := second.ScanOnce(ctx, ""); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected one-shot scan to respect the lock, got %v", err)
	}
}

func TestDaemonScanAndExport(t *testing.T) {
	d := newDaemon(t)
	p := d.Pipeline()
	watchDir := p.Watcher.Dir()
	testsupport.WriteBytes(t, filepath.Join(watchDir, "ledger_p2.tif"), []byte("ledger page"))

	ctx := context.Background()
	ingested, err := d.ScanOnce(ctx, "nightly")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ingested) != 1 {
		t.Fatalf("ingested = %v", ingested)
	}
	v, ok := p.Ingestion.GetLatestVersion(ingestion.PageKey{PaperID: "ledger", PageNumber: 2})
	if !ok {
		t.Fatal("page not captured")
	}
	if v.OperatorID() != "tester" {
		t.Fatalf("operator = %q", v.OperatorID())
	}

	ready := p.Staging.ListReady()
	if len(ready) != 1 || ready[0].Path != v.StorageRef() {
		t.Fatalf("staged files = %+v", ready)
	}
	if err := d.Export(ctx, ready[0].ID); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := d.Export(ctx, "missing"); !errors.Is(err, staging.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := d.Status().Ingestion.TotalVersions; got != 1 {
		t.Fatalf("versions = %d", got)
	}
}

func TestDaemonExportWithoutStaging(t *testing.T) {
	d := newDaemon(t, testsupport.WithStagingDisabled())
	if err := d.Export(context.Background(), "any"); !errors.Is(err, daemon.ErrStagingDisabled) {
		t.Fatalf("expected ErrStagingDisabled, got %v", err)
	}
	if d.Status().Staging != nil {
		t.Fatal("staging stats should be absent when disabled")
	}
}

func TestDaemonRunsScanLoop(t *testing.T) {
	d := newDaemon(t)
	watchDir := d.Pipeline().Watcher.Dir()
	testsupport.WriteBytes(t, filepath.Join(watchDir, "memo_p1.png"), []byte("memo"))

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := d.Pipeline().Ingestion.GetLatestVersion(ingestion.PageKey{PaperID: "memo", PageNumber: 1}); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon never ingested the file")
		}
		time.Sleep(10 * time.Millisecond)
	}
	d.Stop()
	if d.Status().Watcher.Scans == 0 {
		t.Fatal("watcher status should record scans")
	}
}

func TestNewPipelineRejectsBadDigest(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDigest("md5"))
	if _, err := daemon.NewPipeline(cfg, logging.NewNop(), nil); err == nil {
		t.Fatal("expected error for unknown digest")
	}
}

func TestDaemonStartFailsPreflight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	p, err := daemon.NewPipeline(cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := daemon.New(cfg, p, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(cfg.Paths.WatchDir); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected preflight failure for missing watch directory")
	}
	if d.Status().Running {
		t.Fatal("daemon should not report running after failed preflight")
	}

	// The lock was released, so a healthy retry succeeds.
	if err := os.MkdirAll(cfg.Paths.WatchDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	d.Stop()
}
