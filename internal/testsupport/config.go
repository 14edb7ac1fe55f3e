package testsupport

import (
	"path/filepath"
	"testing"

	"pagecapture/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options. Directories are
// not created; call cfg.EnsureDirectories when a test needs them on disk.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WatchDir = filepath.Join(base, "inbox")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Watcher.PollIntervalSeconds = 1
	cfgVal.Watcher.OperatorID = "tester"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStagingDisabled turns off the staging area.
func WithStagingDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Staging.Enabled = false
	}
}

// WithStagingMaxMiB overrides the staging capacity.
func WithStagingMaxMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Staging.MaxMiB = mib
	}
}

// WithOperator overrides the configured operator id.
func WithOperator(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watcher.OperatorID = id
	}
}

// WithDigest overrides the validation digest algorithm.
func WithDigest(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Validation.Digest = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
