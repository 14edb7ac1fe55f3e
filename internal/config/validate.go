package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"pagecapture/internal/digest"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateStaging(); err != nil {
		return err
	}
	if _, err := digest.ParseAlgorithm(c.Validation.Digest); err != nil {
		return fmt.Errorf("validation.digest: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		return errors.New("paths.watch_dir must be set")
	}
	if c.Staging.Enabled && samePath(c.Paths.WatchDir, c.Paths.StagingDir) {
		return errors.New("paths.staging_dir must differ from paths.watch_dir")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.PollIntervalSeconds <= 0 {
		return errors.New("watcher.poll_interval_seconds must be positive")
	}
	for _, pattern := range c.Watcher.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("watcher.ignore_patterns: invalid glob %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateStaging() error {
	if !c.Staging.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set when staging.enabled is true")
	}
	if c.Staging.MaxMiB <= 0 {
		return errors.New("staging.max_mib must be positive when staging.enabled is true")
	}
	if c.Staging.PurgeIntervalSeconds <= 0 {
		return errors.New("staging.purge_interval_seconds must be positive")
	}
	return nil
}

func samePath(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}
