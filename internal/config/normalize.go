package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatcher()
	c.normalizeStaging()
	c.Validation.Digest = strings.ToLower(strings.TrimSpace(c.Validation.Digest))
	if c.Validation.Digest == "" {
		c.Validation.Digest = defaultDigest
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WatchDir) == "" {
		c.Paths.WatchDir = defaultWatchDir
	}
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(strings.TrimSpace(c.Paths.StagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWatcher() {
	if c.Watcher.PollIntervalSeconds <= 0 {
		c.Watcher.PollIntervalSeconds = defaultPollIntervalSeconds
	}

	exts := make([]string, 0, len(c.Watcher.Extensions))
	seen := make(map[string]struct{}, len(c.Watcher.Extensions))
	for _, ext := range c.Watcher.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = DefaultExtensions()
	}
	c.Watcher.Extensions = exts

	patterns := c.Watcher.IgnorePatterns[:0]
	for _, pattern := range c.Watcher.IgnorePatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Watcher.IgnorePatterns = patterns

	c.Watcher.OperatorID = strings.TrimSpace(c.Watcher.OperatorID)
	if c.Watcher.OperatorID == "" {
		if value, ok := os.LookupEnv(defaultOperatorEnv); ok {
			c.Watcher.OperatorID = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeStaging() {
	if c.Staging.MaxMiB <= 0 {
		c.Staging.MaxMiB = defaultStagingMaxMiB
	}
	if c.Staging.RetentionHours < 0 {
		c.Staging.RetentionHours = 0
	}
	if c.Staging.PurgeIntervalSeconds <= 0 {
		c.Staging.PurgeIntervalSeconds = defaultStagingPurgeIntervalSecs
	}
	if c.Staging.SweepUntrackedHours < 0 {
		c.Staging.SweepUntrackedHours = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json", "auto":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
