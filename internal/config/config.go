package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WatchDir   string `toml:"watch_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Watcher contains configuration for the hot-folder scan loop.
type Watcher struct {
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	Extensions          []string `toml:"extensions"`
	// IgnorePatterns are doublestar globs matched against basenames; matching
	// files are never ingested (scanner temp files, dotfiles).
	IgnorePatterns []string `toml:"ignore_patterns"`
	OperatorID     string   `toml:"operator_id"`
	// Notify enables fsnotify wake-ups so new files are picked up before the
	// next poll tick.
	Notify bool `toml:"notify"`
}

// Staging contains configuration for the capacity-bounded staging area.
type Staging struct {
	Enabled              bool `toml:"enabled"`
	MaxMiB               int  `toml:"max_mib"`
	RetentionHours       int  `toml:"retention_hours"`
	PurgeIntervalSeconds int  `toml:"purge_interval_seconds"`
	// SweepUntrackedHours removes files left in staging_dir by a previous
	// process once they are older than this. Zero disables the sweep.
	SweepUntrackedHours int `toml:"sweep_untracked_hours"`
}

// Validation contains configuration for content hashing.
type Validation struct {
	Digest string `toml:"digest"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pagecapture.
//
// Configuration sections by subsystem:
//   - Paths: watched folder, staging root, log directory
//   - Watcher: poll interval, accepted extensions, ignore globs, operator
//   - Staging: capacity, retention, purge cadence
//   - Validation: digest algorithm
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Watcher    Watcher    `toml:"watcher"`
	Staging    Staging    `toml:"staging"`
	Validation Validation `toml:"validation"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pagecapture.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WatchDir, c.Paths.LogDir}
	if c.Staging.Enabled {
		dirs = append(dirs, c.Paths.StagingDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the watcher poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalSeconds) * time.Second
}

// StagingMaxBytes returns the staging capacity in bytes.
func (c *Config) StagingMaxBytes() int64 {
	return int64(c.Staging.MaxMiB) * 1024 * 1024
}

// StagingRetention returns how long exported files are kept before purge.
func (c *Config) StagingRetention() time.Duration {
	return time.Duration(c.Staging.RetentionHours) * time.Hour
}

// PurgeInterval returns the cadence of the staging maintenance loop.
func (c *Config) PurgeInterval() time.Duration {
	return time.Duration(c.Staging.PurgeIntervalSeconds) * time.Second
}

// SweepUntrackedAge returns the minimum age of untracked staging files to sweep.
func (c *Config) SweepUntrackedAge() time.Duration {
	return time.Duration(c.Staging.SweepUntrackedHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
