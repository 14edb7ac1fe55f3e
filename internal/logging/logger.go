package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"pagecapture/internal/config"
)

// LogFileName is the daemon log file written under the configured log directory.
const LogFileName = "pagecapture.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // console, json, or auto
	// Console receives every line; nil means stdout.
	Console io.Writer
	// File is appended to alongside Console when set.
	File string
}

// New builds a logger writing to the console and, optionally, a log file.
func New(opts Options) (*slog.Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	format, err := resolveFormat(opts.Format, console)
	if err != nil {
		return nil, err
	}

	out := console
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		out = io.MultiWriter(console, file)
	}

	level := parseLevel(opts.Level)
	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, ReplaceAttr: shortKeys})), nil
	}
	return slog.New(newConsoleHandler(out, level)), nil
}

// NewFromConfig logs to stdout and <log_dir>/pagecapture.log.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Paths.LogDir != "" {
		opts.File = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	return New(opts)
}

// resolveFormat maps "auto" to console on a terminal and json otherwise.
func resolveFormat(format string, console io.Writer) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", "console":
		return "console", nil
	case "json":
		return "json", nil
	case "auto":
		if file, ok := console.(*os.File); ok {
			if fd := file.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
				return "console", nil
			}
		}
		return "json", nil
	default:
		return "", fmt.Errorf("log format: unsupported value %q", format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// shortKeys renames the JSON time key to ts in UTC and lowercases levels.
func shortKeys(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	}
	return attr
}
