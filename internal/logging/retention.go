package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneLogs removes *.log files directly under dir that were last modified
// more than retentionDays ago, sparing any path in keep. It returns the number
// removed. retentionDays <= 0 disables pruning.
func PruneLogs(logger *slog.Logger, dir string, retentionDays int, keep ...string) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	spared := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			spared[abs] = struct{}{}
		}
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, ok := spared[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "failed to prune old log", "log_prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		logger.Info("pruned old log", String("path", path), String(FieldEventType, "log_pruned"))
	}
	return removed
}
