package staging

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"pagecapture/internal/logging"
)

// SweepResult contains the outcome of an untracked file sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// SweepUntracked removes regular files in the staging root that no live
// StagedFile references and whose modification time is older than maxAge.
// A non-positive maxAge sweeps nothing.
func (s *Store) SweepUntracked(ctx context.Context, maxAge time.Duration) SweepResult {
	result := SweepResult{}
	if maxAge <= 0 {
		return result
	}
	logger := logging.WithContext(ctx, s.logger)

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: s.root, Error: err})
		}
		return result
	}

	s.mu.Lock()
	tracked := make(map[string]struct{}, len(s.files)+len(s.pending))
	for _, f := range s.files {
		if f.PurgedAt == nil {
			tracked[f.Path] = struct{}{}
		}
	}
	for path := range s.pending {
		tracked[path] = struct{}{}
	}
	s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if _, ok := tracked[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove untracked staging file",
				"staging_sweep_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed untracked staging file",
			logging.String("path", path),
			logging.Duration("age", s.now().Sub(info.ModTime())),
			logging.String(logging.FieldEventType, "staging_sweep"),
		)
	}

	return result
}
