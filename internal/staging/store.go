package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"pagecapture/internal/config"
	"pagecapture/internal/fileutil"
	"pagecapture/internal/logging"
	"pagecapture/internal/metrics"
	"pagecapture/internal/textutil"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// State is the lifecycle position of a staged file.
type State string

const (
	StateStaged   State = "staged"
	StateExported State = "exported"
	StatePurged   State = "purged"
)

// StagedFile describes one copy held in the staging area.
type StagedFile struct {
	ID           string
	OriginalName string
	Path         string
	Size         int64
	AddedAt      time.Time
	ExportedAt   *time.Time
	PurgedAt     *time.Time
	BatchID      string
	Note         string
}

// State reports where the file is in its lifecycle.
func (f StagedFile) State() State {
	switch {
	case f.PurgedAt != nil:
		return StatePurged
	case f.ExportedAt != nil:
		return StateExported
	default:
		return StateStaged
	}
}

// Stats describes current staging usage.
type Stats struct {
	TotalFiles    int    `json:"total_files"`
	ActiveFiles   int    `json:"active_files"`
	ReadyFiles    int    `json:"ready_files"`
	ExportedFiles int    `json:"exported_files"`
	PurgedFiles   int    `json:"purged_files"`
	UsedBytes     int64  `json:"used_bytes"`
	MaxBytes      int64  `json:"max_bytes"`
	FreeBytes     uint64 `json:"free_bytes,omitempty"`
	TotalFSBytes  uint64 `json:"total_fs_bytes,omitempty"`
}

// Options configures a Store.
type Options struct {
	Root      string
	MaxBytes  int64
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Store tracks staged files and the bytes they hold.
type Store struct {
	root      string
	maxBytes  int64
	retention time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	statfs    statfsFunc

	mu       sync.Mutex
	files    map[string]*StagedFile
	used     int64
	reserved int64
	pending  map[string]struct{}
}

// New creates the staging root when needed and returns an empty store.
func New(opts Options) (*Store, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("staging: root directory is required")
	}
	if opts.MaxBytes <= 0 {
		return nil, fmt.Errorf("staging: max bytes must be positive, got %d", opts.MaxBytes)
	}
	if opts.Retention < 0 {
		return nil, fmt.Errorf("staging: retention must not be negative, got %s", opts.Retention)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("staging: create root: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		root:      root,
		maxBytes:  opts.MaxBytes,
		retention: opts.Retention,
		logger:    logging.NewComponentLogger(opts.Logger, "staging"),
		metrics:   opts.Metrics,
		now:       now,
		statfs:    realStatfs,
		files:     make(map[string]*StagedFile),
		pending:   make(map[string]struct{}),
	}, nil
}

// NewFromConfig builds a store when staging is enabled; returns nil, nil when disabled.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Store, error) {
	if cfg == nil || !cfg.Staging.Enabled {
		return nil, nil
	}
	return New(Options{
		Root:      cfg.Paths.StagingDir,
		MaxBytes:  cfg.StagingMaxBytes(),
		Retention: cfg.StagingRetention(),
		Logger:    logger,
		Metrics:   m,
	})
}

// Root returns the staging directory.
func (s *Store) Root() string {
	return s.root
}

// StageFile copies sourcePath into the staging root and registers it.
// Nothing is registered when the copy would exceed capacity or fails.
func (s *Store) StageFile(ctx context.Context, sourcePath, batchID, note string) (StagedFile, error) {
	logger := logging.WithContext(ctx, s.logger)

	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StagedFile{}, fmt.Errorf("stage %s: %w", sourcePath, ErrSourceMissing)
		}
		return StagedFile{}, fmt.Errorf("stage %s: %w", sourcePath, err)
	}
	if !info.Mode().IsRegular() {
		return StagedFile{}, fmt.Errorf("stage %s: %w", sourcePath, ErrNotRegularFile)
	}
	size := info.Size()

	id := uuid.NewString()
	name := filepath.Base(sourcePath)
	dest := filepath.Join(s.root, stagedName(id, name))

	s.mu.Lock()
	if s.used+s.reserved+size > s.maxBytes {
		used := s.used
		s.mu.Unlock()
		s.metrics.Rejected()
		logger.Info("staging refused file over capacity",
			logging.String("source", sourcePath),
			logging.Int64("size_bytes", size),
			logging.Int64("used_bytes", used),
			logging.Int64("max_bytes", s.maxBytes),
			logging.String(logging.FieldEventType, "staging_capacity_exceeded"),
		)
		return StagedFile{}, fmt.Errorf("stage %s (%d bytes, %d of %d used): %w", name, size, used, s.maxBytes, ErrCapacityExceeded)
	}
	s.reserved += size
	s.pending[dest] = struct{}{}
	s.mu.Unlock()

	written, copyErr := fileutil.CopyFileVerified(sourcePath, dest)

	s.mu.Lock()
	s.reserved -= size
	delete(s.pending, dest)
	if copyErr != nil {
		s.mu.Unlock()
		return StagedFile{}, fmt.Errorf("stage %s: copy: %w", name, copyErr)
	}
	file := &StagedFile{
		ID:           id,
		OriginalName: name,
		Path:         dest,
		Size:         written,
		AddedAt:      s.now(),
		BatchID:      batchID,
		Note:         note,
	}
	s.files[id] = file
	s.used += written
	used := s.used
	snapshot := *file
	s.mu.Unlock()

	s.metrics.Staged(used)
	logger.Debug("staged file",
		logging.String(logging.FieldFileID, id),
		logging.String("path", dest),
		logging.Int64("size_bytes", written),
	)
	return snapshot, nil
}

// ListReady returns files that are neither exported nor purged, oldest first.
func (s *Store) ListReady() []StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := make([]StagedFile, 0, len(s.files))
	for _, f := range s.files {
		if f.ExportedAt == nil && f.PurgedAt == nil {
			ready = append(ready, *f)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].AddedAt.Equal(ready[j].AddedAt) {
			return ready[i].ID < ready[j].ID
		}
		return ready[i].AddedAt.Before(ready[j].AddedAt)
	})
	return ready
}

// Get returns a snapshot of the staged file with the given id.
func (s *Store) Get(id string) (StagedFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return StagedFile{}, false
	}
	return *f, true
}

// MarkExported records that a downstream consumer picked the file up.
// Marking an already exported file again leaves its export time unchanged.
func (s *Store) MarkExported(ctx context.Context, id string) error {
	s.mu.Lock()
	f, ok := s.files[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("mark exported %s: %w", id, ErrNotFound)
	}
	if f.PurgedAt != nil {
		s.mu.Unlock()
		return fmt.Errorf("mark exported %s: %w", id, ErrPurged)
	}
	if f.ExportedAt != nil {
		s.mu.Unlock()
		return nil
	}
	now := s.now()
	f.ExportedAt = &now
	s.mu.Unlock()

	logging.WithContext(ctx, s.logger).Debug("staged file exported",
		logging.String(logging.FieldFileID, id),
	)
	return nil
}

// PurgeOld purges every exported file whose retention has elapsed and returns
// their ids. Backing file deletion is best effort.
func (s *Store) PurgeOld(ctx context.Context) []string {
	logger := logging.WithContext(ctx, s.logger)
	now := s.now()

	s.mu.Lock()
	var victims []*StagedFile
	for _, f := range s.files {
		if f.PurgedAt != nil || f.ExportedAt == nil {
			continue
		}
		if now.Sub(*f.ExportedAt) > s.retention {
			victims = append(victims, f)
		}
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].ID < victims[j].ID })
	purged := make([]string, 0, len(victims))
	for _, f := range victims {
		s.purgeLocked(logger, f, now)
		purged = append(purged, f.ID)
	}
	used := s.used
	s.mu.Unlock()

	if len(purged) > 0 {
		s.metrics.Purged(len(purged), used)
		logger.Info("purged exported staging files",
			logging.Int("count", len(purged)),
			logging.Int64("used_bytes", used),
			logging.String(logging.FieldEventType, "staging_purge"),
		)
	}
	return purged
}

// Remove purges a file regardless of export state. Removing an already purged
// file is a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	logger := logging.WithContext(ctx, s.logger)
	s.mu.Lock()
	f, ok := s.files[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	if f.PurgedAt != nil {
		s.mu.Unlock()
		return nil
	}
	s.purgeLocked(logger, f, s.now())
	used := s.used
	s.mu.Unlock()

	s.metrics.Purged(1, used)
	return nil
}

// purgeLocked deletes the backing copy and releases its bytes. s.mu must be held.
func (s *Store) purgeLocked(logger *slog.Logger, f *StagedFile, now time.Time) {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to delete staged file",
			"staging_delete_failed",
			logging.String(logging.FieldFileID, f.ID),
			logging.String("path", f.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until the next sweep"),
		)
	}
	f.PurgedAt = &now
	s.used -= f.Size
}

// Stats summarizes the store. Filesystem figures are zero when statfs fails.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		TotalFiles: len(s.files),
		UsedBytes:  s.used,
		MaxBytes:   s.maxBytes,
	}
	for _, f := range s.files {
		switch f.State() {
		case StatePurged:
			st.PurgedFiles++
		case StateExported:
			st.ExportedFiles++
			st.ActiveFiles++
		default:
			st.ReadyFiles++
			st.ActiveFiles++
		}
	}
	s.mu.Unlock()

	if total, free, err := s.statfs(s.root); err == nil {
		st.TotalFSBytes = total
		st.FreeBytes = free
	} else {
		s.logger.Debug("staging statfs unavailable", logging.Error(err))
	}
	return st
}

func stagedName(id, original string) string {
	name := textutil.SanitizeFileName(original)
	if name == "" {
		name = "file"
	}
	return id + "_" + name
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
