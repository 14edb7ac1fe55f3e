package hotfolder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"pagecapture/internal/config"
	"pagecapture/internal/ingestion"
	"pagecapture/internal/logging"
	"pagecapture/internal/metrics"
	"pagecapture/internal/staging"
	"pagecapture/internal/validator"
)

// UnknownOperator is recorded when no operator id is available.
const UnknownOperator = "UNKNOWN"

// Validator fingerprints file content.
type Validator interface {
	ValidateBytes(path string, data []byte) validator.Result
}

// Stager copies a file into the staging area.
type Stager interface {
	StageFile(ctx context.Context, sourcePath, batchID, note string) (staging.StagedFile, error)
}

// Capturer records page versions.
type Capturer interface {
	CapturePage(ctx context.Context, paperID string, pageNumber int, content []byte, storageRef string, opts ingestion.CaptureOptions) (ingestion.PageVersion, error)
}

// OperatorProvider returns the operator responsible for the current batch.
type OperatorProvider func() string

// StaticOperator returns a provider that always yields id.
func StaticOperator(id string) OperatorProvider {
	return func() string { return id }
}

// Options configures a Watcher.
type Options struct {
	Dir            string
	Extensions     []string
	IgnorePatterns []string
	Interval       time.Duration
	Notify         bool
	Validator      Validator
	Ingestion      Capturer
	// Staging is optional; without it the renamed file itself is the storage reference.
	Staging  Stager
	Operator OperatorProvider
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Status summarizes watcher activity.
type Status struct {
	Scans         int       `json:"scans"`
	FilesIngested int       `json:"files_ingested"`
	Processed     int       `json:"processed_names"`
	LastScanAt    time.Time `json:"last_scan_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Watcher scans a directory and ingests new files.
type Watcher struct {
	dir        string
	extensions map[string]struct{}
	ignore     []string
	interval   time.Duration
	notify     bool
	validator  Validator
	ingestion  Capturer
	staging    Stager
	operator   OperatorProvider
	logger     *slog.Logger
	metrics    *metrics.Metrics

	readFile func(string) ([]byte, error)

	scanMu  sync.Mutex
	pending map[string]pendingFile

	mu        sync.Mutex
	processed map[string]struct{}
	status    Status
}

// pendingFile is a validated file whose ingestion failed after the rename.
type pendingFile struct {
	originalName string
	result       validator.Result
}

// New validates opts and returns a watcher.
func New(opts Options) (*Watcher, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("hotfolder: watch directory is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("hotfolder: validator is required")
	}
	if opts.Ingestion == nil {
		return nil, errors.New("hotfolder: ingestion manager is required")
	}
	for _, pattern := range opts.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("hotfolder: invalid ignore pattern %q", pattern)
		}
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = config.DefaultExtensions()
	}
	extSet := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[ext] = struct{}{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		dir:        dir,
		extensions: extSet,
		ignore:     append([]string(nil), opts.IgnorePatterns...),
		interval:   interval,
		notify:     opts.Notify,
		validator:  opts.Validator,
		ingestion:  opts.Ingestion,
		staging:    opts.Staging,
		operator:   opts.Operator,
		logger:     logging.NewComponentLogger(opts.Logger, "hotfolder"),
		metrics:    opts.Metrics,
		readFile:   os.ReadFile,
		pending:    make(map[string]pendingFile),
		processed:  make(map[string]struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// IsProcessed reports whether a basename has already been ingested. Only the
// name a file carries after ingestion is recorded, so a new scan dropped
// under a previously used name is picked up as the next version.
func (w *Watcher) IsProcessed(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.processed[name]
	return ok
}

// Status returns a snapshot of watcher activity.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	st.Processed = len(w.processed)
	return st
}

// ScanOnce performs one pass over the watch directory and returns the final
// paths of the files ingested. An empty batchID gets a fresh UUID. Per-file
// failures are logged and left for the next pass; only a directory listing
// failure or cancellation is returned as an error.
func (w *Watcher) ScanOnce(ctx context.Context, batchID string) ([]string, error) {
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	start := time.Now()
	defer w.metrics.ObserveScan(start)

	if strings.TrimSpace(batchID) == "" {
		batchID = uuid.NewString()
	}
	ctx = logging.WithBatchID(ctx, batchID)
	logger := logging.WithContext(ctx, w.logger)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		err = fmt.Errorf("list watch directory: %w", err)
		w.finishScan(start, 0, err)
		return nil, err
	}

	operator := w.resolveOperator()
	var ingested []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			w.finishScan(start, len(ingested), err)
			return ingested, err
		}
		if !w.isCandidate(entry) {
			continue
		}
		if final, ok := w.ingestFile(ctx, logger, entry.Name(), batchID, operator); ok {
			ingested = append(ingested, final)
		}
	}

	w.prunePending(entries)
	w.finishScan(start, len(ingested), nil)
	if len(ingested) > 0 {
		logger.Info("scan ingested files",
			logging.Int("count", len(ingested)),
			logging.Duration("elapsed", time.Since(start)),
			logging.String(logging.FieldEventType, "scan_complete"),
		)
	}
	return ingested, nil
}

func (w *Watcher) ingestFile(ctx context.Context, logger *slog.Logger, name, batchID, operator string) (string, bool) {
	path := filepath.Join(w.dir, name)

	data, err := w.readFile(path)
	if err != nil {
		w.metrics.Skipped("read_failed")
		logging.WarnWithContext(logger, "failed to read scanned file",
			"scan_read_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions in watch_dir"),
			logging.String(logging.FieldImpact, "file retried on next scan"),
		)
		return "", false
	}

	// A file left over from a failed pass was already validated and renamed.
	final := path
	entry, retry := w.pending[name]
	if !retry {
		entry = pendingFile{originalName: name, result: w.validator.ValidateBytes(path, data)}
		final = w.tagWithDigest(logger, path, entry.result.Digest)
	}
	finalName := filepath.Base(final)
	result := entry.result

	stem, _ := splitName(entry.originalName)
	paperID, page := DeriveIdentity(stem)

	storageRef := final
	if w.staging != nil {
		staged, err := w.staging.StageFile(ctx, final, batchID, "")
		if err != nil {
			reason := "staging_failed"
			if errors.Is(err, staging.ErrCapacityExceeded) {
				reason = "staging_full"
			}
			w.metrics.Skipped(reason)
			logging.WarnWithContext(logger, "failed to stage scanned file",
				"scan_staging_failed",
				logging.String("path", final),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "export or purge staged files, or raise staging.max_mib"),
				logging.String(logging.FieldImpact, "file retried on next scan"),
			)
			w.deferFile(name, finalName, entry)
			return "", false
		}
		storageRef = staged.Path
	}

	version, err := w.ingestion.CapturePage(ctx, paperID, page, data, storageRef, ingestion.CaptureOptions{
		BatchID:          batchID,
		OperatorID:       operator,
		OriginalFilename: entry.originalName,
		PageCount:        result.PageCount,
		IsDuplicate:      result.IsDuplicate,
	})
	if err != nil {
		w.metrics.Skipped("capture_failed")
		logging.WarnWithContext(logger, "failed to record page version",
			"scan_capture_failed",
			logging.String("path", final),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file retried on next scan"),
		)
		w.deferFile(name, finalName, entry)
		return "", false
	}

	delete(w.pending, name)
	w.markProcessed(finalName)
	w.metrics.Ingested(result.IsDuplicate)
	logger.Debug("ingested scanned file",
		logging.String("path", final),
		logging.String(logging.FieldPaperID, paperID),
		logging.Int(logging.FieldPageNumber, page),
		logging.Int("version", version.Version()),
		logging.String("storage_ref", storageRef),
	)
	return final, true
}

// deferFile keeps the validation outcome of a file that could not be ingested
// under the name it now carries, so the retry records the first result.
func (w *Watcher) deferFile(name, finalName string, entry pendingFile) {
	delete(w.pending, name)
	w.pending[finalName] = entry
}

// prunePending drops retry state for files no longer in the watch directory.
func (w *Watcher) prunePending(entries []os.DirEntry) {
	if len(w.pending) == 0 {
		return
	}
	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = struct{}{}
	}
	for name := range w.pending {
		if _, ok := present[name]; !ok {
			delete(w.pending, name)
		}
	}
}

// tagWithDigest renames path to carry the digest prefix and returns the path
// the file now lives at. Rename failures keep the original path.
func (w *Watcher) tagWithDigest(logger *slog.Logger, path, sum string) string {
	if sum == "" {
		return path
	}
	name, changed := taggedName(filepath.Base(path), sum)
	if !changed {
		return path
	}
	target := filepath.Join(filepath.Dir(path), name)
	if _, err := os.Lstat(target); err == nil {
		logging.WarnWithContext(logger, "digest-tagged name already exists",
			"scan_rename_skipped",
			logging.String("path", path),
			logging.String("target", target),
			logging.String(logging.FieldErrorHint, "remove the duplicate file from watch_dir"),
			logging.String(logging.FieldImpact, "file keeps its original name"),
		)
		return path
	}
	if err := os.Rename(path, target); err != nil {
		logging.WarnWithContext(logger, "failed to tag file with digest",
			"scan_rename_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check write permissions on watch_dir"),
			logging.String(logging.FieldImpact, "file keeps its original name"),
		)
		return path
	}
	return target
}

func (w *Watcher) isCandidate(entry os.DirEntry) bool {
	if !entry.Type().IsRegular() {
		return false
	}
	name := entry.Name()
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(name))]; !ok {
		return false
	}
	if w.IsProcessed(name) {
		return false
	}
	return !w.isIgnored(name)
}

func (w *Watcher) isIgnored(name string) bool {
	for _, pattern := range w.ignore {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Watcher) resolveOperator() string {
	if w.operator == nil {
		return UnknownOperator
	}
	if id := strings.TrimSpace(w.operator()); id != "" {
		return id
	}
	return UnknownOperator
}

func (w *Watcher) markProcessed(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.processed[name] = struct{}{}
}

func (w *Watcher) finishScan(at time.Time, ingested int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Scans++
	w.status.FilesIngested += ingested
	w.status.LastScanAt = at
	if err != nil {
		w.status.LastError = err.Error()
	} else {
		w.status.LastError = ""
	}
}
