package ingestion

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"pagecapture/internal/digest"
	"pagecapture/internal/logging"
	"pagecapture/internal/metrics"
)

// Options configures a Manager.
type Options struct {
	Algorithm digest.Algorithm
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Manager owns the version history of every captured page.
type Manager struct {
	algo    digest.Algorithm
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.RWMutex
	captures map[PageKey][]PageVersion
	papers   map[string]map[int]struct{}
}

// NewManager returns an empty manager.
func NewManager(opts Options) *Manager {
	algo := opts.Algorithm
	if algo == "" {
		algo = digest.SHA256
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		algo:     algo,
		logger:   logging.NewComponentLogger(opts.Logger, "ingestion"),
		metrics:  opts.Metrics,
		now:      now,
		captures: make(map[PageKey][]PageVersion),
		papers:   make(map[string]map[int]struct{}),
	}
}

// CapturePage appends a new version for (paperID, pageNumber) and returns it.
// The digest is computed from content; any digest the caller holds is ignored.
// Any identity is accepted as given, including an empty paper id or page 0.
// The only error is a cancelled ctx, in which case nothing is recorded.
func (m *Manager) CapturePage(ctx context.Context, paperID string, pageNumber int, content []byte, storageRef string, opts CaptureOptions) (PageVersion, error) {
	if err := ctx.Err(); err != nil {
		return PageVersion{}, fmt.Errorf("capture %q page %d: %w", paperID, pageNumber, err)
	}
	sum := m.algo.Sum(content)
	var pageCount *int
	if opts.PageCount != nil {
		n := *opts.PageCount
		pageCount = &n
	}

	key := PageKey{PaperID: paperID, PageNumber: pageNumber}

	m.mu.Lock()
	versions := m.captures[key]
	version := PageVersion{
		version:          len(versions) + 1,
		capturedAt:       m.now(),
		digest:           sum,
		storageRef:       storageRef,
		batchID:          opts.BatchID,
		operatorID:       opts.OperatorID,
		originalFilename: opts.OriginalFilename,
		pageCount:        pageCount,
		isDuplicate:      opts.IsDuplicate,
		ocrTextRef:       opts.OCRTextRef,
		note:             opts.Note,
	}
	m.captures[key] = append(versions, version)
	pages, ok := m.papers[paperID]
	if !ok {
		pages = make(map[int]struct{})
		m.papers[paperID] = pages
	}
	pages[pageNumber] = struct{}{}
	m.mu.Unlock()

	m.metrics.VersionRecorded()
	logging.WithContext(ctx, m.logger).Info("page captured",
		logging.String(logging.FieldPaperID, paperID),
		logging.Int(logging.FieldPageNumber, pageNumber),
		logging.Int("version", version.version),
		logging.String("digest", digest.Prefix(sum)),
		logging.Bool("duplicate", opts.IsDuplicate),
		logging.String(logging.FieldEventType, "page_captured"),
	)
	return version, nil
}

// GetPage returns a snapshot of the page's history.
func (m *Manager) GetPage(key PageKey) (PageCapture, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.captures[key]
	if !ok {
		return PageCapture{}, false
	}
	return PageCapture{Key: key, Versions: append([]PageVersion(nil), versions...)}, true
}

// GetLatestVersion returns the newest version of the page.
func (m *Manager) GetLatestVersion(key PageKey) (PageVersion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.captures[key]
	if !ok {
		return PageVersion{}, false
	}
	return versions[len(versions)-1], true
}

// GetVersion returns version n of the page.
func (m *Manager) GetVersion(key PageKey, n int) (PageVersion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.captures[key]
	if n < 1 || n > len(versions) {
		return PageVersion{}, false
	}
	return versions[n-1], true
}

// ListPagesForPaper returns snapshots of every page of paperID ordered by page number.
func (m *Manager) ListPagesForPaper(paperID string) []PageCapture {
	m.mu.RLock()
	defer m.mu.RUnlock()
	numbers := m.pageNumbersLocked(paperID)
	pages := make([]PageCapture, 0, len(numbers))
	for _, n := range numbers {
		key := PageKey{PaperID: paperID, PageNumber: n}
		pages = append(pages, PageCapture{Key: key, Versions: append([]PageVersion(nil), m.captures[key]...)})
	}
	return pages
}

// AuditTrail lists each page of paperID with its latest version number.
func (m *Manager) AuditTrail(paperID string) []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	numbers := m.pageNumbersLocked(paperID)
	trail := make([]AuditEntry, 0, len(numbers))
	for _, n := range numbers {
		versions := m.captures[PageKey{PaperID: paperID, PageNumber: n}]
		trail = append(trail, AuditEntry{PageNumber: n, LatestVersion: len(versions)})
	}
	return trail
}

// VerifyIntegrity checks a stored version against content. Version 0 targets
// the latest version. A nil content only checks that the version exists.
func (m *Manager) VerifyIntegrity(paperID string, pageNumber, version int, content []byte) bool {
	key := PageKey{PaperID: paperID, PageNumber: pageNumber}
	var (
		v  PageVersion
		ok bool
	)
	if version == 0 {
		v, ok = m.GetLatestVersion(key)
	} else {
		v, ok = m.GetVersion(key, version)
	}
	if !ok {
		return false
	}
	if content == nil {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(m.algo.Sum(content)), []byte(v.digest)) == 1
}

// VerifyAll reports whether every page of paperID has a latest version. It
// checks existence only and never rehashes. A paper with no pages holds
// vacuously.
func (m *Manager) VerifyAll(paperID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for n := range m.papers[paperID] {
		if len(m.captures[PageKey{PaperID: paperID, PageNumber: n}]) == 0 {
			return false
		}
	}
	return true
}

// Papers returns every known paper id in lexical order.
func (m *Manager) Papers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.papers))
	for id := range m.papers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats counts pages and versions across all papers.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{TotalPages: len(m.captures)}
	for _, versions := range m.captures {
		st.TotalVersions += len(versions)
	}
	return st
}

func (m *Manager) pageNumbersLocked(paperID string) []int {
	pages := m.papers[paperID]
	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
