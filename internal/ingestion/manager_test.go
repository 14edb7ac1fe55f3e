package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pagecapture/internal/digest"
	"pagecapture/internal/logging"
	"pagecapture/internal/metrics"
)

func newTestManager() *Manager {
	return NewManager(Options{Algorithm: digest.SHA256, Logger: logging.NewNop()})
}

func TestCapturePageAssignsGaplessVersions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	key := PageKey{PaperID: "exam42", PageNumber: 3}

	for i := 1; i <= 5; i++ {
		v, err := m.CapturePage(ctx, key.PaperID, key.PageNumber, []byte{byte(i)}, "ref", CaptureOptions{})
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		if v.Version() != i {
			t.Fatalf("capture %d got version %d", i, v.Version())
		}
	}

	page, ok := m.GetPage(key)
	if !ok {
		t.Fatal("page not found")
	}
	if len(page.Versions) != 5 {
		t.Fatalf("expected 5 versions, got %d", len(page.Versions))
	}
	for i, v := range page.Versions {
		if v.Version() != i+1 {
			t.Fatalf("versions[%d] = %d", i, v.Version())
		}
	}
	if page.Latest().Version() != 5 {
		t.Fatalf("latest = %d", page.Latest().Version())
	}
}

func TestVersionsAreIndependentPerPage(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.CapturePage(ctx, "p", 1, []byte("a"), "", CaptureOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CapturePage(ctx, "p", 1, []byte("b"), "", CaptureOptions{}); err != nil {
		t.Fatal(err)
	}
	v, err := m.CapturePage(ctx, "p", 2, []byte("c"), "", CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Version() != 1 {
		t.Fatalf("page 2 should start at version 1, got %d", v.Version())
	}
	other, err := m.CapturePage(ctx, "q", 1, []byte("d"), "", CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if other.Version() != 1 {
		t.Fatalf("other paper should start at version 1, got %d", other.Version())
	}
}

func TestCapturePageAcceptsDerivedIdentityAsIs(t *testing.T) {
	m := newTestManager()
	tests := []struct {
		name  string
		paper string
		page  int
	}{
		{"empty paper", "", 1},
		{"zero page", "scan", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := m.CapturePage(context.Background(), tc.paper, tc.page, []byte("x"), "", CaptureOptions{})
			if err != nil {
				t.Fatalf("CapturePage: %v", err)
			}
			if v.Version() != 1 {
				t.Fatalf("expected version 1, got %d", v.Version())
			}
			if _, ok := m.GetLatestVersion(PageKey{PaperID: tc.paper, PageNumber: tc.page}); !ok {
				t.Fatal("capture not retrievable")
			}
		})
	}
}

func TestCapturePageHonorsCancellation(t *testing.T) {
	m := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.CapturePage(ctx, "p", 1, []byte("x"), "", CaptureOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if st := m.Stats(); st.TotalPages != 0 || st.TotalVersions != 0 {
		t.Fatalf("cancelled capture was recorded: %+v", st)
	}
}

func TestCapturePageRecordsMetadata(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	m := NewManager(Options{Logger: logging.NewNop(), Metrics: mx, Now: func() time.Time { return at }})

	pages := 7
	v, err := m.CapturePage(context.Background(), "deed", 2, []byte("hello world"), "/staging/x.pdf", CaptureOptions{
		BatchID:          "batch-9",
		OperatorID:       "op-1",
		OriginalFilename: "deed_p2.pdf",
		PageCount:        &pages,
		IsDuplicate:      true,
		OCRTextRef:       "ocr://deed/2",
		Note:             "rescan",
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	pages = 99

	if v.Digest() != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("digest = %s", v.Digest())
	}
	if !v.CapturedAt().Equal(at) {
		t.Fatalf("captured at = %v", v.CapturedAt())
	}
	if v.StorageRef() != "/staging/x.pdf" || v.BatchID() != "batch-9" || v.OperatorID() != "op-1" {
		t.Fatalf("unexpected references: %q %q %q", v.StorageRef(), v.BatchID(), v.OperatorID())
	}
	if v.OriginalFilename() != "deed_p2.pdf" || !v.IsDuplicate() || v.OCRTextRef() != "ocr://deed/2" || v.Note() != "rescan" {
		t.Fatalf("unexpected metadata: %+v", v)
	}
	if n, ok := v.PageCount(); !ok || n != 7 {
		t.Fatalf("page count = %d, %v; caller mutation must not leak", n, ok)
	}
	if got := testutil.ToFloat64(mx.PageVersions); got != 1 {
		t.Fatalf("page versions metric = %v", got)
	}

	none, err := m.CapturePage(context.Background(), "deed", 3, []byte("x"), "", CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := none.PageCount(); ok {
		t.Fatal("page count should be absent")
	}
}

func TestSnapshotsDoNotAliasStore(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	key := PageKey{PaperID: "p", PageNumber: 1}
	if _, err := m.CapturePage(ctx, "p", 1, []byte("one"), "", CaptureOptions{}); err != nil {
		t.Fatal(err)
	}

	page, _ := m.GetPage(key)
	page.Versions[0] = PageVersion{}
	page.Versions = append(page.Versions, PageVersion{})

	fresh, _ := m.GetPage(key)
	if len(fresh.Versions) != 1 || fresh.Versions[0].Version() != 1 {
		t.Fatalf("store mutated through snapshot: %+v", fresh.Versions)
	}
}

func TestLookups(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	for _, c := range []struct {
		page    int
		content string
	}{{2, "a"}, {1, "b"}, {2, "c"}, {5, "d"}} {
		if _, err := m.CapturePage(ctx, "exam", c.page, []byte(c.content), "", CaptureOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := m.GetPage(PageKey{PaperID: "exam", PageNumber: 9}); ok {
		t.Fatal("unknown page found")
	}
	latest, ok := m.GetLatestVersion(PageKey{PaperID: "exam", PageNumber: 2})
	if !ok || latest.Version() != 2 {
		t.Fatalf("latest = %v, %v", latest.Version(), ok)
	}
	if _, ok := m.GetVersion(PageKey{PaperID: "exam", PageNumber: 2}, 3); ok {
		t.Fatal("version 3 should not exist")
	}
	if _, ok := m.GetVersion(PageKey{PaperID: "exam", PageNumber: 2}, 0); ok {
		t.Fatal("version 0 should not exist")
	}
	first, ok := m.GetVersion(PageKey{PaperID: "exam", PageNumber: 2}, 1)
	if !ok || first.Digest() != digest.SHA256.Sum([]byte("a")) {
		t.Fatalf("version 1 lookup wrong: %v", ok)
	}

	pages := m.ListPagesForPaper("exam")
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for i, want := range []int{1, 2, 5} {
		if pages[i].Key.PageNumber != want {
			t.Fatalf("pages[%d] = %d, want %d", i, pages[i].Key.PageNumber, want)
		}
	}
	if len(m.ListPagesForPaper("nobody")) != 0 {
		t.Fatal("unknown paper should list no pages")
	}

	trail := m.AuditTrail("exam")
	want := []AuditEntry{{1, 1}, {2, 2}, {5, 1}}
	if len(trail) != len(want) {
		t.Fatalf("trail = %+v", trail)
	}
	for i := range want {
		if trail[i] != want[i] {
			t.Fatalf("trail[%d] = %+v, want %+v", i, trail[i], want[i])
		}
	}

	if st := m.Stats(); st.TotalPages != 3 || st.TotalVersions != 4 {
		t.Fatalf("stats = %+v", st)
	}
	if papers := m.Papers(); len(papers) != 1 || papers[0] != "exam" {
		t.Fatalf("papers = %v", papers)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	if _, err := m.CapturePage(ctx, "p", 1, []byte("v1"), "", CaptureOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CapturePage(ctx, "p", 1, []byte("v2"), "", CaptureOptions{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		paper   string
		page    int
		version int
		content []byte
		want    bool
	}{
		{"latest matches", "p", 1, 0, []byte("v2"), true},
		{"latest rejects old bytes", "p", 1, 0, []byte("v1"), false},
		{"specific version matches", "p", 1, 1, []byte("v1"), true},
		{"specific version rejects", "p", 1, 1, []byte("v2"), false},
		{"weak mode existing", "p", 1, 2, nil, true},
		{"weak mode missing version", "p", 1, 3, nil, false},
		{"unknown page", "p", 2, 0, nil, false},
		{"unknown paper", "q", 1, 0, []byte("v2"), false},
		{"empty content is hashed", "p", 1, 0, []byte{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.VerifyIntegrity(tc.paper, tc.page, tc.version, tc.content); got != tc.want {
				t.Fatalf("VerifyIntegrity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVerifyAllIsExistenceOnly(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	if !m.VerifyAll("missing") {
		t.Fatal("a paper with no pages should verify vacuously")
	}
	for _, page := range []int{1, 2, 3} {
		if _, err := m.CapturePage(ctx, "p", page, []byte{byte(page)}, "", CaptureOptions{}); err != nil {
			t.Fatal(err)
		}
	}
	if !m.VerifyAll("p") {
		t.Fatal("all pages present should verify")
	}
}

func TestBlake3Manager(t *testing.T) {
	m := NewManager(Options{Algorithm: digest.BLAKE3, Logger: logging.NewNop()})
	v, err := m.CapturePage(context.Background(), "p", 1, []byte("abc"), "", CaptureOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Digest() != digest.BLAKE3.Sum([]byte("abc")) {
		t.Fatal("digest should follow configured algorithm")
	}
	if !m.VerifyIntegrity("p", 1, 0, []byte("abc")) {
		t.Fatal("verification should use configured algorithm")
	}
}
