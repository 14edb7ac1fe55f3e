package ingestion

import "time"

// PageKey identifies a logical page.
type PageKey struct {
	PaperID    string
	PageNumber int
}

// PageVersion is one immutable capture of a page. Fields are read through
// accessors so holders cannot alter the stored record.
type PageVersion struct {
	version          int
	capturedAt       time.Time
	digest           string
	storageRef       string
	batchID          string
	operatorID       string
	originalFilename string
	pageCount        *int
	isDuplicate      bool
	ocrTextRef       string
	note             string
}

// Version returns the 1-based version number. The accessors that follow
// return the remaining fields exactly as recorded by CapturePage.
func (v PageVersion) Version() int { return v.version }
func (v PageVersion) CapturedAt() time.Time { return v.capturedAt }
func (v PageVersion) Digest() string { return v.digest }
func (v PageVersion) StorageRef() string { return v.storageRef }
func (v PageVersion) BatchID() string { return v.batchID }
func (v PageVersion) OperatorID() string { return v.operatorID }
func (v PageVersion) OriginalFilename() string { return v.originalFilename }
func (v PageVersion) IsDuplicate() bool { return v.isDuplicate }
func (v PageVersion) OCRTextRef() string { return v.ocrTextRef }
func (v PageVersion) Note() string { return v.note }

// PageCount returns the page count recorded at capture, if any.
func (v PageVersion) PageCount() (int, bool) {
	if v.pageCount == nil {
		return 0, false
	}
	return *v.pageCount, true
}

// PageCapture is a snapshot of a page's version history.
type PageCapture struct {
	Key      PageKey
	Versions []PageVersion
}

// Latest returns the newest version. A capture always holds at least one.
func (c PageCapture) Latest() PageVersion {
	return c.Versions[len(c.Versions)-1]
}

// Version returns version n (1-based).
func (c PageCapture) Version(n int) (PageVersion, bool) {
	if n < 1 || n > len(c.Versions) {
		return PageVersion{}, false
	}
	return c.Versions[n-1], true
}

// CaptureOptions carries optional metadata recorded with a capture.
type CaptureOptions struct {
	BatchID          string
	OperatorID       string
	OriginalFilename string
	PageCount        *int
	IsDuplicate      bool
	OCRTextRef       string
	Note             string
}

// AuditEntry summarizes one page of a paper.
type AuditEntry struct {
	PageNumber    int `json:"page_number"`
	LatestVersion int `json:"latest_version"`
}

// Stats summarizes the manager's contents.
type Stats struct {
	TotalPages    int `json:"total_pages"`
	TotalVersions int `json:"total_versions"`
}
