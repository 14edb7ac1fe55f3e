// Package validator fingerprints captured files: content digest, duplicate
// detection within one validator's lifetime, and page count for PDFs.
package validator

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pagecapture/internal/digest"
	"pagecapture/internal/logging"
)

// Result describes one validated file. Err is set when the file could not be
// read; Digest is empty in that case.
type Result struct {
	Path        string
	Digest      string
	PageCount   *int
	IsDuplicate bool
	Err         error
}

// pageCountFunc allows tests to stub PDF parsing.
type pageCountFunc func(data []byte) (int, error)

// Validator computes digests and remembers which ones it has seen.
type Validator struct {
	algo      digest.Algorithm
	logger    *slog.Logger
	pageCount pageCountFunc

	mu   sync.Mutex
	seen map[string]int
}

// New returns a validator hashing with algo. An empty algo means SHA-256.
func New(algo digest.Algorithm, logger *slog.Logger) *Validator {
	if algo == "" {
		algo = digest.SHA256
	}
	return &Validator{
		algo:      algo,
		logger:    logging.NewComponentLogger(logger, "validator"),
		pageCount: pdfPageCount,
		seen:      make(map[string]int),
	}
}

// Algorithm reports the digest algorithm in use.
func (v *Validator) Algorithm() digest.Algorithm {
	return v.algo
}

// Validate reads path and fingerprints its content. It never fails; read
// errors are reported through Result.Err.
func (v *Validator) Validate(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		v.record("")
		v.logger.Debug("validation read failed",
			logging.String("path", path),
			logging.Error(err),
		)
		return Result{Path: path, Err: fmt.Errorf("read %s: %w", path, err)}
	}
	return v.ValidateBytes(path, data)
}

// ValidateBytes fingerprints data already read from path.
func (v *Validator) ValidateBytes(path string, data []byte) Result {
	sum := v.algo.Sum(data)
	result := Result{
		Path:        path,
		Digest:      sum,
		IsDuplicate: v.record(sum) > 1,
	}
	if isPaged(path) {
		if n, err := v.safePageCount(data); err != nil {
			v.logger.Debug("page count unavailable",
				logging.String("path", path),
				logging.Error(err),
			)
		} else {
			result.PageCount = &n
		}
	}
	return result
}

// SeenCount reports how many validations produced the given digest.
func (v *Validator) SeenCount(sum string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.seen[sum]
}

// record increments the counter for sum and returns the new count.
func (v *Validator) record(sum string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen[sum]++
	return v.seen[sum]
}

// safePageCount converts parser panics on malformed input into errors.
func (v *Validator) safePageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	return v.pageCount(data)
}

func isPaged(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

var disablePDFConfigDir sync.Once

func pdfPageCount(data []byte) (int, error) {
	disablePDFConfigDir.Do(func() {
		// Keep pdfcpu from writing its config tree under the user's home.
		model.ConfigPath = "disable"
	})
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("pdf reports %d pages", n)
	}
	return n, nil
}
