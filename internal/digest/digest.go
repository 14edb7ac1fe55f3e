// Package digest computes the content digests that identify page captures.
//
// SHA-256 is the default; BLAKE3 is available for large scan batches where
// hashing throughput matters. Digests are lowercase hex strings so they can be
// embedded in filenames and compared as plain values.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported content digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// PrefixLength is the number of hex characters embedded in renamed filenames.
const PrefixLength = 12

// ParseAlgorithm resolves a configured algorithm name. An empty name selects SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unsupported digest algorithm %q", name)
	}
}

// New returns a fresh hasher for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case BLAKE3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SumReader streams r through the hasher and returns the hex digest.
func (a Algorithm) SumReader(r io.Reader) (string, error) {
	h := a.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// String returns the algorithm name, defaulting to sha256 for the zero value.
func (a Algorithm) String() string {
	if a == "" {
		return string(SHA256)
	}
	return string(a)
}

// Prefix returns the first PrefixLength characters of a hex digest.
func Prefix(hexDigest string) string {
	if len(hexDigest) <= PrefixLength {
		return hexDigest
	}
	return hexDigest[:PrefixLength]
}

// IsPrefix reports whether s looks like a digest prefix produced by Prefix.
func IsPrefix(s string) bool {
	if len(s) != PrefixLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
