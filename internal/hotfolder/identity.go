package hotfolder

import (
	"path/filepath"
	"strconv"
	"strings"

	"pagecapture/internal/digest"
	"pagecapture/internal/textutil"
)

const (
	pageMarker = "_p"
	tagMarker  = "__"
)

// DeriveIdentity maps a file stem to a paper id and page number. The stem is
// split on its last "_p"; a purely numeric suffix is the page number. Stems
// without one are page 1 of a paper named after the whole stem, so unrelated
// unsuffixed files of the same name collapse onto one page.
func DeriveIdentity(stem string) (string, int) {
	stem = textutil.NormalizeName(stripDigestTag(stem))
	idx := strings.LastIndex(stem, pageMarker)
	if idx < 0 {
		return stem, 1
	}
	suffix := stem[idx+len(pageMarker):]
	if !isASCIIDigits(suffix) {
		return stem, 1
	}
	page, err := strconv.Atoi(suffix)
	if err != nil {
		return stem, 1
	}
	return stem[:idx], page
}

// splitName returns the stem and extension of a basename.
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// stripDigestTag removes a trailing "__<12 hex>" tag added by a previous pass.
func stripDigestTag(stem string) string {
	if tag, ok := digestTag(stem); ok {
		return strings.TrimSuffix(stem, tagMarker+tag)
	}
	return stem
}

// digestTag returns the trailing digest tag of stem, if any.
func digestTag(stem string) (string, bool) {
	idx := strings.LastIndex(stem, tagMarker)
	if idx < 0 {
		return "", false
	}
	tag := stem[idx+len(tagMarker):]
	if !digest.IsPrefix(tag) {
		return "", false
	}
	return tag, true
}

// taggedName returns the basename carrying the digest prefix, and whether it
// differs from name.
func taggedName(name, sum string) (string, bool) {
	stem, ext := splitName(name)
	prefix := digest.Prefix(sum)
	if tag, ok := digestTag(stem); ok && tag == prefix {
		return name, false
	}
	return stripDigestTag(stem) + tagMarker + prefix + ext, true
}

func isASCIIDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
