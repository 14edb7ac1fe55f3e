// Package textutil provides filename helpers used when deriving page identities
// and staging names from scanner output.
//
// Scanners and network shares disagree about Unicode composition, so names are
// normalized to NFC before they become paper identifiers; sanitization keeps
// staged copies free of path separators and shell-hostile characters.
package textutil
