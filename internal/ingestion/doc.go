// Package ingestion records every capture of a logical page as an immutable,
// numbered version and answers audit and integrity questions about them.
//
// A page is identified by PageKey{PaperID, PageNumber}. Versions start at 1 and
// increase by exactly one per capture; nothing is ever rewritten or deleted.
// Digests are always recomputed from the captured bytes.
package ingestion
