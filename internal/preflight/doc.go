// Package preflight provides readiness checks for the filesystem paths the
// capture pipeline depends on.
//
// The daemon calls RunAll before starting its loops and refuses to start
// when any check fails, since a watch folder it cannot rename files in would
// re-ingest the same scans on every pass.
package preflight
