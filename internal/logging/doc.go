// Package logging assembles structured slog loggers for pagecapture.
//
// It owns the console and JSON handlers and the standard attribute keys
// (component, event_type, batch_id, paper_id, ...) so watcher, staging, and
// ingestion log lines share one shape. NewNop serves tests and wiring code
// that has no logger to pass.
package logging
