package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. page_captured).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldBatchID identifies the scan batch a capture belongs to.
	FieldBatchID = "batch_id"
	// FieldPaperID identifies the logical paper of a page.
	FieldPaperID = "paper_id"
	// FieldPageNumber identifies the page within a paper.
	FieldPageNumber = "page_number"
	// FieldFileID identifies a staged file.
	FieldFileID = "file_id"
)

type batchKey struct{}

// WithBatchID stores the active batch id on ctx so nested components can tag
// their log lines without threading it through every call.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, batchKey{}, batchID)
}

// BatchIDFromContext returns the batch id stored by WithBatchID.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(batchKey{}).(string)
	return id, ok && id != ""
}

// WithContext adds the batch id carried by ctx, if any, to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := BatchIDFromContext(ctx); ok {
		return logger.With(String(FieldBatchID, id))
	}
	return logger
}
