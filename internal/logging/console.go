package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record, shaped around capture fields:
//
//	2026-05-04T10:30:00Z INFO ingestion: page captured [PAPER-1 p3] version=2 batch=8f1c...
//
// component leads the message, paper and page are bracketed after it, and
// batch_id and file_id trail the line. event_type is left to the JSON format.
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func newConsoleHandler(w io.Writer, level slog.Leveler) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), h.qualify(attrs)...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func (h *consoleHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + a.Key, Value: a.Value}
	}
	return out
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var (
		component, paper, page, batch, file string
		rest                                []string
	)
	visit := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		switch a.Key {
		case "":
		case FieldComponent:
			component = a.Value.String()
		case FieldPaperID:
			paper = a.Value.String()
		case FieldPageNumber:
			page = a.Value.String()
		case FieldBatchID:
			batch = a.Value.String()
		case FieldFileID:
			file = a.Value.String()
		case FieldEventType:
		default:
			rest = append(rest, a.Key+"="+formatValue(a.Value))
		}
	}
	for _, a := range h.attrs {
		visit(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + a.Key
		}
		visit(a)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	b.WriteString(record.Message)
	if paper != "" || page != "" {
		b.WriteString(" [")
		b.WriteString(paper)
		if page != "" {
			if paper != "" {
				b.WriteByte(' ')
			}
			b.WriteString("p" + page)
		}
		b.WriteByte(']')
	}
	for _, kv := range rest {
		b.WriteByte(' ')
		b.WriteString(kv)
	}
	if file != "" {
		b.WriteString(" file=" + file)
	}
	if batch != "" {
		b.WriteString(" batch=" + batch)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = v.String()
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}
