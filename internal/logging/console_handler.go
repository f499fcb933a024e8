package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// consoleHandler writes one header line per record followed by an indented
// "- key: value" line per field. Component, artifact and stage are lifted
// into the header.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string
	bound     []field
}

type field struct {
	key   string
	value slog.Value
}

// Shown only when the record itself is below info.
var debugOnlyKeys = []string{FieldEventType, FieldCorrelationID, FieldJobID}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = appendFields(append([]field(nil), h.bound...), h.prefix, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field(nil), h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{a})
		return true
	})
	fields = lastValueWins(fields)

	var header struct{ component, artifact, stage string }
	var buf bytes.Buffer
	body := fields[:0]
	for _, f := range fields {
		switch {
		case f.key == FieldComponent:
			header.component = plainValue(f.value)
		case f.key == FieldArtifact:
			header.artifact = plainValue(f.value)
		case f.key == FieldStage:
			header.stage = plainValue(f.value)
		case r.Level >= slog.LevelInfo && slices.Contains(debugOnlyKeys, f.key):
		default:
			body = append(body, f)
		}
	}

	buf.WriteString(formatTimestamp(r.Time))
	buf.WriteString(" " + levelLabel(r.Level))
	if header.component != "" {
		buf.WriteString(" [" + header.component + "]")
	}
	if subject := subjectOf(header.artifact, header.stage); subject != "" {
		buf.WriteString(" " + subject)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(" - " + msg)
	if h.addSource {
		if src := r.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')
	for _, f := range body {
		fmt.Fprintf(&buf, "    - %s: %s\n", f.key, fieldValue(f.value))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// subjectOf renders "artifact (stage)", dropping whichever part is empty.
func subjectOf(artifact, stage string) string {
	artifact, stage = strings.TrimSpace(artifact), strings.TrimSpace(stage)
	if artifact != "" && stage != "" {
		return artifact + " (" + stage + ")"
	}
	return artifact + stage
}

// appendFields flattens groups into dotted keys.
func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		v := a.Value.Resolve()
		if v.Kind() == slog.KindGroup {
			inner := prefix
			if a.Key != "" {
				inner += a.Key + "."
			}
			dst = appendFields(dst, inner, v.Group())
			continue
		}
		if a.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + a.Key, value: v})
	}
	return dst
}

// lastValueWins collapses repeated keys to the position of the first
// occurrence and the value of the last.
func lastValueWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
