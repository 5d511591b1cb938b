package log

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
)

// logControlCharReplacer escapes control characters that can forge extra log
// lines (CWE-117). CSV fields end up in log messages, so this matters here.
var logControlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func sanitizeLogString(s string) string {
	return logControlCharReplacer.Replace(s)
}

// GoLogger is a Logger backed by the standard library log package. It writes
// one line per entry in the form
//
//	[warn] [row=4, tx=7] transaction rejected
//
// All strings are sanitized to prevent log injection.
type GoLogger struct {
	Level Level

	out    *stdlog.Logger
	fields []Field
	group  string
}

// NewGoLogger returns a GoLogger writing to w at the given level. A nil writer
// means os.Stderr.
func NewGoLogger(w io.Writer, level Level) *GoLogger {
	if w == nil {
		w = os.Stderr
	}

	return &GoLogger{
		Level: level,
		out:   stdlog.New(w, "", stdlog.LstdFlags),
	}
}

// Enabled reports whether entries at level are written.
func (l *GoLogger) Enabled(level Level) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

// Log writes one entry if level is enabled.
func (l *GoLogger) Log(_ context.Context, level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}

	l.logger().Print(l.hydrate(level, msg, fields))
}

// With returns a child logger that adds fields to every entry.
//
//nolint:ireturn
func (l *GoLogger) With(fields ...Field) Logger {
	if l == nil {
		return &GoLogger{}
	}

	child := l.clone()
	for _, f := range fields {
		child.fields = append(child.fields, l.qualify(f))
	}

	return child
}

// WithGroup returns a child logger whose later field keys are prefixed with name.
//
//nolint:ireturn
func (l *GoLogger) WithGroup(name string) Logger {
	if l == nil {
		return &GoLogger{}
	}

	child := l.clone()
	if name != "" {
		child.group = l.qualifyKey(name)
	}

	return child
}

// Sync is a no-op; every entry is written synchronously.
func (l *GoLogger) Sync(_ context.Context) error { return nil }

func (l *GoLogger) logger() *stdlog.Logger {
	if l.out == nil {
		return stdlog.Default()
	}

	return l.out
}

func (l *GoLogger) clone() *GoLogger {
	fields := make([]Field, len(l.fields), len(l.fields)+4)
	copy(fields, l.fields)

	return &GoLogger{
		Level:  l.Level,
		out:    l.out,
		fields: fields,
		group:  l.group,
	}
}

func (l *GoLogger) qualifyKey(key string) string {
	if l.group == "" {
		return key
	}

	return l.group + "." + key
}

func (l *GoLogger) qualify(f Field) Field {
	return Field{Key: l.qualifyKey(f.Key), Value: f.Value}
}

func (l *GoLogger) hydrate(level Level, msg string, fields []Field) string {
	parts := make([]string, 0, 3)
	parts = append(parts, "["+level.String()+"]")

	all := make([]string, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		all = append(all, formatField(f))
	}

	for _, f := range fields {
		all = append(all, formatField(l.qualify(f)))
	}

	if len(all) > 0 {
		parts = append(parts, "["+strings.Join(all, ", ")+"]")
	}

	parts = append(parts, sanitizeLogString(msg))

	return strings.Join(parts, " ")
}

func formatField(f Field) string {
	return sanitizeLogString(f.Key) + "=" + sanitizeLogString(fmt.Sprint(f.Value))
}
