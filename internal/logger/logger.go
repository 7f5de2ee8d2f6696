// Package logger builds the server's slog logger: JSON lines in production
// and a colored single-line format during development.
//
// The development format lifts the identifiers of the rental engine
// (rent, book, copy, client, request) out of the attribute list into a
// leading tag, so a rental can be followed through the log by eye:
//
//	10:00:00 INF [rent_id=7 serial_number=9780441013593] rental opened due="08-03-2024"
package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Formats accepted by Config.Format.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Attribute keys shared by the services and the HTTP layer.
const (
	KeyRequestID = "request_id"
	KeyRentID    = "rent_id"
	KeySerial    = "serial_number"
	KeyCopyID    = "copy_id"
	KeyClientID  = "client_id"
	KeyError     = "error"
)

// tagKeys are rendered in the leading tag, in this order.
var tagKeys = []string{KeyRequestID, KeyRentID, KeySerial, KeyCopyID, KeyClientID}

type palette struct {
	label string
	color string
}

var levels = map[slog.Level]palette{
	slog.LevelDebug: {"DBG", "\033[35m"},
	slog.LevelInfo:  {"INF", "\033[32m"},
	slog.LevelWarn:  {"WRN", "\033[33m"},
	slog.LevelError: {"ERR", "\033[31m"},
}

const (
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"
	cyan  = "\033[36m"
	blue  = "\033[34m"
)

// Logger wraps slog.Logger with helpers for the identifiers the rental
// engine logs most.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Writer io.Writer
	// Format is FormatJSON or FormatPretty; empty picks by Environment.
	Format      string
	Environment string
	Level       slog.Level
	AddSource   bool
}

// New creates a logger. Production defaults to JSON, anything else to the
// pretty format.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	format := cfg.Format
	if format == "" {
		format = FormatPretty
		if cfg.Environment == "production" {
			format = FormatJSON
		}
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource, ReplaceAttr: shortSource}
	if format == FormatJSON {
		return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(NewPrettyHandler(w, opts))}
}

func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok {
		src.File = filepath.Base(src.File)
	}
	return a
}

// ParseLevel converts a level name to slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	var l slog.Level
	name := strings.ToLower(level)
	if name == "warning" {
		name = "warn"
	}
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// PrettyHandler writes "15:04:05 INF [tag] message key=value" lines.
// Attributes inside groups are written with dotted keys and never lifted
// into the tag.
type PrettyHandler struct {
	opts   slog.HandlerOptions
	w      io.Writer
	mu     *sync.Mutex
	tags   map[string]slog.Value
	attrs  []slog.Attr
	prefix string
}

// NewPrettyHandler creates a new pretty handler.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle formats and writes the log record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	tags := make(map[string]slog.Value, len(h.tags))
	for k, v := range h.tags {
		tags[k] = v
	}
	attrs := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = h.collect(tags, attrs, a)
		return true
	})

	var b bytes.Buffer
	b.WriteString(dim + r.Time.Format("15:04:05") + reset + " ")

	p, ok := levels[r.Level]
	if !ok {
		p = palette{r.Level.String(), "\033[37m"}
	}
	b.WriteString(p.color + p.label + reset + " ")

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		b.WriteString(dim + filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line) + reset + " ")
	}

	if tag := renderTag(tags); tag != "" {
		b.WriteString(blue + tag + reset + " ")
	}
	b.WriteString(bold + r.Message + reset)

	if len(attrs) > 0 {
		b.WriteString(" " + cyan)
		for i, a := range attrs {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(a.Key + "=" + formatValue(a.Value))
		}
		b.WriteString(reset)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

// collect routes a into the tag set or the attribute list.
func (h *PrettyHandler) collect(tags map[string]slog.Value, attrs []slog.Attr, a slog.Attr) []slog.Attr {
	if h.prefix == "" && slices.Contains(tagKeys, a.Key) {
		tags[a.Key] = a.Value
		return attrs
	}
	return append(attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
}

// WithAttrs returns a new handler with additional attributes.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.tags = make(map[string]slog.Value, len(h.tags))
	for k, v := range h.tags {
		next.tags[k] = v
	}
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = next.collect(next.tags, next.attrs, a)
	}
	return &next
}

// WithGroup returns a new handler whose later attributes are keyed under
// name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func renderTag(tags map[string]slog.Value) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, k := range tagKeys {
		if v, ok := tags[k]; ok {
			parts = append(parts, k+"="+formatValue(v))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// formatValue renders a value; strings with spaces are quoted.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); strings.ContainsAny(s, " \t\"") {
			return strconv.Quote(s)
		}
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	}
	return v.String()
}

// WithError adds an error attribute to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With(slog.String(KeyError, err.Error()))}
}
