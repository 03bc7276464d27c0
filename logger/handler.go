package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// LevelCritical is the level above slog.LevelError.
const LevelCritical = slog.Level(12)

// LoggerKey is the attribute key that carries a logger's name. The handlers
// in this package print it in the name column instead of as an attribute.
const LoggerKey = "logger"

// ANSI color codes.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

var levelColors = map[string]string{
	"DEBUG":    colorCyan,
	"INFO":     colorGreen,
	"WARNING":  colorYellow,
	"ERROR":    colorRed,
	"CRITICAL": colorMagenta,
}

// levelName maps the standard levels and LevelCritical to their names.
// Other levels use slog's "BASE+N" form.
func levelName(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARNING"
	case slog.LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	}
	return l.String()
}

type prefixedAttr struct {
	prefix string
	attr   slog.Attr
}

// common is the state shared by every handler in this package: the output,
// the minimum level, pre-bound attributes and the open group prefix.
type common struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	name   string
	attrs  []prefixedAttr
	prefix string
}

func newCommon(w io.Writer, level slog.Leveler) common {
	if w == nil {
		w = os.Stdout
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return common{mu: &sync.Mutex{}, w: w, level: level}
}

func (c common) enabled(l slog.Level) bool {
	return l >= c.level.Level()
}

func (c common) withAttrs(attrs []slog.Attr) common {
	out := c
	out.attrs = append([]prefixedAttr{}, c.attrs...)
	for _, a := range attrs {
		if c.prefix == "" && a.Key == LoggerKey {
			out.name = a.Value.String()
			continue
		}
		out.attrs = append(out.attrs, prefixedAttr{prefix: c.prefix, attr: a})
	}
	return out
}

func (c common) withGroup(name string) common {
	if name == "" {
		return c
	}
	out := c
	out.prefix = c.prefix + name + "."
	return out
}

func (c common) nameOr(fallback string) string {
	if c.name == "" {
		return fallback
	}
	return c.name
}

// appendAttrs appends " key=value" for every bound and record attribute.
func (c common) appendAttrs(buf []byte, r slog.Record) []byte {
	for _, p := range c.attrs {
		buf = appendAttr(buf, p.prefix, p.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, c.prefix, a)
		return true
	})
	return buf
}

func (c common) write(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(buf)
	return err
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, p, ga)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	s := a.Value.String()
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		s = strconv.Quote(s)
	}
	return append(buf, s...)
}

type source struct {
	module   string
	function string
	line     int
}

// sourceOf resolves a record's program counter into the file name without
// extension, the function name without its package path, and the line.
func sourceOf(pc uintptr) source {
	if pc == 0 {
		return source{module: "?", function: "?"}
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	fn := f.Function
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.IndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return source{
		module:   strings.TrimSuffix(filepath.Base(f.File), ".go"),
		function: fn,
		line:     f.Line,
	}
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	id, _ := strconv.ParseUint(s, 10, 64)
	return id
}

// isTerminal checks whether w is a file connected to a terminal device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
