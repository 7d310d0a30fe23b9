package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type SourceFileMode int

const (
	// Nop omits the caller.
	Nop SourceFileMode = iota
	// ShortFile prints the base name, e.g. chat_stream.go:42.
	ShortFile
	// LongFile prints the full path.
	LongFile
)

type Options struct {
	// Level is the minimum level written. Nil means info.
	Level      slog.Leveler
	TimeFormat string
	Source     SourceFileMode
	// NoColor writes plain text, for log collectors and pipes.
	NoColor bool
}

var DefaultOptions = Options{
	Level:      slog.LevelInfo,
	TimeFormat: time.DateTime,
	Source:     ShortFile,
}

// NewOptions derives handler options from the process configuration.
func NewOptions(level string, noColor bool) *Options {
	opts := DefaultOptions
	opts.Level = ParseLevel(level)
	opts.NoColor = noColor
	return &opts
}

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type palette struct {
	faint, requestID, user, key, errKey, prefix *color.Color
	levels                                      map[slog.Level]*color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		faint:     color.New(color.Faint),
		requestID: color.New(color.FgMagenta),
		user:      color.New(color.FgBlue),
		key:       color.New(color.FgCyan),
		errKey:    color.New(color.FgRed),
		prefix:    color.New(color.FgHiWhite),
		levels: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.BgCyan, color.FgHiWhite),
			slog.LevelInfo:  color.New(color.BgGreen, color.FgHiWhite),
			slog.LevelWarn:  color.New(color.BgYellow, color.FgHiWhite),
			slog.LevelError: color.New(color.BgRed, color.FgHiWhite),
		},
	}

	all := []*color.Color{p.faint, p.requestID, p.user, p.key, p.errKey, p.prefix}
	for _, c := range p.levels {
		all = append(all, c)
	}
	if noColor {
		for _, c := range all {
			c.DisableColor()
		}
	}
	return p
}

// Handler writes one colored line per record:
// time [request id] [user=id] LEVEL file:line | message key=value ...
type Handler struct {
	opts   Options
	colors *palette
	prefix string
	attrs  []slog.Attr

	mu  *sync.Mutex
	out io.Writer
}

// NewHandler creates a Handler. A nil opts means DefaultOptions.
func NewHandler(out io.Writer, opts *Options) *Handler {
	o := DefaultOptions
	if opts != nil {
		o = *opts
	}
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	return &Handler{
		opts:   o,
		colors: newPalette(o.NoColor),
		mu:     &sync.Mutex{},
		out:    out,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var b bytes.Buffer

	if !r.Time.IsZero() {
		b.WriteString(h.colors.faint.Sprint(r.Time.Format(h.opts.TimeFormat)))
		b.WriteByte(' ')
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		b.WriteString(h.colors.requestID.Sprint(id))
		b.WriteByte(' ')
	}
	if id, ok := UserIDFromContext(ctx); ok {
		b.WriteString(h.colors.user.Sprintf("user=%s", id))
		b.WriteByte(' ')
	}

	h.writeLevel(&b, r.Level)
	h.writeSource(&b, r.PC)

	b.WriteString(h.colors.prefix.Sprint("| "))
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		h.writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(b.Bytes())
	return err
}

func (h *Handler) writeLevel(b *bytes.Buffer, level slog.Level) {
	c, ok := h.colors.levels[level]
	if !ok {
		c = h.colors.levels[slog.LevelInfo]
	}
	b.WriteString(c.Sprintf("%-5s", level.String()))
	b.WriteByte(' ')
}

func (h *Handler) writeSource(b *bytes.Buffer, pc uintptr) {
	if h.opts.Source == Nop || pc == 0 {
		return
	}
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	file := f.File
	if h.opts.Source == ShortFile {
		file = filepath.Base(file)
	}
	fmt.Fprintf(b, "%s:%d ", file, f.Line)
}

// writeAttr flattens groups into dotted keys.
func (h *Handler) writeAttr(b *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, prefix, ga)
		}
		return
	}

	c := h.colors.key
	if strings.Contains(a.Key, "err") {
		c = h.colors.errKey
	}
	b.WriteByte(' ')
	b.WriteString(c.Sprintf("%s%s=", prefix, a.Key))
	b.WriteString(a.Value.String())
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	h2.attrs = appendPrefixed(h2.attrs, h.prefix, attrs)
	return &h2
}

func appendPrefixed(dst []slog.Attr, prefix string, attrs []slog.Attr) []slog.Attr {
	for _, a := range attrs {
		if a.Value.Kind() == slog.KindGroup && a.Key == "" {
			dst = appendPrefixed(dst, prefix, a.Value.Group())
			continue
		}
		a.Key = prefix + a.Key
		dst = append(dst, a)
	}
	return dst
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
