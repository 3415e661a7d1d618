// Package consolelog renders log/slog records with a pattern layout and writes them, one Write per record, to a
// terminalconsole.Sink (or any other io.Writer).
package consolelog

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

type HandlerOptions struct {
	// Level is the minimum level that gets written. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// Layout defaults to DefaultPattern.
	Layout *Layout
}

type Handler struct {
	w io.Writer
	// mu keeps writes of one handler and its WithAttrs/WithGroup children from interleaving on writers that
	// don't serialize on their own. Sink and AsyncWriter do.
	mu     *sync.Mutex
	level  slog.Leveler
	layout *Layout

	attrs  []Attr
	prefix string
}

var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 256)
		return &buf
	},
}

func NewHandler(w io.Writer, opts *HandlerOptions) *Handler {
	h := &Handler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.level = opts.Level
		h.layout = opts.Layout
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if h.layout == nil {
		h.layout = MustCompile(DefaultPattern, LayoutOptions{})
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	record := Record{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make([]Attr, len(h.attrs), len(h.attrs)+r.NumAttrs()),
	}
	copy(record.Attrs, h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		record.Attrs = appendAttr(record.Attrs, h.prefix, a)
		return true
	})

	bufp := bufferPool.Get().(*[]byte)
	buf := h.layout.Append((*bufp)[:0], &record)

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()

	*bufp = buf
	bufferPool.Put(bufp)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	clone := *h
	clone.attrs = make([]Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(clone.attrs, h.attrs)
	for _, a := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, a)
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(attrs []Attr, prefix string, a slog.Attr) []Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return attrs
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return attrs
		}
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range group {
			attrs = appendAttr(attrs, prefix, member)
		}
		return attrs
	}

	return append(attrs, Attr{Key: prefix + a.Key, Value: a.Value.String()})
}
