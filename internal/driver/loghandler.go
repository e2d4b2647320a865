package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// tagKey is the logger attribute copied into LogLine.Tag.
const tagKey = "tag"

// eventHandler tees slog records to a base handler and, at or above
// minLevel, to the Notifier as LogLine events.
type eventHandler struct {
	base     slog.Handler
	notifier *Notifier
	minLevel slog.Leveler

	tag   string
	attrs []slog.Attr
	group string
}

func newEventHandler(base slog.Handler, n *Notifier, minLevel slog.Leveler) *eventHandler {
	return &eventHandler{base: base, notifier: n, minLevel: minLevel}
}

func (h *eventHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel.Level() || h.base.Enabled(ctx, level)
}

func (h *eventHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.base.Enabled(ctx, r.Level) {
		err = h.base.Handle(ctx, r)
	}
	if r.Level >= h.minLevel.Level() {
		h.notifier.Emit(LogLine{Level: r.Level, Tag: h.tag, Message: h.format(r)})
	}
	return err
}

func (h *eventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.base = h.base.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == tagKey && h.group == "" {
			c.tag = a.Value.String()
		}
	}
	return &c
}

func (h *eventHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.base = h.base.WithGroup(name)
	if h.group == "" {
		c.group = name
	} else {
		c.group = h.group + "." + name
	}
	return &c
}

// format renders the message followed by key=value pairs, skipping the tag.
func (h *eventHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Key == tagKey || a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	return b.String()
}
