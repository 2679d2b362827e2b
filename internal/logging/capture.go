package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Capture records every log entry emitted while it is installed.
type Capture struct {
	mu      sync.Mutex
	entries []slog.Record
	prev    *slog.Logger
	prevLvl slog.Level
}

// CaptureForTest makes a Capture the global slog default at debug level.
// Call Restore when done, usually via defer.
func CaptureForTest() *Capture {
	c := &Capture{prev: slog.Default(), prevLvl: level.Level()}
	slog.SetDefault(slog.New(captureHandler{c: c}))
	SetLevel(slog.LevelDebug)
	return c
}

// Restore reinstates the logger and level that were active before capture.
func (c *Capture) Restore() {
	slog.SetDefault(c.prev)
	level.Set(c.prevLvl)
}

// Has reports whether an entry at lvl mentions msg.
func (c *Capture) Has(lvl slog.Level, msg string) bool {
	return c.match(func(r slog.Record) bool {
		return r.Level == lvl && strings.Contains(r.Message, msg)
	})
}

// HasAttr reports whether an entry mentioning msg carries key=value.
func (c *Capture) HasAttr(msg, key, value string) bool {
	return c.match(func(r slog.Record) bool {
		if !strings.Contains(r.Message, msg) {
			return false
		}
		found := false
		r.Attrs(func(a slog.Attr) bool {
			found = a.Key == key && a.Value.String() == value
			return !found
		})
		return found
	})
}

func (c *Capture) match(pred func(slog.Record) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.entries {
		if pred(r) {
			return true
		}
	}
	return false
}

// captureHandler folds attributes bound through With into each record so
// HasAttr sees them regardless of how the logger was built.
type captureHandler struct {
	c     *Capture
	attrs []slog.Attr
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)
	h.c.mu.Lock()
	h.c.entries = append(h.c.entries, r)
	h.c.mu.Unlock()
	return nil
}

func (h captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return captureHandler{c: h.c, attrs: merged}
}

func (h captureHandler) WithGroup(string) slog.Handler { return h }
