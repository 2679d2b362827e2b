package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"keepsake/internal/kv"
	boltstore "keepsake/internal/kv/bolt"
	"keepsake/internal/kv/memory"
	"keepsake/internal/kv/sqlite"
)

type user struct {
	UserID int     `json:"id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score,omitempty"`
}

func (u user) ID() int { return u.UserID }

type tag struct {
	Label string `json:"label"`
}

func (t tag) ID() string { return t.Label }

type backendFactory func(t *testing.T) kv.Store

var backends = []struct {
	name string
	open backendFactory
}{
	{"memory", func(t *testing.T) kv.Store { return memory.New() }},
	{"bolt", func(t *testing.T) kv.Store {
		st, err := boltstore.Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}},
	{"sqlite", func(t *testing.T) kv.Store {
		st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}},
}

// eachBackend runs fn once per kv backend with a fresh store.
func eachBackend(t *testing.T, fn func(t *testing.T, st kv.Store)) {
	t.Helper()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

func newUsers(t *testing.T, st kv.Store, opts ...Option[user]) *Collection[int, user] {
	t.Helper()
	c, err := NewCollection[int, user](st, "users", opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
