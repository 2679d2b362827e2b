package sqlite

import (
	"path/filepath"
	"testing"

	"keepsake/internal/kv"
	"keepsake/internal/kv/kvtest"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return tempStore(t) })
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestOpenInvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/test.sqlite"); err == nil {
		t.Fatal("opening db in nonexistent dir should fail")
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
}

func TestEmptyValueIsPresent(t *testing.T) {
	s := tempStore(t)
	if err := s.Set([]byte("b"), []byte("k"), nil); err != nil {
		t.Fatal(err)
	}
	val, err := s.Get([]byte("b"), []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if val == nil {
		t.Fatal("stored empty value should read back non-nil")
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set([]byte("b"), []byte("k"), []byte("durable")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	val, err := s2.Get([]byte("b"), []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "durable" {
		t.Fatalf("expected durable after reopen, got %q", val)
	}
}
