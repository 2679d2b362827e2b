// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"errors"
	"sort"
	"testing"

	"keepsake/internal/kv"
)

// Factory returns a fresh, empty store. The factory is responsible for
// closing it when the test ends.
type Factory func(t *testing.T) kv.Store

var bucket = []byte("prefs")

// Run exercises the kv.Store contract against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		val, err := s.Get([]byte("no-bucket"), []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if val != nil {
			t.Fatalf("expected nil for missing bucket, got %q", val)
		}
		if err := s.Set(bucket, []byte("other"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		val, err = s.Get(bucket, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if val != nil {
			t.Fatalf("expected nil for missing key, got %q", val)
		}
	})

	t.Run("SetOverwrite", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "k", "v1")
		mustSet(t, s, "k", "v2")
		val, err := s.Get(bucket, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %q", val)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		s := newStore(t)
		if err := s.Delete([]byte("no-bucket"), []byte("k")); err != nil {
			t.Fatal(err)
		}
		mustSet(t, s, "k", "v")
		if err := s.Delete(bucket, []byte("k")); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(bucket, []byte("k")); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("KeysAndSnapshot", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "a", "1")
		mustSet(t, s, "b", "2")
		if err := s.Set([]byte("elsewhere"), []byte("c"), []byte("3")); err != nil {
			t.Fatal(err)
		}
		keys, err := s.Keys(bucket)
		if err != nil {
			t.Fatal(err)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Fatalf("Keys() = %v, want [a b]", keys)
		}
		snap, err := s.Snapshot(bucket)
		if err != nil {
			t.Fatal(err)
		}
		if len(snap) != 2 || string(snap["a"]) != "1" || string(snap["b"]) != "2" {
			t.Fatalf("unexpected snapshot: %v", snap)
		}
		n := 0
		if err := s.ForEach(bucket, func(_, _ []byte) error { n++; return nil }); err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("ForEach visited %d entries, want 2", n)
		}
	})

	t.Run("MissingBucketIsEmpty", func(t *testing.T) {
		s := newStore(t)
		keys, err := s.Keys([]byte("no-bucket"))
		if err != nil || len(keys) != 0 {
			t.Fatalf("Keys() = %v, %v", keys, err)
		}
		snap, err := s.Snapshot([]byte("no-bucket"))
		if err != nil || len(snap) != 0 {
			t.Fatalf("Snapshot() = %v, %v", snap, err)
		}
		err = s.ForEach([]byte("no-bucket"), func(k, _ []byte) error {
			t.Errorf("visited %q in a missing bucket", k)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("ReturnedValuesAreCopies", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "k", "original")

		snap, err := s.Snapshot(bucket)
		if err != nil {
			t.Fatal(err)
		}
		snap["k"][0] = 'X'
		got, _ := s.Get(bucket, []byte("k"))
		got[1] = 'Y'

		var kept []byte
		if err := s.ForEach(bucket, func(_, v []byte) error { kept = v; return nil }); err != nil {
			t.Fatal(err)
		}
		mustSet(t, s, "k", "replaced")

		if string(kept) != "original" {
			t.Fatalf("value from ForEach changed to %q", kept)
		}
		val, _ := s.Get(bucket, []byte("k"))
		if string(val) != "replaced" {
			t.Fatalf("store value = %q, want replaced", val)
		}
	})

	t.Run("UpdateAtomic", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "a", "before")
		boom := errors.New("boom")
		err := s.Update(bucket, func(b kv.Bucket) error {
			if err := b.Put([]byte("a"), []byte("after")); err != nil {
				return err
			}
			if err := b.Put([]byte("b"), []byte("new")); err != nil {
				return err
			}
			if string(b.Get([]byte("b"))) != "new" {
				t.Error("write not visible inside transaction")
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want %v", err, boom)
		}
		snap, err := s.Snapshot(bucket)
		if err != nil {
			t.Fatal(err)
		}
		if len(snap) != 1 || string(snap["a"]) != "before" {
			t.Fatalf("rollback left %v", snap)
		}

		err = s.Update(bucket, func(b kv.Bucket) error {
			if err := b.Delete([]byte("a")); err != nil {
				return err
			}
			return b.Put([]byte("b"), []byte("new"))
		})
		if err != nil {
			t.Fatal(err)
		}
		snap, _ = s.Snapshot(bucket)
		if len(snap) != 1 || string(snap["b"]) != "new" {
			t.Fatalf("commit left %v", snap)
		}
	})

	t.Run("UpdateForEach", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "a", "1")
		mustSet(t, s, "b", "2")
		var seen []string
		err := s.Update(bucket, func(b kv.Bucket) error {
			return b.ForEach(func(k, _ []byte) error {
				seen = append(seen, string(k))
				return nil
			})
		})
		if err != nil {
			t.Fatal(err)
		}
		sort.Strings(seen)
		if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
			t.Fatalf("Bucket.ForEach saw %v", seen)
		}
	})

	t.Run("DropBucket", func(t *testing.T) {
		s := newStore(t)
		mustSet(t, s, "a", "1")
		if err := s.Set([]byte("elsewhere"), []byte("a"), []byte("kept")); err != nil {
			t.Fatal(err)
		}
		if err := s.DropBucket(bucket); err != nil {
			t.Fatal(err)
		}
		if err := s.DropBucket([]byte("no-bucket")); err != nil {
			t.Fatal(err)
		}
		keys, err := s.Keys(bucket)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 0 {
			t.Fatalf("dropped bucket still has %v", keys)
		}
		val, _ := s.Get([]byte("elsewhere"), []byte("a"))
		if string(val) != "kept" {
			t.Fatal("buckets should be isolated")
		}
	})
}

func mustSet(t *testing.T, s kv.Store, key, value string) {
	t.Helper()
	if err := s.Set(bucket, []byte(key), []byte(value)); err != nil {
		t.Fatal(err)
	}
}
