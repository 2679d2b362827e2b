// Package memory is an in-process kv.Store for tests and ephemeral stores.
package memory

import (
	"errors"
	"maps"
	"sync"

	"keepsake/internal/kv"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store closed")

// Store keeps buckets in maps. Thread-safe for concurrent reads and writes.
// Values are copied on the way in and on the way out.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
	closed  bool
}

var _ kv.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		buckets: make(map[string]map[string][]byte),
	}
}

func (s *Store) Get(bucket, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.buckets[string(bucket)][string(key)]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

func (s *Store) Set(bucket, key, value []byte) error {
	return s.Update(bucket, func(b kv.Bucket) error {
		return b.Put(key, value)
	})
}

func (s *Store) Delete(bucket, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.buckets[string(bucket)], string(key))
	return nil
}

// ForEach visits a point-in-time copy of bucket, so fn may call back
// into the store.
func (s *Store) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	snap, err := s.Snapshot(bucket)
	if err != nil {
		return err
	}
	for k, v := range snap {
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Snapshot(bucket []byte) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	result := make(map[string][]byte, len(s.buckets[string(bucket)]))
	for k, v := range s.buckets[string(bucket)] {
		result[k] = clone(v)
	}
	return result, nil
}

func (s *Store) Keys(bucket []byte) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(s.buckets[string(bucket)]))
	for k := range s.buckets[string(bucket)] {
		keys = append(keys, k)
	}
	return keys, nil
}

// Update stages fn's writes on a copy of the bucket and swaps it in only
// when fn returns nil.
func (s *Store) Update(bucket []byte, fn func(b kv.Bucket) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	staged := &txBucket{entries: maps.Clone(s.buckets[string(bucket)])}
	if staged.entries == nil {
		staged.entries = make(map[string][]byte)
	}
	if err := fn(staged); err != nil {
		return err
	}
	s.buckets[string(bucket)] = staged.entries
	return nil
}

func (s *Store) DropBucket(bucket []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.buckets, string(bucket))
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	return nil
}

// txBucket is the staged bucket handed to Update callbacks. Values in the
// map are never mutated in place, so sharing them with the committed map
// is safe.
type txBucket struct {
	entries map[string][]byte
}

func (b *txBucket) Get(key []byte) []byte {
	return b.entries[string(key)]
}

func (b *txBucket) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("key required")
	}
	b.entries[string(key)] = clone(value)
	return nil
}

func (b *txBucket) Delete(key []byte) error {
	delete(b.entries, string(key))
	return nil
}

func (b *txBucket) ForEach(fn func(key, value []byte) error) error {
	for k, v := range b.entries {
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
