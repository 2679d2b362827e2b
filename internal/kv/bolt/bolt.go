package bolt

import (
	"errors"
	"fmt"

	"keepsake/internal/kv"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

// Store implements kv.Store using bbolt (embedded B+ tree).
// Every namespace lives in its own top-level bucket.
type Store struct {
	db *bolt.DB
}

var _ kv.Store = (*Store)(nil)

// Open creates or opens a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(bucket, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v != nil {
			val = make([]byte, len(v))
			copy(val, v)
		}
		return nil
	})
	return val, err
}

func (s *Store) Set(bucket, key, value []byte) error {
	return s.Update(bucket, func(b kv.Bucket) error {
		return b.Put(key, value)
	})
}

func (s *Store) Delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// ForEach visits every entry of bucket. Keys and values are copied before
// fn sees them, so fn may keep them past the call.
func (s *Store) ForEach(bucket []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return fn(clone(k), clone(v))
		})
	})
}

func (s *Store) Snapshot(bucket []byte) (map[string][]byte, error) {
	result := make(map[string][]byte)
	err := s.ForEach(bucket, func(k, v []byte) error {
		result[string(k)] = v
		return nil
	})
	return result, err
}

func (s *Store) Keys(bucket []byte) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *Store) Update(bucket []byte, fn func(b kv.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		return fn(b)
	})
}

func (s *Store) DropBucket(bucket []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bucket)
		if errors.Is(err, berrors.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
