// Package kv defines the bucket-scoped key-value provider that record stores
// are built on. Each store namespace owns exactly one bucket.
package kv

// Store is an abstract key-value storage interface backed by buckets.
// Implementations return copies of stored values, treat a missing bucket as
// empty, and make deletes on missing buckets or keys a no-op.
type Store interface {
	Get(bucket, key []byte) ([]byte, error)
	Set(bucket, key, value []byte) error
	Delete(bucket, key []byte) error
	ForEach(bucket []byte, fn func(key, value []byte) error) error
	Snapshot(bucket []byte) (map[string][]byte, error)
	Keys(bucket []byte) ([]string, error)

	// Update runs fn inside a single read-write transaction on bucket,
	// creating the bucket if needed. Either every write made through b is
	// committed or none is: a non-nil error from fn rolls the transaction back.
	Update(bucket []byte, fn func(b Bucket) error) error

	// DropBucket removes bucket and everything in it.
	DropBucket(bucket []byte) error

	Close() error
}

// Bucket is the view of one bucket inside an Update transaction.
// Slices returned by Get are only valid until the transaction ends, and
// fn passed to ForEach must not modify the bucket.
type Bucket interface {
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	ForEach(fn func(key, value []byte) error) error
}
