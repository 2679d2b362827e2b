package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"keepsake/internal/codec"
	"keepsake/internal/kv"
	"keepsake/internal/logging"
)

var logger = logging.For("store")

// Collection is a durable set of records keyed by their ID.
//
// All methods are safe for concurrent use. Every method takes the
// collection's lock for its whole duration, and the stored count is always
// updated in the same backend transaction as the records it counts.
type Collection[ID Identifier, R Identifiable[ID]] struct {
	mu     sync.Mutex
	st     kv.Store
	ns     string
	bucket []byte
	keys   keyspace
	codec  codec.Codec[R]
	now    func() time.Time
	log    *slog.Logger
}

// NewCollection binds a collection to namespace inside st, creating the
// namespace's bucket if needed. It fails with a *ConstructionError when the
// namespace is malformed or the backend cannot allocate it.
func NewCollection[ID Identifier, R Identifiable[ID]](st kv.Store, namespace string, opts ...Option[R]) (*Collection[ID, R], error) {
	if err := bind(st, namespace); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Collection[ID, R]{
		st:     st,
		ns:     namespace,
		bucket: []byte(namespace),
		keys:   newKeyspace(namespace),
		codec:  o.codec,
		now:    o.now,
		log:    logger.With("namespace", namespace),
	}, nil
}

// Namespace returns the namespace the collection was opened with.
func (c *Collection[ID, R]) Namespace() string {
	return c.ns
}

// Save stores r, replacing any record with the same ID. The count grows
// only when the ID was not present before.
func (c *Collection[ID, R]) Save(r R) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked([]R{r})
}

// SaveMany stores every record or none of them. Encoding happens before
// anything is written, so an *EncodingError leaves the collection untouched.
func (c *Collection[ID, R]) SaveMany(records ...R) error {
	if len(records) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked(records)
}

// SaveOptional stores *r, or does nothing when r is nil.
func (c *Collection[ID, R]) SaveOptional(r *R) error {
	if r == nil {
		return nil
	}
	return c.Save(*r)
}

// Object returns the record stored under id. Missing and undecodable
// entries both report false.
func (c *Collection[ID, R]) Object(id ID) (R, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.objectLocked(id)
}

// Objects resolves ids in order and drops the ones that cannot be found.
func (c *Collection[ID, R]) Objects(ids ...ID) []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]R, 0, len(ids))
	for _, id := range ids {
		if r, ok := c.objectLocked(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// AllObjects returns every decodable record in no particular order.
func (c *Collection[ID, R]) AllObjects() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allLocked()
}

// HasObject reports whether Object(id) would succeed.
func (c *Collection[ID, R]) HasObject(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objectLocked(id)
	return ok
}

// Count returns the number of stored records.
func (c *Collection[ID, R]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked()
}

// ForEach calls fn once per record. The records are read under the lock and
// visited after it is released, so fn sees the contents as of the call and
// may itself call methods on the collection.
func (c *Collection[ID, R]) ForEach(fn func(r R)) {
	c.mu.Lock()
	records := c.allLocked()
	c.mu.Unlock()
	for _, r := range records {
		fn(r)
	}
}

// Delete removes the record stored under id. A missing id is not an error.
func (c *Collection[ID, R]) Delete(id ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked([]ID{id})
}

// DeleteMany removes every listed record in one transaction, skipping ids
// that are not present.
func (c *Collection[ID, R]) DeleteMany(ids ...ID) error {
	if len(ids) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(ids)
}

// DeleteAll drops the namespace's bucket, records and bookkeeping alike.
func (c *Collection[ID, R]) DeleteAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.st.DropBucket(c.bucket); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	c.log.Debug("deleted all records")
	return nil
}

// GenerateSnapshot captures every record together with the current time and
// records that time as the last snapshot date.
func (c *Collection[ID, R]) GenerateSnapshot() (Snapshot[R], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	objects := c.allLocked()
	now := c.now().UTC()
	err := c.st.Update(c.bucket, func(b kv.Bucket) error {
		return putTime(b, c.keys.lastSnapshot(), now)
	})
	if err != nil {
		return Snapshot[R]{}, fmt.Errorf("record snapshot date: %w", err)
	}
	c.log.Info("generated snapshot", "objects", len(objects))
	return Snapshot[R]{Objects: objects, CreatedAt: now}, nil
}

// RestoreSnapshot replaces the whole collection with the records in s.
// Either the collection ends up holding exactly those records and the last
// restore date moves to now, or nothing changes and an error is returned.
func (c *Collection[ID, R]) RestoreSnapshot(s Snapshot[R]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, values, err := c.encodeAll(s.Objects)
	if err != nil {
		return err
	}
	now := c.now().UTC()
	err = c.st.Update(c.bucket, func(b kv.Bucket) error {
		var stale [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if c.keys.isRecord(k) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		var n uint64
		for i := range keys {
			if b.Get(keys[i]) == nil {
				n++
			}
			if err := b.Put(keys[i], values[i]); err != nil {
				return err
			}
		}
		if err := c.putCount(b, n); err != nil {
			return err
		}
		return putTime(b, c.keys.lastRestore(), now)
	})
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	c.log.Info("restored snapshot", "objects", len(s.Objects), "snapshot_created_at", s.CreatedAt)
	return nil
}

// LastSnapshotDate returns when GenerateSnapshot last succeeded.
func (c *Collection[ID, R]) LastSnapshotDate() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readTime(c.st, c.bucket, c.keys.lastSnapshot())
}

// LastRestoreDate returns when RestoreSnapshot last succeeded.
func (c *Collection[ID, R]) LastRestoreDate() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return readTime(c.st, c.bucket, c.keys.lastRestore())
}

func (c *Collection[ID, R]) saveLocked(records []R) error {
	keys, values, err := c.encodeAll(records)
	if err != nil {
		return err
	}
	var added uint64
	err = c.st.Update(c.bucket, func(b kv.Bucket) error {
		added = 0
		n := c.txCount(b)
		for i := range keys {
			if b.Get(keys[i]) == nil {
				added++
			}
			if err := b.Put(keys[i], values[i]); err != nil {
				return err
			}
		}
		if added == 0 {
			return nil
		}
		return c.putCount(b, n+added)
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	c.log.Debug("saved records", "records", len(records), "added", added)
	return nil
}

func (c *Collection[ID, R]) deleteLocked(ids []ID) error {
	var removed uint64
	err := c.st.Update(c.bucket, func(b kv.Bucket) error {
		removed = 0
		n := c.txCount(b)
		for _, id := range ids {
			key := c.keys.record(renderID(id))
			if b.Get(key) == nil {
				continue
			}
			if err := b.Delete(key); err != nil {
				return err
			}
			removed++
		}
		if removed == 0 {
			return nil
		}
		if removed > n {
			n = removed
		}
		return c.putCount(b, n-removed)
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if removed > 0 {
		c.log.Debug("deleted records", "removed", removed)
	}
	return nil
}

func (c *Collection[ID, R]) objectLocked(id ID) (R, bool) {
	var zero R
	key := c.keys.record(renderID(id))
	data, err := c.st.Get(c.bucket, key)
	if err != nil {
		c.log.Error("read record", "key", string(key), "err", err)
		return zero, false
	}
	if data == nil {
		return zero, false
	}
	r, err := c.codec.Decode(data)
	if err != nil {
		c.log.Warn("skipping corrupt record", "key", string(key), "err", err)
		return zero, false
	}
	return r, true
}

func (c *Collection[ID, R]) allLocked() []R {
	n := c.countLocked()
	if n == 0 {
		return []R{}
	}
	out := make([]R, 0, n)
	err := c.st.ForEach(c.bucket, func(k, v []byte) error {
		if !c.keys.isRecord(k) {
			return nil
		}
		r, err := c.codec.Decode(v)
		if err != nil {
			c.log.Warn("skipping corrupt record", "key", string(k), "err", err)
			return nil
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		c.log.Error("list records", "err", err)
	}
	return out
}

func (c *Collection[ID, R]) countLocked() int {
	data, err := c.st.Get(c.bucket, c.keys.count())
	if err != nil {
		c.log.Error("read count", "err", err)
		return 0
	}
	if data == nil {
		return 0
	}
	n, err := decodeCount(data)
	if err != nil {
		c.log.Warn("corrupt count, recounting", "err", err)
		return c.recount()
	}
	return int(n)
}

// recount derives the count from the keys present, for when the stored
// count cannot be read.
func (c *Collection[ID, R]) recount() int {
	keys, err := c.st.Keys(c.bucket)
	if err != nil {
		c.log.Error("list keys", "err", err)
		return 0
	}
	n := 0
	for _, k := range keys {
		if c.keys.isRecord([]byte(k)) {
			n++
		}
	}
	return n
}

func (c *Collection[ID, R]) txCount(b kv.Bucket) uint64 {
	data := b.Get(c.keys.count())
	if data == nil {
		return 0
	}
	n, err := decodeCount(data)
	if err == nil {
		return n
	}
	c.log.Warn("corrupt count, recounting", "err", err)
	n = 0
	_ = b.ForEach(func(k, _ []byte) error {
		if c.keys.isRecord(k) {
			n++
		}
		return nil
	})
	return n
}

func (c *Collection[ID, R]) putCount(b kv.Bucket, n uint64) error {
	data, err := encodeCount(n)
	if err != nil {
		return fmt.Errorf("encode count: %w", err)
	}
	return b.Put(c.keys.count(), data)
}

func (c *Collection[ID, R]) encodeAll(records []R) (keys, values [][]byte, err error) {
	keys = make([][]byte, len(records))
	values = make([][]byte, len(records))
	for i, r := range records {
		keys[i] = c.keys.record(renderID(r.ID()))
		values[i], err = c.codec.Encode(r)
		if err != nil {
			return nil, nil, &EncodingError{Namespace: c.ns, Key: string(keys[i]), Codec: c.codec.Name(), cause: err}
		}
	}
	return keys, values, nil
}

// bind validates namespace and makes sure st can hold its bucket.
func bind(st kv.Store, namespace string) error {
	if reason := validateNamespace(namespace); reason != "" {
		return &ConstructionError{Namespace: namespace, Reason: reason}
	}
	if st == nil {
		return &ConstructionError{Namespace: namespace, Reason: "no backend"}
	}
	if err := st.Update([]byte(namespace), func(kv.Bucket) error { return nil }); err != nil {
		return &ConstructionError{Namespace: namespace, Reason: "backend refused namespace", cause: err}
	}
	return nil
}
