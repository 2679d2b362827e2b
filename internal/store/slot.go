package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"keepsake/internal/codec"
	"keepsake/internal/kv"
)

// Slot is a durable holder for at most one record. Scalars and structs
// are stored the same way, wrapped in a one-field envelope.
type Slot[R any] struct {
	mu     sync.Mutex
	st     kv.Store
	ns     string
	bucket []byte
	keys   keyspace
	codec  codec.Codec[R]
	now    func() time.Time
	log    *slog.Logger
}

// NewSlot binds a slot to namespace inside st. It fails with a
// *ConstructionError under the same conditions as NewCollection.
func NewSlot[R any](st kv.Store, namespace string, opts ...Option[R]) (*Slot[R], error) {
	if err := bind(st, namespace); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Slot[R]{
		st:     st,
		ns:     namespace,
		bucket: []byte(namespace),
		keys:   newKeyspace(namespace),
		codec:  o.codec,
		now:    o.now,
		log:    logger.With("namespace", namespace, "slot", true),
	}, nil
}

// Namespace returns the namespace the slot was opened with.
func (s *Slot[R]) Namespace() string {
	return s.ns
}

// Save replaces the slot's value with r.
func (s *Slot[R]) Save(r R) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.encode(r)
	if err != nil {
		return err
	}
	if err := s.st.Set(s.bucket, s.keys.single(), data); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Object returns the stored value. An empty slot and an undecodable value
// both report false.
func (s *Slot[R]) Object() (R, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectLocked()
}

// Delete clears the slot by dropping the namespace's bucket.
func (s *Slot[R]) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.DropBucket(s.bucket); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// GenerateSnapshot captures the current value, if any, with the current time
// and records that time as the last snapshot date.
func (s *Slot[R]) GenerateSnapshot() (SlotSnapshot[R], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap SlotSnapshot[R]
	if r, ok := s.objectLocked(); ok {
		snap.Object = &r
	}
	snap.CreatedAt = s.now().UTC()
	err := s.st.Update(s.bucket, func(b kv.Bucket) error {
		return putTime(b, s.keys.singleLastSnapshot(), snap.CreatedAt)
	})
	if err != nil {
		return SlotSnapshot[R]{}, fmt.Errorf("record snapshot date: %w", err)
	}
	s.log.Info("generated snapshot", "empty", snap.Object == nil)
	return snap, nil
}

// RestoreSnapshot makes the slot hold exactly snap's value, clearing it when
// snap is empty. On error the previous value and last restore date are kept.
func (s *Slot[R]) RestoreSnapshot(snap SlotSnapshot[R]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	if snap.Object != nil {
		var err error
		if data, err = s.encode(*snap.Object); err != nil {
			return err
		}
	}
	now := s.now().UTC()
	err := s.st.Update(s.bucket, func(b kv.Bucket) error {
		var err error
		if snap.Object == nil {
			err = b.Delete(s.keys.single())
		} else {
			err = b.Put(s.keys.single(), data)
		}
		if err != nil {
			return err
		}
		return putTime(b, s.keys.singleLastRestore(), now)
	})
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	s.log.Info("restored snapshot", "empty", snap.Object == nil, "snapshot_created_at", snap.CreatedAt)
	return nil
}

// LastSnapshotDate returns when GenerateSnapshot last succeeded.
func (s *Slot[R]) LastSnapshotDate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readTime(s.st, s.bucket, s.keys.singleLastSnapshot())
}

// LastRestoreDate returns when RestoreSnapshot last succeeded.
func (s *Slot[R]) LastRestoreDate() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readTime(s.st, s.bucket, s.keys.singleLastRestore())
}

func (s *Slot[R]) encode(r R) ([]byte, error) {
	raw, err := s.codec.Encode(r)
	if err != nil {
		return nil, &EncodingError{Namespace: s.ns, Key: string(s.keys.single()), Codec: s.codec.Name(), cause: err}
	}
	data, err := wrapSingle(raw)
	if err != nil {
		return nil, &EncodingError{Namespace: s.ns, Key: string(s.keys.single()), Codec: "envelope", cause: err}
	}
	return data, nil
}

func (s *Slot[R]) objectLocked() (R, bool) {
	var zero R
	data, err := s.st.Get(s.bucket, s.keys.single())
	if err != nil {
		s.log.Error("read slot", "err", err)
		return zero, false
	}
	if data == nil {
		return zero, false
	}
	raw, err := unwrapSingle(data)
	if err != nil {
		s.log.Warn("skipping corrupt slot envelope", "err", err)
		return zero, false
	}
	r, err := s.codec.Decode(raw)
	if err != nil {
		s.log.Warn("skipping corrupt slot value", "err", err)
		return zero, false
	}
	return r, true
}
