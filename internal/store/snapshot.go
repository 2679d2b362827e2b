package store

import (
	"reflect"
	"time"
)

// Snapshot is a point-in-time copy of a Collection. It shares no memory
// with the store that produced it.
type Snapshot[R any] struct {
	Objects   []R       `json:"objects"`
	CreatedAt time.Time `json:"created_at"`
}

// Equal reports whether both snapshots captured the same records, in the
// same order, at the same instant.
func (s Snapshot[R]) Equal(other Snapshot[R]) bool {
	if !s.CreatedAt.Equal(other.CreatedAt) || len(s.Objects) != len(other.Objects) {
		return false
	}
	for i := range s.Objects {
		if !reflect.DeepEqual(s.Objects[i], other.Objects[i]) {
			return false
		}
	}
	return true
}

// SlotSnapshot is a point-in-time copy of a Slot. Object is nil when the
// slot was empty.
type SlotSnapshot[R any] struct {
	Object    *R        `json:"object,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Equal reports whether both snapshots hold equal values taken at the same
// instant.
func (s SlotSnapshot[R]) Equal(other SlotSnapshot[R]) bool {
	if !s.CreatedAt.Equal(other.CreatedAt) {
		return false
	}
	if s.Object == nil || other.Object == nil {
		return s.Object == nil && other.Object == nil
	}
	return reflect.DeepEqual(*s.Object, *other.Object)
}
