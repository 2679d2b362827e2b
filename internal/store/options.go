package store

import (
	"time"

	"keepsake/internal/codec"
)

type options[R any] struct {
	codec codec.Codec[R]
	now   func() time.Time
}

// Option configures a Collection or Slot.
type Option[R any] func(*options[R])

// WithCodec replaces the default JSON codec.
func WithCodec[R any](c codec.Codec[R]) Option[R] {
	return func(o *options[R]) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithClock replaces time.Now as the source of snapshot and restore times.
func WithClock[R any](now func() time.Time) Option[R] {
	return func(o *options[R]) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions[R any](opts []Option[R]) options[R] {
	o := options[R]{
		codec: codec.JSON[R]{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
