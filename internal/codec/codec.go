// Package codec turns records into bytes and back.
//
// Switching the codec of an existing namespace is a breaking change: entries
// written by the old codec will no longer decode and read as absent.
package codec

import "errors"

// Codec encodes and decodes values of one record type.
// Implementations must be safe for concurrent use.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
	Name() string
}

// ErrNoAllocator is returned by Proto.Decode when New is nil.
var ErrNoAllocator = errors.New("proto codec has no allocator")
