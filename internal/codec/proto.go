package codec

import "google.golang.org/protobuf/proto"

// Proto encodes records that are protobuf messages in the binary wire format.
//
// New must return an empty, non-nil message to decode into. Encode fails on
// messages the runtime refuses to marshal, e.g. strings with invalid UTF-8 or
// missing required fields.
type Proto[T proto.Message] struct {
	New func() T
}

// Encode marshals v deterministically so equal messages produce equal bytes.
func (Proto[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

// Decode unmarshals data into a message obtained from New.
func (c Proto[T]) Decode(data []byte) (T, error) {
	if c.New == nil {
		var zero T
		return zero, ErrNoAllocator
	}
	v := c.New()
	if err := proto.Unmarshal(data, v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Name returns "proto".
func (Proto[T]) Name() string { return "proto" }
