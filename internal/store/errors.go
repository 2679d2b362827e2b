package store

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction matches every *ConstructionError.
	ErrConstruction = errors.New("store construction failed")

	// ErrEncoding matches every *EncodingError.
	ErrEncoding = errors.New("record encoding failed")
)

// ConstructionError reports that no store could be bound to Namespace,
// either because the name is malformed or the backend refused the bucket.
//
// The underlying error (if any) can be accessed via errors.Unwrap.
type ConstructionError struct {
	Namespace string
	Reason    string
	cause     error
}

func (e *ConstructionError) Error() string {
	msg := fmt.Sprintf("store %q: %s", e.Namespace, e.Reason)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ConstructionError) Unwrap() error { return e.cause }

func (e *ConstructionError) Is(target error) bool { return target == ErrConstruction }

// EncodingError reports that the codec rejected a record. No state changes
// accompany it.
//
// The codec's error can be accessed via errors.Unwrap.
type EncodingError struct {
	Namespace string
	Key       string
	Codec     string
	cause     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("store %q: encode %s with %s: %v", e.Namespace, e.Key, e.Codec, e.cause)
}

func (e *EncodingError) Unwrap() error { return e.cause }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }
