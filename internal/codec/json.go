package codec

import gojson "github.com/goccy/go-json"

// JSON is a JSON codec backed by github.com/goccy/go-json.
//
// Non-finite floats (NaN, ±Inf) and values such as channels or funcs are
// rejected by Encode. The zero value is ready to use.
type JSON[T any] struct{}

// Encode marshals v to JSON.
func (JSON[T]) Encode(v T) ([]byte, error) { return gojson.Marshal(v) }

// Decode unmarshals data into a fresh T.
func (JSON[T]) Decode(data []byte) (T, error) {
	var v T
	err := gojson.Unmarshal(data, &v)
	return v, err
}

// Name returns "json".
func (JSON[T]) Name() string { return "json" }
