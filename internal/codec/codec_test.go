package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type profile struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags,omitempty"`
}

var (
	_ Codec[profile]                 = JSON[profile]{}
	_ Codec[*wrapperspb.StringValue] = Proto[*wrapperspb.StringValue]{}
)

func TestJSONRoundTrip(t *testing.T) {
	c := JSON[profile]{}
	in := profile{ID: 7, Name: "John", Score: 1.5, Tags: []string{"a"}}

	data, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, "json", c.Name())
}

func TestJSONScalar(t *testing.T) {
	c := JSON[string]{}
	data, err := c.Encode("dark-mode")
	require.NoError(t, err)
	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "dark-mode", out)
}

func TestJSONRejectsNonFinite(t *testing.T) {
	c := JSON[profile]{}
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := c.Encode(profile{ID: 1, Score: f})
		assert.Error(t, err, "score %v", f)
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	_, err := JSON[profile]{}.Decode([]byte("not-json"))
	assert.Error(t, err)
}

func TestProtoRoundTrip(t *testing.T) {
	c := Proto[*structpb.Struct]{New: func() *structpb.Struct { return &structpb.Struct{} }}
	in, err := structpb.NewStruct(map[string]any{"id": "abc", "volume": 11.0})
	require.NoError(t, err)

	data, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)
	assert.True(t, proto.Equal(in, out))
	assert.Equal(t, "proto", c.Name())
}

func TestProtoDeterministic(t *testing.T) {
	c := Proto[*structpb.Struct]{}
	in, err := structpb.NewStruct(map[string]any{"a": 1.0, "b": 2.0, "c": 3.0, "d": 4.0})
	require.NoError(t, err)
	first, err := c.Encode(in)
	require.NoError(t, err)
	for range 10 {
		again, err := c.Encode(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestProtoRejectsInvalidUTF8(t *testing.T) {
	c := Proto[*wrapperspb.StringValue]{New: func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }}
	_, err := c.Encode(wrapperspb.String("\xff\xfe"))
	assert.Error(t, err)
}

func TestProtoDecodeWithoutAllocator(t *testing.T) {
	_, err := Proto[*wrapperspb.StringValue]{}.Decode(nil)
	assert.ErrorIs(t, err, ErrNoAllocator)
}

func TestProtoDecodeMalformed(t *testing.T) {
	c := Proto[*wrapperspb.StringValue]{New: func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }}
	_, err := c.Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
