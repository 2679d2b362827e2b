package store

import (
	"fmt"
	"time"

	"keepsake/internal/kv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Bookkeeping values are protobuf well-known types so every backend stores
// them the same way.

func encodeCount(n uint64) ([]byte, error) {
	return proto.Marshal(wrapperspb.UInt64(n))
}

func decodeCount(data []byte) (uint64, error) {
	var v wrapperspb.UInt64Value
	if err := proto.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v.GetValue(), nil
}

func encodeTime(t time.Time) ([]byte, error) {
	ts := timestamppb.New(t)
	if err := ts.CheckValid(); err != nil {
		return nil, err
	}
	return proto.Marshal(ts)
}

func decodeTime(data []byte) (time.Time, error) {
	var ts timestamppb.Timestamp
	if err := proto.Unmarshal(data, &ts); err != nil {
		return time.Time{}, err
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, err
	}
	return ts.AsTime(), nil
}

// wrapSingle puts an encoded record into the slot envelope. The envelope
// keeps "stored" distinct from "never stored" even when the record encodes
// to zero bytes.
func wrapSingle(record []byte) ([]byte, error) {
	return proto.Marshal(wrapperspb.Bytes(record))
}

func unwrapSingle(data []byte) ([]byte, error) {
	var v wrapperspb.BytesValue
	if err := proto.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v.GetValue(), nil
}

func putTime(b kv.Bucket, key []byte, t time.Time) error {
	data, err := encodeTime(t)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.Put(key, data)
}

// readTime loads a timestamp written by putTime. A missing or unreadable
// entry reports ok=false.
func readTime(st kv.Store, bucket, key []byte) (time.Time, bool) {
	data, err := st.Get(bucket, key)
	if err != nil {
		logger.Error("read timestamp", "key", string(key), "err", err)
		return time.Time{}, false
	}
	if data == nil {
		return time.Time{}, false
	}
	t, err := decodeTime(data)
	if err != nil {
		logger.Warn("skipping corrupt timestamp", "key", string(key), "err", err)
		return time.Time{}, false
	}
	return t, true
}
