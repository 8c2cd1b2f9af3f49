// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"fmt"
	"math"

	"github.com/tapestry-foundation/tapestry/lib/codec"
)

// UnmarshalCBOR decodes a DAG-CBOR block into a Value. Tag 42 items
// become CIDLinks; maps shaped as blob references become Blobs;
// floats are rejected.
func UnmarshalCBOR(raw []byte) (Value, error) {
	var v any
	if err := codec.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode CBOR: %w", err)
	}
	return fromCBOR(v)
}

func fromCBOR(v any) (Value, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case int64:
		return t, nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of int64 range", t)
		}
		return int64(t), nil
	case float64, float32:
		return nil, fmt.Errorf("float not allowed in record data")
	case []byte:
		return Bytes(t), nil
	case codec.Tag:
		if t.Number != codec.TagCIDLink {
			return nil, fmt.Errorf("unexpected CBOR tag %d", t.Number)
		}
		content, ok := t.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("link tag content is %T, want bytes", t.Content)
		}
		c, err := codec.CIDFromLink(content)
		if err != nil {
			return nil, err
		}
		return CIDLink(c), nil
	case []any:
		arr := make(Array, len(t))
		for i, item := range t {
			converted, err := fromCBOR(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, item := range t {
			converted, err := fromCBOR(item)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			obj[k] = converted
		}
		if blob, ok := blobFromObject(obj); ok {
			return blob, nil
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unexpected CBOR type %T", v)
	}
}

func blobFromObject(obj Object) (Blob, bool) {
	if typ, ok := obj["$type"].(string); !ok || typ != "blob" {
		return Blob{}, false
	}
	ref, ok := obj["ref"].(CIDLink)
	if !ok {
		return Blob{}, false
	}
	mime, ok := obj["mimeType"].(string)
	if !ok {
		return Blob{}, false
	}
	size, ok := obj["size"].(int64)
	if !ok {
		return Blob{}, false
	}
	return Blob{Ref: ref, MimeType: mime, Size: size}, true
}

// MarshalCBOR encodes a Value to deterministic DAG-CBOR.
func MarshalCBOR(v Value) ([]byte, error) {
	plain, err := toCBOR(v)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(plain)
}

func toCBOR(v Value) (any, error) {
	switch t := v.(type) {
	case nil, bool, int64, string:
		return t, nil
	case Bytes:
		return []byte(t), nil
	case CIDLink:
		return codec.LinkTag(t.CID()), nil
	case Blob:
		return map[string]any{
			"$type":    "blob",
			"ref":      codec.LinkTag(t.Ref.CID()),
			"mimeType": t.MimeType,
			"size":     t.Size,
		}, nil
	case Array:
		arr := make([]any, len(t))
		for i, item := range t {
			converted, err := toCBOR(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case Object:
		obj := make(map[string]any, len(t))
		for k, item := range t {
			converted, err := toCBOR(item)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			obj[k] = converted
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}
