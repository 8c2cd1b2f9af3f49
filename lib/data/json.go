// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"
)

// bytesEncoding is the base64 variant for {"$bytes": ...}: standard
// alphabet, no padding.
var bytesEncoding = base64.StdEncoding.WithPadding(base64.NoPadding)

// UnmarshalJSON decodes raw JSON into a Value. Numbers must be
// integers within int64 range; floats are rejected.
func UnmarshalJSON(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return fromJSON(v)
}

func fromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil, bool, string:
		return t, nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("non-integer number %q not allowed", s)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer out of range: %q", s)
		}
		return n, nil
	case []any:
		arr := make(Array, len(t))
		for i, item := range t {
			converted, err := fromJSON(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case map[string]any:
		return objectFromJSON(t)
	default:
		return nil, fmt.Errorf("unexpected JSON type %T", v)
	}
}

func objectFromJSON(m map[string]any) (Value, error) {
	// Sentinel single-key objects for the non-JSON kinds.
	if len(m) == 1 {
		if link, ok := m["$link"]; ok {
			s, ok := link.(string)
			if !ok {
				return nil, fmt.Errorf("$link value must be a string")
			}
			c, err := cid.Decode(s)
			if err != nil {
				return nil, fmt.Errorf("invalid $link CID: %w", err)
			}
			return CIDLink(c), nil
		}
		if b64, ok := m["$bytes"]; ok {
			s, ok := b64.(string)
			if !ok {
				return nil, fmt.Errorf("$bytes value must be a string")
			}
			decoded, err := bytesEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("invalid $bytes encoding: %w", err)
			}
			return Bytes(decoded), nil
		}
	}
	if typ, ok := m["$type"].(string); ok && typ == "blob" {
		if blob, err := blobFromJSON(m); err == nil {
			return blob, nil
		}
		// Malformed blob shapes fall through as plain objects so
		// unknown data still round-trips.
	}
	obj := make(Object, len(m))
	for k, item := range m {
		converted, err := fromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		obj[k] = converted
	}
	return obj, nil
}

func blobFromJSON(m map[string]any) (Blob, error) {
	ref, ok := m["ref"].(map[string]any)
	if !ok {
		return Blob{}, fmt.Errorf("blob missing ref")
	}
	link, ok := ref["$link"].(string)
	if !ok {
		return Blob{}, fmt.Errorf("blob ref missing $link")
	}
	c, err := cid.Decode(link)
	if err != nil {
		return Blob{}, fmt.Errorf("blob ref: %w", err)
	}
	mime, ok := m["mimeType"].(string)
	if !ok {
		return Blob{}, fmt.Errorf("blob missing mimeType")
	}
	sizeNum, ok := m["size"].(json.Number)
	if !ok {
		return Blob{}, fmt.Errorf("blob missing size")
	}
	size, err := sizeNum.Int64()
	if err != nil {
		return Blob{}, fmt.Errorf("blob size: %w", err)
	}
	return Blob{Ref: CIDLink(c), MimeType: mime, Size: size}, nil
}

// MarshalJSON encodes a Value to JSON with sorted object keys.
func MarshalJSON(v Value) ([]byte, error) {
	plain, err := toJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(plain)
}

func toJSON(v Value) (any, error) {
	switch t := v.(type) {
	case nil, bool, int64, string:
		return t, nil
	case Bytes:
		return map[string]any{"$bytes": bytesEncoding.EncodeToString(t)}, nil
	case CIDLink:
		return map[string]any{"$link": t.String()}, nil
	case Blob:
		return map[string]any{
			"$type":    "blob",
			"ref":      map[string]any{"$link": t.Ref.String()},
			"mimeType": t.MimeType,
			"size":     t.Size,
		}, nil
	case Array:
		arr := make([]any, len(t))
		for i, item := range t {
			converted, err := toJSON(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = converted
		}
		return arr, nil
	case Object:
		obj := make(map[string]any, len(t))
		for k, item := range t {
			converted, err := toJSON(item)
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

// FromAny converts a typed struct (or any JSON-marshalable value)
// into a Value by round-tripping through JSON.
func FromAny(v any) (Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return UnmarshalJSON(raw)
}

// ToStruct decodes a Value into a typed struct by round-tripping
// through JSON.
func ToStruct(v Value, out any) error {
	raw, err := MarshalJSON(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", out, err)
	}
	return nil
}
