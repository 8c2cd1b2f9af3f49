// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// Value is a node in the record data model. The dynamic type is one
// of: nil, bool, int64, string, Bytes, CIDLink, Blob, Array, Object.
// Both codecs in this package produce and consume only these kinds.
type Value = any

// Bytes is raw byte data. JSON form: {"$bytes": "<base64>"} with
// standard alphabet and no padding.
type Bytes []byte

// Array is an ordered sequence of Values.
type Array []Value

// Object is a string-keyed map of Values. Key order is not
// preserved in memory; both codecs emit keys in their canonical
// order (sorted for JSON, length-first canonical for CBOR).
type Object map[string]Value

// CIDLink is a reference to another content-addressed block. JSON
// form: {"$link": "<cid>"}; CBOR form: tag 42.
type CIDLink cid.Cid

// CID returns the underlying CID.
func (l CIDLink) CID() cid.Cid { return cid.Cid(l) }

// IsZero reports whether the link is unset.
func (l CIDLink) IsZero() bool { return !cid.Cid(l).Defined() }

// String returns the canonical string form of the CID.
func (l CIDLink) String() string { return cid.Cid(l).String() }

// Blob is a reference to uploaded binary content. It does not carry
// the bytes themselves; those are fetched separately by CID.
type Blob struct {
	Ref      CIDLink
	MimeType string
	Size     int64
}

// Validate walks v and confirms every node is within the value
// space. It catches Values assembled by hand with unsupported
// dynamic types (float64, int, custom structs) before they reach a
// codec.
func Validate(v Value) error {
	switch t := v.(type) {
	case nil, bool, int64, string, Bytes, CIDLink, Blob:
		return nil
	case Array:
		for i, item := range t {
			if err := Validate(item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case Object:
		for k, item := range t {
			if err := Validate(item); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}
