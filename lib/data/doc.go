// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package data implements the schema-agnostic record data model: the
// restricted value space that every record, label, and event payload
// lives in, with codecs for its two wire forms (JSON and DAG-CBOR).
//
// A Value is one of: nil, bool, int64, string, Bytes, CIDLink, Blob,
// Array, or Object. Floats are not part of the model and both codecs
// reject them. The JSON form uses sentinel objects for the non-JSON
// kinds ({"$link": ...} for CID links, {"$bytes": ...} for raw
// bytes, {"$type": "blob", ...} for blob references); the CBOR form
// uses tag 42 links and native byte strings.
//
// The package exists so that unknown fields and unknown union
// variants survive a decode/encode round trip losslessly: typed
// structs in api/ carry an Extra bag of Values for fields their
// schema does not know, and union types fall back to a Value when
// the $type discriminator is unrecognized.
package data
