// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package syntax provides strongly typed, immutable identifier values
// for the AT Protocol: DIDs, handles, NSIDs, AT-URIs, record keys,
// TIDs, datetimes, and language tags.
//
// Every identifier is a validated value type. Constructors (ParseDID,
// ParseHandle, ...) check the full grammar and return errors for
// invalid input; once constructed, a value is immutable and its
// String method returns the canonical form. The zero value of each
// type means "unset" and reports IsZero() == true.
//
// JSON and CBOR marshaling use the canonical string form via
// encoding.TextMarshaler, so identifier fields in wire structs
// round-trip without custom codec hooks.
package syntax
