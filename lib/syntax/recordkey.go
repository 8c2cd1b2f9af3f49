// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"regexp"
)

var recordKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9._:~-]{1,512}$`)

// RecordKey names a record within a collection. Most record keys are
// TIDs, but any string matching the record-key grammar is valid.
type RecordKey struct {
	raw string
}

// ParseRecordKey validates s as a record key.
func ParseRecordKey(s string) (RecordKey, error) {
	if s == "." || s == ".." {
		return RecordKey{}, fmt.Errorf("record key %q is reserved", s)
	}
	if !recordKeyRegex.MatchString(s) {
		return RecordKey{}, fmt.Errorf("invalid record key: %q", s)
	}
	return RecordKey{raw: s}, nil
}

// RecordKeyFromTID wraps a TID as a record key.
func RecordKeyFromTID(tid TID) RecordKey { return RecordKey{raw: tid.String()} }

// AsTID reinterprets the record key as a TID, if it is one.
func (r RecordKey) AsTID() (TID, bool) {
	tid, err := ParseTID(r.raw)
	return tid, err == nil
}

// IsZero reports whether r is the unset zero value.
func (r RecordKey) IsZero() bool { return r.raw == "" }

// String returns the record key string.
func (r RecordKey) String() string { return r.raw }

// MarshalText implements encoding.TextMarshaler.
func (r RecordKey) MarshalText() ([]byte, error) { return []byte(r.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RecordKey) UnmarshalText(data []byte) error {
	parsed, err := ParseRecordKey(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal record key: %w", err)
	}
	*r = parsed
	return nil
}
