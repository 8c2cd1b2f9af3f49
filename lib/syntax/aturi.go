// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"strings"
)

// maxATURILength bounds AT-URIs at the protocol limit.
const maxATURILength = 2048

// ATURI references a repository, collection, or record:
// "at://<authority>[/<collection>[/<rkey>]]". The authority is a DID
// or handle; collection and record key are optional but a record key
// requires a collection.
type ATURI struct {
	authority  AtIdentifier
	collection NSID
	rkey       RecordKey
}

// ParseATURI validates s as an AT-URI.
func ParseATURI(s string) (ATURI, error) {
	if len(s) > maxATURILength {
		return ATURI{}, fmt.Errorf("AT-URI too long: %d bytes (max %d)", len(s), maxATURILength)
	}
	rest, ok := strings.CutPrefix(s, "at://")
	if !ok {
		return ATURI{}, fmt.Errorf("AT-URI must start with \"at://\": %q", s)
	}
	if strings.ContainsAny(rest, "?#") {
		return ATURI{}, fmt.Errorf("AT-URI must not contain query or fragment: %q", s)
	}
	parts := strings.Split(rest, "/")
	if len(parts) > 3 {
		return ATURI{}, fmt.Errorf("AT-URI has too many path segments: %q", s)
	}
	var uri ATURI
	var err error
	uri.authority, err = ParseAtIdentifier(parts[0])
	if err != nil {
		return ATURI{}, fmt.Errorf("AT-URI authority: %w", err)
	}
	if len(parts) > 1 {
		uri.collection, err = ParseNSID(parts[1])
		if err != nil {
			return ATURI{}, fmt.Errorf("AT-URI collection: %w", err)
		}
	}
	if len(parts) > 2 {
		uri.rkey, err = ParseRecordKey(parts[2])
		if err != nil {
			return ATURI{}, fmt.Errorf("AT-URI record key: %w", err)
		}
	}
	return uri, nil
}

// NewATURI builds a record-level AT-URI from validated components.
func NewATURI(authority AtIdentifier, collection NSID, rkey RecordKey) ATURI {
	return ATURI{authority: authority, collection: collection, rkey: rkey}
}

// Authority returns the repository authority (DID or handle).
func (u ATURI) Authority() AtIdentifier { return u.authority }

// Collection returns the collection NSID, zero if absent.
func (u ATURI) Collection() NSID { return u.collection }

// RecordKey returns the record key, zero if absent.
func (u ATURI) RecordKey() RecordKey { return u.rkey }

// IsZero reports whether u is the unset zero value.
func (u ATURI) IsZero() bool { return u.authority.IsZero() }

// String returns the canonical AT-URI.
func (u ATURI) String() string {
	var b strings.Builder
	b.WriteString("at://")
	b.WriteString(u.authority.String())
	if !u.collection.IsZero() {
		b.WriteByte('/')
		b.WriteString(u.collection.String())
		if !u.rkey.IsZero() {
			b.WriteByte('/')
			b.WriteString(u.rkey.String())
		}
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (u ATURI) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *ATURI) UnmarshalText(data []byte) error {
	parsed, err := ParseATURI(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal AT-URI: %w", err)
	}
	*u = parsed
	return nil
}
