// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"regexp"
	"strings"
)

// maxDIDLength bounds DIDs at the protocol limit.
const maxDIDLength = 2048

var didRegex = regexp.MustCompile(`^did:[a-z]+:[a-zA-Z0-9._:%-]*[a-zA-Z0-9._-]$`)

// DID is a decentralized identifier: the stable identity of an
// account and its repository, e.g. "did:plc:ewvi7nxzyoun6zhxrhs64oiz"
// or "did:web:example.com".
type DID struct {
	raw string
}

// ParseDID validates s as a DID.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return DID{}, fmt.Errorf("DID is empty")
	}
	if len(s) > maxDIDLength {
		return DID{}, fmt.Errorf("DID too long: %d bytes (max %d)", len(s), maxDIDLength)
	}
	if !didRegex.MatchString(s) {
		return DID{}, fmt.Errorf("invalid DID syntax: %q", s)
	}
	return DID{raw: s}, nil
}

// Method returns the DID method name ("plc", "web", ...).
func (d DID) Method() string {
	rest := strings.TrimPrefix(d.raw, "did:")
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// IsZero reports whether d is the unset zero value.
func (d DID) IsZero() bool { return d.raw == "" }

// String returns the canonical DID string.
func (d DID) String() string { return d.raw }

// MarshalText implements encoding.TextMarshaler.
func (d DID) MarshalText() ([]byte, error) { return []byte(d.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DID) UnmarshalText(data []byte) error {
	parsed, err := ParseDID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal DID: %w", err)
	}
	*d = parsed
	return nil
}
