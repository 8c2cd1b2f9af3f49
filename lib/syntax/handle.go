// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"regexp"
	"strings"
)

// maxHandleLength bounds handles at the DNS name limit.
const maxHandleLength = 253

var handleRegex = regexp.MustCompile(
	`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// Handle is a DNS-name alias for a DID, e.g. "alice.bsky.social".
// A leading "@" is stripped by the constructor. Handles are
// case-insensitive on the wire; Normalize returns the lowercase form.
type Handle struct {
	raw string
}

// ParseHandle validates s as a handle. An optional leading "@" is
// accepted and removed.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimPrefix(s, "@")
	if s == "" {
		return Handle{}, fmt.Errorf("handle is empty")
	}
	if len(s) > maxHandleLength {
		return Handle{}, fmt.Errorf("handle too long: %d bytes (max %d)", len(s), maxHandleLength)
	}
	if !handleRegex.MatchString(s) {
		return Handle{}, fmt.Errorf("invalid handle syntax: %q", s)
	}
	return Handle{raw: s}, nil
}

// Normalize returns the handle lowercased, the form used for
// comparison and storage.
func (h Handle) Normalize() Handle {
	return Handle{raw: strings.ToLower(h.raw)}
}

// IsZero reports whether h is the unset zero value.
func (h Handle) IsZero() bool { return h.raw == "" }

// String returns the handle without the "@" prefix.
func (h Handle) String() string { return h.raw }

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) { return []byte(h.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(data []byte) error {
	parsed, err := ParseHandle(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal handle: %w", err)
	}
	*h = parsed
	return nil
}
