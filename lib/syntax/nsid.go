// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"regexp"
	"strings"
)

// maxNSIDLength bounds NSIDs at the protocol limit.
const maxNSIDLength = 317

var nsidRegex = regexp.MustCompile(
	`^[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*(\.[a-zA-Z][a-zA-Z0-9]{0,62})$`)

// NSID is a namespaced identifier in reverse-DNS form, e.g.
// "app.bsky.feed.post". The leading segments are a domain authority
// in reversed order; the final segment names a record type or method.
type NSID struct {
	raw string
}

// ParseNSID validates s as an NSID.
func ParseNSID(s string) (NSID, error) {
	if s == "" {
		return NSID{}, fmt.Errorf("NSID is empty")
	}
	if len(s) > maxNSIDLength {
		return NSID{}, fmt.Errorf("NSID too long: %d bytes (max %d)", len(s), maxNSIDLength)
	}
	if strings.Count(s, ".") < 2 {
		return NSID{}, fmt.Errorf("NSID needs at least three segments: %q", s)
	}
	if !nsidRegex.MatchString(s) {
		return NSID{}, fmt.Errorf("invalid NSID syntax: %q", s)
	}
	return NSID{raw: s}, nil
}

// Authority returns the domain authority in normal DNS order:
// "app.bsky.feed.post" yields "bsky.app".
func (n NSID) Authority() string {
	segments := strings.Split(n.raw, ".")
	segments = segments[:len(segments)-1]
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.ToLower(strings.Join(segments, "."))
}

// Name returns the final segment: "post" for "app.bsky.feed.post".
func (n NSID) Name() string {
	return n.raw[strings.LastIndexByte(n.raw, '.')+1:]
}

// IsZero reports whether n is the unset zero value.
func (n NSID) IsZero() bool { return n.raw == "" }

// String returns the canonical NSID string.
func (n NSID) String() string { return n.raw }

// MarshalText implements encoding.TextMarshaler.
func (n NSID) MarshalText() ([]byte, error) { return []byte(n.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NSID) UnmarshalText(data []byte) error {
	parsed, err := ParseNSID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal NSID: %w", err)
	}
	*n = parsed
	return nil
}
