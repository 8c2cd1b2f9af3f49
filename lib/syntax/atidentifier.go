// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"strings"
)

// AtIdentifier is either a DID or a handle. Fields that accept
// "at-identifier" in the protocol (repo references, actor parameters)
// use this type; exactly one of the two variants is set.
type AtIdentifier struct {
	did    DID
	handle Handle
}

// ParseAtIdentifier validates s as a DID or, failing that, a handle.
func ParseAtIdentifier(s string) (AtIdentifier, error) {
	if strings.HasPrefix(s, "did:") {
		did, err := ParseDID(s)
		if err != nil {
			return AtIdentifier{}, err
		}
		return AtIdentifier{did: did}, nil
	}
	handle, err := ParseHandle(s)
	if err != nil {
		return AtIdentifier{}, fmt.Errorf("not a DID or handle: %q", s)
	}
	return AtIdentifier{handle: handle}, nil
}

// AtIdentifierFromDID wraps an already validated DID.
func AtIdentifierFromDID(did DID) AtIdentifier { return AtIdentifier{did: did} }

// AtIdentifierFromHandle wraps an already validated handle.
func AtIdentifierFromHandle(handle Handle) AtIdentifier { return AtIdentifier{handle: handle} }

// AsDID returns the DID variant, if set.
func (a AtIdentifier) AsDID() (DID, bool) { return a.did, !a.did.IsZero() }

// AsHandle returns the handle variant, if set.
func (a AtIdentifier) AsHandle() (Handle, bool) { return a.handle, !a.handle.IsZero() }

// IsZero reports whether a is the unset zero value.
func (a AtIdentifier) IsZero() bool { return a.did.IsZero() && a.handle.IsZero() }

// String returns the string form of whichever variant is set.
func (a AtIdentifier) String() string {
	if !a.did.IsZero() {
		return a.did.String()
	}
	return a.handle.String()
}

// MarshalText implements encoding.TextMarshaler.
func (a AtIdentifier) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AtIdentifier) UnmarshalText(data []byte) error {
	parsed, err := ParseAtIdentifier(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal at-identifier: %w", err)
	}
	*a = parsed
	return nil
}
