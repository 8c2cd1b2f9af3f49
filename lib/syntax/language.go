// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"regexp"
)

var languageRegex = regexp.MustCompile(`^(i|[a-zA-Z]{2,3})(-[a-zA-Z0-9]{1,8})*$`)

// Language is a BCP-47 language tag, e.g. "en", "pt-BR". Validation
// is shape-only; subtags are not checked against the IANA registry.
type Language struct {
	raw string
}

// ParseLanguage validates s as a language tag.
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return Language{}, fmt.Errorf("language tag is empty")
	}
	if !languageRegex.MatchString(s) {
		return Language{}, fmt.Errorf("invalid language tag: %q", s)
	}
	return Language{raw: s}, nil
}

// IsZero reports whether l is the unset zero value.
func (l Language) IsZero() bool { return l.raw == "" }

// String returns the language tag.
func (l Language) String() string { return l.raw }

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) { return []byte(l.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(data []byte) error {
	parsed, err := ParseLanguage(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal language: %w", err)
	}
	*l = parsed
	return nil
}
