// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"strings"
	"time"
)

// Datetime is an RFC 3339 timestamp with a required time zone. The
// original string form is preserved so that re-serializing a decoded
// record reproduces its bytes exactly.
type Datetime struct {
	raw string
	t   time.Time
}

// ParseDatetime validates s as an RFC 3339 datetime. A "-00:00"
// offset is rejected per RFC 3339 §4.3.
func ParseDatetime(s string) (Datetime, error) {
	if strings.HasSuffix(s, "-00:00") {
		return Datetime{}, fmt.Errorf("datetime with unknown local offset: %q", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Datetime{}, fmt.Errorf("invalid datetime %q: %w", s, err)
	}
	return Datetime{raw: s, t: t}, nil
}

// DatetimeNow returns the current time in the canonical form used
// for new records: UTC, millisecond precision, "Z" suffix.
func DatetimeNow() Datetime {
	t := time.Now().UTC().Truncate(time.Millisecond)
	return Datetime{raw: t.Format("2006-01-02T15:04:05.000Z"), t: t}
}

// DatetimeFromTime converts t to the canonical datetime form.
func DatetimeFromTime(t time.Time) Datetime {
	t = t.UTC().Truncate(time.Millisecond)
	return Datetime{raw: t.Format("2006-01-02T15:04:05.000Z"), t: t}
}

// Time returns the parsed timestamp.
func (d Datetime) Time() time.Time { return d.t }

// IsZero reports whether d is the unset zero value.
func (d Datetime) IsZero() bool { return d.raw == "" }

// String returns the original RFC 3339 string.
func (d Datetime) String() string { return d.raw }

// MarshalText implements encoding.TextMarshaler.
func (d Datetime) MarshalText() ([]byte, error) { return []byte(d.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Datetime) UnmarshalText(data []byte) error {
	parsed, err := ParseDatetime(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal datetime: %w", err)
	}
	*d = parsed
	return nil
}
