// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// s32Alphabet is the sortable base32 alphabet used by TIDs. Character
// order matches byte order, so lexicographic TID order equals numeric
// order of the underlying value.
const s32Alphabet = "234567abcdefghijklmnopqrstuvwxyz"

// TID is a timestamp identifier: a 64-bit value packing microseconds
// since the Unix epoch (53 bits) and a clock identifier (10 bits),
// rendered as 13 sortable base32 characters. The top bit is always
// zero, so the first character is in "234567abcdefghij".
type TID struct {
	raw string
}

// ParseTID validates s as a TID.
func ParseTID(s string) (TID, error) {
	if len(s) != 13 {
		return TID{}, fmt.Errorf("TID must be 13 characters, got %d", len(s))
	}
	for i := 0; i < 13; i++ {
		if strings.IndexByte(s32Alphabet, s[i]) < 0 {
			return TID{}, fmt.Errorf("invalid TID character %q in %q", s[i], s)
		}
	}
	if strings.IndexByte(s32Alphabet, s[0]) >= 16 {
		return TID{}, fmt.Errorf("TID high bit set: %q", s)
	}
	return TID{raw: s}, nil
}

// NewTID builds a TID from a microsecond timestamp and a clock
// identifier (low 10 bits used).
func NewTID(unixMicros int64, clockID uint32) TID {
	v := (uint64(unixMicros) << 10) & 0x7FFF_FFFF_FFFF_FC00
	v |= uint64(clockID) & 0x3FF
	return TID{raw: s32Encode(v)}
}

func s32Encode(v uint64) string {
	var buf [13]byte
	for i := 12; i >= 0; i-- {
		buf[i] = s32Alphabet[v&0x1F]
		v >>= 5
	}
	return string(buf[:])
}

func (t TID) value() uint64 {
	var v uint64
	for i := 0; i < 13; i++ {
		v = v<<5 | uint64(strings.IndexByte(s32Alphabet, t.raw[i]))
	}
	return v
}

// Time returns the embedded timestamp.
func (t TID) Time() time.Time {
	return time.UnixMicro(int64(t.value() >> 10)).UTC()
}

// ClockID returns the embedded 10-bit clock identifier.
func (t TID) ClockID() uint32 {
	return uint32(t.value() & 0x3FF)
}

// IsZero reports whether t is the unset zero value.
func (t TID) IsZero() bool { return t.raw == "" }

// String returns the 13-character TID.
func (t TID) String() string { return t.raw }

// MarshalText implements encoding.TextMarshaler.
func (t TID) MarshalText() ([]byte, error) { return []byte(t.raw), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TID) UnmarshalText(data []byte) error {
	parsed, err := ParseTID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal TID: %w", err)
	}
	*t = parsed
	return nil
}

// Clock issues strictly monotonic TIDs. Concurrent callers each
// receive a distinct TID greater than every TID issued before. The
// clock identifier is chosen randomly once per Clock so that
// independent processes writing to the same repository are unlikely
// to collide within a microsecond.
type Clock struct {
	mu      sync.Mutex
	clockID uint32
	last    uint64
	now     func() time.Time
}

// NewClock creates a TID clock with a random clock identifier.
func NewClock() *Clock {
	return &Clock{
		clockID: uint32(rand.Intn(1 << 10)),
		now:     time.Now,
	}
}

// Next returns a TID strictly greater than any previously issued by
// this clock. If the wall clock has not advanced past the previous
// TID's timestamp, the value is bumped by one microsecond instead.
func (c *Clock) Next() TID {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := (uint64(c.now().UnixMicro()) << 10) & 0x7FFF_FFFF_FFFF_FC00
	v |= uint64(c.clockID) & 0x3FF
	if v <= c.last {
		v = c.last + (1 << 10)
	}
	c.last = v
	return TID{raw: s32Encode(v)}
}
