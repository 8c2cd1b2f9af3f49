// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tapestry-foundation/tapestry/lib/codec"
)

// Blob and CIDLink implement both codec interfaces so that typed
// structs in api/ can embed them directly and still produce the
// correct wire forms under encoding/json and lib/codec.

// MarshalJSON implements json.Marshaler.
func (l CIDLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$link": l.String()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *CIDLink) UnmarshalJSON(raw []byte) error {
	v, err := UnmarshalJSON(raw)
	if err != nil {
		return err
	}
	link, ok := v.(CIDLink)
	if !ok {
		return fmt.Errorf("expected $link object, got %T", v)
	}
	*l = link
	return nil
}

// MarshalCBOR implements cbor.Marshaler, emitting a tag 42 link.
func (l CIDLink) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(codec.LinkTag(l.CID()))
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (l *CIDLink) UnmarshalCBOR(raw []byte) error {
	var v any
	if err := codec.Unmarshal(raw, &v); err != nil {
		return err
	}
	tag, ok := v.(codec.Tag)
	if !ok || tag.Number != codec.TagCIDLink {
		return fmt.Errorf("expected tag %d link, got %T", codec.TagCIDLink, v)
	}
	content, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("link tag content is %T, want bytes", tag.Content)
	}
	c, err := codec.CIDFromLink(content)
	if err != nil {
		return err
	}
	*l = CIDLink(c)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b Blob) MarshalJSON() ([]byte, error) {
	data, err := MarshalJSON(Value(b))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Blob) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	blob, err := blobFromJSON(m)
	if err != nil {
		return err
	}
	*b = blob
	return nil
}

// MarshalJSON implements json.Marshaler, emitting the $bytes
// envelope so byte fields in typed structs keep the wire form.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$bytes": bytesEncoding.EncodeToString(b)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(raw []byte) error {
	v, err := UnmarshalJSON(raw)
	if err != nil {
		return err
	}
	decoded, ok := v.(Bytes)
	if !ok {
		return fmt.Errorf("expected $bytes object, got %T", v)
	}
	*b = decoded
	return nil
}

// MarshalCBOR implements cbor.Marshaler.
func (b Blob) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(map[string]any{
		"$type":    "blob",
		"ref":      codec.LinkTag(b.Ref.CID()),
		"mimeType": b.MimeType,
		"size":     b.Size,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (b *Blob) UnmarshalCBOR(raw []byte) error {
	v, err := UnmarshalCBOR(raw)
	if err != nil {
		return err
	}
	blob, ok := v.(Blob)
	if !ok {
		return fmt.Errorf("expected blob, got %T", v)
	}
	*b = blob
	return nil
}
