// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tapestry-foundation/tapestry/lib/codec"
)

// Response is a successful XRPC exchange. The body is fully
// buffered; Decode interprets it per the response encoding.
type Response struct {
	StatusCode int
	Header     http.Header
	// Bytes is the raw response body. For blob and CAR downloads it
	// is the payload itself.
	Bytes []byte

	encoding string
}

// Encoding returns the response Content-Type without parameters.
func (r *Response) Encoding() string { return r.encoding }

// Decode unmarshals the body into out: JSON for application/json
// (and unlabeled bodies), CBOR for application/cbor. For raw
// payloads pass *[]byte.
func (r *Response) Decode(out any) error {
	if raw, ok := out.(*[]byte); ok {
		*raw = r.Bytes
		return nil
	}
	switch r.encoding {
	case EncodingCBOR:
		if err := codec.Unmarshal(r.Bytes, out); err != nil {
			return fmt.Errorf("xrpc: decode CBOR response: %w", err)
		}
	default:
		if err := json.Unmarshal(r.Bytes, out); err != nil {
			return fmt.Errorf("xrpc: decode JSON response: %w", err)
		}
	}
	return nil
}
