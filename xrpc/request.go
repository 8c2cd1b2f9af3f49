// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// Method distinguishes the three kinds of XRPC endpoints.
type Method int

const (
	// MethodQuery is a cacheable read: HTTP GET with URL parameters.
	MethodQuery Method = iota
	// MethodProcedure is a mutation: HTTP POST with a request body.
	MethodProcedure
	// MethodSubscription is a WebSocket event stream.
	MethodSubscription
)

func (m Method) String() string {
	switch m {
	case MethodQuery:
		return "query"
	case MethodProcedure:
		return "procedure"
	case MethodSubscription:
		return "subscription"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// Standard encodings for request and response bodies.
const (
	EncodingJSON = "application/json"
	EncodingCBOR = "application/cbor"
	EncodingCAR  = "application/vnd.ipld.car"
	EncodingAny  = "*/*"
)

// Request describes one XRPC call. Endpoint types in api/ implement
// this interface; ad-hoc callers can use NewQuery and NewProcedure.
type Request interface {
	// NSID names the endpoint, e.g. "com.atproto.repo.createRecord".
	NSID() string
	// XRPCMethod reports whether this is a query or a procedure.
	XRPCMethod() Method
	// Encoding is the Content-Type of the request body. Empty for
	// queries and body-less procedures.
	Encoding() string
	// OutputEncoding is the expected response Content-Type, sent as
	// the Accept header. Empty suppresses the header.
	OutputEncoding() string
	// Params returns URL query parameters. May be nil.
	Params() url.Values
	// Body returns the request body reader. May return (nil, nil)
	// for body-less calls.
	Body() (io.Reader, error)
}

// QueryBase provides the boilerplate of a parameter-less JSON query.
// Endpoint types embed it and override NSID and usually Params.
type QueryBase struct{}

// XRPCMethod implements Request.
func (QueryBase) XRPCMethod() Method { return MethodQuery }

// Encoding implements Request.
func (QueryBase) Encoding() string { return "" }

// OutputEncoding implements Request.
func (QueryBase) OutputEncoding() string { return EncodingJSON }

// Params implements Request.
func (QueryBase) Params() url.Values { return nil }

// Body implements Request.
func (QueryBase) Body() (io.Reader, error) { return nil, nil }

// ProcedureBase provides the boilerplate of a JSON-in, JSON-out
// procedure. Endpoint types embed it and override NSID and Body.
type ProcedureBase struct{}

// XRPCMethod implements Request.
func (ProcedureBase) XRPCMethod() Method { return MethodProcedure }

// Encoding implements Request.
func (ProcedureBase) Encoding() string { return EncodingJSON }

// OutputEncoding implements Request.
func (ProcedureBase) OutputEncoding() string { return EncodingJSON }

// Params implements Request.
func (ProcedureBase) Params() url.Values { return nil }

// Body implements Request.
func (ProcedureBase) Body() (io.Reader, error) { return nil, nil }

// JSONBody encodes v as a JSON request body. Endpoint types call
// this from their Body implementation.
func JSONBody(v any) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return bytes.NewReader(raw), nil
}

// genericRequest is the ad-hoc Request used by NewQuery and
// NewProcedure.
type genericRequest struct {
	nsid     string
	method   Method
	encoding string
	output   string
	params   url.Values
	body     []byte
}

// NewQuery builds an ad-hoc query request.
func NewQuery(nsid string, params url.Values) Request {
	return &genericRequest{nsid: nsid, method: MethodQuery, output: EncodingJSON, params: params}
}

// NewProcedure builds an ad-hoc procedure request with a JSON body.
// A nil input produces a body-less POST.
func NewProcedure(nsid string, input any) (Request, error) {
	req := &genericRequest{nsid: nsid, method: MethodProcedure, output: EncodingJSON}
	if input != nil {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		req.body = raw
		req.encoding = EncodingJSON
	}
	return req, nil
}

// NewBytesProcedure builds a procedure that posts raw bytes with the
// given Content-Type, as blob and CAR uploads do.
func NewBytesProcedure(nsid, encoding string, body []byte) Request {
	return &genericRequest{nsid: nsid, method: MethodProcedure, encoding: encoding, output: EncodingJSON, body: body}
}

func (r *genericRequest) NSID() string           { return r.nsid }
func (r *genericRequest) XRPCMethod() Method     { return r.method }
func (r *genericRequest) Encoding() string       { return r.encoding }
func (r *genericRequest) OutputEncoding() string { return r.output }
func (r *genericRequest) Params() url.Values     { return r.params }

func (r *genericRequest) Body() (io.Reader, error) {
	if r.body == nil {
		return nil, nil
	}
	return bytes.NewReader(r.body), nil
}
