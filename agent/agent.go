// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/identity"
	"github.com/tapestry-foundation/tapestry/lib/data"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

// Config holds configuration for creating an Agent.
type Config struct {
	// Session supplies credentials. If nil, an anonymous session
	// against the default public host is used.
	Session Session
	// Client overrides the XRPC client. If nil, one is built for the
	// session's endpoint.
	Client *xrpc.Client
	// Resolver resolves handles in AT-URIs. If nil, a default
	// resolver is created.
	Resolver *identity.Resolver
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Agent pairs a session with a client and adds the record-level
// convenience layer. Safe for concurrent use.
type Agent struct {
	session  Session
	client   *xrpc.Client
	resolver *identity.Resolver
	clock    *syntax.Clock
	logger   *slog.Logger
}

// New creates an Agent.
func New(config Config) (*Agent, error) {
	session := config.Session
	if session == nil {
		session = NewUnauthenticated("")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := config.Client
	if client == nil {
		var err error
		client, err = xrpc.NewClient(xrpc.ClientConfig{Host: session.Endpoint(), Logger: logger})
		if err != nil {
			return nil, err
		}
	}
	resolver := config.Resolver
	if resolver == nil {
		resolver = identity.NewResolver(identity.ResolverConfig{Logger: logger})
	}
	return &Agent{
		session:  session,
		client:   client,
		resolver: resolver,
		clock:    syntax.NewClock(),
		logger:   logger,
	}, nil
}

// Session returns the agent's session.
func (a *Agent) Session() Session { return a.session }

// Client returns the underlying XRPC client.
func (a *Agent) Client() *xrpc.Client { return a.client }

// Clock returns the agent's TID clock, for callers minting their
// own record keys.
func (a *Agent) Clock() *syntax.Clock { return a.clock }

// Do executes one call with the session's credentials. When the
// server rejects the access token with a recoverable auth error,
// the session is refreshed and the call replayed exactly once.
func (a *Agent) Do(ctx context.Context, req xrpc.Request) (*xrpc.Response, error) {
	return a.DoWithOptions(ctx, req, nil)
}

// DoWithOptions is Do with extra per-call options (service proxy,
// labeler headers). The Auth and DPoP fields are overwritten from
// the session.
func (a *Agent) DoWithOptions(ctx context.Context, req xrpc.Request, opts *xrpc.CallOptions) (*xrpc.Response, error) {
	if opts == nil {
		opts = &xrpc.CallOptions{}
	}
	if err := a.fillAuth(ctx, opts); err != nil {
		return nil, err
	}

	resp, err := a.client.Do(ctx, req, opts)
	if err == nil {
		return resp, nil
	}
	authErr, ok := xrpc.AsAuthError(err)
	if !ok || authErr.Fatal || opts.Auth == nil {
		return nil, err
	}

	a.logger.Debug("refreshing session after auth failure", "nsid", req.NSID(), "code", authErr.Code)
	if err := a.session.Refresh(ctx); err != nil {
		return nil, err
	}
	if err := a.fillAuth(ctx, opts); err != nil {
		return nil, err
	}
	return a.client.Do(ctx, req, opts)
}

func (a *Agent) fillAuth(ctx context.Context, opts *xrpc.CallOptions) error {
	token, err := a.session.Token(ctx)
	if err != nil {
		return err
	}
	opts.Auth = token
	opts.DPoP = a.session.DPoPSigner()
	return nil
}

// repoDID resolves an AT-URI authority to the DID owning the
// repository.
func (a *Agent) repoDID(ctx context.Context, uri syntax.ATURI) (syntax.DID, error) {
	if did, ok := uri.Authority().AsDID(); ok {
		return did, nil
	}
	handle, _ := uri.Authority().AsHandle()
	did, err := a.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		return syntax.DID{}, fmt.Errorf("agent: resolve %s: %w", handle, err)
	}
	return did, nil
}

func (a *Agent) sessionDID() (syntax.DID, error) {
	did := a.session.DID()
	if did.IsZero() {
		return syntax.DID{}, errors.New("agent: operation requires an authenticated session")
	}
	return did, nil
}

// CreateRecord creates a record in the session account's
// repository. A nil rkey lets the server assign one; callers that
// want client-side TIDs pass Clock().Next(). validate controls
// server-side lexicon validation; nil leaves the server default.
func (a *Agent) CreateRecord(ctx context.Context, collection syntax.NSID, rkey *syntax.RecordKey, record any, validate *bool) (syntax.ATURI, cid.Cid, error) {
	did, err := a.sessionDID()
	if err != nil {
		return syntax.ATURI{}, cid.Undef, err
	}
	input := map[string]any{
		"repo":       did.String(),
		"collection": collection.String(),
		"record":     record,
	}
	if rkey != nil {
		input["rkey"] = rkey.String()
	}
	if validate != nil {
		input["validate"] = *validate
	}
	req, err := xrpc.NewProcedure("com.atproto.repo.createRecord", input)
	if err != nil {
		return syntax.ATURI{}, cid.Undef, err
	}
	resp, err := a.Do(ctx, req)
	if err != nil {
		return syntax.ATURI{}, cid.Undef, err
	}
	return decodeRecordRef(resp)
}

// GetRecord fetches a record by AT-URI and decodes its body into
// out (pass nil to skip decoding). Handle authorities are resolved
// to the repository DID first.
func (a *Agent) GetRecord(ctx context.Context, uri syntax.ATURI, out any) (cid.Cid, error) {
	did, err := a.repoDID(ctx, uri)
	if err != nil {
		return cid.Undef, err
	}
	params := url.Values{
		"repo":       []string{did.String()},
		"collection": []string{uri.Collection().String()},
		"rkey":       []string{uri.RecordKey().String()},
	}
	resp, err := a.Do(ctx, xrpc.NewQuery("com.atproto.repo.getRecord", params))
	if err != nil {
		return cid.Undef, err
	}
	var envelope struct {
		URI   string          `json:"uri"`
		CID   string          `json:"cid"`
		Value json.RawMessage `json:"value"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return cid.Undef, fmt.Errorf("agent: getRecord response: %w", err)
	}
	var recordCID cid.Cid
	if envelope.CID != "" {
		recordCID, err = cid.Parse(envelope.CID)
		if err != nil {
			return cid.Undef, fmt.Errorf("agent: getRecord cid: %w", err)
		}
	}
	if out != nil {
		if value, ok := out.(*data.Value); ok {
			parsed, err := data.UnmarshalJSON(envelope.Value)
			if err != nil {
				return cid.Undef, fmt.Errorf("agent: getRecord value: %w", err)
			}
			*value = parsed
		} else if err := json.Unmarshal(envelope.Value, out); err != nil {
			return cid.Undef, fmt.Errorf("agent: getRecord value: %w", err)
		}
	}
	return recordCID, nil
}

// PutRecord writes a record at the URI's path in the session
// account's repository. A non-nil swapRecord asserts the current
// record CID; a stale assertion fails with CodeInvalidSwap.
func (a *Agent) PutRecord(ctx context.Context, uri syntax.ATURI, record any, swapRecord *cid.Cid) (cid.Cid, error) {
	did, err := a.sessionDID()
	if err != nil {
		return cid.Undef, err
	}
	input := map[string]any{
		"repo":       did.String(),
		"collection": uri.Collection().String(),
		"rkey":       uri.RecordKey().String(),
		"record":     record,
	}
	if swapRecord != nil {
		input["swapRecord"] = swapRecord.String()
	}
	req, err := xrpc.NewProcedure("com.atproto.repo.putRecord", input)
	if err != nil {
		return cid.Undef, err
	}
	resp, err := a.Do(ctx, req)
	if err != nil {
		return cid.Undef, err
	}
	_, c, err := decodeRecordRef(resp)
	return c, err
}

// UpdateRecord is a compare-and-swap read-modify-write: it fetches
// the record, applies f, and writes the result back asserting the
// CID it read. A concurrent writer surfaces as CodeInvalidSwap.
func (a *Agent) UpdateRecord(ctx context.Context, uri syntax.ATURI, f func(data.Value) (data.Value, error)) (cid.Cid, error) {
	var value data.Value
	prev, err := a.GetRecord(ctx, uri, &value)
	if err != nil {
		return cid.Undef, err
	}
	updated, err := f(value)
	if err != nil {
		return cid.Undef, err
	}
	body, err := data.MarshalJSON(updated)
	if err != nil {
		return cid.Undef, fmt.Errorf("agent: encode updated record: %w", err)
	}
	return a.PutRecord(ctx, uri, json.RawMessage(body), &prev)
}

// DeleteRecord removes the record at the URI's path from the
// session account's repository.
func (a *Agent) DeleteRecord(ctx context.Context, uri syntax.ATURI) error {
	did, err := a.sessionDID()
	if err != nil {
		return err
	}
	input := map[string]any{
		"repo":       did.String(),
		"collection": uri.Collection().String(),
		"rkey":       uri.RecordKey().String(),
	}
	req, err := xrpc.NewProcedure("com.atproto.repo.deleteRecord", input)
	if err != nil {
		return err
	}
	_, err = a.Do(ctx, req)
	return err
}

// UploadBlob uploads raw bytes and returns the blob reference to
// embed in a record.
func (a *Agent) UploadBlob(ctx context.Context, r io.Reader, mimeType string) (data.Blob, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return data.Blob{}, fmt.Errorf("agent: read blob: %w", err)
	}
	req := xrpc.NewBytesProcedure("com.atproto.repo.uploadBlob", mimeType, body)
	resp, err := a.Do(ctx, req)
	if err != nil {
		return data.Blob{}, err
	}
	var out struct {
		Blob data.Blob `json:"blob"`
	}
	if err := resp.Decode(&out); err != nil {
		return data.Blob{}, fmt.Errorf("agent: uploadBlob response: %w", err)
	}
	return out.Blob, nil
}

// Write is one mutation in an ApplyWrites batch.
type Write struct {
	// Action is "create", "update", or "delete".
	Action string
	// Collection and RecordKey name the record path. RecordKey may be
	// zero for creates.
	Collection syntax.NSID
	RecordKey  syntax.RecordKey
	// Value is the record body; nil for deletes.
	Value any
}

// Write actions.
const (
	WriteActionCreate = "create"
	WriteActionUpdate = "update"
	WriteActionDelete = "delete"
)

// ApplyWrites applies a batch of mutations as one commit. A non-nil
// swapCommit asserts the repository's current head commit.
func (a *Agent) ApplyWrites(ctx context.Context, writes []Write, swapCommit *cid.Cid) error {
	did, err := a.sessionDID()
	if err != nil {
		return err
	}
	encoded := make([]map[string]any, 0, len(writes))
	for i, w := range writes {
		entry := map[string]any{
			"$type":      "com.atproto.repo.applyWrites#" + w.Action,
			"collection": w.Collection.String(),
		}
		switch w.Action {
		case WriteActionCreate:
			if !w.RecordKey.IsZero() {
				entry["rkey"] = w.RecordKey.String()
			}
			entry["value"] = w.Value
		case WriteActionUpdate:
			entry["rkey"] = w.RecordKey.String()
			entry["value"] = w.Value
		case WriteActionDelete:
			entry["rkey"] = w.RecordKey.String()
		default:
			return fmt.Errorf("agent: write %d: unknown action %q", i, w.Action)
		}
		encoded = append(encoded, entry)
	}
	input := map[string]any{
		"repo":   did.String(),
		"writes": encoded,
	}
	if swapCommit != nil {
		input["swapCommit"] = swapCommit.String()
	}
	req, err := xrpc.NewProcedure("com.atproto.repo.applyWrites", input)
	if err != nil {
		return err
	}
	_, err = a.Do(ctx, req)
	return err
}

// UpdateList implements the fetch-transform-put pattern for
// endpoints that expose a JSON array (preferences, muted words,
// saved feeds): get fetches the document, field selects the array,
// f rewrites it, and put builds the write-back request. Nothing is
// written when f reports no change.
func (a *Agent) UpdateList(ctx context.Context, get xrpc.Request, field string, f func(data.Array) (data.Array, bool), put func(data.Array) (xrpc.Request, error)) error {
	resp, err := a.Do(ctx, get)
	if err != nil {
		return err
	}
	doc, err := data.UnmarshalJSON(resp.Bytes)
	if err != nil {
		return fmt.Errorf("agent: decode %s response: %w", get.NSID(), err)
	}
	obj, ok := doc.(data.Object)
	if !ok {
		return fmt.Errorf("agent: %s response is not an object", get.NSID())
	}
	var items data.Array
	switch v := obj[field].(type) {
	case nil:
		items = data.Array{}
	case data.Array:
		items = v
	default:
		return fmt.Errorf("agent: field %q is %T, not an array", field, obj[field])
	}

	updated, changed := f(items)
	if !changed {
		return nil
	}
	putReq, err := put(updated)
	if err != nil {
		return err
	}
	_, err = a.Do(ctx, putReq)
	return err
}

func decodeRecordRef(resp *xrpc.Response) (syntax.ATURI, cid.Cid, error) {
	var out struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := resp.Decode(&out); err != nil {
		return syntax.ATURI{}, cid.Undef, fmt.Errorf("agent: decode record ref: %w", err)
	}
	uri, err := syntax.ParseATURI(out.URI)
	if err != nil {
		return syntax.ATURI{}, cid.Undef, fmt.Errorf("agent: record ref uri: %w", err)
	}
	c, err := cid.Parse(out.CID)
	if err != nil {
		return syntax.ATURI{}, cid.Undef, fmt.Errorf("agent: record ref cid: %w", err)
	}
	return uri, c, nil
}
