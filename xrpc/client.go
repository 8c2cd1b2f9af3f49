// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// TokenScheme selects the Authorization header form.
type TokenScheme string

const (
	// SchemeBearer is the legacy app-password JWT scheme.
	SchemeBearer TokenScheme = "Bearer"
	// SchemeDPoP binds the token to a proof-of-possession key; each
	// request additionally carries a DPoP proof header.
	SchemeDPoP TokenScheme = "DPoP"
)

// Token is a per-call authorization token.
type Token struct {
	Scheme TokenScheme
	Value  string
}

// CallOptions carries per-call state: authorization, the DPoP signer
// for DPoP-scheme tokens, and the optional service-proxy and labeler
// headers.
type CallOptions struct {
	// Auth is the authorization token. Nil for public calls.
	Auth *Token
	// DPoP signs proofs for SchemeDPoP tokens. Required when Auth
	// uses the DPoP scheme.
	DPoP *DPoPSigner
	// Proxy routes the call through the PDS to another service,
	// formatted "did:web:api.example.com#service_id".
	Proxy string
	// AcceptLabelers lists labeler DIDs whose labels the caller
	// wants applied, each optionally suffixed ";redact".
	AcceptLabelers []string
	// Headers are extra request headers, applied last.
	Headers map[string]string
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Host is the base URL of the XRPC server (e.g.
	// "https://bsky.social").
	Host string
	// HTTPClient is used for all requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
	// UserAgent is sent on every request. If empty, a default
	// identifying the toolkit is used.
	UserAgent string
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

const defaultUserAgent = "tapestry/0.1"

// Client is a transport-level XRPC client bound to one host. It is
// stateless apart from the HTTP connection pool and safe for
// concurrent use; sessions and token refresh live in the agent
// package.
type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates an XRPC client for the given host.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("xrpc: Host is required")
	}
	parsed, err := url.Parse(config.Host)
	if err != nil {
		return nil, fmt.Errorf("xrpc: invalid Host %q: %w", config.Host, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("xrpc: Host %q must be http or https", config.Host)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		host:       strings.TrimRight(config.Host, "/"),
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}, nil
}

// Host returns the base URL this client targets.
func (c *Client) Host() string { return c.host }

// CloseIdleConnections closes idle HTTP connections in the
// underlying transport's pool. Call after a network disruption to
// force fresh TCP connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Do executes one XRPC call and classifies the response. A nil opts
// is treated as empty. The returned Response holds the full body;
// decode it with Response.Decode.
//
// If the server demands a fresh DPoP nonce (RFC 9449 §8), the call
// is retried exactly once with a proof carrying the nonce from the
// failed response; any second nonce rejection propagates as an
// error.
func (c *Client) Do(ctx context.Context, req Request, opts *CallOptions) (*Response, error) {
	if opts == nil {
		opts = &CallOptions{}
	}
	if req.XRPCMethod() == MethodSubscription {
		return nil, fmt.Errorf("xrpc: subscriptions are not served over HTTP; use the firehose package")
	}
	if opts.Auth != nil && opts.Auth.Scheme == SchemeDPoP && opts.DPoP == nil {
		return nil, fmt.Errorf("xrpc: DPoP token requires a DPoP signer")
	}

	// The body is buffered so the nonce retry can replay it.
	var body []byte
	if reader, err := req.Body(); err != nil {
		return nil, fmt.Errorf("xrpc: build request body: %w", err)
	} else if reader != nil {
		body, err = io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("xrpc: read request body: %w", err)
		}
	}

	requestURL := c.host + "/xrpc/" + req.NSID()
	if params := req.Params(); len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	resp, err := c.send(ctx, req, opts, requestURL, body)
	if err != nil {
		return nil, err
	}
	if needsDPoPNonceRetry(resp, opts) {
		c.logger.Debug("retrying with fresh DPoP nonce", "nsid", req.NSID())
		resp, err = c.send(ctx, req, opts, requestURL, body)
		if err != nil {
			return nil, err
		}
	}
	return classify(resp)
}

// rawResponse is the unclassified result of one HTTP exchange.
type rawResponse struct {
	status int
	header http.Header
	body   []byte
	accept string
}

func (c *Client) send(ctx context.Context, req Request, opts *CallOptions, requestURL string, body []byte) (*rawResponse, error) {
	httpMethod := http.MethodGet
	if req.XRPCMethod() == MethodProcedure {
		httpMethod = http.MethodPost
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, httpMethod, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("xrpc: build request: %w", err)
	}

	httpReq.Header.Set("User-Agent", c.userAgent)
	if encoding := req.Encoding(); encoding != "" && body != nil {
		httpReq.Header.Set("Content-Type", encoding)
	}
	if accept := req.OutputEncoding(); accept != "" {
		httpReq.Header.Set("Accept", accept)
	}
	if opts.Proxy != "" {
		httpReq.Header.Set("atproto-proxy", opts.Proxy)
	}
	if len(opts.AcceptLabelers) > 0 {
		httpReq.Header.Set("atproto-accept-labelers", strings.Join(opts.AcceptLabelers, ", "))
	}
	if opts.Auth != nil {
		httpReq.Header.Set("Authorization", string(opts.Auth.Scheme)+" "+opts.Auth.Value)
		if opts.Auth.Scheme == SchemeDPoP {
			proof, err := opts.DPoP.Proof(httpMethod, requestURL, opts.Auth.Value)
			if err != nil {
				return nil, fmt.Errorf("xrpc: %w", err)
			}
			httpReq.Header.Set("DPoP", proof)
		}
	}
	for k, v := range opts.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("xrpc: %s %s: %w", httpMethod, req.NSID(), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("xrpc: read response for %s: %w", req.NSID(), err)
	}

	// Nonce learning loop: every response may rotate the nonce,
	// including error responses.
	if opts.DPoP != nil {
		if nonce := httpResp.Header.Get("DPoP-Nonce"); nonce != "" {
			opts.DPoP.Nonces.Set(httpReq.URL.Host, nonce)
		}
	}

	return &rawResponse{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   respBody,
		accept: req.OutputEncoding(),
	}, nil
}

// needsDPoPNonceRetry recognizes the two nonce-demand shapes of RFC
// 9449 §8: resource servers answer 401 with a WWW-Authenticate DPoP
// challenge, authorization servers answer 400 with an error body.
func needsDPoPNonceRetry(resp *rawResponse, opts *CallOptions) bool {
	if opts.DPoP == nil {
		return false
	}
	switch resp.status {
	case http.StatusUnauthorized:
		challenge := resp.header.Get("WWW-Authenticate")
		return strings.HasPrefix(challenge, "DPoP") && strings.Contains(challenge, `error="use_dpop_nonce"`)
	case http.StatusBadRequest:
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.body, &envelope); err != nil {
			return false
		}
		return envelope.Error == CodeUseDPoPNonce
	default:
		return false
	}
}

// classify turns a raw HTTP exchange into a Response or an error per
// the taxonomy: 2xx succeeds; an envelope-shaped 4xx becomes *Error
// (auth codes become *AuthError); everything else becomes
// *HTTPError.
func classify(resp *rawResponse) (*Response, error) {
	if resp.status >= 200 && resp.status < 300 {
		return &Response{
			StatusCode: resp.status,
			Header:     resp.header,
			Bytes:      resp.body,
			encoding:   contentType(resp),
		}, nil
	}

	var envelope Error
	if err := json.Unmarshal(resp.body, &envelope); err == nil && envelope.Code != "" {
		envelope.StatusCode = resp.status
		switch envelope.Code {
		case CodeExpiredToken, CodeInvalidToken, CodeAuthRequired:
			return nil, &AuthError{
				Code:      envelope.Code,
				Message:   envelope.Message,
				Challenge: resp.header.Get("WWW-Authenticate"),
			}
		case CodeAccountDeactivated, CodeAccountTakedown:
			return nil, &AuthError{
				Code:    envelope.Code,
				Message: envelope.Message,
				Fatal:   true,
			}
		}
		return nil, &envelope
	}

	if resp.status == http.StatusUnauthorized {
		return nil, &AuthError{
			Message:   "unauthorized",
			Challenge: resp.header.Get("WWW-Authenticate"),
		}
	}
	return nil, &HTTPError{StatusCode: resp.status, Body: resp.body}
}

func contentType(resp *rawResponse) string {
	ct := resp.header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}
