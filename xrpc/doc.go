// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package xrpc implements the HTTP client core for the AT Protocol's
// RPC convention: request construction against /xrpc/<nsid> paths,
// authorization header attachment (Bearer and DPoP schemes), DPoP
// proof signing with server-nonce feedback, and the error taxonomy
// that separates transport failures from protocol-level error
// envelopes.
//
// The package is session-agnostic. A Client holds a host and an
// http.Client; per-call state (auth token, DPoP signer, proxy and
// labeler headers) arrives through CallOptions. The agent package
// layers session management, token refresh, and record helpers on
// top of this contract.
package xrpc
