// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves AT Protocol identities: handle to DID,
// DID to DID document, and DID document to PDS endpoint and signing
// key.
//
// Handle resolution tries DNS first (a TXT record at
// _atproto.<handle> containing "did=<did>") and falls back to the
// HTTPS well-known endpoint. DID resolution supports did:plc via a
// configurable PLC directory and did:web via the host's
// /.well-known/did.json.
//
// The Resolver caches positive results for a configurable TTL and
// failures for a shorter one, and collapses concurrent lookups of
// the same identifier into a single upstream request.
package identity
