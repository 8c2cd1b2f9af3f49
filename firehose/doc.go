// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package firehose consumes atproto event streams.
//
// Subscribe follows the com.atproto.sync.subscribeRepos stream of a
// relay: binary WebSocket frames, each a DAG-CBOR header followed by a
// DAG-CBOR payload, carrying signed commits with CAR-encoded block
// diffs. Jetstream follows the simplified JSON stream served by a
// Jetstream instance, optionally zstd-compressed.
//
// Both consumers deliver events sequentially through caller-supplied
// handlers and track the stream cursor so a dropped connection resumes
// where it left off.
package firehose
