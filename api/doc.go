// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package api holds the runtime support shared by generated lexicon
// bindings: the record type registry and the JSON helpers that keep
// unrecognized fields intact across decode/encode round trips.
//
// The bindings themselves live in subpackages (atproto, bsky), one
// Go file per lexicon namespace group, in exactly the shape the
// lexgen generator emits.
package api
