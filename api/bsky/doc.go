// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package bsky holds generated bindings for the app.bsky.* lexicons
// used by the agent helpers and tests: feed posts and timelines,
// actor profiles and preferences, follows, rich text, and embeds.
package bsky
