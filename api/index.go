// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package api

// Generated package index. The lexgen generator rewrites the block
// between the markers; text outside them is preserved.

// BEGIN GENERATED INDEX
// atproto: com.atproto.identity, com.atproto.label, com.atproto.repo,
//   com.atproto.server, com.atproto.sync
// bsky: app.bsky.actor, app.bsky.embed, app.bsky.feed,
//   app.bsky.graph, app.bsky.richtext
// END GENERATED INDEX
