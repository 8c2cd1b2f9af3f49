// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent layers account sessions on top of the transport
// client: app-password and OAuth session lifecycles with silent
// token refresh, plus the record-level convenience helpers
// (create, get, put with compare-and-swap, delete, blob upload,
// batched writes) that most applications call instead of raw
// endpoints.
package agent
