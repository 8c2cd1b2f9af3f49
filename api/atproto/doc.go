// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package atproto holds generated bindings for the com.atproto.*
// lexicons: session management, repository CRUD, identity
// resolution, sync, and labels.
package atproto
