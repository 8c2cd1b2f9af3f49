// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package lexgen loads Lexicon schema documents and generates Go
// bindings from them: typed structs for records and objects, tagged
// unions with an unknown fallback, request builders for queries and
// procedures, and message types for subscriptions.
//
// The generator is deliberately tolerant: a reference it cannot
// resolve becomes a schema-less data.Value field and a Diagnostic,
// so one broken document does not block a whole corpus.
package lexgen
