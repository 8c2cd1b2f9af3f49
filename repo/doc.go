// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package repo implements the signed content-addressed repository
// that holds an account's records: a Merkle Search Tree keyed by
// "collection/rkey" mapping to DAG-CBOR record blocks, rooted in a
// signed commit. It covers building and mutating repositories,
// signing and verifying commits, and exchanging whole repositories
// as CAR files.
package repo
