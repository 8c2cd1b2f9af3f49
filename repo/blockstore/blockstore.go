// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockstore provides content-addressed block storage for
// repositories. A Store maps CIDs to raw block bytes and tracks one
// root CID (the current commit). ApplyCommit is the only mutation
// entry point used by the repository layer: it lands a whole write
// set at once, so readers never observe a half-applied commit.
package blockstore

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// ErrNotFound is returned by Get for absent blocks.
var ErrNotFound = errors.New("blockstore: block not found")

// ErrNoRoot is returned by Root for stores that have never had a
// commit applied.
var ErrNoRoot = errors.New("blockstore: no root set")

// WriteSet is the atomic result of one commit: the new root, the
// blocks it introduces, and the CIDs it orphans. Stores may ignore
// Removed (append-only stores reclaim space by compaction instead).
type WriteSet struct {
	// Root is the commit block's CID, the new repository root.
	Root cid.Cid
	// Rev is the commit's revision TID, for stores that index by
	// revision.
	Rev string
	// Blocks are the new blocks: the commit itself, fresh MST nodes,
	// and new record blocks.
	Blocks map[cid.Cid][]byte
	// Removed lists blocks no longer reachable from the new root.
	Removed []cid.Cid
}

// Store is a content-addressed block store. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the block named by c, or ErrNotFound.
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
	// Has reports whether the block exists without fetching it.
	Has(ctx context.Context, c cid.Cid) (bool, error)
	// Put stores one block under its CID.
	Put(ctx context.Context, c cid.Cid, block []byte) error
	// PutMany stores a batch of blocks.
	PutMany(ctx context.Context, blocks map[cid.Cid][]byte) error
	// Root returns the current repository root, or ErrNoRoot.
	Root(ctx context.Context) (cid.Cid, error)
	// ApplyCommit atomically stores the write set's blocks and moves
	// the root.
	ApplyCommit(ctx context.Context, ws *WriteSet) error
}
