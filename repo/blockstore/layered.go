// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// Layered combines a writable top store with read-only fallback
// layers. Reads try each layer in order; all writes and the root go
// to the top store. The usual arrangement is a Memory scratch layer
// over a durable File store, so speculative commits can be built
// and discarded without touching disk.
type Layered struct {
	top  Store
	rest []Store
}

// NewLayered builds a layered store. The first argument receives
// writes; the remaining stores serve reads only.
func NewLayered(top Store, fallbacks ...Store) *Layered {
	return &Layered{top: top, rest: fallbacks}
}

// Get implements Store.
func (l *Layered) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	block, err := l.top.Get(ctx, c)
	if err == nil {
		return block, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	for _, layer := range l.rest {
		block, err = layer.Get(ctx, c)
		if err == nil {
			return block, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, err
}

// Has implements Store.
func (l *Layered) Has(ctx context.Context, c cid.Cid) (bool, error) {
	ok, err := l.top.Has(ctx, c)
	if err != nil || ok {
		return ok, err
	}
	for _, layer := range l.rest {
		ok, err = layer.Has(ctx, c)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// Put implements Store.
func (l *Layered) Put(ctx context.Context, c cid.Cid, block []byte) error {
	return l.top.Put(ctx, c, block)
}

// PutMany implements Store.
func (l *Layered) PutMany(ctx context.Context, blocks map[cid.Cid][]byte) error {
	return l.top.PutMany(ctx, blocks)
}

// Root implements Store. The top store's root wins; fallback layers
// are consulted only when the top has never committed.
func (l *Layered) Root(ctx context.Context) (cid.Cid, error) {
	root, err := l.top.Root(ctx)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrNoRoot) {
		return cid.Undef, err
	}
	for _, layer := range l.rest {
		root, err = layer.Root(ctx)
		if err == nil {
			return root, nil
		}
		if !errors.Is(err, ErrNoRoot) {
			return cid.Undef, err
		}
	}
	return cid.Undef, err
}

// ApplyCommit implements Store.
func (l *Layered) ApplyCommit(ctx context.Context, ws *WriteSet) error {
	return l.top.ApplyCommit(ctx, ws)
}
