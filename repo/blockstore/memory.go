// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// Memory is an in-process Store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
	root   cid.Cid
}

// NewMemory creates an empty in-memory block store.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[cid.Cid][]byte)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	block, ok := m.blocks[c]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(block))
	copy(out, block)
	return out, nil
}

// Has implements Store.
func (m *Memory) Has(ctx context.Context, c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[c]
	return ok, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, c cid.Cid, block []byte) error {
	stored := make([]byte, len(block))
	copy(stored, block)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[c] = stored
	return nil
}

// PutMany implements Store.
func (m *Memory) PutMany(ctx context.Context, blocks map[cid.Cid][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, block := range blocks {
		stored := make([]byte, len(block))
		copy(stored, block)
		m.blocks[c] = stored
	}
	return nil
}

// Root implements Store.
func (m *Memory) Root(ctx context.Context) (cid.Cid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.root.Defined() {
		return cid.Undef, ErrNoRoot
	}
	return m.root, nil
}

// ApplyCommit implements Store. Removed blocks are dropped
// immediately since memory is not append-only.
func (m *Memory) ApplyCommit(ctx context.Context, ws *WriteSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, block := range ws.Blocks {
		stored := make([]byte, len(block))
		copy(stored, block)
		m.blocks[c] = stored
	}
	for _, c := range ws.Removed {
		delete(m.blocks, c)
	}
	m.root = ws.Root
	return nil
}

// Len returns the number of stored blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}
