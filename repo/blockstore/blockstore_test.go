// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/repo/blockstore"
)

func testBlock(t *testing.T, payload string) (cid.Cid, []byte) {
	t.Helper()
	raw, err := codec.Marshal(map[string]string{"payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	return codec.SumCID(raw), raw
}

// testStore exercises the Store contract against any implementation.
func testStore(t *testing.T, store blockstore.Store) {
	ctx := context.Background()

	c1, raw1 := testBlock(t, "one")
	c2, raw2 := testBlock(t, "two")
	c3, raw3 := testBlock(t, "three")

	if _, err := store.Get(ctx, c1); !errors.Is(err, blockstore.ErrNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
	}
	if _, err := store.Root(ctx); !errors.Is(err, blockstore.ErrNoRoot) {
		t.Fatalf("Root on empty store = %v, want ErrNoRoot", err)
	}

	if err := store.Put(ctx, c1, raw1); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, c1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw1) {
		t.Fatal("Get returned different bytes than Put stored")
	}
	ok, err := store.Has(ctx, c1)
	if err != nil || !ok {
		t.Fatalf("Has(c1) = %v, %v, want true", ok, err)
	}
	ok, err = store.Has(ctx, c2)
	if err != nil || ok {
		t.Fatalf("Has(c2) = %v, %v, want false", ok, err)
	}

	if err := store.PutMany(ctx, map[cid.Cid][]byte{c2: raw2}); err != nil {
		t.Fatal(err)
	}

	ws := &blockstore.WriteSet{
		Root:    c3,
		Rev:     "3lk2aaaaaaa2a",
		Blocks:  map[cid.Cid][]byte{c3: raw3},
		Removed: []cid.Cid{c1},
	}
	if err := store.ApplyCommit(ctx, ws); err != nil {
		t.Fatal(err)
	}
	root, err := store.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !root.Equals(c3) {
		t.Fatalf("Root = %s, want %s", root, c3)
	}
	got, err = store.Get(ctx, c3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw3) {
		t.Fatal("committed block not readable")
	}
}

func TestMemory(t *testing.T) {
	testStore(t, blockstore.NewMemory())
}

func TestMemoryRemovesBlocks(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()
	c1, raw1 := testBlock(t, "stale")
	c2, raw2 := testBlock(t, "fresh")
	if err := store.Put(ctx, c1, raw1); err != nil {
		t.Fatal(err)
	}
	ws := &blockstore.WriteSet{
		Root:    c2,
		Blocks:  map[cid.Cid][]byte{c2: raw2},
		Removed: []cid.Cid{c1},
	}
	if err := store.ApplyCommit(ctx, ws); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, c1); !errors.Is(err, blockstore.ErrNotFound) {
		t.Fatalf("removed block still readable: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestFile(t *testing.T) {
	store, err := blockstore.OpenFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	testStore(t, store)
}

func TestFilePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c1, raw1 := testBlock(t, "durable")
	c2, raw2 := testBlock(t, "root")

	store, err := blockstore.OpenFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, c1, raw1); err != nil {
		t.Fatal(err)
	}
	ws := &blockstore.WriteSet{
		Root:   c2,
		Blocks: map[cid.Cid][]byte{c2: raw2},
	}
	if err := store.ApplyCommit(ctx, ws); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := blockstore.OpenFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, c1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw1) {
		t.Fatal("block lost across reopen")
	}
	root, err := reopened.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !root.Equals(c2) {
		t.Fatalf("root lost across reopen: got %s, want %s", root, c2)
	}
}

func TestFileTornTail(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c1, raw1 := testBlock(t, "kept")
	c2, raw2 := testBlock(t, "torn")

	store, err := blockstore.OpenFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, c1, raw1); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, c2, raw2); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash mid-append by chopping bytes off the end.
	path := filepath.Join(dir, "blocks.car")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-5); err != nil {
		t.Fatal(err)
	}

	reopened, err := blockstore.OpenFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, c1); err != nil {
		t.Fatalf("intact block unreadable after torn tail: %v", err)
	}
	if _, err := reopened.Get(ctx, c2); !errors.Is(err, blockstore.ErrNotFound) {
		t.Fatalf("torn block should be gone, got %v", err)
	}

	// The store accepts new appends after recovery.
	if err := reopened.Put(ctx, c2, raw2); err != nil {
		t.Fatal(err)
	}
	got, err := reopened.Get(ctx, c2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw2) {
		t.Fatal("re-appended block mismatch")
	}
}

func TestLayered(t *testing.T) {
	testStore(t, blockstore.NewLayered(blockstore.NewMemory()))
}

func TestLayeredFallthrough(t *testing.T) {
	ctx := context.Background()

	base := blockstore.NewMemory()
	top := blockstore.NewMemory()
	layered := blockstore.NewLayered(top, base)

	cBase, rawBase := testBlock(t, "base")
	cTop, rawTop := testBlock(t, "top")

	if err := base.ApplyCommit(ctx, &blockstore.WriteSet{
		Root:   cBase,
		Blocks: map[cid.Cid][]byte{cBase: rawBase},
	}); err != nil {
		t.Fatal(err)
	}

	// Reads reach through to the base layer.
	got, err := layered.Get(ctx, cBase)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, rawBase) {
		t.Fatal("fallthrough read mismatch")
	}
	root, err := layered.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !root.Equals(cBase) {
		t.Fatal("fallthrough root mismatch")
	}

	// Writes stay in the top layer.
	if err := layered.Put(ctx, cTop, rawTop); err != nil {
		t.Fatal(err)
	}
	if ok, _ := base.Has(ctx, cTop); ok {
		t.Fatal("write leaked into the base layer")
	}
	if ok, _ := top.Has(ctx, cTop); !ok {
		t.Fatal("write missing from the top layer")
	}

	// A commit on the top layer shadows the base root.
	if err := layered.ApplyCommit(ctx, &blockstore.WriteSet{
		Root:   cTop,
		Blocks: map[cid.Cid][]byte{cTop: rawTop},
	}); err != nil {
		t.Fatal(err)
	}
	root, err = layered.Root(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !root.Equals(cTop) {
		t.Fatal("top layer root should shadow the base")
	}
}
