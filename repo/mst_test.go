// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package repo_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/repo"
	"github.com/tapestry-foundation/tapestry/repo/blockstore"
)

func valueCID(t *testing.T, payload string) cid.Cid {
	t.Helper()
	raw, err := codec.Marshal(map[string]string{"text": payload})
	if err != nil {
		t.Fatal(err)
	}
	return codec.SumCID(raw)
}

func treeKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("app.example.feed.post/key-%04d", i)
	}
	return keys
}

func TestTreeAddGet(t *testing.T) {
	ctx := context.Background()
	tree := repo.NewMST(blockstore.NewMemory())

	v1 := valueCID(t, "one")
	if err := tree.Add(ctx, "app.example.feed.post/aaa", v1); err != nil {
		t.Fatal(err)
	}
	got, err := tree.Get(ctx, "app.example.feed.post/aaa")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(v1) {
		t.Fatalf("Get = %s, want %s", got, v1)
	}

	if err := tree.Add(ctx, "app.example.feed.post/aaa", v1); !errors.Is(err, repo.ErrKeyExists) {
		t.Fatalf("duplicate Add = %v, want ErrKeyExists", err)
	}
	if _, err := tree.Get(ctx, "app.example.feed.post/zzz"); !errors.Is(err, repo.ErrKeyNotFound) {
		t.Fatalf("missing Get = %v, want ErrKeyNotFound", err)
	}
}

func TestTreeUpdate(t *testing.T) {
	ctx := context.Background()
	tree := repo.NewMST(blockstore.NewMemory())

	v1 := valueCID(t, "before")
	v2 := valueCID(t, "after")
	key := "app.example.feed.post/aaa"

	if err := tree.Update(ctx, key, v1); !errors.Is(err, repo.ErrKeyNotFound) {
		t.Fatalf("Update on missing key = %v, want ErrKeyNotFound", err)
	}
	if err := tree.Add(ctx, key, v1); err != nil {
		t.Fatal(err)
	}
	if err := tree.Update(ctx, key, v2); err != nil {
		t.Fatal(err)
	}
	got, err := tree.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(v2) {
		t.Fatalf("Get after Update = %s, want %s", got, v2)
	}
}

func TestTreeInvalidKeys(t *testing.T) {
	ctx := context.Background()
	tree := repo.NewMST(blockstore.NewMemory())
	v := valueCID(t, "x")

	for _, key := range []string{
		"",
		"norkey",
		"/leading",
		"trailing/",
		"too/many/segments",
		"bad chars/aaa",
	} {
		if err := tree.Add(ctx, key, v); err == nil {
			t.Errorf("Add(%q) accepted an invalid key", key)
		}
	}
}

// Tree shape is a pure function of contents: any insertion order
// produces the same root.
func TestTreeInsertionOrderIndependence(t *testing.T) {
	ctx := context.Background()
	keys := treeKeys(64)

	buildRoot := func(order []string) cid.Cid {
		t.Helper()
		tree := repo.NewMST(blockstore.NewMemory())
		for _, key := range order {
			if err := tree.Add(ctx, key, valueCID(t, key)); err != nil {
				t.Fatal(err)
			}
		}
		root, _, err := tree.Persist(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return root
	}

	want := buildRoot(keys)
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]string(nil), keys...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if got := buildRoot(shuffled); !got.Equals(want) {
			t.Fatalf("trial %d: root %s, want %s", trial, got, want)
		}
	}
}

// Deleting a key restores the exact tree that never held it.
func TestTreeDeleteRestoresShape(t *testing.T) {
	ctx := context.Background()
	keys := treeKeys(32)
	extra := "app.example.feed.post/transient"

	without := repo.NewMST(blockstore.NewMemory())
	for _, key := range keys {
		if err := without.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}
	wantRoot, _, err := without.Persist(ctx)
	if err != nil {
		t.Fatal(err)
	}

	with := repo.NewMST(blockstore.NewMemory())
	for i, key := range keys {
		if i == len(keys)/2 {
			if err := with.Add(ctx, extra, valueCID(t, extra)); err != nil {
				t.Fatal(err)
			}
		}
		if err := with.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}
	if err := with.Delete(ctx, extra); err != nil {
		t.Fatal(err)
	}
	gotRoot, _, err := with.Persist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !gotRoot.Equals(wantRoot) {
		t.Fatalf("root after delete %s, want %s", gotRoot, wantRoot)
	}

	if err := with.Delete(ctx, extra); !errors.Is(err, repo.ErrKeyNotFound) {
		t.Fatalf("second Delete = %v, want ErrKeyNotFound", err)
	}
}

func TestTreePersistReload(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()
	keys := treeKeys(20)

	tree := repo.NewMST(store)
	want := make(map[string]cid.Cid, len(keys))
	for _, key := range keys {
		v := valueCID(t, key)
		want[key] = v
		if err := tree.Add(ctx, key, v); err != nil {
			t.Fatal(err)
		}
	}
	root, blocks, err := tree.Persist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.PutMany(ctx, blocks); err != nil {
		t.Fatal(err)
	}

	reloaded, err := repo.LoadMST(ctx, store, root)
	if err != nil {
		t.Fatal(err)
	}
	got := make(map[string]cid.Cid)
	prev := ""
	if err := reloaded.Walk(ctx, func(key string, value cid.Cid) error {
		if key <= prev {
			t.Errorf("walk out of order: %q after %q", key, prev)
		}
		prev = key
		got[key] = value
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("walked %d leaves, want %d", len(got), len(want))
	}
	for key, v := range want {
		if !got[key].Equals(v) {
			t.Errorf("leaf %q mismatch", key)
		}
	}

	// A reloaded tree mutates and persists the same as a fresh one.
	if err := reloaded.Delete(ctx, keys[3]); err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Get(ctx, keys[3]); !errors.Is(err, repo.ErrKeyNotFound) {
		t.Fatalf("deleted key still present: %v", err)
	}
}

func TestTreeCursor(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()
	keys := treeKeys(200)

	tree := repo.NewMST(store)
	for _, key := range keys {
		if err := tree.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}
	root, blocks, err := tree.Persist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.PutMany(ctx, blocks); err != nil {
		t.Fatal(err)
	}
	// Reload so the cursor descends through lazily loaded nodes.
	tree, err = repo.LoadMST(ctx, store, root)
	if err != nil {
		t.Fatal(err)
	}

	collect := func(cur *repo.Cursor) []string {
		var got []string
		for {
			entry, ok, err := cur.Next(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				return got
			}
			got = append(got, entry.Key)
		}
	}

	got := collect(tree.Cursor())
	if len(got) != len(keys) {
		t.Fatalf("full scan yielded %d leaves, want %d", len(got), len(keys))
	}
	for i, key := range keys {
		if got[i] != key {
			t.Fatalf("leaf %d = %q, want %q", i, got[i], key)
		}
	}

	// Seeking to an existing key resumes at that key.
	cur := tree.Cursor()
	if err := cur.Seek(ctx, keys[117]); err != nil {
		t.Fatal(err)
	}
	if got := collect(cur); len(got) != len(keys)-117 || got[0] != keys[117] {
		t.Fatalf("seek to %q resumed at %q with %d leaves", keys[117], got[0], len(got))
	}

	// Seeking between two keys resumes at the next greater one.
	cur = tree.Cursor()
	if err := cur.Seek(ctx, keys[42]+"0"); err != nil {
		t.Fatal(err)
	}
	entry, ok, err := cur.Next(ctx)
	if err != nil || !ok {
		t.Fatalf("Next after between-keys seek: ok=%v err=%v", ok, err)
	}
	if entry.Key != keys[43] {
		t.Fatalf("between-keys seek resumed at %q, want %q", entry.Key, keys[43])
	}

	// Seeking past the last key exhausts immediately.
	cur = tree.Cursor()
	if err := cur.Seek(ctx, "app.example.feed.post/zzz"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cur.Next(ctx); ok || err != nil {
		t.Fatalf("Next after past-end seek: ok=%v err=%v", ok, err)
	}
}

func TestTreeList(t *testing.T) {
	ctx := context.Background()
	tree := repo.NewMST(blockstore.NewMemory())

	for _, key := range []string{
		"app.example.feed.like/aaa",
		"app.example.feed.post/aaa",
		"app.example.feed.post/bbb",
		"app.example.feed.post/ccc",
		"app.example.graph.follow/aaa",
	} {
		if err := tree.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}

	page, err := tree.List(ctx, "app.example.feed.post/", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Key != "app.example.feed.post/aaa" || page[1].Key != "app.example.feed.post/bbb" {
		t.Fatalf("first page = %+v", page)
	}

	page, err = tree.List(ctx, "app.example.feed.post/", page[1].Key, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Key != "app.example.feed.post/ccc" {
		t.Fatalf("second page = %+v", page)
	}

	all, err := tree.List(ctx, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("unfiltered list has %d entries, want 5", len(all))
	}
}

func TestTreeProofPath(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()
	tree := repo.NewMST(store)
	keys := treeKeys(40)
	for _, key := range keys {
		if err := tree.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}
	root, blocks, err := tree.Persist(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.PutMany(ctx, blocks); err != nil {
		t.Fatal(err)
	}

	proof, err := tree.ProofPath(ctx, keys[7])
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := proof[root]; !ok {
		t.Fatal("proof does not include the root node")
	}

	// The proof blocks alone resolve the key.
	proofStore := blockstore.NewMemory()
	if err := proofStore.PutMany(ctx, proof); err != nil {
		t.Fatal(err)
	}
	partial, err := repo.LoadMST(ctx, proofStore, root)
	if err != nil {
		t.Fatal(err)
	}
	got, err := partial.Get(ctx, keys[7])
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equals(valueCID(t, keys[7])) {
		t.Fatal("proof resolves to wrong value")
	}

	if _, err := tree.ProofPath(ctx, "app.example.feed.post/absent"); !errors.Is(err, repo.ErrKeyNotFound) {
		t.Fatalf("proof for absent key = %v, want ErrKeyNotFound", err)
	}
}

func TestDiffTrees(t *testing.T) {
	ctx := context.Background()
	store := blockstore.NewMemory()

	persist := func(tree *repo.MST) cid.Cid {
		t.Helper()
		root, blocks, err := tree.Persist(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.PutMany(ctx, blocks); err != nil {
			t.Fatal(err)
		}
		return root
	}

	base := repo.NewMST(store)
	for _, key := range []string{
		"app.example.feed.post/kept",
		"app.example.feed.post/updated",
		"app.example.feed.post/deleted",
	} {
		if err := base.Add(ctx, key, valueCID(t, key)); err != nil {
			t.Fatal(err)
		}
	}
	prevRoot := persist(base)

	next, err := repo.LoadMST(ctx, store, prevRoot)
	if err != nil {
		t.Fatal(err)
	}
	if err := next.Update(ctx, "app.example.feed.post/updated", valueCID(t, "new body")); err != nil {
		t.Fatal(err)
	}
	if err := next.Delete(ctx, "app.example.feed.post/deleted"); err != nil {
		t.Fatal(err)
	}
	if err := next.Add(ctx, "app.example.feed.post/created", valueCID(t, "created")); err != nil {
		t.Fatal(err)
	}
	nextRoot := persist(next)

	diff, err := repo.DiffTrees(ctx, store, prevRoot, nextRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.Ops) != 3 {
		t.Fatalf("diff has %d ops, want 3: %+v", len(diff.Ops), diff.Ops)
	}
	byKey := make(map[string]repo.TreeOp)
	for _, op := range diff.Ops {
		byKey[op.Key] = op
	}
	created := byKey["app.example.feed.post/created"]
	if created.Prev.Defined() || !created.Next.Defined() {
		t.Errorf("created op = %+v", created)
	}
	updated := byKey["app.example.feed.post/updated"]
	if !updated.Prev.Defined() || !updated.Next.Defined() || updated.Prev.Equals(updated.Next) {
		t.Errorf("updated op = %+v", updated)
	}
	deleted := byKey["app.example.feed.post/deleted"]
	if !deleted.Prev.Defined() || deleted.Next.Defined() {
		t.Errorf("deleted op = %+v", deleted)
	}
	if len(diff.NewNodes) == 0 || len(diff.RemovedNodes) == 0 {
		t.Errorf("node diff empty: new=%d removed=%d", len(diff.NewNodes), len(diff.RemovedNodes))
	}

	// Diff against an empty tree lists every leaf as a create.
	full, err := repo.DiffTrees(ctx, store, cid.Undef, nextRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(full.Ops) != 3 {
		t.Fatalf("full diff has %d ops, want 3", len(full.Ops))
	}
	for _, op := range full.Ops {
		if op.Prev.Defined() {
			t.Errorf("full diff op %q has a prev value", op.Key)
		}
	}
}
