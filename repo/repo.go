// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/lib/data"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/repo/blockstore"
	"github.com/tapestry-foundation/tapestry/repo/car"
)

// ErrRecordNotFound reports a missing record path.
var ErrRecordNotFound = errors.New("repo: record not found")

// WriteAction selects what a Write does to a record path.
type WriteAction int

const (
	WriteCreate WriteAction = iota
	WriteUpdate
	WriteDelete
)

func (a WriteAction) String() string {
	switch a {
	case WriteCreate:
		return "create"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	default:
		return fmt.Sprintf("WriteAction(%d)", int(a))
	}
}

// Write is one record-level mutation. Record must be set for
// creates and updates and nil for deletes.
type Write struct {
	Action     WriteAction
	Collection syntax.NSID
	RecordKey  syntax.RecordKey
	Record     data.Value
}

// CommitResult describes a committed batch of writes.
type CommitResult struct {
	Commit *Commit
	CID    cid.Cid
	Rev    syntax.TID
	Ops    []TreeOp
}

// Repository is a mutable view over one account's record tree.
// Mutations accumulate in memory until Commit signs and persists
// them as a single new commit. Not safe for concurrent use.
type Repository struct {
	store  blockstore.Store
	did    syntax.DID
	tree   *MST
	commit *Commit
	head   cid.Cid
	clock  *syntax.Clock

	pendingBlocks map[cid.Cid][]byte
}

// NewRepository creates an empty repository for the given account.
// Nothing is written to the store until the first Commit.
func NewRepository(store blockstore.Store, did syntax.DID) *Repository {
	return &Repository{
		store:         store,
		did:           did,
		tree:          NewMST(store),
		clock:         syntax.NewClock(),
		pendingBlocks: make(map[cid.Cid][]byte),
	}
}

// LoadRepository opens the repository at the store's current root.
func LoadRepository(ctx context.Context, store blockstore.Store) (*Repository, error) {
	root, err := store.Root(ctx)
	if err != nil {
		return nil, err
	}
	return OpenRepository(ctx, store, root)
}

// OpenRepository opens the repository rooted at a specific commit.
func OpenRepository(ctx context.Context, store blockstore.Store, root cid.Cid) (*Repository, error) {
	raw, err := store.Get(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("repo: load commit %s: %w", root, err)
	}
	commit, err := ParseCommit(raw)
	if err != nil {
		return nil, err
	}
	did, err := syntax.ParseDID(commit.DID)
	if err != nil {
		return nil, fmt.Errorf("repo: commit did: %w", err)
	}
	tree, err := LoadMST(ctx, store, commit.Data.CID())
	if err != nil {
		return nil, err
	}
	return &Repository{
		store:         store,
		did:           did,
		tree:          tree,
		commit:        commit,
		head:          root,
		clock:         syntax.NewClock(),
		pendingBlocks: make(map[cid.Cid][]byte),
	}, nil
}

// DID returns the account the repository belongs to.
func (r *Repository) DID() syntax.DID { return r.did }

// Head returns the current commit CID, or cid.Undef before the
// first commit.
func (r *Repository) Head() cid.Cid { return r.head }

// Rev returns the current commit revision, zero before the first
// commit.
func (r *Repository) Rev() syntax.TID {
	if r.commit == nil || r.commit.Rev == "" {
		return syntax.TID{}
	}
	rev, _ := syntax.ParseTID(r.commit.Rev)
	return rev
}

func treeKey(collection syntax.NSID, rkey syntax.RecordKey) string {
	return collection.String() + "/" + rkey.String()
}

// GetRecord returns a record's CID and decoded body.
func (r *Repository) GetRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey) (cid.Cid, data.Value, error) {
	key := treeKey(collection, rkey)
	c, err := r.tree.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return cid.Undef, nil, fmt.Errorf("repo: %s: %w", key, ErrRecordNotFound)
		}
		return cid.Undef, nil, err
	}
	raw, ok := r.pendingBlocks[c]
	if !ok {
		raw, err = r.store.Get(ctx, c)
		if err != nil {
			return cid.Undef, nil, fmt.Errorf("repo: record block %s: %w", c, err)
		}
	}
	value, err := data.UnmarshalCBOR(raw)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("repo: decode record %s: %w", key, err)
	}
	return c, value, nil
}

// ListRecords returns up to limit records in a collection, starting
// strictly after the cursor record key.
func (r *Repository) ListRecords(ctx context.Context, collection syntax.NSID, after syntax.RecordKey, limit int) ([]ListEntry, error) {
	prefix := collection.String() + "/"
	cursor := ""
	if !after.IsZero() {
		cursor = prefix + after.String()
	}
	return r.tree.List(ctx, prefix, cursor, limit)
}

// ApplyWrites stages a batch of record mutations. The tree is
// updated immediately; record blocks stay pending until Commit.
func (r *Repository) ApplyWrites(ctx context.Context, writes []Write) error {
	for _, w := range writes {
		key := treeKey(w.Collection, w.RecordKey)
		switch w.Action {
		case WriteCreate, WriteUpdate:
			if w.Record == nil {
				return fmt.Errorf("repo: %s %s: no record body", w.Action, key)
			}
			raw, err := data.MarshalCBOR(w.Record)
			if err != nil {
				return fmt.Errorf("repo: encode record %s: %w", key, err)
			}
			c := codec.SumCID(raw)
			if w.Action == WriteCreate {
				err = r.tree.Add(ctx, key, c)
			} else {
				err = r.tree.Update(ctx, key, c)
			}
			if err != nil {
				return err
			}
			r.pendingBlocks[c] = raw
		case WriteDelete:
			if err := r.tree.Delete(ctx, key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("repo: unknown write action %d", w.Action)
		}
	}
	return nil
}

// CreateRecord stages a single record creation. When rkey is zero a
// fresh TID record key is minted and returned.
func (r *Repository) CreateRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey, record data.Value) (syntax.RecordKey, error) {
	if rkey.IsZero() {
		rkey = syntax.RecordKeyFromTID(r.clock.Next())
	}
	err := r.ApplyWrites(ctx, []Write{{
		Action:     WriteCreate,
		Collection: collection,
		RecordKey:  rkey,
		Record:     record,
	}})
	if err != nil {
		return syntax.RecordKey{}, err
	}
	return rkey, nil
}

// PutRecord stages a create-or-replace of a record.
func (r *Repository) PutRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey, record data.Value) error {
	action := WriteUpdate
	if _, err := r.tree.Get(ctx, treeKey(collection, rkey)); errors.Is(err, ErrKeyNotFound) {
		action = WriteCreate
	} else if err != nil {
		return err
	}
	return r.ApplyWrites(ctx, []Write{{
		Action:     action,
		Collection: collection,
		RecordKey:  rkey,
		Record:     record,
	}})
}

// DeleteRecord stages a record deletion.
func (r *Repository) DeleteRecord(ctx context.Context, collection syntax.NSID, rkey syntax.RecordKey) error {
	return r.ApplyWrites(ctx, []Write{{
		Action:     WriteDelete,
		Collection: collection,
		RecordKey:  rkey,
	}})
}

// Commit signs the staged state and applies it to the store as one
// atomic root move. The result lists the record-level ops relative
// to the previous commit.
func (r *Repository) Commit(ctx context.Context, signer Signer) (*CommitResult, error) {
	dataRoot, treeBlocks, err := r.tree.Persist(ctx)
	if err != nil {
		return nil, err
	}

	var prevData cid.Cid
	if r.commit != nil {
		prevData = r.commit.Data.CID()
	}

	rev := r.clock.Next()
	commit := &Commit{
		DID:     r.did.String(),
		Version: 3,
		Data:    data.CIDLink(dataRoot),
		Rev:     rev.String(),
	}
	if err := commit.Sign(signer); err != nil {
		return nil, err
	}
	commitRaw, err := commit.Bytes()
	if err != nil {
		return nil, err
	}
	commitCID := codec.SumCID(commitRaw)

	blocks := make(map[cid.Cid][]byte, len(treeBlocks)+len(r.pendingBlocks)+1)
	for c, raw := range treeBlocks {
		blocks[c] = raw
	}
	blocks[commitCID] = commitRaw

	ws := &blockstore.WriteSet{
		Root:   commitCID,
		Rev:    rev.String(),
		Blocks: blocks,
	}

	var ops []TreeOp
	if prevData.Defined() || dataRoot.Defined() {
		// Stage new blocks into a scratch layer so the diff can read
		// both trees before anything is durable.
		scratch := blockstore.NewMemory()
		if err := scratch.PutMany(ctx, blocks); err != nil {
			return nil, err
		}
		if err := scratch.PutMany(ctx, r.pendingBlocks); err != nil {
			return nil, err
		}
		diff, err := DiffTrees(ctx, blockstore.NewLayered(scratch, r.store), prevData, dataRoot)
		if err != nil {
			return nil, err
		}
		ops = diff.Ops
		ws.Removed = append(ws.Removed, diff.RemovedNodes...)

		for _, op := range diff.Ops {
			if op.Next.Defined() {
				if raw, ok := r.pendingBlocks[op.Next]; ok {
					blocks[op.Next] = raw
				}
			}
		}
		// A replaced record block is only removable when no other key
		// in the new tree references the same content.
		live := make(map[cid.Cid]struct{})
		if err := r.tree.Walk(ctx, func(_ string, value cid.Cid) error {
			live[value] = struct{}{}
			return nil
		}); err != nil {
			return nil, err
		}
		for _, op := range diff.Ops {
			if op.Prev.Defined() {
				if _, stillLive := live[op.Prev]; !stillLive {
					ws.Removed = append(ws.Removed, op.Prev)
				}
			}
		}
	}
	if r.head.Defined() {
		ws.Removed = append(ws.Removed, r.head)
	}

	if err := r.store.ApplyCommit(ctx, ws); err != nil {
		return nil, err
	}

	r.commit = commit
	r.head = commitCID
	r.pendingBlocks = make(map[cid.Cid][]byte)
	return &CommitResult{Commit: commit, CID: commitCID, Rev: rev, Ops: ops}, nil
}

// Verify checks that the current commit belongs to did and that its
// signature validates against didKey, then confirms every record
// block the tree references is readable. When the previous commit is
// reachable in the store, its rev must be strictly older.
func (r *Repository) Verify(ctx context.Context, did syntax.DID, didKey string) error {
	if r.commit == nil {
		return errors.New("repo: no commit to verify")
	}
	if r.commit.DID != did.String() {
		return fmt.Errorf("repo: commit signed by %s, want %s", r.commit.DID, did)
	}
	if err := r.commit.Verify(didKey); err != nil {
		return err
	}
	if r.commit.Prev != nil {
		if raw, err := r.store.Get(ctx, r.commit.Prev.CID()); err == nil {
			prev, err := ParseCommit(raw)
			if err != nil {
				return fmt.Errorf("repo: previous commit: %w", err)
			}
			if prev.DID != r.commit.DID {
				return fmt.Errorf("repo: previous commit belongs to %s", prev.DID)
			}
			if prev.Rev != "" && r.commit.Rev != "" && prev.Rev >= r.commit.Rev {
				return fmt.Errorf("repo: rev %s does not advance on previous commit rev %s", r.commit.Rev, prev.Rev)
			}
		}
	}
	return r.tree.Walk(ctx, func(key string, value cid.Cid) error {
		if _, err := r.store.Get(ctx, value); err != nil {
			return fmt.Errorf("repo: record %s: %w", key, err)
		}
		return nil
	})
}

// ExportCAR streams the full repository (commit, tree nodes, record
// blocks) as a CAR file rooted at the current commit.
func (r *Repository) ExportCAR(ctx context.Context, w io.Writer) error {
	if r.commit == nil || !r.head.Defined() {
		return errors.New("repo: nothing committed to export")
	}
	if len(r.pendingBlocks) > 0 {
		return errors.New("repo: uncommitted writes pending")
	}
	if err := car.WriteHeader(w, r.head); err != nil {
		return err
	}
	commitRaw, err := r.store.Get(ctx, r.head)
	if err != nil {
		return err
	}
	if err := car.WriteBlock(w, r.head, commitRaw); err != nil {
		return err
	}

	nodes, err := r.tree.nodeCIDs(ctx)
	if err != nil {
		return err
	}
	ordered := make([]cid.Cid, 0, len(nodes))
	for c := range nodes {
		ordered = append(ordered, c)
	}
	sortCIDs(ordered)
	for _, c := range ordered {
		raw, err := r.store.Get(ctx, c)
		if err != nil {
			return err
		}
		if err := car.WriteBlock(w, c, raw); err != nil {
			return err
		}
	}

	return r.tree.Walk(ctx, func(key string, value cid.Cid) error {
		raw, err := r.store.Get(ctx, value)
		if err != nil {
			return fmt.Errorf("repo: export record %s: %w", key, err)
		}
		return car.WriteBlock(w, value, raw)
	})
}

// ImportCAR loads a repository CAR into the store and opens it. The
// CAR's single root must be a valid commit block.
func ImportCAR(ctx context.Context, store blockstore.Store, src io.Reader) (*Repository, error) {
	roots, blocks, err := car.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(roots) != 1 {
		return nil, fmt.Errorf("repo: CAR has %d roots, want 1", len(roots))
	}
	commitRaw, ok := blocks[roots[0]]
	if !ok {
		return nil, fmt.Errorf("repo: CAR root %s has no block", roots[0])
	}
	commit, err := ParseCommit(commitRaw)
	if err != nil {
		return nil, err
	}
	ws := &blockstore.WriteSet{
		Root:   roots[0],
		Rev:    commit.Rev,
		Blocks: blocks,
	}
	if err := store.ApplyCommit(ctx, ws); err != nil {
		return nil, err
	}
	return OpenRepository(ctx, store, roots[0])
}
