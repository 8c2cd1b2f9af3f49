// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/lib/data"
	"github.com/tapestry-foundation/tapestry/repo/blockstore"
)

// Errors returned by tree operations.
var (
	ErrKeyNotFound = errors.New("repo: key not found")
	ErrKeyExists   = errors.New("repo: key already exists")
)

// maxTreeKeyLen bounds a tree key ("collection/rkey").
const maxTreeKeyLen = 256

// MST is a Merkle Search Tree with fanout 4: each key's layer is
// the number of leading zero bits in its SHA-256 hash divided by
// two, which makes the tree shape a pure function of its contents.
// Inserting the same key set in any order yields byte-identical
// node blocks and the same root CID.
//
// Nodes are loaded lazily from the backing store and mutated in
// memory; Persist serializes every changed node and returns the new
// root. An MST is not safe for concurrent use.
type MST struct {
	store blockstore.Store
	root  *mstNode
}

// mstNode holds interleaved entries in key order: subtree pointers
// cover the key ranges between (and outside) the leaves around
// them.
type mstNode struct {
	layer   int
	entries []mstEntry
	cid     cid.Cid
	dirty   bool
}

// mstEntry is either a leaf (key set) or a subtree pointer (key
// empty). A subtree pointer carries the on-disk CID until the child
// is loaded or rebuilt.
type mstEntry struct {
	key      string
	value    cid.Cid
	child    *mstNode
	childCID cid.Cid
}

func (e *mstEntry) isLeaf() bool { return e.key != "" }
func (e *mstEntry) isTree() bool { return e.key == "" }

// diskNode is the wire form of a node: an optional leftmost subtree
// link plus prefix-compressed leaves, each with an optional subtree
// link to its right.
type diskNode struct {
	Left    *data.CIDLink `cbor:"l"`
	Entries []diskEntry   `cbor:"e"`
}

type diskEntry struct {
	PrefixLen int64         `cbor:"p"`
	KeySuffix []byte        `cbor:"k"`
	Value     data.CIDLink  `cbor:"v"`
	Tree      *data.CIDLink `cbor:"t"`
}

// NewMST returns an empty tree over the given store.
func NewMST(store blockstore.Store) *MST {
	return &MST{
		store: store,
		root:  &mstNode{layer: 0, dirty: true},
	}
}

// LoadMST opens an existing tree rooted at the given CID.
func LoadMST(ctx context.Context, store blockstore.Store, root cid.Cid) (*MST, error) {
	t := &MST{store: store}
	n, err := t.loadNode(ctx, root, -1)
	if err != nil {
		return nil, err
	}
	t.root = n
	return t, nil
}

// keyLayer maps a key to its tree layer: leading zero bits of the
// SHA-256 hash, two bits per layer.
func keyLayer(key string) int {
	h := sha256.Sum256([]byte(key))
	total := 0
	for _, b := range h {
		if b == 0 {
			total += 8
			continue
		}
		total += bits.LeadingZeros8(b)
		break
	}
	return total / 2
}

// validateTreeKey checks the "collection/rkey" shape: two non-empty
// path segments of the permitted character set, within the length
// bound.
func validateTreeKey(key string) error {
	if len(key) == 0 || len(key) > maxTreeKeyLen {
		return fmt.Errorf("repo: tree key length %d out of range", len(key))
	}
	slash := -1
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '/':
			if slash >= 0 {
				return fmt.Errorf("repo: tree key %q has multiple path segments", key)
			}
			slash = i
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '-', c == ':', c == '.', c == '~':
		default:
			return fmt.Errorf("repo: tree key %q has invalid character %q", key, c)
		}
	}
	if slash <= 0 || slash == len(key)-1 {
		return fmt.Errorf("repo: tree key %q must be collection/rkey", key)
	}
	return nil
}

// Get returns the value CID for key, or ErrKeyNotFound.
func (t *MST) Get(ctx context.Context, key string) (cid.Cid, error) {
	n := t.root
	for {
		idx := n.findGTE(key)
		if found := n.entryAt(idx); found != nil && found.isLeaf() && found.key == key {
			return found.value, nil
		}
		prev := n.entryAt(idx - 1)
		if prev == nil || !prev.isTree() {
			return cid.Undef, fmt.Errorf("repo: get %q: %w", key, ErrKeyNotFound)
		}
		child, err := t.loadChild(ctx, n, idx-1)
		if err != nil {
			return cid.Undef, err
		}
		n = child
	}
}

// Add inserts a new key. It fails with ErrKeyExists when the key is
// already present.
func (t *MST) Add(ctx context.Context, key string, value cid.Cid) error {
	return t.insert(ctx, key, value, false)
}

// Update replaces the value of an existing key. It fails with
// ErrKeyNotFound when the key is absent.
func (t *MST) Update(ctx context.Context, key string, value cid.Cid) error {
	if _, err := t.Get(ctx, key); err != nil {
		return err
	}
	return t.insert(ctx, key, value, true)
}

func (t *MST) insert(ctx context.Context, key string, value cid.Cid, replace bool) error {
	if err := validateTreeKey(key); err != nil {
		return err
	}
	if !value.Defined() {
		return fmt.Errorf("repo: insert %q: undefined value CID", key)
	}
	newRoot, err := t.insertNode(ctx, t.root, key, value, keyLayer(key), replace)
	if err != nil {
		return err
	}
	t.root = newRoot
	return nil
}

func (t *MST) insertNode(ctx context.Context, n *mstNode, key string, value cid.Cid, zeros int, replace bool) (*mstNode, error) {
	layer, err := t.nodeLayer(ctx, n)
	if err != nil {
		return nil, err
	}

	switch {
	case zeros == layer:
		idx := n.findGTE(key)
		if found := n.entryAt(idx); found != nil && found.isLeaf() && found.key == key {
			if !replace {
				return nil, fmt.Errorf("repo: add %q: %w", key, ErrKeyExists)
			}
			found.value = value
			n.markDirty()
			return n, nil
		}
		prev := n.entryAt(idx - 1)
		if prev == nil || prev.isLeaf() {
			n.insertAt(idx, mstEntry{key: key, value: value})
			n.markDirty()
			return n, nil
		}
		// The covering subtree straddles the new key; split it.
		child, err := t.loadChild(ctx, n, idx-1)
		if err != nil {
			return nil, err
		}
		left, right, err := t.splitAround(ctx, child, key)
		if err != nil {
			return nil, err
		}
		replacement := make([]mstEntry, 0, 3)
		if left != nil {
			replacement = append(replacement, mstEntry{child: left})
		}
		replacement = append(replacement, mstEntry{key: key, value: value})
		if right != nil {
			replacement = append(replacement, mstEntry{child: right})
		}
		n.replaceAt(idx-1, replacement...)
		n.markDirty()
		return n, nil

	case zeros < layer:
		idx := n.findGTE(key)
		prev := n.entryAt(idx - 1)
		if prev != nil && prev.isTree() {
			child, err := t.loadChild(ctx, n, idx-1)
			if err != nil {
				return nil, err
			}
			newChild, err := t.insertNode(ctx, child, key, value, zeros, replace)
			if err != nil {
				return nil, err
			}
			n.setChild(idx-1, newChild)
			n.markDirty()
			return n, nil
		}
		child := &mstNode{layer: layer - 1, dirty: true}
		newChild, err := t.insertNode(ctx, child, key, value, zeros, replace)
		if err != nil {
			return nil, err
		}
		n.insertAt(idx, mstEntry{child: newChild})
		n.markDirty()
		return n, nil

	default: // zeros > layer: the key lives above the current root
		left, right, err := t.splitAround(ctx, n, key)
		if err != nil {
			return nil, err
		}
		for l := layer + 1; l < zeros; l++ {
			if left != nil {
				left = &mstNode{layer: l, entries: []mstEntry{{child: left}}, dirty: true}
			}
			if right != nil {
				right = &mstNode{layer: l, entries: []mstEntry{{child: right}}, dirty: true}
			}
		}
		entries := make([]mstEntry, 0, 3)
		if left != nil {
			entries = append(entries, mstEntry{child: left})
		}
		entries = append(entries, mstEntry{key: key, value: value})
		if right != nil {
			entries = append(entries, mstEntry{child: right})
		}
		return &mstNode{layer: zeros, entries: entries, dirty: true}, nil
	}
}

// splitAround divides a subtree into the parts strictly left and
// right of key. Either side may come back nil when empty.
func (t *MST) splitAround(ctx context.Context, n *mstNode, key string) (*mstNode, *mstNode, error) {
	idx := n.findGTE(key)
	leftEntries := append([]mstEntry(nil), n.entries[:idx]...)
	rightEntries := append([]mstEntry(nil), n.entries[idx:]...)

	// A subtree at the boundary may straddle the key.
	if len(leftEntries) > 0 && leftEntries[len(leftEntries)-1].isTree() {
		last := len(leftEntries) - 1
		child, err := t.loadEntryChild(ctx, &leftEntries[last], n.layer-1)
		if err != nil {
			return nil, nil, err
		}
		subLeft, subRight, err := t.splitAround(ctx, child, key)
		if err != nil {
			return nil, nil, err
		}
		leftEntries = leftEntries[:last]
		if subLeft != nil {
			leftEntries = append(leftEntries, mstEntry{child: subLeft})
		}
		if subRight != nil {
			rightEntries = append([]mstEntry{{child: subRight}}, rightEntries...)
		}
	}

	var left, right *mstNode
	if len(leftEntries) > 0 {
		left = &mstNode{layer: n.layer, entries: leftEntries, dirty: true}
	}
	if len(rightEntries) > 0 {
		right = &mstNode{layer: n.layer, entries: rightEntries, dirty: true}
	}
	return left, right, nil
}

// Delete removes a key, merging and trimming nodes so the resulting
// tree is identical to one built without the key.
func (t *MST) Delete(ctx context.Context, key string) error {
	if err := validateTreeKey(key); err != nil {
		return err
	}
	n, err := t.deleteNode(ctx, t.root, key)
	if err != nil {
		return err
	}
	// Trim single-subtree layers off the top.
	for len(n.entries) == 1 && n.entries[0].isTree() {
		child, err := t.loadChild(ctx, n, 0)
		if err != nil {
			return err
		}
		n = child
	}
	t.root = n
	return nil
}

func (t *MST) deleteNode(ctx context.Context, n *mstNode, key string) (*mstNode, error) {
	idx := n.findGTE(key)
	if found := n.entryAt(idx); found != nil && found.isLeaf() && found.key == key {
		prev := n.entryAt(idx - 1)
		next := n.entryAt(idx + 1)
		if prev != nil && prev.isTree() && next != nil && next.isTree() {
			leftChild, err := t.loadChild(ctx, n, idx-1)
			if err != nil {
				return nil, err
			}
			rightChild, err := t.loadChild(ctx, n, idx+1)
			if err != nil {
				return nil, err
			}
			merged, err := t.appendMerge(ctx, leftChild, rightChild)
			if err != nil {
				return nil, err
			}
			rest := append([]mstEntry{}, n.entries[:idx-1]...)
			rest = append(rest, mstEntry{child: merged})
			rest = append(rest, n.entries[idx+2:]...)
			n.entries = rest
		} else {
			n.entries = append(n.entries[:idx], n.entries[idx+1:]...)
		}
		n.markDirty()
		return n, nil
	}

	prev := n.entryAt(idx - 1)
	if prev == nil || !prev.isTree() {
		return nil, fmt.Errorf("repo: delete %q: %w", key, ErrKeyNotFound)
	}
	child, err := t.loadChild(ctx, n, idx-1)
	if err != nil {
		return nil, err
	}
	newChild, err := t.deleteNode(ctx, child, key)
	if err != nil {
		return nil, err
	}
	if len(newChild.entries) == 0 {
		n.entries = append(n.entries[:idx-1], n.entries[idx:]...)
	} else {
		n.setChild(idx-1, newChild)
	}
	n.markDirty()
	return n, nil
}

// appendMerge joins two same-layer trees whose key ranges abut,
// recursively merging the touching edge subtrees.
func (t *MST) appendMerge(ctx context.Context, left, right *mstNode) (*mstNode, error) {
	if left.layer != right.layer {
		return nil, fmt.Errorf("repo: cannot merge trees at layers %d and %d", left.layer, right.layer)
	}
	lastLeft := left.entryAt(len(left.entries) - 1)
	firstRight := right.entryAt(0)
	var entries []mstEntry
	if lastLeft != nil && lastLeft.isTree() && firstRight != nil && firstRight.isTree() {
		leftChild, err := t.loadChild(ctx, left, len(left.entries)-1)
		if err != nil {
			return nil, err
		}
		rightChild, err := t.loadChild(ctx, right, 0)
		if err != nil {
			return nil, err
		}
		merged, err := t.appendMerge(ctx, leftChild, rightChild)
		if err != nil {
			return nil, err
		}
		entries = append(entries, left.entries[:len(left.entries)-1]...)
		entries = append(entries, mstEntry{child: merged})
		entries = append(entries, right.entries[1:]...)
	} else {
		entries = append(entries, left.entries...)
		entries = append(entries, right.entries...)
	}
	return &mstNode{layer: left.layer, entries: entries, dirty: true}, nil
}

// errStopWalk aborts a walk early without reporting an error.
var errStopWalk = errors.New("stop walk")

// Walk visits every leaf in key order. Returning an error from fn
// stops the walk.
func (t *MST) Walk(ctx context.Context, fn func(key string, value cid.Cid) error) error {
	err := t.walkNode(ctx, t.root, fn)
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}

func (t *MST) walkNode(ctx context.Context, n *mstNode, fn func(key string, value cid.Cid) error) error {
	for i := range n.entries {
		e := &n.entries[i]
		if e.isLeaf() {
			if err := fn(e.key, e.value); err != nil {
				return err
			}
			continue
		}
		child, err := t.loadChild(ctx, n, i)
		if err != nil {
			return err
		}
		if err := t.walkNode(ctx, child, fn); err != nil {
			return err
		}
	}
	return nil
}

// ListEntry is one leaf returned by List.
type ListEntry struct {
	Key   string
	Value cid.Cid
}

// List returns up to limit leaves whose keys start with prefix,
// beginning strictly after the cursor key. A zero limit means no
// bound. The last returned key is the cursor for the next page.
func (t *MST) List(ctx context.Context, prefix, after string, limit int) ([]ListEntry, error) {
	var out []ListEntry
	err := t.Walk(ctx, func(key string, value cid.Cid) error {
		if after != "" && key <= after {
			return nil
		}
		if prefix != "" {
			if key < prefix {
				return nil
			}
			if len(key) < len(prefix) || key[:len(prefix)] != prefix {
				if key > prefix {
					return errStopWalk
				}
				return nil
			}
		}
		out = append(out, ListEntry{Key: key, Value: value})
		if limit > 0 && len(out) >= limit {
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// A Cursor iterates leaves in key order, resuming from an arbitrary
// key via Seek. It holds a descent path into the tree and loads
// nodes lazily, so it stays cheap on trees far larger than memory.
// Mutating the tree invalidates any open cursor.
type Cursor struct {
	tree  *MST
	stack []cursorFrame
}

// cursorFrame marks the next entry to visit within one node on the
// descent path.
type cursorFrame struct {
	node *mstNode
	next int
}

// Cursor returns an iterator positioned before the first leaf.
func (t *MST) Cursor() *Cursor {
	return &Cursor{tree: t, stack: []cursorFrame{{node: t.root}}}
}

// Seek positions the cursor so the following Next returns the first
// leaf whose key is greater than or equal to key.
func (c *Cursor) Seek(ctx context.Context, key string) error {
	c.stack = c.stack[:0]
	node := c.tree.root
	for {
		j := node.findGTE(key)
		c.stack = append(c.stack, cursorFrame{node: node, next: j})
		// The subtree directly left of the found leaf can still
		// hold keys at or above the target.
		if j == 0 || node.entries[j-1].isLeaf() {
			return nil
		}
		child, err := c.tree.loadChild(ctx, node, j-1)
		if err != nil {
			return err
		}
		node = child
	}
}

// Next returns the next leaf in key order. The boolean is false once
// the cursor is exhausted.
func (c *Cursor) Next(ctx context.Context) (ListEntry, bool, error) {
	for len(c.stack) > 0 {
		frame := &c.stack[len(c.stack)-1]
		if frame.next >= len(frame.node.entries) {
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}
		i := frame.next
		frame.next++
		e := &frame.node.entries[i]
		if e.isLeaf() {
			return ListEntry{Key: e.key, Value: e.value}, true, nil
		}
		child, err := c.tree.loadChild(ctx, frame.node, i)
		if err != nil {
			return ListEntry{}, false, err
		}
		c.stack = append(c.stack, cursorFrame{node: child})
	}
	return ListEntry{}, false, nil
}

// Persist serializes every changed node, returning the new root CID
// and the blocks that must be written to make the tree readable at
// that root. Unchanged subtrees are not re-serialized.
func (t *MST) Persist(ctx context.Context) (cid.Cid, map[cid.Cid][]byte, error) {
	blocks := make(map[cid.Cid][]byte)
	root, err := t.persistNode(ctx, t.root, blocks)
	if err != nil {
		return cid.Undef, nil, err
	}
	return root, blocks, nil
}

func (t *MST) persistNode(ctx context.Context, n *mstNode, blocks map[cid.Cid][]byte) (cid.Cid, error) {
	if !n.dirty && n.cid.Defined() {
		return n.cid, nil
	}
	for i := range n.entries {
		e := &n.entries[i]
		if !e.isTree() || e.child == nil {
			continue
		}
		c, err := t.persistNode(ctx, e.child, blocks)
		if err != nil {
			return cid.Undef, err
		}
		e.childCID = c
	}
	raw, err := n.serialize()
	if err != nil {
		return cid.Undef, err
	}
	c := codec.SumCID(raw)
	blocks[c] = raw
	n.cid = c
	n.dirty = false
	return c, nil
}

// serialize encodes a node into its wire form. Child CIDs must
// already be resolved.
func (n *mstNode) serialize() ([]byte, error) {
	dn := diskNode{Entries: []diskEntry{}}
	prevKey := ""
	entries := n.entries
	if len(entries) > 0 && entries[0].isTree() {
		if !entries[0].childCID.Defined() {
			return nil, errors.New("repo: serialize node with unresolved child")
		}
		link := data.CIDLink(entries[0].childCID)
		dn.Left = &link
		entries = entries[1:]
	}
	for i := 0; i < len(entries); i++ {
		e := &entries[i]
		if !e.isLeaf() {
			return nil, errors.New("repo: adjacent subtree entries in node")
		}
		shared := sharedPrefixLen(prevKey, e.key)
		de := diskEntry{
			PrefixLen: int64(shared),
			KeySuffix: []byte(e.key[shared:]),
			Value:     data.CIDLink(e.value),
		}
		prevKey = e.key
		if i+1 < len(entries) && entries[i+1].isTree() {
			next := &entries[i+1]
			if !next.childCID.Defined() {
				return nil, errors.New("repo: serialize node with unresolved child")
			}
			link := data.CIDLink(next.childCID)
			de.Tree = &link
			i++
		}
		dn.Entries = append(dn.Entries, de)
	}
	return codec.Marshal(dn)
}

func sharedPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// loadNode reads and decodes a node block. Pass layer -1 when the
// layer is not known from the parent; it is then derived from the
// node's first leaf.
func (t *MST) loadNode(ctx context.Context, c cid.Cid, layer int) (*mstNode, error) {
	raw, err := t.store.Get(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("repo: load tree node %s: %w", c, err)
	}
	var dn diskNode
	if err := codec.Unmarshal(raw, &dn); err != nil {
		return nil, fmt.Errorf("repo: decode tree node %s: %w", c, err)
	}
	n := &mstNode{layer: layer, cid: c}
	if dn.Left != nil {
		n.entries = append(n.entries, mstEntry{childCID: dn.Left.CID()})
	}
	prevKey := ""
	for _, de := range dn.Entries {
		if de.PrefixLen < 0 || int(de.PrefixLen) > len(prevKey) {
			return nil, fmt.Errorf("repo: tree node %s: bad key prefix length %d", c, de.PrefixLen)
		}
		key := prevKey[:de.PrefixLen] + string(de.KeySuffix)
		if prevKey != "" && key <= prevKey {
			return nil, fmt.Errorf("repo: tree node %s: keys out of order", c)
		}
		n.entries = append(n.entries, mstEntry{key: key, value: de.Value.CID()})
		if de.Tree != nil {
			n.entries = append(n.entries, mstEntry{childCID: de.Tree.CID()})
		}
		prevKey = key
	}
	if n.layer < 0 {
		for i := range n.entries {
			if n.entries[i].isLeaf() {
				n.layer = keyLayer(n.entries[i].key)
				break
			}
		}
	}
	return n, nil
}

// nodeLayer resolves a node's layer, descending into the leftmost
// child when the node itself has no leaves.
func (t *MST) nodeLayer(ctx context.Context, n *mstNode) (int, error) {
	if n.layer >= 0 {
		return n.layer, nil
	}
	if len(n.entries) == 0 {
		n.layer = 0
		return 0, nil
	}
	child, err := t.loadChild(ctx, n, 0)
	if err != nil {
		return 0, err
	}
	childLayer, err := t.nodeLayer(ctx, child)
	if err != nil {
		return 0, err
	}
	n.layer = childLayer + 1
	return n.layer, nil
}

func (t *MST) loadChild(ctx context.Context, n *mstNode, idx int) (*mstNode, error) {
	return t.loadEntryChild(ctx, &n.entries[idx], n.layer-1)
}

func (t *MST) loadEntryChild(ctx context.Context, e *mstEntry, layer int) (*mstNode, error) {
	if e.child != nil {
		return e.child, nil
	}
	child, err := t.loadNode(ctx, e.childCID, layer)
	if err != nil {
		return nil, err
	}
	e.child = child
	return child, nil
}

func (n *mstNode) findGTE(key string) int {
	for i := range n.entries {
		if n.entries[i].isLeaf() && n.entries[i].key >= key {
			return i
		}
	}
	return len(n.entries)
}

func (n *mstNode) entryAt(i int) *mstEntry {
	if i < 0 || i >= len(n.entries) {
		return nil
	}
	return &n.entries[i]
}

func (n *mstNode) insertAt(i int, e mstEntry) {
	n.entries = append(n.entries, mstEntry{})
	copy(n.entries[i+1:], n.entries[i:])
	n.entries[i] = e
}

func (n *mstNode) replaceAt(i int, replacement ...mstEntry) {
	rest := append([]mstEntry{}, n.entries[:i]...)
	rest = append(rest, replacement...)
	rest = append(rest, n.entries[i+1:]...)
	n.entries = rest
}

func (n *mstNode) setChild(i int, child *mstNode) {
	n.entries[i].child = child
	n.entries[i].childCID = cid.Undef
}

func (n *mstNode) markDirty() {
	n.dirty = true
	n.cid = cid.Undef
}

// ProofPath returns the node blocks on the path from the root to
// the leaf holding key. Together with the commit block they prove
// the record's membership. The tree must be persisted first.
func (t *MST) ProofPath(ctx context.Context, key string) (map[cid.Cid][]byte, error) {
	if t.root.dirty || !t.root.cid.Defined() {
		return nil, errors.New("repo: proof requires a persisted tree")
	}
	proof := make(map[cid.Cid][]byte)
	n := t.root
	for {
		raw, err := t.store.Get(ctx, n.cid)
		if err != nil {
			return nil, fmt.Errorf("repo: proof node %s: %w", n.cid, err)
		}
		proof[n.cid] = raw
		idx := n.findGTE(key)
		if found := n.entryAt(idx); found != nil && found.isLeaf() && found.key == key {
			return proof, nil
		}
		prev := n.entryAt(idx - 1)
		if prev == nil || !prev.isTree() {
			return nil, fmt.Errorf("repo: proof for %q: %w", key, ErrKeyNotFound)
		}
		child, err := t.loadChild(ctx, n, idx-1)
		if err != nil {
			return nil, err
		}
		n = child
	}
}

// nodeCIDs collects the CIDs of every node in a persisted tree.
func (t *MST) nodeCIDs(ctx context.Context) (map[cid.Cid]struct{}, error) {
	if t.root.dirty {
		return nil, errors.New("repo: node listing requires a persisted tree")
	}
	out := make(map[cid.Cid]struct{})
	var walk func(n *mstNode) error
	walk = func(n *mstNode) error {
		out[n.cid] = struct{}{}
		for i := range n.entries {
			if !n.entries[i].isTree() {
				continue
			}
			child, err := t.loadChild(ctx, n, i)
			if err != nil {
				return err
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return nil, err
	}
	return out, nil
}

// TreeOp describes one record-level change between two trees.
type TreeOp struct {
	Key  string
	Prev cid.Cid // undefined for a create
	Next cid.Cid // undefined for a delete
}

// TreeDiff is the result of comparing two persisted trees.
type TreeDiff struct {
	Ops          []TreeOp
	NewNodes     []cid.Cid
	RemovedNodes []cid.Cid
}

// DiffTrees compares the trees rooted at prev and next. Either root
// may be undefined to mean an empty tree. Ops come back in key
// order.
func DiffTrees(ctx context.Context, store blockstore.Store, prev, next cid.Cid) (*TreeDiff, error) {
	prevLeaves, prevNodes, err := collectTree(ctx, store, prev)
	if err != nil {
		return nil, err
	}
	nextLeaves, nextNodes, err := collectTree(ctx, store, next)
	if err != nil {
		return nil, err
	}

	diff := &TreeDiff{}
	i, j := 0, 0
	for i < len(prevLeaves) || j < len(nextLeaves) {
		switch {
		case j >= len(nextLeaves) || (i < len(prevLeaves) && prevLeaves[i].Key < nextLeaves[j].Key):
			diff.Ops = append(diff.Ops, TreeOp{Key: prevLeaves[i].Key, Prev: prevLeaves[i].Value})
			i++
		case i >= len(prevLeaves) || nextLeaves[j].Key < prevLeaves[i].Key:
			diff.Ops = append(diff.Ops, TreeOp{Key: nextLeaves[j].Key, Next: nextLeaves[j].Value})
			j++
		default:
			if !prevLeaves[i].Value.Equals(nextLeaves[j].Value) {
				diff.Ops = append(diff.Ops, TreeOp{
					Key:  prevLeaves[i].Key,
					Prev: prevLeaves[i].Value,
					Next: nextLeaves[j].Value,
				})
			}
			i++
			j++
		}
	}
	for c := range nextNodes {
		if _, ok := prevNodes[c]; !ok {
			diff.NewNodes = append(diff.NewNodes, c)
		}
	}
	for c := range prevNodes {
		if _, ok := nextNodes[c]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, c)
		}
	}
	sortCIDs(diff.NewNodes)
	sortCIDs(diff.RemovedNodes)
	return diff, nil
}

func collectTree(ctx context.Context, store blockstore.Store, root cid.Cid) ([]ListEntry, map[cid.Cid]struct{}, error) {
	if !root.Defined() {
		return nil, map[cid.Cid]struct{}{}, nil
	}
	t, err := LoadMST(ctx, store, root)
	if err != nil {
		return nil, nil, err
	}
	var leaves []ListEntry
	if err := t.Walk(ctx, func(key string, value cid.Cid) error {
		leaves = append(leaves, ListEntry{Key: key, Value: value})
		return nil
	}); err != nil {
		return nil, nil, err
	}
	nodes, err := t.nodeCIDs(ctx)
	if err != nil {
		return nil, nil, err
	}
	return leaves, nodes, nil
}

func sortCIDs(cids []cid.Cid) {
	sort.Slice(cids, func(i, j int) bool {
		return cids[i].KeyString() < cids[j].KeyString()
	})
}
