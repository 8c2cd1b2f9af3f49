// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package car reads and writes CAR v1 files (content-addressable
// archives): a varint-length-prefixed DAG-CBOR header naming the
// root CIDs, followed by varint-length-prefixed (CID, block)
// sections. Repositories are exchanged in this format by the sync
// endpoints and the firehose.
//
// Writing is streaming: WriteHeader then any number of WriteBlock
// calls. Write is a convenience that emits a full block map in
// sorted CID order so the same block set always produces identical
// bytes.
package car

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/lib/data"
)

// maxSectionBytes bounds one section frame. Repository blocks are
// small; anything near this size is a corrupt or hostile stream.
const maxSectionBytes = 8 << 20

type header struct {
	Roots   []data.CIDLink `cbor:"roots"`
	Version int64          `cbor:"version"`
}

// WriteHeader writes the CAR v1 header. Pass cid.Undef to emit an
// empty root list (used by append-only stores whose root lives
// elsewhere).
func WriteHeader(w io.Writer, root cid.Cid) error {
	h := header{Version: 1, Roots: []data.CIDLink{}}
	if root.Defined() {
		h.Roots = []data.CIDLink{data.CIDLink(root)}
	}
	raw, err := codec.Marshal(h)
	if err != nil {
		return fmt.Errorf("car: encode header: %w", err)
	}
	if _, err := w.Write(varint.ToUvarint(uint64(len(raw)))); err != nil {
		return fmt.Errorf("car: write header: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("car: write header: %w", err)
	}
	return nil
}

// WriteBlock writes one (CID, bytes) section.
func WriteBlock(w io.Writer, c cid.Cid, block []byte) error {
	cidBytes := c.Bytes()
	if _, err := w.Write(varint.ToUvarint(uint64(len(cidBytes) + len(block)))); err != nil {
		return fmt.Errorf("car: write section length: %w", err)
	}
	if _, err := w.Write(cidBytes); err != nil {
		return fmt.Errorf("car: write section CID: %w", err)
	}
	if _, err := w.Write(block); err != nil {
		return fmt.Errorf("car: write section data: %w", err)
	}
	return nil
}

// Write emits a complete CAR with the given root and blocks, in
// sorted CID order for deterministic output.
func Write(w io.Writer, root cid.Cid, blocks map[cid.Cid][]byte) error {
	if err := WriteHeader(w, root); err != nil {
		return err
	}
	ordered := make([]cid.Cid, 0, len(blocks))
	for c := range blocks {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].KeyString() < ordered[j].KeyString()
	})
	for _, c := range ordered {
		if err := WriteBlock(w, c, blocks[c]); err != nil {
			return err
		}
	}
	return nil
}

// Reader streams sections out of a CAR file.
type Reader struct {
	r     *bufio.Reader
	roots []cid.Cid
}

// NewReader parses the header and prepares to stream sections.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	length, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("car: read header length: %w", err)
	}
	if length == 0 || length > maxSectionBytes {
		return nil, fmt.Errorf("car: implausible header length %d", length)
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("car: read header: %w", err)
	}
	var h header
	if err := codec.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("car: parse header: %w", err)
	}
	if h.Version != 1 {
		return nil, fmt.Errorf("car: unsupported version %d", h.Version)
	}
	roots := make([]cid.Cid, len(h.Roots))
	for i, link := range h.Roots {
		roots[i] = link.CID()
	}
	return &Reader{r: br, roots: roots}, nil
}

// Roots returns the root CIDs from the header.
func (r *Reader) Roots() []cid.Cid { return r.roots }

// Next returns the next section. io.EOF signals a clean end of file.
func (r *Reader) Next() (cid.Cid, []byte, error) {
	length, err := varint.ReadUvarint(r.r)
	if err == io.EOF {
		return cid.Undef, nil, io.EOF
	}
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("car: read section length: %w", err)
	}
	if length == 0 || length > maxSectionBytes {
		return cid.Undef, nil, fmt.Errorf("car: implausible section length %d", length)
	}
	section := make([]byte, length)
	if _, err := io.ReadFull(r.r, section); err != nil {
		return cid.Undef, nil, fmt.Errorf("car: read section: %w", err)
	}
	n, c, err := cid.CidFromBytes(section)
	if err != nil {
		return cid.Undef, nil, fmt.Errorf("car: parse section CID: %w", err)
	}
	return c, section[n:], nil
}

// ReadAll consumes a whole CAR into memory.
func ReadAll(r io.Reader) ([]cid.Cid, map[cid.Cid][]byte, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	blocks := make(map[cid.Cid][]byte)
	for {
		c, block, err := reader.Next()
		if err == io.EOF {
			return reader.Roots(), blocks, nil
		}
		if err != nil {
			return nil, nil, err
		}
		blocks[c] = block
	}
}
