// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package blockstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"

	"github.com/tapestry-foundation/tapestry/repo/car"
)

const (
	blocksFileName = "blocks.car"
	rootFileName   = "root"
)

// File is a durable Store backed by a directory: an append-only
// blocks.car holding every block ever written, plus a sidecar root
// file rewritten atomically on each commit. The block index is
// rebuilt by scanning the CAR on open, so the store needs no
// separate index file and survives a crash mid-append (a torn tail
// section is detected and truncated away).
type File struct {
	mu    sync.RWMutex
	dir   string
	f     *os.File
	index map[cid.Cid]blockLocation
	size  int64
	root  cid.Cid
}

type blockLocation struct {
	offset int64
	length int64
}

// OpenFile opens or creates a directory-backed store.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blockstore: create directory: %w", err)
	}
	path := filepath.Join(dir, blocksFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", path, err)
	}
	s := &File{
		dir:   dir,
		f:     f,
		index: make(map[cid.Cid]blockLocation),
	}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// load scans blocks.car into the index and reads the root sidecar.
// A partially written final section (crash during append) is
// truncated; everything before it is kept.
func (s *File) load() error {
	info, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("blockstore: stat blocks file: %w", err)
	}
	if info.Size() == 0 {
		if err := car.WriteHeader(s.f, cid.Undef); err != nil {
			return err
		}
		if err := s.f.Sync(); err != nil {
			return fmt.Errorf("blockstore: sync header: %w", err)
		}
		end, err := s.f.Seek(0, 2)
		if err != nil {
			return fmt.Errorf("blockstore: seek: %w", err)
		}
		s.size = end
	} else {
		good, err := s.scan(info.Size())
		if err != nil {
			return err
		}
		if good < info.Size() {
			if err := s.f.Truncate(good); err != nil {
				return fmt.Errorf("blockstore: truncate torn tail: %w", err)
			}
		}
		s.size = good
		if _, err := s.f.Seek(good, 0); err != nil {
			return fmt.Errorf("blockstore: seek: %w", err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, rootFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blockstore: read root file: %w", err)
	}
	root, err := cid.Parse(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("blockstore: parse root file: %w", err)
	}
	s.root = root
	return nil
}

// Close closes the underlying file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Get implements Store.
func (s *File) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.index[c]
	if !ok {
		return nil, fmt.Errorf("blockstore: block %s: %w", c, ErrNotFound)
	}
	block := make([]byte, loc.length)
	if _, err := s.f.ReadAt(block, loc.offset); err != nil {
		return nil, fmt.Errorf("blockstore: read block %s: %w", c, err)
	}
	return block, nil
}

// Has implements Store.
func (s *File) Has(_ context.Context, c cid.Cid) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[c]
	return ok, nil
}

// Put implements Store.
func (s *File) Put(ctx context.Context, c cid.Cid, block []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(c, block); err != nil {
		return err
	}
	return s.syncLocked()
}

// PutMany implements Store.
func (s *File) PutMany(ctx context.Context, blocks map[cid.Cid][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, block := range blocks {
		if err := s.appendLocked(c, block); err != nil {
			return err
		}
	}
	return s.syncLocked()
}

// Root implements Store.
func (s *File) Root(context.Context) (cid.Cid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.root.Defined() {
		return cid.Undef, ErrNoRoot
	}
	return s.root, nil
}

// ApplyCommit implements Store. Blocks are appended and synced
// before the root sidecar is replaced, so a crash at any point
// leaves the store at either the old or the new root with all of
// that root's blocks present. Removed entries are ignored: the CAR
// is append-only, and stale blocks are reclaimed by rewriting the
// store offline if needed.
func (s *File) ApplyCommit(ctx context.Context, ws *WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, block := range ws.Blocks {
		if err := s.appendLocked(c, block); err != nil {
			return err
		}
	}
	if err := s.syncLocked(); err != nil {
		return err
	}

	path := filepath.Join(s.dir, rootFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(ws.Root.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("blockstore: write root file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("blockstore: replace root file: %w", err)
	}
	s.root = ws.Root
	return nil
}

func (s *File) appendLocked(c cid.Cid, block []byte) error {
	if _, ok := s.index[c]; ok {
		return nil
	}
	before := s.size
	counting := &countingWriter{w: s.f}
	if err := car.WriteBlock(counting, c, block); err != nil {
		// Drop the torn section so the next append starts clean.
		s.f.Truncate(before)
		s.f.Seek(before, 0)
		return err
	}
	s.size = before + counting.n
	s.index[c] = blockLocation{
		offset: s.size - int64(len(block)),
		length: int64(len(block)),
	}
	return nil
}

func (s *File) syncLocked() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("blockstore: sync blocks file: %w", err)
	}
	return nil
}

// scan walks section framing from the start of the file, indexing
// every complete block. It returns the offset just past the last
// complete section; anything beyond that is a torn tail.
func (s *File) scan(fileSize int64) (int64, error) {
	br := &fileByteReader{f: s.f}
	headerLen, err := varint.ReadUvarint(br)
	if err != nil {
		return 0, fmt.Errorf("blockstore: read CAR header length: %w", err)
	}
	if headerLen == 0 || br.pos+int64(headerLen) > fileSize {
		return 0, fmt.Errorf("blockstore: corrupt CAR header")
	}
	br.pos += int64(headerLen)

	good := br.pos
	for {
		length, err := varint.ReadUvarint(br)
		if err != nil {
			break
		}
		start := br.pos
		if length == 0 || start+int64(length) > fileSize {
			break
		}
		section := make([]byte, length)
		if _, err := s.f.ReadAt(section, start); err != nil {
			break
		}
		n, c, err := cid.CidFromBytes(section)
		if err != nil {
			return 0, fmt.Errorf("blockstore: corrupt section CID at offset %d: %w", start, err)
		}
		s.index[c] = blockLocation{
			offset: start + int64(n),
			length: int64(length) - int64(n),
		}
		br.pos = start + int64(length)
		good = br.pos
	}
	return good, nil
}

// fileByteReader feeds varint.ReadUvarint from an absolute file
// position without buffering ahead.
type fileByteReader struct {
	f   *os.File
	pos int64
	buf [1]byte
}

func (br *fileByteReader) ReadByte() (byte, error) {
	if _, err := br.f.ReadAt(br.buf[:], br.pos); err != nil {
		return 0, err
	}
	br.pos++
	return br.buf[0], nil
}

type countingWriter struct {
	w *os.File
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
