// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package car_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/repo/car"
)

func mustBlock(t *testing.T, payload string) (cid.Cid, []byte) {
	t.Helper()
	raw, err := codec.Marshal(map[string]string{"payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	return codec.SumCID(raw), raw
}

func TestRoundTrip(t *testing.T) {
	blocks := make(map[cid.Cid][]byte)
	var root cid.Cid
	for _, payload := range []string{"alpha", "beta", "gamma"} {
		c, raw := mustBlock(t, payload)
		blocks[c] = raw
		root = c
	}

	var buf bytes.Buffer
	if err := car.Write(&buf, root, blocks); err != nil {
		t.Fatal(err)
	}

	roots, got, err := car.ReadAll(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || !roots[0].Equals(root) {
		t.Fatalf("roots = %v, want [%s]", roots, root)
	}
	if len(got) != len(blocks) {
		t.Fatalf("read %d blocks, want %d", len(got), len(blocks))
	}
	for c, raw := range blocks {
		if !bytes.Equal(got[c], raw) {
			t.Errorf("block %s mismatch", c)
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	blocks := make(map[cid.Cid][]byte)
	var root cid.Cid
	for _, payload := range []string{"one", "two", "three", "four"} {
		c, raw := mustBlock(t, payload)
		blocks[c] = raw
		root = c
	}

	var first, second bytes.Buffer
	if err := car.Write(&first, root, blocks); err != nil {
		t.Fatal(err)
	}
	if err := car.Write(&second, root, blocks); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatal("same block set produced different CAR bytes")
	}
}

func TestStreamingReader(t *testing.T) {
	c1, raw1 := mustBlock(t, "first")
	c2, raw2 := mustBlock(t, "second")

	var buf bytes.Buffer
	if err := car.WriteHeader(&buf, c1); err != nil {
		t.Fatal(err)
	}
	if err := car.WriteBlock(&buf, c1, raw1); err != nil {
		t.Fatal(err)
	}
	if err := car.WriteBlock(&buf, c2, raw2); err != nil {
		t.Fatal(err)
	}

	r, err := car.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	gotCID, gotRaw, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !gotCID.Equals(c1) || !bytes.Equal(gotRaw, raw1) {
		t.Fatal("first section mismatch")
	}
	gotCID, gotRaw, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !gotCID.Equals(c2) || !bytes.Equal(gotRaw, raw2) {
		t.Fatal("second section mismatch")
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next at end = %v, want io.EOF", err)
	}
}

func TestEmptyRoots(t *testing.T) {
	var buf bytes.Buffer
	if err := car.WriteHeader(&buf, cid.Undef); err != nil {
		t.Fatal(err)
	}
	r, err := car.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Roots()) != 0 {
		t.Fatalf("Roots() = %v, want empty", r.Roots())
	}
}

func TestTruncatedSection(t *testing.T) {
	c, raw := mustBlock(t, "cut")
	var buf bytes.Buffer
	if err := car.WriteHeader(&buf, c); err != nil {
		t.Fatal(err)
	}
	if err := car.WriteBlock(&buf, c, raw); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]
	if _, _, err := car.ReadAll(bytes.NewReader(truncated)); err == nil {
		t.Fatal("expected error for truncated section")
	}
}
