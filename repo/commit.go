// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"

	"github.com/tapestry-foundation/tapestry/lib/codec"
	"github.com/tapestry-foundation/tapestry/lib/data"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// Commit is the signed root object of a repository. The signature
// covers the DAG-CBOR encoding of the commit without the sig field.
// Version 3 commits carry a rev and a null prev; version 2 commits
// chain through prev. New commits are always written as version 3.
type Commit struct {
	DID     string        `cbor:"did"`
	Version int64         `cbor:"version"`
	Data    data.CIDLink  `cbor:"data"`
	Rev     string        `cbor:"rev,omitempty"`
	Prev    *data.CIDLink `cbor:"prev"`
	Sig     []byte        `cbor:"sig,omitempty"`
}

// unsignedCommit mirrors Commit minus the signature. Field order on
// the wire is fixed by canonical map sorting, so the mirror only
// has to carry the same tags.
type unsignedCommit struct {
	DID     string        `cbor:"did"`
	Version int64         `cbor:"version"`
	Data    data.CIDLink  `cbor:"data"`
	Rev     string        `cbor:"rev,omitempty"`
	Prev    *data.CIDLink `cbor:"prev"`
}

// ParseCommit decodes and structurally validates a commit block.
func ParseCommit(raw []byte) (*Commit, error) {
	var c Commit
	if err := codec.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("repo: decode commit: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Commit) validate() error {
	if c.Version != 2 && c.Version != 3 {
		return fmt.Errorf("repo: unsupported commit version %d", c.Version)
	}
	if _, err := syntax.ParseDID(c.DID); err != nil {
		return fmt.Errorf("repo: commit did: %w", err)
	}
	if c.Data.IsZero() {
		return errors.New("repo: commit has no data root")
	}
	if c.Version == 3 {
		if _, err := syntax.ParseTID(c.Rev); err != nil {
			return fmt.Errorf("repo: commit rev: %w", err)
		}
	}
	return nil
}

// UnsignedBytes returns the DAG-CBOR encoding the signature covers.
func (c *Commit) UnsignedBytes() ([]byte, error) {
	return codec.Marshal(unsignedCommit{
		DID:     c.DID,
		Version: c.Version,
		Data:    c.Data,
		Rev:     c.Rev,
		Prev:    c.Prev,
	})
}

// Bytes returns the full signed commit block.
func (c *Commit) Bytes() ([]byte, error) {
	if len(c.Sig) == 0 {
		return nil, errors.New("repo: commit is unsigned")
	}
	return codec.Marshal(c)
}

// Sign sets the commit signature using the given signer.
func (c *Commit) Sign(signer Signer) error {
	if err := c.validate(); err != nil {
		return err
	}
	msg, err := c.UnsignedBytes()
	if err != nil {
		return err
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return fmt.Errorf("repo: sign commit: %w", err)
	}
	c.Sig = sig
	return nil
}

// Verify checks the commit signature against a did:key string, as
// published in the identity document's signing key.
func (c *Commit) Verify(didKey string) error {
	if err := c.validate(); err != nil {
		return err
	}
	if len(c.Sig) == 0 {
		return errors.New("repo: commit is unsigned")
	}
	msg, err := c.UnsignedBytes()
	if err != nil {
		return err
	}
	return VerifySignature(didKey, msg, c.Sig)
}

// Multicodec prefixes used in did:key strings.
const (
	multicodecP256Pub = 0x1200
	multicodecK256Pub = 0xe7
)

// Signer produces 64-byte compact signatures (R then S, each 32
// bytes, low-S form) over the SHA-256 of the message.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
	DIDKey() string
}

// P256Signer signs with a NIST P-256 key (did:key zDn...).
type P256Signer struct {
	key *ecdsa.PrivateKey
}

// NewP256Signer generates a fresh P-256 signing key.
func NewP256Signer() (*P256Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("repo: generate p256 key: %w", err)
	}
	return &P256Signer{key: key}, nil
}

// P256SignerFromKey wraps an existing P-256 private key.
func P256SignerFromKey(key *ecdsa.PrivateKey) (*P256Signer, error) {
	if key.Curve != elliptic.P256() {
		return nil, errors.New("repo: key is not on the P-256 curve")
	}
	return &P256Signer{key: key}, nil
}

// Sign implements Signer.
func (s *P256Signer) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, err
	}
	// Normalize to low-S.
	n := s.key.Curve.Params().N
	halfN := new(big.Int).Rsh(n, 1)
	if sv.Cmp(halfN) > 0 {
		sv = new(big.Int).Sub(n, sv)
	}
	sig := make([]byte, 64)
	r.FillBytes(sig[:32])
	sv.FillBytes(sig[32:])
	return sig, nil
}

// DIDKey implements Signer.
func (s *P256Signer) DIDKey() string {
	compressed := elliptic.MarshalCompressed(elliptic.P256(), s.key.PublicKey.X, s.key.PublicKey.Y)
	return encodeDIDKey(multicodecP256Pub, compressed)
}

// K256Signer signs with a secp256k1 key (did:key zQ3s...).
type K256Signer struct {
	key *secp256k1.PrivateKey
}

// NewK256Signer generates a fresh secp256k1 signing key.
func NewK256Signer() (*K256Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("repo: generate k256 key: %w", err)
	}
	return &K256Signer{key: key}, nil
}

// K256SignerFromBytes wraps a 32-byte secp256k1 private scalar.
func K256SignerFromBytes(raw []byte) (*K256Signer, error) {
	if len(raw) != 32 {
		return nil, fmt.Errorf("repo: secp256k1 key must be 32 bytes, got %d", len(raw))
	}
	return &K256Signer{key: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// Sign implements Signer. The decred signer already produces low-S
// signatures.
func (s *K256Signer) Sign(msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	sig := secpecdsa.Sign(s.key, digest[:])
	r := sig.R()
	sv := sig.S()
	out := make([]byte, 64)
	rBytes := r.Bytes()
	sBytes := sv.Bytes()
	copy(out[:32], rBytes[:])
	copy(out[32:], sBytes[:])
	return out, nil
}

// DIDKey implements Signer.
func (s *K256Signer) DIDKey() string {
	return encodeDIDKey(multicodecK256Pub, s.key.PubKey().SerializeCompressed())
}

func encodeDIDKey(codecID uint64, compressed []byte) string {
	payload := append(varint.ToUvarint(codecID), compressed...)
	encoded, err := multibase.Encode(multibase.Base58BTC, payload)
	if err != nil {
		// Base58BTC is always registered.
		panic(err)
	}
	return "did:key:" + encoded
}

// VerifySignature checks a 64-byte compact signature over msg
// against a did:key public key. Both P-256 and secp256k1 keys are
// supported.
func VerifySignature(didKey string, msg, sig []byte) error {
	codecID, compressed, err := decodeDIDKey(didKey)
	if err != nil {
		return err
	}
	if len(sig) != 64 {
		return fmt.Errorf("repo: signature must be 64 bytes, got %d", len(sig))
	}
	digest := sha256.Sum256(msg)

	switch codecID {
	case multicodecP256Pub:
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed)
		if x == nil {
			return errors.New("repo: invalid p256 public key")
		}
		pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		if !ecdsa.Verify(pub, digest[:], r, s) {
			return errors.New("repo: signature verification failed")
		}
		return nil

	case multicodecK256Pub:
		pub, err := secp256k1.ParsePubKey(compressed)
		if err != nil {
			return fmt.Errorf("repo: invalid secp256k1 public key: %w", err)
		}
		var r, s secp256k1.ModNScalar
		if overflow := r.SetByteSlice(sig[:32]); overflow {
			return errors.New("repo: signature R out of range")
		}
		if overflow := s.SetByteSlice(sig[32:]); overflow {
			return errors.New("repo: signature S out of range")
		}
		if !secpecdsa.NewSignature(&r, &s).Verify(digest[:], pub) {
			return errors.New("repo: signature verification failed")
		}
		return nil

	default:
		return fmt.Errorf("repo: unsupported key multicodec 0x%x", codecID)
	}
}

func decodeDIDKey(didKey string) (uint64, []byte, error) {
	const prefix = "did:key:"
	if len(didKey) <= len(prefix) || didKey[:len(prefix)] != prefix {
		return 0, nil, fmt.Errorf("repo: %q is not a did:key", didKey)
	}
	_, payload, err := multibase.Decode(didKey[len(prefix):])
	if err != nil {
		return 0, nil, fmt.Errorf("repo: decode did:key: %w", err)
	}
	codecID, n, err := varint.FromUvarint(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("repo: decode did:key multicodec: %w", err)
	}
	compressed := payload[n:]
	if len(compressed) != 33 {
		return 0, nil, fmt.Errorf("repo: did:key public key must be 33 bytes, got %d", len(compressed))
	}
	return codecID, compressed, nil
}
