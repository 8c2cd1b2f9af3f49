// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tapestry-foundation/tapestry/xrpc"
)

func TestProofClaims(t *testing.T) {
	signer, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	proof, err := signer.Proof("POST", "https://pds.example.com/xrpc/com.atproto.repo.createRecord?x=1#frag", "access-token")
	if err != nil {
		t.Fatal(err)
	}
	claims := proofClaims(t, proof)

	if claims["htm"] != "POST" {
		t.Errorf("htm = %v", claims["htm"])
	}
	// Query preserved, fragment stripped.
	if claims["htu"] != "https://pds.example.com/xrpc/com.atproto.repo.createRecord?x=1" {
		t.Errorf("htu = %v", claims["htu"])
	}
	wantAth := base64.RawURLEncoding.EncodeToString(func() []byte {
		d := sha256.Sum256([]byte("access-token"))
		return d[:]
	}())
	if claims["ath"] != wantAth {
		t.Errorf("ath = %v, want %v", claims["ath"], wantAth)
	}
	if jti, _ := claims["jti"].(string); jti == "" {
		t.Error("jti missing")
	}
	if _, ok := claims["iat"].(float64); !ok {
		t.Error("iat missing")
	}
	if _, ok := claims["nonce"]; ok {
		t.Error("nonce present without a cached value")
	}

	// Unauthenticated proofs (token endpoint calls) omit ath.
	bare, err := signer.Proof("POST", "https://auth.example.com/token", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := proofClaims(t, bare)["ath"]; ok {
		t.Error("ath present without an access token")
	}
}

func TestProofHeader(t *testing.T) {
	signer, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	proof, err := signer.Proof("GET", "https://pds.example.com/xrpc/app.bsky.actor.getProfile", "tok")
	if err != nil {
		t.Fatal(err)
	}
	headerRaw, err := base64.RawURLEncoding.DecodeString(strings.Split(proof, ".")[0])
	if err != nil {
		t.Fatal(err)
	}
	var header struct {
		Typ string `json:"typ"`
		Alg string `json:"alg"`
		JWK struct {
			Kty string `json:"kty"`
			Crv string `json:"crv"`
			X   string `json:"x"`
			Y   string `json:"y"`
			D   string `json:"d"`
		} `json:"jwk"`
	}
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		t.Fatal(err)
	}
	if header.Typ != "dpop+jwt" || header.Alg != "ES256" {
		t.Errorf("header = %+v", header)
	}
	if header.JWK.Kty != "EC" || header.JWK.Crv != "P-256" || header.JWK.X == "" || header.JWK.Y == "" {
		t.Errorf("jwk = %+v", header.JWK)
	}
	if header.JWK.D != "" {
		t.Error("private scalar leaked into proof header")
	}
}

func TestProofNonce(t *testing.T) {
	signer, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	signer.Nonces.Set("pds.example.com", "abc123")

	proof, err := signer.Proof("GET", "https://pds.example.com/xrpc/app.bsky.actor.getProfile", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if got := proofClaims(t, proof)["nonce"]; got != "abc123" {
		t.Errorf("nonce = %v, want abc123", got)
	}

	// Nonces are per authority.
	other, err := signer.Proof("GET", "https://other.example.com/xrpc/app.bsky.actor.getProfile", "tok")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := proofClaims(t, other)["nonce"]; ok {
		t.Error("nonce leaked across authorities")
	}
}

func TestKeyExportImport(t *testing.T) {
	signer, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := signer.ExportKey()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := xrpc.ImportDPoPSigner(raw)
	if err != nil {
		t.Fatal(err)
	}
	if signer.Thumbprint() != restored.Thumbprint() {
		t.Error("thumbprint changed across export/import")
	}

	if _, err := xrpc.ImportDPoPSigner([]byte(`{"kty":"RSA"}`)); err == nil {
		t.Error("expected error for unsupported key type")
	}
}

func TestThumbprintStable(t *testing.T) {
	signer, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	if signer.Thumbprint() != signer.Thumbprint() {
		t.Error("thumbprint not deterministic")
	}
	other, err := xrpc.NewDPoPSigner()
	if err != nil {
		t.Fatal(err)
	}
	if signer.Thumbprint() == other.Thumbprint() {
		t.Error("distinct keys share a thumbprint")
	}
}
