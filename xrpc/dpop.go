// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package xrpc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// NonceCache tracks the most recent DPoP nonce pushed by each server,
// keyed by URL authority (host[:port]). Servers rotate nonces via the
// DPoP-Nonce response header; the next proof for that authority must
// carry the new value.
type NonceCache struct {
	nonces *xsync.MapOf[string, string]
}

// NewNonceCache creates an empty nonce cache.
func NewNonceCache() *NonceCache {
	return &NonceCache{nonces: xsync.NewMapOf[string, string]()}
}

// Get returns the current nonce for authority, if one has been seen.
func (c *NonceCache) Get(authority string) (string, bool) {
	return c.nonces.Load(authority)
}

// Set records the nonce for authority.
func (c *NonceCache) Set(authority, nonce string) {
	c.nonces.Store(authority, nonce)
}

// DPoPSigner signs per-request proof-of-possession JWTs binding
// access tokens to an EC P-256 key. The key is created once per
// OAuth session and stays stable across token refreshes; the nonce
// cache is fed by response headers.
type DPoPSigner struct {
	key    *ecdsa.PrivateKey
	Nonces *NonceCache
}

// NewDPoPSigner generates a fresh P-256 key.
func NewDPoPSigner() (*DPoPSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate DPoP key: %w", err)
	}
	return &DPoPSigner{key: key, Nonces: NewNonceCache()}, nil
}

// jwk is the JSON Web Key form of the signer's key. The private
// scalar d is included only by ExportKey.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	D   string `json:"d,omitempty"`
}

// ExportKey serializes the private key as a JWK for session
// persistence.
func (s *DPoPSigner) ExportKey() ([]byte, error) {
	pub := s.publicJWK()
	pub.D = base64.RawURLEncoding.EncodeToString(s.key.D.FillBytes(make([]byte, 32)))
	return json.Marshal(pub)
}

// ImportDPoPSigner restores a signer from an ExportKey JWK.
func ImportDPoPSigner(raw []byte) (*DPoPSigner, error) {
	var k jwk
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("parse DPoP key: %w", err)
	}
	if k.Kty != "EC" || k.Crv != "P-256" || k.D == "" {
		return nil, fmt.Errorf("unsupported DPoP key type %s/%s", k.Kty, k.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("parse DPoP key x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("parse DPoP key y: %w", err)
	}
	d, err := base64.RawURLEncoding.DecodeString(k.D)
	if err != nil {
		return nil, fmt.Errorf("parse DPoP key d: %w", err)
	}
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		},
		D: new(big.Int).SetBytes(d),
	}
	return &DPoPSigner{key: key, Nonces: NewNonceCache()}, nil
}

func (s *DPoPSigner) publicJWK() jwk {
	return jwk{
		Kty: "EC",
		Crv: "P-256",
		X:   base64.RawURLEncoding.EncodeToString(s.key.X.FillBytes(make([]byte, 32))),
		Y:   base64.RawURLEncoding.EncodeToString(s.key.Y.FillBytes(make([]byte, 32))),
	}
}

// Thumbprint returns the RFC 7638 JWK thumbprint of the public key,
// used as the dpop_jkt parameter in OAuth flows.
func (s *DPoPSigner) Thumbprint() string {
	pub := s.publicJWK()
	// Thumbprint input is the JSON of required members in
	// lexicographic key order; encoding/json emits struct fields in
	// declaration order, so build it by hand.
	canonical := fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`, pub.Crv, pub.Kty, pub.X, pub.Y)
	digest := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// Proof signs a DPoP proof JWT for one request. The htu claim keeps
// the query string but drops any fragment; ath is included only when
// an access token is bound; nonce is looked up from the cache by the
// target's authority.
func (s *DPoPSigner) Proof(method, requestURL, accessToken string) (string, error) {
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return "", fmt.Errorf("parse request URL: %w", err)
	}
	parsed.Fragment = ""

	jti := make([]byte, 12)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}

	claims := jwt.MapClaims{
		"jti": base64.RawURLEncoding.EncodeToString(jti),
		"iat": time.Now().Unix(),
		"htm": method,
		"htu": parsed.String(),
	}
	if accessToken != "" {
		digest := sha256.Sum256([]byte(accessToken))
		claims["ath"] = base64.RawURLEncoding.EncodeToString(digest[:])
	}
	if nonce, ok := s.Nonces.Get(parsed.Host); ok {
		claims["nonce"] = nonce
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = s.publicJWK()

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign DPoP proof: %w", err)
	}
	return signed, nil
}
