// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

// DefaultPublicHost serves unauthenticated read endpoints.
const DefaultPublicHost = "https://public.api.bsky.app"

// refreshMargin is how close to expiry a token may get before the
// session refreshes it ahead of a call.
const refreshMargin = 60 * time.Second

// Session supplies credentials for agent calls. Implementations
// must be safe for concurrent use.
type Session interface {
	// DID identifies the authenticated account; zero for anonymous
	// sessions.
	DID() syntax.DID
	// Endpoint is the base URL calls target.
	Endpoint() string
	// Token returns the current access token, refreshing first when
	// it is close to expiry. Anonymous sessions return (nil, nil).
	Token(ctx context.Context) (*xrpc.Token, error)
	// Refresh forces fresh credentials after the server rejected the
	// current access token.
	Refresh(ctx context.Context) error
	// DPoPSigner returns the proof signer bound to the session's
	// tokens, or nil for bearer-token sessions.
	DPoPSigner() *xrpc.DPoPSigner
}

// Unauthenticated is a credential-less session against a public
// endpoint.
type Unauthenticated struct {
	endpoint string
}

// NewUnauthenticated returns an anonymous session. An empty
// endpoint selects the default public API host.
func NewUnauthenticated(endpoint string) *Unauthenticated {
	if endpoint == "" {
		endpoint = DefaultPublicHost
	}
	return &Unauthenticated{endpoint: strings.TrimRight(endpoint, "/")}
}

// DID implements Session.
func (u *Unauthenticated) DID() syntax.DID { return syntax.DID{} }

// Endpoint implements Session.
func (u *Unauthenticated) Endpoint() string { return u.endpoint }

// Token implements Session.
func (u *Unauthenticated) Token(context.Context) (*xrpc.Token, error) { return nil, nil }

// Refresh implements Session. There is nothing to refresh.
func (u *Unauthenticated) Refresh(context.Context) error { return nil }

// DPoPSigner implements Session.
func (u *Unauthenticated) DPoPSigner() *xrpc.DPoPSigner { return nil }

// jwtExpiry reads the exp claim from a JWT payload without
// verifying the signature. Expiry scheduling is a local heuristic;
// the server remains the authority on token validity.
func jwtExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
