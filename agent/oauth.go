// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tapestry-foundation/tapestry/lib/sessionstore"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

// TokenSet is the outcome of an OAuth token grant. The
// authorization dance itself (PAR, authorize redirect, code
// exchange) happens outside this package; sessions are constructed
// from a TokenSet obtained there.
type TokenSet struct {
	Iss          string    `json:"iss"`
	Sub          string    `json:"sub"`
	Aud          string    `json:"aud"`
	Scope        string    `json:"scope"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// OAuthConfig holds configuration for OAuth sessions.
type OAuthConfig struct {
	// Endpoint is the account's PDS base URL. Required.
	Endpoint string
	// TokenEndpoint is the authorization server's token URL, from
	// server metadata discovery during the authorization dance.
	// Required.
	TokenEndpoint string
	// ClientID is the OAuth client identifier. Required.
	ClientID string
	// Signer holds the DPoP key the token set is bound to. Required;
	// the key must stay stable across refreshes.
	Signer *xrpc.DPoPSigner
	// HTTPClient is used for token endpoint requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
	// Store persists the session across restarts. Optional.
	Store sessionstore.Store
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// OAuthSession holds DPoP-bound OAuth tokens. Access tokens are
// refreshed against the issuer's token endpoint with the
// refresh_token grant; the DPoP key never changes, so the new
// tokens stay bound to the same proof key.
type OAuthSession struct {
	endpoint      string
	tokenEndpoint string
	clientID      string
	signer        *xrpc.DPoPSigner
	httpClient    *http.Client
	store         sessionstore.Store
	logger        *slog.Logger
	flight        singleflight.Group
	now           func() time.Time

	mu     sync.Mutex
	did    syntax.DID
	tokens TokenSet
	fatal  *xrpc.AuthError
}

// storedOAuth is the sessionstore value under "oauth/<did>".
type storedOAuth struct {
	DID           syntax.DID      `json:"did"`
	Endpoint      string          `json:"endpoint"`
	TokenEndpoint string          `json:"tokenEndpoint"`
	Tokens        TokenSet        `json:"tokens"`
	DPoPKey       json.RawMessage `json:"dpopKey"`
}

func oauthKey(did syntax.DID) string { return "oauth/" + did.String() }

// NewOAuthSession wraps an externally obtained token set.
func NewOAuthSession(config OAuthConfig, did syntax.DID, tokens TokenSet) (*OAuthSession, error) {
	if config.Endpoint == "" || config.TokenEndpoint == "" {
		return nil, errors.New("agent: Endpoint and TokenEndpoint are required")
	}
	if config.ClientID == "" {
		return nil, errors.New("agent: ClientID is required")
	}
	if config.Signer == nil {
		return nil, errors.New("agent: Signer is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthSession{
		endpoint:      strings.TrimRight(config.Endpoint, "/"),
		tokenEndpoint: config.TokenEndpoint,
		clientID:      config.ClientID,
		signer:        config.Signer,
		httpClient:    httpClient,
		store:         config.Store,
		logger:        logger,
		now:           time.Now,
		did:           did,
		tokens:        tokens,
	}, nil
}

// ResumeOAuthSession restores a persisted OAuth session, including
// its DPoP key.
func ResumeOAuthSession(ctx context.Context, config OAuthConfig, did syntax.DID) (*OAuthSession, error) {
	if config.Store == nil {
		return nil, errors.New("agent: ResumeOAuthSession requires a Store")
	}
	raw, err := config.Store.Get(ctx, oauthKey(did))
	if err != nil {
		return nil, fmt.Errorf("agent: load oauth session for %s: %w", did, err)
	}
	var stored storedOAuth
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("agent: parse stored oauth session: %w", err)
	}
	signer, err := xrpc.ImportDPoPSigner(stored.DPoPKey)
	if err != nil {
		return nil, fmt.Errorf("agent: restore DPoP key: %w", err)
	}
	config.Signer = signer
	if config.Endpoint == "" {
		config.Endpoint = stored.Endpoint
	}
	if config.TokenEndpoint == "" {
		config.TokenEndpoint = stored.TokenEndpoint
	}
	return NewOAuthSession(config, stored.DID, stored.Tokens)
}

// Persist saves the session, including the DPoP key, to the
// configured store.
func (s *OAuthSession) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	key, err := s.signer.ExportKey()
	if err != nil {
		return fmt.Errorf("agent: export DPoP key: %w", err)
	}
	s.mu.Lock()
	stored := storedOAuth{
		DID:           s.did,
		Endpoint:      s.endpoint,
		TokenEndpoint: s.tokenEndpoint,
		Tokens:        s.tokens,
		DPoPKey:       key,
	}
	s.mu.Unlock()
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("agent: encode oauth session: %w", err)
	}
	if err := s.store.Put(ctx, oauthKey(stored.DID), raw); err != nil {
		return fmt.Errorf("agent: persist oauth session: %w", err)
	}
	return nil
}

// DID implements Session.
func (s *OAuthSession) DID() syntax.DID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.did
}

// Endpoint implements Session.
func (s *OAuthSession) Endpoint() string { return s.endpoint }

// DPoPSigner implements Session.
func (s *OAuthSession) DPoPSigner() *xrpc.DPoPSigner { return s.signer }

// Token implements Session.
func (s *OAuthSession) Token(ctx context.Context) (*xrpc.Token, error) {
	s.mu.Lock()
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return nil, err
	}
	tokens := s.tokens
	s.mu.Unlock()

	if !tokens.ExpiresAt.IsZero() && s.now().After(tokens.ExpiresAt.Add(-refreshMargin)) {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		tokens = s.tokens
		s.mu.Unlock()
	}
	return &xrpc.Token{Scheme: xrpc.SchemeDPoP, Value: tokens.AccessToken}, nil
}

// Refresh implements Session. Concurrent callers share one token
// endpoint round trip.
func (s *OAuthSession) Refresh(ctx context.Context) error {
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Sub          string `json:"sub"`
}

func (s *OAuthSession) refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return err
	}
	refresh := s.tokens.RefreshToken
	s.mu.Unlock()

	if refresh == "" {
		authErr := &xrpc.AuthError{Message: "oauth session has no refresh token", Fatal: true}
		s.mu.Lock()
		s.fatal = authErr
		s.mu.Unlock()
		return authErr
	}

	form := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{refresh},
		"client_id":     []string{s.clientID},
	}

	// One plain attempt, then one retry carrying the nonce the server
	// pushed back.
	status, body, err := s.postToken(ctx, form)
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest && tokenErrorCode(body) == xrpc.CodeUseDPoPNonce {
		status, body, err = s.postToken(ctx, form)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		code := tokenErrorCode(body)
		authErr := &xrpc.AuthError{Code: code, Message: "token refresh rejected", Fatal: true}
		s.mu.Lock()
		s.fatal = authErr
		did := s.did
		s.mu.Unlock()
		s.logger.Warn("oauth refresh rejected", "did", did, "status", status, "code", code)
		return authErr
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("agent: parse token response: %w", err)
	}
	if out.AccessToken == "" {
		return errors.New("agent: token response has no access token")
	}

	s.mu.Lock()
	s.tokens.AccessToken = out.AccessToken
	if out.RefreshToken != "" {
		s.tokens.RefreshToken = out.RefreshToken
	}
	if out.TokenType != "" {
		s.tokens.TokenType = out.TokenType
	}
	if out.Scope != "" {
		s.tokens.Scope = out.Scope
	}
	if out.ExpiresIn > 0 {
		s.tokens.ExpiresAt = s.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	did := s.did
	s.mu.Unlock()

	s.logger.Debug("oauth session refreshed", "did", did)
	return s.Persist(ctx)
}

func (s *OAuthSession) postToken(ctx context.Context, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("agent: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Token endpoint proofs carry no ath claim; no access token is
	// bound yet.
	proof, err := s.signer.Proof(http.MethodPost, s.tokenEndpoint, "")
	if err != nil {
		return 0, nil, fmt.Errorf("agent: %w", err)
	}
	req.Header.Set("DPoP", proof)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("agent: token request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("agent: read token response: %w", err)
	}
	if nonce := resp.Header.Get("DPoP-Nonce"); nonce != "" {
		if u, err := url.Parse(s.tokenEndpoint); err == nil {
			s.signer.Nonces.Set(u.Host, nonce)
		}
	}
	return resp.StatusCode, body, nil
}

func tokenErrorCode(body []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error
}
