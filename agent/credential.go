// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tapestry-foundation/tapestry/lib/sessionstore"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

// CredentialConfig holds configuration for app-password sessions.
type CredentialConfig struct {
	// Client is the XRPC client bound to the account's PDS. Required.
	Client *xrpc.Client
	// Store persists the session across restarts. Optional.
	Store sessionstore.Store
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// CredentialSession is an app-password session: bearer access and
// refresh JWTs from com.atproto.server.createSession. The access
// token is refreshed silently when it nears expiry, and refreshes
// are serialized so concurrent calls trigger at most one
// refreshSession round trip.
type CredentialSession struct {
	client *xrpc.Client
	store  sessionstore.Store
	logger *slog.Logger
	flight singleflight.Group
	now    func() time.Time

	mu         sync.Mutex
	did        syntax.DID
	handle     syntax.Handle
	accessJWT  string
	refreshJWT string
	fatal      *xrpc.AuthError
}

// storedCredentials is the sessionstore value under
// "session/<did>".
type storedCredentials struct {
	DID        syntax.DID    `json:"did"`
	Handle     syntax.Handle `json:"handle"`
	Endpoint   string        `json:"endpoint"`
	AccessJWT  string        `json:"accessJwt"`
	RefreshJWT string        `json:"refreshJwt"`
}

func credentialKey(did syntax.DID) string { return "session/" + did.String() }

type sessionTokens struct {
	AccessJWT  string `json:"accessJwt"`
	RefreshJWT string `json:"refreshJwt"`
	Handle     string `json:"handle"`
	DID        string `json:"did"`
}

// LoginWithPassword creates a session from an account identifier
// (handle or DID) and an app password. An optional authFactorToken
// carries the emailed 2FA code; pass "" when not challenged.
func LoginWithPassword(ctx context.Context, config CredentialConfig, identifier, password, authFactorToken string) (*CredentialSession, error) {
	s, err := newCredentialSession(config)
	if err != nil {
		return nil, err
	}

	input := map[string]any{
		"identifier": identifier,
		"password":   password,
	}
	if authFactorToken != "" {
		input["authFactorToken"] = authFactorToken
	}
	req, err := xrpc.NewProcedure("com.atproto.server.createSession", input)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("agent: login: %w", err)
	}
	var out sessionTokens
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("agent: login response: %w", err)
	}
	if err := s.install(out); err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	s.logger.Debug("session created", "did", s.did, "handle", s.handle)
	return s, nil
}

// ResumeSession restores a persisted session for the given account
// and validates it with com.atproto.server.getSession, refreshing
// once if the stored access token has expired.
func ResumeSession(ctx context.Context, config CredentialConfig, did syntax.DID) (*CredentialSession, error) {
	if config.Store == nil {
		return nil, errors.New("agent: ResumeSession requires a Store")
	}
	s, err := newCredentialSession(config)
	if err != nil {
		return nil, err
	}

	raw, err := config.Store.Get(ctx, credentialKey(did))
	if err != nil {
		return nil, fmt.Errorf("agent: load session for %s: %w", did, err)
	}
	var stored storedCredentials
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("agent: parse stored session: %w", err)
	}
	s.did = stored.DID
	s.handle = stored.Handle
	s.accessJWT = stored.AccessJWT
	s.refreshJWT = stored.RefreshJWT

	req := xrpc.NewQuery("com.atproto.server.getSession", nil)
	_, err = s.client.Do(ctx, req, &xrpc.CallOptions{
		Auth: &xrpc.Token{Scheme: xrpc.SchemeBearer, Value: s.accessJWT},
	})
	if err != nil {
		authErr, ok := xrpc.AsAuthError(err)
		if !ok || authErr.Fatal {
			return nil, fmt.Errorf("agent: validate resumed session: %w", err)
		}
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newCredentialSession(config CredentialConfig) (*CredentialSession, error) {
	if config.Client == nil {
		return nil, errors.New("agent: Client is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialSession{
		client: config.Client,
		store:  config.Store,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *CredentialSession) install(tokens sessionTokens) error {
	did, err := syntax.ParseDID(tokens.DID)
	if err != nil {
		return fmt.Errorf("agent: session did: %w", err)
	}
	handle, err := syntax.ParseHandle(tokens.Handle)
	if err != nil {
		return fmt.Errorf("agent: session handle: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.did = did
	s.handle = handle
	s.accessJWT = tokens.AccessJWT
	s.refreshJWT = tokens.RefreshJWT
	s.fatal = nil
	return nil
}

func (s *CredentialSession) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	stored := storedCredentials{
		DID:        s.did,
		Handle:     s.handle,
		Endpoint:   s.client.Host(),
		AccessJWT:  s.accessJWT,
		RefreshJWT: s.refreshJWT,
	}
	s.mu.Unlock()
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("agent: encode session: %w", err)
	}
	if err := s.store.Put(ctx, credentialKey(stored.DID), raw); err != nil {
		return fmt.Errorf("agent: persist session: %w", err)
	}
	return nil
}

// DID implements Session.
func (s *CredentialSession) DID() syntax.DID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.did
}

// Handle returns the handle reported at login.
func (s *CredentialSession) Handle() syntax.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Endpoint implements Session.
func (s *CredentialSession) Endpoint() string { return s.client.Host() }

// DPoPSigner implements Session. App-password tokens are plain
// bearer tokens.
func (s *CredentialSession) DPoPSigner() *xrpc.DPoPSigner { return nil }

// Token implements Session. A token within a minute of expiry is
// refreshed before being handed out.
func (s *CredentialSession) Token(ctx context.Context) (*xrpc.Token, error) {
	s.mu.Lock()
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return nil, err
	}
	access := s.accessJWT
	s.mu.Unlock()

	stale := false
	if exp, err := jwtExpiry(access); err == nil {
		stale = s.now().After(exp.Add(-refreshMargin))
	}
	if stale {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		access = s.accessJWT
		s.mu.Unlock()
	}
	return &xrpc.Token{Scheme: xrpc.SchemeBearer, Value: access}, nil
}

// Refresh implements Session. Concurrent callers share a single
// refreshSession round trip. A rejected refresh token marks the
// session fatal; every later Token call fails immediately until the
// account logs in again.
func (s *CredentialSession) Refresh(ctx context.Context) error {
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *CredentialSession) refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return err
	}
	refresh := s.refreshJWT
	s.mu.Unlock()

	req, err := xrpc.NewProcedure("com.atproto.server.refreshSession", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req, &xrpc.CallOptions{
		Auth: &xrpc.Token{Scheme: xrpc.SchemeBearer, Value: refresh},
	})
	if err != nil {
		if authErr, ok := xrpc.AsAuthError(err); ok {
			authErr.Fatal = true
			s.mu.Lock()
			s.fatal = authErr
			s.mu.Unlock()
			s.logger.Warn("session refresh rejected", "did", s.did, "code", authErr.Code)
			return authErr
		}
		return fmt.Errorf("agent: refresh session: %w", err)
	}
	var out sessionTokens
	if err := resp.Decode(&out); err != nil {
		return fmt.Errorf("agent: refresh response: %w", err)
	}
	if err := s.install(out); err != nil {
		return err
	}
	s.logger.Debug("session refreshed", "did", s.did)
	return s.persist(ctx)
}

// Logout invalidates the session server-side and removes any
// persisted copy. deleteSession authenticates with the refresh
// token, not the access token.
func (s *CredentialSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refreshJWT
	did := s.did
	s.mu.Unlock()

	req, err := xrpc.NewProcedure("com.atproto.server.deleteSession", nil)
	if err != nil {
		return err
	}
	if _, err := s.client.Do(ctx, req, &xrpc.CallOptions{
		Auth: &xrpc.Token{Scheme: xrpc.SchemeBearer, Value: refresh},
	}); err != nil {
		return fmt.Errorf("agent: logout: %w", err)
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, credentialKey(did)); err != nil {
			return fmt.Errorf("agent: remove stored session: %w", err)
		}
	}
	return nil
}
