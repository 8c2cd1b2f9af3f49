// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapestry-foundation/tapestry/agent"
	"github.com/tapestry-foundation/tapestry/identity"
	"github.com/tapestry-foundation/tapestry/lib/sessionstore"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

// currentAccountKey holds the DID of the most recent login in the
// session store.
const currentAccountKey = "current"

// NewResolver builds an identity resolver honoring the configured
// PLC directory.
func NewResolver(config Config) *identity.Resolver {
	return identity.NewResolver(identity.ResolverConfig{
		PLCDirectoryURL: config.PLC,
		UserAgent:       "tapestry-cli",
	})
}

// SessionStore opens the on-disk session store.
func SessionStore() (sessionstore.Store, error) {
	path, err := SessionPath()
	if err != nil {
		return nil, err
	}
	return sessionstore.NewFile(path), nil
}

// Login creates an app-password session against the configured PDS
// and records it as the current account.
func Login(ctx context.Context, config Config, identifier, password, authFactorToken string) (*agent.CredentialSession, error) {
	store, err := SessionStore()
	if err != nil {
		return nil, err
	}
	client, err := xrpc.NewClient(xrpc.ClientConfig{Host: config.PDS})
	if err != nil {
		return nil, err
	}
	session, err := agent.LoginWithPassword(ctx, agent.CredentialConfig{
		Client: client,
		Store:  store,
	}, identifier, password, authFactorToken)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, currentAccountKey, []byte(session.DID().String())); err != nil {
		return nil, fmt.Errorf("record current account: %w", err)
	}
	return session, nil
}

// ResumeAgent restores the current account's session and wraps it in
// an agent. It fails with a login hint when no session is stored.
func ResumeAgent(ctx context.Context, config Config) (*agent.Agent, error) {
	store, err := SessionStore()
	if err != nil {
		return nil, err
	}
	raw, err := store.Get(ctx, currentAccountKey)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return nil, errors.New("not logged in; run 'tapestry login' first")
	}
	if err != nil {
		return nil, err
	}
	did, err := syntax.ParseDID(string(raw))
	if err != nil {
		return nil, fmt.Errorf("stored account: %w", err)
	}
	client, err := xrpc.NewClient(xrpc.ClientConfig{Host: config.PDS})
	if err != nil {
		return nil, err
	}
	session, err := agent.ResumeSession(ctx, agent.CredentialConfig{
		Client: client,
		Store:  store,
	}, did)
	if err != nil {
		return nil, err
	}
	return agent.New(agent.Config{
		Session:  session,
		Client:   client,
		Resolver: NewResolver(config),
	})
}
