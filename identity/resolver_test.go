// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package identity_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tapestry-foundation/tapestry/identity"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// rewriteTransport routes every request to the test server
// regardless of the hostname in the URL, so well-known and did:web
// fetches against arbitrary handles resolve to the fake.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

// noDNS fails every DNS lookup immediately, forcing the well-known
// fallback path.
func noDNS() *net.Resolver {
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, errors.New("no DNS in tests")
		},
	}
}

func newTestResolver(t *testing.T, handler http.Handler) *identity.Resolver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return identity.NewResolver(identity.ResolverConfig{
		HTTPClient:      &http.Client{Transport: rewriteTransport{target: target}},
		DNSResolver:     noDNS(),
		PLCDirectoryURL: server.URL,
	})
}

const testDIDDoc = `{
	"id": "did:plc:abc123",
	"alsoKnownAs": ["at://alice.example.com"],
	"verificationMethod": [{
		"id": "did:plc:abc123#atproto",
		"type": "Multikey",
		"controller": "did:plc:abc123",
		"publicKeyMultibase": "zQ3shXjHeiBuRCKmM36cuYnm7YEMzhGnCmCyW92sRJ9pribSF"
	}],
	"service": [{
		"id": "#atproto_pds",
		"type": "AtprotoPersonalDataServer",
		"serviceEndpoint": "https://pds.example.com"
	}]
}`

func testHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/atproto-did", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("did:plc:abc123\n"))
	})
	mux.HandleFunc("/did:plc:abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testDIDDoc))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return mux
}

func TestResolveHandleWellKnown(t *testing.T) {
	resolver := newTestResolver(t, testHandler())
	handle, _ := syntax.ParseHandle("alice.example.com")
	did, err := resolver.ResolveHandle(context.Background(), handle)
	if err != nil {
		t.Fatal(err)
	}
	if did.String() != "did:plc:abc123" {
		t.Errorf("did = %s", did)
	}
}

func TestResolveHandleNotFound(t *testing.T) {
	resolver := newTestResolver(t, http.NotFoundHandler())
	handle, _ := syntax.ParseHandle("missing.example.com")
	_, err := resolver.ResolveHandle(context.Background(), handle)
	if !errors.Is(err, identity.ErrHandleNotFound) {
		t.Errorf("err = %v, want ErrHandleNotFound", err)
	}
}

func TestResolveDIDPLC(t *testing.T) {
	resolver := newTestResolver(t, testHandler())
	did, _ := syntax.ParseDID("did:plc:abc123")
	doc, err := resolver.ResolveDID(context.Background(), did)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != did {
		t.Errorf("doc.ID = %s", doc.ID)
	}
	pds, ok := doc.PDSEndpoint()
	if !ok || pds != "https://pds.example.com" {
		t.Errorf("PDSEndpoint = %q, %v", pds, ok)
	}
	key, ok := doc.SigningKey()
	if !ok || key == "" {
		t.Error("SigningKey missing")
	}
	handle, ok := doc.Handle()
	if !ok || handle.String() != "alice.example.com" {
		t.Errorf("Handle = %q, %v", handle, ok)
	}
}

func TestResolveDIDWeb(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/did.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"did:web:example.com","service":[{"id":"#atproto_pds","type":"AtprotoPersonalDataServer","serviceEndpoint":"https://pds.example.com"}]}`))
	})
	resolver := newTestResolver(t, mux)
	did, _ := syntax.ParseDID("did:web:example.com")
	doc, err := resolver.ResolveDID(context.Background(), did)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID != did {
		t.Errorf("doc.ID = %s", doc.ID)
	}
}

func TestResolveDIDWebWithPath(t *testing.T) {
	resolver := newTestResolver(t, testHandler())
	did, _ := syntax.ParseDID("did:web:example.com:user:alice")
	_, err := resolver.ResolveDID(context.Background(), did)
	if !errors.Is(err, identity.ErrUnsupportedMethod) {
		t.Errorf("err = %v, want ErrUnsupportedMethod", err)
	}
}

func TestResolveDIDUnsupportedMethod(t *testing.T) {
	resolver := newTestResolver(t, testHandler())
	did, _ := syntax.ParseDID("did:key:zQ3shabc")
	_, err := resolver.ResolveDID(context.Background(), did)
	if !errors.Is(err, identity.ErrUnsupportedMethod) {
		t.Errorf("err = %v, want ErrUnsupportedMethod", err)
	}
}

func TestResolveDIDDocumentMismatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/did:plc:abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"did:plc:somebodyelse"}`))
	})
	resolver := newTestResolver(t, mux)
	did, _ := syntax.ParseDID("did:plc:abc123")
	_, err := resolver.ResolveDID(context.Background(), did)
	if !errors.Is(err, identity.ErrDocumentMismatch) {
		t.Errorf("err = %v, want ErrDocumentMismatch", err)
	}
}

func TestResolveDIDNotFound(t *testing.T) {
	resolver := newTestResolver(t, http.NotFoundHandler())
	did, _ := syntax.ParseDID("did:plc:missing")
	_, err := resolver.ResolveDID(context.Background(), did)
	if !errors.Is(err, identity.ErrDIDNotFound) {
		t.Errorf("err = %v, want ErrDIDNotFound", err)
	}
}

func TestResolveIdentifier(t *testing.T) {
	resolver := newTestResolver(t, testHandler())
	id, _ := syntax.ParseAtIdentifier("alice.example.com")
	ident, err := resolver.ResolveIdentifier(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if ident.DID.String() != "did:plc:abc123" {
		t.Errorf("DID = %s", ident.DID)
	}
	if ident.PDS != "https://pds.example.com" {
		t.Errorf("PDS = %s", ident.PDS)
	}
	// Bidirectional verification: the declared handle resolves back
	// to the same DID through the well-known fake.
	if ident.Handle.String() != "alice.example.com" {
		t.Errorf("Handle = %s", ident.Handle)
	}
}

func TestResolverCaching(t *testing.T) {
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/did:plc:abc123", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte(`{"id":"did:plc:abc123"}`))
	})
	resolver := newTestResolver(t, mux)
	did, _ := syntax.ParseDID("did:plc:abc123")

	for i := 0; i < 5; i++ {
		if _, err := resolver.ResolveDID(context.Background(), did); err != nil {
			t.Fatal(err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestResolverNegativeCaching(t *testing.T) {
	var fetches atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	target, _ := url.Parse(server.URL)
	resolver := identity.NewResolver(identity.ResolverConfig{
		HTTPClient:      &http.Client{Transport: rewriteTransport{target: target}},
		DNSResolver:     noDNS(),
		PLCDirectoryURL: server.URL,
		NegativeTTL:     time.Hour,
	})

	did, _ := syntax.ParseDID("did:plc:missing")
	for i := 0; i < 3; i++ {
		if _, err := resolver.ResolveDID(context.Background(), did); !errors.Is(err, identity.ErrDIDNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1 (failure should be cached)", got)
	}
}
