// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// Resolution failures, distinguishable with errors.Is.
var (
	ErrHandleNotFound    = errors.New("identity: handle not found")
	ErrDIDNotFound       = errors.New("identity: DID not found")
	ErrUnsupportedMethod = errors.New("identity: unsupported DID method")
	ErrNoPDSEndpoint     = errors.New("identity: DID document lists no PDS endpoint")
	ErrDocumentMismatch  = errors.New("identity: DID document id does not match requested DID")
)

// ResolverConfig holds configuration for creating a Resolver.
type ResolverConfig struct {
	// HTTPClient is used for well-known, PLC, and did:web fetches.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// DNSResolver performs the TXT lookup for handle resolution. If
	// nil, net.DefaultResolver is used.
	DNSResolver *net.Resolver
	// PLCDirectoryURL is the base URL of the PLC directory. Defaults
	// to "https://plc.directory".
	PLCDirectoryURL string
	// UserAgent is sent on HTTP fetches.
	UserAgent string
	// CacheTTL bounds how long positive results are served from
	// cache. Defaults to 5 minutes.
	CacheTTL time.Duration
	// NegativeTTL bounds how long failures are cached. Defaults to
	// 30 seconds.
	NegativeTTL time.Duration
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

const (
	defaultPLCDirectory = "https://plc.directory"
	defaultCacheTTL     = 5 * time.Minute
	defaultNegativeTTL  = 30 * time.Second
	maxResponseBytes    = 1 << 20
)

// Resolver resolves handles and DIDs with caching and request
// collapsing. Safe for concurrent use.
type Resolver struct {
	httpClient  *http.Client
	dns         *net.Resolver
	plcURL      string
	userAgent   string
	cacheTTL    time.Duration
	negativeTTL time.Duration
	logger      *slog.Logger

	cache  *xsync.MapOf[string, cacheEntry]
	flight singleflight.Group
	now    func() time.Time
}

type cacheEntry struct {
	value   any
	err     error
	expires time.Time
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) *Resolver {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	dns := config.DNSResolver
	if dns == nil {
		dns = net.DefaultResolver
	}
	plcURL := config.PLCDirectoryURL
	if plcURL == "" {
		plcURL = defaultPLCDirectory
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}
	negativeTTL := config.NegativeTTL
	if negativeTTL == 0 {
		negativeTTL = defaultNegativeTTL
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		httpClient:  httpClient,
		dns:         dns,
		plcURL:      strings.TrimRight(plcURL, "/"),
		userAgent:   config.UserAgent,
		cacheTTL:    cacheTTL,
		negativeTTL: negativeTTL,
		logger:      logger,
		cache:       xsync.NewMapOf[string, cacheEntry](),
		now:         time.Now,
	}
}

// cached collapses concurrent lookups of key and serves results from
// cache within their TTL. Failures are cached for the negative TTL
// so a flapping upstream is not hammered.
func (r *Resolver) cached(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if entry, ok := r.cache.Load(key); ok && r.now().Before(entry.expires) {
		return entry.value, entry.err
	}
	value, err, _ := r.flight.Do(key, func() (any, error) {
		if entry, ok := r.cache.Load(key); ok && r.now().Before(entry.expires) {
			return entry.value, entry.err
		}
		value, err := fetch(ctx)
		ttl := r.cacheTTL
		if err != nil {
			ttl = r.negativeTTL
		}
		r.cache.Store(key, cacheEntry{value: value, err: err, expires: r.now().Add(ttl)})
		return value, err
	})
	return value, err
}

// ResolveHandle resolves a handle to its DID: DNS TXT first, then
// the HTTPS well-known fallback.
func (r *Resolver) ResolveHandle(ctx context.Context, handle syntax.Handle) (syntax.DID, error) {
	handle = handle.Normalize()
	value, err := r.cached(ctx, "handle/"+handle.String(), func(ctx context.Context) (any, error) {
		return r.resolveHandle(ctx, handle)
	})
	if err != nil {
		return syntax.DID{}, err
	}
	return value.(syntax.DID), nil
}

func (r *Resolver) resolveHandle(ctx context.Context, handle syntax.Handle) (syntax.DID, error) {
	if did, err := r.resolveHandleDNS(ctx, handle); err == nil {
		return did, nil
	} else if !errors.Is(err, ErrHandleNotFound) {
		r.logger.Debug("DNS handle resolution failed, trying well-known", "handle", handle, "error", err)
	}
	return r.resolveHandleWellKnown(ctx, handle)
}

func (r *Resolver) resolveHandleDNS(ctx context.Context, handle syntax.Handle) (syntax.DID, error) {
	records, err := r.dns.LookupTXT(ctx, "_atproto."+handle.String())
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return syntax.DID{}, fmt.Errorf("%w: no TXT record for %s", ErrHandleNotFound, handle)
		}
		return syntax.DID{}, fmt.Errorf("identity: TXT lookup for %s: %w", handle, err)
	}
	var found syntax.DID
	for _, record := range records {
		value, ok := strings.CutPrefix(record, "did=")
		if !ok {
			continue
		}
		did, err := syntax.ParseDID(value)
		if err != nil {
			return syntax.DID{}, fmt.Errorf("identity: malformed TXT record for %s: %w", handle, err)
		}
		if !found.IsZero() && found != did {
			return syntax.DID{}, fmt.Errorf("identity: conflicting TXT records for %s", handle)
		}
		found = did
	}
	if found.IsZero() {
		return syntax.DID{}, fmt.Errorf("%w: no did= TXT record for %s", ErrHandleNotFound, handle)
	}
	return found, nil
}

func (r *Resolver) resolveHandleWellKnown(ctx context.Context, handle syntax.Handle) (syntax.DID, error) {
	body, status, err := r.fetch(ctx, "https://"+handle.String()+"/.well-known/atproto-did")
	if err != nil {
		return syntax.DID{}, fmt.Errorf("%w: well-known fetch for %s: %v", ErrHandleNotFound, handle, err)
	}
	if status != http.StatusOK {
		return syntax.DID{}, fmt.Errorf("%w: well-known returned HTTP %d for %s", ErrHandleNotFound, status, handle)
	}
	scanner := bufio.NewScanner(strings.NewReader(string(body)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		did, err := syntax.ParseDID(line)
		if err != nil {
			return syntax.DID{}, fmt.Errorf("identity: malformed well-known response for %s: %w", handle, err)
		}
		return did, nil
	}
	return syntax.DID{}, fmt.Errorf("%w: empty well-known response for %s", ErrHandleNotFound, handle)
}

// ResolveDID resolves a DID to its document. Supported methods:
// did:plc (via the PLC directory) and did:web.
func (r *Resolver) ResolveDID(ctx context.Context, did syntax.DID) (*Document, error) {
	value, err := r.cached(ctx, "did/"+did.String(), func(ctx context.Context) (any, error) {
		return r.resolveDID(ctx, did)
	})
	if err != nil {
		return nil, err
	}
	return value.(*Document), nil
}

func (r *Resolver) resolveDID(ctx context.Context, did syntax.DID) (*Document, error) {
	var docURL string
	switch did.Method() {
	case "plc":
		docURL = r.plcURL + "/" + url.PathEscape(did.String())
	case "web":
		// Path-form did:web (colon-separated segments after the
		// host) is not part of the protocol's identity model. A
		// port, if any, arrives percent-encoded as %3A.
		host := strings.TrimPrefix(did.String(), "did:web:")
		if strings.Contains(host, ":") {
			return nil, fmt.Errorf("%w: did:web with path segments", ErrUnsupportedMethod)
		}
		host, err := url.PathUnescape(host)
		if err != nil || strings.Contains(host, "/") {
			return nil, fmt.Errorf("%w: malformed did:web host", ErrUnsupportedMethod)
		}
		docURL = "https://" + host + "/.well-known/did.json"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, did.Method())
	}

	body, status, err := r.fetch(ctx, docURL)
	if err != nil {
		return nil, fmt.Errorf("identity: fetch document for %s: %w", did, err)
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrDIDNotFound, did)
	case status != http.StatusOK:
		return nil, fmt.Errorf("identity: document fetch for %s returned HTTP %d", did, status)
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("identity: parse document for %s: %w", did, err)
	}
	if doc.ID != did {
		return nil, fmt.Errorf("%w: got %s", ErrDocumentMismatch, doc.ID)
	}
	return &doc, nil
}

// ResolveIdentifier resolves a handle or DID to a full Identity,
// verifying the handle binding in both directions.
func (r *Resolver) ResolveIdentifier(ctx context.Context, id syntax.AtIdentifier) (*Identity, error) {
	did, ok := id.AsDID()
	if !ok {
		handle, _ := id.AsHandle()
		resolved, err := r.ResolveHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		did = resolved
	}

	doc, err := r.ResolveDID(ctx, did)
	if err != nil {
		return nil, err
	}

	ident := &Identity{DID: did, Document: doc}
	if pds, ok := doc.PDSEndpoint(); ok {
		ident.PDS = pds
	}

	// The document's declared handle only counts when it resolves
	// back to this DID. An unverified handle stays zero rather than
	// failing the whole resolution.
	if declared, ok := doc.Handle(); ok {
		back, err := r.ResolveHandle(ctx, declared)
		if err == nil && back == did {
			ident.Handle = declared.Normalize()
		} else {
			r.logger.Debug("handle verification failed", "did", did, "handle", declared, "error", err)
		}
	}
	return ident, nil
}

// ResolvePDS resolves an identifier to its PDS base URL.
func (r *Resolver) ResolvePDS(ctx context.Context, id syntax.AtIdentifier) (string, error) {
	ident, err := r.ResolveIdentifier(ctx, id)
	if err != nil {
		return "", err
	}
	if ident.PDS == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPDSEndpoint, ident.DID)
	}
	return ident.PDS, nil
}

func (r *Resolver) fetch(ctx context.Context, fetchURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
