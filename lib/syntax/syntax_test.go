// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package syntax_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

func TestParseDID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		method  string
		wantErr bool
	}{
		{name: "plc", input: "did:plc:ewvi7nxzyoun6zhxrhs64oiz", method: "plc"},
		{name: "web", input: "did:web:example.com", method: "web"},
		{name: "web-port", input: "did:web:example.com%3A8080", method: "web"},
		{name: "key", input: "did:key:zQ3shunBKsXixLxKtC5qeSG9E4J5RkGN57im31pcTzbNQnm5w", method: "key"},
		{name: "empty", input: "", wantErr: true},
		{name: "no-prefix", input: "plc:abc", wantErr: true},
		{name: "uppercase-method", input: "did:PLC:abc", wantErr: true},
		{name: "no-id", input: "did:plc:", wantErr: true},
		{name: "trailing-percent", input: "did:web:example.com%", wantErr: true},
		{name: "space", input: "did:plc:abc def", wantErr: true},
		{name: "too-long", input: "did:plc:" + strings.Repeat("a", 2048), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			did, err := syntax.ParseDID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", did)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if did.String() != tt.input {
				t.Errorf("String() = %q, want %q", did.String(), tt.input)
			}
			if did.Method() != tt.method {
				t.Errorf("Method() = %q, want %q", did.Method(), tt.method)
			}
			if did.IsZero() {
				t.Error("IsZero() = true for valid DID")
			}
		})
	}
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "alice.bsky.social", want: "alice.bsky.social"},
		{name: "at-prefix", input: "@alice.bsky.social", want: "alice.bsky.social"},
		{name: "two-labels", input: "example.com", want: "example.com"},
		{name: "mixed-case", input: "Alice.Example.COM", want: "Alice.Example.COM"},
		{name: "digit-label", input: "4chan.example.com", want: "4chan.example.com"},
		{name: "empty", input: "", wantErr: true},
		{name: "bare-at", input: "@", wantErr: true},
		{name: "one-label", input: "localhost", wantErr: true},
		{name: "leading-hyphen", input: "-alice.example.com", wantErr: true},
		{name: "trailing-hyphen", input: "alice-.example.com", wantErr: true},
		{name: "numeric-tld", input: "alice.example.123", wantErr: true},
		{name: "trailing-dot", input: "alice.example.com.", wantErr: true},
		{name: "underscore", input: "al_ice.example.com", wantErr: true},
		{name: "too-long", input: strings.Repeat("a.", 130) + "com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := syntax.ParseHandle(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", h)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.String() != tt.want {
				t.Errorf("String() = %q, want %q", h.String(), tt.want)
			}
		})
	}
}

func TestHandleNormalize(t *testing.T) {
	h, err := syntax.ParseHandle("Alice.Example.COM")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Normalize().String(); got != "alice.example.com" {
		t.Errorf("Normalize() = %q, want %q", got, "alice.example.com")
	}
}

func TestParseAtIdentifier(t *testing.T) {
	id, err := syntax.ParseAtIdentifier("did:plc:abc123")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := id.AsDID(); !ok {
		t.Error("AsDID() not set for DID input")
	}
	if _, ok := id.AsHandle(); ok {
		t.Error("AsHandle() set for DID input")
	}

	id, err = syntax.ParseAtIdentifier("alice.bsky.social")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := id.AsHandle(); !ok {
		t.Error("AsHandle() not set for handle input")
	}

	// A malformed DID must not fall back to handle parsing.
	if _, err := syntax.ParseAtIdentifier("did:PLC:abc"); err == nil {
		t.Error("expected error for malformed DID")
	}
	if _, err := syntax.ParseAtIdentifier("not an identifier"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseNSID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		authority string
		last      string
		wantErr   bool
	}{
		{name: "post", input: "app.bsky.feed.post", authority: "feed.bsky.app", last: "post"},
		{name: "three-segments", input: "com.example.thing", authority: "example.com", last: "thing"},
		{name: "deep", input: "com.atproto.sync.subscribeRepos", authority: "sync.atproto.com", last: "subscribeRepos"},
		{name: "empty", input: "", wantErr: true},
		{name: "two-segments", input: "com.example", wantErr: true},
		{name: "digit-name", input: "com.example.3thing", wantErr: true},
		{name: "hyphen-name", input: "com.example.thing-one", wantErr: true},
		{name: "leading-digit-domain", input: "3com.example.thing", wantErr: true},
		{name: "trailing-dot", input: "com.example.thing.", wantErr: true},
		{name: "too-long", input: "com." + strings.Repeat("a.", 200) + "thing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nsid, err := syntax.ParseNSID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", nsid)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if nsid.Authority() != tt.authority {
				t.Errorf("Authority() = %q, want %q", nsid.Authority(), tt.authority)
			}
			if nsid.Name() != tt.last {
				t.Errorf("Name() = %q, want %q", nsid.Name(), tt.last)
			}
		})
	}
}

func TestParseRecordKey(t *testing.T) {
	valid := []string{"3k2akqcy7zu2h", "self", "example.com", "pro~file", "a", "literal:x"}
	for _, s := range valid {
		if _, err := syntax.ParseRecordKey(s); err != nil {
			t.Errorf("ParseRecordKey(%q): %v", s, err)
		}
	}
	invalid := []string{"", ".", "..", "has space", "has/slash", "has#hash", strings.Repeat("a", 513)}
	for _, s := range invalid {
		if _, err := syntax.ParseRecordKey(s); err == nil {
			t.Errorf("ParseRecordKey(%q): expected error", s)
		}
	}
}

func TestParseATURI(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		authority  string
		collection string
		rkey       string
		wantErr    bool
	}{
		{
			name:       "full",
			input:      "at://did:plc:abc123/app.bsky.feed.post/3k2akqcy7zu2h",
			authority:  "did:plc:abc123",
			collection: "app.bsky.feed.post",
			rkey:       "3k2akqcy7zu2h",
		},
		{
			name:       "handle-authority",
			input:      "at://alice.bsky.social/app.bsky.feed.post/3k2akqcy7zu2h",
			authority:  "alice.bsky.social",
			collection: "app.bsky.feed.post",
			rkey:       "3k2akqcy7zu2h",
		},
		{
			name:       "collection-only",
			input:      "at://did:plc:abc123/app.bsky.feed.post",
			authority:  "did:plc:abc123",
			collection: "app.bsky.feed.post",
		},
		{name: "repo-only", input: "at://did:plc:abc123", authority: "did:plc:abc123"},
		{name: "no-scheme", input: "did:plc:abc123/app.bsky.feed.post/x", wantErr: true},
		{name: "bad-collection", input: "at://did:plc:abc123/notansid/x", wantErr: true},
		{name: "extra-segment", input: "at://did:plc:abc/app.bsky.feed.post/x/y", wantErr: true},
		{name: "query", input: "at://did:plc:abc/app.bsky.feed.post/x?y=1", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := syntax.ParseATURI(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if uri.Authority().String() != tt.authority {
				t.Errorf("Authority() = %q, want %q", uri.Authority(), tt.authority)
			}
			if uri.Collection().String() != tt.collection {
				t.Errorf("Collection() = %q, want %q", uri.Collection(), tt.collection)
			}
			if uri.RecordKey().String() != tt.rkey {
				t.Errorf("RecordKey() = %q, want %q", uri.RecordKey(), tt.rkey)
			}
			if uri.String() != tt.input {
				t.Errorf("String() = %q, want %q", uri.String(), tt.input)
			}
		})
	}
}

func TestParseDatetime(t *testing.T) {
	valid := []string{
		"2023-01-15T12:00:00Z",
		"2023-01-15T12:00:00.123Z",
		"2023-01-15T12:00:00+02:00",
		"2023-01-15T12:00:00.000000001-05:00",
	}
	for _, s := range valid {
		d, err := syntax.ParseDatetime(s)
		if err != nil {
			t.Errorf("ParseDatetime(%q): %v", s, err)
			continue
		}
		if d.String() != s {
			t.Errorf("String() = %q, want original %q", d.String(), s)
		}
	}
	invalid := []string{
		"",
		"2023-01-15",
		"2023-01-15 12:00:00Z",
		"2023-01-15T12:00:00",
		"2023-01-15T12:00:00-00:00",
	}
	for _, s := range invalid {
		if _, err := syntax.ParseDatetime(s); err == nil {
			t.Errorf("ParseDatetime(%q): expected error", s)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	for _, s := range []string{"en", "en-US", "pt-BR", "zh-Hans", "i-klingon"} {
		if _, err := syntax.ParseLanguage(s); err != nil {
			t.Errorf("ParseLanguage(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "e", "en_US", "english-language-tag", "en-"} {
		if _, err := syntax.ParseLanguage(s); err == nil {
			t.Errorf("ParseLanguage(%q): expected error", s)
		}
	}
}

func TestIdentifierJSONRoundTrip(t *testing.T) {
	type record struct {
		DID  syntax.DID      `json:"did"`
		URI  syntax.ATURI    `json:"uri"`
		When syntax.Datetime `json:"when"`
	}
	in := `{"did":"did:plc:abc123","uri":"at://did:plc:abc123/app.bsky.feed.post/3k2akqcy7zu2h","when":"2023-01-15T12:00:00.000Z"}`
	var rec record
	if err := json.Unmarshal([]byte(in), &rec); err != nil {
		t.Fatal(err)
	}
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("round trip mismatch:\n in: %s\nout: %s", in, out)
	}

	var bad record
	if err := json.Unmarshal([]byte(`{"did":"not-a-did"}`), &bad); err == nil {
		t.Error("expected unmarshal error for invalid DID")
	}
}
