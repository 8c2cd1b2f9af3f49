// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package lexgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

func mustDocument(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const postLexicon = `{
	// Comments and trailing commas are tolerated.
	"lexicon": 1,
	"id": "app.example.feed.post",
	"defs": {
		"main": {
			"type": "record",
			"key": "tid",
			"record": {
				"type": "object",
				"required": ["text", "createdAt"],
				"properties": {
					"text": {"type": "string", "maxLength": 3000},
					"createdAt": {"type": "string", "format": "datetime"},
					"embed": {"type": "union", "refs": ["app.example.embed.images", "#card"]},
					"langs": {"type": "array", "items": {"type": "string", "format": "language"}},
				},
			},
		},
		"card": {
			"type": "object",
			"required": ["uri"],
			"properties": {
				"uri": {"type": "string", "format": "uri"},
				"title": {"type": "string"},
			},
		},
	},
}`

const imagesLexicon = `{
	"lexicon": 1,
	"id": "app.example.embed.images",
	"defs": {
		"main": {
			"type": "object",
			"required": ["images"],
			"properties": {
				"images": {"type": "array", "items": {"type": "ref", "ref": "#image"}}
			}
		},
		"image": {
			"type": "object",
			"required": ["image", "alt"],
			"properties": {
				"image": {"type": "blob"},
				"alt": {"type": "string"}
			}
		}
	}
}`

const getFeedLexicon = `{
	"lexicon": 1,
	"id": "app.example.feed.getFeed",
	"defs": {
		"main": {
			"type": "query",
			"parameters": {
				"type": "params",
				"required": ["feed"],
				"properties": {
					"feed": {"type": "string", "format": "at-uri"},
					"limit": {"type": "integer", "minimum": 1, "maximum": 100},
					"reverse": {"type": "boolean"}
				}
			},
			"output": {
				"encoding": "application/json",
				"schema": {
					"type": "object",
					"required": ["feed"],
					"properties": {
						"cursor": {"type": "string"},
						"feed": {"type": "array", "items": {"type": "ref", "ref": "app.example.feed.post"}}
					}
				}
			},
			"errors": [{"name": "UnknownFeed"}]
		}
	}
}`

func testCorpus(t *testing.T) *Corpus {
	t.Helper()
	corpus := NewCorpus()
	corpus.Add(mustDocument(t, postLexicon))
	corpus.Add(mustDocument(t, imagesLexicon))
	corpus.Add(mustDocument(t, getFeedLexicon))
	return corpus
}

func TestParseDocument(t *testing.T) {
	doc := mustDocument(t, postLexicon)
	if doc.ID.String() != "app.example.feed.post" {
		t.Errorf("id = %s", doc.ID)
	}
	if doc.Defs["main"].Type != "record" {
		t.Errorf("main type = %s", doc.Defs["main"].Type)
	}
	if *doc.Defs["main"].Record.Properties["text"].MaxLength != 3000 {
		t.Error("maxLength not parsed")
	}

	if _, err := ParseDocument([]byte(`{"lexicon": 2, "id": "a.b.c", "defs": {"main": {"type": "token"}}}`)); err == nil {
		t.Error("accepted lexicon version 2")
	}
	if _, err := ParseDocument([]byte(`{"lexicon": 1, "id": "not an nsid", "defs": {"main": {"type": "token"}}}`)); err == nil {
		t.Error("accepted malformed id")
	}
	if _, err := ParseDocument([]byte(`{"lexicon": 1, "id": "a.b.c", "defs": {}}`)); err == nil {
		t.Error("accepted empty defs")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "post.json"), []byte(postLexicon), 0o644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "embed")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "images.json"), []byte(imagesLexicon), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a lexicon"), 0o644); err != nil {
		t.Fatal(err)
	}

	corpus := NewCorpus()
	if err := corpus.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(corpus.Documents()) != 2 {
		t.Fatalf("loaded %d documents, want 2", len(corpus.Documents()))
	}
}

func TestResolve(t *testing.T) {
	corpus := testCorpus(t)
	from, _ := syntax.ParseNSID("app.example.feed.post")

	_, def, err := corpus.Resolve("#card", from)
	if err != nil || def.Type != "object" {
		t.Fatalf("local ref: %v %v", def, err)
	}
	doc, def, err := corpus.Resolve("app.example.embed.images#image", from)
	if err != nil || doc.ID.String() != "app.example.embed.images" || def.Type != "object" {
		t.Fatalf("cross ref: %v %v", doc, err)
	}
	// A bare NSID implies the main def.
	_, def, err = corpus.Resolve("app.example.embed.images", from)
	if err != nil || def.Type != "object" {
		t.Fatalf("bare ref: %v %v", def, err)
	}
	if _, _, err := corpus.Resolve("app.example.missing", from); err == nil {
		t.Error("resolved unknown document")
	}
	if _, _, err := corpus.Resolve("#missing", from); err == nil {
		t.Error("resolved unknown def")
	}
}

func TestNameDerivation(t *testing.T) {
	tests := []struct {
		nsid string
		def  string
		want string
	}{
		{"app.example.feed.post", "main", "Post"},
		{"app.example.feed.post", "card", "PostCard"},
		{"app.example.feed.defs", "postView", "PostView"},
		{"app.example.feed.getFeed", "main", "GetFeed"},
		{"com.kebab-domain.feed.getThing", "main", "GetThing"},
	}
	for _, tt := range tests {
		id, err := syntax.ParseNSID(tt.nsid)
		if err != nil {
			t.Fatal(err)
		}
		if got := defTypeName(id, tt.def); got != tt.want {
			t.Errorf("defTypeName(%s, %s) = %s, want %s", tt.nsid, tt.def, got, tt.want)
		}
	}

	id, _ := syntax.ParseNSID("com.atproto.repo.createRecord")
	if pkg, file := packageFor(id); pkg != "atproto" || file != "repo" {
		t.Errorf("packageFor = %s, %s", pkg, file)
	}

	// NSID name segments cannot carry hyphens, but legacy def names
	// can; the case conversion splits on them.
	if got := pascalCase("some-thing"); got != "SomeThing" {
		t.Errorf("pascalCase(some-thing) = %s", got)
	}
}

func TestGenerateRecord(t *testing.T) {
	g := &Generator{
		Corpus:        testCorpus(t),
		PackagePrefix: "github.com/tapestry-foundation/tapestry/api",
	}
	doc, _ := g.Corpus.Document("app.example.feed.post")
	feed, _ := g.Corpus.Document("app.example.feed.getFeed")
	source, err := g.GenerateFile("example", "feed", []*Document{doc, feed})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Diagnostics) != 0 {
		t.Fatalf("diagnostics: %+v", g.Diagnostics)
	}

	// go/format column-aligns struct fields, so collapse horizontal
	// whitespace before substring matching.
	text := collapseSpace(string(source))
	for _, want := range []string{
		"type Post struct {",
		"Text string `json:\"text\"`",
		"CreatedAt string `json:\"createdAt\"`",
		"Langs []string `json:\"langs,omitempty\"`",
		"Embed *PostEmbed `json:\"embed,omitempty\"`",
		"type PostEmbed struct {",
		"Images *Images",
		"Card *PostCard",
		"Unknown *data.Value",
		"func (Post) LexiconTypeID() string",
		"api.RegisterRecordType(\"app.example.feed.post\"",
		"type GetFeedParams struct {",
		"Limit *int64",
		"func GetFeed(params GetFeedParams) xrpc.Request {",
		"GetFeedErrorUnknownFeed = \"UnknownFeed\"",
		"type GetFeedOutput struct {",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("generated source missing %q", want)
		}
	}
}

func TestGenerateUnresolvedRefFallsBack(t *testing.T) {
	corpus := NewCorpus()
	corpus.Add(mustDocument(t, `{
		"lexicon": 1,
		"id": "app.example.feed.like",
		"defs": {
			"main": {
				"type": "record",
				"key": "tid",
				"record": {
					"type": "object",
					"required": ["subject"],
					"properties": {
						"subject": {"type": "ref", "ref": "app.example.missing#thing"}
					}
				}
			}
		}
	}`))
	g := &Generator{Corpus: corpus, PackagePrefix: "github.com/tapestry-foundation/tapestry/api"}
	doc, _ := corpus.Document("app.example.feed.like")
	source, err := g.GenerateFile("example", "feed", []*Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(source), "Subject data.Value `json:\"subject\"`") {
		t.Errorf("unresolved ref did not fall back to data.Value:\n%s", source)
	}
	if len(g.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %+v, want one entry", g.Diagnostics)
	}
	if !strings.Contains(g.Diagnostics[0].Path, "app.example.feed.like") {
		t.Errorf("diagnostic path = %q", g.Diagnostics[0].Path)
	}
}

func TestGenerateWritesTree(t *testing.T) {
	dir := t.TempDir()
	g := &Generator{
		Corpus:        testCorpus(t),
		PackagePrefix: "github.com/tapestry-foundation/tapestry/api",
	}
	if err := g.Generate(dir); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{
		filepath.Join(dir, "example", "feed.go"),
		filepath.Join(dir, "example", "embed.go"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing output file: %v", err)
		}
	}
}

func TestModuleIndex(t *testing.T) {
	g := &Generator{
		Corpus:        testCorpus(t),
		PackagePrefix: "github.com/tapestry-foundation/tapestry/api",
	}
	var out strings.Builder
	if err := g.WriteModuleIndex(&out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if !strings.Contains(text, "package api") || !strings.Contains(text, IndexBegin) {
		t.Errorf("index output:\n%s", text)
	}
	if !strings.Contains(text, "example: app.example.embed, app.example.feed") {
		t.Errorf("index listing wrong:\n%s", text)
	}

	spliced, err := g.SpliceModuleIndex([]byte("package api\n\n// keep me\n\n" + IndexBegin + "\n// stale\n" + IndexEnd + "\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(spliced), "// keep me") {
		t.Error("splice dropped surrounding text")
	}
	if strings.Contains(string(spliced), "stale") {
		t.Error("splice kept stale block")
	}
	if _, err := g.SpliceModuleIndex([]byte("no markers")); err == nil {
		t.Error("splice accepted a file without markers")
	}
}
