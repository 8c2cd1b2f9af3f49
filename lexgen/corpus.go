// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package lexgen

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// TypeSchema is one node of the Lexicon meta-schema. Which fields
// are meaningful depends on Type.
type TypeSchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`

	// Object/params fields.
	Required   []string               `json:"required,omitempty"`
	Nullable   []string               `json:"nullable,omitempty"`
	Properties map[string]*TypeSchema `json:"properties,omitempty"`

	// Array fields.
	Items *TypeSchema `json:"items,omitempty"`

	// Ref and union fields.
	Ref    string   `json:"ref,omitempty"`
	Refs   []string `json:"refs,omitempty"`
	Closed *bool    `json:"closed,omitempty"`

	// String fields.
	Format      string   `json:"format,omitempty"`
	KnownValues []string `json:"knownValues,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Const       *string  `json:"const,omitempty"`
	MaxLength   *int64   `json:"maxLength,omitempty"`
	MinLength   *int64   `json:"minLength,omitempty"`

	// Integer fields.
	Minimum *int64 `json:"minimum,omitempty"`
	Maximum *int64 `json:"maximum,omitempty"`

	// Record fields.
	Key    string      `json:"key,omitempty"`
	Record *TypeSchema `json:"record,omitempty"`

	// Query/procedure/subscription fields.
	Parameters *TypeSchema    `json:"parameters,omitempty"`
	Input      *BodySchema    `json:"input,omitempty"`
	Output     *BodySchema    `json:"output,omitempty"`
	Message    *MessageSchema `json:"message,omitempty"`
	Errors     []ErrorDef     `json:"errors,omitempty"`
}

// BodySchema describes a query/procedure input or output body.
type BodySchema struct {
	Description string      `json:"description,omitempty"`
	Encoding    string      `json:"encoding"`
	Schema      *TypeSchema `json:"schema,omitempty"`
}

// MessageSchema describes a subscription's message union.
type MessageSchema struct {
	Description string      `json:"description,omitempty"`
	Schema      *TypeSchema `json:"schema,omitempty"`
}

// ErrorDef is a declared operation error.
type ErrorDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Document is one Lexicon schema file.
type Document struct {
	Lexicon     int64                  `json:"lexicon"`
	ID          syntax.NSID            `json:"-"`
	Description string                 `json:"description,omitempty"`
	Defs        map[string]*TypeSchema `json:"defs"`
}

// rawDocument carries the unvalidated id field.
type rawDocument struct {
	Document
	ID string `json:"id"`
}

// ParseDocument parses one schema document. Comments and trailing
// commas are tolerated.
func ParseDocument(raw []byte) (*Document, error) {
	var parsed rawDocument
	if err := json.Unmarshal(jsonc.ToJSON(raw), &parsed); err != nil {
		return nil, fmt.Errorf("lexgen: parse document: %w", err)
	}
	if parsed.Lexicon != 1 {
		return nil, fmt.Errorf("lexgen: unsupported lexicon version %d", parsed.Lexicon)
	}
	id, err := syntax.ParseNSID(parsed.ID)
	if err != nil {
		return nil, fmt.Errorf("lexgen: document id: %w", err)
	}
	doc := parsed.Document
	doc.ID = id
	if len(doc.Defs) == 0 {
		return nil, fmt.Errorf("lexgen: document %s has no defs", id)
	}
	return &doc, nil
}

// Corpus is a set of schema documents indexed by NSID.
type Corpus struct {
	docs map[string]*Document
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docs: map[string]*Document{}}
}

// Add registers a document, replacing any earlier document with the
// same ID.
func (c *Corpus) Add(doc *Document) {
	c.docs[doc.ID.String()] = doc
}

// LoadDirectory walks path and parses every *.json file into the
// corpus.
func (c *Corpus) LoadDirectory(path string) error {
	return filepath.WalkDir(path, func(file string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		c.Add(doc)
		return nil
	})
}

// Document looks up a schema document by NSID.
func (c *Corpus) Document(id string) (*Document, bool) {
	doc, ok := c.docs[id]
	return doc, ok
}

// Documents lists the corpus in NSID order.
func (c *Corpus) Documents() []*Document {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	docs := make([]*Document, len(ids))
	for i, id := range ids {
		docs[i] = c.docs[id]
	}
	return docs
}

// Resolve follows a schema reference from the given document.
// Supported forms: "#def" (local), "nsid#def", and bare "nsid"
// (implying the main def).
func (c *Corpus) Resolve(ref string, from syntax.NSID) (*Document, *TypeSchema, error) {
	docID := from.String()
	defName := "main"
	switch hash := strings.Index(ref, "#"); {
	case ref == "":
		return nil, nil, fmt.Errorf("lexgen: empty reference")
	case hash == 0:
		defName = ref[1:]
	case hash > 0:
		docID = ref[:hash]
		defName = ref[hash+1:]
	default:
		docID = ref
	}
	doc, ok := c.docs[docID]
	if !ok {
		return nil, nil, fmt.Errorf("lexgen: unknown document %s (ref %q from %s)", docID, ref, from)
	}
	def, ok := doc.Defs[defName]
	if !ok {
		return nil, nil, fmt.Errorf("lexgen: %s has no def %q (ref %q from %s)", docID, defName, ref, from)
	}
	return doc, def, nil
}
