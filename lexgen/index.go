// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package lexgen

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Module index markers. SpliceModuleIndex rewrites only the lines
// between them, so hand-written text around the block survives
// regeneration.
const (
	IndexBegin = "// BEGIN GENERATED INDEX"
	IndexEnd   = "// END GENERATED INDEX"
)

// indexBlock renders the marker-delimited package listing: one line
// group per generated package, naming the lexicon groups it covers.
func (g *Generator) indexBlock() string {
	byPkg := map[string]map[string]bool{}
	for _, doc := range g.Corpus.Documents() {
		pkg, _ := packageFor(doc.ID)
		if byPkg[pkg] == nil {
			byPkg[pkg] = map[string]bool{}
		}
		byPkg[pkg][groupLabel([]*Document{doc})] = true
	}
	pkgs := make([]string, 0, len(byPkg))
	for pkg := range byPkg {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var b strings.Builder
	b.WriteString(IndexBegin + "\n")
	for _, pkg := range pkgs {
		groups := make([]string, 0, len(byPkg[pkg]))
		for group := range byPkg[pkg] {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		line := "// " + pkg + ": "
		for i, group := range groups {
			entry := group
			if i < len(groups)-1 {
				entry += ","
			}
			if i > 0 && len(line)+1+len(entry) > 76 {
				b.WriteString(line + "\n")
				line = "//   " + entry
				continue
			}
			if i > 0 {
				line += " " + entry
			} else {
				line += entry
			}
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(IndexEnd + "\n")
	return b.String()
}

// WriteModuleIndex emits a complete index file for the generated
// packages.
func (g *Generator) WriteModuleIndex(w io.Writer) error {
	pkg := g.PackagePrefix
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	_, err := fmt.Fprintf(w, "package %s\n\n// Generated package index. The lexgen generator rewrites the block\n// between the markers; text outside them is preserved.\n\n%s", pkg, g.indexBlock())
	return err
}

// SpliceModuleIndex replaces the marker-delimited block in an
// existing index file with a freshly generated one.
func (g *Generator) SpliceModuleIndex(existing []byte) ([]byte, error) {
	begin := bytes.Index(existing, []byte(IndexBegin))
	end := bytes.Index(existing, []byte(IndexEnd))
	if begin < 0 || end < 0 || end < begin {
		return nil, fmt.Errorf("lexgen: index markers missing or out of order")
	}
	end += len(IndexEnd)
	if end < len(existing) && existing[end] == '\n' {
		end++
	}
	var out bytes.Buffer
	out.Write(existing[:begin])
	out.WriteString(g.indexBlock())
	out.Write(existing[end:])
	return out.Bytes(), nil
}
