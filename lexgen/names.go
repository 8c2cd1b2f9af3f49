// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package lexgen

import (
	"strings"

	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// pascalCase converts a lexicon name fragment (camelCase, kebab or
// dotted) to an exported Go identifier.
func pascalCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		switch r {
		case '-', '_', '.', ' ':
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// defTypeName derives the Go type name for a def. The main def of
// a.b.c.thing is named Thing. Other defs are prefixed with the
// document's base name (post#replyRef becomes PostReplyRef) so defs
// from different documents in one package cannot collide; documents
// named "defs" exist only to be referenced, so their defs drop the
// prefix (feed.defs#postView becomes PostView).
func defTypeName(id syntax.NSID, defName string) string {
	if defName == "main" {
		return pascalCase(id.Name())
	}
	if id.Name() == "defs" {
		return pascalCase(defName)
	}
	return pascalCase(id.Name()) + pascalCase(defName)
}

// opName derives the operation name for a query/procedure/
// subscription: the PascalCase of the NSID's final segment.
func opName(id syntax.NSID) string {
	return pascalCase(id.Name())
}

// fieldName converts a property name to an exported struct field.
func fieldName(prop string) string {
	return pascalCase(prop)
}

// packageFor maps an NSID to its generated package and file. The
// second segment names the package, the third names the file:
// com.atproto.repo.createRecord lands in package atproto, file
// repo.go.
func packageFor(id syntax.NSID) (pkg, file string) {
	segments := strings.Split(id.String(), ".")
	if len(segments) < 3 {
		return segments[len(segments)-1], segments[len(segments)-1]
	}
	return segments[1], segments[2]
}
