// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import "github.com/tapestry-foundation/tapestry/api/atproto"

type builtinDef struct {
	def atproto.LabelValueDefinition
	// noOverride marks values whose blur the viewer cannot click
	// through, used for legal and takedown judgements.
	noOverride bool
}

func mkBuiltin(val, severity, blurs, setting string, adultOnly, noOverride bool) builtinDef {
	return builtinDef{
		def: atproto.LabelValueDefinition{
			Identifier:     val,
			Severity:       severity,
			Blurs:          blurs,
			DefaultSetting: &setting,
			AdultOnly:      &adultOnly,
		},
		noOverride: noOverride,
	}
}

// builtinDefs are the global label values every client interprets the
// same way, independent of labeler-published definitions.
var builtinDefs = map[string]builtinDef{
	"!hide":         mkBuiltin("!hide", "alert", "content", "hide", false, true),
	"!warn":         mkBuiltin("!warn", "none", "content", "warn", false, false),
	"!takedown":     mkBuiltin("!takedown", "alert", "content", "hide", false, true),
	"porn":          mkBuiltin("porn", "none", "media", "hide", true, false),
	"sexual":        mkBuiltin("sexual", "none", "media", "warn", true, false),
	"nudity":        mkBuiltin("nudity", "none", "media", "ignore", false, false),
	"graphic-media": mkBuiltin("graphic-media", "none", "media", "warn", true, false),
}
