// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package moderation composes label sources with user preferences
// into display decisions.
//
// Moderate is a pure function: it takes the labels on a piece of
// content, the viewer's moderation preferences, and the label value
// definitions published by the labelers the viewer subscribes to, and
// returns what the client should do (filter, blur, alert, inform).
package moderation

import (
	"strings"
	"time"

	"github.com/tapestry-foundation/tapestry/api/atproto"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

// Visibility is a per-label user preference.
type Visibility string

const (
	VisibilityIgnore Visibility = "ignore"
	VisibilityWarn   Visibility = "warn"
	VisibilityHide   Visibility = "hide"
)

// Blur is the cover a decision applies over content.
type Blur string

const (
	BlurNone Blur = "none"
	// BlurMedia covers embedded images and video but leaves text
	// visible.
	BlurMedia Blur = "media"
	// BlurContent covers the whole item.
	BlurContent Blur = "content"
)

// LabelerPref is the viewer's per-labeler preference overrides.
type LabelerPref struct {
	// Did identifies the labeler.
	Did string
	// Labels maps label values to the visibility chosen for this
	// labeler, overriding the global preference.
	Labels map[string]Visibility
}

// Preferences are the viewer's moderation settings.
type Preferences struct {
	// AdultContentEnabled gates adult-only label values. When false,
	// content carrying an adult-only label is filtered regardless of
	// the per-label preference.
	AdultContentEnabled bool
	// Labels maps label values to a global visibility preference.
	Labels map[string]Visibility
	// Labelers holds per-labeler overrides.
	Labelers []LabelerPref
}

// Labeled is content under moderation: its author and the labels that
// apply to it, from labelers and from the author's self-labels.
type Labeled struct {
	// Author is the DID of the content's author. Labels whose source
	// matches are treated as self-labels.
	Author string
	Labels []atproto.Label
}

// Cause records one label's contribution to a decision.
type Cause struct {
	Label atproto.Label
	// SelfLabel marks labels the author applied to their own content.
	SelfLabel bool
	// Visibility is the resolved setting that applied: the viewer's
	// preference, or the definition's default.
	Visibility Visibility
	Definition atproto.LabelValueDefinition
}

// Decision is the combined moderation outcome for one item.
type Decision struct {
	// Filter removes the item from listings entirely.
	Filter bool
	// Blur covers the item behind a warning.
	Blur Blur
	// Alert shows a prominent warning badge on the item.
	Alert bool
	// Inform shows an informational badge on the item.
	Inform bool
	// NoOverride prevents the viewer from clicking through the blur.
	NoOverride bool
	// Causes lists every label that contributed, in input order.
	Causes []Cause
}

// Moderate resolves the labels on target against the viewer's
// preferences. defs maps labeler DID to that labeler's published
// label value definitions. accepted lists the labelers the viewer
// subscribes to; when non-empty, labels from other sources are
// dropped, except the author's self-labels. The result is
// deterministic for a given input and clock.
func Moderate(target Labeled, prefs Preferences, defs map[string]map[string]atproto.LabelValueDefinition, accepted []string) Decision {
	acceptedSet := make(map[string]bool, len(accepted))
	for _, did := range accepted {
		acceptedSet[did] = true
	}

	// First pass: filter to labels that carry weight, applying
	// negations in stream order.
	var active []atproto.Label
	now := time.Now()
	for _, label := range target.Labels {
		if expired(label, now) {
			continue
		}
		self := label.Src == target.Author
		if len(accepted) > 0 && !self && !acceptedSet[label.Src] {
			continue
		}
		if label.Neg != nil && *label.Neg {
			active = removeMatching(active, label)
			continue
		}
		active = append(active, label)
	}

	var decision Decision
	for _, label := range active {
		self := label.Src == target.Author
		def, legal, noOverride, ok := resolveDefinition(label, self, defs)
		if !ok {
			// Unknown label value with no definition anywhere. It
			// cannot be interpreted, so it carries no weight.
			continue
		}

		vis := resolveVisibility(label, def, legal, prefs)
		adultOnly := def.AdultOnly != nil && *def.AdultOnly
		if adultOnly && !prefs.AdultContentEnabled {
			vis = VisibilityHide
			noOverride = true
		}
		if vis == VisibilityIgnore {
			continue
		}

		decision.Causes = append(decision.Causes, Cause{
			Label:      label,
			SelfLabel:  self,
			Visibility: vis,
			Definition: def,
		})
		if vis == VisibilityHide {
			decision.Filter = true
		}
		decision.Blur = maxBlur(decision.Blur, Blur(def.Blurs))
		switch def.Severity {
		case "alert":
			decision.Alert = true
		case "inform":
			decision.Inform = true
		}
		if noOverride {
			decision.NoOverride = true
		}
	}
	if decision.Blur == "" {
		decision.Blur = BlurNone
	}
	return decision
}

// expired reports whether the label's expiry has passed. Labels with
// an unparseable expiry are kept; a malformed timestamp should not
// silently disable a moderation judgement.
func expired(label atproto.Label, now time.Time) bool {
	if label.Exp == nil {
		return false
	}
	exp, err := syntax.ParseDatetime(*label.Exp)
	if err != nil {
		return false
	}
	return exp.Time().Before(now)
}

// removeMatching drops labels that a negation retracts: same source,
// same value.
func removeMatching(labels []atproto.Label, neg atproto.Label) []atproto.Label {
	kept := labels[:0]
	for _, l := range labels {
		if l.Src == neg.Src && l.Val == neg.Val {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// resolveDefinition finds the definition governing a label: the
// labeler's own published definition, then the global built-in set,
// then (for self-labels only) a mild informational default.
func resolveDefinition(label atproto.Label, self bool, defs map[string]map[string]atproto.LabelValueDefinition) (def atproto.LabelValueDefinition, legal, noOverride, ok bool) {
	legal = strings.HasPrefix(label.Val, "!")
	if byVal, found := defs[label.Src]; found && !legal {
		// Labelers cannot redefine the global "!" values.
		if d, found := byVal[label.Val]; found {
			return d, legal, false, true
		}
	}
	if b, found := builtinDefs[label.Val]; found {
		return b.def, legal, b.noOverride, true
	}
	if self {
		return selfLabelDefault(label.Val), legal, false, true
	}
	return atproto.LabelValueDefinition{}, legal, false, false
}

// resolveVisibility overlays the viewer's preferences on the
// definition's default. Per-labeler preference beats the global
// preference beats the default. The global "!" values are not
// preference-controlled.
func resolveVisibility(label atproto.Label, def atproto.LabelValueDefinition, legal bool, prefs Preferences) Visibility {
	if legal {
		return defaultSetting(def)
	}
	for _, lp := range prefs.Labelers {
		if lp.Did != label.Src {
			continue
		}
		if vis, ok := lp.Labels[label.Val]; ok {
			return vis
		}
		break
	}
	if vis, ok := prefs.Labels[label.Val]; ok {
		return vis
	}
	return defaultSetting(def)
}

func defaultSetting(def atproto.LabelValueDefinition) Visibility {
	if def.DefaultSetting == nil {
		return VisibilityWarn
	}
	switch Visibility(*def.DefaultSetting) {
	case VisibilityIgnore, VisibilityWarn, VisibilityHide:
		return Visibility(*def.DefaultSetting)
	}
	return VisibilityWarn
}

// selfLabelDefault is the interpretation of an author self-label with
// no published definition: a mild content warning the viewer can
// always click through.
func selfLabelDefault(val string) atproto.LabelValueDefinition {
	warn := string(VisibilityWarn)
	return atproto.LabelValueDefinition{
		Identifier:     val,
		Severity:       "inform",
		Blurs:          string(BlurContent),
		DefaultSetting: &warn,
	}
}

func maxBlur(a, b Blur) Blur {
	rank := func(v Blur) int {
		switch v {
		case BlurContent:
			return 2
		case BlurMedia:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
