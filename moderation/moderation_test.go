// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package moderation

import (
	"testing"

	"github.com/tapestry-foundation/tapestry/api/atproto"
)

const (
	authorDID  = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"
	labelerDID = "did:plc:ar7c4by46qjdydhdevvrndac"
	otherDID   = "did:plc:44ybard66vv44zksje25o7dz"
)

func label(src, val string) atproto.Label {
	return atproto.Label{
		Src: src,
		Uri: "at://" + authorDID + "/app.bsky.feed.post/3lh2ab3jdrv2k",
		Val: val,
		Cts: "2026-02-03T04:05:06.000Z",
	}
}

func TestModerateBuiltinAdultLabel(t *testing.T) {
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{label(labelerDID, "porn")},
	}

	// Adult content disabled: filtered and not overridable.
	d := Moderate(target, Preferences{}, nil, nil)
	if !d.Filter || !d.NoOverride {
		t.Errorf("adult-disabled decision = %+v, want filter+noOverride", d)
	}
	if d.Blur != BlurMedia {
		t.Errorf("blur = %q, want media", d.Blur)
	}

	// Adult content enabled with a warn preference: blurred media,
	// viewer can click through.
	prefs := Preferences{
		AdultContentEnabled: true,
		Labels:              map[string]Visibility{"porn": VisibilityWarn},
	}
	d = Moderate(target, prefs, nil, nil)
	if d.Filter || d.NoOverride {
		t.Errorf("adult-enabled decision = %+v, want neither filter nor noOverride", d)
	}
	if d.Blur != BlurMedia {
		t.Errorf("blur = %q, want media", d.Blur)
	}
	if len(d.Causes) != 1 || d.Causes[0].Visibility != VisibilityWarn {
		t.Errorf("causes = %+v", d.Causes)
	}

	// Ignore preference drops the label entirely.
	prefs.Labels["porn"] = VisibilityIgnore
	d = Moderate(target, prefs, nil, nil)
	if len(d.Causes) != 0 || d.Blur != BlurNone {
		t.Errorf("ignored decision = %+v", d)
	}
}

func TestModerateLegalLabelIgnoresPreferences(t *testing.T) {
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{label(labelerDID, "!hide")},
	}
	// The viewer's ignore preference must not soften a "!" label.
	prefs := Preferences{
		Labels: map[string]Visibility{"!hide": VisibilityIgnore},
	}
	d := Moderate(target, prefs, nil, nil)
	if !d.Filter || !d.NoOverride || d.Blur != BlurContent || !d.Alert {
		t.Errorf("decision = %+v, want filter+noOverride+content blur+alert", d)
	}
}

func TestModerateAcceptedLabelers(t *testing.T) {
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{
			label(otherDID, "porn"),
			label(labelerDID, "graphic-media"),
		},
	}
	prefs := Preferences{AdultContentEnabled: true}
	d := Moderate(target, prefs, nil, []string{labelerDID})
	if len(d.Causes) != 1 {
		t.Fatalf("causes = %+v, want only the accepted labeler's", d.Causes)
	}
	if d.Causes[0].Label.Val != "graphic-media" {
		t.Errorf("cause = %+v", d.Causes[0])
	}
}

func TestModerateSelfLabel(t *testing.T) {
	// Self-labels pass the accepted-labelers filter even though the
	// author is not an accepted labeler.
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{label(authorDID, "spoiler")},
	}
	d := Moderate(target, Preferences{}, nil, []string{labelerDID})
	if len(d.Causes) != 1 || !d.Causes[0].SelfLabel {
		t.Fatalf("causes = %+v, want one self-label cause", d.Causes)
	}
	if d.Blur != BlurContent || !d.Inform || d.Filter {
		t.Errorf("decision = %+v, want content blur + inform", d)
	}

	// A hide preference upgrades the self-label to a filter.
	prefs := Preferences{Labels: map[string]Visibility{"spoiler": VisibilityHide}}
	d = Moderate(target, prefs, nil, nil)
	if !d.Filter {
		t.Errorf("decision = %+v, want filter", d)
	}

	// An ignore preference drops it.
	prefs.Labels["spoiler"] = VisibilityIgnore
	d = Moderate(target, prefs, nil, nil)
	if len(d.Causes) != 0 {
		t.Errorf("causes = %+v, want none", d.Causes)
	}
}

func TestModerateLabelerDefinition(t *testing.T) {
	defs := map[string]map[string]atproto.LabelValueDefinition{
		labelerDID: {
			"rumor": {
				Identifier:     "rumor",
				Severity:       "inform",
				Blurs:          "content",
				DefaultSetting: strptr("warn"),
			},
		},
	}
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{label(labelerDID, "rumor")},
	}

	d := Moderate(target, Preferences{}, defs, nil)
	if d.Blur != BlurContent || !d.Inform || d.Filter {
		t.Errorf("default decision = %+v", d)
	}

	// A per-labeler preference beats the global preference.
	prefs := Preferences{
		Labels: map[string]Visibility{"rumor": VisibilityHide},
		Labelers: []LabelerPref{{
			Did:    labelerDID,
			Labels: map[string]Visibility{"rumor": VisibilityIgnore},
		}},
	}
	d = Moderate(target, prefs, defs, nil)
	if len(d.Causes) != 0 {
		t.Errorf("causes = %+v, want per-labeler ignore to win", d.Causes)
	}

	// Without the per-labeler override the global hide applies.
	prefs.Labelers = nil
	d = Moderate(target, prefs, defs, nil)
	if !d.Filter {
		t.Errorf("decision = %+v, want filter from global hide", d)
	}
}

func TestModerateUnknownLabelSkipped(t *testing.T) {
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{label(labelerDID, "made-up-value")},
	}
	d := Moderate(target, Preferences{}, nil, nil)
	if len(d.Causes) != 0 || d.Blur != BlurNone {
		t.Errorf("decision = %+v, want empty", d)
	}
}

func TestModerateNegationRetracts(t *testing.T) {
	neg := true
	negation := label(labelerDID, "porn")
	negation.Neg = &neg
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{
			label(labelerDID, "porn"),
			negation,
		},
	}
	d := Moderate(target, Preferences{AdultContentEnabled: true}, nil, nil)
	if len(d.Causes) != 0 {
		t.Errorf("causes = %+v, want negation to retract the label", d.Causes)
	}

	// A negation from a different labeler does not retract it.
	otherNeg := label(otherDID, "porn")
	otherNeg.Neg = &neg
	target.Labels = []atproto.Label{label(labelerDID, "porn"), otherNeg}
	d = Moderate(target, Preferences{AdultContentEnabled: true}, nil, nil)
	if len(d.Causes) != 1 {
		t.Errorf("causes = %+v, want the label to survive", d.Causes)
	}
}

func TestModerateExpiredLabelSkipped(t *testing.T) {
	past := "2020-01-01T00:00:00.000Z"
	expiredLabel := label(labelerDID, "porn")
	expiredLabel.Exp = &past
	target := Labeled{Author: authorDID, Labels: []atproto.Label{expiredLabel}}
	d := Moderate(target, Preferences{}, nil, nil)
	if len(d.Causes) != 0 || d.Filter {
		t.Errorf("decision = %+v, want expired label dropped", d)
	}

	future := "2100-01-01T00:00:00.000Z"
	liveLabel := label(labelerDID, "porn")
	liveLabel.Exp = &future
	target.Labels = []atproto.Label{liveLabel}
	d = Moderate(target, Preferences{}, nil, nil)
	if len(d.Causes) != 1 {
		t.Errorf("decision = %+v, want unexpired label kept", d)
	}
}

func TestModeratePrecedence(t *testing.T) {
	// content blur from one label beats media blur from another, and
	// warn plus hide resolves to a filter.
	defs := map[string]map[string]atproto.LabelValueDefinition{
		labelerDID: {
			"rumor": {
				Identifier:     "rumor",
				Severity:       "none",
				Blurs:          "content",
				DefaultSetting: strptr("warn"),
			},
		},
	}
	target := Labeled{
		Author: authorDID,
		Labels: []atproto.Label{
			label(labelerDID, "rumor"),
			label(labelerDID, "porn"),
		},
	}
	d := Moderate(target, Preferences{AdultContentEnabled: true, Labels: map[string]Visibility{"porn": VisibilityHide}}, defs, nil)
	if d.Blur != BlurContent {
		t.Errorf("blur = %q, want content to beat media", d.Blur)
	}
	if !d.Filter {
		t.Error("want filter from the hide preference")
	}
	if len(d.Causes) != 2 {
		t.Errorf("causes = %+v", d.Causes)
	}
}

func strptr(s string) *string { return &s }
