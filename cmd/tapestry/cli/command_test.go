// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatch(t *testing.T) {
	var ran []string
	root := &Command{
		Name: "tapestry",
		Subcommands: []*Command{
			{
				Name: "repo",
				Subcommands: []*Command{
					{
						Name: "verify",
						Run: func(args []string) error {
							ran = append(ran, "verify")
							ran = append(ran, args...)
							return nil
						},
					},
				},
			},
		},
	}
	if err := root.Execute([]string{"repo", "verify", "file.car"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ran) != 2 || ran[0] != "verify" || ran[1] != "file.car" {
		t.Errorf("ran = %v", ran)
	}
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name: "tapestry",
		Subcommands: []*Command{
			{Name: "resolve", Run: func([]string) error { return nil }},
			{Name: "firehose", Run: func([]string) error { return nil }},
		},
	}
	err := root.Execute([]string{"reslove"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "resolve"`) {
		t.Errorf("error = %v, want a suggestion", err)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var verbose bool
	var got []string
	cmd := &Command{
		Name: "tail",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.BoolVar(&verbose, "verbose", false, "")
			return flags
		},
		Run: func(args []string) error {
			got = args
			return nil
		},
	}
	if err := cmd.Execute([]string{"--verbose", "positional"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !verbose {
		t.Error("flag not parsed")
	}
	if len(got) != 1 || got[0] != "positional" {
		t.Errorf("args = %v", got)
	}
}

func TestExecuteSubcommandRequired(t *testing.T) {
	root := &Command{
		Name:        "tapestry",
		Subcommands: []*Command{{Name: "resolve"}},
	}
	if err := root.Execute(nil); err == nil {
		t.Fatal("expected error with no subcommand")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"resolve", "resolve", 0},
		{"reslove", "resolve", 2},
		{"post", "past", 1},
		{"login", "lexgen", 4},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
