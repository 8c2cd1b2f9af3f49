// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the tapestry command tree. Each
// subcommand is thin: flag parsing, one library call, and output.
package commands

import (
	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
)

// Root returns the top-level tapestry command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "tapestry",
		Summary: "AT Protocol client toolkit",
		Description: "tapestry is a command-line client for the AT Protocol:\n" +
			"identity resolution, repository records, CAR export and\n" +
			"verification, Lexicon code generation, and event streams.",
		Subcommands: []*cli.Command{
			resolveCommand(),
			loginCommand(),
			postCommand(),
			getCommand(),
			repoCommand(),
			lexgenCommand(),
			firehoseCommand(),
		},
	}
}
