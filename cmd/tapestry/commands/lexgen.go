// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
	"github.com/tapestry-foundation/tapestry/lexgen"
)

func lexgenCommand() *cli.Command {
	var input, output, prefix string
	return &cli.Command{
		Name:    "lexgen",
		Summary: "Generate Go types from Lexicon schemas",
		Usage:   "tapestry lexgen -i lexicons/ -o api/ -p github.com/you/project/api",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("lexgen", pflag.ContinueOnError)
			flags.StringVarP(&input, "input", "i", "", "directory of Lexicon JSON documents")
			flags.StringVarP(&output, "output", "o", "", "directory for generated packages")
			flags.StringVarP(&prefix, "package-prefix", "p", "", "Go import path of the output directory")
			return flags
		},
		Run: func(args []string) error {
			if input == "" || output == "" || prefix == "" {
				return fmt.Errorf("--input, --output, and --package-prefix are required")
			}
			corpus := lexgen.NewCorpus()
			if err := corpus.LoadDirectory(input); err != nil {
				return err
			}
			generator := &lexgen.Generator{
				Corpus:        corpus,
				PackagePrefix: prefix,
			}
			if err := generator.Generate(output); err != nil {
				return err
			}
			for _, diag := range generator.Diagnostics {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", diag.Path, diag.Message)
			}
			fmt.Printf("generated %d documents into %s\n", len(corpus.Documents()), output)
			return nil
		},
	}
}
