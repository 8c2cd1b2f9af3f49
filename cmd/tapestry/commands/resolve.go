// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:    "resolve",
		Summary: "Resolve a handle or DID to its identity",
		Usage:   "tapestry resolve <handle|did>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one identifier argument")
			}
			id, err := syntax.ParseAtIdentifier(args[0])
			if err != nil {
				return err
			}
			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			ident, err := cli.NewResolver(config).ResolveIdentifier(context.Background(), id)
			if err != nil {
				return err
			}
			out := struct {
				DID    string `json:"did"`
				Handle string `json:"handle,omitempty"`
				PDS    string `json:"pds,omitempty"`
			}{
				DID:    ident.DID.String(),
				Handle: ident.Handle.String(),
				PDS:    ident.PDS,
			}
			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(encoded))
			return nil
		},
	}
}
