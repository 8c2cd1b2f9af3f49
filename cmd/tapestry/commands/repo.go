// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/tapestry-foundation/tapestry/api/atproto"
	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
	"github.com/tapestry-foundation/tapestry/repo"
	"github.com/tapestry-foundation/tapestry/repo/blockstore"
	"github.com/tapestry-foundation/tapestry/xrpc"
)

func repoCommand() *cli.Command {
	return &cli.Command{
		Name:    "repo",
		Summary: "Export and verify repositories",
		Subcommands: []*cli.Command{
			repoExportCommand(),
			repoVerifyCommand(),
		},
	}
}

func repoExportCommand() *cli.Command {
	var output string
	return &cli.Command{
		Name:    "export",
		Summary: "Download a repository as a CAR file",
		Usage:   "tapestry repo export <handle|did> [-o file.car]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
			flags.StringVarP(&output, "output", "o", "", "output file (default <did>.car)")
			return flags
		},
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
			ctx := context.Background()
			resolver := cli.NewResolver(config)
			ident, err := resolver.ResolveIdentifier(ctx, id)
			if err != nil {
				return err
			}
			if ident.PDS == "" {
				return fmt.Errorf("%s declares no PDS", ident.DID)
			}
			client, err := xrpc.NewClient(xrpc.ClientConfig{Host: ident.PDS})
			if err != nil {
				return err
			}
			resp, err := client.Do(ctx, atproto.GetRepo(atproto.GetRepoParams{
				Did: ident.DID.String(),
			}), nil)
			if err != nil {
				return err
			}
			if output == "" {
				output = ident.DID.String() + ".car"
			}
			if err := os.WriteFile(output, resp.Bytes, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", output, len(resp.Bytes))
			return nil
		},
	}
}

func repoVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:    "verify",
		Summary: "Check a CAR file's tree structure and commit signature",
		Usage:   "tapestry repo verify <file.car>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one CAR file argument")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			r, err := repo.ImportCAR(ctx, blockstore.NewMemory(), f)
			if err != nil {
				return err
			}
			doc, err := cli.NewResolver(config).ResolveDID(ctx, r.DID())
			if err != nil {
				return err
			}
			key, ok := doc.SigningKey()
			if !ok {
				return fmt.Errorf("%s declares no signing key", r.DID())
			}
			if err := r.Verify(ctx, r.DID(), key); err != nil {
				return err
			}
			fmt.Printf("ok: %s rev %s head %s\n", r.DID(), r.Rev(), r.Head())
			return nil
		},
	}
}
