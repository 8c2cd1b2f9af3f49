// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tapestry-foundation/tapestry/agent"
	"github.com/tapestry-foundation/tapestry/api/bsky"
	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
	"github.com/tapestry-foundation/tapestry/lib/syntax"
)

func postCommand() *cli.Command {
	return &cli.Command{
		Name:    "post",
		Summary: "Publish a text post",
		Usage:   "tapestry post <text>",
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("expected the post text")
			}
			text := strings.Join(args, " ")
			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := cli.ResumeAgent(ctx, config)
			if err != nil {
				return err
			}
			collection, err := syntax.ParseNSID("app.bsky.feed.post")
			if err != nil {
				return err
			}
			uri, recordCID, err := a.CreateRecord(ctx, collection, nil, &bsky.Post{
				Text:      text,
				CreatedAt: syntax.DatetimeNow().String(),
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n%s\n", uri, recordCID)
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:    "get",
		Summary: "Fetch a record by at-uri",
		Usage:   "tapestry get <at-uri>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected one at-uri argument")
			}
			uri, err := syntax.ParseATURI(args[0])
			if err != nil {
				return err
			}
			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := cli.ResumeAgent(ctx, config)
			if err != nil {
				// Public records don't require a session.
				a, err = agent.New(agent.Config{
					Session:  agent.NewUnauthenticated(config.PDS),
					Resolver: cli.NewResolver(config),
				})
				if err != nil {
					return err
				}
			}
			var value any
			if _, err := a.GetRecord(ctx, uri, &value); err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		},
	}
}
