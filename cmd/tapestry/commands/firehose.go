// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/tapestry-foundation/tapestry/api/atproto"
	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
	"github.com/tapestry-foundation/tapestry/firehose"
)

func firehoseCommand() *cli.Command {
	var host string
	var jetstream bool
	var collections []string
	var cursor int64
	return &cli.Command{
		Name:    "firehose",
		Summary: "Tail an event stream, printing one JSON line per event",
		Usage:   "tapestry firehose [--jetstream] [--collections nsid,...]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("firehose", pflag.ContinueOnError)
			flags.StringVar(&host, "host", "", "stream host (default from config)")
			flags.BoolVar(&jetstream, "jetstream", false, "consume the Jetstream JSON stream instead of subscribeRepos")
			flags.StringSliceVar(&collections, "collections", nil, "jetstream: only these collection NSIDs")
			flags.Int64Var(&cursor, "cursor", 0, "resume point: sequence number, or unix microseconds for jetstream")
			return flags
		},
		Run: func(args []string) error {
			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			if host == "" {
				host = config.Relay
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			encoder := json.NewEncoder(os.Stdout)
			if jetstream {
				err = firehose.Jetstream(ctx, firehose.JetstreamConfig{
					Host:              host,
					WantedCollections: collections,
					Cursor:            cursor,
					Handler: func(ctx context.Context, ev *firehose.JetstreamEvent) error {
						return encoder.Encode(ev)
					},
				})
			} else {
				var c *int64
				if cursor > 0 {
					c = &cursor
				}
				err = firehose.Subscribe(ctx, firehose.SubscribeConfig{
					Host:   host,
					Cursor: c,
					Handlers: firehose.Handlers{
						Commit: func(ctx context.Context, ev *firehose.CommitEvent) error {
							return encoder.Encode(commitLine(ev))
						},
						Identity: func(ctx context.Context, ev *atproto.SubscribeReposIdentity) error {
							return encoder.Encode(ev)
						},
						Account: func(ctx context.Context, ev *atproto.SubscribeReposAccount) error {
							return encoder.Encode(ev)
						},
					},
				})
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// commitLine flattens a commit event for line output: the envelope
// fields plus each op's path and action, without the block bytes.
func commitLine(ev *firehose.CommitEvent) any {
	type op struct {
		Action string `json:"action"`
		Path   string `json:"path"`
	}
	ops := make([]op, 0, len(ev.Ops))
	for _, o := range ev.Ops {
		ops = append(ops, op{Action: o.Action, Path: o.Path})
	}
	return struct {
		Seq  int64  `json:"seq"`
		Repo string `json:"repo"`
		Rev  string `json:"rev"`
		Time string `json:"time"`
		Ops  []op   `json:"ops"`
	}{Seq: ev.Seq, Repo: ev.Repo, Rev: ev.Rev, Time: ev.Time, Ops: ops}
}
