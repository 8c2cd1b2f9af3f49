// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tapestry-foundation/tapestry/cmd/tapestry/cli"
)

func loginCommand() *cli.Command {
	var identifier, password, authFactorToken string
	return &cli.Command{
		Name:    "login",
		Summary: "Create an app-password session",
		Usage:   "tapestry login [--identifier handle] [--password app-password]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flags.StringVar(&identifier, "identifier", "", "account handle or DID (default from config)")
			flags.StringVar(&password, "password", "", "app password (prompted when omitted)")
			flags.StringVar(&authFactorToken, "auth-factor-token", "", "emailed 2FA code, when challenged")
			return flags
		},
		Run: func(args []string) error {
			config, err := cli.LoadConfig()
			if err != nil {
				return err
			}
			if identifier == "" {
				identifier = config.Identifier
			}
			if identifier == "" {
				return fmt.Errorf("no identifier given; pass --identifier or set it in the config file")
			}
			if password == "" {
				fmt.Fprintf(os.Stderr, "app password for %s: ", identifier)
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}
			session, err := cli.Login(context.Background(), config, identifier, password, authFactorToken)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s (%s)\n", session.Handle(), session.DID())
			return nil
		},
	}
}
