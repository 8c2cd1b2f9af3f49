// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the command framework and shared plumbing for the
// tapestry command line: the command tree with pflag flag parsing and
// structured help, the yaml configuration file, and session
// persistence for logged-in commands.
package cli
