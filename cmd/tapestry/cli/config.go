// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the tapestry configuration file, read from
// ~/.config/tapestry/config.yaml.
type Config struct {
	// PDS is the base URL of the personal data server used for login
	// and unauthenticated calls.
	PDS string `yaml:"pds"`
	// Identifier is the default account handle or DID for login.
	Identifier string `yaml:"identifier"`
	// PLC is the base URL of the PLC directory.
	PLC string `yaml:"plc"`
	// Relay is the event stream host for the firehose command.
	Relay string `yaml:"relay"`
}

const (
	defaultPDS   = "https://bsky.social"
	defaultPLC   = "https://plc.directory"
	defaultRelay = "bsky.network"
)

// configDir returns the tapestry configuration directory, creating
// nothing.
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(base, "tapestry"), nil
}

// LoadConfig reads the configuration file, filling defaults for
// anything unset. A missing file yields the defaults.
func LoadConfig() (Config, error) {
	config := Config{}
	dir, err := configDir()
	if err != nil {
		return config, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &config); err != nil {
			return config, fmt.Errorf("parse config: %w", err)
		}
	}
	if config.PDS == "" {
		config.PDS = defaultPDS
	}
	if config.PLC == "" {
		config.PLC = defaultPLC
	}
	if config.Relay == "" {
		config.Relay = defaultRelay
	}
	return config, nil
}

// SessionPath is the session store file next to the configuration.
func SessionPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return filepath.Join(dir, "session.json"), nil
}
