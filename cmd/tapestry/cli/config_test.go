// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.PDS != defaultPDS || config.PLC != defaultPLC || config.Relay != defaultRelay {
		t.Errorf("defaults = %+v", config)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "tapestry"), 0o700); err != nil {
		t.Fatal(err)
	}
	content := "pds: https://pds.example.com\nidentifier: alice.example.com\n"
	if err := os.WriteFile(filepath.Join(dir, "tapestry", "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.PDS != "https://pds.example.com" || config.Identifier != "alice.example.com" {
		t.Errorf("config = %+v", config)
	}
	// Unset fields still get defaults.
	if config.PLC != defaultPLC {
		t.Errorf("plc = %q", config.PLC)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "tapestry"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tapestry", "config.yaml"), []byte("pds: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
