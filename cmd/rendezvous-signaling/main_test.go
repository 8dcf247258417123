// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/rendezvous/lib/config"
)

func TestParseOptionsRejectsArguments(t *testing.T) {
	if _, err := parseOptions([]string{"serve"}); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseOptions([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	opts, err := parseOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != config.Default().Listen {
		t.Errorf("Listen = %q, want the default", cfg.Listen)
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rendezvous.yaml")
	contents := "listen: \":9000\"\npublic_url: ws://file.example.com\nshard_id: 1\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseOptions([]string{"--config", path, "--shard-id", "9", "--log-level", "debug"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.PublicURL != "ws://file.example.com" {
		t.Errorf("file values lost: listen=%q public_url=%q", cfg.Listen, cfg.PublicURL)
	}
	if cfg.ShardID != 9 {
		t.Errorf("ShardID = %d, want the flag value 9", cfg.ShardID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want the flag value", cfg.LogLevel)
	}
}

func TestLoadConfigValidates(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	opts, err := parseOptions([]string{"--public-url", "http://wrong.example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := opts.loadConfig(); err == nil {
		t.Error("http public URL accepted")
	}
}

func TestNewLoggerWritesJSONWhenPiped(t *testing.T) {
	var buffer bytes.Buffer
	logger := newLogger(&buffer, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	output := buffer.String()
	if strings.Contains(output, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(output, `"msg":"shown"`) || !strings.Contains(output, `"key":"value"`) {
		t.Errorf("output is not JSON: %s", output)
	}
}

func TestRunVersion(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Errorf("run --version: %v", err)
	}
}
