// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "herald.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validBase = `
root: /srv/herald
masters: ["@owner:example.org"]
matrix:
  homeserver: https://matrix.example.org
  user_id: "@herald:example.org"
`

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Environment != Development {
		t.Errorf("environment = %s, want development", cfg.Environment)
	}
	if cfg.Prefix != "!" {
		t.Errorf("prefix = %q, want !", cfg.Prefix)
	}
	if cfg.Sessions.DefaultTimeout != time.Minute {
		t.Errorf("sessions.default_timeout = %v, want 1m", cfg.Sessions.DefaultTimeout)
	}
	if !cfg.State.CompressEnabled() {
		t.Error("compression should default on")
	}
}

func TestLoadRequiresHeraldConfig(t *testing.T) {
	t.Setenv("HERALD_CONFIG", "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without HERALD_CONFIG")
	}
	if !strings.HasPrefix(err.Error(), "HERALD_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadWithHeraldConfig(t *testing.T) {
	t.Setenv("HERALD_CONFIG", writeConfig(t, validBase+`
environment: staging
prefix: "?"
`))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != Staging || cfg.Prefix != "?" {
		t.Errorf("environment=%s prefix=%q", cfg.Environment, cfg.Prefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileExpandsPaths(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
root: /srv/herald
masters: ["@owner:example.org"]
matrix:
  homeserver: https://matrix.example.org
  user_id: "@herald:example.org"
  sync_timeout: 45s
state:
  backend: sqlite
  path: ${HERALD_ROOT}/state/herald.db
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.State.Path != "/srv/herald/state/herald.db" {
		t.Errorf("state.path = %q", cfg.State.Path)
	}
	if cfg.Matrix.TokenFile != "/srv/herald/access-token" {
		t.Errorf("matrix.token_file = %q", cfg.Matrix.TokenFile)
	}
	if cfg.Matrix.SyncTimeout != 45*time.Second {
		t.Errorf("matrix.sync_timeout = %v", cfg.Matrix.SyncTimeout)
	}
}

func TestExpandVarsDefault(t *testing.T) {
	t.Setenv("HERALD_TEST_UNSET", "")
	got := expandVars("${HERALD_TEST_UNSET:-/fallback}/x", map[string]string{})
	if got != "/fallback/x" {
		t.Errorf("expandVars = %q", got)
	}
	got = expandVars("${NAMED}/x", map[string]string{"NAMED": "/named"})
	if got != "/named/x" {
		t.Errorf("expandVars = %q", got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validBase+`
environment: production
production:
  log_level: error
  state:
    backend: sqlite
    compress: false
  sessions:
    default_timeout: 2m
development:
  prefix: "dev!"
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("log_level = %q, want error", cfg.LogLevel)
	}
	if cfg.State.Backend != BackendSQLite || cfg.State.CompressEnabled() {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.Sessions.DefaultTimeout != 2*time.Minute {
		t.Errorf("sessions.default_timeout = %v", cfg.Sessions.DefaultTimeout)
	}
	if cfg.Prefix != "!" {
		t.Errorf("development section leaked into production: prefix = %q", cfg.Prefix)
	}
}

func TestProductionDefaultsWithoutSection(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validBase+"environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, want warn", cfg.LogLevel)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelWarn {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := Default()
	cfg.Environment = "qa"
	cfg.Prefix = ""
	cfg.LogLevel = "loud"
	cfg.State.Backend = "tape"
	cfg.Modules.Enabled = []string{"dice", "dice"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{
		"invalid environment",
		"prefix is required",
		"masters must list",
		"log_level",
		"matrix.homeserver",
		"matrix.user_id",
		"state.backend",
		"lists dice twice",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q:\n%v", want, err)
		}
	}
}

func TestReadToken(t *testing.T) {
	cfg := Default()
	cfg.Matrix.TokenFile = filepath.Join(t.TempDir(), "token")
	if _, err := cfg.ReadToken(); err == nil {
		t.Error("ReadToken succeeded on a missing file")
	}
	if err := os.WriteFile(cfg.Matrix.TokenFile, []byte("  syt_secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	token, err := cfg.ReadToken()
	if err != nil || token != "syt_secret" {
		t.Errorf("ReadToken() = %q, %v", token, err)
	}
}
