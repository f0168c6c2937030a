// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is herald's complete configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// Root is the base directory for herald's files. It is available
	// to other paths as ${HERALD_ROOT}.
	Root string `yaml:"root"`

	// Prefix starts every command, e.g. "!" in "!roll 2d6".
	Prefix string `yaml:"prefix"`

	// Masters hold the highest privilege tier. They cannot be revoked
	// at runtime.
	Masters []string `yaml:"masters"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	Matrix   MatrixConfig   `yaml:"matrix"`
	State    StateConfig    `yaml:"state"`
	History  HistoryConfig  `yaml:"history"`
	Sessions SessionsConfig `yaml:"sessions"`
	Modules  ModulesConfig  `yaml:"modules"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	Prefix   string          `yaml:"prefix,omitempty"`
	LogLevel string          `yaml:"log_level,omitempty"`
	Matrix   *MatrixConfig   `yaml:"matrix,omitempty"`
	State    *StateConfig    `yaml:"state,omitempty"`
	Sessions *SessionsConfig `yaml:"sessions,omitempty"`
}

// MatrixConfig locates and authenticates against the homeserver.
type MatrixConfig struct {
	Homeserver string `yaml:"homeserver"`
	UserID     string `yaml:"user_id"`

	// TokenFile holds the access token, read at startup.
	TokenFile string `yaml:"token_file"`

	// SyncTimeout is the long-poll timeout for /sync.
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// SendRate limits outbound messages per second; SendBurst is the
	// bucket size.
	SendRate  float64 `yaml:"send_rate"`
	SendBurst int     `yaml:"send_burst"`
}

// StateConfig selects where snapshots are kept.
type StateConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Compress *bool  `yaml:"compress,omitempty"`
}

// CompressEnabled reports whether file snapshots are zstd-compressed.
func (s StateConfig) CompressEnabled() bool {
	return s.Compress == nil || *s.Compress
}

// HistoryConfig bounds the message history cache.
type HistoryConfig struct {
	Limit            int `yaml:"limit"`
	MaxConversations int `yaml:"max_conversations"`
}

// SessionsConfig configures interactive prompts.
type SessionsConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	ApprovalEmoji  string        `yaml:"approval_emoji"`
}

// ModulesConfig lists the modules to load, in load order.
type ModulesConfig struct {
	Enabled []string `yaml:"enabled"`
}

// Default returns a Config with every field populated. LoadFile
// decodes the file over it.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".local", "state", "herald")
	return &Config{
		Environment: Development,
		Root:        root,
		Prefix:      "!",
		LogLevel:    "info",
		Matrix: MatrixConfig{
			TokenFile:   "${HERALD_ROOT}/access-token",
			SyncTimeout: 30 * time.Second,
			SendRate:    2,
			SendBurst:   5,
		},
		State: StateConfig{
			Backend: BackendFile,
			Path:    "${HERALD_ROOT}/herald.snapshot",
		},
		History: HistoryConfig{
			Limit:            50,
			MaxConversations: 4096,
		},
		Sessions: SessionsConfig{
			DefaultTimeout: 60 * time.Second,
			ApprovalEmoji:  "✅",
		},
		Modules: ModulesConfig{
			Enabled: []string{"dice", "karma"},
		},
	}
}

// Load loads the file named by HERALD_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("HERALD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HERALD_CONFIG environment variable not set; " +
			"set it to the path of your herald.yaml, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the matching
// environment section and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{LogLevel: "warn"}
		}
	}
	if overrides == nil {
		return
	}

	replace(&c.Prefix, overrides.Prefix)
	replace(&c.LogLevel, overrides.LogLevel)
	if matrix := overrides.Matrix; matrix != nil {
		replace(&c.Matrix.Homeserver, matrix.Homeserver)
		replace(&c.Matrix.UserID, matrix.UserID)
		replace(&c.Matrix.TokenFile, matrix.TokenFile)
		replace(&c.Matrix.SyncTimeout, matrix.SyncTimeout)
		replace(&c.Matrix.SendRate, matrix.SendRate)
		replace(&c.Matrix.SendBurst, matrix.SendBurst)
	}
	if state := overrides.State; state != nil {
		replace(&c.State.Backend, state.Backend)
		replace(&c.State.Path, state.Path)
		if state.Compress != nil {
			c.State.Compress = state.Compress
		}
	}
	if sessions := overrides.Sessions; sessions != nil {
		replace(&c.Sessions.DefaultTimeout, sessions.DefaultTimeout)
		replace(&c.Sessions.ApprovalEmoji, sessions.ApprovalEmoji)
	}
}

// replace overwrites *target with value unless value is the zero value.
func replace[T comparable](target *T, value T) {
	var zero T
	if value != zero {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["HERALD_ROOT"] = c.Root

	c.Matrix.TokenFile = expandVars(c.Matrix.TokenFile, vars)
	c.State.Path = expandVars(c.State.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. Names in vars win over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Prefix == "" {
		errs = append(errs, errors.New("prefix is required"))
	} else if strings.ContainsAny(c.Prefix, " \t\n") {
		errs = append(errs, fmt.Errorf("prefix %q contains whitespace", c.Prefix))
	}
	if len(c.Masters) == 0 {
		errs = append(errs, errors.New("masters must list at least one user"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.Matrix.Homeserver == "" {
		errs = append(errs, errors.New("matrix.homeserver is required"))
	}
	if !strings.HasPrefix(c.Matrix.UserID, "@") || !strings.Contains(c.Matrix.UserID, ":") {
		errs = append(errs, fmt.Errorf("matrix.user_id %q is not a Matrix user id", c.Matrix.UserID))
	}
	if c.Matrix.TokenFile == "" {
		errs = append(errs, errors.New("matrix.token_file is required"))
	}
	if c.Matrix.SyncTimeout <= 0 {
		errs = append(errs, errors.New("matrix.sync_timeout must be positive"))
	}
	if c.Matrix.SendRate <= 0 || c.Matrix.SendBurst <= 0 {
		errs = append(errs, errors.New("matrix.send_rate and matrix.send_burst must be positive"))
	}

	backends := []string{BackendFile, BackendSQLite, BackendMemory}
	if !slices.Contains(backends, c.State.Backend) {
		errs = append(errs, fmt.Errorf("state.backend must be one of: %v", backends))
	}
	if c.State.Backend != BackendMemory && c.State.Path == "" {
		errs = append(errs, errors.New("state.path is required"))
	}

	if c.History.Limit <= 0 {
		errs = append(errs, errors.New("history.limit must be positive"))
	}
	if c.History.MaxConversations <= 0 {
		errs = append(errs, errors.New("history.max_conversations must be positive"))
	}
	if c.Sessions.DefaultTimeout <= 0 {
		errs = append(errs, errors.New("sessions.default_timeout must be positive"))
	}
	if c.Sessions.ApprovalEmoji == "" {
		errs = append(errs, errors.New("sessions.approval_emoji is required"))
	}

	seen := make(map[string]bool)
	for _, name := range c.Modules.Enabled {
		if seen[name] {
			errs = append(errs, fmt.Errorf("modules.enabled lists %s twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// ReadToken returns the trimmed contents of Matrix.TokenFile.
func (c *Config) ReadToken() (string, error) {
	data, err := os.ReadFile(c.Matrix.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("access token file %s is empty", c.Matrix.TokenFile)
	}
	return token, nil
}

// EnsurePaths creates the directories herald writes into.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Root}
	if c.State.Backend != BackendMemory {
		paths = append(paths, filepath.Dir(c.State.Path))
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
