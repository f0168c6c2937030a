// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Herald is a modular chat bot for Matrix.
//
// It reads a YAML configuration (--config, or the file named by
// HERALD_CONFIG), logs in with a stored access token, loads the enabled
// modules with their saved state, and serves until a master runs
// "quit" or the process receives SIGINT or SIGTERM. State is saved
// once more on the way out.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/herald/bot"
	"github.com/bureau-foundation/herald/history"
	"github.com/bureau-foundation/herald/lib/config"
	"github.com/bureau-foundation/herald/lib/version"
	"github.com/bureau-foundation/herald/messaging"
	"github.com/bureau-foundation/herald/modules/dice"
	"github.com/bureau-foundation/herald/modules/karma"
	"github.com/bureau-foundation/herald/platform/matrix"
	"github.com/bureau-foundation/herald/snapshot"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds the parsed command line.
type flags struct {
	configPath  string
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (flags, error) {
	var parsed flags
	flagSet := pflag.NewFlagSet("herald", pflag.ContinueOnError)
	flagSet.StringVar(&parsed.configPath, "config", "", "path to herald.yaml (default: $HERALD_CONFIG)")
	flagSet.StringVar(&parsed.logLevel, "log-level", "", "override log_level from the configuration (debug, info, warn, error)")
	flagSet.BoolVar(&parsed.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return flags{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return parsed, nil
}

func run(args []string, stdout io.Writer) error {
	parsed, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if parsed.showVersion {
		version.Print(stdout, "herald")
		return nil
	}

	cfg, err := loadConfig(parsed)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	token, err := cfg.ReadToken()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}
	session := client.SessionFromToken(cfg.Matrix.UserID, token)
	userID, err := session.WhoAmI(ctx)
	if err != nil {
		return fmt.Errorf("checking access token: %w", err)
	}
	if userID != cfg.Matrix.UserID {
		return fmt.Errorf("access token belongs to %s, configuration says %s", userID, cfg.Matrix.UserID)
	}

	adapter, err := matrix.New(matrix.Config{
		Session:     session,
		SyncTimeout: cfg.Matrix.SyncTimeout,
		SendRate:    cfg.Matrix.SendRate,
		SendBurst:   cfg.Matrix.SendBurst,
		Logger:      logger.With("component", "matrix"),
	})
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg.State, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	modules, err := buildModules(cfg.Modules.Enabled)
	if err != nil {
		return err
	}

	runtime, err := bot.New(bot.Config{
		Prefix:  cfg.Prefix,
		Masters: cfg.Masters,
		Client:  adapter,
		Store:   store,
		History: history.Config{
			Limit:            cfg.History.Limit,
			MaxConversations: cfg.History.MaxConversations,
		},
		PromptTimeout: cfg.Sessions.DefaultTimeout,
		ApprovalEmoji: cfg.Sessions.ApprovalEmoji,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if err := runtime.Load(ctx, modules...); err != nil {
		return err
	}

	logger.Info("herald starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"user_id", userID,
		"modules", runtime.State().ModuleNames(),
		"state_backend", cfg.State.Backend,
	)
	if err := runtime.Run(ctx, adapter); err != nil {
		return err
	}
	logger.Info("herald stopped")
	return nil
}

// loadConfig reads the configuration named by the flags or the
// environment, applies flag overrides and validates the result.
func loadConfig(parsed flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if parsed.configPath != "" {
		cfg, err = config.LoadFile(parsed.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if parsed.logLevel != "" {
		cfg.LogLevel = parsed.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openStore returns the snapshot store the configuration selects and a
// function that releases it.
func openStore(state config.StateConfig, logger *slog.Logger) (snapshot.Store, func(), error) {
	logger = logger.With("component", "snapshot", "backend", state.Backend)
	switch state.Backend {
	case config.BackendFile:
		return snapshot.NewFileStore(state.Path, state.CompressEnabled(), logger), func() {}, nil
	case config.BackendSQLite:
		store, err := snapshot.OpenSQLiteStore(state.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Error("closing snapshot database", "error", err)
			}
		}, nil
	case config.BackendMemory:
		return snapshot.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown state backend %q", state.Backend)
}

// moduleFactories builds each module herald ships, by name.
var moduleFactories = map[string]func() bot.Module{
	dice.Name:  func() bot.Module { return dice.New(nil) },
	karma.Name: func() bot.Module { return karma.New() },
}

// buildModules instantiates the named modules in order.
func buildModules(names []string) ([]bot.Module, error) {
	modules := make([]bot.Module, 0, len(names))
	for _, name := range names {
		factory, ok := moduleFactories[name]
		if !ok {
			return nil, fmt.Errorf("unknown module %q", name)
		}
		modules = append(modules, factory())
	}
	return modules, nil
}
