// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/herald/history"
	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/prompt"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

// DefaultPrefix is the command prefix when none is configured.
const DefaultPrefix = "!"

// Config configures a Runtime.
type Config struct {
	// Prefix starts every command. Default "!".
	Prefix string

	// Masters hold the Master tier. They cannot be granted or
	// revoked at runtime.
	Masters []string

	Client platform.Client
	Store  snapshot.Store

	History history.Config

	// PromptTimeout seeds the prompt_timeout runtime setting.
	// Default prompt.DefaultTimeout.
	PromptTimeout time.Duration
	// ApprovalEmoji marks a message chosen with SelectMessage.
	ApprovalEmoji string

	// EventBuffer sizes the channel between the platform source and
	// the router. Default 64.
	EventBuffer int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Runtime loads modules and runs the router, timers and tasks.
type Runtime struct {
	state  *State
	client platform.Client
	prefix string

	defaultPromptTimeout time.Duration
	eventBuffer          int
	builtins             map[string]*builtin

	clock  clock.Clock
	logger *slog.Logger

	tasks sync.WaitGroup

	stopMu sync.Mutex
	stop   context.CancelFunc
}

// New builds a Runtime with no modules loaded.
func New(config Config) (*Runtime, error) {
	if config.Client == nil {
		return nil, errors.New("bot: Client is required")
	}
	if config.Store == nil {
		return nil, errors.New("bot: Store is required")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.PromptTimeout <= 0 {
		config.PromptTimeout = prompt.DefaultTimeout
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	historyCache, err := history.New(config.History)
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	state := &State{
		Gate:     permission.NewGate(config.Masters, config.Logger),
		Registry: trigger.NewRegistry(config.Logger),
		Settings: settings.NewStore(config.Logger),
		Broker: prompt.New(prompt.Config{
			Prefix:         config.Prefix,
			DefaultTimeout: config.PromptTimeout,
			ApprovalEmoji:  config.ApprovalEmoji,
			Clock:          config.Clock,
			Logger:         config.Logger,
		}),
		History:   historyCache,
		Snapshots: snapshot.NewManager(config.Store, config.Logger),
		modules:   make(map[string]Module),
	}

	runtime := &Runtime{
		state:                state,
		client:               config.Client,
		prefix:               config.Prefix,
		defaultPromptTimeout: config.PromptTimeout,
		eventBuffer:          config.EventBuffer,
		clock:                config.Clock,
		logger:               config.Logger,
	}
	runtime.builtins = runtime.builtinCommands()

	if err := state.Settings.RegisterAll(RuntimeNamespace, runtimeSettings(config.PromptTimeout)); err != nil {
		return nil, fmt.Errorf("bot: runtime settings: %w", err)
	}
	state.Settings.SetNotifier(runtime.settingChanged)
	state.Snapshots.SetRuntimeSource(func() snapshot.RuntimeState {
		return snapshot.RuntimeState{
			Roster:   state.Gate.Export(),
			Settings: state.Settings.Export(),
		}
	})
	return runtime, nil
}

// State returns the shared runtime state.
func (r *Runtime) State() *State { return r.state }

// Prefix returns the command prefix.
func (r *Runtime) Prefix() string { return r.prefix }

// Load reads the saved snapshot, restores the roster and settings,
// then registers modules in order. Each persistent module receives its
// saved state immediately after registration. Any error is fatal to
// startup.
func (r *Runtime) Load(ctx context.Context, modules ...Module) error {
	saved, err := r.state.Snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("bot: loading snapshot: %w", err)
	}
	r.state.Gate.Import(saved.Roster)
	r.state.Settings.Import(saved.Settings)

	for _, module := range modules {
		if err := r.Register(module); err != nil {
			return err
		}
	}
	return nil
}

// Register adds one module: triggers, setting declarations, then
// saved state.
func (r *Runtime) Register(module Module) error {
	name := module.Name()
	switch {
	case name == "":
		return errors.New("bot: module with empty name")
	case name == RuntimeNamespace:
		return fmt.Errorf("bot: module name %q is reserved", name)
	}
	if _, exists := r.state.Module(name); exists {
		return fmt.Errorf("bot: module %q loaded twice", name)
	}

	triggers := module.Triggers()
	if err := checkHandlers(module, triggers); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	for _, declared := range triggers {
		if err := r.state.Registry.Register(name, declared); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	if configurable, ok := module.(Configurable); ok {
		if err := r.state.Settings.RegisterAll(name, configurable.Settings()); err != nil {
			return fmt.Errorf("bot: module %q settings: %w", name, err)
		}
	}
	if err := r.state.addModule(module); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	if persistent, ok := module.(snapshot.Persistent); ok {
		if err := r.state.Snapshots.Restore(name, persistent); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	r.logger.Info("module loaded", "module", name, "triggers", len(triggers))
	return nil
}

// Run routes events from source until ctx is done, Stop is called, or
// source fails. It then waits for in-flight tasks and saves once.
func (r *Runtime) Run(ctx context.Context, source platform.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.stopMu.Lock()
	r.stop = cancel
	r.stopMu.Unlock()

	events := make(chan platform.Event, r.eventBuffer)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := source.Run(groupCtx, events); err != nil {
			return fmt.Errorf("platform: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		r.routeLoop(groupCtx, events)
		return nil
	})
	for _, entry := range r.state.Registry.Timers() {
		group.Go(func() error {
			r.runTimer(groupCtx, entry)
			return nil
		})
	}
	r.logger.Info("runtime started",
		"modules", len(r.state.ModuleNames()),
		"timers", len(r.state.Registry.Timers()),
	)

	runErr := group.Wait()
	cancel()

	r.logger.Info("runtime stopping, waiting for tasks")
	r.tasks.Wait()
	saveErr := r.state.Snapshots.SaveAll(context.WithoutCancel(ctx))
	if saveErr != nil {
		r.logger.Error("final save failed", "error", saveErr)
	}
	r.logger.Info("runtime stopped")
	return errors.Join(runErr, saveErr)
}

// Stop ends Run. It is safe to call before Run or more than once.
func (r *Runtime) Stop() {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	if r.stop != nil {
		r.stop()
	}
}

// Wait blocks until every in-flight task has finished.
func (r *Runtime) Wait() {
	r.tasks.Wait()
}

// routeLoop is the single serialization point for inbound events.
func (r *Runtime) routeLoop(ctx context.Context, events <-chan platform.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			r.Route(ctx, event)
		}
	}
}

// settingChanged forwards notify-on-change keys to their module.
func (r *Runtime) settingChanged(change settings.Change) {
	module, ok := r.state.Module(change.Namespace)
	if !ok {
		return
	}
	observer, ok := module.(SettingObserver)
	if !ok {
		return
	}
	observer.SettingChanged(change.Scope, change.Key, change.Old, change.New)
}
