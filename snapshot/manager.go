// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager gathers state into snapshots and hands saved state back to
// modules. SaveAll calls are serialized.
type Manager struct {
	store  Store
	logger *slog.Logger

	// saveMu serializes SaveAll end to end.
	saveMu sync.Mutex

	mu      sync.Mutex
	runtime func() RuntimeState
	loaded  *Snapshot
	tracked map[string]Persistent
}

// NewManager returns a manager over store. A nil logger discards
// output.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:   store,
		logger:  logger,
		loaded:  &Snapshot{},
		tracked: make(map[string]Persistent),
	}
}

// SetRuntimeSource installs the function SaveAll calls for the runtime
// entry.
func (m *Manager) SetRuntimeSource(source func() RuntimeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime = source
}

// Load reads the stored snapshot and keeps it for Restore and for
// carrying forward entries of modules that are not tracked.
func (m *Manager) Load(ctx context.Context) (RuntimeState, error) {
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return RuntimeState{}, err
	}
	if loaded == nil {
		loaded = &Snapshot{}
	}
	m.mu.Lock()
	m.loaded = loaded
	m.mu.Unlock()
	m.logger.Info("snapshot loaded", "modules", len(loaded.Modules))
	return loaded.Runtime, nil
}

// Restore tracks module for future saves and, if the loaded snapshot
// holds state for it, passes that state to RestoreState.
func (m *Manager) Restore(name string, module Persistent) error {
	if name == RuntimeKey {
		return fmt.Errorf("snapshot: module name %q is reserved", RuntimeKey)
	}
	m.mu.Lock()
	if _, exists := m.tracked[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("snapshot: module %s tracked twice", name)
	}
	m.tracked[name] = module
	state, found := m.loaded.Modules[name]
	m.mu.Unlock()

	if !found || state.Empty() {
		return nil
	}
	if err := module.RestoreState(state); err != nil {
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	m.logger.Info("module state restored", "module", name, "guilds", len(state.Guilds))
	return nil
}

// SaveAll writes the runtime entry and every tracked module's state. A
// module whose SaveState fails keeps its previously saved entry; the
// error is logged and returned after the rest is written.
func (m *Manager) SaveAll(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.Lock()
	snapshot := m.loaded.clone()
	runtime := m.runtime
	tracked := make(map[string]Persistent, len(m.tracked))
	for name, module := range m.tracked {
		tracked[name] = module
	}
	m.mu.Unlock()

	if runtime != nil {
		snapshot.Runtime = runtime()
	}
	if snapshot.Modules == nil {
		snapshot.Modules = make(map[string]ModuleState)
	}
	var firstErr error
	for name, module := range tracked {
		state, err := module.SaveState()
		if err != nil {
			m.logger.Error("module state export failed", "module", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("saving %s: %w", name, err)
			}
			continue
		}
		if state.Empty() {
			delete(snapshot.Modules, name)
			continue
		}
		snapshot.Modules[name] = state
	}

	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Error("snapshot save failed", "error", err)
		return fmt.Errorf("saving snapshot: %w", err)
	}
	m.mu.Lock()
	m.loaded = snapshot
	m.mu.Unlock()
	return firstErr
}
