// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/herald/history"
	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/prompt"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

// State is everything the router and the execution wrapper share.
// Each component guards itself; State only guards the module table.
type State struct {
	Gate      *permission.Gate
	Registry  *trigger.Registry
	Settings  *settings.Store
	Broker    *prompt.Broker
	History   *history.Cache
	Snapshots *snapshot.Manager

	mu      sync.RWMutex
	modules map[string]Module
	order   []string
}

// Module returns a loaded module by name.
func (s *State) Module(name string) (Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	module, ok := s.modules[name]
	return module, ok
}

// Modules returns the loaded modules in load order.
func (s *State) Modules() []Module {
	s.mu.RLock()
	defer s.mu.RUnlock()
	modules := make([]Module, 0, len(s.order))
	for _, name := range s.order {
		modules = append(modules, s.modules[name])
	}
	return modules
}

// ModuleNames returns the loaded module names in load order.
func (s *State) ModuleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func (s *State) addModule(module Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := module.Name()
	if _, exists := s.modules[name]; exists {
		return fmt.Errorf("module %q loaded twice", name)
	}
	s.modules[name] = module
	s.order = append(s.order, name)
	return nil
}

// autoSaves reports whether the named module opted into saving after
// every task.
func (s *State) autoSaves(name string) bool {
	module, ok := s.Module(name)
	if !ok {
		return false
	}
	persistent, ok := module.(Persistent)
	return ok && persistent.AutoSave()
}
