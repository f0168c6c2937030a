// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

// Module is a unit of behavior. Name is also the module's settings
// namespace and snapshot key.
type Module interface {
	Name() string
	Triggers() []trigger.Trigger
}

// CommandHandler handles Invocation triggers.
type CommandHandler interface {
	HandleCommand(ctx context.Context, f Facade, command string, args []string) error
}

// MentionHandler handles Mention triggers.
type MentionHandler interface {
	HandleMention(ctx context.Context, f Facade, message *platform.Message) error
}

// PatternHandler handles Pattern triggers. pattern is the regex that
// matched; groups are its submatches, groups[0] being the whole match.
type PatternHandler interface {
	HandlePattern(ctx context.Context, f Facade, pattern string, groups []string) error
}

// ReactionHandler handles Reaction triggers.
type ReactionHandler interface {
	HandleReaction(ctx context.Context, f Facade, reaction *platform.Reaction) error
}

// TimerHandler handles Timer triggers. name is the Timer's Name.
type TimerHandler interface {
	HandleTimer(ctx context.Context, f Facade, name string) error
}

// Persistent modules keep state across restarts. RestoreState is
// called once, right after registration, when saved state exists.
// With AutoSave, the runtime saves after every task of the module.
type Persistent interface {
	snapshot.Persistent
	AutoSave() bool
}

// Configurable modules declare setting keys in their namespace.
type Configurable interface {
	Settings() settings.Declarations
}

// Helper modules describe themselves in help output.
type Helper interface {
	Help() string
}

// SettingObserver modules are told about committed changes to keys
// declared with Notify. The call completes before the write that caused
// it returns, so a save that follows the write sees its effects.
type SettingObserver interface {
	SettingChanged(scope, key string, old, new any)
}

// checkHandlers verifies module implements a handler for every trigger
// kind it declares.
func checkHandlers(module Module, triggers []trigger.Trigger) error {
	for _, declared := range triggers {
		var ok bool
		switch declared.Kind() {
		case trigger.KindInvocation:
			_, ok = module.(CommandHandler)
		case trigger.KindMention:
			_, ok = module.(MentionHandler)
		case trigger.KindPattern:
			_, ok = module.(PatternHandler)
		case trigger.KindReaction:
			_, ok = module.(ReactionHandler)
		case trigger.KindTimer:
			_, ok = module.(TimerHandler)
		}
		if !ok {
			return fmt.Errorf("module %q declares a %s trigger but has no handler for it", module.Name(), declared.Kind())
		}
	}
	return nil
}
