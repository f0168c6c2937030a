// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"

	"github.com/bureau-foundation/herald/lib/cron"
)

// Entry is one registered (module, trigger) pair.
type Entry struct {
	Module  string
	Trigger Trigger
}

// PatternMatch is a pattern that matched a message, with its submatch
// groups. Groups[0] is the whole match.
type PatternMatch struct {
	Module  string
	Pattern Pattern
	Groups  []string
}

// TimerEntry is a registered timer with its parsed schedule.
type TimerEntry struct {
	Module   string
	Timer    Timer
	Schedule cron.Schedule
}

type compiledPattern struct {
	module  string
	pattern Pattern
	regex   *regexp.Regexp
}

// Registry maps trigger lookups to the modules that declared them.
// Registration happens at startup; claims change at runtime. Safe for
// concurrent use.
type Registry struct {
	logger *slog.Logger

	mu          sync.RWMutex
	modules     []string
	commands    map[string][]Entry
	invocations map[string][]Invocation
	mentions    []Entry
	patterns    []*compiledPattern
	timers      []TimerEntry
	reactions   []Entry
	claims      map[string][]string
}

// NewRegistry returns an empty registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:      logger,
		commands:    make(map[string][]Entry),
		invocations: make(map[string][]Invocation),
		claims:      make(map[string][]string),
	}
}

// Register validates trigger and files it under module. A command
// already registered by another module is kept alongside (both will
// dispatch). A regex literal already registered is replaced by this
// registration.
func (r *Registry) Register(module string, trigger Trigger) error {
	if module == "" {
		return fmt.Errorf("trigger: empty module name")
	}
	if trigger == nil {
		return fmt.Errorf("trigger: %s: nil trigger", module)
	}
	if err := trigger.validate(); err != nil {
		return fmt.Errorf("trigger: %s: %w", module, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !slices.Contains(r.modules, module) {
		r.modules = append(r.modules, module)
	}
	entry := Entry{Module: module, Trigger: trigger}

	switch typed := trigger.(type) {
	case Invocation:
		for _, existing := range r.commands[typed.Command] {
			if existing.Module != module {
				r.logger.Warn("command registered by more than one module",
					"command", typed.Command,
					"module", module,
					"existing_module", existing.Module,
				)
			}
		}
		r.commands[typed.Command] = append(r.commands[typed.Command], entry)
		r.invocations[module] = append(r.invocations[module], typed)

	case Mention:
		r.mentions = append(r.mentions, entry)

	case Pattern:
		compiled := &compiledPattern{module: module, pattern: typed, regex: regexp.MustCompile(typed.Regex)}
		index := slices.IndexFunc(r.patterns, func(existing *compiledPattern) bool {
			return existing.pattern.Regex == typed.Regex
		})
		if index >= 0 {
			r.logger.Warn("pattern re-registered, replacing previous owner",
				"pattern", typed.Regex,
				"module", module,
				"previous_module", r.patterns[index].module,
			)
			r.patterns[index] = compiled
		} else {
			r.patterns = append(r.patterns, compiled)
		}

	case Timer:
		schedule, _ := typed.Schedule()
		r.timers = append(r.timers, TimerEntry{Module: module, Timer: typed, Schedule: schedule})

	case Reaction:
		r.reactions = append(r.reactions, entry)

	default:
		return fmt.Errorf("trigger: %s: unsupported trigger %T", module, trigger)
	}
	return nil
}

// LookupCommand returns the modules registered for name in
// registration order. A module that declared name more than once
// appears once, with its first registration.
func (r *Registry) LookupCommand(name string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Entry
	seen := make(map[string]bool)
	for _, entry := range r.commands[name] {
		if seen[entry.Module] {
			continue
		}
		seen[entry.Module] = true
		result = append(result, entry)
	}
	return result
}

// LookupMention returns the mention handlers for one message: any-
// mention handlers when anyMention is set, self-mention handlers when
// selfMentioned is set, and specific-target handlers for each id in
// mentioned. Each module appears at most once, at the position of its
// first qualifying registration.
func (r *Registry) LookupMention(selfMentioned, anyMention bool, mentioned []string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Entry
	seen := make(map[string]bool)
	for _, entry := range r.mentions {
		if seen[entry.Module] {
			continue
		}
		mention := entry.Trigger.(Mention)
		qualifies := false
		switch mention.Target {
		case MentionAny:
			qualifies = anyMention
		case MentionSelf:
			qualifies = selfMentioned
		case MentionSpecific:
			qualifies = slices.ContainsFunc(mention.IDs, func(id string) bool {
				return slices.Contains(mentioned, id)
			})
		}
		if qualifies {
			seen[entry.Module] = true
			result = append(result, entry)
		}
	}
	return result
}

// LookupPattern evaluates every registered pattern against text and
// returns each match.
func (r *Registry) LookupPattern(text string) []PatternMatch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []PatternMatch
	for _, compiled := range r.patterns {
		groups := compiled.regex.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		matches = append(matches, PatternMatch{
			Module:  compiled.module,
			Pattern: compiled.pattern,
			Groups:  groups,
		})
	}
	return matches
}

// LookupReaction returns the reaction handlers for one reaction event.
// If any module has claimed messageID, only claiming modules are
// considered.
func (r *Registry) LookupReaction(messageID, emoji string, added bool) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claimants := r.claims[messageID]
	var result []Entry
	seen := make(map[string]bool)
	for _, entry := range r.reactions {
		if seen[entry.Module] {
			continue
		}
		if len(claimants) > 0 && !slices.Contains(claimants, entry.Module) {
			continue
		}
		if !entry.Trigger.(Reaction).Matches(emoji, added) {
			continue
		}
		seen[entry.Module] = true
		result = append(result, entry)
	}
	return result
}

// Claim subscribes module exclusively to reactions on messageID. Other
// modules stop seeing that message's reactions until every claim is
// released.
func (r *Registry) Claim(module, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.claims[messageID], module) {
		r.claims[messageID] = append(r.claims[messageID], module)
	}
}

// Release drops module's claim on messageID.
func (r *Registry) Release(module, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := slices.DeleteFunc(r.claims[messageID], func(claimant string) bool {
		return claimant == module
	})
	if len(remaining) == 0 {
		delete(r.claims, messageID)
		return
	}
	r.claims[messageID] = remaining
}

// Claims returns the number of messages with at least one claim.
func (r *Registry) Claims() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}

// Timers returns every timer registration.
func (r *Registry) Timers() []TimerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.timers)
}

// Modules returns every module with at least one trigger, in
// registration order.
func (r *Registry) Modules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.modules)
}

// Commands returns the invocations module registered.
func (r *Registry) Commands(module string) []Invocation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.invocations[module])
}
