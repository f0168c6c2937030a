// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"slices"
	"strings"

	"github.com/google/shlex"

	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/trigger"
)

// Route classifies one inbound event and schedules every matching
// handler. Run calls it from its router goroutine. Callers that feed
// events themselves may call it directly, but never concurrently with
// Run or with another Route.
func (r *Runtime) Route(ctx context.Context, event platform.Event) {
	switch {
	case event.Kind == platform.KindMessage && event.Message != nil:
		r.routeMessage(ctx, event)
	case event.Kind == platform.KindReaction && event.Reaction != nil:
		r.routeReaction(ctx, event)
	default:
		r.logger.Debug("dropping malformed platform event", "kind", int(event.Kind))
	}
}

func (r *Runtime) routeMessage(ctx context.Context, event platform.Event) {
	message := event.Message
	if message.Author == r.client.SelfID() {
		return
	}
	r.state.History.Append(message)
	r.state.Settings.AddGuild(message.Ref.Channel.GuildID)
	if r.state.Broker.Offer(event) {
		return
	}

	prefixed := strings.HasPrefix(message.Body, r.prefix)
	if prefixed && !strings.HasPrefix(message.Body, r.state.Broker.ReplyPrefix()) {
		if r.routeCommand(ctx, message) {
			return
		}
	}
	if !prefixed && message.HasMentions() {
		r.routeMention(ctx, message)
	}
	r.routePatterns(ctx, message)
}

// routeCommand dispatches a prefixed message and reports whether it
// named a known command.
func (r *Runtime) routeCommand(ctx context.Context, message *platform.Message) bool {
	line := strings.TrimPrefix(message.Body, r.prefix)
	tokens, err := shlex.Split(line)
	if err != nil {
		fields := strings.Fields(line)
		if len(fields) == 0 || !r.knownCommand(fields[0]) {
			return false
		}
		usage := r.usageFor(fields[0])
		r.invoke(ctx, task{
			module: RuntimeNamespace,
			call:   r.newCall(RuntimeNamespace, Event{Kind: trigger.KindInvocation, Message: message, Command: fields[0]}),
			action: func(context.Context, Facade) error { return &SyntaxError{Usage: usage} },
		})
		return true
	}
	if len(tokens) == 0 {
		return false
	}
	command, args := tokens[0], tokens[1:]

	if builtin, ok := r.builtins[command]; ok {
		c := r.newCall(RuntimeNamespace, Event{Kind: trigger.KindInvocation, Message: message, Command: command, Args: args})
		r.invoke(ctx, task{
			module: RuntimeNamespace,
			tier:   builtin.invocation.Tier,
			call:   c,
			save:   builtin.saves,
			action: func(ctx context.Context, _ Facade) error { return builtin.run(ctx, c, args) },
		})
		return true
	}

	entries := r.state.Registry.LookupCommand(command)
	if len(entries) == 0 {
		return false
	}
	for _, entry := range entries {
		module, ok := r.state.Module(entry.Module)
		if !ok {
			continue
		}
		handler := module.(CommandHandler)
		moduleArgs := slices.Clone(args)
		r.invoke(ctx, task{
			module: entry.Module,
			tier:   entry.Trigger.RequiredTier(),
			call:   r.newCall(entry.Module, Event{Kind: trigger.KindInvocation, Message: message, Command: command, Args: moduleArgs}),
			action: func(ctx context.Context, f Facade) error {
				return handler.HandleCommand(ctx, f, command, moduleArgs)
			},
		})
	}
	return true
}

func (r *Runtime) routeMention(ctx context.Context, message *platform.Message) {
	entries := r.state.Registry.LookupMention(message.Mentioned(r.client.SelfID()), message.HasMentions(), message.Mentions)
	for _, entry := range entries {
		module, ok := r.state.Module(entry.Module)
		if !ok {
			continue
		}
		handler := module.(MentionHandler)
		r.invoke(ctx, task{
			module: entry.Module,
			tier:   entry.Trigger.RequiredTier(),
			call:   r.newCall(entry.Module, Event{Kind: trigger.KindMention, Message: message}),
			action: func(ctx context.Context, f Facade) error {
				return handler.HandleMention(ctx, f, message)
			},
		})
	}
}

func (r *Runtime) routePatterns(ctx context.Context, message *platform.Message) {
	for _, match := range r.state.Registry.LookupPattern(message.Body) {
		module, ok := r.state.Module(match.Module)
		if !ok {
			continue
		}
		handler := module.(PatternHandler)
		r.invoke(ctx, task{
			module: match.Module,
			tier:   match.Pattern.Tier,
			call: r.newCall(match.Module, Event{
				Kind:    trigger.KindPattern,
				Message: message,
				Pattern: match.Pattern.Regex,
				Groups:  match.Groups,
			}),
			action: func(ctx context.Context, f Facade) error {
				return handler.HandlePattern(ctx, f, match.Pattern.Regex, match.Groups)
			},
		})
	}
}

func (r *Runtime) routeReaction(ctx context.Context, event platform.Event) {
	reaction := event.Reaction
	if reaction.User == r.client.SelfID() {
		return
	}
	r.state.Settings.AddGuild(reaction.Target.Channel.GuildID)
	if r.state.Broker.Offer(event) {
		return
	}
	for _, entry := range r.state.Registry.LookupReaction(reaction.Target.MessageID, reaction.Emoji, reaction.Added) {
		module, ok := r.state.Module(entry.Module)
		if !ok {
			continue
		}
		handler := module.(ReactionHandler)
		r.invoke(ctx, task{
			module: entry.Module,
			tier:   entry.Trigger.RequiredTier(),
			call:   r.newCall(entry.Module, Event{Kind: trigger.KindReaction, Reaction: reaction}),
			action: func(ctx context.Context, f Facade) error {
				return handler.HandleReaction(ctx, f, reaction)
			},
		})
	}
}

// knownCommand reports whether name is a runtime or module command.
func (r *Runtime) knownCommand(name string) bool {
	if _, ok := r.builtins[name]; ok {
		return true
	}
	return len(r.state.Registry.LookupCommand(name)) > 0
}

// usageFor returns the usage text of the first registration of name.
func (r *Runtime) usageFor(name string) string {
	if builtin, ok := r.builtins[name]; ok {
		return builtin.invocation.Usage
	}
	for _, entry := range r.state.Registry.LookupCommand(name) {
		if invocation := entry.Trigger.(trigger.Invocation); invocation.Usage != "" {
			return invocation.Usage
		}
	}
	return name + " ..."
}
