// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/trigger"
)

// builtin is a command answered by the runtime before the registry.
type builtin struct {
	invocation trigger.Invocation
	// saves marks commands that change the roster or settings.
	saves bool
	run   func(ctx context.Context, c *call, args []string) error
}

func (r *Runtime) builtinCommands() map[string]*builtin {
	commands := []*builtin{
		{
			invocation: trigger.Invocation{Command: "help", Tier: permission.Operator, Usage: "help [module]", Description: "list modules or describe one"},
			run:        r.help,
		},
		{
			invocation: trigger.Invocation{Command: "quit", Tier: permission.Master, Usage: "quit", Description: "save everything and shut down"},
			run:        r.quit,
		},
		{
			invocation: trigger.Invocation{Command: "settings", Tier: permission.Operator, Usage: "settings [module [key [value]]]", Description: "show or change settings"},
			saves:      true,
			run:        r.settingsCommand,
		},
		{
			invocation: trigger.Invocation{Command: "op", Tier: permission.Operator, Usage: "op <user> [global|superop]", Description: "grant operator rights"},
			saves:      true,
			run:        r.op,
		},
		{
			invocation: trigger.Invocation{Command: "deop", Tier: permission.Operator, Usage: "deop <user> [global|superop]", Description: "revoke operator rights"},
			saves:      true,
			run:        r.deop,
		},
		{
			invocation: trigger.Invocation{Command: "ops", Tier: permission.Operator, Usage: "ops", Description: "list operators"},
			run:        r.ops,
		},
	}
	table := make(map[string]*builtin, len(commands))
	for _, command := range commands {
		table[command.invocation.Command] = command
	}
	return table
}

// builtinOrder fixes the order runtime commands appear in help.
var builtinOrder = []string{"help", "settings", "op", "deop", "ops", "quit"}

func (r *Runtime) formatInvocation(invocation trigger.Invocation) string {
	usage := invocation.Usage
	if usage == "" {
		usage = invocation.Command
	}
	line := r.prefix + usage
	if invocation.Description != "" {
		line += " - " + invocation.Description
	}
	if invocation.Tier > permission.None {
		line += " [" + invocation.Tier.String() + "]"
	}
	return line
}

func (r *Runtime) help(ctx context.Context, c *call, args []string) error {
	if len(args) > 1 {
		return Usage("help [module]")
	}
	var text strings.Builder
	if len(args) == 0 {
		names := append([]string{RuntimeNamespace}, r.state.ModuleNames()...)
		fmt.Fprintf(&text, "Modules: %s\nUse %shelp <module> for its commands.", strings.Join(names, ", "), r.prefix)
		_, err := c.Reply(ctx, text.String())
		return err
	}

	name := args[0]
	var invocations []trigger.Invocation
	if name == RuntimeNamespace {
		text.WriteString("Runtime commands:")
		for _, command := range builtinOrder {
			invocations = append(invocations, r.builtins[command].invocation)
		}
	} else {
		module, ok := r.state.Module(name)
		if !ok {
			return Errorf("No module named %q.", name)
		}
		fmt.Fprintf(&text, "%s:", name)
		if helper, ok := module.(Helper); ok {
			text.WriteString(" " + helper.Help())
		}
		invocations = r.state.Registry.Commands(name)
	}
	for _, invocation := range invocations {
		text.WriteString("\n  " + r.formatInvocation(invocation))
	}
	_, err := c.Reply(ctx, text.String())
	return err
}

func (r *Runtime) quit(ctx context.Context, c *call, args []string) error {
	c.logger.Warn("shutdown requested", "identity", c.identity)
	if _, err := c.Reply(ctx, "Shutting down."); err != nil {
		c.logger.Warn("sending shutdown notice failed", "error", err)
	}
	r.Stop()
	return nil
}

func scopeName(scope string) string {
	if scope == settings.Global {
		return "globally"
	}
	return "in this guild"
}

// settingsCommand shows namespaces, a namespace's keys, or one key, or
// commits a new value. Writes go to the event's guild, or the global
// scope in DMs. Global-only keys need superop rights and can only be
// written from a DM; guild-only keys only from a guild. The value is
// validated before any confirmation question is asked.
func (r *Runtime) settingsCommand(ctx context.Context, c *call, args []string) error {
	store := r.state.Settings
	scope := c.settingScope()

	switch len(args) {
	case 0:
		_, err := c.Reply(ctx, fmt.Sprintf("Setting namespaces: %s\nUse %ssettings <module> to list keys.",
			strings.Join(store.Namespaces(), ", "), r.prefix))
		return err
	case 1:
		keys := store.Keys(args[0])
		if len(keys) == 0 {
			return Errorf("%q has no settings.", args[0])
		}
		var text strings.Builder
		fmt.Fprintf(&text, "%s settings:", args[0])
		for _, key := range keys {
			value, err := store.Get(scope, args[0], key.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(&text, "\n  %s = %s (%s)", key.Name, key.Type.Format(value), key.Restriction)
			if key.Description != "" {
				text.WriteString(" - " + key.Description)
			}
		}
		_, err := c.Reply(ctx, text.String())
		return err
	}

	ns, name := args[0], args[1]
	key, ok := store.Lookup(ns, name)
	if !ok {
		return Errorf("Unknown setting %s.%s.", ns, name)
	}
	if len(args) == 2 {
		value, err := store.Get(scope, ns, name)
		if err != nil {
			return err
		}
		_, err = c.Reply(ctx, fmt.Sprintf("%s.%s = %s (%s)", ns, name, key.Type.Format(value), key.Type.Name()))
		return err
	}

	if key.Restriction == settings.GlobalOnly {
		if err := r.state.Gate.Check(c.identity, permission.Superop, c.guild); err != nil {
			return err
		}
	}
	raw := strings.Join(args[2:], " ")
	if _, err := store.Check(scope, ns, name, raw); err != nil {
		return err
	}
	if key.Confirm != "" {
		question := fmt.Sprintf("%s (answer %syes or %sno)", key.Confirm, r.state.Broker.ReplyPrefix(), r.state.Broker.ReplyPrefix())
		if !c.Confirm(ctx, question, 0) {
			_, err := c.Reply(ctx, fmt.Sprintf("%s.%s left unchanged.", ns, name))
			return err
		}
	}
	value, err := store.Set(scope, ns, name, raw)
	if errors.Is(err, settings.ErrUnknownKey) {
		return Errorf("Unknown setting %s.%s.", ns, name)
	}
	if err != nil {
		return err
	}
	_, err = c.Reply(ctx, fmt.Sprintf("%s.%s is now %s %s.", ns, name, key.Type.Format(value), scopeName(scope)))
	return err
}

// grantTarget parses "<user> [global|superop]" and checks the caller may
// change that part of the roster: operator for this guild, superop for
// global operators, master for superops.
func (r *Runtime) grantTarget(c *call, verb string, args []string) (string, permission.Tier, string, error) {
	usage := verb + " <user> [global|superop]"
	if len(args) < 1 || len(args) > 2 {
		return "", 0, "", Usage(usage)
	}
	user, tier, guild := args[0], permission.Operator, c.guild
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "global":
			guild = ""
		case "superop":
			tier, guild = permission.Superop, ""
		default:
			return "", 0, "", Usage(usage)
		}
	}
	required := permission.Operator
	switch {
	case tier == permission.Superop:
		required = permission.Master
	case guild == "":
		required = permission.Superop
	}
	if err := r.state.Gate.Check(c.identity, required, c.guild); err != nil {
		return "", 0, "", err
	}
	return user, tier, guild, nil
}

func describeGrant(tier permission.Tier, guild string) string {
	switch {
	case tier == permission.Superop:
		return "superop"
	case guild == "":
		return "a global operator"
	default:
		return "an operator in this guild"
	}
}

func (r *Runtime) op(ctx context.Context, c *call, args []string) error {
	user, tier, guild, err := r.grantTarget(c, "op", args)
	if err != nil {
		return err
	}
	if err := r.state.Gate.Grant(user, tier, guild); err != nil {
		return err
	}
	c.logger.Info("roster grant", "identity", user, "tier", tier.String(), "guild_id", guild, "granted_by", c.identity)
	_, err = c.Reply(ctx, fmt.Sprintf("%s is now %s.", user, describeGrant(tier, guild)))
	return err
}

func (r *Runtime) deop(ctx context.Context, c *call, args []string) error {
	user, tier, guild, err := r.grantTarget(c, "deop", args)
	if err != nil {
		return err
	}
	removed, err := r.state.Gate.Revoke(user, tier, guild)
	if err != nil {
		return err
	}
	if !removed {
		return Errorf("%s is not %s.", user, describeGrant(tier, guild))
	}
	c.logger.Info("roster revoke", "identity", user, "tier", tier.String(), "guild_id", guild, "revoked_by", c.identity)
	_, err = c.Reply(ctx, fmt.Sprintf("%s is no longer %s.", user, describeGrant(tier, guild)))
	return err
}

func (r *Runtime) ops(ctx context.Context, c *call, args []string) error {
	list := func(values []string) string {
		if len(values) == 0 {
			return "(none)"
		}
		return strings.Join(values, ", ")
	}
	var text strings.Builder
	if c.guild != "" {
		fmt.Fprintf(&text, "Operators here: %s\n", list(r.state.Gate.Operators(c.guild)))
	}
	fmt.Fprintf(&text, "Global operators: %s\nSuperops: %s",
		list(r.state.Gate.Operators("")), list(r.state.Gate.Superops()))
	_, err := c.Reply(ctx, text.String())
	return err
}
