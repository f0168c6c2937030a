// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/herald/lib/testutil"
	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/trigger"
)

func configurable() *testModule {
	module := newModule("karma", trigger.Invocation{Command: "karma", Usage: "karma <user>", Description: "show karma"})
	module.settings = settings.Declarations{
		PerGuild: []settings.Key{
			{Name: "threshold", Type: settings.Percent{}, Default: 0.25, Notify: true},
			{Name: "reset", Type: settings.Integer{}, Default: int64(0), Confirm: "This wipes everyone's karma. Continue?"},
		},
	}
	return module
}

func TestHelp(t *testing.T) {
	h := newHarness(t, configurable())

	h.deliver(guildMessage(master, "!help"))
	if got := h.lastReply(t); !strings.Contains(got, "Modules: runtime, karma") {
		t.Errorf("help = %q", got)
	}

	h.deliver(guildMessage(master, "!help karma"))
	got := h.lastReply(t)
	if !strings.Contains(got, "a module for tests") || !strings.Contains(got, "!karma <user> - show karma") {
		t.Errorf("help karma = %q", got)
	}

	h.deliver(guildMessage(master, "!help runtime"))
	if got := h.lastReply(t); !strings.Contains(got, "!quit - save everything and shut down [master]") {
		t.Errorf("help runtime = %q", got)
	}

	h.deliver(guildMessage(master, "!help nothing"))
	if got := h.lastReply(t); got != `No module named "nothing".` {
		t.Errorf("help nothing = %q", got)
	}

	h.deliver(guildMessage(alice, "!help"))
	if got := h.lastReply(t); got != "You need operator rights for that." {
		t.Errorf("help by plain user = %q", got)
	}
}

func TestSettingsCommand(t *testing.T) {
	module := configurable()
	h := newHarness(t, module)
	store := h.runtime.State().Settings

	h.deliver(guildMessage(master, "!settings karma threshold 50%"))
	if got := h.lastReply(t); got != "karma.threshold is now 0.5 in this guild." {
		t.Errorf("reply = %q", got)
	}
	if value, _ := store.Get(guild, "karma", "threshold"); value != 0.5 {
		t.Errorf("stored threshold = %v, want 0.5", value)
	}
	change := testutil.RequireReceive(t, module.changes, 5*time.Second, "no change notification")
	if change.Scope != guild || change.Old != 0.25 || change.New != 0.5 {
		t.Errorf("change = %+v", change)
	}
	if saves := h.store.Saves(); saves != 1 {
		t.Errorf("saves = %d after settings change, want 1", saves)
	}

	h.deliver(guildMessage(master, "!settings karma threshold 150%"))
	if got := h.lastReply(t); !strings.HasPrefix(got, `invalid value "150%" for karma.threshold`) {
		t.Errorf("reply = %q", got)
	}
	if value, _ := store.Get(guild, "karma", "threshold"); value != 0.5 {
		t.Errorf("rejected value changed the store: %v", value)
	}

	h.deliver(guildMessage(master, "!settings karma threshold"))
	if got := h.lastReply(t); !strings.HasPrefix(got, "karma.threshold = 0.5 (percent)") {
		t.Errorf("reply = %q", got)
	}

	h.deliver(guildMessage(master, "!settings karma nope 1"))
	if got := h.lastReply(t); got != "Unknown setting karma.nope." {
		t.Errorf("reply = %q", got)
	}

	h.deliver(guildMessage(master, "!settings"))
	if got := h.lastReply(t); !strings.Contains(got, "karma, runtime") {
		t.Errorf("reply = %q", got)
	}
}

func TestSettingsCommandGlobalScopes(t *testing.T) {
	h := newHarness(t)
	store := h.runtime.State().Settings
	if err := h.runtime.State().Gate.Grant(alice, permission.Operator, guild); err != nil {
		t.Fatal(err)
	}

	h.deliver(guildMessage(alice, "!settings runtime prompt_timeout 30"))
	if got := h.lastReply(t); got != "You need superop rights for that." {
		t.Errorf("guild operator setting a global-only key: %q", got)
	}

	before := h.runtime.promptTimeout()
	h.deliver(guildMessage(master, "!settings runtime prompt_timeout 30"))
	if got, want := h.lastReply(t), `invalid value "30" for runtime.prompt_timeout: can only be set globally`; got != want {
		t.Errorf("global-only write inside a guild: reply = %q, want %q", got, want)
	}
	if h.runtime.promptTimeout() != before {
		t.Errorf("promptTimeout() = %v after a refused write, want %v", h.runtime.promptTimeout(), before)
	}

	h.deliver(directMessage(master, "!settings runtime prompt_timeout 30"))
	if got := h.lastReply(t); got != "runtime.prompt_timeout is now 30 globally." {
		t.Errorf("reply = %q", got)
	}
	if h.runtime.promptTimeout() != 30*time.Second {
		t.Errorf("promptTimeout() = %v", h.runtime.promptTimeout())
	}

	h.deliver(directMessage(master, "!settings runtime announce_denials off"))
	if got, want := h.lastReply(t), `invalid value "off" for runtime.announce_denials: can only be set inside a guild`; got != want {
		t.Errorf("guild-only write in a DM: reply = %q, want %q", got, want)
	}

	h.deliver(directMessage(master, "!settings runtime error_replies off"))
	if value, _ := store.GetGlobal(RuntimeNamespace, SettingErrorReplies); value != false {
		t.Errorf("global error_replies = %v after DM write", value)
	}
	if value, _ := store.Get(guild, RuntimeNamespace, SettingErrorReplies); value != true {
		t.Errorf("guild error_replies = %v, guild values are independent", value)
	}
}

func TestSettingsCommandConfirmation(t *testing.T) {
	h := newHarness(t, configurable())
	store := h.runtime.State().Settings
	ctx := context.Background()

	h.runtime.Route(ctx, guildMessage(master, "!settings karma reset 1"))
	h.clock.WaitForTimers(1)
	h.runtime.Route(ctx, guildMessage(master, "!!no"))
	h.runtime.Wait()
	if value, _ := store.Get(guild, "karma", "reset"); value != int64(0) {
		t.Errorf("declined change committed: %v", value)
	}
	if got := h.lastReply(t); got != "karma.reset left unchanged." {
		t.Errorf("reply = %q", got)
	}

	h.runtime.Route(ctx, guildMessage(master, "!settings karma reset 1"))
	h.clock.WaitForTimers(1)
	h.runtime.Route(ctx, guildMessage(master, "!!YES"))
	h.runtime.Wait()
	if value, _ := store.Get(guild, "karma", "reset"); value != int64(1) {
		t.Errorf("confirmed change not committed: %v", value)
	}
}

func TestSettingsValidatesBeforeConfirming(t *testing.T) {
	h := newHarness(t, configurable())

	h.deliver(guildMessage(master, "!settings karma reset banana"))
	if got := h.lastReply(t); !strings.HasPrefix(got, `invalid value "banana" for karma.reset`) {
		t.Errorf("reply = %q", got)
	}
	if replies := h.replies(); len(replies) != 1 {
		t.Errorf("replies = %q, want only the validation error", replies)
	}
	if pending := h.runtime.State().Broker.Pending(); pending != 0 {
		t.Errorf("pending sessions = %d, want no confirmation asked", pending)
	}
}

func TestSettingsConfirmationTimesOut(t *testing.T) {
	h := newHarness(t, configurable())
	h.runtime.Route(context.Background(), guildMessage(master, "!settings karma reset 1"))
	h.clock.WaitForTimers(1)
	h.clock.Advance(time.Minute)
	h.runtime.Wait()
	if value, _ := h.runtime.State().Settings.Get(guild, "karma", "reset"); value != int64(0) {
		t.Errorf("timed-out confirmation committed: %v", value)
	}
}

func TestOpDeopOps(t *testing.T) {
	h := newHarness(t)
	gate := h.runtime.State().Gate

	h.deliver(guildMessage(master, "!op "+alice))
	if gate.TierOf(alice, guild) != permission.Operator {
		t.Fatalf("alice tier = %v after op", gate.TierOf(alice, guild))
	}
	if gate.TierOf(alice, "!elsewhere:test") != permission.None {
		t.Error("guild op leaked into another guild")
	}

	h.deliver(guildMessage(alice, "!op "+bob+" global"))
	if got := h.lastReply(t); got != "You need superop rights for that." {
		t.Errorf("guild operator granting global: %q", got)
	}

	h.deliver(guildMessage(alice, "!op "+bob))
	if gate.TierOf(bob, guild) != permission.Operator {
		t.Error("operator could not op in own guild")
	}

	h.deliver(guildMessage(alice, "!op "+bob+" superop"))
	if got := h.lastReply(t); got != "You need master rights for that." {
		t.Errorf("operator granting superop: %q", got)
	}
	h.deliver(guildMessage(master, "!op "+bob+" superop"))
	if gate.TierOf(bob, "") != permission.Superop {
		t.Error("master could not grant superop")
	}

	h.deliver(guildMessage(master, "!ops"))
	got := h.lastReply(t)
	for _, want := range []string{"Operators here: " + alice + ", " + bob, "Global operators: (none)", "Superops: " + bob} {
		if !strings.Contains(got, want) {
			t.Errorf("ops = %q, missing %q", got, want)
		}
	}

	h.deliver(guildMessage(master, "!deop "+alice))
	if gate.TierOf(alice, guild) != permission.None {
		t.Error("deop did not revoke")
	}
	h.deliver(guildMessage(master, "!deop "+alice))
	if got := h.lastReply(t); got != alice+" is not an operator in this guild." {
		t.Errorf("second deop = %q", got)
	}

	h.deliver(guildMessage(master, "!op"))
	if got := h.lastReply(t); got != "Usage: !op <user> [global|superop]" {
		t.Errorf("bare op = %q", got)
	}
}
