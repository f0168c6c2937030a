// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/trigger"
)

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		handle func(context.Context, Facade) error
		reply  string
	}{
		{
			name:   "syntax",
			handle: func(context.Context, Facade) error { return Usage("roll <dice>") },
			reply:  "Usage: !roll <dice>",
		},
		{
			name:   "module",
			handle: func(context.Context, Facade) error { return Errorf("Too many dice: %d.", 500) },
			reply:  "Too many dice: 500.",
		},
		{
			name: "wrapped module",
			handle: func(context.Context, Facade) error {
				return fmt.Errorf("rolling: %w", &ModuleError{Message: "No dice.", Err: errors.New("empty pool")})
			},
			reply: "No dice.",
		},
		{
			name: "validation",
			handle: func(context.Context, Facade) error {
				return &settings.ValidationError{Namespace: "dice", Key: "sides", Raw: "x", Reason: "not an integer"}
			},
			reply: `invalid value "x" for dice.sides: not an integer`,
		},
		{
			name:   "generic",
			handle: func(context.Context, Facade) error { return errors.New("disk on fire") },
			reply:  "Sorry, something went wrong.",
		},
		{
			name:   "panic",
			handle: func(context.Context, Facade) error { panic("nil map") },
			reply:  "Sorry, something went wrong.",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			module := newModule("dice", trigger.Invocation{Command: "roll"})
			module.handle = test.handle
			h := newHarness(t, module)

			h.deliver(guildMessage(alice, "!roll"))

			if got := h.lastReply(t); got != test.reply {
				t.Errorf("reply = %q, want %q", got, test.reply)
			}
		})
	}
}

func TestSuccessSendsNoErrorReply(t *testing.T) {
	module := newModule("quiet", trigger.Invocation{Command: "noop"})
	h := newHarness(t, module)
	h.deliver(guildMessage(alice, "!noop"))
	if replies := h.replies(); len(replies) != 0 {
		t.Errorf("replies = %q, want none", replies)
	}
}

func TestErrorRepliesSetting(t *testing.T) {
	module := newModule("flaky", trigger.Invocation{Command: "fail"})
	module.handle = func(context.Context, Facade) error { return errors.New("boom") }
	h := newHarness(t, module)

	if _, err := h.runtime.State().Settings.Set(guild, RuntimeNamespace, SettingErrorReplies, "off"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	h.deliver(guildMessage(alice, "!fail"))
	if replies := h.replies(); len(replies) != 0 {
		t.Errorf("replies = %q with error_replies off", replies)
	}

	h.deliver(directMessage(alice, "!fail"))
	if got := h.lastReply(t); got != "Sorry, something went wrong." {
		t.Errorf("DM reply = %q, global setting should still apologize", got)
	}
}

func TestAnnounceDenialsSetting(t *testing.T) {
	module := newModule("admin", trigger.Invocation{Command: "purge", Tier: 1})
	h := newHarness(t, module)
	if _, err := h.runtime.State().Settings.Set(guild, RuntimeNamespace, SettingAnnounceDenials, "no"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	h.deliver(guildMessage(alice, "!purge"))
	if replies := h.replies(); len(replies) != 0 {
		t.Errorf("replies = %q with announce_denials off", replies)
	}
}

func TestAutoSaveAfterTask(t *testing.T) {
	saving := newModule("saving", trigger.Invocation{Command: "count"})
	saving.autoSave = true
	manual := newModule("manual", trigger.Invocation{Command: "look"})
	h := newHarness(t, saving, manual)

	h.deliver(guildMessage(alice, "!look"))
	if saves := h.store.Saves(); saves != 0 {
		t.Fatalf("saves = %d after a non-auto-save module ran", saves)
	}
	h.deliver(guildMessage(alice, "!count"))
	if saves := h.store.Saves(); saves != 1 {
		t.Errorf("saves = %d after an auto-save module ran, want 1", saves)
	}
}

func TestAfterRunsForDeniedTasks(t *testing.T) {
	h := newHarness(t)
	done := make(chan struct{})
	c := h.runtime.newCall("x", Event{Kind: trigger.KindInvocation, Message: guildMessage(alice, "!x").Message})
	h.runtime.invoke(context.Background(), task{
		module: "x",
		tier:   3,
		call:   c,
		action: func(context.Context, Facade) error {
			t.Error("denied action ran")
			return nil
		},
		after: func() { close(done) },
	})
	h.runtime.Wait()
	select {
	case <-done:
	default:
		t.Error("after hook did not run for a denied task")
	}
}
