// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/trigger"
)

func TestCommandDispatchExactness(t *testing.T) {
	dice := newModule("dice", trigger.Invocation{Command: "roll", Usage: "roll <dice>"})
	ping := newModule("ping", trigger.Invocation{Command: "ping"})
	echo := newModule("echo", trigger.Pattern{Regex: `.*`})
	h := newHarness(t, dice, ping, echo)

	h.deliver(guildMessage(alice, "!roll 2d6"))

	want := []invocation{{Module: "dice", Kind: trigger.KindInvocation, Command: "roll", Args: []string{"2d6"}}}
	if diff := cmp.Diff(want, dice.Calls()); diff != "" {
		t.Errorf("dice calls mismatch (-want +got):\n%s", diff)
	}
	if calls := ping.Calls(); len(calls) != 0 {
		t.Errorf("ping called for !roll: %+v", calls)
	}
	if calls := echo.Calls(); len(calls) != 0 {
		t.Errorf("pattern module saw a recognized command: %+v", calls)
	}
}

func TestUnknownCommandFallsThroughToPatterns(t *testing.T) {
	echo := newModule("echo", trigger.Pattern{Regex: `^!(\w+)`})
	h := newHarness(t, echo)

	h.deliver(guildMessage(alice, "!nosuch thing"))

	calls := echo.Calls()
	if len(calls) != 1 || calls[0].Groups[1] != "nosuch" {
		t.Fatalf("pattern calls = %+v, want one match with group nosuch", calls)
	}
}

func TestDuplicateCommandDispatchesToBoth(t *testing.T) {
	first := newModule("first", trigger.Invocation{Command: "ping"})
	second := newModule("second", trigger.Invocation{Command: "ping"})
	h := newHarness(t, first, second)

	h.deliver(guildMessage(alice, "!ping"))

	if len(first.Calls()) != 1 || len(second.Calls()) != 1 {
		t.Errorf("calls = %d/%d, want 1/1", len(first.Calls()), len(second.Calls()))
	}
}

func TestRepeatedCommandRunsModuleOnce(t *testing.T) {
	ping := newModule("ping",
		trigger.Invocation{Command: "ping", Usage: "ping"},
		trigger.Invocation{Command: "ping", Usage: "ping <host>"},
	)
	h := newHarness(t, ping)

	h.deliver(guildMessage(alice, "!ping"))

	if calls := ping.Calls(); len(calls) != 1 {
		t.Errorf("handler calls for one !ping = %d, want 1", len(calls))
	}
}

func TestShellStyleArguments(t *testing.T) {
	say := newModule("say", trigger.Invocation{Command: "say", Usage: "say <text>"})
	h := newHarness(t, say)

	h.deliver(guildMessage(alice, `!say "hello world" 'single quoted' plain`))
	calls := say.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	if diff := cmp.Diff([]string{"hello world", "single quoted", "plain"}, calls[0].Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	h.deliver(guildMessage(alice, `!say "unclosed`))
	if len(say.Calls()) != 1 {
		t.Error("handler ran for malformed quoting")
	}
	if got := h.lastReply(t); got != "Usage: !say <text>" {
		t.Errorf("reply = %q", got)
	}
}

func TestMentionDispatchedOncePerModule(t *testing.T) {
	watcher := newModule("watcher",
		trigger.Mention{Target: trigger.MentionAny},
		trigger.Mention{Target: trigger.MentionSelf},
		trigger.Mention{Target: trigger.MentionSpecific, IDs: []string{bob}},
	)
	h := newHarness(t, watcher)

	event := guildMessage(alice, "hey herald and bob")
	event.Message.Mentions = []string{botID, bob}
	h.deliver(event)

	if calls := watcher.Calls(); len(calls) != 1 || calls[0].Kind != trigger.KindMention {
		t.Errorf("calls = %+v, want exactly one mention call", calls)
	}
}

func TestMentionsIgnoredOnPrefixedMessages(t *testing.T) {
	watcher := newModule("watcher", trigger.Mention{Target: trigger.MentionAny})
	h := newHarness(t, watcher)

	event := guildMessage(alice, "!unknown @bob")
	event.Message.Mentions = []string{bob}
	h.deliver(event)

	if calls := watcher.Calls(); len(calls) != 0 {
		t.Errorf("mention handler ran for a prefixed message: %+v", calls)
	}
}

func TestOwnEventsIgnored(t *testing.T) {
	echo := newModule("echo", trigger.Pattern{Regex: `.*`}, trigger.Reaction{Add: true})
	h := newHarness(t, echo)

	h.deliver(guildMessage(botID, "I said this"))
	h.deliver(reactionEvent(botID, "$m", "👍", true))

	if calls := echo.Calls(); len(calls) != 0 {
		t.Errorf("bot's own events dispatched: %+v", calls)
	}
	if h.runtime.State().History.Len(historyKey()) != 0 {
		t.Error("bot's own message was added to history")
	}
}

func TestMessagesRecordedInHistory(t *testing.T) {
	h := newHarness(t)
	h.deliver(guildMessage(alice, "first"))
	h.deliver(guildMessage(bob, "second"))

	entries := h.runtime.State().History.Recent(historyKey(), 10)
	if len(entries) != 2 || entries[0].Body != "first" || entries[1].Body != "second" {
		t.Errorf("history = %+v", entries)
	}
}

func TestReactionRoutingAndClaims(t *testing.T) {
	claimed := platform.MessageRef{Channel: platform.ChannelRef{GuildID: guild, ChannelID: room}, MessageID: "$poll"}
	owner := newModule("owner", trigger.Invocation{Command: "poll"}, trigger.Reaction{Add: true})
	owner.handle = func(ctx context.Context, f Facade) error {
		if f.Event().Kind == trigger.KindInvocation {
			f.ClaimReactions(claimed)
		}
		return nil
	}
	other := newModule("other", trigger.Reaction{Emoji: []string{"👍"}, Add: true, Remove: true})
	h := newHarness(t, owner, other)

	h.deliver(reactionEvent(alice, "$free", "👍", false))
	if len(owner.Calls()) != 0 || len(other.Calls()) != 1 {
		t.Fatalf("before claim: owner=%d other=%d, want 0/1", len(owner.Calls()), len(other.Calls()))
	}

	h.deliver(guildMessage(alice, "!poll"))
	h.deliver(reactionEvent(alice, "$poll", "👍", true))
	if got := owner.Calls(); len(got) != 2 || got[1].Kind != trigger.KindReaction {
		t.Errorf("owner calls = %+v, want the claimed reaction", got)
	}
	if len(other.Calls()) != 1 {
		t.Errorf("other saw a claimed message's reaction")
	}
}

func TestPromptReplyIsConsumed(t *testing.T) {
	answers := make(chan bool, 1)
	asker := newModule("asker", trigger.Invocation{Command: "ask"}, trigger.Pattern{Regex: `yes`})
	asker.handle = func(ctx context.Context, f Facade) error {
		if f.Event().Kind == trigger.KindInvocation {
			answers <- f.Confirm(ctx, "Sure?", time.Minute)
		}
		return nil
	}
	h := newHarness(t, asker)

	h.runtime.Route(context.Background(), guildMessage(alice, "!ask"))
	h.clock.WaitForTimers(1)
	h.runtime.Route(context.Background(), guildMessage(bob, "!!yes"))
	h.runtime.Route(context.Background(), guildMessage(alice, "!!yes"))
	h.runtime.Wait()

	if answer := <-answers; !answer {
		t.Error("Confirm = false after !!yes")
	}
	// Bob's reply reaches patterns; Alice's is consumed by the session.
	patternCalls := 0
	for _, call := range asker.Calls() {
		if call.Kind == trigger.KindPattern {
			patternCalls++
		}
	}
	if patternCalls != 1 {
		t.Errorf("pattern calls = %d, want 1", patternCalls)
	}
	if replies := h.replies(); len(replies) == 0 || replies[0] != "Sure?" {
		t.Errorf("replies = %q, want the question first", replies)
	}
}

func TestTiersGateHandlers(t *testing.T) {
	admin := newModule("admin", trigger.Invocation{Command: "purge", Tier: permission.Operator})
	h := newHarness(t, admin)

	h.deliver(guildMessage(alice, "!purge"))
	if len(admin.Calls()) != 0 {
		t.Fatal("handler ran without permission")
	}
	if got := h.lastReply(t); !strings.Contains(got, "operator") {
		t.Errorf("denial reply = %q", got)
	}

	h.deliver(guildMessage(master, "!purge"))
	if len(admin.Calls()) != 1 {
		t.Error("master could not run an operator command")
	}
}
