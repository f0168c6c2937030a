// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/lib/testutil"
	"github.com/bureau-foundation/herald/permission"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

// commandOnly has an invocation trigger but no handler.
type commandOnly struct{}

func (commandOnly) Name() string { return "broken" }
func (commandOnly) Triggers() []trigger.Trigger {
	return []trigger.Trigger{trigger.Invocation{Command: "x"}}
}

func TestRegisterRejects(t *testing.T) {
	tests := []struct {
		name   string
		module Module
		want   string
	}{
		{"reserved", newModule(RuntimeNamespace), "reserved"},
		{"empty", newModule(""), "empty name"},
		{"duplicate", newModule("dice"), "loaded twice"},
		{"missing handler", commandOnly{}, "no handler"},
		{"bad trigger", newModule("bad", trigger.Pattern{Regex: "("}), "bad"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t, newModule("dice"))
			err := h.runtime.Register(test.module)
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Register error = %v, want mention of %q", err, test.want)
			}
		})
	}
}

func TestStateRoundTripsThroughStore(t *testing.T) {
	store := snapshot.NewMemoryStore()
	counter := newModule("counter", trigger.Invocation{Command: "count"})
	counter.state["100"] = 5
	first := newHarnessWithStore(t, store, counter)
	if counter.restored {
		t.Error("RestoreState called with nothing saved")
	}
	if err := first.runtime.State().Gate.Grant(alice, permission.Operator, guild); err != nil {
		t.Fatal(err)
	}
	if _, err := first.runtime.State().Settings.Set(guild, RuntimeNamespace, SettingErrorReplies, "no"); err != nil {
		t.Fatal(err)
	}
	if err := first.runtime.State().Snapshots.SaveAll(context.Background()); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	restored := newModule("counter", trigger.Invocation{Command: "count"})
	second := newHarnessWithStore(t, store, restored)
	if !restored.restored {
		t.Fatal("RestoreState not called")
	}
	if diff := cmp.Diff(map[string]int{"100": 5}, restored.state); diff != "" {
		t.Errorf("restored state mismatch (-want +got):\n%s", diff)
	}
	if second.runtime.State().Gate.TierOf(alice, guild) != permission.Operator {
		t.Error("roster not restored")
	}
	if value, _ := second.runtime.State().Settings.Get(guild, RuntimeNamespace, SettingErrorReplies); value != false {
		t.Errorf("setting not restored: %v", value)
	}
}

// channelSource feeds Run from a channel.
type channelSource chan platform.Event

func (s channelSource) Run(ctx context.Context, events chan<- platform.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-s:
			select {
			case events <- event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func TestRunStopsOnQuitAndSaves(t *testing.T) {
	store := snapshot.NewMemoryStore()
	client := testutil.NewPlatform(botID)
	runtime, err := New(Config{Masters: []string{master}, Client: client, Store: store, Clock: clock.Fake(epoch)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := runtime.Load(context.Background(), newModule("ticker", trigger.Timer{Name: "t", Period: time.Hour})); err != nil {
		t.Fatalf("Load: %v", err)
	}

	source := make(channelSource)
	result := make(chan error, 1)
	go func() { result <- runtime.Run(context.Background(), source) }()

	testutil.RequireSend(t, source, guildMessage(alice, "!quit"), 5*time.Second, "router not consuming")
	reply := testutil.RequireReceive(t, client.Sends, 5*time.Second, "no denial reply")
	if reply.Text != "You need master rights for that." {
		t.Errorf("reply = %q", reply.Text)
	}

	testutil.RequireSend(t, source, guildMessage(master, "!quit"), 5*time.Second, "router not consuming")
	if err := testutil.RequireReceive(t, result, 5*time.Second, "Run did not return after quit"); err != nil {
		t.Errorf("Run = %v, want nil", err)
	}
	if store.Saves() == 0 {
		t.Error("no save on shutdown")
	}
	if got := client.SentMessages(); got[len(got)-1].Text != "Shutting down." {
		t.Errorf("last message = %q", got[len(got)-1].Text)
	}
}

func TestFacade(t *testing.T) {
	var got struct {
		identity, guild string
		history         int
		setting         any
		direct          platform.MessageRef
	}
	reader := newModule("reader", trigger.Invocation{Command: "read"})
	reader.handle = func(ctx context.Context, f Facade) error {
		got.identity = f.Identity()
		got.guild = f.Guild()
		got.history = len(f.History(10))
		got.setting, _ = f.Setting("missing")
		var err error
		got.direct, err = f.SendDirect(ctx, bob, "psst")
		return err
	}
	h := newHarness(t, reader)

	h.deliver(guildMessage(alice, "earlier"))
	h.deliver(guildMessage(alice, "!read"))

	if got.identity != alice || got.guild != guild {
		t.Errorf("identity/guild = %q/%q", got.identity, got.guild)
	}
	if got.history != 2 {
		t.Errorf("history length = %d, want 2", got.history)
	}
	if got.setting != nil {
		t.Errorf("unknown setting read = %v", got.setting)
	}
	if got.direct.Channel.ChannelID != "!dm-bob:test" || !got.direct.Channel.IsDirect() {
		t.Errorf("direct message went to %+v", got.direct.Channel)
	}
}

func TestFacadePromptConverts(t *testing.T) {
	numbers := make(chan int, 1)
	asker := newModule("asker", trigger.Invocation{Command: "pick"})
	asker.handle = func(ctx context.Context, f Facade) error {
		value, ok := Prompt(ctx, f, "Pick a number.", func(raw string) (int, bool) {
			switch raw {
			case "one":
				return 1, true
			case "two":
				return 2, true
			}
			return 0, false
		}, 0)
		if !ok {
			value = -1
		}
		numbers <- value
		return nil
	}
	h := newHarness(t, asker)
	ctx := context.Background()

	h.runtime.Route(ctx, guildMessage(alice, "!pick"))
	h.clock.WaitForTimers(1)
	h.runtime.Route(ctx, guildMessage(alice, "!!three"))
	h.runtime.Route(ctx, guildMessage(alice, "!!two"))
	h.runtime.Wait()

	if value := <-numbers; value != 2 {
		t.Errorf("Prompt = %d, want 2", value)
	}
}

func TestFacadeEmoteOption(t *testing.T) {
	choices := make(chan string, 1)
	voter := newModule("voter", trigger.Invocation{Command: "vote"})
	voter.handle = func(ctx context.Context, f Facade) error {
		choice, _ := f.EmoteOption(ctx, "Vote!", []string{"👍", "👎"}, time.Minute)
		choices <- choice
		return nil
	}
	h := newHarness(t, voter)
	ctx := context.Background()

	h.runtime.Route(ctx, guildMessage(alice, "!vote"))
	h.clock.WaitForTimers(1)
	question := h.platform.SentMessages()[0]
	if got := h.platform.ReactionsAdded(); len(got) != 2 || got[0].Target != question.Ref {
		t.Fatalf("option reactions = %+v", got)
	}
	h.runtime.Route(ctx, reactionEvent(alice, question.Ref.MessageID, "🎉", true))
	h.runtime.Route(ctx, reactionEvent(alice, question.Ref.MessageID, "👎", true))
	h.runtime.Wait()

	if choice := <-choices; choice != "👎" {
		t.Errorf("choice = %q", choice)
	}
}
