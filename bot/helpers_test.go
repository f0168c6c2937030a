// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/herald/history"
	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/lib/codec"
	"github.com/bureau-foundation/herald/lib/testutil"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

const (
	botID  = "@herald:test"
	master = "@master:test"
	alice  = "@alice:test"
	bob    = "@bob:test"
	guild  = "!guild:test"
	room   = "!room:test"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// invocation records one handler call.
type invocation struct {
	Module  string
	Kind    trigger.Kind
	Command string
	Args    []string
	Groups  []string
	Emoji   string
}

// testModule implements every handler interface and records calls.
type testModule struct {
	name     string
	triggers []trigger.Trigger
	settings settings.Declarations
	autoSave bool

	// handle, if set, runs after recording and supplies the result.
	handle func(ctx context.Context, f Facade) error

	mu       sync.Mutex
	calls    []invocation
	state    map[string]int
	restored bool
	changes  chan settings.Change
}

func newModule(name string, triggers ...trigger.Trigger) *testModule {
	return &testModule{name: name, triggers: triggers, state: map[string]int{}, changes: make(chan settings.Change, 8)}
}

func (m *testModule) Name() string                    { return m.name }
func (m *testModule) Triggers() []trigger.Trigger     { return m.triggers }
func (m *testModule) Settings() settings.Declarations { return m.settings }
func (m *testModule) Help() string                    { return "a module for tests" }
func (m *testModule) AutoSave() bool                  { return m.autoSave }

func (m *testModule) record(ctx context.Context, f Facade, call invocation) error {
	call.Module = m.name
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
	if m.handle != nil {
		return m.handle(ctx, f)
	}
	return nil
}

func (m *testModule) HandleCommand(ctx context.Context, f Facade, command string, args []string) error {
	return m.record(ctx, f, invocation{Kind: trigger.KindInvocation, Command: command, Args: args})
}

func (m *testModule) HandleMention(ctx context.Context, f Facade, message *platform.Message) error {
	return m.record(ctx, f, invocation{Kind: trigger.KindMention})
}

func (m *testModule) HandlePattern(ctx context.Context, f Facade, pattern string, groups []string) error {
	return m.record(ctx, f, invocation{Kind: trigger.KindPattern, Groups: groups})
}

func (m *testModule) HandleReaction(ctx context.Context, f Facade, reaction *platform.Reaction) error {
	return m.record(ctx, f, invocation{Kind: trigger.KindReaction, Emoji: reaction.Emoji})
}

func (m *testModule) HandleTimer(ctx context.Context, f Facade, name string) error {
	return m.record(ctx, f, invocation{Kind: trigger.KindTimer, Command: name})
}

func (m *testModule) SaveState() (snapshot.ModuleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	global, err := codec.Marshal(m.state)
	if err != nil {
		return snapshot.ModuleState{}, err
	}
	return snapshot.ModuleState{Global: global}, nil
}

func (m *testModule) RestoreState(state snapshot.ModuleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restored = true
	return codec.Unmarshal(state.Global, &m.state)
}

func (m *testModule) SettingChanged(scope, key string, old, new any) {
	m.changes <- settings.Change{Namespace: m.name, Key: key, Scope: scope, Old: old, New: new}
}

func (m *testModule) Calls() []invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

type harness struct {
	runtime  *Runtime
	platform *testutil.Platform
	clock    *clock.FakeClock
	store    *snapshot.MemoryStore
}

func newHarness(t *testing.T, modules ...Module) *harness {
	t.Helper()
	return newHarnessWithStore(t, snapshot.NewMemoryStore(), modules...)
}

func newHarnessWithStore(t *testing.T, store *snapshot.MemoryStore, modules ...Module) *harness {
	t.Helper()
	fake := clock.Fake(epoch)
	client := testutil.NewPlatform(botID)
	runtime, err := New(Config{
		Prefix:  "!",
		Masters: []string{master},
		Client:  client,
		Store:   store,
		Clock:   fake,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := runtime.Load(context.Background(), modules...); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return &harness{runtime: runtime, platform: client, clock: fake, store: store}
}

func guildMessage(author, body string) platform.Event {
	return platform.Event{Kind: platform.KindMessage, Message: &platform.Message{
		Ref: platform.MessageRef{
			Channel:   platform.ChannelRef{GuildID: guild, ChannelID: room},
			MessageID: testutil.UniqueID("$msg"),
		},
		Author: author,
		Body:   body,
		Time:   epoch,
	}}
}

func directMessage(author, body string) platform.Event {
	event := guildMessage(author, body)
	event.Message.Ref.Channel = platform.ChannelRef{ChannelID: "!dm:test"}
	return event
}

func reactionEvent(user, messageID, emoji string, added bool) platform.Event {
	return platform.Event{Kind: platform.KindReaction, Reaction: &platform.Reaction{
		Target: platform.MessageRef{Channel: platform.ChannelRef{GuildID: guild, ChannelID: room}, MessageID: messageID},
		User:   user,
		Emoji:  emoji,
		Added:  added,
		Time:   epoch,
	}}
}

// deliver routes event and waits for every task it started.
func (h *harness) deliver(event platform.Event) {
	h.runtime.Route(context.Background(), event)
	h.runtime.Wait()
}

func (h *harness) replies() []string {
	var texts []string
	for _, sent := range h.platform.SentMessages() {
		texts = append(texts, sent.Text)
	}
	return texts
}

func (h *harness) lastReply(t *testing.T) string {
	t.Helper()
	replies := h.replies()
	if len(replies) == 0 {
		t.Fatal("no reply was sent")
	}
	return replies[len(replies)-1]
}

func historyKey() history.Key {
	return history.Key{GuildID: guild, ChannelID: room}
}
