// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bottest runs modules inside a real bot.Runtime for tests.
//
// A [Harness] wires the runtime to the in-memory platform from
// lib/testutil, a fake clock and a memory snapshot store. Deliver
// routes one event and waits for every task it started, so assertions
// after it see the finished state.
package bottest

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/herald/bot"
	"github.com/bureau-foundation/herald/lib/clock"
	"github.com/bureau-foundation/herald/lib/testutil"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/snapshot"
)

// Identities and places used by Message and Reaction.
const (
	BotID   = "@herald:test"
	Master  = "@master:test"
	Guild   = "!guild:test"
	Channel = "!room:test"
)

// Epoch is the fake clock's starting time.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness is a loaded runtime plus its fakes.
type Harness struct {
	Runtime  *bot.Runtime
	Platform *testutil.Platform
	Clock    *clock.FakeClock
	Store    *snapshot.MemoryStore
}

// New loads modules into a fresh runtime with Master as the only
// master and "!" as the prefix.
func New(t *testing.T, modules ...bot.Module) *Harness {
	t.Helper()
	return NewWithStore(t, snapshot.NewMemoryStore(), modules...)
}

// NewWithStore is New over an existing store, for restart tests.
func NewWithStore(t *testing.T, store *snapshot.MemoryStore, modules ...bot.Module) *Harness {
	t.Helper()
	fake := clock.Fake(Epoch)
	client := testutil.NewPlatform(BotID)
	runtime, err := bot.New(bot.Config{
		Prefix:  "!",
		Masters: []string{Master},
		Client:  client,
		Store:   store,
		Clock:   fake,
	})
	if err != nil {
		t.Fatalf("bot.New: %v", err)
	}
	if err := runtime.Load(context.Background(), modules...); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return &Harness{Runtime: runtime, Platform: client, Clock: fake, Store: store}
}

// Route dispatches event without waiting for its tasks.
func (h *Harness) Route(event platform.Event) {
	h.Runtime.Route(context.Background(), event)
}

// Deliver dispatches event and waits for every task.
func (h *Harness) Deliver(event platform.Event) {
	h.Route(event)
	h.Runtime.Wait()
}

// Say delivers a guild message from author.
func (h *Harness) Say(author, body string) {
	h.Deliver(Message(author, body))
}

// Replies returns the text of every message the runtime sent.
func (h *Harness) Replies() []string {
	var texts []string
	for _, sent := range h.Platform.SentMessages() {
		texts = append(texts, sent.Text)
	}
	return texts
}

// LastReply returns the most recent message text or fails the test.
func (h *Harness) LastReply(t *testing.T) string {
	t.Helper()
	replies := h.Replies()
	if len(replies) == 0 {
		t.Fatal("no reply was sent")
	}
	return replies[len(replies)-1]
}

// NextReply waits for the next sent message.
func (h *Harness) NextReply(t *testing.T) testutil.Sent {
	t.Helper()
	return testutil.RequireReceive(t, h.Platform.Sends, 5*time.Second, "waiting for a reply")
}

// Message is a message from author in Guild/Channel.
func Message(author, body string) platform.Event {
	return MessageIn(platform.ChannelRef{GuildID: Guild, ChannelID: Channel}, author, body)
}

// MessageIn is a message from author in channel.
func MessageIn(channel platform.ChannelRef, author, body string) platform.Event {
	return platform.Event{Kind: platform.KindMessage, Message: &platform.Message{
		Ref:    platform.MessageRef{Channel: channel, MessageID: testutil.UniqueID("$msg")},
		Author: author,
		Body:   body,
		Time:   Epoch,
	}}
}

// Reaction is user adding emoji to target.
func Reaction(user string, target platform.MessageRef, emoji string) platform.Event {
	return platform.Event{Kind: platform.KindReaction, Reaction: &platform.Reaction{
		Target: target,
		User:   user,
		Emoji:  emoji,
		Added:  true,
		Time:   Epoch,
	}}
}
