// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"time"
)

// ChannelRef identifies where a message lives. GuildID is empty for
// direct messages.
type ChannelRef struct {
	GuildID   string
	ChannelID string
}

// IsDirect reports whether the channel is a DM.
func (c ChannelRef) IsDirect() bool { return c.GuildID == "" }

// MessageRef identifies one message.
type MessageRef struct {
	Channel   ChannelRef
	MessageID string
}

// Kind classifies inbound events.
type Kind int

const (
	KindMessage Kind = iota + 1
	KindReaction
)

// Event is one inbound platform event. Exactly one of Message and
// Reaction is set, matching Kind.
type Event struct {
	Kind     Kind
	Message  *Message
	Reaction *Reaction
}

// Message is a posted chat message.
type Message struct {
	Ref    MessageRef
	Author string
	Body   string
	Time   time.Time

	// Mentions lists the user ids the message explicitly references.
	Mentions []string

	// MentionsEveryone is set for room-wide pings.
	MentionsEveryone bool
}

// HasMentions reports whether the message references anyone.
func (m *Message) HasMentions() bool {
	return m.MentionsEveryone || len(m.Mentions) > 0
}

// Mentioned reports whether userID appears in the mention list.
func (m *Message) Mentioned(userID string) bool {
	for _, mentioned := range m.Mentions {
		if mentioned == userID {
			return true
		}
	}
	return false
}

// Reaction is an emoji reaction added to or removed from a message.
type Reaction struct {
	Target MessageRef
	User   string
	Emoji  string
	Added  bool
	Time   time.Time
}

// Client is the outbound half of the platform. Implementations must be
// safe for concurrent use: handler goroutines share one Client.
type Client interface {
	// SelfID returns the bot's own user id.
	SelfID() string

	// Send posts text to a channel.
	Send(ctx context.Context, channel ChannelRef, text string) (MessageRef, error)

	// React adds an emoji reaction to a message.
	React(ctx context.Context, message MessageRef, emoji string) error

	// DirectChannel returns (creating if needed) the DM channel with
	// userID.
	DirectChannel(ctx context.Context, userID string) (ChannelRef, error)
}

// Source delivers inbound events. Run blocks until ctx is done or the
// connection fails permanently, pushing events onto the channel in
// platform order.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}
