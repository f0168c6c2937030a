// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/bureau-foundation/herald/platform"
)

// Sent is one message recorded by Platform.
type Sent struct {
	Ref  platform.MessageRef
	Text string
}

// Reacted is one reaction recorded by Platform.
type Reacted struct {
	Target platform.MessageRef
	Emoji  string
}

// Platform is an in-memory platform.Client. Every Send and React is
// recorded and also published on the Sends and Reactions channels
// (buffered; further values are dropped when a buffer is full).
type Platform struct {
	Self string

	// Sends receives a copy of every sent message.
	Sends chan Sent
	// Reactions receives a copy of every reaction.
	Reactions chan Reacted

	mu      sync.Mutex
	sent    []Sent
	reacted []Reacted
}

// NewPlatform returns a Platform whose bot user is self.
func NewPlatform(self string) *Platform {
	return &Platform{
		Self:      self,
		Sends:     make(chan Sent, 64),
		Reactions: make(chan Reacted, 64),
	}
}

func (p *Platform) SelfID() string { return p.Self }

func (p *Platform) Send(_ context.Context, channel platform.ChannelRef, text string) (platform.MessageRef, error) {
	sent := Sent{
		Ref:  platform.MessageRef{Channel: channel, MessageID: UniqueID("$sent")},
		Text: text,
	}
	p.mu.Lock()
	p.sent = append(p.sent, sent)
	p.mu.Unlock()
	select {
	case p.Sends <- sent:
	default:
	}
	return sent.Ref, nil
}

func (p *Platform) React(_ context.Context, message platform.MessageRef, emoji string) error {
	reacted := Reacted{Target: message, Emoji: emoji}
	p.mu.Lock()
	p.reacted = append(p.reacted, reacted)
	p.mu.Unlock()
	select {
	case p.Reactions <- reacted:
	default:
	}
	return nil
}

// DirectChannel returns a DM channel named after the peer.
func (p *Platform) DirectChannel(_ context.Context, userID string) (platform.ChannelRef, error) {
	return platform.ChannelRef{ChannelID: "!dm-" + strings.TrimPrefix(userID, "@")}, nil
}

// SentMessages returns everything sent so far.
func (p *Platform) SentMessages() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Sent(nil), p.sent...)
}

// ReactionsAdded returns every reaction so far.
func (p *Platform) ReactionsAdded() []Reacted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Reacted(nil), p.reacted...)
}
