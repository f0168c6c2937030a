// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package prompt

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/herald/platform"
)

// Prompt waits for a typed reply from identity whose text convert
// accepts. Replies that do not convert are left for other sessions and
// normal dispatch.
func Prompt[T any](ctx context.Context, broker *Broker, identity string, convert func(string) (T, bool), timeout time.Duration) (T, bool) {
	value, ok := broker.Await(ctx, identity, timeout, func(event platform.Event) (any, bool) {
		text, ok := broker.replyBody(event, identity)
		if !ok {
			return nil, false
		}
		converted, ok := convert(text)
		if !ok {
			return nil, false
		}
		return converted, true
	})
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// Option waits for identity to reply with one of options, compared
// case-insensitively. The option as given by the caller is returned.
func (b *Broker) Option(ctx context.Context, identity string, timeout time.Duration, options ...string) (string, bool) {
	return Prompt(ctx, b, identity, func(text string) (string, bool) {
		index := slices.IndexFunc(options, func(option string) bool {
			return strings.EqualFold(option, text)
		})
		if index < 0 {
			return "", false
		}
		return options[index], true
	}, timeout)
}

// Confirm waits for identity to answer yes or no. Timing out counts as
// no.
func (b *Broker) Confirm(ctx context.Context, identity string, timeout time.Duration) bool {
	answer, ok := b.Option(ctx, identity, timeout, "yes", "no")
	return ok && answer == "yes"
}

// SelectMessage waits for identity to react with the approval emoji to
// any message inside guild, and returns that message.
func (b *Broker) SelectMessage(ctx context.Context, identity, guild string, timeout time.Duration) (platform.MessageRef, bool) {
	value, ok := b.Await(ctx, identity, timeout, func(event platform.Event) (any, bool) {
		reaction, ok := addedReaction(event, identity)
		if !ok || reaction.Emoji != b.approvalEmoji || reaction.Target.Channel.GuildID != guild {
			return nil, false
		}
		return reaction.Target, true
	})
	if !ok {
		return platform.MessageRef{}, false
	}
	return value.(platform.MessageRef), true
}

// Emote waits for identity to react to message with any emoji.
func (b *Broker) Emote(ctx context.Context, identity string, message platform.MessageRef, timeout time.Duration) (string, bool) {
	return b.EmoteOption(ctx, identity, message, nil, timeout)
}

// EmoteOption waits for identity to react to message with one of
// allowed. An empty allowed list accepts any emoji.
func (b *Broker) EmoteOption(ctx context.Context, identity string, message platform.MessageRef, allowed []string, timeout time.Duration) (string, bool) {
	value, ok := b.Await(ctx, identity, timeout, func(event platform.Event) (any, bool) {
		reaction, ok := addedReaction(event, identity)
		if !ok || reaction.Target.MessageID != message.MessageID {
			return nil, false
		}
		if len(allowed) > 0 && !slices.Contains(allowed, reaction.Emoji) {
			return nil, false
		}
		return reaction.Emoji, true
	})
	if !ok {
		return "", false
	}
	return value.(string), true
}
