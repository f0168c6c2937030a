// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/herald/history"
	"github.com/bureau-foundation/herald/platform"
	"github.com/bureau-foundation/herald/prompt"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/trigger"
)

// Event is what triggered a handler call.
type Event struct {
	Kind trigger.Kind

	// Message is set for invocation, mention and pattern events.
	Message *platform.Message
	// Reaction is set for reaction events.
	Reaction *platform.Reaction

	Command string
	Args    []string

	Pattern string
	Groups  []string

	Timer string
}

// ErrNoChannel is returned by Reply and the prompt helpers when the
// event has no channel, as for timers.
var ErrNoChannel = errors.New("bot: event has no channel to reply in")

// Facade is a handler's view of the runtime for one call. Settings are
// read and written in the calling module's namespace. A timeout of
// zero means the prompt_timeout runtime setting.
type Facade interface {
	Event() Event
	// Identity is the user behind the event; empty for timers.
	Identity() string
	// Guild is the event's guild; empty in DMs and timers.
	Guild() string
	// Channel is where the event happened.
	Channel() (platform.ChannelRef, bool)

	Reply(ctx context.Context, text string) (platform.MessageRef, error)
	Send(ctx context.Context, channel platform.ChannelRef, text string) (platform.MessageRef, error)
	SendDirect(ctx context.Context, userID, text string) (platform.MessageRef, error)
	React(ctx context.Context, message platform.MessageRef, emoji string) error

	// Setting reads a key in the event's guild (global in DMs).
	Setting(key string) (any, error)
	GlobalSetting(key string) (any, error)
	// SettingIn reads a key in an explicit scope.
	SettingIn(scope, key string) (any, error)
	SetSetting(scope, key, raw string) (any, error)

	// History returns up to n recent messages of the event's channel,
	// oldest first.
	History(n int) []history.Entry

	// PromptText asks question in the event's channel and waits for a
	// doubled-prefix reply from Identity that accept approves.
	PromptText(ctx context.Context, question string, accept func(string) bool, timeout time.Duration) (string, bool)
	Confirm(ctx context.Context, question string, timeout time.Duration) bool
	Option(ctx context.Context, question string, timeout time.Duration, options ...string) (string, bool)
	SelectMessage(ctx context.Context, question string, timeout time.Duration) (platform.MessageRef, bool)
	Emote(ctx context.Context, question string, timeout time.Duration) (string, bool)
	EmoteOption(ctx context.Context, question string, allowed []string, timeout time.Duration) (string, bool)

	// ClaimReactions routes reactions on message to this module only,
	// until ReleaseReactions.
	ClaimReactions(message platform.MessageRef)
	ReleaseReactions(message platform.MessageRef)

	Logger() *slog.Logger
}

// Prompt asks question and waits for a reply that convert accepts.
func Prompt[T any](ctx context.Context, f Facade, question string, convert func(string) (T, bool), timeout time.Duration) (T, bool) {
	var converted T
	_, ok := f.PromptText(ctx, question, func(raw string) bool {
		value, ok := convert(raw)
		if ok {
			converted = value
		}
		return ok
	}, timeout)
	if !ok {
		var zero T
		return zero, false
	}
	return converted, true
}

// call implements Facade for one handler invocation.
type call struct {
	runtime  *Runtime
	module   string
	event    Event
	identity string
	guild    string
	channel  platform.ChannelRef
	// hasChannel is false for timers.
	hasChannel bool
	logger     *slog.Logger
}

func (r *Runtime) newCall(module string, event Event) *call {
	c := &call{runtime: r, module: module, event: event}
	switch {
	case event.Message != nil:
		c.identity = event.Message.Author
		c.channel = event.Message.Ref.Channel
		c.hasChannel = true
	case event.Reaction != nil:
		c.identity = event.Reaction.User
		c.channel = event.Reaction.Target.Channel
		c.hasChannel = true
	}
	c.guild = c.channel.GuildID
	c.logger = r.logger.With("module", module, "trigger", event.Kind.String())
	return c
}

func (c *call) Event() Event     { return c.event }
func (c *call) Identity() string { return c.identity }
func (c *call) Guild() string    { return c.guild }

func (c *call) Channel() (platform.ChannelRef, bool) {
	return c.channel, c.hasChannel
}

func (c *call) Reply(ctx context.Context, text string) (platform.MessageRef, error) {
	if !c.hasChannel {
		return platform.MessageRef{}, ErrNoChannel
	}
	return c.runtime.client.Send(ctx, c.channel, text)
}

func (c *call) Send(ctx context.Context, channel platform.ChannelRef, text string) (platform.MessageRef, error) {
	return c.runtime.client.Send(ctx, channel, text)
}

func (c *call) SendDirect(ctx context.Context, userID, text string) (platform.MessageRef, error) {
	channel, err := c.runtime.client.DirectChannel(ctx, userID)
	if err != nil {
		return platform.MessageRef{}, err
	}
	return c.runtime.client.Send(ctx, channel, text)
}

func (c *call) React(ctx context.Context, message platform.MessageRef, emoji string) error {
	return c.runtime.client.React(ctx, message, emoji)
}

func (c *call) Setting(key string) (any, error) {
	return c.runtime.state.Settings.Get(c.guild, c.module, key)
}

func (c *call) GlobalSetting(key string) (any, error) {
	return c.runtime.state.Settings.GetGlobal(c.module, key)
}

func (c *call) SettingIn(scope, key string) (any, error) {
	return c.runtime.state.Settings.Get(scope, c.module, key)
}

func (c *call) SetSetting(scope, key, raw string) (any, error) {
	return c.runtime.state.Settings.Set(scope, c.module, key, raw)
}

func (c *call) History(n int) []history.Entry {
	if !c.hasChannel {
		return nil
	}
	return c.runtime.state.History.Recent(history.KeyFor(c.channel), n)
}

func (c *call) timeout(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return c.runtime.promptTimeout()
}

// ask posts question, if any, in the event's channel.
func (c *call) ask(ctx context.Context, question string) (platform.MessageRef, bool) {
	if !c.hasChannel || c.identity == "" {
		c.logger.Warn("prompt without a channel or identity")
		return platform.MessageRef{}, false
	}
	if question == "" {
		return platform.MessageRef{}, true
	}
	sent, err := c.Reply(ctx, question)
	if err != nil {
		c.logger.Warn("sending prompt failed", "error", err)
		return platform.MessageRef{}, false
	}
	return sent, true
}

func (c *call) PromptText(ctx context.Context, question string, accept func(string) bool, timeout time.Duration) (string, bool) {
	if _, ok := c.ask(ctx, question); !ok {
		return "", false
	}
	return prompt.Prompt(ctx, c.runtime.state.Broker, c.identity, func(raw string) (string, bool) {
		if accept != nil && !accept(raw) {
			return "", false
		}
		return raw, true
	}, c.timeout(timeout))
}

func (c *call) Confirm(ctx context.Context, question string, timeout time.Duration) bool {
	if _, ok := c.ask(ctx, question); !ok {
		return false
	}
	return c.runtime.state.Broker.Confirm(ctx, c.identity, c.timeout(timeout))
}

func (c *call) Option(ctx context.Context, question string, timeout time.Duration, options ...string) (string, bool) {
	if _, ok := c.ask(ctx, question); !ok {
		return "", false
	}
	return c.runtime.state.Broker.Option(ctx, c.identity, c.timeout(timeout), options...)
}

func (c *call) SelectMessage(ctx context.Context, question string, timeout time.Duration) (platform.MessageRef, bool) {
	if _, ok := c.ask(ctx, question); !ok {
		return platform.MessageRef{}, false
	}
	return c.runtime.state.Broker.SelectMessage(ctx, c.identity, c.guild, c.timeout(timeout))
}

func (c *call) Emote(ctx context.Context, question string, timeout time.Duration) (string, bool) {
	return c.EmoteOption(ctx, question, nil, timeout)
}

// EmoteOption posts question, pre-reacts with each allowed emoji, and
// waits for Identity to pick one.
func (c *call) EmoteOption(ctx context.Context, question string, allowed []string, timeout time.Duration) (string, bool) {
	if question == "" {
		question = "React to choose."
	}
	message, ok := c.ask(ctx, question)
	if !ok {
		return "", false
	}
	for _, emoji := range allowed {
		if err := c.React(ctx, message, emoji); err != nil {
			c.logger.Warn("adding option reaction failed", "emoji", emoji, "error", err)
		}
	}
	return c.runtime.state.Broker.EmoteOption(ctx, c.identity, message, allowed, c.timeout(timeout))
}

func (c *call) ClaimReactions(message platform.MessageRef) {
	c.runtime.state.Registry.Claim(c.module, message.MessageID)
}

func (c *call) ReleaseReactions(message platform.MessageRef) {
	c.runtime.state.Registry.Release(c.module, message.MessageID)
}

func (c *call) Logger() *slog.Logger { return c.logger }

// settingScope is the scope runtime-level reads use for this call.
func (c *call) settingScope() string {
	if c.guild == "" {
		return settings.Global
	}
	return c.guild
}
