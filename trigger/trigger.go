// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger defines the events a module can subscribe to and the
// registry the router consults to find subscribers.
//
// A [Trigger] is a closed set of variants: [Invocation], [Mention],
// [Pattern], [Timer] and [Reaction]. Each variant reports a fixed
// [Kind], and the router keeps one dispatch path per kind. Triggers
// are validated when registered and are immutable afterwards.
package trigger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bureau-foundation/herald/lib/cron"
	"github.com/bureau-foundation/herald/permission"
)

// Kind identifies a trigger variant.
type Kind int

const (
	KindInvocation Kind = iota + 1
	KindMention
	KindPattern
	KindTimer
	KindReaction
)

func (k Kind) String() string {
	switch k {
	case KindInvocation:
		return "invocation"
	case KindMention:
		return "mention"
	case KindPattern:
		return "pattern"
	case KindTimer:
		return "timer"
	case KindReaction:
		return "reaction"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Trigger is implemented only by the variants in this package.
type Trigger interface {
	Kind() Kind
	// RequiredTier is the privilege an identity needs before the
	// module's handler runs. Timers always return permission.None.
	RequiredTier() permission.Tier
	validate() error
}

// Invocation fires on "<prefix>Command args...".
type Invocation struct {
	Command string
	Tier    permission.Tier
	// Usage is shown on a syntax error and in help output, without the
	// prefix, e.g. "roll <dice>".
	Usage       string
	Description string
}

func (Invocation) Kind() Kind                      { return KindInvocation }
func (t Invocation) RequiredTier() permission.Tier { return t.Tier }

func (t Invocation) validate() error {
	if t.Command == "" {
		return errors.New("invocation with empty command")
	}
	if strings.ContainsAny(t.Command, " \t\n") {
		return fmt.Errorf("invocation command %q contains whitespace", t.Command)
	}
	return nil
}

// MentionTarget selects which mentions a Mention trigger cares about.
type MentionTarget int

const (
	// MentionAny fires when the message mentions anyone.
	MentionAny MentionTarget = iota
	// MentionSelf fires when the message mentions the bot.
	MentionSelf
	// MentionSpecific fires when the message mentions one of IDs.
	MentionSpecific
)

// Mention fires on messages that mention users and are not commands.
type Mention struct {
	Target MentionTarget
	IDs    []string
	Tier   permission.Tier
}

func (Mention) Kind() Kind                      { return KindMention }
func (t Mention) RequiredTier() permission.Tier { return t.Tier }

func (t Mention) validate() error {
	switch t.Target {
	case MentionAny, MentionSelf:
		return nil
	case MentionSpecific:
		if len(t.IDs) == 0 {
			return errors.New("specific mention trigger with no ids")
		}
		return nil
	}
	return fmt.Errorf("unknown mention target %d", int(t.Target))
}

// Pattern fires on every non-command message the regular expression
// matches.
type Pattern struct {
	Regex string
	Tier  permission.Tier
}

func (Pattern) Kind() Kind                      { return KindPattern }
func (t Pattern) RequiredTier() permission.Tier { return t.Tier }

func (t Pattern) validate() error {
	if t.Regex == "" {
		return errors.New("pattern with empty regex")
	}
	if _, err := regexp.Compile(t.Regex); err != nil {
		return fmt.Errorf("pattern %q: %w", t.Regex, err)
	}
	return nil
}

// Timer fires on a schedule: a fixed Period, or a five-field Cron
// expression. Exactly one must be set.
type Timer struct {
	Name   string
	Period time.Duration
	Cron   string
}

func (Timer) Kind() Kind                    { return KindTimer }
func (Timer) RequiredTier() permission.Tier { return permission.None }

func (t Timer) validate() error {
	_, err := t.Schedule()
	return err
}

// Schedule returns the timer's parsed schedule.
func (t Timer) Schedule() (cron.Schedule, error) {
	switch {
	case t.Period != 0 && t.Cron != "":
		return nil, errors.New("timer sets both period and cron")
	case t.Cron != "":
		expression, err := cron.Parse(t.Cron)
		if err != nil {
			return nil, fmt.Errorf("timer: %w", err)
		}
		return expression, nil
	case t.Period > 0:
		return cron.Every(t.Period), nil
	}
	return nil, errors.New("timer needs a positive period or a cron expression")
}

// Reaction fires when an emoji in Emoji is added (if Add) or removed
// (if Remove). An empty Emoji set matches every emoji.
type Reaction struct {
	Emoji  []string
	Add    bool
	Remove bool
	Tier   permission.Tier
}

func (Reaction) Kind() Kind                      { return KindReaction }
func (t Reaction) RequiredTier() permission.Tier { return t.Tier }

func (t Reaction) validate() error {
	if !t.Add && !t.Remove {
		return errors.New("reaction trigger listens for neither add nor remove")
	}
	return nil
}

// Matches reports whether a reaction event satisfies the trigger.
func (t Reaction) Matches(emoji string, added bool) bool {
	if added && !t.Add || !added && !t.Remove {
		return false
	}
	if len(t.Emoji) == 0 {
		return true
	}
	for _, candidate := range t.Emoji {
		if candidate == emoji {
			return true
		}
	}
	return false
}
