// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package karma keeps a per-guild score for anything written as
// "thing++" or "thing--".
//
// Scores are saved after every change. A guild operator can turn karma
// off, which erases that guild's scores, and can set a nightly decay
// that shrinks every score toward zero.
package karma

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/bureau-foundation/herald/bot"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/snapshot"
	"github.com/bureau-foundation/herald/trigger"
)

// Name is the module and settings namespace name.
const Name = "karma"

// Setting keys.
const (
	SettingEnabled = "enabled"
	SettingDecay   = "decay"
)

// DecayTimer runs the nightly decay.
const DecayTimer = "decay"

// topCount is how many entries "karma top" lists.
const topCount = 5

// bump matches one "thing++" or "thing--" token.
const bump = `(\S+?)(\+\+|--)(?:\s|$)`

var bumpPattern = regexp.MustCompile(bump)

// Module implements bot.Module.
type Module struct {
	mu sync.Mutex
	// scores maps guild id to subject to score.
	scores map[string]map[string]int
}

// New returns a Module with no scores.
func New() *Module {
	return &Module{scores: make(map[string]map[string]int)}
}

func (m *Module) Name() string { return Name }

func (m *Module) Help() string {
	return "Write thing++ or thing-- to change its karma."
}

func (m *Module) Triggers() []trigger.Trigger {
	return []trigger.Trigger{
		trigger.Pattern{Regex: bump},
		trigger.Invocation{Command: "karma", Usage: "karma [subject|top]", Description: "show karma"},
		trigger.Timer{Name: DecayTimer, Cron: "0 4 * * *"},
	}
}

func (m *Module) Settings() settings.Declarations {
	return settings.Declarations{
		PerGuild: []settings.Key{
			{Name: SettingDecay, Type: settings.Percent{}, Default: 0.0, Description: "share of every score lost each night"},
		},
		GuildOnly: []settings.Key{
			{
				Name:        SettingEnabled,
				Type:        settings.Bool{},
				Default:     true,
				Description: "whether karma is counted here",
				Confirm:     "Changing this erases this guild's scores when karma is turned off. Continue?",
				Notify:      true,
			},
		},
	}
}

func (m *Module) AutoSave() bool { return true }

// SettingChanged erases a guild's scores when karma is turned off
// there.
func (m *Module) SettingChanged(scope, key string, _, value any) {
	if key != SettingEnabled || scope == settings.Global || settings.AsBool(value) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, scope)
}

func (m *Module) enabled(f bot.Facade) bool {
	value, err := f.Setting(SettingEnabled)
	return err != nil || settings.AsBool(value)
}

func (m *Module) HandlePattern(ctx context.Context, f bot.Facade, _ string, _ []string) error {
	guild := f.Guild()
	message := f.Event().Message
	if guild == "" || message == nil || !m.enabled(f) {
		return nil
	}

	type bumpOf struct {
		subject string
		delta   int
	}
	var bumps []bumpOf
	seen := make(map[string]bool)
	for _, groups := range bumpPattern.FindAllStringSubmatch(message.Body, -1) {
		subject := normalize(groups[1])
		if subject == "" || seen[subject] {
			continue
		}
		// A self bump refuses the whole message.
		if isSelf(subject, f.Identity()) {
			return &bot.ModuleError{Message: "You can't change your own karma."}
		}
		seen[subject] = true
		delta := 1
		if groups[2] == "--" {
			delta = -1
		}
		bumps = append(bumps, bumpOf{subject, delta})
	}

	changed := make([]string, 0, len(bumps))
	for _, b := range bumps {
		score := m.add(guild, b.subject, b.delta)
		changed = append(changed, fmt.Sprintf("%s has %d karma.", b.subject, score))
	}
	if len(changed) == 0 {
		return nil
	}
	f.Logger().Debug("karma changed", "guild_id", guild, "subjects", len(changed))
	_, err := f.Reply(ctx, strings.Join(changed, " "))
	return err
}

func (m *Module) HandleCommand(ctx context.Context, f bot.Facade, command string, args []string) error {
	if command != "karma" {
		return fmt.Errorf("karma: unexpected command %q", command)
	}
	guild := f.Guild()
	if guild == "" {
		return bot.Errorf("Karma is only kept in guilds.")
	}
	if !m.enabled(f) {
		return bot.Errorf("Karma is off here.")
	}
	switch {
	case len(args) > 1:
		return bot.Usage("karma [subject|top]")
	case len(args) == 1 && args[0] == "top":
		return m.top(ctx, f, guild)
	}
	subject := localpart(f.Identity())
	if len(args) == 1 {
		subject = normalize(args[0])
	}
	_, err := f.Reply(ctx, fmt.Sprintf("%s has %d karma.", subject, m.Score(guild, subject)))
	return err
}

func (m *Module) top(ctx context.Context, f bot.Facade, guild string) error {
	type entry struct {
		subject string
		score   int
	}
	m.mu.Lock()
	entries := make([]entry, 0, len(m.scores[guild]))
	for subject, score := range m.scores[guild] {
		entries = append(entries, entry{subject, score})
	}
	m.mu.Unlock()
	if len(entries) == 0 {
		_, err := f.Reply(ctx, "Nobody has karma here yet.")
		return err
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(a.subject, b.subject)
	})
	parts := make([]string, 0, topCount)
	for _, e := range entries[:min(topCount, len(entries))] {
		parts = append(parts, fmt.Sprintf("%s (%d)", e.subject, e.score))
	}
	_, err := f.Reply(ctx, "Top karma: "+strings.Join(parts, ", "))
	return err
}

// HandleTimer applies each guild's decay setting.
func (m *Module) HandleTimer(_ context.Context, f bot.Facade, name string) error {
	if name != DecayTimer {
		return fmt.Errorf("karma: unexpected timer %q", name)
	}
	m.mu.Lock()
	guilds := make([]string, 0, len(m.scores))
	for guild := range m.scores {
		guilds = append(guilds, guild)
	}
	m.mu.Unlock()

	for _, guild := range guilds {
		value, err := f.SettingIn(guild, SettingDecay)
		if err != nil {
			return fmt.Errorf("reading decay for %s: %w", guild, err)
		}
		rate := settings.AsFloat(value)
		if rate <= 0 {
			continue
		}
		m.decay(guild, rate)
		f.Logger().Info("karma decayed", "guild_id", guild, "rate", rate)
	}
	return nil
}

func (m *Module) decay(guild string, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for subject, score := range m.scores[guild] {
		decayed := int(math.Trunc(float64(score) * (1 - rate)))
		if decayed == 0 {
			delete(m.scores[guild], subject)
			continue
		}
		m.scores[guild][subject] = decayed
	}
	if len(m.scores[guild]) == 0 {
		delete(m.scores, guild)
	}
}

func (m *Module) add(guild, subject string, delta int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	scores, ok := m.scores[guild]
	if !ok {
		scores = make(map[string]int)
		m.scores[guild] = scores
	}
	scores[subject] += delta
	return scores[subject]
}

// Score returns subject's karma in guild.
func (m *Module) Score(guild, subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[guild][subject]
}

func (m *Module) SaveState() (snapshot.ModuleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	guilds, err := snapshot.EncodeGuilds(m.scores)
	if err != nil {
		return snapshot.ModuleState{}, err
	}
	return snapshot.ModuleState{Guilds: guilds}, nil
}

func (m *Module) RestoreState(state snapshot.ModuleState) error {
	scores, err := snapshot.DecodeGuilds[map[string]int](state.Guilds)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for guild, subjects := range scores {
		if len(subjects) > 0 {
			m.scores[guild] = subjects
		}
	}
	return nil
}

// normalize trims trailing punctuation a sentence might leave on a
// subject and folds case.
func normalize(subject string) string {
	return strings.ToLower(strings.TrimRight(subject, ".,;:!?"))
}

// localpart returns the lowercased "alice" of "@alice:example.org".
func localpart(identity string) string {
	name, _, _ := strings.Cut(strings.TrimPrefix(strings.ToLower(identity), "@"), ":")
	return name
}

// isSelf reports whether subject names identity, either as the full
// user id or its localpart.
func isSelf(subject, identity string) bool {
	name := localpart(identity)
	return subject == strings.ToLower(identity) || subject == name || subject == "@"+name
}
