// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dice is a small game module: dice rolls, random choices, a
// number-guessing game played over prompts, and rock-paper-scissors
// played with reactions.
package dice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/herald/bot"
	"github.com/bureau-foundation/herald/settings"
	"github.com/bureau-foundation/herald/trigger"
)

// Name is the module and settings namespace name.
const Name = "dice"

// Setting keys.
const (
	SettingMaxDice  = "max_dice"
	SettingGuessMax = "guess_max"
	SettingGuesses  = "guesses"
)

// Rock-paper-scissors options.
const (
	Rock     = "✊"
	Paper    = "✋"
	Scissors = "✌️"
)

var beats = map[string]string{Rock: Scissors, Paper: Rock, Scissors: Paper}

// expression matches NdS, dS and NdS+M / NdS-M.
var expression = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Module implements bot.Module.
type Module struct {
	mu     sync.Mutex
	random *rand.Rand
}

// New returns a Module drawing from random. A nil random is seeded
// from the runtime's entropy source.
func New(random *rand.Rand) *Module {
	if random == nil {
		random = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Module{random: random}
}

func (m *Module) Name() string { return Name }

func (m *Module) Help() string {
	return "Dice and small games. Answer game prompts with the doubled prefix."
}

func (m *Module) Triggers() []trigger.Trigger {
	return []trigger.Trigger{
		trigger.Invocation{Command: "roll", Usage: "roll <dice>...", Description: "roll dice such as 2d6, d20 or 3d8+2"},
		trigger.Invocation{Command: "choose", Usage: "choose <option> <option>...", Description: "pick one option at random"},
		trigger.Invocation{Command: "guess", Usage: "guess", Description: "guess the number I am thinking of"},
		trigger.Invocation{Command: "rps", Usage: "rps", Description: "rock, paper, scissors"},
	}
}

func (m *Module) Settings() settings.Declarations {
	return settings.Declarations{
		PerGuild: []settings.Key{
			{Name: SettingMaxDice, Type: settings.IntRange{Min: 1, Max: 1000}, Default: int64(100), Description: "most dice one roll may throw"},
			{Name: SettingGuesses, Type: settings.IntRange{Min: 1, Max: 20}, Default: int64(5), Description: "tries per guessing game"},
		},
		GlobalOnly: []settings.Key{
			{Name: SettingGuessMax, Type: settings.IntRange{Min: 2, Max: 1_000_000}, Default: int64(100), Description: "upper bound of the guessing game"},
		},
	}
}

func (m *Module) HandleCommand(ctx context.Context, f bot.Facade, command string, args []string) error {
	switch command {
	case "roll":
		return m.roll(ctx, f, args)
	case "choose":
		return m.choose(ctx, f, args)
	case "guess":
		return m.guess(ctx, f)
	case "rps":
		return m.rps(ctx, f)
	}
	return fmt.Errorf("dice: unexpected command %q", command)
}

func (m *Module) intn(n int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.random.IntN(n)
}

// Roll is one parsed dice expression.
type Roll struct {
	Count    int
	Sides    int
	Modifier int
}

// ParseRoll parses "NdS", "dS" and "NdS±M".
func ParseRoll(text string) (Roll, error) {
	groups := expression.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if groups == nil {
		return Roll{}, fmt.Errorf("%q is not a dice expression", text)
	}
	roll := Roll{Count: 1}
	var err error
	if groups[1] != "" {
		if roll.Count, err = strconv.Atoi(groups[1]); err != nil || roll.Count < 1 {
			return Roll{}, fmt.Errorf("%q: dice count must be positive", text)
		}
	}
	if roll.Sides, err = strconv.Atoi(groups[2]); err != nil || roll.Sides < 2 {
		return Roll{}, fmt.Errorf("%q: dice need at least two sides", text)
	}
	if groups[3] != "" {
		if roll.Modifier, err = strconv.Atoi(groups[3]); err != nil {
			return Roll{}, fmt.Errorf("%q: bad modifier", text)
		}
	}
	return roll, nil
}

func (r Roll) String() string {
	text := fmt.Sprintf("%dd%d", r.Count, r.Sides)
	if r.Modifier != 0 {
		text += fmt.Sprintf("%+d", r.Modifier)
	}
	return text
}

func (m *Module) roll(ctx context.Context, f bot.Facade, args []string) error {
	if len(args) == 0 {
		return bot.Usage("roll <dice>...")
	}
	maxDice := int64(100)
	if value, err := f.Setting(SettingMaxDice); err == nil {
		maxDice = settings.AsInt(value)
	}

	var rolls []Roll
	total := int64(0)
	for _, arg := range args {
		roll, err := ParseRoll(arg)
		if err != nil {
			return &bot.ModuleError{Message: "I can't roll " + strconv.Quote(arg) + ".", Err: err}
		}
		total += int64(roll.Count)
		rolls = append(rolls, roll)
	}
	if total > maxDice {
		return bot.Errorf("That's %d dice; the limit here is %d.", total, maxDice)
	}

	var lines []string
	for _, roll := range rolls {
		faces := make([]string, roll.Count)
		sum := roll.Modifier
		for index := range faces {
			face := m.intn(roll.Sides) + 1
			sum += face
			faces[index] = strconv.Itoa(face)
		}
		lines = append(lines, fmt.Sprintf("%s: %s = %d", roll, strings.Join(faces, " "), sum))
	}
	_, err := f.Reply(ctx, strings.Join(lines, "\n"))
	return err
}

func (m *Module) choose(ctx context.Context, f bot.Facade, args []string) error {
	if len(args) < 2 {
		return bot.Usage("choose <option> <option>...")
	}
	_, err := f.Reply(ctx, "I choose "+args[m.intn(len(args))]+".")
	return err
}

func (m *Module) guess(ctx context.Context, f bot.Facade) error {
	upper := int64(100)
	if value, err := f.GlobalSetting(SettingGuessMax); err == nil {
		upper = settings.AsInt(value)
	}
	tries := int64(5)
	if value, err := f.Setting(SettingGuesses); err == nil {
		tries = settings.AsInt(value)
	}
	secret := m.intn(int(upper)) + 1

	question := fmt.Sprintf("I'm thinking of a number from 1 to %d. You have %d tries.", upper, tries)
	for attempt := int64(1); attempt <= tries; attempt++ {
		number, ok := bot.Prompt(ctx, f, question, func(raw string) (int, bool) {
			value, err := strconv.Atoi(strings.TrimSpace(raw))
			return value, err == nil
		}, 0)
		if !ok {
			_, err := f.Reply(ctx, fmt.Sprintf("Out of time. It was %d.", secret))
			return err
		}
		switch {
		case number == secret:
			_, err := f.Reply(ctx, fmt.Sprintf("%d is right! Got it in %d.", secret, attempt))
			return err
		case number < secret:
			question = "Higher."
		default:
			question = "Lower."
		}
	}
	_, err := f.Reply(ctx, fmt.Sprintf("Out of tries. It was %d.", secret))
	return err
}

func (m *Module) rps(ctx context.Context, f bot.Facade) error {
	options := []string{Rock, Paper, Scissors}
	choice, ok := f.EmoteOption(ctx, "Rock, paper, scissors!", options, 30*time.Second)
	if !ok {
		_, err := f.Reply(ctx, "Nobody played.")
		return err
	}
	mine := options[m.intn(len(options))]
	var outcome string
	switch {
	case mine == choice:
		outcome = "Draw."
	case beats[mine] == choice:
		outcome = "I win."
	default:
		outcome = "You win."
	}
	_, err := f.Reply(ctx, fmt.Sprintf("%s vs %s. %s", choice, mine, outcome))
	return err
}
