// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission decides whether an identity may run a privileged
// action.
//
// Tiers are ordered: None < Operator < Superop < Master. Masters come
// from configuration and cannot be revoked at runtime. Superops are
// granted by a master and hold master-equivalent rights regardless of
// guild. Operators are granted per guild or globally. The runtime
// persists the superop and operator roster in the snapshot.
package permission

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Tier is a privilege level.
type Tier int

const (
	None Tier = iota
	Operator
	Superop
	Master
)

func (t Tier) String() string {
	switch t {
	case None:
		return "none"
	case Operator:
		return "operator"
	case Superop:
		return "superop"
	case Master:
		return "master"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// PermissionDenied is returned by Check when the identity lacks the
// required tier.
type PermissionDenied struct {
	Identity string
	Required Tier
	GuildID  string
}

func (e *PermissionDenied) Error() string {
	if e.GuildID == "" {
		return fmt.Sprintf("permission denied: %s is not %s", e.Identity, e.Required)
	}
	return fmt.Sprintf("permission denied: %s is not %s in %s", e.Identity, e.Required, e.GuildID)
}

// Roster is the persisted part of the gate.
type Roster struct {
	Superops        []string            `cbor:"superops,omitempty"`
	GlobalOperators []string            `cbor:"global_operators,omitempty"`
	GuildOperators  map[string][]string `cbor:"guild_operators,omitempty"`
}

// Gate evaluates tiers. Safe for concurrent use.
type Gate struct {
	mu              sync.RWMutex
	masters         map[string]bool
	superops        map[string]bool
	globalOperators map[string]bool
	guildOperators  map[string]map[string]bool
	logger          *slog.Logger
}

// NewGate creates a Gate with a fixed master list.
func NewGate(masters []string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	gate := &Gate{
		masters:         make(map[string]bool, len(masters)),
		superops:        make(map[string]bool),
		globalOperators: make(map[string]bool),
		guildOperators:  make(map[string]map[string]bool),
		logger:          logger,
	}
	for _, master := range masters {
		gate.masters[master] = true
	}
	return gate
}

// TierOf returns the highest tier identity holds in guildID. An empty
// guildID means a guild-independent context (DM or timer).
func (g *Gate) TierOf(identity, guildID string) Tier {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch {
	case g.masters[identity]:
		return Master
	case g.superops[identity]:
		return Superop
	case g.globalOperators[identity]:
		return Operator
	case guildID != "" && g.guildOperators[guildID][identity]:
		return Operator
	default:
		return None
	}
}

// Check returns nil if identity holds required in guildID, otherwise a
// *PermissionDenied.
func (g *Gate) Check(identity string, required Tier, guildID string) error {
	if required == None {
		return nil
	}
	if g.TierOf(identity, guildID) >= required {
		return nil
	}
	g.logger.Warn("permission denied",
		"identity", identity,
		"required", required.String(),
		"guild_id", guildID,
	)
	return &PermissionDenied{Identity: identity, Required: required, GuildID: guildID}
}

// Grant adds identity to the roster. Operator grants with a guildID
// are scoped to that guild; without one they are global. Superop is
// always global. Master cannot be granted.
func (g *Gate) Grant(identity string, tier Tier, guildID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch tier {
	case Operator:
		if guildID == "" {
			g.globalOperators[identity] = true
			return nil
		}
		members := g.guildOperators[guildID]
		if members == nil {
			members = make(map[string]bool)
			g.guildOperators[guildID] = members
		}
		members[identity] = true
		return nil
	case Superop:
		g.superops[identity] = true
		return nil
	default:
		return fmt.Errorf("permission: tier %s cannot be granted at runtime", tier)
	}
}

// Revoke removes identity from the roster at the given tier and scope.
// It reports whether anything was removed. Masters cannot be revoked.
func (g *Gate) Revoke(identity string, tier Tier, guildID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var set map[string]bool
	switch tier {
	case Operator:
		if guildID == "" {
			set = g.globalOperators
		} else {
			set = g.guildOperators[guildID]
		}
	case Superop:
		set = g.superops
	default:
		return false, fmt.Errorf("permission: tier %s cannot be revoked at runtime", tier)
	}
	if !set[identity] {
		return false, nil
	}
	delete(set, identity)
	if guildID != "" && tier == Operator && len(set) == 0 {
		delete(g.guildOperators, guildID)
	}
	return true, nil
}

// Operators lists the operators of a guild (guild-scoped ones only),
// sorted. An empty guildID lists global operators.
func (g *Gate) Operators(guildID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if guildID == "" {
		return sortedKeys(g.globalOperators)
	}
	return sortedKeys(g.guildOperators[guildID])
}

// Superops lists the superops, sorted.
func (g *Gate) Superops() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.superops)
}

// Export captures the runtime-granted roster.
func (g *Gate) Export() Roster {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roster := Roster{
		Superops:        sortedKeys(g.superops),
		GlobalOperators: sortedKeys(g.globalOperators),
	}
	if len(g.guildOperators) > 0 {
		roster.GuildOperators = make(map[string][]string, len(g.guildOperators))
		for guildID, members := range g.guildOperators {
			roster.GuildOperators[guildID] = sortedKeys(members)
		}
	}
	return roster
}

// Import replaces the runtime-granted roster. Masters are unaffected.
func (g *Gate) Import(roster Roster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.superops = toSet(roster.Superops)
	g.globalOperators = toSet(roster.GlobalOperators)
	g.guildOperators = make(map[string]map[string]bool, len(roster.GuildOperators))
	for guildID, members := range roster.GuildOperators {
		if len(members) > 0 {
			g.guildOperators[guildID] = toSet(members)
		}
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
